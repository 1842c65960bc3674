package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pgstash/pgstash/internal/backup"
	"github.com/pgstash/pgstash/internal/config"
)

// NewBackupCommand creates the backup subcommand.
func NewBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Dump the database and upload it to the blob store",
		Long:  "Runs pg_dump, stages the compressed dump locally, uploads it under the host/database/timestamp key, and prunes expired artifacts when retention is configured.",

		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, orch *backup.Orchestrator, cfg *config.Config) error {
				return orch.Backup(ctx)
			})
		},
	}

	cmd.Flags().Bool("force", false, "bypass the minimum backup interval")
	if err := viper.BindPFlag("backup.force", cmd.Flags().Lookup("force")); err != nil {
		panic(err)
	}

	return cmd
}
