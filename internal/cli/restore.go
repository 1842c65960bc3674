package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgstash/pgstash/internal/artifact"
	"github.com/pgstash/pgstash/internal/backup"
	"github.com/pgstash/pgstash/internal/config"
)

// NewRestoreCommand creates the restore subcommand.
func NewRestoreCommand() *cobra.Command {
	var (
		key string
		at  string
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Download an artifact and apply it to the database",
		Long:  "Downloads the referenced artifact into the staging area and replays it through psql. Without --key or --at the newest artifact for the configured host and database is used.",

		RunE: func(cmd *cobra.Command, args []string) error {
			if key != "" && at != "" {
				return fmt.Errorf("--key and --at are mutually exclusive")
			}

			ref := backup.Ref{Key: key}
			if at != "" {
				createdAt, ok := artifact.ParseTimestamp(at)
				if !ok {
					return fmt.Errorf("invalid timestamp %q (expected YYYYMMDD_HHMMSS)", at)
				}
				ref.At = createdAt
			}

			return run(cmd, func(ctx context.Context, orch *backup.Orchestrator, cfg *config.Config) error {
				return orch.Restore(ctx, ref)
			})
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "full storage key of the artifact to restore")
	cmd.Flags().StringVar(&at, "at", "", "artifact timestamp (YYYYMMDD_HHMMSS) to restore")

	return cmd
}
