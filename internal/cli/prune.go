package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pgstash/pgstash/internal/backup"
	"github.com/pgstash/pgstash/internal/config"
)

// NewPruneCommand creates the prune subcommand.
func NewPruneCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete artifacts older than the retention window",
		Long:  "Lists the artifacts for the configured host and database and deletes those whose embedded timestamp falls outside the retention window. Keys without a parseable timestamp are never deleted.",

		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, orch *backup.Orchestrator, cfg *config.Config) error {
				if cfg.RetentionDays <= 0 {
					return fmt.Errorf("retention.days must be positive to prune")
				}

				result, err := orch.Prune(ctx, dryRun)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), pruneSummary(result))
				for _, key := range result.Failed {
					fmt.Fprintf(cmd.OutOrStdout(), "failed to delete %s\n", key)
				}
				if len(result.Failed) > 0 {
					return fmt.Errorf("%d deletions failed", len(result.Failed))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report expired artifacts without deleting them")
	cmd.Flags().Int("days", 0, "override the configured retention window in days")
	if err := viper.BindPFlag("retention.days", cmd.Flags().Lookup("days")); err != nil {
		panic(err)
	}

	return cmd
}

// pruneSummary renders the one-line result. A dry run reports the
// selected count; a real run reports what was actually deleted so the
// number stays consistent with any failure lines that follow.
func pruneSummary(result *backup.PruneResult) string {
	verb, count := "deleted", len(result.Deleted)
	if result.DryRun {
		verb, count = "would delete", len(result.Selected)
	}
	return fmt.Sprintf("examined %d artifacts, %s %d", result.Examined, verb, count)
}
