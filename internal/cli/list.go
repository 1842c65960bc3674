package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgstash/pgstash/internal/backup"
	"github.com/pgstash/pgstash/internal/config"
)

// NewListCommand creates the list subcommand.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored artifacts for the configured database",

		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, orch *backup.Orchestrator, cfg *config.Config) error {
				entries, err := orch.List(ctx)
				if err != nil {
					return err
				}

				if len(entries) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "no artifacts for %s/%s\n", cfg.PGHost, cfg.PGDatabase)
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "KEY\tSIZE\tCREATED\tAGE")
				for _, e := range entries {
					created, age := "-", "-"
					if e.HasTimestamp {
						created = e.CreatedAt.Format(time.RFC3339)
						age = fmt.Sprintf("%dd", e.AgeDays)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Key, formatSize(e.Size), created, age)
				}
				return w.Flush()
			})
		},
	}
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
