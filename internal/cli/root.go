// Package cli wires the pgstash command tree.
package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pgstash/pgstash/internal/config"
)

// VersionInfo identifies the build.
type VersionInfo struct {
	Version string
	Commit  string
}

// NewRootCommand creates the pgstash root command.
func NewRootCommand(info VersionInfo) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "pgstash",
		Short:         "PostgreSQL snapshot backups in object storage",
		Long:          "pgstash dumps PostgreSQL databases into S3 or GCS, restores them back, and prunes snapshots past their retention window.",
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env files are optional; missing ones are not an error.
			for _, envFile := range []string{".env", ".env.local"} {
				_ = godotenv.Load(envFile)
			}

			if err := config.Init(configPath); err != nil {
				return err
			}
			return setupLogger()
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is ./pgstash.yaml)")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-file", "", "log to this file with rotation instead of stdout")

	if err := viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("log.file", cmd.PersistentFlags().Lookup("log-file")); err != nil {
		panic(err)
	}

	cmd.Version = fmt.Sprintf("%s (%s)", info.Version, info.Commit)

	return cmd
}
