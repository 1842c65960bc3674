package main

import (
	"fmt"
	"os"

	"github.com/pgstash/pgstash/internal/cli"
)

// Overridden at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	root := cli.NewRootCommand(cli.VersionInfo{
		Version: version,
		Commit:  commit,
	})

	root.AddCommand(
		cli.NewBackupCommand(),
		cli.NewRestoreCommand(),
		cli.NewListCommand(),
		cli.NewPruneCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
