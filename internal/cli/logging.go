package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogger installs the process-wide slog logger from the log.*
// configuration keys. When log.file is set, output goes to a rotating
// file instead of stdout.
func setupLogger() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if file := viper.GetString("log.file"); file != "" {
		out = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    viper.GetInt("log.max_size_mb"),
			MaxBackups: viper.GetInt("log.max_backups"),
			Compress:   true,
		}
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}
