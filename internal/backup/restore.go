package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/pgstash/pgstash/internal/config"
)

// PostgresRestorer implements Restorer by streaming decompressed SQL
// into psql.
type PostgresRestorer struct {
	cfg     *config.Config
	psqlBin string
	logger  *slog.Logger
}

// NewPostgresRestorer creates a restorer for the configured database,
// probing the server version to pick a matching psql binary.
func NewPostgresRestorer(cfg *config.Config) *PostgresRestorer {
	logger := slog.Default().With("component", "pg-restore")

	r := &PostgresRestorer{
		cfg:    cfg,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if version, err := GetServerVersion(ctx, cfg.ConnString()); err == nil {
		if bin, err := findBestBinary("psql", version); err == nil {
			r.psqlBin = bin
			logger.Info("Selected psql binary", "binary", bin)
		}
	} else {
		logger.Warn("Could not detect PostgreSQL version, using default binary", "error", err)
	}

	if r.psqlBin == "" {
		r.psqlBin = "psql"
	}

	return r
}

// Restore implements Restorer. The stream is decompressed on the fly
// and fed to psql's stdin; ON_ERROR_STOP makes a failing statement
// abort the run with a non-zero exit instead of continuing past it.
func (p *PostgresRestorer) Restore(ctx context.Context, r io.Reader) error {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("invalid gzip stream: %w", err)
	}
	defer func() {
		_ = gr.Close()
	}()

	args := append(connArgs(p.cfg),
		"--quiet",
		"--set", "ON_ERROR_STOP=1",
	)

	cmd := exec.CommandContext(ctx, p.psqlBin, args...)
	cmd.Env = connEnv(p.cfg)
	cmd.Stdin = gr

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w, stderr: %s", p.psqlBin, err, stderr.String())
	}
	return nil
}
