package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/pgstash/pgstash/internal/config"
)

// PostgresDumper implements Dumper by shelling out to pg_dump and
// compressing its plain-SQL output.
type PostgresDumper struct {
	cfg       *config.Config
	extraOpts []string
	pgDumpBin string
	logger    *slog.Logger
}

// NewPostgresDumper creates a dumper for the configured database,
// probing the server version to pick a matching pg_dump binary.
func NewPostgresDumper(cfg *config.Config) *PostgresDumper {
	logger := slog.Default().With("component", "pg-dump")

	d := &PostgresDumper{
		cfg:       cfg,
		extraOpts: strings.Fields(cfg.PGDumpOptions),
		logger:    logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if version, err := GetServerVersion(ctx, cfg.ConnString()); err == nil {
		logger.Info("Detected PostgreSQL version", "version", version.Full, "major", version.Major)
		if bin, err := findBestBinary("pg_dump", version); err == nil {
			d.pgDumpBin = bin
			logger.Info("Selected pg_dump binary", "binary", bin)
		}
	} else {
		logger.Warn("Could not detect PostgreSQL version, using default binary", "error", err)
	}

	if d.pgDumpBin == "" {
		d.pgDumpBin = "pg_dump"
	}

	return d
}

// connArgs builds the flags shared by pg_dump and psql invocations.
func connArgs(cfg *config.Config) []string {
	return []string{
		"--no-password",
		"--host", cfg.PGHost,
		"--port", strconv.Itoa(cfg.PGPort),
		"--username", cfg.PGUser,
		"--dbname", cfg.PGDatabase,
	}
}

// connEnv supplies the password without putting it on the command line.
func connEnv(cfg *config.Config) []string {
	return append(os.Environ(), "PGPASSWORD="+cfg.PGPassword)
}

// Dump implements Dumper. The returned reader carries the
// gzip-compressed plain-SQL dump; a pg_dump failure propagates through
// the reader via CloseWithError so consumers never see a truncated
// stream as success.
func (d *PostgresDumper) Dump(ctx context.Context) (io.ReadCloser, error) {
	args := append([]string{"--format=plain"}, connArgs(d.cfg)...)
	args = append(args, d.extraOpts...)

	cmd := exec.CommandContext(ctx, d.pgDumpBin, args...)
	cmd.Env = connEnv(d.cfg)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", d.pgDumpBin, err)
	}

	pr, pw := io.Pipe()

	go func() {
		gw := gzip.NewWriter(pw)

		_, copyErr := io.Copy(gw, stdout)

		if closeErr := gw.Close(); closeErr != nil && copyErr == nil {
			copyErr = fmt.Errorf("failed to close gzip writer: %w", closeErr)
		}

		waitErr := cmd.Wait()

		switch {
		case copyErr != nil:
			_ = pw.CloseWithError(fmt.Errorf("failed to compress dump: %w", copyErr))
		case waitErr != nil:
			_ = pw.CloseWithError(fmt.Errorf("%s failed: %w, stderr: %s", d.pgDumpBin, waitErr, stderr.String()))
		default:
			_ = pw.Close()
		}
	}()

	return pr, nil
}

// Info implements Dumper with the default retry policy.
func (d *PostgresDumper) Info(ctx context.Context) (*DatabaseInfo, error) {
	return d.InfoWithRetry(ctx, defaultProbeRetryConfig())
}

// InfoWithRetry probes database name, size, and version over a
// short-lived connection, retrying connection-level failures with
// exponential backoff.
func (d *PostgresDumper) InfoWithRetry(ctx context.Context, retryConfig RetryConfig) (*DatabaseInfo, error) {
	var lastErr error
	delay := retryConfig.InitialDelay

	for attempt := 0; attempt <= retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			d.logger.Info("Retrying database info probe",
				"attempt", attempt,
				"max_retries", retryConfig.MaxRetries,
				"delay", delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			}

			delay = time.Duration(float64(delay) * retryConfig.BackoffFactor)
			if delay > retryConfig.MaxDelay {
				delay = retryConfig.MaxDelay
			}
		}

		info, err := probeDatabaseInfo(ctx, d.cfg.ConnString())
		if err == nil {
			if attempt > 0 {
				d.logger.Info("Database info probe succeeded", "attempts", attempt+1)
			}
			return info, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return nil, fmt.Errorf("non-retryable error: %w", err)
		}
		d.logger.Warn("Retryable error during database info probe", "error", err)
	}

	return nil, fmt.Errorf("failed to get database info after %d retries: %w",
		retryConfig.MaxRetries, lastErr)
}

func probeDatabaseInfo(ctx context.Context, connString string) (*DatabaseInfo, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	info := &DatabaseInfo{}
	err = db.QueryRowContext(ctx, `
		SELECT
			current_database(),
			pg_database_size(current_database()),
			version()
	`).Scan(&info.Name, &info.Size, &info.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to query database info: %w", err)
	}

	return info, nil
}
