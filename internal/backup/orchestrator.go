package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgstash/pgstash/internal/artifact"
	"github.com/pgstash/pgstash/internal/config"
	"github.com/pgstash/pgstash/internal/metrics"
	"github.com/pgstash/pgstash/internal/ratelimit"
	"github.com/pgstash/pgstash/internal/staging"
	"github.com/pgstash/pgstash/internal/storage"
)

// version is stamped into the info metric and upload metadata.
const version = "1.0.0"

// ErrNoArtifacts reports an empty listing where at least one artifact
// was required.
var ErrNoArtifacts = errors.New("no artifacts found")

// Orchestrator coordinates backup, restore, list, and prune runs. The
// pure artifact core decides names and expiry; the orchestrator owns
// every side effect around those decisions.
type Orchestrator struct {
	cfg      *config.Config
	storage  storage.Storage
	dumper   Dumper
	restorer Restorer
	staging  *staging.Store
	limiter  ratelimit.Limiter
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(cfg *config.Config, store storage.Storage, dumper Dumper, restorer Restorer, stage *staging.Store, logger *slog.Logger) *Orchestrator {
	limiter := ratelimit.NewIntervalLimiter(ratelimit.Config{
		MinInterval: cfg.MinBackupInterval(),
		Force:       cfg.ForceBackup,
	})

	return &Orchestrator{
		cfg:      cfg,
		storage:  store,
		dumper:   dumper,
		restorer: restorer,
		staging:  stage,
		limiter:  limiter,
		logger:   logger,
		now:      time.Now,
	}
}

// Backup dumps the database through the staging area into the blob
// store. The staging file is removed only after the upload is
// confirmed; on any failure before that the remote side is untouched
// and the local side is cleaned up.
func (o *Orchestrator) Backup(ctx context.Context) error {
	startTime := o.now()
	o.logger.Info("Starting backup",
		"host", o.cfg.PGHost,
		"database", o.cfg.PGDatabase,
	)

	metrics.Info.WithLabelValues(version, o.cfg.StorageProvider).Set(1)

	prefix, err := artifact.RemotePrefix(o.cfg.PGHost, o.cfg.PGDatabase)
	if err != nil {
		return err
	}

	newest, err := o.storage.NewestArtifactTime(ctx, prefix)
	if err != nil {
		o.logger.Warn("Failed to determine newest artifact, proceeding with backup", "error", err)
	} else {
		proceed, reason := o.limiter.ShouldBackup(newest)
		o.logger.Info("Rate limiter decision", "proceed", proceed, "reason", reason)
		if !proceed {
			metrics.RateLimitSkipped.Inc()
			return nil
		}
	}

	info, err := o.dumper.Info(ctx)
	if err != nil {
		o.logger.Warn("Failed to get database info", "error", err)
		info = &DatabaseInfo{Name: o.cfg.PGDatabase, Version: "unknown"}
	} else {
		o.logger.Info("Database info",
			"name", info.Name,
			"size_bytes", info.Size,
			"version", info.Version,
		)
		metrics.DatabaseSize.Set(float64(info.Size))
	}

	createdAt := o.now()
	key, err := artifact.RemoteKey(o.cfg.PGHost, o.cfg.PGDatabase, createdAt)
	if err != nil {
		return err
	}
	localPath, err := artifact.LocalStagingPath(o.staging.Root(), o.cfg.PGHost, o.cfg.PGDatabase, createdAt)
	if err != nil {
		return err
	}

	o.logger.Info("Addressed backup artifact", "storage_key", key, "staging_path", localPath)

	// Dump into staging first so a pg_dump failure can never leave a
	// truncated object in the bucket.
	dumpStart := o.now()
	reader, err := o.dumper.Dump(ctx)
	if err != nil {
		metrics.RecordBackupAttempt(false)
		return fmt.Errorf("failed to start dump: %w", err)
	}

	staged, err := o.staging.Stage(localPath, reader)
	closeErr := reader.Close()
	if err != nil {
		metrics.RecordBackupAttempt(false)
		return fmt.Errorf("failed to stage dump: %w", err)
	}
	if closeErr != nil {
		o.logger.Warn("Failed to close dump reader", "error", closeErr)
	}
	metrics.BackupDuration.WithLabelValues("dump").Observe(o.now().Sub(dumpStart).Seconds())

	o.logger.Info("Dump staged", "bytes", staged)

	metadata := map[string]string{
		"backup-timestamp": createdAt.Format(time.RFC3339),
		"database-name":    info.Name,
		"database-version": info.Version,
		"backup-tool":      "pgstash/" + version,
	}

	uploadStart := o.now()
	f, err := o.staging.Open(localPath)
	if err != nil {
		metrics.RecordBackupAttempt(false)
		return fmt.Errorf("failed to reopen staged dump: %w", err)
	}

	progress := newProgressReader(f, func(bytesRead int64, elapsed time.Duration) {
		o.logger.Info("Upload progress",
			"bytes", bytesRead,
			"total_bytes", staged,
			"elapsed", elapsed.Round(time.Second),
		)
	})

	uploadErr := o.storage.Upload(ctx, key, progress, metadata)
	if closeErr := f.Close(); closeErr != nil {
		o.logger.Warn("Failed to close staged dump", "error", closeErr)
	}
	if uploadErr != nil {
		metrics.RecordStorageOperation("upload", o.cfg.StorageProvider, false)
		metrics.RecordBackupAttempt(false)
		// Keep the staged file; a later run can retry the upload by hand.
		return fmt.Errorf("failed to upload backup: %w", uploadErr)
	}

	uploadDuration := o.now().Sub(uploadStart)
	metrics.RecordStorageOperation("upload", o.cfg.StorageProvider, true)
	metrics.BackupSize.Set(float64(staged))
	metrics.LastBackupTimestamp.Set(float64(createdAt.Unix()))
	metrics.RecordBackupAttempt(true)

	// Upload confirmed; the staging copy has served its purpose.
	if err := o.staging.Remove(localPath); err != nil {
		o.logger.Warn("Failed to remove staging file", "path", localPath, "error", err)
	}

	o.logger.Info("Backup completed",
		"storage_key", key,
		"bytes", staged,
		"upload_duration", uploadDuration,
	)
	metrics.BackupDuration.WithLabelValues("total").Observe(o.now().Sub(startTime).Seconds())

	if o.cfg.RetentionDays > 0 {
		if _, err := o.Prune(ctx, false); err != nil {
			// A failed cleanup must not fail the backup that preceded it.
			o.logger.Warn("Failed to prune old backups", "error", err)
		}
	}

	return nil
}

// Ref identifies the artifact a restore should use. Exactly one of Key
// or At should be set; with neither, the newest artifact is used.
type Ref struct {
	Key string
	At  time.Time
}

// Restore downloads the referenced artifact through the staging area
// and applies it to the database.
func (o *Orchestrator) Restore(ctx context.Context, ref Ref) error {
	startTime := o.now()

	key, createdAt, err := o.resolveArtifact(ctx, ref)
	if err != nil {
		metrics.RecordRestoreAttempt(false)
		return err
	}

	localPath, err := artifact.LocalStagingPath(o.staging.Root(), o.cfg.PGHost, o.cfg.PGDatabase, createdAt)
	if err != nil {
		metrics.RecordRestoreAttempt(false)
		return err
	}

	o.logger.Info("Restoring artifact", "storage_key", key, "staging_path", localPath)

	remote, err := o.storage.Download(ctx, key)
	if err != nil {
		metrics.RecordStorageOperation("download", o.cfg.StorageProvider, false)
		metrics.RecordRestoreAttempt(false)
		return fmt.Errorf("failed to download artifact: %w", err)
	}

	staged, err := o.staging.Stage(localPath, remote)
	closeErr := remote.Close()
	if err != nil {
		metrics.RecordRestoreAttempt(false)
		return fmt.Errorf("failed to stage artifact: %w", err)
	}
	if closeErr != nil {
		o.logger.Warn("Failed to close download stream", "error", closeErr)
	}
	metrics.RecordStorageOperation("download", o.cfg.StorageProvider, true)

	o.logger.Info("Artifact staged", "bytes", staged)

	f, err := o.staging.Open(localPath)
	if err != nil {
		metrics.RecordRestoreAttempt(false)
		return fmt.Errorf("failed to open staged artifact: %w", err)
	}

	restoreErr := o.restorer.Restore(ctx, f)
	if closeErr := f.Close(); closeErr != nil {
		o.logger.Warn("Failed to close staged artifact", "error", closeErr)
	}
	if restoreErr != nil {
		metrics.RecordRestoreAttempt(false)
		// Keep the staged artifact so a failed restore can be retried
		// without another download.
		return fmt.Errorf("restore failed: %w", restoreErr)
	}

	if err := o.staging.Remove(localPath); err != nil {
		o.logger.Warn("Failed to remove staging file", "path", localPath, "error", err)
	}

	metrics.RecordRestoreAttempt(true)
	metrics.RestoreDuration.Observe(o.now().Sub(startTime).Seconds())

	o.logger.Info("Restore completed", "storage_key", key)
	return nil
}

// resolveArtifact turns a Ref into a concrete key and creation time,
// deriving both sides from the single addressing scheme.
func (o *Orchestrator) resolveArtifact(ctx context.Context, ref Ref) (string, time.Time, error) {
	if ref.Key != "" {
		createdAt, ok := artifact.ParseTimestamp(ref.Key)
		if !ok {
			return "", time.Time{}, fmt.Errorf("key %q carries no artifact timestamp", ref.Key)
		}
		return ref.Key, createdAt, nil
	}

	if !ref.At.IsZero() {
		key, err := artifact.RemoteKey(o.cfg.PGHost, o.cfg.PGDatabase, ref.At)
		if err != nil {
			return "", time.Time{}, err
		}
		return key, ref.At, nil
	}

	entries, err := o.List(ctx)
	if err != nil {
		return "", time.Time{}, err
	}

	var newest *Entry
	for i := range entries {
		e := &entries[i]
		if !e.HasTimestamp {
			continue
		}
		if newest == nil || e.CreatedAt.After(newest.CreatedAt) {
			newest = e
		}
	}
	if newest == nil {
		return "", time.Time{}, fmt.Errorf("%w for %s/%s", ErrNoArtifacts, o.cfg.PGHost, o.cfg.PGDatabase)
	}
	return newest.Key, newest.CreatedAt, nil
}

// Entry describes one listed artifact.
type Entry struct {
	Key          string
	Size         int64
	CreatedAt    time.Time
	HasTimestamp bool
	AgeDays      int
}

// List returns the artifacts for the configured (host, database) pair.
// Entries whose keys carry no timestamp are reported with
// HasTimestamp=false rather than dropped.
func (o *Orchestrator) List(ctx context.Context) ([]Entry, error) {
	prefix, err := artifact.RemotePrefix(o.cfg.PGHost, o.cfg.PGDatabase)
	if err != nil {
		return nil, err
	}

	objects, err := o.storage.List(ctx, prefix)
	if err != nil {
		metrics.RecordStorageOperation("list", o.cfg.StorageProvider, false)
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	metrics.RecordStorageOperation("list", o.cfg.StorageProvider, true)

	now := o.now()
	entries := make([]Entry, 0, len(objects))
	for _, obj := range objects {
		entry := Entry{
			Key:  obj.Key,
			Size: obj.Size,
		}
		if createdAt, ok := artifact.ParseTimestamp(obj.Key); ok {
			entry.CreatedAt = createdAt
			entry.HasTimestamp = true
			entry.AgeDays = artifact.AgeDays(createdAt, now)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// PruneResult summarizes a prune run.
type PruneResult struct {
	Examined int
	Selected []string
	Deleted  []string
	Failed   []string
	DryRun   bool
}

// Prune deletes artifacts older than the retention window. Individual
// delete failures are logged and counted but do not abort the batch;
// keys without a parseable timestamp are never touched.
func (o *Orchestrator) Prune(ctx context.Context, dryRun bool) (*PruneResult, error) {
	policy := artifact.Policy{MaxAgeDays: o.cfg.RetentionDays}
	o.logger.Info("Starting prune",
		"retention_days", policy.MaxAgeDays,
		"dry_run", dryRun,
	)

	prefix, err := artifact.RemotePrefix(o.cfg.PGHost, o.cfg.PGDatabase)
	if err != nil {
		return nil, err
	}

	objects, err := o.storage.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	keys := make([]string, len(objects))
	for i, obj := range objects {
		keys[i] = obj.Key
	}

	now := o.now()
	result := &PruneResult{
		Examined: len(keys),
		Selected: artifact.SelectExpired(keys, policy, now),
		DryRun:   dryRun,
	}

	for _, key := range result.Selected {
		createdAt, _ := artifact.ParseTimestamp(key)
		o.logger.Info("Expired artifact",
			"storage_key", key,
			"age_days", artifact.AgeDays(createdAt, now),
			"dry_run", dryRun,
		)
		if dryRun {
			continue
		}

		if err := o.storage.Delete(ctx, key); err != nil {
			o.logger.Error("Failed to delete expired artifact",
				"storage_key", key,
				"error", err,
			)
			metrics.RecordStorageOperation("delete", o.cfg.StorageProvider, false)
			result.Failed = append(result.Failed, key)
			continue
		}
		metrics.RecordStorageOperation("delete", o.cfg.StorageProvider, true)
		metrics.ArtifactsPruned.Inc()
		result.Deleted = append(result.Deleted, key)
	}

	o.logger.Info("Prune completed",
		"examined", result.Examined,
		"selected", len(result.Selected),
		"deleted", len(result.Deleted),
		"failed", len(result.Failed),
	)
	return result, nil
}
