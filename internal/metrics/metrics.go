// Package metrics provides Prometheus metrics for pgstash.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackupAttempts tracks the total number of backup attempts.
	BackupAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pgstash_backup_attempts_total",
		Help: "Total number of backup attempts",
	}, []string{"status"})

	// BackupDuration tracks the duration of backup phases.
	BackupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pgstash_backup_duration_seconds",
		Help:    "Duration of backup phases in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
	}, []string{"phase"})

	// RestoreAttempts tracks the total number of restore attempts.
	RestoreAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pgstash_restore_attempts_total",
		Help: "Total number of restore attempts",
	}, []string{"status"})

	// RestoreDuration tracks the duration of restore operations.
	RestoreDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pgstash_restore_duration_seconds",
		Help:    "Duration of restore operations in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	// BackupSize tracks the compressed size of the last backup.
	BackupSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pgstash_backup_size_bytes",
		Help: "Compressed size of the last backup in bytes",
	})

	// DatabaseSize tracks the size of the database.
	DatabaseSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pgstash_database_size_bytes",
		Help: "Size of the database in bytes",
	})

	// StorageOperations tracks blob store operations.
	StorageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pgstash_storage_operations_total",
		Help: "Total number of blob store operations",
	}, []string{"operation", "provider", "status"})

	// RateLimitSkipped tracks backups skipped by the interval guard.
	RateLimitSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pgstash_backup_rate_limit_skipped_total",
		Help: "Total number of backups skipped by the minimum interval guard",
	})

	// LastBackupTimestamp tracks when the last successful backup occurred.
	LastBackupTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pgstash_backup_last_success_timestamp",
		Help: "Unix timestamp of the last successful backup",
	})

	// ArtifactsPruned tracks the number of expired artifacts deleted.
	ArtifactsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pgstash_artifacts_pruned_total",
		Help: "Total number of expired artifacts deleted",
	})

	// Info provides static information about the tool.
	Info = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pgstash_info",
		Help: "Information about pgstash",
	}, []string{"version", "storage_provider"})
)

// RecordBackupAttempt records a backup attempt with its status.
func RecordBackupAttempt(success bool) {
	BackupAttempts.WithLabelValues(statusLabel(success)).Inc()
}

// RecordRestoreAttempt records a restore attempt with its status.
func RecordRestoreAttempt(success bool) {
	RestoreAttempts.WithLabelValues(statusLabel(success)).Inc()
}

// RecordStorageOperation records a blob store operation.
func RecordStorageOperation(operation, provider string, success bool) {
	StorageOperations.WithLabelValues(operation, provider, statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
