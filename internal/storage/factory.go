package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pgstash/pgstash/internal/config"
)

// RetryConfig holds retry configuration for storage operations.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryableStorage wraps a Storage implementation with exponential
// backoff. Retry policy lives here, at the orchestration edge; nothing
// below this decorator retries. ErrNotFound is returned immediately
// since absence is a stable answer, not a transient failure.
type RetryableStorage struct {
	storage Storage
	config  RetryConfig
}

// NewRetryableStorage creates a new storage wrapper with retry logic.
func NewRetryableStorage(storage Storage, config RetryConfig) *RetryableStorage {
	return &RetryableStorage{
		storage: storage,
		config:  config,
	}
}

// Upload implements Storage.Upload with retry logic.
func (r *RetryableStorage) Upload(ctx context.Context, key string, reader io.Reader, metadata map[string]string) error {
	// A consumed stream cannot be replayed, so the upload itself gets
	// a single attempt. Callers stage artifacts locally and reopen the
	// file when they want another try.
	return r.storage.Upload(ctx, key, reader, metadata)
}

// Download implements Storage.Download with retry logic.
func (r *RetryableStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	var result io.ReadCloser
	err := r.retry(ctx, func() error {
		var err error
		result, err = r.storage.Download(ctx, key)
		return err
	})
	return result, err
}

// Delete implements Storage.Delete with retry logic.
func (r *RetryableStorage) Delete(ctx context.Context, key string) error {
	return r.retry(ctx, func() error {
		return r.storage.Delete(ctx, key)
	})
}

// List implements Storage.List with retry logic.
func (r *RetryableStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var result []ObjectInfo
	err := r.retry(ctx, func() error {
		var err error
		result, err = r.storage.List(ctx, prefix)
		return err
	})
	return result, err
}

// NewestArtifactTime implements Storage.NewestArtifactTime with retry logic.
func (r *RetryableStorage) NewestArtifactTime(ctx context.Context, prefix string) (time.Time, error) {
	var result time.Time
	err := r.retry(ctx, func() error {
		var err error
		result, err = r.storage.NewestArtifactTime(ctx, prefix)
		return err
	})
	return result, err
}

// retry executes a function with exponential backoff.
func (r *RetryableStorage) retry(ctx context.Context, fn func() error) error {
	delay := r.config.InitialDelay

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) {
			return err
		}

		if attempt == r.config.MaxAttempts {
			return fmt.Errorf("operation failed after %d attempts: %w", r.config.MaxAttempts, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * r.config.Multiplier)
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}

	return nil
}

// NewStorage creates a storage provider based on configuration.
func NewStorage(ctx context.Context, cfg *config.Config) (Storage, error) {
	var storage Storage
	var err error

	switch cfg.StorageProvider {
	case "s3":
		s3Config := S3Config{
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.StoragePrefix,
			UsePathStyle:    cfg.S3Endpoint != "", // path style for custom endpoints
		}
		storage, err = NewS3Storage(ctx, s3Config)

	case "gcs":
		if err := ValidateServiceAccountJSON(cfg.GoogleServiceAccountJSON); err != nil {
			return nil, fmt.Errorf("invalid GCS service account: %w", err)
		}

		gcsConfig := GCSConfig{
			Bucket:             cfg.GCSBucket,
			ProjectID:          cfg.GoogleProjectID,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			Prefix:             cfg.StoragePrefix,
		}
		storage, err = NewGCSStorage(ctx, gcsConfig)

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.StorageProvider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s storage: %w", cfg.StorageProvider, err)
	}

	return NewRetryableStorage(storage, DefaultRetryConfig()), nil
}
