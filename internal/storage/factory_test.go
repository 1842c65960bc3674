package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pgstash/pgstash/internal/config"
)

// flakyStorage fails a configurable number of times before succeeding.
type flakyStorage struct {
	failures    int
	calls       int
	err         error
	listResult  []ObjectInfo
	deleteCalls []string
}

func (f *flakyStorage) attempt() error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyStorage) Upload(ctx context.Context, key string, reader io.Reader, metadata map[string]string) error {
	return f.attempt()
}

func (f *flakyStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader("data")), nil
}

func (f *flakyStorage) Delete(ctx context.Context, key string) error {
	f.deleteCalls = append(f.deleteCalls, key)
	return f.attempt()
}

func (f *flakyStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return f.listResult, nil
}

func (f *flakyStorage) NewestArtifactTime(ctx context.Context, prefix string) (time.Time, error) {
	if err := f.attempt(); err != nil {
		return time.Time{}, err
	}
	return newestArtifactTime(f.listResult), nil
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetryableStorage_RetriesTransientFailures(t *testing.T) {
	inner := &flakyStorage{failures: 2, err: errors.New("connection reset")}
	rs := NewRetryableStorage(inner, fastRetryConfig())

	if _, err := rs.List(context.Background(), "h/d/"); err != nil {
		t.Fatalf("List() error = %v, want success after retries", err)
	}
	if inner.calls != 3 {
		t.Errorf("inner calls = %d, want 3", inner.calls)
	}
}

func TestRetryableStorage_GivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyStorage{failures: 10, err: errors.New("connection reset")}
	rs := NewRetryableStorage(inner, fastRetryConfig())

	err := rs.Delete(context.Background(), "h/d/20240301_100000.sql.gz")
	if err == nil {
		t.Fatal("Delete() error = nil, want failure")
	}
	if inner.calls != 3 {
		t.Errorf("inner calls = %d, want 3", inner.calls)
	}
}

func TestRetryableStorage_NotFoundIsNotRetried(t *testing.T) {
	inner := &flakyStorage{failures: 10, err: ErrNotFound}
	rs := NewRetryableStorage(inner, fastRetryConfig())

	_, err := rs.Download(context.Background(), "h/d/missing.sql.gz")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Download() error = %v, want ErrNotFound", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1 (absence is a stable answer)", inner.calls)
	}
}

func TestRetryableStorage_UploadIsSingleShot(t *testing.T) {
	inner := &flakyStorage{failures: 10, err: errors.New("connection reset")}
	rs := NewRetryableStorage(inner, fastRetryConfig())

	err := rs.Upload(context.Background(), "k", strings.NewReader("x"), nil)
	if err == nil {
		t.Fatal("Upload() error = nil, want failure")
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1 (streams cannot be replayed)", inner.calls)
	}
}

func TestRetryableStorage_ContextCancellation(t *testing.T) {
	inner := &flakyStorage{failures: 10, err: errors.New("connection reset")}
	rs := NewRetryableStorage(inner, RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		Multiplier:   1.0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := rs.List(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("List() error = %v, want context.Canceled", err)
	}
}

func TestNewStorage_UnsupportedProvider(t *testing.T) {
	cfg := &config.Config{StorageProvider: "tape"}

	if _, err := NewStorage(context.Background(), cfg); err == nil {
		t.Error("NewStorage() error = nil, want unsupported provider failure")
	}
}

func TestNewStorage_GCSRejectsBadServiceAccount(t *testing.T) {
	cfg := &config.Config{
		StorageProvider:          "gcs",
		GCSBucket:                "backups",
		GoogleProjectID:          "proj",
		GoogleServiceAccountJSON: `{"type":"user"}`,
	}

	if _, err := NewStorage(context.Background(), cfg); err == nil {
		t.Error("NewStorage() error = nil, want service account validation failure")
	}
}
