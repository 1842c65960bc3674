// Package storage defines the blob store contract for backup artifacts
// and its S3 and GCS implementations.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound reports a key with no remote object behind it. Callers
// treat it as "absent", never as a fatal storage failure.
var ErrNotFound = errors.New("object not found")

// Storage defines the blob store operations the tool consumes.
type Storage interface {
	// Upload stores an artifact under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, metadata map[string]string) error

	// Download opens the artifact stored under the given key. Returns
	// ErrNotFound when no such object exists.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the artifact stored under the given key.
	Delete(ctx context.Context, key string) error

	// List returns all artifacts whose keys start with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// NewestArtifactTime reports the creation time of the most recent
	// artifact under prefix, preferring the timestamp embedded in the
	// key over object metadata. Zero time when the prefix is empty.
	NewestArtifactTime(ctx context.Context, prefix string) (time.Time, error)
}

// ObjectInfo contains information about a stored artifact.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	Metadata     map[string]string
}
