package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStorage implements Storage for Google Cloud Storage.
type GCSStorage struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSConfig holds GCS-specific configuration.
type GCSConfig struct {
	Bucket             string
	ProjectID          string
	ServiceAccountJSON string
	Prefix             string // optional prefix for all keys
}

// NewGCSStorage creates a new GCS storage provider.
func NewGCSStorage(ctx context.Context, cfg GCSConfig) (*GCSStorage, error) {
	var opts []option.ClientOption
	if cfg.ServiceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Upload implements Storage.Upload.
func (g *GCSStorage) Upload(ctx context.Context, key string, reader io.Reader, metadata map[string]string) error {
	obj := g.client.Bucket(g.bucket).Object(g.fullKey(key))

	w := obj.NewWriter(ctx)
	w.Metadata = metadata

	if _, err := io.Copy(w, reader); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to upload to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize GCS upload: %w", err)
	}
	return nil
}

// Download implements Storage.Download.
func (g *GCSStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	obj := g.client.Bucket(g.bucket).Object(g.fullKey(key))

	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to download from GCS: %w", err)
	}
	return r, nil
}

// Delete implements Storage.Delete.
func (g *GCSStorage) Delete(ctx context.Context, key string) error {
	obj := g.client.Bucket(g.bucket).Object(g.fullKey(key))

	if err := obj.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

// List implements Storage.List.
func (g *GCSStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo

	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{
		Prefix: g.fullKey(prefix),
	})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list GCS objects: %w", err)
		}

		objects = append(objects, ObjectInfo{
			Key:          g.stripPrefix(attrs.Name),
			Size:         attrs.Size,
			LastModified: attrs.Updated,
			Metadata:     attrs.Metadata,
		})
	}

	return objects, nil
}

// NewestArtifactTime implements Storage.NewestArtifactTime.
func (g *GCSStorage) NewestArtifactTime(ctx context.Context, prefix string) (time.Time, error) {
	objects, err := g.List(ctx, prefix)
	if err != nil {
		return time.Time{}, err
	}
	return newestArtifactTime(objects), nil
}

// Close closes the GCS client connection.
func (g *GCSStorage) Close() error {
	return g.client.Close()
}

// fullKey returns the bucket-side object name with the configured
// prefix, preserving a trailing slash so listing prefixes keep scoping
// to exactly one database.
func (g *GCSStorage) fullKey(key string) string {
	if g.prefix == "" {
		return key
	}
	full := path.Join(g.prefix, key)
	if strings.HasSuffix(key, "/") {
		full += "/"
	}
	return full
}

// stripPrefix removes the configured prefix from a bucket-side name.
func (g *GCSStorage) stripPrefix(key string) string {
	if g.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, g.prefix+"/")
}

// ValidateServiceAccountJSON validates the service account JSON string.
func ValidateServiceAccountJSON(jsonStr string) error {
	var sa struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal([]byte(jsonStr), &sa); err != nil {
		return fmt.Errorf("invalid service account JSON: %w", err)
	}
	if sa.Type != "service_account" {
		return fmt.Errorf("invalid service account type: %s", sa.Type)
	}
	return nil
}
