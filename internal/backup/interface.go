// Package backup orchestrates dump, restore, list, and prune
// operations against a blob store using the canonical artifact
// addressing scheme.
package backup

import (
	"context"
	"io"
)

// Dumper produces a compressed dump of one database.
type Dumper interface {
	// Dump starts the dump and returns a reader over the
	// gzip-compressed SQL stream. A failing dump surfaces as an error
	// from the reader, never as a silently truncated stream.
	Dump(ctx context.Context) (io.ReadCloser, error)

	// Info returns information about the database being backed up.
	Info(ctx context.Context) (*DatabaseInfo, error)
}

// Restorer applies a compressed dump to one database.
type Restorer interface {
	// Restore decompresses the gzip stream and applies it. A non-zero
	// exit of the underlying client is a hard failure.
	Restore(ctx context.Context, r io.Reader) error
}

// DatabaseInfo contains information about the database.
type DatabaseInfo struct {
	Name    string
	Size    int64
	Version string
}
