// Package staging holds backup artifacts on local disk while they move
// between the database and the blob store. Writes are atomic: an
// artifact either exists complete at its final path or not at all.
package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot reports a path that does not resolve under the
// staging root.
var ErrOutsideRoot = errors.New("path outside staging root")

const (
	dirMode  = 0o755
	fileMode = 0o600 // dumps may contain credentials and data; owner-only
)

// Store manages the staging directory tree.
type Store struct {
	root    string
	buffers *bufferPool
}

// NewStore creates a staging store rooted at root, creating the root
// directory if needed.
func NewStore(root string) (*Store, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, dirMode); err != nil {
		return nil, fmt.Errorf("creating staging root: %w", err)
	}
	return &Store{
		root:    root,
		buffers: newBufferPool(256 * 1024),
	}, nil
}

// Root returns the staging root directory.
func (s *Store) Root() string {
	return s.root
}

// Stage writes the stream to a temporary file next to the final path
// and renames it into place, so a partially written artifact is never
// visible under path. Returns the number of bytes staged.
func (s *Store) Stage(path string, r io.Reader) (int64, error) {
	if err := s.contains(path); err != nil {
		return 0, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return 0, fmt.Errorf("creating staging directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".staging-*")
	if err != nil {
		return 0, fmt.Errorf("creating staging temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := s.copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("writing staging file: %w", err)
	}

	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("setting staging file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("closing staging file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("finalizing staging file: %w", err)
	}

	return n, nil
}

// Open opens a previously staged artifact for reading.
func (s *Store) Open(path string) (io.ReadCloser, error) {
	if err := s.contains(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening staging file: %w", err)
	}
	return f, nil
}

// Remove deletes a staged artifact and prunes now-empty parent
// directories up to the root.
func (s *Store) Remove(path string) error {
	if err := s.contains(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing staging file: %w", err)
	}

	for dir := filepath.Dir(path); dir != s.root; dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			break // not empty or already gone
		}
	}
	return nil
}

// copy streams r into w through a pooled buffer.
func (s *Store) copy(w io.Writer, r io.Reader) (int64, error) {
	buf := s.buffers.get()
	defer s.buffers.put(buf)
	return io.CopyBuffer(w, r, buf.b)
}

// contains rejects paths that resolve outside the staging root.
func (s *Store) contains(path string) error {
	rel, err := filepath.Rel(s.root, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return nil
}
