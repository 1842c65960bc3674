package backup

import (
	"io"
	"sync/atomic"
	"time"
)

// progressReader wraps an io.Reader, counts bytes, and invokes a
// callback roughly every updateEvery bytes. The orchestrator uses it
// to log upload progress for large artifacts.
type progressReader struct {
	reader      io.Reader
	bytesRead   atomic.Int64
	startTime   time.Time
	updateFunc  func(bytesRead int64, elapsed time.Duration)
	updateEvery int64
}

func newProgressReader(reader io.Reader, updateFunc func(bytesRead int64, elapsed time.Duration)) *progressReader {
	return &progressReader{
		reader:      reader,
		startTime:   time.Now(),
		updateFunc:  updateFunc,
		updateEvery: 10 * 1024 * 1024,
	}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		total := pr.bytesRead.Add(int64(n))
		if pr.updateFunc != nil && (total%pr.updateEvery) < int64(n) {
			pr.updateFunc(total, time.Since(pr.startTime))
		}
	}
	return n, err
}

// BytesRead returns the total number of bytes read so far.
func (pr *progressReader) BytesRead() int64 {
	return pr.bytesRead.Load()
}
