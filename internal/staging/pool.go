package staging

import "sync"

// buffer wraps a byte slice so the pool stores pointers.
type buffer struct {
	b []byte
}

// bufferPool reuses copy buffers across staging operations.
type bufferPool struct {
	pool sync.Pool
}

func newBufferPool(size int) *bufferPool {
	return &bufferPool{
		pool: sync.Pool{
			New: func() any {
				return &buffer{b: make([]byte, size)}
			},
		},
	}
}

func (p *bufferPool) get() *buffer {
	return p.pool.Get().(*buffer)
}

func (p *bufferPool) put(buf *buffer) {
	p.pool.Put(buf)
}
