package sandbox

import (
	"bytes"
	"sync"
)

// LimitedBuffer is a bytes.Buffer that stops accepting writes after a limit.
// Writes past the limit are discarded but reported as successful so the
// writer on the other end of a pipe is never blocked or failed.
type LimitedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

// NewLimitedBuffer returns a buffer holding at most limit bytes. A limit of
// zero or less means unlimited.
func NewLimitedBuffer(limit int) *LimitedBuffer {
	return &LimitedBuffer{limit: limit}
}

func (lb *LimitedBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.limit <= 0 {
		return lb.buf.Write(p)
	}
	if lb.truncated {
		return len(p), nil // discard silently
	}

	remaining := lb.limit - lb.buf.Len()
	if remaining <= 0 {
		lb.truncated = true
		return len(p), nil
	}

	if len(p) > remaining {
		lb.truncated = true
		lb.buf.Write(p[:remaining])
		return len(p), nil
	}

	return lb.buf.Write(p)
}

func (lb *LimitedBuffer) String() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.String()
}

// Truncated reports whether any write was cut off.
func (lb *LimitedBuffer) Truncated() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.truncated
}
