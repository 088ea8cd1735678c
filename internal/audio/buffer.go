package audio

import (
	"sync"
)

// CaptureBuffer accumulates recorded audio chunks until the recording stops.
// It is thread-safe: the capture callback and the stop path run on different
// goroutines. A capacity cap bounds memory for runaway recordings; chunks
// beyond the cap are truncated, not queued.
type CaptureBuffer struct {
	mu   sync.Mutex
	data []byte
	max  int
}

// NewCaptureBuffer creates a capture buffer bounded at max bytes
func NewCaptureBuffer(max int) *CaptureBuffer {
	return &CaptureBuffer{
		data: make([]byte, 0, 4096),
		max:  max,
	}
}

// Append adds a chunk to the buffer.
// Returns the number of bytes accepted (less than len(chunk) once the cap is hit).
func (b *CaptureBuffer) Append(chunk []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	space := b.max - len(b.data)
	if space <= 0 {
		return 0
	}
	if len(chunk) > space {
		chunk = chunk[:space]
	}
	b.data = append(b.data, chunk...)
	return len(chunk)
}

// Bytes returns a copy of the captured audio
func (b *CaptureBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Len returns the number of bytes captured so far
func (b *CaptureBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// IsFull returns true once the capacity cap has been reached
func (b *CaptureBuffer) IsFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data) >= b.max
}

// Reset discards the captured audio, keeping the buffer reusable
func (b *CaptureBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = b.data[:0]
}
