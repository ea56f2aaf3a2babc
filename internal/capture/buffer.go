package capture

import (
	"sync"

	"github.com/zachmartin/fermia-camera/internal/media"
)

// Buffer is the single-slot local frame buffer of a stream server. Every read
// and write goes through the same mutex, and readers get their own copy, so
// no reader ever observes a frame that is being overwritten.
type Buffer struct {
	mu    sync.Mutex
	frame media.Frame
	gen   uint64
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Store replaces the buffered frame. The buffer takes ownership of f.
func (b *Buffer) Store(f media.Frame) {
	b.mu.Lock()
	b.frame = f
	b.gen++
	b.mu.Unlock()
}

// Snapshot returns a copy of the current frame and its generation. ok is
// false while the buffer is empty.
func (b *Buffer) Snapshot() (f media.Frame, gen uint64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frame.Empty() {
		return media.Frame{}, 0, false
	}
	return b.frame.Clone(), b.gen, true
}

// Generation returns how many frames have been stored.
func (b *Buffer) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen
}

// Size returns the dimensions of the current frame.
func (b *Buffer) Size() (width, height int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frame.Empty() {
		return 0, 0, false
	}
	return b.frame.Width, b.frame.Height, true
}
