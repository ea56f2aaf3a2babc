// Package acquisition abstracts the imaging hardware that feeds the publisher.
package acquisition

import (
	"context"
	"errors"
	"time"

	"github.com/zachmartin/fermia-camera/internal/media"
)

var (
	// ErrNoDevice is returned by Open when discovery finds nothing to open.
	ErrNoDevice = errors.New("acquisition: no device connected")

	// ErrTimeout is returned by Session.Next when no frame arrived in time.
	ErrTimeout = errors.New("acquisition: timed out waiting for frames")

	// ErrClosed is returned by Session.Next after Close.
	ErrClosed = errors.New("acquisition: session closed")
)

// StreamRequest is the resolution and rate asked of one channel.
type StreamRequest struct {
	Width  int
	Height int
	FPS    int
}

// Request configures a streaming session.
type Request struct {
	Color StreamRequest
	Depth StreamRequest
}

// DefaultRequest is the fixed request used by the publisher.
func DefaultRequest() Request {
	return Request{
		Color: StreamRequest{Width: media.Width, Height: media.Height, FPS: 15},
		Depth: StreamRequest{Width: media.Width, Height: media.Height, FPS: 6},
	}
}

// Source discovers and opens devices.
type Source interface {
	// Discover returns how many devices are currently connected.
	Discover(ctx context.Context) (int, error)

	// Open starts a streaming session on the first connected device.
	Open(ctx context.Context, req Request) (Session, error)
}

// Session is an open streaming session. Next and Close may be called from
// different goroutines.
type Session interface {
	// Next blocks until a paired frame arrives, timeout elapses, or ctx is done.
	Next(ctx context.Context, timeout time.Duration) (media.FramePair, error)

	Close() error
}
