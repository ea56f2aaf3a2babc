// Package capture keeps a stream server's local frame buffer filled from the
// shared store.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zachmartin/fermia-camera/internal/store"
)

// Intervals tunes the polling cadence.
type Intervals struct {
	Poll  time.Duration // after a successful decode
	Idle  time.Duration // while the store holds nothing
	Error time.Duration // after a decode or store failure
}

// DefaultIntervals returns the production cadence.
func DefaultIntervals() Intervals {
	return Intervals{
		Poll:  10 * time.Millisecond,
		Idle:  500 * time.Millisecond,
		Error: time.Second,
	}
}

// Loop is the background task that polls the store, decodes, and overwrites
// the buffer.
type Loop struct {
	decoder   Decoder
	buf       *Buffer
	intervals Intervals
	log       zerolog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewLoop creates a capture loop writing into buf.
func NewLoop(decoder Decoder, buf *Buffer, intervals Intervals, log zerolog.Logger) *Loop {
	return &Loop{
		decoder:   decoder,
		buf:       buf,
		intervals: intervals,
		log:       log.With().Str("component", "capture").Logger(),
	}
}

// Start launches the loop goroutine.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return fmt.Errorf("already running")
	}
	l.running = true
	l.stopChan = make(chan struct{})
	l.done = make(chan struct{})

	go l.run(ctx, l.stopChan, l.done)
	return nil
}

// Stop signals the loop and waits for it to exit.
func (l *Loop) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	close(l.stopChan)
	done := l.done
	l.mu.Unlock()

	<-done
	l.log.Info().Msg("capture stopped")
	return nil
}

// IsRunning returns whether the loop is running.
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loop) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	frameCount := 0
	waiting := false

	for {
		wait := l.intervals.Poll

		frame, err := l.decoder.Decode(ctx)
		switch {
		case err == nil:
			l.buf.Store(frame)
			frameCount++
			waiting = false
			if frameCount%900 == 0 {
				l.log.Debug().Int("frames", frameCount).Msg("capture progress")
			}
		case errors.Is(err, store.ErrNotFound):
			if !waiting {
				l.log.Info().Msg("waiting for publisher frames")
				waiting = true
			}
			wait = l.intervals.Idle
		case ctx.Err() != nil:
			return
		default:
			l.log.Warn().Err(err).Msg("frame decode failed, skipping")
			wait = l.intervals.Error
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}
