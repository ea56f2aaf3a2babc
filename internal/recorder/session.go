package recorder

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/zachmartin/fermia-camera/internal/media"
)

// FrameSource is the local frame buffer a recording copies from.
type FrameSource interface {
	Snapshot() (f media.Frame, gen uint64, ok bool)
}

// session owns one writer from Start until its goroutine exits.
type session struct {
	id       string
	path     string
	filename string
	fps      float64
	writer   Writer
	source   FrameSource
	log      zerolog.Logger

	stop   chan struct{}
	done   chan struct{}
	frames atomic.Int64
}

// run appends a copy of the buffer to the writer once per 1/fps until stop
// is closed. The writer is always released on the way out, including after
// a write failure or panic.
func (s *session) run() {
	defer close(s.done)
	defer s.release()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("recording loop crashed")
		}
	}()

	ticker := time.NewTicker(time.Duration(float64(time.Second) / s.fps))
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		f, _, ok := s.source.Snapshot()
		if !ok {
			continue
		}
		if err := s.writer.WriteFrame(f); err != nil {
			s.log.Error().Err(err).Msg("recording write failed, stopping")
			return
		}
		s.frames.Add(1)
	}
}

func (s *session) release() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("video writer release crashed")
		}
	}()
	if err := s.writer.Close(); err != nil {
		s.log.Error().Err(err).Msg("video writer release failed")
		return
	}
	s.log.Info().Int64("frames", s.frames.Load()).Str("path", s.path).Msg("video saved")
}

// wait blocks until the goroutine has exited or timeout elapses and reports
// whether it exited.
func (s *session) wait(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.done:
		return true
	case <-t.C:
		return false
	}
}
