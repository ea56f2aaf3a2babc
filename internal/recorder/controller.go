// Package recorder owns the start/stop video recording lifecycle of a stream
// server: Idle → Recording on Start, Recording → Idle on Stop.
package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zachmartin/fermia-camera/internal/outfile"
)

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
	ErrNoFrame          = errors.New("no camera frame available")
)

// Options configures a Controller.
type Options struct {
	Dir         string        // output directory, e.g. "videos"
	Prefix      string        // file name prefix, e.g. "video"
	FPS         float64       // frames appended per second
	JoinTimeout time.Duration // how long Stop waits for the writer to release
	Factory     WriterFactory // defaults to OpenAVI
}

// StopResult describes a finished recording.
type StopResult struct {
	Filename string
	Frames   int64
	// Finalized is false when the writer goroutine did not exit within the
	// join timeout; it still owns the writer and will release it on exit.
	Finalized bool
}

// Controller serialises recording state for one stream server. At most one
// session is active at a time.
type Controller struct {
	opts   Options
	source FrameSource
	log    zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	active *session
}

// NewController creates an idle controller recording from source.
func NewController(source FrameSource, opts Options, log zerolog.Logger) *Controller {
	if opts.Factory == nil {
		opts.Factory = OpenAVI
	}
	return &Controller{
		opts:   opts,
		source: source,
		log:    log.With().Str("component", "recorder").Logger(),
		now:    time.Now,
	}
}

// Active reports whether a recording is in progress.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Start allocates a writer sized to the current frame and launches the
// recording goroutine. It returns the output file name without waiting.
func (c *Controller) Start() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return "", ErrAlreadyRecording
	}
	f, _, ok := c.source.Snapshot()
	if !ok {
		return "", ErrNoFrame
	}

	out, err := outfile.Create(c.opts.Dir, c.opts.Prefix, ".avi", c.now())
	if err != nil {
		return "", err
	}
	path := out.Name()
	out.Close()

	w, err := c.opts.Factory(path, c.opts.FPS, f.Width, f.Height)
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("allocate writer: %w", err)
	}

	id := uuid.NewString()
	s := &session{
		id:       id,
		path:     path,
		filename: filepath.Base(path),
		fps:      c.opts.FPS,
		writer:   w,
		source:   c.source,
		log:      c.log.With().Str("session", id).Str("file", filepath.Base(path)).Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	c.active = s

	s.log.Info().Float64("fps", c.opts.FPS).Int("width", f.Width).Int("height", f.Height).Msg("recording started")
	return s.filename, nil
}

// Stop signals the active session and waits up to JoinTimeout for the writer
// to be released. The controller is idle afterwards either way.
func (c *Controller) Stop() (StopResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.active
	if s == nil {
		return StopResult{}, ErrNotRecording
	}
	close(s.stop)
	finalized := s.wait(c.opts.JoinTimeout)
	c.active = nil

	if !finalized {
		s.log.Warn().Dur("timeout", c.opts.JoinTimeout).Msg("writer still finalising after stop")
	}
	return StopResult{
		Filename:  s.filename,
		Frames:    s.frames.Load(),
		Finalized: finalized,
	}, nil
}

// Close stops any active recording. It is the shutdown hook of the owning
// server.
func (c *Controller) Close() error {
	_, err := c.Stop()
	if errors.Is(err, ErrNotRecording) {
		return nil
	}
	return err
}
