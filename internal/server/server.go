// Package server is the HTTP surface of one stream server: the viewer page,
// the multipart snapshot stream, photo capture, and the recording lifecycle.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/zachmartin/fermia-camera/internal/capture"
	"github.com/zachmartin/fermia-camera/internal/config"
	"github.com/zachmartin/fermia-camera/internal/recorder"
	"github.com/zachmartin/fermia-camera/internal/store"
)

// Options wires a Server to its collaborators.
type Options struct {
	Variant config.Variant

	// Buffer is the local frame buffer shared with Capture and Recorder.
	Buffer   *capture.Buffer
	Capture  *capture.Loop
	Recorder *recorder.Controller

	// Feed is only used to report publisher liveness; may be nil.
	Feed *store.Feed

	PhotosDir      string
	StreamFPS      int
	AllowedOrigins []string
	ICEServers     []string

	Log zerolog.Logger
}

// Server owns one variant's frame state and background tasks.
type Server struct {
	opts   Options
	log    zerolog.Logger
	frames *jpegCache
	rtc    *rtcHub
	router *mux.Router
	now    func() time.Time

	httpServer *http.Server

	mu      sync.Mutex
	stopped bool

	closeOnce sync.Once
	closing   chan struct{}
}

// ErrServerStopped is returned by Start after Shutdown.
var ErrServerStopped = errors.New("server: shut down")

// New builds a server; nothing runs until Start.
func New(opts Options) *Server {
	if opts.StreamFPS <= 0 {
		opts.StreamFPS = 30
	}
	log := opts.Log.With().Str("variant", opts.Variant.Name).Logger()
	s := &Server{
		opts:    opts,
		log:     log,
		frames:  newJPEGCache(opts.Buffer),
		now:     time.Now,
		closing: make(chan struct{}),
	}
	s.rtc = newRTCHub(s.frames, s.frameInterval(), opts.ICEServers, s.closing, log)
	s.router = s.routes()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) frameInterval() time.Duration {
	return time.Second / time.Duration(s.opts.StreamFPS)
}

// Start launches the capture task. It fails once Shutdown has begun.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrServerStopped
	}
	if s.opts.Capture == nil {
		return nil
	}
	return s.opts.Capture.Start(ctx)
}

// ListenAndServe starts the capture task and serves HTTP on addr until
// Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve is ListenAndServe on an existing listener. It returns nil when the
// server was shut down, including before Serve was reached.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	if err := s.Start(ctx); err != nil {
		l.Close()
		if errors.Is(err, ErrServerStopped) {
			return nil
		}
		return err
	}
	s.log.Info().Str("addr", l.Addr().String()).Msg("stream server listening")
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown ends every viewer stream, stops HTTP, finalises any recording,
// and stops the capture task.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.opts.Recorder != nil {
		if err := s.opts.Recorder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.rtc.Close()
	if s.opts.Capture != nil {
		if err := s.opts.Capture.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	s.log.Info().Msg("stream server stopped")
	return errors.Join(errs...)
}
