package acquisition

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zachmartin/fermia-camera/internal/media"
)

// Wire format of the socket source. Every message is a fixed header followed
// by the payload:
//
//	[0]     kind (KindColor or KindDepth)
//	[1]     flags (reserved, zero)
//	[2:10]  sequence number, little endian; a colour and a depth message with
//	        the same sequence form one pair
//	[10:14] payload length, little endian
//
// Colour payloads are JPEG, depth payloads are raw little-endian uint16
// samples of media.Width x media.Height.
const (
	KindColor byte = 1
	KindDepth byte = 2

	HeaderSize = 14

	maxPayload = 10 * 1024 * 1024
)

// EncodeMessage frames one payload for the socket source.
func EncodeMessage(kind byte, seq uint64, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = kind
	binary.LittleEndian.PutUint64(buf[2:10], seq)
	binary.LittleEndian.PutUint32(buf[10:14], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// Socket is a Source fed by an external capture helper over a Unix socket.
// The device counts as connected while a helper holds a connection; a new
// connection replaces the previous one.
type Socket struct {
	path string
	log  zerolog.Logger

	pairs chan media.FramePair

	mu       sync.Mutex
	listener net.Listener
	conn     net.Conn
	running  bool
	stopChan chan struct{}
}

// NewSocket creates a socket source listening on path once started.
func NewSocket(path string, log zerolog.Logger) *Socket {
	return &Socket{
		path:     path,
		log:      log.With().Str("component", "socket-source").Str("socket", path).Logger(),
		pairs:    make(chan media.FramePair, 1),
		stopChan: make(chan struct{}),
	}
}

// Start begins accepting helper connections.
func (s *Socket) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("already running")
	}

	os.Remove(s.path)
	l, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.path, err)
	}
	s.listener = l
	s.running = true

	s.log.Info().Msg("waiting for capture helper")
	go s.acceptLoop(l)
	return nil
}

// Stop closes the listener and any helper connection.
func (s *Socket) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopChan)
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	err := s.listener.Close()
	os.Remove(s.path)
	return err
}

// IsRunning reports whether the listener is up.
func (s *Socket) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Socket) acceptLoop(l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.conn = conn
		s.mu.Unlock()
		s.log.Info().Msg("capture helper connected")

		go s.readLoop(conn)
	}
}

func (s *Socket) readLoop(conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		s.log.Info().Msg("capture helper disconnected")
	}()

	var (
		header  = make([]byte, HeaderSize)
		pending media.FramePair
		haveSeq uint64
		have    byte
	)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Warn().Err(err).Msg("header read failed")
			}
			return
		}
		kind := header[0]
		seq := binary.LittleEndian.Uint64(header[2:10])
		length := binary.LittleEndian.Uint32(header[10:14])
		if length > maxPayload {
			s.log.Warn().Uint32("length", length).Msg("message too large, dropping helper")
			return
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(conn, payload); err != nil {
			s.log.Warn().Err(err).Msg("payload read failed")
			return
		}

		if seq != haveSeq {
			pending, have, haveSeq = media.FramePair{}, 0, seq
		}
		switch kind {
		case KindColor:
			f, err := media.DecodeJPEG(payload, media.Width, media.Height)
			if err != nil {
				s.log.Warn().Err(err).Uint64("seq", seq).Msg("bad colour message")
				continue
			}
			pending.Color, have = f, have|KindColor
		case KindDepth:
			d, err := media.DecodeDepth(payload, media.Width, media.Height)
			if err != nil {
				s.log.Warn().Err(err).Uint64("seq", seq).Msg("bad depth message")
				continue
			}
			pending.Depth, have = d, have|KindDepth
		default:
			s.log.Warn().Uint8("kind", kind).Msg("unknown message kind")
			continue
		}

		if have == KindColor|KindDepth {
			s.offer(pending)
			pending, have = media.FramePair{}, 0
		}
	}
}

// offer replaces any unread pair with p.
func (s *Socket) offer(p media.FramePair) {
	for {
		select {
		case s.pairs <- p:
			return
		default:
		}
		select {
		case <-s.pairs:
		default:
		}
	}
}

// Discover reports one device while a helper is connected.
func (s *Socket) Discover(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return 0, nil
	}
	return 1, nil
}

// Open returns a session over the current helper connection. The request is
// ignored; the helper decides resolution and rate.
func (s *Socket) Open(ctx context.Context, req Request) (Session, error) {
	if n, _ := s.Discover(ctx); n == 0 {
		return nil, ErrNoDevice
	}
	return &socketSession{src: s, closed: make(chan struct{})}, nil
}

type socketSession struct {
	src       *Socket
	closeOnce sync.Once
	closed    chan struct{}
}

func (ss *socketSession) Next(ctx context.Context, timeout time.Duration) (media.FramePair, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case p := <-ss.src.pairs:
		return p, nil
	case <-ss.closed:
		return media.FramePair{}, ErrClosed
	case <-t.C:
		return media.FramePair{}, ErrTimeout
	case <-ctx.Done():
		return media.FramePair{}, ctx.Err()
	}
}

func (ss *socketSession) Close() error {
	ss.closeOnce.Do(func() { close(ss.closed) })
	return nil
}
