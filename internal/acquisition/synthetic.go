package acquisition

import (
	"context"
	"sync"
	"time"

	"github.com/zachmartin/fermia-camera/internal/media"
)

// Pattern selects the synthetic test image.
type Pattern int

const (
	PatternColorBars Pattern = iota
	PatternGradient
	PatternGrid
)

func (p Pattern) String() string {
	switch p {
	case PatternColorBars:
		return "ColorBars"
	case PatternGradient:
		return "Gradient"
	case PatternGrid:
		return "Grid"
	default:
		return "Unknown"
	}
}

var colorBars = [][3]uint8{
	{192, 192, 192}, {192, 192, 0}, {0, 192, 192}, {0, 192, 0},
	{192, 0, 192}, {192, 0, 0}, {0, 0, 192},
}

// Synthetic is a Source that reports one device unless disconnected and generates a moving
// test pattern with a matching depth ramp. It stands in for hardware during
// development and tests.
type Synthetic struct {
	Pattern Pattern

	mu        sync.Mutex
	frame     int
	unplugged bool
}

// SetConnected simulates plugging the device in or pulling it out.
func (s *Synthetic) SetConnected(connected bool) {
	s.mu.Lock()
	s.unplugged = !connected
	s.mu.Unlock()
}

func (s *Synthetic) Discover(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unplugged {
		return 0, nil
	}
	return 1, nil
}

func (s *Synthetic) Open(ctx context.Context, req Request) (Session, error) {
	if n, _ := s.Discover(ctx); n == 0 {
		return nil, ErrNoDevice
	}
	fps := req.Color.FPS
	if fps <= 0 {
		fps = 15
	}
	return &syntheticSession{
		src:      s,
		req:      req,
		interval: time.Second / time.Duration(fps),
		closed:   make(chan struct{}),
	}, nil
}

func (s *Synthetic) next(req Request) media.FramePair {
	s.mu.Lock()
	n := s.frame
	s.frame++
	s.mu.Unlock()

	w, h := req.Color.Width, req.Color.Height
	color := media.NewFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var c [3]uint8
			switch s.Pattern {
			case PatternGradient:
				c = [3]uint8{uint8((x + n*4) * 255 / w), uint8(y * 255 / h), 128}
			case PatternGrid:
				if (x+n)%64 == 0 || (y+n)%64 == 0 {
					c = [3]uint8{255, 255, 255}
				}
			default:
				c = colorBars[((x+n*4)%w)*len(colorBars)/w]
			}
			p := (y*w + x) * 4
			color.Pix[p], color.Pix[p+1], color.Pix[p+2], color.Pix[p+3] = c[0], c[1], c[2], 0xff
		}
	}

	depth := media.NewDepthFrame(req.Depth.Width, req.Depth.Height)
	for y := 0; y < depth.Height; y++ {
		v := uint16(500 + y*4000/depth.Height)
		for x := 0; x < depth.Width; x++ {
			depth.Samples[y*depth.Width+x] = v
		}
	}
	return media.FramePair{Color: color, Depth: depth}
}

type syntheticSession struct {
	src      *Synthetic
	req      Request
	interval time.Duration

	once   sync.Once
	closed chan struct{}
}

func (s *syntheticSession) Next(ctx context.Context, timeout time.Duration) (media.FramePair, error) {
	if n, _ := s.src.Discover(ctx); n == 0 {
		return media.FramePair{}, ErrTimeout
	}
	wait := s.interval
	if wait > timeout {
		wait = timeout
	}
	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-s.closed:
		return media.FramePair{}, ErrClosed
	case <-ctx.Done():
		return media.FramePair{}, ctx.Err()
	case <-t.C:
		return s.src.next(s.req), nil
	}
}

func (s *syntheticSession) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}
