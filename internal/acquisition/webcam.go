package acquisition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/zachmartin/fermia-camera/internal/media"
)

// Webcam is a Source backed by an OpenCV video capture device. Colour comes
// from the device; UVC devices carry no depth channel, so depth is delivered
// as an all-zero frame.
type Webcam struct {
	device string
	log    zerolog.Logger
}

// NewWebcam returns a Source for device, either an index ("0") or a path
// ("/dev/video0").
func NewWebcam(device string, log zerolog.Logger) *Webcam {
	return &Webcam{
		device: device,
		log:    log.With().Str("device", device).Logger(),
	}
}

func (w *Webcam) Discover(ctx context.Context) (int, error) {
	vc, err := gocv.OpenVideoCapture(w.device)
	if err != nil {
		return 0, nil
	}
	defer vc.Close()
	if !vc.IsOpened() {
		return 0, nil
	}
	return 1, nil
}

func (w *Webcam) Open(ctx context.Context, req Request) (Session, error) {
	vc, err := gocv.OpenVideoCapture(w.device)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", w.device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, ErrNoDevice
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(req.Color.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(req.Color.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(req.Color.FPS))

	s := &webcamSession{
		vc:       vc,
		req:      req,
		log:      w.log,
		frames:   make(chan media.FramePair, 1),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.readLoop()

	w.log.Info().
		Int("width", req.Color.Width).
		Int("height", req.Color.Height).
		Int("fps", req.Color.FPS).
		Msg("webcam session opened")
	return s, nil
}

// webcamSession owns the cgo capture handle from a single reader goroutine;
// Next only ever touches the frames channel.
type webcamSession struct {
	vc     *gocv.VideoCapture
	req    Request
	log    zerolog.Logger
	frames chan media.FramePair

	mu       sync.Mutex
	closed   bool
	stopChan chan struct{}
	done     chan struct{}
	readErr  error
}

func (s *webcamSession) readLoop() {
	defer close(s.done)

	img := gocv.NewMat()
	defer img.Close()

	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		if ok := s.vc.Read(&img); !ok || img.Empty() {
			s.mu.Lock()
			s.readErr = fmt.Errorf("webcam read failed")
			s.mu.Unlock()
			return
		}

		src, err := img.ToImage()
		if err != nil {
			s.log.Warn().Err(err).Msg("webcam frame conversion failed")
			continue
		}
		pair := media.FramePair{
			Color: media.FromImage(src, s.req.Color.Width, s.req.Color.Height),
			Depth: media.NewDepthFrame(s.req.Depth.Width, s.req.Depth.Height),
		}

		// Keep only the newest pair.
		select {
		case s.frames <- pair:
		default:
			select {
			case <-s.frames:
			default:
			}
			select {
			case s.frames <- pair:
			default:
			}
		}
	}
}

func (s *webcamSession) Next(ctx context.Context, timeout time.Duration) (media.FramePair, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case pair := <-s.frames:
		return pair, nil
	case <-s.done:
		s.mu.Lock()
		err := s.readErr
		s.mu.Unlock()
		if err == nil {
			err = ErrClosed
		}
		return media.FramePair{}, err
	case <-timer.C:
		return media.FramePair{}, ErrTimeout
	case <-ctx.Done():
		return media.FramePair{}, ctx.Err()
	}
}

func (s *webcamSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stopChan)
	s.mu.Unlock()

	<-s.done
	if err := s.vc.Close(); err != nil {
		return fmt.Errorf("close webcam: %w", err)
	}
	s.log.Info().Msg("webcam session closed")
	return nil
}
