package publisher

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/zachmartin/fermia-camera/internal/acquisition"
	"github.com/zachmartin/fermia-camera/internal/media"
	"github.com/zachmartin/fermia-camera/internal/store"
)

// flakySource delivers `frames` pairs per session and then times out,
// simulating a device that keeps dropping off the bus.
type flakySource struct {
	mu      sync.Mutex
	devices int
	frames  int
	opens   int
}

func (s *flakySource) Discover(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices, nil
}

func (s *flakySource) Open(ctx context.Context, req acquisition.Request) (acquisition.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	return &flakySession{left: s.frames}, nil
}

func (s *flakySource) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

type flakySession struct {
	left int
}

func (s *flakySession) Next(ctx context.Context, timeout time.Duration) (media.FramePair, error) {
	if s.left == 0 {
		return media.FramePair{}, acquisition.ErrTimeout
	}
	s.left--
	f := media.NewFrame(64, 36)
	for i := range f.Pix {
		f.Pix[i] = 200
	}
	d := media.NewDepthFrame(media.Width, media.Height)
	d.Samples[0] = 1234
	return media.FramePair{Color: f, Depth: d}, nil
}

func (s *flakySession) Close() error { return errors.New("close glitch") }

func testOptions() Options {
	opts := DefaultOptions()
	opts.PlaceholderInterval = 10 * time.Millisecond
	opts.FrameTimeout = 10 * time.Millisecond
	opts.RetryDelay = 5 * time.Millisecond
	opts.MaxRetryDelay = 20 * time.Millisecond
	return opts
}

func run(t *testing.T, p *Publisher) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("publisher did not stop")
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestPlaceholderWhenNoDevice(t *testing.T) {
	ctx := context.Background()
	feed := store.NewFeed(store.NewMemoryStore())
	p, err := New(&flakySource{devices: 0}, feed, testOptions(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	stop := run(t, p)
	defer stop()

	waitFor(t, func() bool { return p.Stats().Placeholders >= 1 })

	color, err := feed.Color(ctx)
	if err != nil {
		t.Fatalf("colour entry missing: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(color))
	if err != nil {
		t.Fatalf("placeholder is not decodable: %v", err)
	}
	if b := img.Bounds(); b.Dx() != media.Width || b.Dy() != media.Height {
		t.Fatalf("placeholder bounds %v", b)
	}
	depth, err := feed.Depth(ctx)
	if err != nil {
		t.Fatalf("depth entry missing: %v", err)
	}
	for i, s := range depth.Samples {
		if s != 0 {
			t.Fatalf("placeholder depth sample %d = %d", i, s)
		}
	}

	// liveness keeps being refreshed while in placeholder mode
	waitFor(t, func() bool { return p.Stats().Placeholders >= 5 })
	if alive, _ := feed.PublisherAlive(ctx); !alive {
		t.Fatal("liveness marker not refreshed")
	}
	if p.Stats().Frames != 0 {
		t.Fatal("frames published without a device")
	}
}

func TestRecoversFromDeviceLoss(t *testing.T) {
	ctx := context.Background()
	feed := store.NewFeed(store.NewMemoryStore())
	src := &flakySource{devices: 1, frames: 3}
	p, err := New(src, feed, testOptions(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	stop := run(t, p)
	defer stop()

	waitFor(t, func() bool { return src.openCount() >= 3 })

	st := p.Stats()
	if st.DeviceLosses < 2 {
		t.Fatalf("device losses = %d", st.DeviceLosses)
	}
	if st.Frames < 6 {
		t.Fatalf("frames = %d, want frames from every reopened session", st.Frames)
	}
	if _, err := feed.Color(ctx); err != nil {
		t.Fatalf("colour entry: %v", err)
	}
}

func TestLatestFrameOverwrites(t *testing.T) {
	ctx := context.Background()
	feed := store.NewFeed(store.NewMemoryStore())
	src := &flakySource{devices: 1, frames: 1000000}
	p, _ := New(src, feed, testOptions(), zerolog.Nop())
	stop := run(t, p)

	waitFor(t, func() bool { return p.Stats().Frames >= 2 })
	stop()

	d, err := feed.Depth(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.Samples[0] != 1234 {
		t.Fatalf("depth entry holds %d, want device frame", d.Samples[0])
	}
}

func TestBackoff(t *testing.T) {
	base, max := time.Second, 30*time.Second
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{40, 30 * time.Second},
	}
	for _, c := range cases {
		if got := backoff(c.attempt, base, max); got != c.want {
			t.Errorf("backoff(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestBackoffKeepsPlaceholderFresh(t *testing.T) {
	src := &flakySource{devices: 1, frames: 0}
	opts := testOptions()
	// long enough that no reopen can happen while the test runs
	opts.RetryDelay = time.Minute
	opts.MaxRetryDelay = time.Minute
	p, err := New(src, store.NewFeed(store.NewMemoryStore()), opts, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	stop := run(t, p)
	defer stop()

	waitFor(t, func() bool { return p.Stats().Placeholders >= 10 })
	if n := src.openCount(); n != 1 {
		t.Fatalf("opens = %d, want 1 during backoff", n)
	}
	if l := p.Stats().DeviceLosses; l != 1 {
		t.Fatalf("device losses = %d, want 1", l)
	}
}

// endlessSession always has a frame ready and never looks at ctx.
type endlessSession struct{}

func (endlessSession) Next(ctx context.Context, timeout time.Duration) (media.FramePair, error) {
	return media.FramePair{
		Color: media.NewFrame(16, 16),
		Depth: media.NewDepthFrame(media.Width, media.Height),
	}, nil
}

func (endlessSession) Close() error { return nil }

type endlessSource struct{}

func (endlessSource) Discover(ctx context.Context) (int, error) { return 1, nil }

func (endlessSource) Open(ctx context.Context, req acquisition.Request) (acquisition.Session, error) {
	return endlessSession{}, nil
}

func TestRunStopsWhileFramesKeepArriving(t *testing.T) {
	p, err := New(endlessSource{}, store.NewFeed(store.NewMemoryStore()), testOptions(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	stop := run(t, p)
	waitFor(t, func() bool { return p.Stats().Frames >= 3 })
	stop()

	after := p.Stats().Frames
	time.Sleep(50 * time.Millisecond)
	if got := p.Stats().Frames; got != after {
		t.Fatalf("frames kept growing after Run returned: %d -> %d", after, got)
	}
}
