package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/zachmartin/fermia-camera/internal/media"
	"github.com/zachmartin/fermia-camera/internal/store"
)

func fastIntervals() Intervals {
	return Intervals{Poll: time.Millisecond, Idle: 5 * time.Millisecond, Error: 5 * time.Millisecond}
}

func solid(v byte) media.Frame {
	return solidSized(v, media.Width, media.Height)
}

func solidSized(v byte, w, h int) media.Frame {
	f := media.NewFrame(w, h)
	for i := range f.Pix {
		f.Pix[i] = v
	}
	return f
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestBufferEmpty(t *testing.T) {
	b := NewBuffer()
	if _, _, ok := b.Snapshot(); ok {
		t.Fatal("new buffer should be empty")
	}
	if _, _, ok := b.Size(); ok {
		t.Fatal("new buffer has no size")
	}
}

func TestBufferSnapshotIsCopy(t *testing.T) {
	b := NewBuffer()
	b.Store(solid(7))
	f, gen, ok := b.Snapshot()
	if !ok || gen != 1 {
		t.Fatalf("Snapshot ok=%v gen=%d", ok, gen)
	}
	f.Pix[0] = 99
	g, _, _ := b.Snapshot()
	if g.Pix[0] != 7 {
		t.Fatal("snapshot aliases buffer memory")
	}
}

func TestBufferNoTornReads(t *testing.T) {
	b := NewBuffer()
	b.Store(solidSized(0, 64, 64))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		v := byte(0)
		for {
			select {
			case <-stop:
				return
			default:
			}
			v++
			b.Store(solidSized(v, 64, 64))
		}
	}()

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				f, _, _ := b.Snapshot()
				first := f.Pix[0]
				for j, p := range f.Pix {
					if p != first {
						t.Errorf("torn read at byte %d: %d != %d", j, p, first)
						return
					}
				}
			}
		}()
	}

	time.Sleep(200 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestLoopColor(t *testing.T) {
	ctx := context.Background()
	feed := store.NewFeed(store.NewMemoryStore())
	buf := NewBuffer()
	loop := NewLoop(ColorDecoder{Feed: feed}, buf, fastIntervals(), zerolog.Nop())

	if err := loop.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer loop.Stop()
	if err := loop.Start(ctx); err == nil {
		t.Fatal("second Start should fail")
	}

	time.Sleep(20 * time.Millisecond)
	if _, _, ok := buf.Snapshot(); ok {
		t.Fatal("buffer filled before anything was published")
	}

	small := media.NewFrame(320, 180)
	data, _ := media.EncodeJPEG(small)
	feed.PutColor(ctx, data)

	waitFor(t, func() bool { _, _, ok := buf.Snapshot(); return ok })
	w, h, _ := buf.Size()
	if w != media.Width || h != media.Height {
		t.Fatalf("buffered frame %dx%d, want normalised size", w, h)
	}
}

func TestLoopSkipsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	feed := store.NewFeed(s)
	buf := NewBuffer()
	loop := NewLoop(ColorDecoder{Feed: feed}, buf, fastIntervals(), zerolog.Nop())

	data, _ := media.EncodeJPEG(solid(128))
	feed.PutColor(ctx, data)
	loop.Start(ctx)
	defer loop.Stop()

	waitFor(t, func() bool { return buf.Generation() > 0 })

	feed.PutColor(ctx, []byte("garbage, not a jpeg"))
	time.Sleep(30 * time.Millisecond)
	gen := buf.Generation()
	time.Sleep(30 * time.Millisecond)
	if buf.Generation() != gen {
		t.Fatal("corrupt entries should not reach the buffer")
	}
	if _, _, ok := buf.Snapshot(); !ok {
		t.Fatal("previous frame should survive a decode failure")
	}
	if !loop.IsRunning() {
		t.Fatal("loop died on decode failure")
	}
}

func TestLoopDepth(t *testing.T) {
	ctx := context.Background()
	feed := store.NewFeed(store.NewMemoryStore())
	buf := NewBuffer()
	loop := NewLoop(DepthDecoder{Feed: feed}, buf, fastIntervals(), zerolog.Nop())

	d := media.NewDepthFrame(media.Width, media.Height)
	feed.PutDepth(ctx, media.EncodeDepth(d))
	loop.Start(ctx)
	defer loop.Stop()

	waitFor(t, func() bool { _, _, ok := buf.Snapshot(); return ok })
	f, _, _ := buf.Snapshot()
	// zero depth sits at the blue end of the ramp
	if f.Pix[0] != 0 || f.Pix[2] == 0 || f.Pix[3] != 0xff {
		t.Fatalf("pixel 0 = %v", f.Pix[:4])
	}
}

func TestLoopStop(t *testing.T) {
	loop := NewLoop(ColorDecoder{Feed: store.NewFeed(store.NewMemoryStore())}, NewBuffer(), fastIntervals(), zerolog.Nop())
	loop.Start(context.Background())

	done := make(chan struct{})
	go func() {
		loop.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	if loop.IsRunning() {
		t.Fatal("loop still running after Stop")
	}
	if err := loop.Stop(); err != nil {
		t.Fatal(err)
	}
}
