package acquisition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zachmartin/fermia-camera/internal/media"
)

func TestSyntheticDelivers(t *testing.T) {
	ctx := context.Background()
	for _, p := range []Pattern{PatternColorBars, PatternGradient, PatternGrid} {
		t.Run(p.String(), func(t *testing.T) {
			src := &Synthetic{Pattern: p}
			sess, err := src.Open(ctx, DefaultRequest())
			if err != nil {
				t.Fatal(err)
			}
			defer sess.Close()

			pair, err := sess.Next(ctx, time.Second)
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if pair.Color.Empty() || pair.Color.Width != media.Width {
				t.Fatalf("colour frame %dx%d", pair.Color.Width, pair.Color.Height)
			}
			if len(pair.Depth.Samples) != media.Width*media.Height {
				t.Fatalf("depth has %d samples", len(pair.Depth.Samples))
			}
		})
	}
}

func TestSyntheticUnplugged(t *testing.T) {
	ctx := context.Background()
	src := &Synthetic{}
	sess, err := src.Open(ctx, DefaultRequest())
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	src.SetConnected(false)
	if n, _ := src.Discover(ctx); n != 0 {
		t.Fatalf("Discover = %d after unplug", n)
	}
	if _, err := sess.Next(ctx, 50*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Next err = %v, want ErrTimeout", err)
	}
	if _, err := src.Open(ctx, DefaultRequest()); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("Open err = %v, want ErrNoDevice", err)
	}
}

func TestSyntheticClose(t *testing.T) {
	ctx := context.Background()
	sess, _ := (&Synthetic{}).Open(ctx, Request{
		Color: StreamRequest{Width: 8, Height: 8, FPS: 1},
		Depth: StreamRequest{Width: 8, Height: 8, FPS: 1},
	})
	sess.Close()
	sess.Close()
	if _, err := sess.Next(ctx, time.Second); !errors.Is(err, ErrClosed) {
		t.Fatalf("Next after Close = %v", err)
	}
}
