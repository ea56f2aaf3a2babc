package acquisition

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/zachmartin/fermia-camera/internal/media"
)

func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "fsock")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "c.sock")
}

func startSocket(t *testing.T) (*Socket, string) {
	t.Helper()
	path := socketPath(t)
	s := NewSocket(path, zerolog.Nop())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Stop() })
	return s, path
}

func waitConnected(t *testing.T, s *Socket, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := s.Discover(context.Background()); n == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Discover never reported %d", want)
}

func sendPair(t *testing.T, conn net.Conn, seq uint64, sample uint16) {
	t.Helper()
	jpg, err := media.EncodeJPEG(media.NewFrame(media.Width, media.Height))
	if err != nil {
		t.Fatal(err)
	}
	d := media.NewDepthFrame(media.Width, media.Height)
	for i := range d.Samples {
		d.Samples[i] = sample
	}
	if _, err := conn.Write(EncodeMessage(KindColor, seq, jpg)); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Write(EncodeMessage(KindDepth, seq, media.EncodeDepth(d))); err != nil {
		t.Fatal(err)
	}
}

func TestSocketNoHelper(t *testing.T) {
	s, _ := startSocket(t)
	if n, err := s.Discover(context.Background()); n != 0 || err != nil {
		t.Fatalf("Discover = %d, %v", n, err)
	}
	if _, err := s.Open(context.Background(), DefaultRequest()); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("Open err = %v", err)
	}
}

func TestSocketDeliversPairs(t *testing.T) {
	s, path := startSocket(t)
	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitConnected(t, s, 1)

	sess, err := s.Open(context.Background(), DefaultRequest())
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	sendPair(t, conn, 1, 700)
	pair, err := sess.Next(context.Background(), 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if pair.Color.Width != media.Width || pair.Depth.Samples[0] != 700 {
		t.Fatalf("unexpected pair: %dx%d depth %d", pair.Color.Width, pair.Color.Height, pair.Depth.Samples[0])
	}

	conn.Close()
	waitConnected(t, s, 0)
	if _, err := sess.Next(context.Background(), 50*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("after disconnect err = %v", err)
	}
}

func TestSocketUnpairedMessagesDiscarded(t *testing.T) {
	s, path := startSocket(t)
	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitConnected(t, s, 1)

	sess, _ := s.Open(context.Background(), DefaultRequest())
	defer sess.Close()

	// colour for seq 1 never gets its depth; seq 2 is complete
	jpg, _ := media.EncodeJPEG(media.NewFrame(media.Width, media.Height))
	conn.Write(EncodeMessage(KindColor, 1, jpg))
	sendPair(t, conn, 2, 42)

	pair, err := sess.Next(context.Background(), 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if pair.Depth.Samples[0] != 42 {
		t.Fatalf("depth sample = %d", pair.Depth.Samples[0])
	}
}

func TestSocketSessionClose(t *testing.T) {
	s, path := startSocket(t)
	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitConnected(t, s, 1)

	sess, _ := s.Open(context.Background(), DefaultRequest())
	sess.Close()
	sess.Close()
	if _, err := sess.Next(context.Background(), time.Second); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v", err)
	}
}

func TestSelect(t *testing.T) {
	src, stop, err := Select("0", true, 2, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if syn, ok := src.(*Synthetic); !ok || syn.Pattern != PatternGrid {
		t.Fatalf("got %T", src)
	}
	stop()

	path := socketPath(t)
	src, stop, err = Select("unix:"+path, false, 0, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.(*Socket); !ok {
		t.Fatalf("got %T", src)
	}
	if err := stop(); err != nil {
		t.Fatal(err)
	}
}
