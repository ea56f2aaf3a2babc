package recorder

import (
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"github.com/zachmartin/fermia-camera/internal/media"
)

func TestOpenAVI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video_test.avi")
	w, err := OpenAVI(path, 15, 320, 240)
	if err != nil {
		t.Skipf("XVID writer unavailable: %v", err)
	}

	f := media.NewFrame(320, 240)
	for i := 0; i < 10; i++ {
		for p := range f.Pix {
			f.Pix[p] = byte(i * 20)
		}
		if err := w.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	// mismatched frames are scaled to the writer size
	if err := w.WriteFrame(media.NewFrame(64, 48)); err != nil {
		t.Fatalf("WriteFrame scaled: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err := os.Stat(path)
	if err != nil || st.Size() == 0 {
		t.Fatalf("output missing or empty: %v", err)
	}

	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer vc.Close()
	if n := int(vc.Get(gocv.VideoCaptureFrameCount)); n != 11 {
		t.Fatalf("frame count = %d, want 11", n)
	}
}
