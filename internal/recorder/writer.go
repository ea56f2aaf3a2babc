package recorder

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/zachmartin/fermia-camera/internal/media"
)

// Codec is the FourCC used for every recording.
const Codec = "XVID"

// Writer appends frames to a video file. Close flushes and releases it.
type Writer interface {
	WriteFrame(f media.Frame) error
	Close() error
}

// WriterFactory allocates a Writer for path at the given rate and size.
type WriterFactory func(path string, fps float64, width, height int) (Writer, error)

type aviWriter struct {
	vw     *gocv.VideoWriter
	width  int
	height int
}

// OpenAVI is the WriterFactory backed by OpenCV's VideoWriter.
func OpenAVI(path string, fps float64, width, height int) (Writer, error) {
	vw, err := gocv.VideoWriterFile(path, Codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("open video writer %s: %w", path, err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("open video writer %s: codec %s unavailable", path, Codec)
	}
	return &aviWriter{vw: vw, width: width, height: height}, nil
}

func (w *aviWriter) WriteFrame(f media.Frame) error {
	if f.Width != w.width || f.Height != w.height {
		f = media.FromImage(f.Image(), w.width, w.height)
	}
	mat, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.BGR())
	if err != nil {
		return fmt.Errorf("frame to mat: %w", err)
	}
	defer mat.Close()
	return w.vw.Write(mat)
}

func (w *aviWriter) Close() error {
	return w.vw.Close()
}
