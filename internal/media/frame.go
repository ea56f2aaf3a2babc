package media

import (
	"errors"
	"image"

	"golang.org/x/image/draw"
)

// Stream resolution shared by every producer and consumer.
const (
	Width  = 1280
	Height = 720
)

// ErrEmptyFrame is returned when an operation needs pixels and the frame has none.
var ErrEmptyFrame = errors.New("media: empty frame")

// Frame is a raw RGBA pixel buffer. Pix is laid out row major with a stride
// of 4*Width bytes.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// NewFrame allocates a zeroed (black, transparent) frame.
func NewFrame(width, height int) Frame {
	return Frame{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*4),
	}
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0 || len(f.Pix) != f.Width*f.Height*4
}

// Clone returns a deep copy of the frame.
func (f Frame) Clone() Frame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return Frame{Width: f.Width, Height: f.Height, Pix: pix}
}

// Image returns an *image.RGBA sharing the frame's pixel memory.
func (f Frame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// BGR returns the frame packed as 3-channel BGR, the layout OpenCV expects.
func (f Frame) BGR() []byte {
	out := make([]byte, f.Width*f.Height*3)
	for i, j := 0, 0; i+3 < len(f.Pix) && j+2 < len(out); i, j = i+4, j+3 {
		out[j] = f.Pix[i+2]
		out[j+1] = f.Pix[i+1]
		out[j+2] = f.Pix[i]
	}
	return out
}

// FromImage converts img into a Frame of the given size, scaling when the
// source bounds differ.
func FromImage(img image.Image, width, height int) Frame {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Rect, img, b, draw.Src, nil)
	}
	return Frame{Width: width, Height: height, Pix: dst.Pix}
}

// DepthFrame holds single-channel 16-bit depth samples, row major.
type DepthFrame struct {
	Width   int
	Height  int
	Samples []uint16
}

// NewDepthFrame allocates an all-zero depth frame.
func NewDepthFrame(width, height int) DepthFrame {
	return DepthFrame{
		Width:   width,
		Height:  height,
		Samples: make([]uint16, width*height),
	}
}

// FramePair is one acquisition cycle: a colour frame and the depth frame
// captured alongside it.
type FramePair struct {
	Color Frame
	Depth DepthFrame
}

// Placeholder returns the all-zero pair published while no device is present.
func Placeholder() FramePair {
	color := NewFrame(Width, Height)
	for i := 3; i < len(color.Pix); i += 4 {
		color.Pix[i] = 0xff
	}
	return FramePair{
		Color: color,
		Depth: NewDepthFrame(Width, Height),
	}
}
