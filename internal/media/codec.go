package media

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image/jpeg"
	"io"
)

// JPEGQuality matches the default quality OpenCV uses for imencode.
const JPEGQuality = 95

// EncodeJPEG compresses a frame as a baseline JPEG.
func EncodeJPEG(f Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJPEG(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJPEG compresses a frame as a baseline JPEG into w.
func WriteJPEG(w io.Writer, f Frame) error {
	if f.Empty() {
		return ErrEmptyFrame
	}
	if err := jpeg.Encode(w, f.Image(), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return fmt.Errorf("jpeg encode: %w", err)
	}
	return nil
}

// DecodeJPEG decompresses data and normalises it to width x height.
func DecodeJPEG(data []byte, width, height int) (Frame, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("jpeg decode: %w", err)
	}
	return FromImage(img, width, height), nil
}

// EncodeDepth serialises samples as little-endian uint16, two bytes per sample.
func EncodeDepth(d DepthFrame) []byte {
	out := make([]byte, len(d.Samples)*2)
	for i, s := range d.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], s)
	}
	return out
}

// DecodeDepth reshapes a raw sample buffer into a width x height depth frame.
// The buffer must hold exactly width*height samples.
func DecodeDepth(data []byte, width, height int) (DepthFrame, error) {
	want := width * height * 2
	if len(data) != want {
		return DepthFrame{}, fmt.Errorf("depth buffer is %d bytes, want %d", len(data), want)
	}
	d := DepthFrame{
		Width:   width,
		Height:  height,
		Samples: make([]uint16, width*height),
	}
	for i := range d.Samples {
		d.Samples[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	return d, nil
}
