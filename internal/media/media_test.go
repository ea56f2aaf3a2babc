package media

import (
	"bytes"
	"image/jpeg"
	"testing"
)

func TestDepthRoundTrip(t *testing.T) {
	d := NewDepthFrame(Width, Height)
	for i := range d.Samples {
		d.Samples[i] = uint16(i*7 + i>>3)
	}

	got, err := DecodeDepth(EncodeDepth(d), Width, Height)
	if err != nil {
		t.Fatalf("DecodeDepth: %v", err)
	}
	if got.Width != Width || got.Height != Height {
		t.Fatalf("shape = %dx%d, want %dx%d", got.Width, got.Height, Width, Height)
	}
	for i := range d.Samples {
		if got.Samples[i] != d.Samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got.Samples[i], d.Samples[i])
		}
	}
}

func TestDecodeDepthRejectsShortBuffer(t *testing.T) {
	if _, err := DecodeDepth(make([]byte, 100), Width, Height); err == nil {
		t.Fatal("expected error for truncated buffer")
	}
}

func TestJPEGRoundTripNormalisesSize(t *testing.T) {
	small := NewFrame(320, 180)
	for i := range small.Pix {
		small.Pix[i] = byte(i)
	}
	data, err := EncodeJPEG(small)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	f, err := DecodeJPEG(data, Width, Height)
	if err != nil {
		t.Fatalf("DecodeJPEG: %v", err)
	}
	if f.Width != Width || f.Height != Height || f.Empty() {
		t.Fatalf("decoded frame %dx%d empty=%v", f.Width, f.Height, f.Empty())
	}
}

func TestEncodeEmptyFrame(t *testing.T) {
	if _, err := EncodeJPEG(Frame{}); err != ErrEmptyFrame {
		t.Fatalf("err = %v, want ErrEmptyFrame", err)
	}
}

func TestPlaceholderEncodes(t *testing.T) {
	p := Placeholder()
	data, err := EncodeJPEG(p.Color)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("placeholder is not a valid jpeg: %v", err)
	}
	if b := img.Bounds(); b.Dx() != Width || b.Dy() != Height {
		t.Fatalf("placeholder bounds %v", b)
	}
	if len(p.Depth.Samples) != Width*Height {
		t.Fatalf("depth placeholder has %d samples", len(p.Depth.Samples))
	}
}

func TestColorizeRamp(t *testing.T) {
	d := DepthFrame{Width: 3, Height: 1, Samples: []uint16{0, 2125, 60000}}
	f := Colorize(d)

	// near: dark blue
	if f.Pix[0] != 0 || f.Pix[2] == 0 {
		t.Errorf("near pixel = %v, want blue", f.Pix[0:4])
	}
	// far (saturated): dark red
	if f.Pix[8] == 0 || f.Pix[10] != 0 {
		t.Errorf("far pixel = %v, want red", f.Pix[8:12])
	}
	for i := 3; i < len(f.Pix); i += 4 {
		if f.Pix[i] != 0xff {
			t.Fatalf("alpha at %d = %d", i, f.Pix[i])
		}
	}
}

func TestBGRSwapsChannels(t *testing.T) {
	f := Frame{Width: 1, Height: 1, Pix: []byte{10, 20, 30, 255}}
	got := f.BGR()
	if !bytes.Equal(got, []byte{30, 20, 10}) {
		t.Fatalf("BGR = %v", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	f := NewFrame(2, 2)
	c := f.Clone()
	c.Pix[0] = 9
	if f.Pix[0] != 0 {
		t.Fatal("clone shares pixel memory")
	}
}
