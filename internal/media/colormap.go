package media

import "math"

// DepthScale converts millimetre samples to 8-bit intensity before the colour
// ramp is applied; 255/0.06 ≈ 4.25 m saturates to the top of the ramp.
const DepthScale = 0.06

// jet is the 256 entry blue→cyan→yellow→red ramp, stored as RGB.
var jet = buildJet()

func buildJet() [256][3]uint8 {
	var lut [256][3]uint8
	for i := range lut {
		x := float64(i) / 255
		lut[i] = [3]uint8{
			rampChannel(x, 0.75),
			rampChannel(x, 0.5),
			rampChannel(x, 0.25),
		}
	}
	return lut
}

func rampChannel(x, center float64) uint8 {
	v := 1.5 - math.Abs(4*(x-center))
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(math.Round(v * 255))
}

// scaleSample mirrors a saturating |s*DepthScale| conversion to uint8.
func scaleSample(s uint16) uint8 {
	v := math.Round(float64(s) * DepthScale)
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Colorize maps depth samples through the fixed colour ramp for display.
func Colorize(d DepthFrame) Frame {
	f := NewFrame(d.Width, d.Height)
	for i, s := range d.Samples {
		c := jet[scaleSample(s)]
		p := i * 4
		f.Pix[p] = c[0]
		f.Pix[p+1] = c[1]
		f.Pix[p+2] = c[2]
		f.Pix[p+3] = 0xff
	}
	return f
}
