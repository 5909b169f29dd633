package fimgs

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// pointFilter recolours every pixel independently of its neighbours.
// Only the first three channels are passed to the pixel function.
type pointFilter struct {
	name     string
	describe string
	// setup is called once per Apply and returns the per-pixel function
	setup func(im *Image) func(x, y int, px []byte)
}

func (f pointFilter) Name() string     { return f.name }
func (f pointFilter) Describe() string { return f.describe }

func (f pointFilter) Apply(im *Image) error {
	if err := im.Validate(); err != nil {
		return err
	}
	pixel := f.setup(im)
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			i := im.PixOffset(x, y)
			pixel(x, y, im.Pix[i:i+3])
		}
	}
	return nil
}

func same(f func(px []byte)) func(*Image) func(x, y int, px []byte) {
	return func(*Image) func(x, y int, px []byte) {
		return func(_, _ int, px []byte) { f(px) }
	}
}

// luma in 16.16 fixed point, BT.601 weights.
func luma(r, g, b byte) int {
	return (19595*int(r) + 38470*int(g) + 7471*int(b)) >> 16
}

func NewGrayscale() Filter {
	return pointFilter{
		name:     "grayscale",
		describe: "replaces colour with BT.601 luma",
		setup: same(func(px []byte) {
			g := byte(luma(px[0], px[1], px[2]))
			px[0], px[1], px[2] = g, g, g
		}),
	}
}

func NewSepia() Filter {
	return pointFilter{
		name:     "sepia",
		describe: "warm brown toning",
		setup: same(func(px []byte) {
			r, g, b := float64(px[0]), float64(px[1]), float64(px[2])
			px[0] = clampByte(int(0.393*r + 0.769*g + 0.189*b))
			px[1] = clampByte(int(0.349*r + 0.686*g + 0.168*b))
			px[2] = clampByte(int(0.272*r + 0.534*g + 0.131*b))
		}),
	}
}

func NewInvert() Filter {
	return pointFilter{
		name:     "invert",
		describe: "negative of every colour channel",
		setup: same(func(px []byte) {
			px[0], px[1], px[2] = 255-px[0], 255-px[1], 255-px[2]
		}),
	}
}

// lut builds a filter from a per-channel lookup table.
func lut(name, describe string, f func(v int) int) Filter {
	var table [256]byte
	for v := range table {
		table[v] = clampByte(f(v))
	}
	return pointFilter{
		name:     name,
		describe: describe,
		setup: same(func(px []byte) {
			px[0], px[1], px[2] = table[px[0]], table[px[1]], table[px[2]]
		}),
	}
}

// NewBrightness multiplies every channel by factor; factor <= 0 means 1.2.
func NewBrightness(factor float64) Filter {
	if factor <= 0 {
		factor = 1.2
	}
	return lut("brightness", fmt.Sprintf("multiplies channels by %g", factor), func(v int) int {
		return int(math.Round(float64(v) * factor))
	})
}

// NewContrast stretches channels around 128; factor < 0 means 1.5.
func NewContrast(factor float64) Filter {
	if factor < 0 {
		factor = 1.5
	}
	return lut("contrast", fmt.Sprintf("scales distance from mid gray by %g", factor), func(v int) int {
		return int(math.Round(float64(v-128)*factor)) + 128
	})
}

// NewSaturation scales the distance of each channel from the pixel's luma;
// factor < 0 means 1.5, 0 gives grayscale.
func NewSaturation(factor float64) Filter {
	if factor < 0 {
		factor = 1.5
	}
	return pointFilter{
		name:     "saturation",
		describe: fmt.Sprintf("scales colourfulness by %g", factor),
		setup: same(func(px []byte) {
			gray := luma(px[0], px[1], px[2])
			for c := 0; c < 3; c++ {
				px[c] = clampByte(gray + int(math.Round(float64(int(px[c])-gray)*factor)))
			}
		}),
	}
}

// NewThreshold makes pixels with luma >= value white and the rest black;
// value outside 0..255 means 128.
func NewThreshold(value int) Filter {
	if value < 0 || value > 255 {
		value = 128
	}
	return pointFilter{
		name:     "threshold",
		describe: fmt.Sprintf("black and white split at luma %d", value),
		setup: same(func(px []byte) {
			v := byte(0)
			if luma(px[0], px[1], px[2]) >= value {
				v = 255
			}
			px[0], px[1], px[2] = v, v, v
		}),
	}
}

// NewPosterize reduces each channel to levels values; levels outside 2..256 means 4.
func NewPosterize(levels int) Filter {
	if levels < 2 || levels > 256 {
		levels = 4
	}
	step := 256 / levels
	return lut("posterize", fmt.Sprintf("%d levels per channel", levels), func(v int) int {
		return min(v/step*step, (levels-1)*step)
	})
}

// NewNoise adds uniform noise of up to intensity*255 to each channel;
// intensity outside 0..1 means 0.1. A zero seed picks one from the clock.
func NewNoise(intensity float64, seed int64) Filter {
	if intensity < 0 || intensity > 1 {
		intensity = 0.1
	}
	amplitude := intensity * 255
	return pointFilter{
		name:     "noise",
		describe: fmt.Sprintf("uniform noise, intensity %g", intensity),
		setup: func(*Image) func(x, y int, px []byte) {
			s := seed
			if s == 0 {
				s = time.Now().UnixNano()
			}
			rng := rand.New(rand.NewSource(s))
			return func(_, _ int, px []byte) {
				for c := 0; c < 3; c++ {
					delta := (rng.Float64()*2 - 1) * amplitude
					px[c] = clampByte(int(math.Round(float64(px[c]) + delta)))
				}
			}
		},
	}
}

// NewVignette darkens pixels proportionally to their distance from the centre;
// strength outside 0..1 means 0.5.
func NewVignette(strength float64) Filter {
	if strength < 0 || strength > 1 {
		strength = 0.5
	}
	return pointFilter{
		name:     "vignette",
		describe: fmt.Sprintf("darkened corners, strength %g", strength),
		setup: func(im *Image) func(x, y int, px []byte) {
			cx, cy := float64(im.Width-1)/2, float64(im.Height-1)/2
			maxDist := math.Hypot(cx, cy)
			return func(x, y int, px []byte) {
				if maxDist == 0 {
					return
				}
				factor := 1 - math.Hypot(float64(x)-cx, float64(y)-cy)/maxDist*strength
				for c := 0; c < 3; c++ {
					px[c] = clampByte(int(math.Round(float64(px[c]) * factor)))
				}
			}
		},
	}
}
