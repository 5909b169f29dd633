package fimgs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradientImage(w, h, channels int) *Image {
	im := NewImage(w, h, channels)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := im.PixOffset(x, y)
			im.Pix[i] = byte(x * 255 / max(w-1, 1))
			im.Pix[i+1] = byte(y * 255 / max(h-1, 1))
			im.Pix[i+2] = byte((x + y) * 7)
			if channels == 4 {
				im.Pix[i+3] = 200
			}
		}
	}
	return im
}

func uniformImage(w, h, channels int, v byte) *Image {
	im := NewImage(w, h, channels)
	for i := range im.Pix {
		im.Pix[i] = v
	}
	return im
}

func TestConvolveIdentity(t *testing.T) {
	src := gradientImage(7, 5, 3)
	dst := NewImage(7, 5, 3)
	identity := NewKernel([][]float64{{0, 0, 0}, {0, 1, 0}, {0, 0, 0}})

	for _, border := range []BorderStrategy{BorderMirror, BorderClamp, BorderWrap, BorderZero} {
		require.NoError(t, Engine{}.Convolve(dst, src, Convolution{Kernel: identity, Border: border}))
		assert.Equal(t, src.Pix, dst.Pix, border.String())
	}
}

func TestConvolveClampsRange(t *testing.T) {
	src := gradientImage(9, 9, 3)
	dst := NewImage(9, 9, 3)
	big := NewKernel([][]float64{{-50, 90, -50}, {90, 100, 90}, {-50, 90, -50}})

	for _, bias := range []float64{-1e6, 0, 1e6} {
		require.NoError(t, Engine{}.Convolve(dst, src, Convolution{Kernel: big, Bias: bias}))
		switch {
		case bias < 0:
			assert.Equal(t, uniformImage(9, 9, 3, 0).Pix, dst.Pix)
		case bias > 0:
			assert.Equal(t, uniformImage(9, 9, 3, 255).Pix, dst.Pix)
		}
	}
}

func TestConvolveBoxBlurOfUniformImage(t *testing.T) {
	src := uniformImage(6, 4, 4, 120)
	dst := NewImage(6, 4, 4)
	for _, border := range []BorderStrategy{BorderMirror, BorderClamp, BorderWrap} {
		require.NoError(t, Engine{Workers: 3}.Convolve(dst, src, Convolution{
			Kernel:        BlurKernel,
			Normalization: BlurKernel.Sum(),
			Border:        border,
		}))
		assert.Equal(t, src.Pix, dst.Pix, border.String())
	}
}

func TestConvolveZeroBorderCountsZeroSamples(t *testing.T) {
	src := uniformImage(3, 3, 3, 90)
	dst := NewImage(3, 3, 3)
	require.NoError(t, Engine{}.Convolve(dst, src, Convolution{
		Kernel:        BlurKernel,
		Normalization: 9,
		Border:        BorderZero,
	}))

	// corner sees 4 real pixels out of 9, edge 6, centre 9
	assert.Equal(t, byte(40), dst.Pix[dst.PixOffset(0, 0)])
	assert.Equal(t, byte(60), dst.Pix[dst.PixOffset(1, 0)])
	assert.Equal(t, byte(90), dst.Pix[dst.PixOffset(1, 1)])
}

func TestConvolvePreserveAlpha(t *testing.T) {
	src := gradientImage(4, 4, 4)
	dst := NewImage(4, 4, 4)
	require.NoError(t, Engine{}.Convolve(dst, src, Convolution{
		Kernel:        EmbossKernel,
		Bias:          128,
		PreserveAlpha: true,
	}))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, byte(200), dst.Pix[dst.PixOffset(x, y)+3])
		}
	}
}

func TestConvolveRejectsAliasing(t *testing.T) {
	src := gradientImage(4, 4, 3)
	err := Engine{}.Convolve(src, src, Convolution{Kernel: BlurKernel})
	require.ErrorIs(t, err, ErrInvalidImage)

	err = Engine{}.Convolve(NewImage(3, 4, 3), src, Convolution{Kernel: BlurKernel})
	require.ErrorIs(t, err, ErrInvalidImage)
}

func TestConvolveRejectsOverlappingBuffers(t *testing.T) {
	buf := make([]byte, 2*5*5*3)
	at := func(offset int) *Image {
		return &Image{Width: 5, Height: 5, Channels: 3, Stride: 15, Pix: buf[offset : offset+75]}
	}

	for _, offset := range []int{3, 15, 74} {
		err := Engine{}.Convolve(at(offset), at(0), Convolution{Kernel: BlurKernel})
		assert.ErrorIs(t, err, ErrInvalidImage, "destination at %d", offset)
		err = Engine{}.Convolve(at(0), at(offset), Convolution{Kernel: BlurKernel})
		assert.ErrorIs(t, err, ErrInvalidImage, "source at %d", offset)
	}

	require.NoError(t, Engine{}.Convolve(at(75), at(0), Convolution{Kernel: BlurKernel}))
}

func TestCorrelateKeepsSign(t *testing.T) {
	src := NewImage(3, 1, 3)
	src.Pix[src.PixOffset(0, 0)] = 10
	src.Pix[src.PixOffset(2, 0)] = 30
	out := make([]float64, 3)
	require.NoError(t, Engine{}.Correlate(out, src, 0, RowKernel(1, 0, -1), BorderClamp))
	assert.Equal(t, []float64{10, -20, -30}, out)
}

func TestEngineParallelMatchesSequential(t *testing.T) {
	src := gradientImage(31, 17, 3)
	seq, par := NewImage(31, 17, 3), NewImage(31, 17, 3)
	c := Convolution{Kernel: SharpenKernel, Border: BorderWrap}
	require.NoError(t, Engine{}.Convolve(seq, src, c))
	require.NoError(t, Engine{Workers: 4}.Convolve(par, src, c))
	assert.Equal(t, seq.Pix, par.Pix)
}

func BenchmarkConvolve(b *testing.B) {
	src := gradientImage(256, 256, 3)
	dst := NewImage(256, 256, 3)
	c := Convolution{Kernel: BlurKernel, Normalization: 9}
	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = Engine{}.Convolve(dst, src, c)
		}
	})
	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = Engine{Workers: 4}.Convolve(dst, src, c)
		}
	})
}
