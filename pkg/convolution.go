package fimgs

import (
	"math"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/iter"
)

// Kernel is a row-major matrix of weights centred on the output pixel.
type Kernel struct {
	Width   int
	Height  int
	Weights []float64
}

// NewKernel builds a kernel from rows of equal length.
func NewKernel(rows [][]float64) Kernel {
	k := Kernel{Height: len(rows)}
	if k.Height > 0 {
		k.Width = len(rows[0])
	}
	k.Weights = make([]float64, 0, k.Width*k.Height)
	for _, row := range rows {
		k.Weights = append(k.Weights, row...)
	}
	return k
}

// RowKernel is a 1xN kernel, used for separable passes.
func RowKernel(weights ...float64) Kernel {
	return Kernel{Width: len(weights), Height: 1, Weights: weights}
}

// ColumnKernel is an Nx1 kernel.
func ColumnKernel(weights ...float64) Kernel {
	return Kernel{Width: 1, Height: len(weights), Weights: weights}
}

// Sum of all weights.
func (k Kernel) Sum() float64 {
	s := 0.0
	for _, w := range k.Weights {
		s += w
	}
	return s
}

// Scale returns a copy with every weight multiplied by f.
func (k Kernel) Scale(f float64) Kernel {
	res := Kernel{Width: k.Width, Height: k.Height, Weights: make([]float64, len(k.Weights))}
	for i, w := range k.Weights {
		res.Weights[i] = w * f
	}
	return res
}

func (k Kernel) valid() bool {
	return k.Width > 0 && k.Height > 0 && len(k.Weights) == k.Width*k.Height
}

var (
	BlurKernel = NewKernel([][]float64{
		{1, 1, 1},
		{1, 1, 1},
		{1, 1, 1},
	})
	WeakBlurKernel = NewKernel([][]float64{
		{0, 1, 0},
		{1, 1, 1},
		{0, 1, 0},
	})
	EmbossKernel = NewKernel([][]float64{
		{-2, -1, 0},
		{-1, 0, 1},
		{0, 1, 2},
	})
	SharpenKernel = NewKernel([][]float64{
		{0, -1, 0},
		{-1, 5, -1},
		{0, -1, 0},
	})
	EdgeEnhanceKernel = NewKernel([][]float64{
		{0, 0, 0},
		{-1, 1, 0},
		{0, 0, 0},
	})
	EdgeDetectKernel = NewKernel([][]float64{
		{1, 0, -1},
		{0, 0, 0},
		{-1, 0, 1},
	})
	LaplacianKernel = NewKernel([][]float64{
		{0, -1, 0},
		{-1, 4, -1},
		{0, -1, 0},
	})
	HorizontalLinesKernel = NewKernel([][]float64{
		{-1, -1, -1},
		{2, 2, 2},
		{-1, -1, -1},
	})
	VerticalLinesKernel = NewKernel([][]float64{
		{-1, 2, -1},
		{-1, 2, -1},
		{-1, 2, -1},
	})
)

// Convolution is one kernel pass: out = clamp(round(sum/Normalization + Bias)).
type Convolution struct {
	Kernel Kernel
	// Normalization divides the weighted sum, zero means 1.
	Normalization float64
	Bias          float64
	Border        BorderStrategy
	// PreserveAlpha copies the fourth channel instead of convolving it.
	PreserveAlpha bool
}

// Engine runs kernels over images. Workers > 1 splits rows between goroutines.
type Engine struct {
	Workers int
}

func (e Engine) forEachRow(height int, f func(y int)) {
	if e.Workers <= 1 || height < 2 {
		for y := 0; y < height; y++ {
			f(y)
		}
		return
	}
	rows := make([]int, height)
	for y := range rows {
		rows[y] = y
	}
	iter.Iterator[int]{MaxGoroutines: e.Workers}.ForEach(rows, func(y *int) {
		f(*y)
	})
}

// sample computes the raw weighted sum of one channel around (x, y).
// Zero-strategy samples outside the image count as zero-valued pixels.
func sample(src *Image, k Kernel, border BorderStrategy, x, y, c int) float64 {
	halfW, halfH := k.Width/2, k.Height/2
	sum := 0.0
	for ky := 0; ky < k.Height; ky++ {
		sy, okY := border.Resolve(y+ky-halfH, src.Height)
		if !okY {
			continue
		}
		row := sy * src.Stride
		for kx := 0; kx < k.Width; kx++ {
			w := k.Weights[ky*k.Width+kx]
			if w == 0 {
				continue
			}
			sx, okX := border.Resolve(x+kx-halfW, src.Width)
			if !okX {
				continue
			}
			sum += w * float64(src.Pix[row+sx*src.Channels+c])
		}
	}
	return sum
}

func checkPair(dst, src *Image) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if err := dst.Validate(); err != nil {
		return errors.Wrap(err, "destination")
	}
	if dst.Width != src.Width || dst.Height != src.Height || dst.Channels != src.Channels {
		return errors.Wrapf(ErrInvalidImage, "destination %dx%dx%d does not match source %dx%dx%d",
			dst.Width, dst.Height, dst.Channels, src.Width, src.Height, src.Channels)
	}
	if overlaps(dst.Pix, src.Pix) {
		return errors.Wrap(ErrInvalidImage, "convolution source and destination share memory")
	}
	return nil
}

// overlaps reports whether a and b share any byte of backing memory.
func overlaps(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	a0 := uintptr(unsafe.Pointer(unsafe.SliceData(a)))
	b0 := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	return a0 < b0+uintptr(len(b)) && b0 < a0+uintptr(len(a))
}

// sampleFloats is sample over a single-channel plane of w*h values.
func sampleFloats(plane []float64, w, h int, k Kernel, border BorderStrategy, x, y int) float64 {
	halfW, halfH := k.Width/2, k.Height/2
	sum := 0.0
	for ky := 0; ky < k.Height; ky++ {
		sy, okY := border.Resolve(y+ky-halfH, h)
		if !okY {
			continue
		}
		for kx := 0; kx < k.Width; kx++ {
			wt := k.Weights[ky*k.Width+kx]
			if wt == 0 {
				continue
			}
			sx, okX := border.Resolve(x+kx-halfW, w)
			if !okX {
				continue
			}
			sum += wt * plane[sy*w+sx]
		}
	}
	return sum
}

func (c Convolution) norm() float64 {
	if c.Normalization == 0 {
		return 1
	}
	return c.Normalization
}

// channels is how many leading channels of im the convolution touches.
func (c Convolution) channels(im *Image) int {
	if c.PreserveAlpha {
		return im.colorChannels()
	}
	return im.Channels
}

// Convolve applies c to every pixel and channel of src, writing into dst.
func (e Engine) Convolve(dst, src *Image, c Convolution) error {
	if err := checkPair(dst, src); err != nil {
		return err
	}
	if !c.Kernel.valid() {
		return errors.Errorf("malformed %dx%d kernel with %d weights", c.Kernel.Width, c.Kernel.Height, len(c.Kernel.Weights))
	}
	norm := c.norm()
	channels := c.channels(src)

	e.forEachRow(src.Height, func(y int) {
		for x := 0; x < src.Width; x++ {
			i, o := src.PixOffset(x, y), dst.PixOffset(x, y)
			for ch := 0; ch < channels; ch++ {
				v := sample(src, c.Kernel, c.Border, x, y, ch)/norm + c.Bias
				dst.Pix[o+ch] = clampByte(int(math.Round(v)))
			}
			for ch := channels; ch < src.Channels; ch++ {
				dst.Pix[o+ch] = src.Pix[i+ch]
			}
		}
	})
	return nil
}

// Correlate stores the unnormalized, unclamped weighted sums of one channel
// into out, one value per pixel in row-major order.
func (e Engine) Correlate(out []float64, src *Image, channel int, k Kernel, border BorderStrategy) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if !k.valid() {
		return errors.Errorf("malformed %dx%d kernel", k.Width, k.Height)
	}
	if channel < 0 || channel >= src.Channels {
		return errors.Errorf("channel %d out of range", channel)
	}
	if len(out) < src.Width*src.Height {
		return errors.Errorf("output has %d values, want %d", len(out), src.Width*src.Height)
	}
	e.forEachRow(src.Height, func(y int) {
		for x := 0; x < src.Width; x++ {
			out[y*src.Width+x] = sample(src, k, border, x, y, channel)
		}
	})
	return nil
}
