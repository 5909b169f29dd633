package fimgs

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// kernelFilter is a single convolution pass.
type kernelFilter struct {
	name     string
	describe string
	conv     Convolution
	env      Env
}

func (f kernelFilter) Name() string     { return f.name }
func (f kernelFilter) Describe() string { return f.describe }

func (f kernelFilter) Apply(im *Image) error {
	if err := im.Validate(); err != nil {
		return err
	}
	return f.env.convolve(im, f.conv)
}

// separableFilter convolves with a row kernel and then a column kernel. The
// row pass stays in float64 so the result equals the full 2D kernel.
type separableFilter struct {
	name     string
	describe string
	row, col Convolution
	env      Env
}

func (f separableFilter) Name() string     { return f.name }
func (f separableFilter) Describe() string { return f.describe }

func (f separableFilter) Apply(im *Image) error {
	if err := im.Validate(); err != nil {
		return err
	}
	if !f.col.Kernel.valid() {
		return errors.Errorf("malformed %dx%d kernel with %d weights", f.col.Kernel.Width, f.col.Kernel.Height, len(f.col.Kernel.Weights))
	}
	n := im.Width * im.Height
	channels := f.row.channels(im)
	rows := make([]float64, n*channels)
	rowNorm, colNorm := f.row.norm(), f.col.norm()
	for c := 0; c < channels; c++ {
		plane := rows[c*n : (c+1)*n]
		if err := f.env.Engine.Correlate(plane, im, c, f.row.Kernel, f.row.Border); err != nil {
			return err
		}
		for i := range plane {
			plane[i] = plane[i]/rowNorm + f.row.Bias
		}
	}

	f.env.Engine.forEachRow(im.Height, func(y int) {
		for x := 0; x < im.Width; x++ {
			o := im.PixOffset(x, y)
			for c := 0; c < channels; c++ {
				v := sampleFloats(rows[c*n:(c+1)*n], im.Width, im.Height, f.col.Kernel, f.col.Border, x, y)/colNorm + f.col.Bias
				im.Pix[o+c] = clampByte(int(math.Round(v)))
			}
		}
	})
	return nil
}

// GaussianWeights returns a normalized 1D gaussian of odd size ceil(2r)|1 with sigma r/2.
func GaussianWeights(radius float64) []float64 {
	size := int(math.Ceil(2*radius)) | 1
	sigma := radius / 2
	half := size / 2
	weights := make([]float64, size)
	sum := 0.0
	for i := range weights {
		d := float64(i - half)
		weights[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

// NewGaussianBlur is a separable gaussian; radius <= 0 means 5.
func NewGaussianBlur(env Env, radius float64, border BorderStrategy) Filter {
	if radius <= 0 {
		radius = 5
	}
	w := GaussianWeights(radius)
	return separableFilter{
		name:     "blur",
		describe: fmt.Sprintf("gaussian blur, radius %g, %s border", radius, border),
		row:      Convolution{Kernel: RowKernel(w...), Border: border, PreserveAlpha: true},
		col:      Convolution{Kernel: ColumnKernel(w...), Border: border, PreserveAlpha: true},
		env:      env,
	}
}

// NewBoxBlur averages a (2r+1)x(2r+1) square in two passes; radius <= 0 means 5.
func NewBoxBlur(env Env, radius int, border BorderStrategy) Filter {
	if radius <= 0 {
		radius = 5
	}
	w := make([]float64, 2*radius+1)
	for i := range w {
		w[i] = 1
	}
	norm := float64(len(w))
	return separableFilter{
		name:     "box_blur",
		describe: fmt.Sprintf("box blur, radius %d, %s border", radius, border),
		row:      Convolution{Kernel: RowKernel(w...), Normalization: norm, Border: border, PreserveAlpha: true},
		col:      Convolution{Kernel: ColumnKernel(w...), Normalization: norm, Border: border, PreserveAlpha: true},
		env:      env,
	}
}

// MotionKernel averages along a line of the given length through the centre.
func MotionKernel(length int, angle float64) Kernel {
	half := length / 2
	size := 2*half + 1
	weights := make([]float64, size*size)
	rad := angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	for i := -half; i <= half; i++ {
		x := half + int(math.Round(float64(i)*cos))
		y := half + int(math.Round(float64(i)*sin))
		weights[y*size+x]++
	}
	return Kernel{Width: size, Height: size, Weights: weights}
}

// NewMotionBlur smears along angle degrees; length <= 0 means 10.
func NewMotionBlur(env Env, length int, angle float64, border BorderStrategy) Filter {
	if length <= 0 {
		length = 10
	}
	k := MotionKernel(length, angle)
	return kernelFilter{
		name:     "motion_blur",
		describe: fmt.Sprintf("motion blur, length %d at %g degrees", length, angle),
		conv:     Convolution{Kernel: k, Normalization: k.Sum(), Border: border, PreserveAlpha: true},
		env:      env,
	}
}

// NewSharpen subtracts strength times each 4-neighbour; strength <= 0 means 1.
func NewSharpen(env Env, strength float64, border BorderStrategy) Filter {
	if strength <= 0 {
		strength = 1
	}
	s := strength
	return kernelFilter{
		name:     "sharpen",
		describe: fmt.Sprintf("sharpen, strength %g", strength),
		conv: Convolution{
			Kernel: NewKernel([][]float64{
				{0, -s, 0},
				{-s, 1 + 4*s, -s},
				{0, -s, 0},
			}),
			Border:        border,
			PreserveAlpha: true,
		},
		env: env,
	}
}

// NewEmboss is a diagonal relief around mid gray; strength <= 0 means 1.
func NewEmboss(env Env, strength float64, border BorderStrategy) Filter {
	if strength <= 0 {
		strength = 1
	}
	return kernelFilter{
		name:     "emboss",
		describe: fmt.Sprintf("emboss, strength %g", strength),
		conv: Convolution{
			Kernel:        EmbossKernel.Scale(strength),
			Bias:          128,
			Border:        border,
			PreserveAlpha: true,
		},
		env: env,
	}
}

// NewKernelFilter wraps one of the named kernels. Kernels with a positive sum
// are normalized by it.
func NewKernelFilter(env Env, name string, k Kernel, border BorderStrategy) Filter {
	norm := k.Sum()
	if norm <= 0 {
		norm = 1
	}
	return kernelFilter{
		name:     name,
		describe: fmt.Sprintf("%dx%d kernel, %s border", k.Width, k.Height, border),
		conv:     Convolution{Kernel: k, Normalization: norm, Border: border, PreserveAlpha: true},
		env:      env,
	}
}

// stretchFilter correlates every colour channel and linearly maps the
// overall minimum and maximum response to 0 and 255.
type stretchFilter struct {
	name   string
	kernel Kernel
	border BorderStrategy
	env    Env
}

func NewStretchFilter(env Env, name string, k Kernel, border BorderStrategy) Filter {
	return stretchFilter{name: name, kernel: k, border: border, env: env}
}

func (f stretchFilter) Name() string { return f.name }

func (f stretchFilter) Describe() string {
	return fmt.Sprintf("%dx%d kernel response stretched to full range", f.kernel.Width, f.kernel.Height)
}

func (f stretchFilter) Apply(im *Image) error {
	if err := im.Validate(); err != nil {
		return err
	}
	n := im.Width * im.Height
	channels := im.colorChannels()
	resp := make([]float64, n*channels)
	for c := 0; c < channels; c++ {
		if err := f.env.Engine.Correlate(resp[c*n:(c+1)*n], im, c, f.kernel, f.border); err != nil {
			return err
		}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range resp {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			i := im.PixOffset(x, y)
			for c := 0; c < channels; c++ {
				im.Pix[i+c] = stretch(resp[c*n+y*im.Width+x], lo, hi)
			}
		}
	}
	return nil
}

// stretch maps v from [lo, hi] to 0..255; a flat response maps to 0.
func stretch(v, lo, hi float64) byte {
	if hi <= lo {
		return 0
	}
	return clampByte(int(math.Round((v - lo) * 255 / (hi - lo))))
}

// lumaImage is a scratch copy of im with luma in every colour channel.
func (env Env) lumaImage(im *Image) (*Image, func()) {
	gray, buf := env.scratch(im)
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			i, o := im.PixOffset(x, y), gray.PixOffset(x, y)
			l := byte(luma(im.Pix[i], im.Pix[i+1], im.Pix[i+2]))
			for c := 0; c < gray.Channels; c++ {
				gray.Pix[o+c] = l
			}
		}
	}
	return gray, func() { env.Pool.Release(buf) }
}

// setGray writes v into the colour channels of pixel (x, y).
func setGray(im *Image, x, y int, v byte) {
	i := im.PixOffset(x, y)
	im.Pix[i], im.Pix[i+1], im.Pix[i+2] = v, v, v
}

var edgeOperators = map[string][2]Kernel{
	"sobel": {
		NewKernel([][]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}),
		NewKernel([][]float64{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}),
	},
	"prewitt": {
		NewKernel([][]float64{{-1, 0, 1}, {-1, 0, 1}, {-1, 0, 1}}),
		NewKernel([][]float64{{-1, -1, -1}, {0, 0, 0}, {1, 1, 1}}),
	},
	"scharr": {
		NewKernel([][]float64{{-3, 0, 3}, {-10, 0, 10}, {-3, 0, 3}}),
		NewKernel([][]float64{{-3, -10, -3}, {0, 0, 0}, {3, 10, 3}}),
	},
}

// EdgeOperators lists the gradient operators accepted by NewEdges.
var EdgeOperators = []string{"sobel", "prewitt", "scharr"}

type edgesFilter struct {
	operator    string
	sensitivity float64
	border      BorderStrategy
	env         Env
}

// NewEdges renders gradient magnitude as gray; gradients below
// max*(1-sensitivity) are dropped. sensitivity outside 0..1 means 0.5,
// unknown operators mean sobel.
func NewEdges(env Env, sensitivity float64, operator string, border BorderStrategy) Filter {
	if sensitivity < 0 || sensitivity > 1 {
		sensitivity = 0.5
	}
	if _, ok := edgeOperators[operator]; !ok {
		operator = "sobel"
	}
	return edgesFilter{operator: operator, sensitivity: sensitivity, border: border, env: env}
}

func (f edgesFilter) Name() string { return "edges" }

func (f edgesFilter) Describe() string {
	return fmt.Sprintf("%s edge magnitude, sensitivity %g", f.operator, f.sensitivity)
}

func (f edgesFilter) Apply(im *Image) error {
	if err := im.Validate(); err != nil {
		return err
	}
	gray, release := f.env.lumaImage(im)
	defer release()

	n := im.Width * im.Height
	gx, gy := make([]float64, n), make([]float64, n)
	op := edgeOperators[f.operator]
	if err := f.env.Engine.Correlate(gx, gray, 0, op[0], f.border); err != nil {
		return err
	}
	if err := f.env.Engine.Correlate(gy, gray, 0, op[1], f.border); err != nil {
		return err
	}

	maxMag := 0.0
	for i := range gx {
		gx[i] = math.Hypot(gx[i], gy[i])
		maxMag = math.Max(maxMag, gx[i])
	}
	threshold := maxMag * (1 - f.sensitivity)
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			v := byte(0)
			if g := gx[y*im.Width+x]; g > threshold {
				v = stretch(g, threshold, maxMag)
			}
			setGray(im, x, y, v)
		}
	}
	return nil
}

type outlineFilter struct {
	border BorderStrategy
	env    Env
}

// NewOutline renders the Laplacian of luma stretched to the full range.
func NewOutline(env Env, border BorderStrategy) Filter {
	return outlineFilter{border: border, env: env}
}

func (outlineFilter) Name() string     { return "outline" }
func (outlineFilter) Describe() string { return "laplacian of luma, stretched to full range" }

func (f outlineFilter) Apply(im *Image) error {
	if err := im.Validate(); err != nil {
		return err
	}
	gray, release := f.env.lumaImage(im)
	defer release()

	resp := make([]float64, im.Width*im.Height)
	if err := f.env.Engine.Correlate(resp, gray, 0, LaplacianKernel, f.border); err != nil {
		return err
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range resp {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			setGray(im, x, y, stretch(resp[y*im.Width+x], lo, hi))
		}
	}
	return nil
}
