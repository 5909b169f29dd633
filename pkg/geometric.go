package fimgs

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

type flipFilter struct {
	vertical bool
}

func NewFlipHorizontal() Filter { return flipFilter{} }
func NewFlipVertical() Filter   { return flipFilter{vertical: true} }

func (f flipFilter) Name() string {
	if f.vertical {
		return "flip_v"
	}
	return "flip_h"
}

func (f flipFilter) Describe() string {
	if f.vertical {
		return "mirrors rows top to bottom"
	}
	return "mirrors columns left to right"
}

func (f flipFilter) Apply(im *Image) error {
	if err := im.Validate(); err != nil {
		return err
	}
	rowSize := im.Width * im.Channels
	if f.vertical {
		tmp := make([]byte, rowSize)
		for top, bottom := 0, im.Height-1; top < bottom; top, bottom = top+1, bottom-1 {
			a := im.Pix[top*im.Stride : top*im.Stride+rowSize]
			b := im.Pix[bottom*im.Stride : bottom*im.Stride+rowSize]
			copy(tmp, a)
			copy(a, b)
			copy(b, tmp)
		}
		return nil
	}
	for y := 0; y < im.Height; y++ {
		for l, r := 0, im.Width-1; l < r; l, r = l+1, r-1 {
			i, j := im.PixOffset(l, y), im.PixOffset(r, y)
			for c := 0; c < im.Channels; c++ {
				im.Pix[i+c], im.Pix[j+c] = im.Pix[j+c], im.Pix[i+c]
			}
		}
	}
	return nil
}

type rotateFilter struct {
	counterClockwise bool
	env              Env
}

// NewRotate90 turns the image a quarter. Clockwise moves pixel (x, y) to
// (y, width-1-x), so the top row of the source becomes the left column read
// bottom up.
func NewRotate90(env Env, counterClockwise bool) Filter {
	return rotateFilter{counterClockwise: counterClockwise, env: env}
}

func (rotateFilter) Name() string { return "rotate90" }

func (f rotateFilter) Describe() string {
	if f.counterClockwise {
		return "quarter turn counter clockwise"
	}
	return "quarter turn clockwise"
}

func (f rotateFilter) Apply(im *Image) error {
	if err := im.Validate(); err != nil {
		return err
	}
	buf := f.env.Pool.Acquire(im.Width * im.Height * im.Channels)
	defer f.env.Pool.Release(buf)

	dst := &Image{
		Width:    im.Height,
		Height:   im.Width,
		Channels: im.Channels,
		Stride:   im.Height * im.Channels,
		Pix:      buf.Bytes(),
	}
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			nx, ny := y, im.Width-1-x
			if f.counterClockwise {
				nx, ny = im.Height-1-y, x
			}
			i, o := im.PixOffset(x, y), dst.PixOffset(nx, ny)
			copy(dst.Pix[o:o+im.Channels], im.Pix[i:i+im.Channels])
		}
	}
	im.replace(dst)
	return nil
}

var interpolations = map[string]resize.InterpolationFunction{
	"nearest":  resize.NearestNeighbor,
	"bilinear": resize.Bilinear,
	"bicubic":  resize.Bicubic,
	"mitchell": resize.MitchellNetravali,
	"lanczos2": resize.Lanczos2,
	"lanczos3": resize.Lanczos3,
}

// Interpolations lists the resampling kernels accepted by NewResize.
var Interpolations = []string{"nearest", "bilinear", "bicubic", "mitchell", "lanczos2", "lanczos3"}

type resizeFilter struct {
	width, height int
	interpolation string
}

// NewResize scales to width x height. A non-positive side keeps the aspect
// ratio, both non-positive leaves the image alone. Unknown interpolations
// mean lanczos3.
func NewResize(width, height int, interpolation string) Filter {
	if _, ok := interpolations[interpolation]; !ok {
		interpolation = "lanczos3"
	}
	return resizeFilter{width: max(width, 0), height: max(height, 0), interpolation: interpolation}
}

func (resizeFilter) Name() string { return "resize" }

func (f resizeFilter) Describe() string {
	return fmt.Sprintf("resize to %dx%d, %s", f.width, f.height, f.interpolation)
}

func (f resizeFilter) Apply(im *Image) error {
	if err := im.Validate(); err != nil {
		return err
	}
	if f.width == 0 && f.height == 0 {
		return nil
	}
	res := resize.Resize(uint(f.width), uint(f.height), im.ToNRGBA(), interpolations[f.interpolation])
	nrgba, ok := res.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(image.Rect(0, 0, res.Bounds().Dx(), res.Bounds().Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), res, res.Bounds().Min, draw.Src)
	}
	im.replace(FromImageChannels(nrgba, im.Channels, nil))
	return nil
}
