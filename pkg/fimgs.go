// Package fimgs holds the image model, the border and convolution machinery
// and the filters built on top of them.
package fimgs

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidImage is returned for malformed pixel buffers or geometry.
	ErrInvalidImage = errors.New("invalid image")
	// ErrIOFailure is returned when reading or writing an image file fails.
	ErrIOFailure = errors.New("io failure")
	// ErrUnknownFilter is returned when a filter name is not registered.
	ErrUnknownFilter = errors.New("unknown filter")
)

// Image is an interleaved 8-bit RGB or RGBA raster.
type Image struct {
	Width    int
	Height   int
	Channels int
	Stride   int
	Pix      []byte
}

// NewImage allocates a zeroed image with a tight stride.
func NewImage(width, height, channels int) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Stride:   width * channels,
		Pix:      make([]byte, width*height*channels),
	}
}

// Validate checks the buffer invariants.
func (im *Image) Validate() error {
	switch {
	case im == nil:
		return errors.Wrap(ErrInvalidImage, "nil image")
	case im.Width <= 0 || im.Height <= 0:
		return errors.Wrapf(ErrInvalidImage, "bad size %dx%d", im.Width, im.Height)
	case im.Channels != 3 && im.Channels != 4:
		return errors.Wrapf(ErrInvalidImage, "expected 3 or 4 channels, got %d", im.Channels)
	case im.Pix == nil:
		return errors.Wrap(ErrInvalidImage, "nil pixel buffer")
	case im.Stride < im.Width*im.Channels:
		return errors.Wrapf(ErrInvalidImage, "stride %d is less than row size %d", im.Stride, im.Width*im.Channels)
	case len(im.Pix) != im.Stride*im.Height:
		return errors.Wrapf(ErrInvalidImage, "buffer has %d bytes, want %d", len(im.Pix), im.Stride*im.Height)
	}
	return nil
}

// PixOffset returns the index of the first channel of pixel (x, y).
func (im *Image) PixOffset(x, y int) int {
	return y*im.Stride + x*im.Channels
}

// HasAlpha reports whether the image carries an alpha channel.
func (im *Image) HasAlpha() bool {
	return im.Channels == 4
}

// colorChannels is the number of channels filters recolour; alpha is left alone.
func (im *Image) colorChannels() int {
	return min(im.Channels, 3)
}

// Clone returns a deep copy with a tight stride.
func (im *Image) Clone() *Image {
	res := NewImage(im.Width, im.Height, im.Channels)
	im.copyTo(res.Pix, res.Stride)
	return res
}

func (im *Image) copyTo(dst []byte, dstStride int) {
	rowSize := im.Width * im.Channels
	for y := 0; y < im.Height; y++ {
		copy(dst[y*dstStride:y*dstStride+rowSize], im.Pix[y*im.Stride:y*im.Stride+rowSize])
	}
}

// view wraps buf as an image with the geometry of im and a tight stride.
func (im *Image) view(buf []byte) *Image {
	return &Image{
		Width:    im.Width,
		Height:   im.Height,
		Channels: im.Channels,
		Stride:   im.Width * im.Channels,
		Pix:      buf[:im.Width*im.Height*im.Channels],
	}
}

// replace adopts the geometry of src and copies its pixels into im, reusing
// im.Pix when it is large enough.
func (im *Image) replace(src *Image) {
	n := src.Width * src.Height * src.Channels
	if cap(im.Pix) >= n {
		im.Pix = im.Pix[:n]
	} else {
		im.Pix = make([]byte, n)
	}
	im.Width, im.Height, im.Channels = src.Width, src.Height, src.Channels
	im.Stride = src.Width * src.Channels
	src.copyTo(im.Pix, im.Stride)
}

func (im *Image) ColorModel() color.Model {
	return color.NRGBAModel
}

func (im *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, im.Width, im.Height)
}

func (im *Image) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= im.Width || y >= im.Height {
		return color.NRGBA{}
	}
	i := im.PixOffset(x, y)
	c := color.NRGBA{im.Pix[i], im.Pix[i+1], im.Pix[i+2], 0xFF}
	if im.Channels == 4 {
		c.A = im.Pix[i+3]
	}
	return c
}

// ToNRGBA copies the image into a standard library raster.
func (im *Image) ToNRGBA() *image.NRGBA {
	res := image.NewNRGBA(im.Bounds())
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			i, j := im.PixOffset(x, y), res.PixOffset(x, y)
			copy(res.Pix[j:j+3], im.Pix[i:i+3])
			res.Pix[j+3] = 0xFF
			if im.Channels == 4 {
				res.Pix[j+3] = im.Pix[i+3]
			}
		}
	}
	return res
}

func isOpaque(im image.Image) bool {
	if o, ok := im.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// ChannelsFor picks 3 channels for opaque sources and 4 otherwise.
func ChannelsFor(src image.Image) int {
	if isOpaque(src) {
		return 3
	}
	return 4
}

// FromImage converts any image into an Image, writing into buf when it is
// large enough.
func FromImage(src image.Image, buf []byte) *Image {
	return FromImageChannels(src, ChannelsFor(src), buf)
}

// FromImageChannels is FromImage with an explicit channel count, 3 drops alpha.
func FromImageChannels(src image.Image, channels int, buf []byte) *Image {
	b := src.Bounds()
	n := b.Dx() * b.Dy() * channels
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	res := &Image{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Channels: channels,
		Stride:   b.Dx() * channels,
		Pix:      buf[:n],
	}

	nrgba, ok := src.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)
		b = nrgba.Bounds()
	}
	for y := 0; y < res.Height; y++ {
		for x := 0; x < res.Width; x++ {
			i := nrgba.PixOffset(b.Min.X+x, b.Min.Y+y)
			copy(res.Pix[res.PixOffset(x, y):], nrgba.Pix[i:i+channels])
		}
	}
	return res
}

func clampByte(v int) byte {
	return byte(min(max(v, 0), 255))
}
