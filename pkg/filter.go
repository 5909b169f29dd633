package fimgs

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/rprtr258/fimgs/pkg/bufpool"
)

// Filter transforms an image in place.
type Filter interface {
	Name() string
	Apply(im *Image) error
	Describe() string
}

// Env is what filters share within one process: scratch memory and the
// convolution engine settings.
type Env struct {
	Pool   *bufpool.Pool
	Engine Engine
}

// scratch leases a buffer shaped like im. The caller releases it.
func (env Env) scratch(im *Image) (*Image, *bufpool.Buffer) {
	buf := env.Pool.Acquire(im.Width * im.Height * im.Channels)
	return im.view(buf.Bytes()), buf
}

// convolve runs c from im into a scratch image and copies the result back.
func (env Env) convolve(im *Image, c Convolution) error {
	tmp, buf := env.scratch(im)
	defer env.Pool.Release(buf)

	if err := env.Engine.Convolve(tmp, im, c); err != nil {
		return err
	}
	tmp.copyTo(im.Pix, im.Stride)
	return nil
}

// Chain applies filters left to right, stopping at the first failure.
type Chain []Filter

func (c Chain) Apply(im *Image) error {
	for _, f := range c {
		if err := f.Apply(im); err != nil {
			return errors.Wrapf(err, "filter %s", f.Name())
		}
	}
	return nil
}

func (c Chain) String() string {
	names := make([]string, len(c))
	for i, f := range c {
		names[i] = f.Name()
	}
	return strings.Join(names, ",")
}
