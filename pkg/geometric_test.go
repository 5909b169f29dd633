package fimgs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotate90Clockwise(t *testing.T) {
	a, b := []byte{1, 2, 3}, []byte{4, 5, 6}
	im := pixelImage(a, b)
	require.NoError(t, NewRotate90(testEnv(), false).Apply(im))

	assert.Equal(t, 1, im.Width)
	assert.Equal(t, 2, im.Height)
	assert.Equal(t, b, pixelAt(im, 0, 0))
	assert.Equal(t, a, pixelAt(im, 0, 1))
	require.NoError(t, im.Validate())
}

func TestRotate90CounterClockwise(t *testing.T) {
	a, b := []byte{1, 2, 3, 4}, []byte{5, 6, 7, 8}
	im := pixelImage(a, b)
	require.NoError(t, NewRotate90(testEnv(), true).Apply(im))

	assert.Equal(t, a, pixelAt(im, 0, 0))
	assert.Equal(t, b, pixelAt(im, 0, 1))
}

func TestRotate90Inverse(t *testing.T) {
	env := testEnv()
	src := gradientImage(5, 3, 4)

	im := src.Clone()
	require.NoError(t, Chain{NewRotate90(env, false), NewRotate90(env, true)}.Apply(im))
	assert.Equal(t, src, im)

	im = src.Clone()
	cw := NewRotate90(env, false)
	require.NoError(t, Chain{cw, cw, cw, cw}.Apply(im))
	assert.Equal(t, src, im)

	// every turn needs the same number of bytes
	assert.Equal(t, int64(1), env.Pool.Stats().Allocations)
}

func TestRotate90PaddedStride(t *testing.T) {
	im := &Image{Width: 2, Height: 1, Channels: 3, Stride: 8, Pix: []byte{1, 2, 3, 4, 5, 6, 0, 0}}
	require.NoError(t, NewRotate90(testEnv(), false).Apply(im))
	assert.Equal(t, &Image{Width: 1, Height: 2, Channels: 3, Stride: 3, Pix: []byte{4, 5, 6, 1, 2, 3}}, im)
}

func TestFlip(t *testing.T) {
	im := pixelImage([]byte{1, 1, 1}, []byte{2, 2, 2}, []byte{3, 3, 3})
	require.NoError(t, NewFlipHorizontal().Apply(im))
	assert.Equal(t, []byte{3, 3, 3, 2, 2, 2, 1, 1, 1}, im.Pix)

	src := gradientImage(4, 5, 3)
	im = src.Clone()
	require.NoError(t, NewFlipVertical().Apply(im))
	assert.Equal(t, pixelAt(src, 1, 0), pixelAt(im, 1, 4))
	assert.Equal(t, pixelAt(src, 2, 2), pixelAt(im, 2, 2))
	require.NoError(t, NewFlipVertical().Apply(im))
	assert.Equal(t, src, im)
}

func TestResize(t *testing.T) {
	im := uniformImage(8, 6, 3, 120)
	require.NoError(t, NewResize(4, 3, "bilinear").Apply(im))
	require.NoError(t, im.Validate())
	assert.Equal(t, [3]int{4, 3, 3}, [3]int{im.Width, im.Height, im.Channels})
	for _, v := range im.Pix {
		assert.InDelta(t, 120, int(v), 1)
	}

	im = gradientImage(8, 6, 4)
	require.NoError(t, NewResize(4, 0, "nearest").Apply(im))
	assert.Equal(t, [3]int{4, 3, 4}, [3]int{im.Width, im.Height, im.Channels})
}

func TestResizeWithoutSizeIsNoop(t *testing.T) {
	im := gradientImage(5, 5, 3)
	require.NoError(t, NewResize(0, -3, "bogus").Apply(im))
	assert.Equal(t, gradientImage(5, 5, 3), im)
	assert.Equal(t, "resize to 0x0, lanczos3", NewResize(0, -3, "bogus").Describe())
}
