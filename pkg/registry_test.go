package fimgs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryHasEveryBuiltin(t *testing.T) {
	r := NewRegistry(testEnv())
	for _, name := range []string{
		"grayscale", "sepia", "invert", "brightness", "contrast", "saturation", "threshold", "posterize",
		"noise", "vignette", "blur", "box_blur", "motion_blur", "sharpen", "emboss", "edges", "outline",
		"median", "weakblur", "edgeenhance", "edgedetect1", "edgedetect2", "horizontallines", "verticallines",
		"flip_h", "flip_v", "rotate90", "resize", "cluster", "quadtree", "hilbert", "hilbertdarken", "zcurve",
	} {
		f, err := r.Create(name, nil)
		require.NoError(t, err, name)
		assert.Equal(t, name, f.Name())
		assert.NotEmpty(t, f.Describe(), name)
		_, ok := r.Usage(name)
		assert.True(t, ok, name)
	}
	assert.IsIncreasing(t, r.Names())
}

func TestEveryBuiltinAppliesToTinyImages(t *testing.T) {
	r := NewRegistry(testEnv())
	for _, name := range r.Names() {
		for _, size := range [][2]int{{1, 1}, {2, 3}, {5, 4}} {
			for _, channels := range []int{3, 4} {
				f, err := r.Create(name, Params{"seed": 1})
				require.NoError(t, err)
				im := gradientImage(size[0], size[1], channels)
				require.NoError(t, f.Apply(im), "%s %v %d", name, size, channels)
				require.NoError(t, im.Validate(), name)
			}
		}
	}
}

func TestRegistryUnknownFilter(t *testing.T) {
	r := NewRegistry(testEnv())
	_, err := r.Create("nope", nil)
	require.ErrorIs(t, err, ErrUnknownFilter)
	assert.Contains(t, err.Error(), `"nope"`)

	chain, err := r.Build([]Spec{{Name: "grayscale"}, {Name: "missing"}})
	require.ErrorIs(t, err, ErrUnknownFilter)
	assert.Nil(t, chain)
}

func TestRegistryBuildAppliesInOrder(t *testing.T) {
	r := NewRegistry(testEnv())
	chain, err := r.Build([]Spec{
		{Name: "brightness", Params: Params{"factor": 2.0}},
		{Name: "invert"},
	})
	require.NoError(t, err)
	assert.Equal(t, "brightness,invert", chain.String())

	im := pixelImage([]byte{10, 100, 200})
	require.NoError(t, chain.Apply(im))
	assert.Equal(t, []byte{235, 55, 0}, im.Pix)
}

func TestRegistryRegisterOverrides(t *testing.T) {
	r := NewRegistry(testEnv())
	r.Register("grayscale", "", func(Env, Params) Filter { return NewInvert() })
	f, err := r.Create("grayscale", nil)
	require.NoError(t, err)
	assert.Equal(t, "invert", f.Name())
}

func TestRegistryParamsFallBack(t *testing.T) {
	r := NewRegistry(testEnv())
	f, err := r.Create("threshold", Params{"value": "300"})
	require.NoError(t, err)
	assert.Equal(t, "black and white split at luma 128", f.Describe())

	f, err = r.Create("edges", Params{"operator": "PREWITT", "sensitivity": 2})
	require.NoError(t, err)
	assert.Equal(t, "prewitt edge magnitude, sensitivity 0.5", f.Describe())
}

func TestChainErrorNamesFilter(t *testing.T) {
	err := Chain{NewGrayscale()}.Apply(&Image{})
	require.ErrorIs(t, err, ErrInvalidImage)
	assert.Contains(t, err.Error(), "filter grayscale")

	require.NoError(t, Chain{}.Apply(nil))
}
