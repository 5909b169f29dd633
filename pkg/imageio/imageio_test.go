package imageio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fimgs "github.com/rprtr258/fimgs/pkg"
	"github.com/rprtr258/fimgs/pkg/bufpool"
)

func testImage(channels int) *fimgs.Image {
	im := fimgs.NewImage(7, 5, channels)
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			i := im.PixOffset(x, y)
			im.Pix[i] = byte(x * 30)
			im.Pix[i+1] = byte(y * 50)
			im.Pix[i+2] = byte(x * y)
			if channels == 4 {
				im.Pix[i+3] = byte(100 + x)
			}
		}
	}
	return im
}

func TestLosslessRoundTrip(t *testing.T) {
	for _, test := range []struct {
		ext      string
		channels int
	}{
		{".png", 3},
		{".png", 4},
		{".bmp", 3},
		{".tiff", 3},
		{".TIF", 3},
	} {
		t.Run(test.ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out"+test.ext)
			src := testImage(test.channels)
			require.NoError(t, Codec{}.Save(path, src))

			pool := bufpool.New()
			got, buf, err := Codec{}.Load(path, pool)
			require.NoError(t, err)
			assert.Equal(t, src, got)

			pool.Release(buf)
			assert.Equal(t, 1, pool.Stats().Free)
		})
	}
}

func TestJPEGRoundTripIsClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jpg")
	src := fimgs.NewImage(16, 16, 3)
	for i := range src.Pix {
		src.Pix[i] = 90
	}
	require.NoError(t, Codec{Quality: 95}.Save(path, src))

	got, _, err := Codec{}.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Channels)
	for _, v := range got.Pix {
		assert.InDelta(t, 90, int(v), 3)
	}
}

func TestSaveCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.png")
	require.NoError(t, Codec{}.Save(path, testImage(3)))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveErrors(t *testing.T) {
	dir := t.TempDir()
	err := Codec{}.Save(filepath.Join(dir, "out.xyz"), testImage(3))
	require.ErrorIs(t, err, fimgs.ErrIOFailure)

	err = Codec{}.Save(filepath.Join(dir, "out.png"), &fimgs.Image{})
	require.ErrorIs(t, err, fimgs.ErrInvalidImage)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Codec{}.Load(filepath.Join(dir, "missing.png"), nil)
	require.ErrorIs(t, err, fimgs.ErrIOFailure)

	garbage := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))
	_, _, err = Codec{}.Load(garbage, nil)
	require.ErrorIs(t, err, fimgs.ErrIOFailure)
}

func TestIsSupported(t *testing.T) {
	for path, want := range map[string]bool{
		"a.png":          true,
		"b/c.JPEG":       true,
		"x.webp":         true,
		"x.tif":          true,
		"notes.txt":      false,
		"no_ext":         false,
		"archive.png.gz": false,
	} {
		assert.Equal(t, want, IsSupported(path), path)
	}
}

func TestCanEncode(t *testing.T) {
	for _, ext := range Extensions {
		path := filepath.Join(t.TempDir(), "x"+ext)
		err := Codec{}.Save(path, testImage(3))
		if CanEncode(path) {
			assert.NoError(t, err, ext)
		} else {
			assert.ErrorIs(t, err, fimgs.ErrIOFailure, ext)
		}
	}
	assert.False(t, CanEncode("a.webp"))
	assert.True(t, CanEncode("a.JPEG"))
}
