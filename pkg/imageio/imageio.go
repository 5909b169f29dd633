// Package imageio reads and writes image files as fimgs images.
package imageio

import (
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	fimgs "github.com/rprtr258/fimgs/pkg"
	"github.com/rprtr258/fimgs/pkg/bufpool"
)

// Extensions that Load understands, lowercase with the dot.
var Extensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp"}

// IsSupported reports whether path has one of Extensions.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// CanEncode reports whether Save can write path, judging by its extension.
func CanEncode(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

// Codec decodes any registered format and encodes by output extension.
type Codec struct {
	// Quality is the JPEG quality, 1..100. Zero means jpeg.DefaultQuality.
	Quality int
}

// Load decodes path into a buffer leased from pool. The caller releases the
// buffer once done with the image.
func (c Codec) Load(path string, pool *bufpool.Pool) (*fimgs.Image, *bufpool.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(fimgs.ErrIOFailure, "open %q: %s", path, err)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, nil, errors.Wrapf(fimgs.ErrIOFailure, "decode %q: %s", path, err)
	}

	b := src.Bounds()
	channels := fimgs.ChannelsFor(src)
	buf := pool.Acquire(b.Dx() * b.Dy() * channels)
	im := fimgs.FromImageChannels(src, channels, buf.Bytes())
	if err := im.Validate(); err != nil {
		pool.Release(buf)
		return nil, nil, errors.Wrapf(err, "decoded %s %q", format, path)
	}
	return im, buf, nil
}

// Encode writes im to w in the format named by ext.
func (c Codec) Encode(w io.Writer, ext string, im *fimgs.Image) error {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(w, im.ToNRGBA())
	case ".jpg", ".jpeg":
		q := c.Quality
		if q <= 0 || q > 100 {
			q = jpeg.DefaultQuality
		}
		return jpeg.Encode(w, im.ToNRGBA(), &jpeg.Options{Quality: q})
	case ".bmp":
		return bmp.Encode(w, im.ToNRGBA())
	case ".tif", ".tiff":
		return tiff.Encode(w, im.ToNRGBA(), &tiff.Options{Compression: tiff.Deflate})
	default:
		return errors.Errorf("no encoder for %q", ext)
	}
}

// Save encodes im into path, creating parent directories. The file appears
// under its final name only once fully written.
func (c Codec) Save(path string, im *fimgs.Image) error {
	if err := im.Validate(); err != nil {
		return err
	}
	ext := filepath.Ext(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(fimgs.ErrIOFailure, "create %q: %s", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*"+ext)
	if err != nil {
		return errors.Wrapf(fimgs.ErrIOFailure, "create temporary file for %q: %s", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := c.Encode(tmp, ext, im); err != nil {
		tmp.Close()
		return errors.Wrapf(fimgs.ErrIOFailure, "encode %q: %s", path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(fimgs.ErrIOFailure, "write %q: %s", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(fimgs.ErrIOFailure, "rename to %q: %s", path, err)
	}
	return nil
}
