package batch

import (
	"io/fs"
	"path/filepath"

	"github.com/pkg/errors"

	fimgs "github.com/rprtr258/fimgs/pkg"
	"github.com/rprtr258/fimgs/pkg/imageio"
)

// Discover lists supported images under dir in lexical order. Outputs mirror
// the layout relative to dir inside outDir; formats that can only be read get
// a ".png" suffix appended to the output name. pattern, when set, is matched
// against file names with filepath.Match. Items get no chain.
func Discover(dir, outDir string, recursive bool, pattern string) ([]Item, error) {
	if pattern != "" {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, errors.Wrapf(err, "pattern %q", pattern)
		}
	}
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return nil, errors.Wrapf(fimgs.ErrIOFailure, "output directory %q: %s", outDir, err)
	}

	var items []Item
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if abs, err := filepath.Abs(path); err == nil && abs == absOut {
				return fs.SkipDir
			}
			if !recursive {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !imageio.IsSupported(path) {
			return nil
		}
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, d.Name()); !ok {
				return nil
			}
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		output := filepath.Join(outDir, rel)
		if !imageio.CanEncode(output) {
			output += ".png"
		}
		items = append(items, Item{Input: path, Output: output})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(fimgs.ErrIOFailure, "scan %q: %s", dir, err)
	}
	return items, nil
}
