package fimgs

import "strings"

// BorderStrategy decides which source pixel stands in for a coordinate that
// falls outside the image.
type BorderStrategy int

const (
	BorderMirror BorderStrategy = iota
	BorderClamp
	BorderWrap
	BorderZero
)

var borderNames = [...]string{
	BorderMirror: "mirror",
	BorderClamp:  "clamp",
	BorderWrap:   "wrap",
	BorderZero:   "zero",
}

func (s BorderStrategy) String() string {
	if s < 0 || int(s) >= len(borderNames) {
		return "unknown"
	}
	return borderNames[s]
}

// ParseBorderStrategy is case insensitive.
func ParseBorderStrategy(name string) (BorderStrategy, bool) {
	for i, n := range borderNames {
		if strings.EqualFold(n, name) {
			return BorderStrategy(i), true
		}
	}
	return BorderMirror, false
}

// Resolve maps coord onto [0, size). ok is false when the strategy asks for a
// zero-valued sample instead of a pixel.
func (s BorderStrategy) Resolve(coord, size int) (_ int, ok bool) {
	if size <= 0 {
		return 0, false
	}
	if coord >= 0 && coord < size {
		return coord, true
	}

	switch s {
	case BorderClamp:
		return min(max(coord, 0), size-1), true
	case BorderWrap:
		coord %= size
		if coord < 0 {
			coord += size
		}
		return coord, true
	case BorderZero:
		return 0, false
	default:
		if size == 1 {
			return 0, true
		}
		// reflection without repeating the edge pixel has period 2*(size-1)
		period := 2 * (size - 1)
		coord %= period
		if coord < 0 {
			coord += period
		}
		if coord >= size {
			coord = period - coord
		}
		return coord, true
	}
}
