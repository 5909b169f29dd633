package fimgs

import (
	"fmt"
)

// partition moves arr[pivot] to its sorted position within arr[l:r] and
// returns that position. Smaller or equal values end up on the left.
func partition(arr []byte, l, r, pivot int) int {
	arr[l+pivot], arr[l] = arr[l], arr[l+pivot]
	x := arr[l]
	i := l
	for j := l + 1; j < r; j++ {
		if arr[j] < x {
			i++
			arr[i], arr[j] = arr[j], arr[i]
		}
	}
	arr[i], arr[l] = arr[l], arr[i]
	return i
}

// kthSmallest returns the k-th smallest element of arr[l:r], reordering it.
func kthSmallest(arr []byte, l, r, k int) byte {
	for {
		// middle pivot avoids the quadratic case on sorted windows
		pos := partition(arr, l, r, (r-l)/2)
		switch left := pos - l; {
		case left == k:
			return arr[pos]
		case left > k:
			r = pos
		default:
			l, k = pos+1, k-left-1
		}
	}
}

type medianFilter struct {
	radius int
	border BorderStrategy
	env    Env
}

// NewMedian replaces every colour channel with the median of its
// (2r+1)x(2r+1) neighbourhood; radius <= 0 means 2.
func NewMedian(env Env, radius int, border BorderStrategy) Filter {
	if radius <= 0 {
		radius = 2
	}
	return medianFilter{radius: radius, border: border, env: env}
}

func (medianFilter) Name() string { return "median" }

func (f medianFilter) Describe() string {
	return fmt.Sprintf("median of a %dx%d window", 2*f.radius+1, 2*f.radius+1)
}

func (f medianFilter) Apply(im *Image) error {
	if err := im.Validate(); err != nil {
		return err
	}
	dst, buf := f.env.scratch(im)
	defer f.env.Pool.Release(buf)

	size := 2*f.radius + 1
	channels := im.colorChannels()
	f.env.Engine.forEachRow(im.Height, func(y int) {
		window := make([]byte, size*size)
		for x := 0; x < im.Width; x++ {
			o := dst.PixOffset(x, y)
			for c := 0; c < channels; c++ {
				k := 0
				for dy := -f.radius; dy <= f.radius; dy++ {
					sy, okY := f.border.Resolve(y+dy, im.Height)
					for dx := -f.radius; dx <= f.radius; dx++ {
						sx, okX := f.border.Resolve(x+dx, im.Width)
						window[k] = 0
						if okX && okY {
							window[k] = im.Pix[im.PixOffset(sx, sy)+c]
						}
						k++
					}
				}
				dst.Pix[o+c] = kthSmallest(window, 0, len(window), len(window)/2)
			}
			for c := channels; c < im.Channels; c++ {
				dst.Pix[o+c] = im.Pix[im.PixOffset(x, y)+c]
			}
		}
	})
	dst.copyTo(im.Pix, im.Stride)
	return nil
}
