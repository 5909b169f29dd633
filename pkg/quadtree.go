package fimgs

import (
	"fmt"
	"math"
)

type color3 = [3]int

func minColor4(c1, c2, c3, c4 color3) color3 {
	return color3{
		min(c1[0], c2[0], c3[0], c4[0]),
		min(c1[1], c2[1], c3[1], c4[1]),
		min(c1[2], c2[2], c3[2], c4[2]),
	}
}

func maxColor4(c1, c2, c3, c4 color3) color3 {
	return color3{
		max(c1[0], c2[0], c3[0], c4[0]),
		max(c1[1], c2[1], c3[1], c4[1]),
		max(c1[2], c2[2], c3[2], c4[2]),
	}
}

func colorDiff(lo, hi color3) int {
	return max(hi[0]-lo[0], hi[1]-lo[1], hi[2]-lo[2])
}

// quadForest is a disjoint set over pixels where every root is the top left
// pixel of a square block.
type quadForest struct {
	parent     []int
	blockWidth []int
	lo, hi     []color3
}

func (q *quadForest) find(x int) int {
	for q.parent[x] != x {
		q.parent[x] = q.parent[q.parent[x]]
		x = q.parent[x]
	}
	return x
}

func (q *quadForest) merge(topLeft, topRight, bottomLeft, bottomRight int) {
	q.parent[topRight], q.parent[bottomLeft], q.parent[bottomRight] = topLeft, topLeft, topLeft
	q.blockWidth[topLeft] *= 2
	q.lo[topLeft] = minColor4(q.lo[topLeft], q.lo[topRight], q.lo[bottomLeft], q.lo[bottomRight])
	q.hi[topLeft] = maxColor4(q.hi[topLeft], q.hi[topRight], q.hi[bottomLeft], q.hi[bottomRight])
}

type quadtreeFilter struct {
	power     float64
	threshold int
}

// NewQuadTree merges equal sized neighbouring blocks whose colour spread is
// below threshold and draws every block as a p-norm ball of radius
// width/2 on black. power <= 0 means 2, threshold outside 1..255 means 40.
func NewQuadTree(power float64, threshold int) Filter {
	if power <= 0 {
		power = 2
	}
	if threshold <= 0 || threshold > 255 {
		threshold = 40
	}
	return quadtreeFilter{power: power, threshold: threshold}
}

func (quadtreeFilter) Name() string { return "quadtree" }

func (f quadtreeFilter) Describe() string {
	return fmt.Sprintf("quadtree blocks as %g-norm balls, threshold %d", f.power, f.threshold)
}

func (f quadtreeFilter) Apply(im *Image) error {
	if err := im.Validate(); err != nil {
		return err
	}
	w, h := im.Width, im.Height
	n := w * h
	q := &quadForest{
		parent:     make([]int, n),
		blockWidth: make([]int, n),
		lo:         make([]color3, n),
		hi:         make([]color3, n),
	}
	for i := 0; i < n; i++ {
		q.parent[i] = i
		q.blockWidth[i] = 1
		p := im.PixOffset(i%w, i/w)
		c := color3{int(im.Pix[p]), int(im.Pix[p+1]), int(im.Pix[p+2])}
		q.lo[i], q.hi[i] = c, c
	}

	for j := 1; j < w; j *= 2 {
		for x := j; x < w; x += 2 * j {
			for y := j; y < h; y += 2 * j {
				cur := q.find(y*w + x)
				if cur/w == 0 || cur%w == 0 {
					continue
				}
				up, left, upLeft := q.find(cur-w), q.find(cur-1), q.find(cur-w-1)
				if up == cur || left == cur || upLeft == cur || up == left || up == upLeft || left == upLeft {
					continue
				}
				if q.blockWidth[cur] != j || q.blockWidth[up] != j || q.blockWidth[left] != j || q.blockWidth[upLeft] != j {
					continue
				}
				diff := colorDiff(
					minColor4(q.lo[cur], q.lo[up], q.lo[left], q.lo[upLeft]),
					maxColor4(q.hi[cur], q.hi[up], q.hi[left], q.hi[upLeft]),
				)
				if diff < f.threshold {
					q.merge(upLeft, up, left, cur)
				}
			}
		}
	}

	for i := 0; i < n; i++ {
		root := q.find(i)
		half := q.blockWidth[root] / 2
		cx, cy := root%w+half, root/w+half
		x, y := i%w, i/w
		dx, dy := math.Abs(float64(x-cx)), math.Abs(float64(y-cy))
		var c color3
		if math.Floor(math.Pow(math.Pow(dx, f.power)+math.Pow(dy, f.power), 1/f.power)) <= float64(half) {
			lo, hi := q.lo[root], q.hi[root]
			c = color3{(lo[0] + hi[0]) / 2, (lo[1] + hi[1]) / 2, (lo[2] + hi[2]) / 2}
		}
		p := im.PixOffset(x, y)
		im.Pix[p], im.Pix[p+1], im.Pix[p+2] = byte(c[0]), byte(c[1]), byte(c[2])
	}
	return nil
}
