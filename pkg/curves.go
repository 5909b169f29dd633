package fimgs

import (
	"image"
	"math/bits"
)

// curveCanvas marks the pixels a space-filling curve passes through.
type curveCanvas struct {
	src *Image
	ink []bool
}

const darkThreshold = 0.6

func (cv *curveCanvas) isBlockDark(r image.Rectangle) bool {
	r = r.Intersect(cv.src.Bounds())
	brightness := 0.0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i := cv.src.PixOffset(x, y)
			brightness += float64(int(cv.src.Pix[i])+int(cv.src.Pix[i+1])+int(cv.src.Pix[i+2])) / 3 / 255
		}
	}
	return brightness < darkThreshold*float64(r.Dx()*r.Dy())
}

func (cv *curveCanvas) set(p image.Point) {
	if p.In(cv.src.Bounds()) {
		cv.ink[p.Y*cv.src.Width+p.X] = true
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sgn(x int) int {
	switch {
	case x < 0:
		return -1
	case x == 0:
		return 0
	default:
		return 1
	}
}

// line is Bresenham's algorithm.
func (cv *curveCanvas) line(p, q image.Point) {
	if abs(q.Y-p.Y) < abs(q.X-p.X) {
		if p.X > q.X {
			p, q = q, p
		}
		dx, dy := q.X-p.X, q.Y-p.Y
		yi := sgn(dy)
		dy *= yi
		d := 2*dy - dx
		y := p.Y
		for x := p.X; x <= q.X; x++ {
			cv.set(image.Pt(x, y))
			if d > 0 {
				y += yi
				d += 2 * (dy - dx)
			} else {
				d += 2 * dy
			}
		}
		return
	}

	if p.Y > q.Y {
		p, q = q, p
	}
	dx, dy := q.X-p.X, q.Y-p.Y
	xi := sgn(dx)
	dx *= xi
	d := 2*dx - dy
	x := p.X
	for y := p.Y; y <= q.Y; y++ {
		cv.set(image.Pt(x, y))
		if d > 0 {
			x += xi
			d += 2 * (dx - dy)
		} else {
			d += 2 * dx
		}
	}
}

func rectFrom4Points(p1, p2, p3, p4 image.Point) image.Rectangle {
	return image.Rect(
		min(p1.X, p2.X, p3.X, p4.X), min(p1.Y, p2.Y, p3.Y, p4.Y),
		max(p1.X, p2.X, p3.X, p4.X), max(p1.Y, p2.Y, p3.Y, p4.Y),
	)
}

// leaf returns the segment endpoints of a smallest block, nil when it is light.
func (cv *curveCanvas) leaf(p1, p2, p3, p4 image.Point) []image.Point {
	if !cv.isBlockDark(rectFrom4Points(p1, p2, p3, p4)) {
		return nil
	}
	mid := p1.Add(p3).Div(2)
	return []image.Point{mid, mid}
}

// hilbert visits the block spanned by p12 and p23 from corner p1 and returns
// the entry and exit points of the drawn path, nil when nothing was drawn.
func (cv *curveCanvas) hilbert(p1, p12, p23 image.Point, depth int) []image.Point {
	p2 := p1.Add(p12)
	p3 := p2.Add(p23)
	p4 := p1.Add(p23)
	if depth <= 2 {
		return cv.leaf(p1, p2, p3, p4)
	}
	// . 1       4
	// | |1-2 3-4|
	// | |  | |  |
	// | |4-3 2-1|
	// v ||     ||
	// p |1 4-1 4|
	// 1 || | | ||
	// 2 |2-3 2-3|
	// h 2-------3
	//   .--->p23h
	p12h := p12.Div(2)
	p23h := p23.Div(2)
	lt := cv.hilbert(p1, p23h, p12h, depth-1)
	lb := cv.hilbert(p2.Sub(p12h), p12h, p23h, depth-1)
	rb := cv.hilbert(p3.Sub(p12h).Sub(p23h), p12h, p23h, depth-1)
	rt := cv.hilbert(p4.Add(p12h), p23h.Mul(-1), p12h.Mul(-1), depth-1)
	if lt == nil && lb == nil && rb == nil && rt == nil && !cv.isBlockDark(rectFrom4Points(p1, p2, p3, p4)) {
		return nil
	}
	if lt == nil {
		p := p1.Add(p12h.Add(p23h).Div(2))
		lt = []image.Point{p, p}
	}
	if lb == nil {
		p := p2.Add(p23h.Sub(p12h).Div(2))
		lb = []image.Point{p, p}
	}
	if rb == nil {
		p := p3.Sub(p12h.Add(p23h).Div(2))
		rb = []image.Point{p, p}
	}
	if rt == nil {
		p := p4.Add(p12h.Sub(p23h).Div(2))
		rt = []image.Point{p, p}
	}
	cv.line(lt[1], lb[0])
	cv.line(lb[1], rb[0])
	cv.line(rb[1], rt[0])
	return []image.Point{lt[0], rt[1]}
}

func (cv *curveCanvas) zcurve(p1, p12, p13 image.Point, depth int) []image.Point {
	p2 := p1.Add(p12)
	p3 := p1.Add(p13)
	p4 := p2.Add(p13)
	if depth <= 2 {
		return cv.leaf(p1, p2, p3, p4)
	}
	// 1-------2
	// |1-2 1-2
	// | / / /
	// |3-4 3-4
	// |     /
	// | /--/
	// |/
	// |1-2 1-2
	// | / / /
	// |3-4 3-4
	// 3       4
	p12h := p12.Div(2)
	p13h := p13.Div(2)
	part0 := cv.zcurve(p1, p12h, p13h, depth-1)
	part1 := cv.zcurve(p1.Add(p12h), p12h, p13h, depth-1)
	part2 := cv.zcurve(p1.Add(p13h), p12h, p13h, depth-1)
	part3 := cv.zcurve(p1.Add(p12h).Add(p13h), p12h, p13h, depth-1)
	if part0 == nil && part1 == nil && part2 == nil && part3 == nil && !cv.isBlockDark(rectFrom4Points(p1, p2, p3, p4)) {
		return nil
	}
	if part0 == nil {
		p := p1.Add(p12h.Add(p13h).Div(2))
		part0 = []image.Point{p, p}
	}
	if part1 == nil {
		p := p2.Add(p13h.Sub(p12h).Div(2))
		part1 = []image.Point{p, p}
	}
	if part2 == nil {
		p := p3.Sub(p13h.Sub(p12h).Div(2))
		part2 = []image.Point{p, p}
	}
	if part3 == nil {
		p := p4.Sub(p12h.Add(p13h).Div(2))
		part3 = []image.Point{p, p}
	}
	cv.line(part0[1], part1[0])
	cv.line(part1[1], part2[0])
	cv.line(part2[1], part3[0])
	return []image.Point{part0[0], part3[1]}
}

type curveKind int

const (
	curveHilbert curveKind = iota
	curveHilbertDarken
	curveZ
)

type curveFilter struct {
	kind curveKind
}

// NewHilbert draws a Hilbert curve through the dark parts of the image,
// black on white.
func NewHilbert() Filter { return curveFilter{kind: curveHilbert} }

// NewHilbertDarken draws the Hilbert curve over the original colours.
func NewHilbertDarken() Filter { return curveFilter{kind: curveHilbertDarken} }

// NewZCurve draws a Z-order curve through the dark parts of the image.
func NewZCurve() Filter { return curveFilter{kind: curveZ} }

func (f curveFilter) Name() string {
	switch f.kind {
	case curveHilbertDarken:
		return "hilbertdarken"
	case curveZ:
		return "zcurve"
	default:
		return "hilbert"
	}
}

func (f curveFilter) Describe() string {
	switch f.kind {
	case curveHilbertDarken:
		return "hilbert curve over the original colours"
	case curveZ:
		return "z-order curve through dark regions"
	default:
		return "hilbert curve through dark regions"
	}
}

func (f curveFilter) Apply(im *Image) error {
	if err := im.Validate(); err != nil {
		return err
	}
	cv := &curveCanvas{src: im, ink: make([]bool, im.Width*im.Height)}
	depth := bits.Len(uint(min(im.Width, im.Height))) - 1
	origin := image.Point{}
	if f.kind == curveZ {
		cv.zcurve(origin, image.Pt(im.Width, 0), image.Pt(0, im.Height), depth)
	} else {
		cv.hilbert(origin, image.Pt(0, im.Height), image.Pt(im.Width, 0), depth)
	}

	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			switch {
			case cv.ink[y*im.Width+x]:
				setGray(im, x, y, 0)
			case f.kind != curveHilbertDarken:
				setGray(im, x, y, 255)
			}
		}
	}
	return nil
}
