package fimgs

import (
	"sort"

	"github.com/pkg/errors"
)

// Factory builds a filter from parameters. It never fails, bad values fall
// back to defaults.
type Factory func(env Env, p Params) Filter

type entry struct {
	factory Factory
	usage   string
}

// Registry maps filter names to factories. Registration is not synchronized,
// register everything before sharing the registry between goroutines.
type Registry struct {
	env     Env
	entries map[string]entry
}

// NewRegistry returns a registry with every built-in filter.
func NewRegistry(env Env) *Registry {
	r := &Registry{env: env, entries: map[string]entry{}}
	registerBuiltins(r)
	return r
}

// Register adds or replaces a filter. usage documents its parameters.
func (r *Registry) Register(name, usage string, f Factory) {
	r.entries[name] = entry{factory: f, usage: usage}
}

func (r *Registry) Create(name string, p Params) (Filter, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFilter, "%q", name)
	}
	return e.factory(r.env, p), nil
}

// Build creates every step of a chain, failing before any filter exists if
// one name is unknown.
func (r *Registry) Build(specs []Spec) (Chain, error) {
	for _, s := range specs {
		if _, ok := r.entries[s.Name]; !ok {
			return nil, errors.Wrapf(ErrUnknownFilter, "%q", s.Name)
		}
	}
	chain := make(Chain, len(specs))
	for i, s := range specs {
		chain[i], _ = r.Create(s.Name, s.Params)
	}
	return chain, nil
}

// Names lists registered filters in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Usage returns the parameter documentation of a filter.
func (r *Registry) Usage(name string) (string, bool) {
	e, ok := r.entries[name]
	return e.usage, ok
}

const borderUsage = "border=mirror|clamp|wrap|zero"

func registerBuiltins(r *Registry) {
	point := func(name, usage string, f func(p Params) Filter) {
		r.Register(name, usage, func(_ Env, p Params) Filter { return f(p) })
	}
	point("grayscale", "", func(Params) Filter { return NewGrayscale() })
	point("sepia", "", func(Params) Filter { return NewSepia() })
	point("invert", "", func(Params) Filter { return NewInvert() })
	point("brightness", "factor=1.2", func(p Params) Filter { return NewBrightness(p.Float("factor", 1.2)) })
	point("contrast", "factor=1.5", func(p Params) Filter { return NewContrast(p.Float("factor", 1.5)) })
	point("saturation", "factor=1.5", func(p Params) Filter { return NewSaturation(p.Float("factor", 1.5)) })
	point("threshold", "value=128", func(p Params) Filter { return NewThreshold(p.Int("value", 128)) })
	point("posterize", "levels=4", func(p Params) Filter { return NewPosterize(p.Int("levels", 4)) })
	point("noise", "intensity=0.1 seed=0", func(p Params) Filter {
		return NewNoise(p.Float("intensity", 0.1), int64(p.Int("seed", 0)))
	})
	point("vignette", "strength=0.5", func(p Params) Filter { return NewVignette(p.Float("strength", 0.5)) })

	r.Register("blur", "radius=5 "+borderUsage, func(env Env, p Params) Filter {
		return NewGaussianBlur(env, p.Float("radius", 5), p.Border())
	})
	r.Register("box_blur", "radius=5 "+borderUsage, func(env Env, p Params) Filter {
		return NewBoxBlur(env, p.Int("radius", 5), p.Border())
	})
	r.Register("motion_blur", "length=10 angle=0 "+borderUsage, func(env Env, p Params) Filter {
		return NewMotionBlur(env, p.Int("length", 10), p.Float("angle", 0), p.Border())
	})
	r.Register("sharpen", "strength=1 "+borderUsage, func(env Env, p Params) Filter {
		return NewSharpen(env, p.Float("strength", 1), p.Border())
	})
	r.Register("emboss", "strength=1 "+borderUsage, func(env Env, p Params) Filter {
		return NewEmboss(env, p.Float("strength", 1), p.Border())
	})
	r.Register("edges", "sensitivity=0.5 operator=sobel|prewitt|scharr "+borderUsage, func(env Env, p Params) Filter {
		return NewEdges(env, p.Float("sensitivity", 0.5), p.Enum("operator", "sobel", EdgeOperators...), p.Border())
	})
	r.Register("outline", borderUsage, func(env Env, p Params) Filter {
		return NewOutline(env, p.Border())
	})
	r.Register("median", "radius=2 "+borderUsage, func(env Env, p Params) Filter {
		return NewMedian(env, p.Int("radius", 2), p.Border())
	})
	r.Register("weakblur", borderUsage, func(env Env, p Params) Filter {
		return NewKernelFilter(env, "weakblur", WeakBlurKernel, p.Border())
	})
	for name, k := range map[string]Kernel{
		"edgeenhance":     EdgeEnhanceKernel,
		"edgedetect1":     EdgeDetectKernel,
		"edgedetect2":     LaplacianKernel,
		"horizontallines": HorizontalLinesKernel,
		"verticallines":   VerticalLinesKernel,
	} {
		name, k := name, k
		r.Register(name, borderUsage, func(env Env, p Params) Filter {
			return NewStretchFilter(env, name, k, p.Border())
		})
	}

	point("flip_h", "", func(Params) Filter { return NewFlipHorizontal() })
	point("flip_v", "", func(Params) Filter { return NewFlipVertical() })
	r.Register("rotate90", "counter_clockwise=false", func(env Env, p Params) Filter {
		return NewRotate90(env, p.Bool("counter_clockwise", false))
	})
	point("resize", "width=0 height=0 interpolation=lanczos3", func(p Params) Filter {
		return NewResize(p.Int("width", 0), p.Int("height", 0), p.Enum("interpolation", "lanczos3", Interpolations...))
	})

	point("cluster", "n=7 seed=0", func(p Params) Filter {
		return NewCluster(p.Int("n", 7), int64(p.Int("seed", 0)))
	})
	point("quadtree", "power=2 threshold=40", func(p Params) Filter {
		return NewQuadTree(p.Float("power", 2), p.Int("threshold", 40))
	})
	point("hilbert", "", func(Params) Filter { return NewHilbert() })
	point("hilbertdarken", "", func(Params) Filter { return NewHilbertDarken() })
	point("zcurve", "", func(Params) Filter { return NewZCurve() })
}
