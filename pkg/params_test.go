package fimgs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams(t *testing.T) {
	p := Params{
		"f":      2.5,
		"i":      3,
		"whole":  4.0,
		"half":   4.5,
		"s":      " 7 ",
		"b":      "true",
		"bad":    []int{1},
		"border": "WRAP",
		"op":     "Scharr",
	}

	assert.Equal(t, 2.5, p.Float("f", 0))
	assert.Equal(t, 3.0, p.Float("i", 0))
	assert.Equal(t, 7.0, p.Float("s", 0))
	assert.Equal(t, 1.5, p.Float("bad", 1.5))
	assert.Equal(t, 1.5, p.Float("missing", 1.5))

	assert.Equal(t, 3, p.Int("i", 0))
	assert.Equal(t, 4, p.Int("whole", 0))
	assert.Equal(t, 9, p.Int("half", 9))
	assert.Equal(t, 7, p.Int("s", 0))

	assert.True(t, p.Bool("b", false))
	assert.True(t, p.Bool("missing", true))
	assert.False(t, p.Bool("i", false))

	assert.Equal(t, "scharr", p.Enum("op", "sobel", EdgeOperators...))
	assert.Equal(t, "sobel", p.Enum("s", "sobel", EdgeOperators...))

	assert.Equal(t, BorderWrap, p.Border())
	assert.Equal(t, BorderMirror, Params{"border": "nowhere"}.Border())
	assert.Equal(t, BorderMirror, Params(nil).Border())
}

func TestSpecString(t *testing.T) {
	assert.Equal(t, "invert", Spec{Name: "invert"}.String())
	assert.Equal(t, "blur:border=wrap:radius=2", Spec{Name: "blur", Params: Params{"radius": 2, "border": "wrap"}}.String())
}
