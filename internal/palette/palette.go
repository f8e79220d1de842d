// Package palette derives deterministic, stable-across-sessions colors for
// layout layers and overlay chrome. Layer colors are hashed from the
// layer's (L, D) key using golden-angle HSL stepping, adapted from the
// teacher's HSV palette generation (which used
// github.com/lucasb-eyer/go-colorful for the HSV/RGB conversion) — here the
// randomness source is replaced with a deterministic hash so the same
// (layer, datatype) always resolves to the same color.
package palette

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// goldenAngleDeg is the golden angle in degrees; repeatedly stepping a hue
// by this amount gives a sequence of maximally-separated, non-repeating
// colors.
const goldenAngleDeg = 137.50776405003785

const (
	layerSaturation = 0.65
	layerLightness  = 0.55
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// layerKeyHash combines a layer and datatype into a deterministic seed for
// the golden-angle hue sequence.
func layerKeyHash(layer, datatype uint16) uint32 {
	return uint32(layer)*31 + uint32(datatype)
}

// ColorForLayer returns a deterministic, stable color for a (layer,
// datatype) pair: the same pair always yields the same color, in this
// process or any other.
func ColorForLayer(layer, datatype uint16) color.RGBA {
	hash := layerKeyHash(layer, datatype)
	hue := math.Mod(float64(hash)*goldenAngleDeg, 360.0)

	c := colorful.Hsl(hue, layerSaturation, layerLightness)
	c = c.Clamped()
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// DefaultColor is the sentinel fallback used when a polygon's layer color
// can't be resolved (the InvalidColor error class in the error taxonomy).
var DefaultColor = color.RGBA{R: 128, G: 128, B: 128, A: 255}

// NeutralOverlay returns a desaturated gray at the given lightness, used for
// grid lines (overlay.GridColor) so overlay chrome shares the same HSL color
// path as layer colors instead of a hand-rolled gray constant. The overlay
// package defines no scale-bar color.
func NeutralOverlay(lightness float64) color.RGBA {
	c := colorful.Hsl(0, 0, clamp(lightness, 0, 1))
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
