// Package overlay computes the grid, scale bar, and coordinate-readout
// chrome drawn on top of the layout, using the neutral colors from
// internal/palette so overlay chrome shares the same HSL color path as
// layer geometry.
package overlay

import (
	"fmt"
	"image/color"
	"math"

	"github.com/jwt625/gdsjam/internal/palette"
)

const gridAlpha = 0.3

// GridSpacing picks a "nice" power-of-ten spacing for the grid given the
// current viewport width in world units: 10^floor(log10(viewWidth/10)).
func GridSpacing(viewWidth float64) float64 {
	if viewWidth <= 0 {
		return 1
	}
	return math.Pow(10, math.Floor(math.Log10(viewWidth/10)))
}

// GridLine is one vertical or horizontal line of the grid, in world-space
// coordinates along the swept axis.
type GridLine struct {
	Position float64
}

// GridLines returns the vertical line positions spanning [minX, maxX] and
// horizontal line positions spanning [minY, maxY], spaced by GridSpacing.
func GridLines(minX, maxX, minY, maxY float64) (vertical, horizontal []GridLine) {
	spacing := GridSpacing(maxX - minX)
	if spacing <= 0 {
		return nil, nil
	}
	for x := math.Ceil(minX/spacing) * spacing; x <= maxX; x += spacing {
		vertical = append(vertical, GridLine{Position: x})
	}
	spacingY := GridSpacing(maxY - minY)
	if spacingY <= 0 {
		spacingY = spacing
	}
	for y := math.Ceil(minY/spacingY) * spacingY; y <= maxY; y += spacingY {
		horizontal = append(horizontal, GridLine{Position: y})
	}
	return vertical, horizontal
}

// GridColor is the neutral, alpha-blended color grid lines are drawn in.
func GridColor() color.RGBA {
	c := palette.NeutralOverlay(0.6)
	c.A = uint8(gridAlpha * 255)
	return c
}

// niceRoundNumber returns the largest value of the form {1,2,5}×10^n that
// does not exceed target.
func niceRoundNumber(target float64) float64 {
	if target <= 0 {
		return 1
	}
	exp := math.Floor(math.Log10(target))
	base := math.Pow(10, exp)
	for _, mult := range []float64{5, 2, 1} {
		if mult*base <= target {
			return mult * base
		}
	}
	return base
}

// ScaleBarWidthUM computes a round scale-bar width, in micrometers,
// approximately one quarter of the view width in user units.
func ScaleBarWidthUM(viewWidthUM float64) float64 {
	return niceRoundNumber(viewWidthUM / 4)
}

// FormatScaleLabel formats a length in micrometers using nm/µm/mm based on
// its magnitude.
func FormatScaleLabel(widthUM float64) string {
	switch {
	case widthUM < 1:
		return fmt.Sprintf("%g nm", widthUM*1000)
	case widthUM >= 1000:
		return fmt.Sprintf("%g mm", widthUM/1000)
	default:
		return fmt.Sprintf("%g µm", widthUM)
	}
}

// FormatCoordinateReadout formats a world-space coordinate (already
// converted to micrometers by the caller) with 3-decimal precision, or 4 at
// sub-0.01 zoom levels where more precision matters to the user.
func FormatCoordinateReadout(xUM, yUM, zoom float64) string {
	precision := 3
	if zoom < 0.01 {
		precision = 4
	}
	return fmt.Sprintf("(%.*f, %.*f) µm", precision, xUM, precision, yUM)
}
