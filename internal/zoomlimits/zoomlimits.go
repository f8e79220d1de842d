// Package zoomlimits bounds the viewport scale so the visible extent stays
// within a sane range, regardless of how far a user scrolls the wheel.
package zoomlimits

import "github.com/jwt625/gdsjam/internal/model"

const (
	// MinVisibleWidthUM is the smallest visible width, in user units, the
	// viewport is allowed to zoom into.
	MinVisibleWidthUM = 0.1

	// ExtentMultiplierMax bounds how far a user can zoom out, expressed as
	// a multiple of the document's own extent.
	ExtentMultiplierMax = 10.0
)

// Limits bundles the computed [min, max] visible-width bounds, in user
// units, for a given document extent.
type Limits struct {
	MinUM float64
	MaxUM float64
}

// ForDocument derives the zoom limits from a document's bounding box: the
// minimum visible width is a fixed constant, and the maximum is the
// document's own extent scaled by ExtentMultiplierMax.
func ForDocument(bounds model.BoundingBox, toUserUnits func(dbUnits float64) float64) Limits {
	extent := bounds.MaxDimension()
	maxUM := toUserUnits(extent) * ExtentMultiplierMax
	if maxUM <= MinVisibleWidthUM {
		maxUM = MinVisibleWidthUM * ExtentMultiplierMax
	}
	return Limits{MinUM: MinVisibleWidthUM, MaxUM: maxUM}
}

// ClampZoomScale bounds newScale so the visible width (viewportWidthPx /
// scale, converted to user units) stays within limits. If newScale would
// push past a limit, it returns currentScale unchanged rather than
// silently deviating from the caller's requested zoom factor.
func ClampZoomScale(newScale, currentScale, viewportWidthPx float64, limits Limits, toUserUnits func(dbUnits float64) float64) float64 {
	if newScale <= 0 {
		return currentScale
	}

	visibleWidthUM := toUserUnits(viewportWidthPx / newScale)
	if visibleWidthUM < limits.MinUM || visibleWidthUM > limits.MaxUM {
		return currentScale
	}
	return newScale
}
