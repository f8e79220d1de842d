package zoomlimits

import (
	"testing"

	"github.com/jwt625/gdsjam/internal/model"
)

func identity(x float64) float64 { return x }

func TestForDocumentDerivesLimitsFromExtent(t *testing.T) {
	bb := model.BoundingBox{MinX: 0, MinY: 0, MaxX: 1000, MaxY: 1000}
	limits := ForDocument(bb, identity)

	if limits.MinUM != MinVisibleWidthUM {
		t.Errorf("expected MinUM %v, got %v", MinVisibleWidthUM, limits.MinUM)
	}
	if limits.MaxUM != 1000*ExtentMultiplierMax {
		t.Errorf("expected MaxUM %v, got %v", 1000*ExtentMultiplierMax, limits.MaxUM)
	}
}

func TestClampZoomScaleAllowsWithinBounds(t *testing.T) {
	limits := Limits{MinUM: 0.1, MaxUM: 1000}
	got := ClampZoomScale(2.0, 1.0, 800, limits, identity)
	if got != 2.0 {
		t.Errorf("expected unclamped scale 2.0, got %v", got)
	}
}

func TestClampZoomScaleRejectsZoomInPastMin(t *testing.T) {
	limits := Limits{MinUM: 0.1, MaxUM: 1000}
	// A huge scale makes the visible width tiny, below MinUM.
	got := ClampZoomScale(1e9, 5.0, 800, limits, identity)
	if got != 5.0 {
		t.Errorf("expected no-op at currentScale 5.0, got %v", got)
	}
}

func TestClampZoomScaleRejectsZoomOutPastMax(t *testing.T) {
	limits := Limits{MinUM: 0.1, MaxUM: 1000}
	got := ClampZoomScale(1e-6, 5.0, 800, limits, identity)
	if got != 5.0 {
		t.Errorf("expected no-op at currentScale 5.0, got %v", got)
	}
}

func TestClampZoomScaleRejectsNonPositiveScale(t *testing.T) {
	limits := Limits{MinUM: 0.1, MaxUM: 1000}
	got := ClampZoomScale(0, 3.0, 800, limits, identity)
	if got != 3.0 {
		t.Errorf("expected no-op for non-positive scale, got %v", got)
	}
}
