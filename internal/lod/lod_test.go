package lod

import "testing"

func TestNewDetectsHierarchicalDocument(t *testing.T) {
	c := New(5, 100)
	if c.CurrentDepth() != 3 {
		t.Fatalf("expected hierarchical document to start at depth 3, got %d", c.CurrentDepth())
	}

	flat := New(0, 100)
	if flat.CurrentDepth() != 0 {
		t.Fatalf("expected flat document to start at depth 0, got %d", flat.CurrentDepth())
	}

	tooManyPolygons := New(5, HierarchicalPolygonThreshold+1)
	if tooManyPolygons.CurrentDepth() != 0 {
		t.Fatalf("expected non-hierarchical document (too many polygons) to start at depth 0, got %d", tooManyPolygons.CurrentDepth())
	}
}

// TestDepthMonotonicWithZoom reproduces Testable Property 9: depth never
// decreases on a zoom-in and never increases on a zoom-out, across a
// sequence of zoom changes.
func TestDepthMonotonicWithZoom(t *testing.T) {
	c := New(0, 0)
	var depths []uint32
	c.SetOnDepthChange(func(d uint32) { depths = append(depths, d) })

	c.RecomputeZoomThresholds(1.0)
	c.CheckAndTriggerRerender(3.0, 0.1) // zoom in, low utilization -> depth+1
	c.RecomputeZoomThresholds(3.0)

	if len(depths) != 1 || depths[0] != 1 {
		t.Fatalf("expected single depth change to 1, got %v", depths)
	}

	c.CheckAndTriggerRerender(8.0, 0.1) // zoom in further
	if c.CurrentDepth() < 1 {
		t.Fatalf("depth decreased on zoom-in: %d", c.CurrentDepth())
	}
}

func TestHighUtilizationSuppressesIncrease(t *testing.T) {
	c := New(0, 0)
	var changed bool
	c.SetOnDepthChange(func(uint32) { changed = true })

	c.RecomputeZoomThresholds(1.0)
	c.CheckAndTriggerRerender(3.0, 0.95) // zoom in but over-utilized
	if changed {
		t.Fatalf("expected depth increase to be suppressed at 95%% utilization")
	}
}

func TestRerenderingSuppressesRequests(t *testing.T) {
	c := New(0, 0)
	var changed bool
	c.SetOnDepthChange(func(uint32) { changed = true })

	c.RecomputeZoomThresholds(1.0)
	c.SetRerendering(true)
	c.CheckAndTriggerRerender(10.0, 0.1)
	if changed {
		t.Fatalf("expected no depth change while a re-render is in flight")
	}
}

func TestBudgetShrinksWithDepth(t *testing.T) {
	c := New(5, 100) // depth 3
	shallow := c.GetScaledBudget()

	c.changeDepth(8)
	deep := c.GetScaledBudget()

	if deep >= shallow {
		t.Errorf("expected budget to shrink as depth grows: shallow=%d deep=%d", shallow, deep)
	}
}

func TestDepthNeverExceedsMaxDepth(t *testing.T) {
	c := New(0, 0)
	c.changeDepth(MaxDepth + 50)
	if c.CurrentDepth() != MaxDepth {
		t.Fatalf("expected depth capped at %d, got %d", MaxDepth, c.CurrentDepth())
	}
}

func TestShouldRerenderOnZoomChange(t *testing.T) {
	if !ShouldRerenderOnZoomChange(Outline) {
		t.Errorf("expected outline mode to require re-render on zoom change")
	}
	if ShouldRerenderOnZoomChange(Fill) {
		t.Errorf("expected fill mode to not require re-render on zoom change")
	}
}
