package viewport

import (
	"math"
	"testing"
	"time"

	"github.com/jwt625/gdsjam/internal/geom"
	"github.com/jwt625/gdsjam/internal/model"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// TestScreenWorldRoundTrip reproduces Testable Property 8 (Y-flip):
// screenFromWorld(worldFromScreen(p)) == p for random points/transforms.
func TestScreenWorldRoundTrip(t *testing.T) {
	v := NewView(800, 600)
	v.SetScale(2.5)
	v.SetPan(37, -12)

	cases := []struct{ px, py float64 }{
		{0, 0}, {800, 600}, {123.5, 456.25}, {-50, 900},
	}
	for _, c := range cases {
		wx, wy := v.WorldFromScreen(c.px, c.py)
		px, py := v.ScreenFromWorld(wx, wy)
		if !almostEqual(px, c.px) || !almostEqual(py, c.py) {
			t.Errorf("round trip failed for (%v,%v): got (%v,%v)", c.px, c.py, px, py)
		}
	}
}

func TestScaleClampedToRange(t *testing.T) {
	v := NewView(100, 100)
	v.SetScale(100)
	if v.Scale != maxZoom {
		t.Errorf("expected scale clamped to %v, got %v", maxZoom, v.Scale)
	}
	v.SetScale(0.0001)
	if v.Scale != minZoom {
		t.Errorf("expected scale clamped to %v, got %v", minZoom, v.Scale)
	}
}

func TestViewportBoundsWorldRespectsYFlip(t *testing.T) {
	v := NewView(100, 100)
	v.SetScale(1)
	v.SetPan(0, 0)
	bb := v.ViewportBoundsWorld()
	// Screen y=0 (top) maps to world y=0; screen y=100 (bottom) maps to
	// world y=-100, since world Y grows up while screen Y grows down.
	if bb.MinY != -100 || bb.MaxY != 0 {
		t.Errorf("expected Y range [-100,0], got [%v,%v]", bb.MinY, bb.MaxY)
	}
}

func TestResetToCentersOnPoint(t *testing.T) {
	v := NewView(200, 100)
	v.SetScale(4)
	v.ResetTo(geom.MakePoint(10, 20))
	if v.Scale != 1.0 {
		t.Errorf("expected scale reset to 1.0, got %v", v.Scale)
	}
	px, py := v.ScreenFromWorld(10, 20)
	if !almostEqual(px, 100) || !almostEqual(py, 50) {
		t.Errorf("expected (10,20) to map to viewport center (100,50), got (%v,%v)", px, py)
	}
}

func TestUpdateVisibilityFiltersByWindowAndLayer(t *testing.T) {
	items := []VisibilityItem{
		{ID: "a", Bbox: model.BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, LayerKey: "1:0", PolygonCount: 5},
		{ID: "b", Bbox: model.BoundingBox{MinX: 1000, MinY: 1000, MaxX: 1010, MaxY: 1010}, LayerKey: "1:0", PolygonCount: 7},
		{ID: "c", Bbox: model.BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, LayerKey: "2:0", PolygonCount: 3},
	}
	window := model.BoundingBox{MinX: -5, MinY: -5, MaxX: 20, MaxY: 20}
	visible, total := UpdateVisibility(window, items, map[string]bool{"1:0": true, "2:0": false})

	if !visible["a"] || visible["b"] || visible["c"] {
		t.Fatalf("unexpected visibility set: %v", visible)
	}
	if total != 5 {
		t.Errorf("expected total polygons 5, got %d", total)
	}
}

func TestDetectNewlyVisibleLayersRequiresNoRenderedTiles(t *testing.T) {
	newVis := map[string]bool{"1:0": true, "2:0": true}
	oldVis := map[string]bool{"1:0": false, "2:0": true}
	hasTiles := map[string]bool{"1:0": false}

	got := DetectNewlyVisibleLayers(newVis, oldVis, hasTiles)
	if len(got) != 1 || got[0] != "1:0" {
		t.Fatalf("expected only layer 1:0, got %v", got)
	}
}

func TestDebouncerCoalescesToLatest(t *testing.T) {
	calls := 0
	d := NewDebouncer(10*time.Millisecond, func() { calls++ })

	d.Request()
	d.Request()
	d.Request()

	time.Sleep(40 * time.Millisecond)
	if calls != 1 {
		t.Errorf("expected exactly 1 coalesced call, got %d", calls)
	}
}
