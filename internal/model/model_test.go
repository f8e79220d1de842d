package model

import (
	"testing"

	"github.com/jwt625/gdsjam/internal/geom"
)

func rect(x, y, w, h float64) []geom.Point {
	return []geom.Point{
		{X: x, Y: y},
		{X: x + w, Y: y},
		{X: x + w, Y: y + h},
		{X: x, Y: y + h},
	}
}

func TestBoundingBoxUnionAndEmpty(t *testing.T) {
	empty := EmptyBoundingBox()
	if !empty.IsEmpty() {
		t.Fatalf("expected empty box")
	}

	a := BoundingBox{0, 0, 10, 10}
	if a.Union(empty) != a {
		t.Errorf("union with empty should be identity, got %v", a.Union(empty))
	}

	b := BoundingBox{5, 5, 20, 20}
	got := a.Union(b)
	want := BoundingBox{0, 0, 20, 20}
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTransformBoundingBoxUsesAllFourCorners(t *testing.T) {
	bb := BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 1}
	tr := geom.InstanceTransform(0, 0, 45, false, 1)
	got := TransformBoundingBox(bb, tr)

	// Rotating a long thin box 45 degrees should expand both axes well beyond
	// what transforming only the min/max corners would give.
	if got.Width() < 6 || got.Height() < 6 {
		t.Errorf("expected rotated bbox to expand on both axes, got %v", got)
	}
}

func TestNewPolygonRejectsDegenerateRing(t *testing.T) {
	_, err := NewPolygon(1, 0, []geom.Point{{0, 0}, {1, 1}})
	if err == nil {
		t.Fatalf("expected error for 2-point polygon")
	}
}

// TestDocumentBuilderGrid reproduces scenario S1: one top cell with 100
// axis-aligned 10x10 rectangles on a 10x10 grid spanning [0,100]x[0,100].
func TestDocumentBuilderGrid(t *testing.T) {
	b := NewDocumentBuilder(Units{DatabaseUnitM: 1e-9, UserUnitM: 1e-6})

	var polys []Polygon
	for gx := 0; gx < 10; gx++ {
		for gy := 0; gy < 10; gy++ {
			p, err := NewPolygon(1, 0, rect(float64(gx)*10, float64(gy)*10, 10, 10))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			polys = append(polys, p)
		}
	}
	b.AddCell(Cell{Name: "TOP", Polygons: polys})

	doc := b.Build()

	if len(doc.TopCells) != 1 || doc.TopCells[0] != "TOP" {
		t.Fatalf("expected single top cell TOP, got %v", doc.TopCells)
	}
	if doc.TotalPolygons(doc.TopCells) != 100 {
		t.Fatalf("expected 100 polygons, got %d", doc.TotalPolygons(doc.TopCells))
	}
	want := BoundingBox{0, 0, 100, 100}
	if doc.BoundingBox != want {
		t.Fatalf("got bounds %v, want %v", doc.BoundingBox, want)
	}
}

func TestDocumentBuilderTopCellsExcludeReferenced(t *testing.T) {
	b := NewDocumentBuilder(Units{DatabaseUnitM: 1e-9, UserUnitM: 1e-6})
	child, _ := NewPolygon(1, 0, rect(0, 0, 10, 10))
	b.AddCell(Cell{Name: "CHILD", Polygons: []Polygon{child}})
	b.AddCell(Cell{Name: "TOP", Instances: []Instance{{CellRef: "CHILD", X: 1000, Y: 1000, RotationDeg: 90, Magnification: 1}}})

	doc := b.Build()
	if len(doc.TopCells) != 1 || doc.TopCells[0] != "TOP" {
		t.Fatalf("expected only TOP as a top cell, got %v", doc.TopCells)
	}

	// S2 scenario: the child polygon [(0,0),(10,0),(10,10),(0,10)] placed at
	// (1000,1000) with 90-degree rotation should bound
	// {(1000,1000),(1000,1010),(990,1010),(990,1000)}.
	want := BoundingBox{MinX: 990, MinY: 1000, MaxX: 1000, MaxY: 1010}
	got := doc.Cells["TOP"].BoundingBox
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDocumentBuilderDanglingInstanceDropsSilently(t *testing.T) {
	b := NewDocumentBuilder(Units{DatabaseUnitM: 1, UserUnitM: 1})
	b.AddCell(Cell{Name: "TOP", Instances: []Instance{{CellRef: "MISSING"}}})

	doc := b.Build() // must not panic
	if doc.Cells["TOP"].BoundingBox.IsEmpty() != true {
		t.Fatalf("expected empty bounds for a cell with only a dangling instance")
	}
}

func TestDocumentBuilderCycleGuard(t *testing.T) {
	b := NewDocumentBuilder(Units{DatabaseUnitM: 1, UserUnitM: 1})
	b.AddCell(Cell{Name: "A", Instances: []Instance{{CellRef: "B", Magnification: 1}}})
	b.AddCell(Cell{Name: "B", Instances: []Instance{{CellRef: "A", Magnification: 1}}})

	// Must terminate rather than infinite-recurse.
	doc := b.Build()
	if doc.Cells["A"].BoundingBox.IsEmpty() != true {
		t.Fatalf("expected empty bounds for a pure cycle with no geometry")
	}
}

// TestSkipInMinimapThreshold reproduces scenario S6: a 1x1 cell is skipped
// (doc extent 100), a 100x100 cell is not.
func TestSkipInMinimapThreshold(t *testing.T) {
	b := NewDocumentBuilder(Units{DatabaseUnitM: 1, UserUnitM: 1})
	small, _ := NewPolygon(1, 0, rect(0, 0, 1, 1))
	big, _ := NewPolygon(1, 0, rect(0, 0, 100, 100))
	b.AddCell(Cell{Name: "SMALL", Polygons: []Polygon{small}})
	b.AddCell(Cell{Name: "BIG", Polygons: []Polygon{big}})
	b.AddCell(Cell{Name: "TOP", Instances: []Instance{
		{CellRef: "SMALL", Magnification: 1},
		{CellRef: "BIG", Magnification: 1},
	}})

	doc := b.Build()
	if !doc.Cells["SMALL"].SkipInMinimap {
		t.Errorf("expected SMALL to be skipped in minimap")
	}
	if doc.Cells["BIG"].SkipInMinimap {
		t.Errorf("expected BIG to not be skipped in minimap")
	}
}

func TestCellIsContextInfo(t *testing.T) {
	c := Cell{Name: "LIB_CONTEXT_INFO_META"}
	if !c.IsContextInfo() {
		t.Errorf("expected cell with CONTEXT_INFO substring to be detected")
	}
	if (Cell{Name: "NORMAL"}).IsContextInfo() {
		t.Errorf("expected normal cell to not be detected as context-info")
	}
}
