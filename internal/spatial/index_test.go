package spatial

import (
	"testing"

	"github.com/jwt625/gdsjam/internal/model"
)

func box(minX, minY, maxX, maxY float64) model.BoundingBox {
	return model.BoundingBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

func TestQueryFindsIntersectingItems(t *testing.T) {
	idx := New()
	idx.Insert(Item{ID: "a", Bbox: box(0, 0, 10, 10)})
	idx.Insert(Item{ID: "b", Bbox: box(100, 100, 110, 110)})
	idx.Insert(Item{ID: "c", Bbox: box(5, 5, 15, 15)})

	got := idx.Query(box(0, 0, 20, 20))
	if len(got) != 2 {
		t.Fatalf("expected 2 intersecting items, got %d: %v", len(got), got)
	}
	seen := map[string]bool{}
	for _, it := range got {
		seen[it.ID] = true
	}
	if !seen["a"] || !seen["c"] {
		t.Errorf("expected a and c in results, got %v", got)
	}
}

func TestQueryExcludesDisjointItems(t *testing.T) {
	idx := New()
	idx.Insert(Item{ID: "far", Bbox: box(1000, 1000, 1010, 1010)})

	got := idx.Query(box(0, 0, 10, 10))
	if len(got) != 0 {
		t.Fatalf("expected no results, got %v", got)
	}
}

// TestGridWindowQuery: a 10x10 grid of 10-unit tiles spanning
// [0,100]x[0,100], queried with the 40-unit window [40,80]x[40,80], surfaces
// exactly the 4x4 block of tiles inside it; tiles that only touch the
// window's edges are not returned.
func TestGridWindowQuery(t *testing.T) {
	idx := New()
	for gx := 0; gx < 10; gx++ {
		for gy := 0; gy < 10; gy++ {
			idx.Insert(Item{
				ID:   tileID(gx, gy),
				Bbox: box(float64(gx)*10, float64(gy)*10, float64(gx)*10+10, float64(gy)*10+10),
			})
		}
	}

	got := idx.Query(box(40, 40, 80, 80))
	if len(got) != 16 {
		t.Fatalf("expected 16 tiles intersecting [40,80]x[40,80], got %d", len(got))
	}
}

func tileID(x, y int) string {
	return string(rune('a'+x)) + string(rune('a'+y))
}

func TestSizeTracksInsertsAndClear(t *testing.T) {
	idx := New()
	if idx.Size() != 0 {
		t.Fatalf("expected empty index, got size %d", idx.Size())
	}
	idx.Insert(Item{ID: "a", Bbox: box(0, 0, 1, 1)})
	idx.Insert(Item{ID: "b", Bbox: box(2, 2, 3, 3)})
	if idx.Size() != 2 {
		t.Fatalf("expected size 2, got %d", idx.Size())
	}
	idx.Clear()
	if idx.Size() != 0 {
		t.Fatalf("expected size 0 after clear, got %d", idx.Size())
	}
}
