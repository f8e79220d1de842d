package render

import (
	"image/color"
	"testing"

	"github.com/jwt625/gdsjam/internal/geom"
	"github.com/jwt625/gdsjam/internal/lod"
	"github.com/jwt625/gdsjam/internal/model"
	"github.com/jwt625/gdsjam/internal/scene"
	"github.com/jwt625/gdsjam/internal/spatial"
)

// fakeHandle/fakeGraph let the renderer's hierarchy-flattening algorithm be
// exercised without a GPU context.
type fakeHandle struct {
	key scene.TileKey
}

func (h *fakeHandle) Key() scene.TileKey { return h.key }
func (h *fakeHandle) Release()           {}

type fakeGraph struct {
	uploads  map[scene.TileKey][]scene.Vertex
	removed  map[scene.TileKey]int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{uploads: make(map[scene.TileKey][]scene.Vertex), removed: make(map[scene.TileKey]int)}
}

func (g *fakeGraph) Upload(key scene.TileKey, vertices []scene.Vertex) (scene.DrawHandle, error) {
	g.uploads[key] = vertices
	return &fakeHandle{key: key}, nil
}
func (g *fakeGraph) Remove(h scene.DrawHandle) {
	key := h.(*fakeHandle).key
	delete(g.uploads, key)
	g.removed[key]++
}
func (g *fakeGraph) SetTransform(m [9]float64) {}
func (g *fakeGraph) Draw()                     {}
func (g *fakeGraph) Stats() scene.GraphStats   { return scene.GraphStats{} }

func rect(x, y, w, h float64) []geom.Point {
	return []geom.Point{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}
}

func gridDocument(tileSize float64) model.Document {
	b := model.NewDocumentBuilder(model.Units{DatabaseUnitM: 1e-9, UserUnitM: 1e-6})
	b.AddLayer(model.LayerInfo{Layer: 1, Datatype: 0, Color: color.RGBA{R: 200, G: 50, B: 50, A: 255}, Visible: true})

	var polys []model.Polygon
	for gx := 0; gx < 10; gx++ {
		for gy := 0; gy < 10; gy++ {
			p, err := model.NewPolygon(1, 0, rect(float64(gx)*10, float64(gy)*10, 10, 10))
			if err != nil {
				panic(err)
			}
			polys = append(polys, p)
		}
	}
	b.AddCell(model.Cell{Name: "TOP", Polygons: polys})
	return b.Build()
}

// TestNineTileCoverage reproduces scenario S1: a 10x10 grid of 10x10
// rectangles spanning [0,100]x[0,100] with TILE=40 should produce exactly 9
// tiles, each a member of a 3x3 tile grid, and totalPolygons=100.
func TestNineTileCoverage(t *testing.T) {
	doc := gridDocument(40)
	graph := newFakeGraph()
	idx := spatial.New()

	result, err := Render(doc, graph, idx, Options{
		MaxDepth:             0,
		MaxPolygonsPerRender: 0,
		Mode:                 lod.Fill,
		ViewportScale:        1,
		LayerVisibility:      map[string]bool{"1:0": true},
		TileSize:             40,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalRendered != 100 {
		t.Errorf("expected 100 rendered polygons, got %d", result.TotalRendered)
	}
	if result.TileCount != 9 {
		t.Errorf("expected 9 tiles, got %d", result.TileCount)
	}

	got := idx.Query(model.BoundingBox{MinX: 0, MinY: 0, MaxX: 40, MaxY: 40})
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 tile covering [0,0,40,40], got %d", len(got))
	}
}

// TestTileConsistency checks the (layer, datatype) half of Testable Property
// 5: every uploaded tile key carries the document's only layer/datatype
// (1, 0). Membership in the floor(center/TILE) cell is not checked here.
func TestTileConsistency(t *testing.T) {
	doc := gridDocument(40)
	graph := newFakeGraph()
	idx := spatial.New()

	if _, err := Render(doc, graph, idx, Options{
		Mode:            lod.Fill,
		ViewportScale:   1,
		LayerVisibility: map[string]bool{"1:0": true},
		TileSize:        40,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for key := range graph.uploads {
		if key.Layer != 1 || key.Datatype != 0 {
			t.Errorf("tile %v has unexpected layer/datatype", key)
		}
	}
}

// TestMissingLayerInfoDropsPolygonSilently exercises the failure semantics:
// a polygon on a layer absent from doc.Layers is dropped, not an error.
func TestMissingLayerInfoDropsPolygonSilently(t *testing.T) {
	b := model.NewDocumentBuilder(model.Units{})
	p, _ := model.NewPolygon(9, 0, rect(0, 0, 10, 10))
	b.AddCell(model.Cell{Name: "TOP", Polygons: []model.Polygon{p}})
	doc := b.Build()

	graph := newFakeGraph()
	idx := spatial.New()
	result, err := Render(doc, graph, idx, Options{
		Mode:            lod.Fill,
		ViewportScale:   1,
		LayerVisibility: map[string]bool{"9:0": true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalRendered != 0 || result.TileCount != 0 {
		t.Fatalf("expected the polygon to be silently dropped, got %+v", result)
	}
}

// TestMissingInstanceCellDropsSubtreeSilently exercises the failure
// semantics for a dangling instance reference at render time.
func TestMissingInstanceCellDropsSubtreeSilently(t *testing.T) {
	b := model.NewDocumentBuilder(model.Units{})
	b.AddCell(model.Cell{Name: "TOP", Instances: []model.Instance{{CellRef: "MISSING", Magnification: 1}}})
	doc := b.Build()

	graph := newFakeGraph()
	idx := spatial.New()
	result, err := Render(doc, graph, idx, Options{MaxDepth: 4, MaxPolygonsPerRender: 10, Mode: lod.Fill, ViewportScale: 1, LayerVisibility: map[string]bool{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalRendered != 0 {
		t.Fatalf("expected 0 rendered polygons for a dangling instance, got %d", result.TotalRendered)
	}
}

// TestInvalidColorFallsBackToDefault exercises the zero-alpha invalid-color
// fallback path; the render must still succeed rather than error.
func TestInvalidColorFallsBackToDefault(t *testing.T) {
	b := model.NewDocumentBuilder(model.Units{})
	b.AddLayer(model.LayerInfo{Layer: 1, Datatype: 0, Visible: true}) // zero-value (invalid) color
	p, _ := model.NewPolygon(1, 0, rect(0, 0, 10, 10))
	b.AddCell(model.Cell{Name: "TOP", Polygons: []model.Polygon{p}})
	doc := b.Build()

	graph := newFakeGraph()
	idx := spatial.New()
	result, err := Render(doc, graph, idx, Options{Mode: lod.Fill, ViewportScale: 1, LayerVisibility: map[string]bool{"1:0": true}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalRendered != 1 {
		t.Fatalf("expected the polygon to render with a fallback color, got %+v", result)
	}
}

// TestContextInfoCellsDoNotRecurseIntoInstances ensures a CONTEXT_INFO
// cell's own polygons render but its instances are not descended into.
func TestContextInfoCellsDoNotRecurseIntoInstances(t *testing.T) {
	b := model.NewDocumentBuilder(model.Units{})
	b.AddLayer(model.LayerInfo{Layer: 1, Datatype: 0, Color: color.RGBA{R: 1, G: 1, B: 1, A: 255}, Visible: true})
	child, _ := model.NewPolygon(1, 0, rect(0, 0, 10, 10))
	b.AddCell(model.Cell{Name: "CHILD", Polygons: []model.Polygon{child}})
	ownPoly, _ := model.NewPolygon(1, 0, rect(100, 100, 10, 10))
	b.AddCell(model.Cell{
		Name:      "LIB_CONTEXT_INFO",
		Polygons:  []model.Polygon{ownPoly},
		Instances: []model.Instance{{CellRef: "CHILD", Magnification: 1}},
	})
	doc := b.Build()

	graph := newFakeGraph()
	idx := spatial.New()
	result, err := Render(doc, graph, idx, Options{MaxDepth: 4, MaxPolygonsPerRender: 10, Mode: lod.Fill, ViewportScale: 1, LayerVisibility: map[string]bool{"1:0": true}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalRendered != 1 {
		t.Fatalf("expected only the CONTEXT_INFO cell's own polygon to render, got %d", result.TotalRendered)
	}
}

// TestRerenderReleasesStaleTiles exercises the re-render lifecycle: a tile
// from a previous pass into the same graph/idx that disappears from the
// new pass (here, by hiding its layer) must have its draw handle released
// rather than left dangling.
func TestRerenderReleasesStaleTiles(t *testing.T) {
	doc := gridDocument(40)
	graph := newFakeGraph()
	idx := spatial.New()

	if _, err := Render(doc, graph, idx, Options{
		Mode:            lod.Fill,
		ViewportScale:   1,
		LayerVisibility: map[string]bool{"1:0": true},
		TileSize:        40,
	}); err != nil {
		t.Fatalf("unexpected error on first pass: %v", err)
	}
	if len(graph.uploads) != 9 {
		t.Fatalf("expected 9 tiles uploaded after first pass, got %d", len(graph.uploads))
	}

	if _, err := Render(doc, graph, idx, Options{
		Mode:            lod.Fill,
		ViewportScale:   1,
		LayerVisibility: map[string]bool{"1:0": false},
		TileSize:        40,
	}); err != nil {
		t.Fatalf("unexpected error on second pass: %v", err)
	}
	if len(graph.uploads) != 0 {
		t.Fatalf("expected all tiles released once the layer is hidden, got %d remaining", len(graph.uploads))
	}
	if len(graph.removed) != 9 {
		t.Fatalf("expected all 9 stale tiles to be removed, got %d", len(graph.removed))
	}
}

// TestBudgetStopsRendering exercises budget exhaustion: with a budget below
// the polygon count, rendering stops early and reports BudgetExhausted,
// without returning an error.
func TestBudgetStopsRendering(t *testing.T) {
	doc := gridDocument(40)
	graph := newFakeGraph()
	idx := spatial.New()

	result, err := Render(doc, graph, idx, Options{
		MaxPolygonsPerRender: 10,
		Mode:                 lod.Fill,
		ViewportScale:        1,
		LayerVisibility:      map[string]bool{"1:0": true},
		TileSize:             40,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalRendered != 10 {
		t.Fatalf("expected exactly the budgeted 10 polygons, got %d", result.TotalRendered)
	}
	if !result.BudgetExhausted {
		t.Errorf("expected BudgetExhausted to be true")
	}
}
