// Package render implements the hierarchy-flattening renderer (C5): it
// walks a model.Document's cell tree under a depth/polygon budget, batches
// triangulated geometry per (layer, datatype, tile) key, uploads each tile
// to a scene.Graph, and indexes the result in a spatial.Index for culling.
//
// The renderer is backend-agnostic: it draws through the scene.Graph
// interface rather than a concrete GPU type, so it can be exercised in
// tests with a fake graph.
package render

import (
	"fmt"
	"image/color"
	"io"
	"log"
	"math"
	"os"

	"github.com/jwt625/gdsjam/internal/geom"
	"github.com/jwt625/gdsjam/internal/lod"
	"github.com/jwt625/gdsjam/internal/model"
	"github.com/jwt625/gdsjam/internal/palette"
	"github.com/jwt625/gdsjam/internal/scene"
	"github.com/jwt625/gdsjam/internal/spatial"
)

var renderLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("GDSJAM_DEBUG_RENDER") == "1" {
		renderLogger = log.New(os.Stdout, "[render] ", log.Ltime|log.Lmsgprefix)
	}
}

const (
	// TileSize is the fixed power-of-two tile size, in database units,
	// tiles are bucketed by.
	TileSize = 4096.0

	fillAlpha          = 0.7
	strokeScreenPixels = 2.0
	minStrokeDB        = 0.1
	progressEvery      = 10000
)

// Options configures one render pass.
type Options struct {
	MaxDepth             int
	MaxPolygonsPerRender int
	Mode                 lod.FillMode
	// OverrideScale, when non-zero, is used instead of ViewportScale to
	// compute stroke width — used during an incremental re-render so
	// strokes stay ~2 screen pixels at the viewport's current scale.
	OverrideScale   float64
	ViewportScale   float64
	LayerVisibility map[string]bool
	OnProgress      func(rendered, total int)
	// TileSize overrides the fixed TileSize constant; zero means "use the
	// default". Kept configurable per-document since different processes
	// interoperate over a shared value.
	TileSize float64
}

func (o Options) tileSize() float64 {
	if o.TileSize > 0 {
		return o.TileSize
	}
	return TileSize
}

func (o Options) strokeWidthDB() float64 {
	scale := o.OverrideScale
	if scale == 0 {
		scale = o.ViewportScale
	}
	if scale <= 0 {
		scale = 1
	}
	return math.Max(strokeScreenPixels/scale, minStrokeDB)
}

// Result summarizes one render pass.
type Result struct {
	TotalRendered    int
	TileCount        int
	BudgetExhausted  bool
}

type tileBuilder struct {
	key      scene.TileKey
	vertices []scene.Vertex
	bbox     model.BoundingBox
	count    int
}

// Render walks doc's top cells and produces a fresh set of tiles in graph
// and idx. Any tile from a previous pass on this same idx/graph that the new
// pass doesn't reproduce has its draw handle released before Render returns,
// so re-rendering into the same graph never leaks GPU allocations for tiles
// that went out of scope (e.g. a layer toggled off, or a coarser LOD depth
// merging several small tiles into one).
func Render(doc model.Document, graph scene.Graph, idx *spatial.Index, opts Options) (Result, error) {
	previous := idx.Items()
	idx.Clear()

	totalPolygons := doc.TotalPolygons(doc.TopCells)
	budget := opts.MaxPolygonsPerRender
	if budget <= 0 {
		budget = totalPolygons
	}
	strokeWidth := opts.strokeWidthDB()

	state := &renderState{
		doc:         doc,
		graph:       graph,
		opts:        opts,
		strokeWidth: strokeWidth,
		tiles:       make(map[scene.TileKey]*tileBuilder),
		totalCount:  totalPolygons,
	}

	remaining := budget
	for _, name := range doc.TopCells {
		if remaining <= 0 {
			break
		}
		rendered := state.renderCell(name, geom.Identity(), opts.MaxDepth, remaining)
		remaining -= rendered
	}

	tileCount, err := state.flush(idx)
	if err != nil {
		return Result{}, err
	}
	releaseStaleTiles(graph, previous, state.tiles)

	result := Result{
		TotalRendered:   state.totalRendered,
		TileCount:       tileCount,
		BudgetExhausted: state.totalRendered >= budget && budget < totalPolygons,
	}
	if result.BudgetExhausted {
		renderLogger.Printf("budget exhausted: rendered %d of %d polygons", state.totalRendered, totalPolygons)
	}
	return result, nil
}

type renderState struct {
	doc            model.Document
	graph          scene.Graph
	opts           Options
	strokeWidth    float64
	tiles          map[scene.TileKey]*tileBuilder
	totalCount     int
	totalRendered  int
	sinceProgress  int
}

// renderCell renders one cell under transform parentT at the given
// recursion depth with the given remaining budget, returning the number of
// polygons rendered for this cell and its descendants.
func (s *renderState) renderCell(name string, parentT geom.Affine, depth int, budget int) int {
	if budget <= 0 {
		return 0
	}
	cell, ok := s.doc.Cells[name]
	if !ok {
		return 0 // missing instance cell: drop subtree silently
	}

	renderedThisCell := 0
	cellBudget := budget
	for _, poly := range cell.Polygons {
		if renderedThisCell >= len(cell.Polygons) || renderedThisCell >= cellBudget {
			break
		}

		layerKey := model.LayerKey(poly.Layer, poly.Datatype)
		if visible, ok := s.opts.LayerVisibility[layerKey]; !ok || !visible {
			continue
		}
		info, ok := s.doc.Layers[layerKey]
		if !ok {
			continue // missing layer info: drop polygon silently
		}

		transformed := make([]geom.Point, len(poly.Points))
		for i, p := range poly.Points {
			transformed[i] = parentT.MulPoint(p)
		}
		bbox := model.TransformBoundingBox(poly.BoundingBox, parentT)

		key := tileKeyFor(poly.Layer, poly.Datatype, bbox, s.opts.tileSize())
		tb := s.tiles[key]
		if tb == nil {
			tb = &tileBuilder{key: key, bbox: model.EmptyBoundingBox()}
			s.tiles[key] = tb
		}

		c := info.Color
		if c.A == 0 {
			c = palette.DefaultColor // invalid/unset color: fixed default
		}
		if err := appendPolygon(tb, transformed, c, s.opts.Mode, s.strokeWidth); err != nil {
			renderLogger.Printf("dropping polygon on layer %s: %v", layerKey, err)
			continue
		}
		tb.bbox = tb.bbox.Union(bbox)
		tb.count++

		renderedThisCell++
		s.totalRendered++
		s.sinceProgress++
		if s.sinceProgress >= progressEvery {
			s.sinceProgress = 0
			if s.opts.OnProgress != nil {
				s.opts.OnProgress(s.totalRendered, s.totalCount)
			}
		}
	}

	remainingBudget := budget - renderedThisCell
	if depth > 0 && remainingBudget > 0 && !cell.IsContextInfo() {
		for _, inst := range cell.Instances {
			if remainingBudget <= 0 {
				break
			}
			childT := parentT.Mul(inst.Transform())
			n := s.renderCell(inst.CellRef, childT, depth-1, remainingBudget)
			remainingBudget -= n
			renderedThisCell += n
		}
	}

	return renderedThisCell
}

// tileKeyFor derives the tile a transformed bbox belongs to from its
// center, per TILE.
func tileKeyFor(layer, datatype uint16, bbox model.BoundingBox, tileSize float64) scene.TileKey {
	cx, cy := bbox.CenterX(), bbox.CenterY()
	return scene.TileKey{
		Layer:    layer,
		Datatype: datatype,
		TileX:    int64(math.Floor(cx / tileSize)),
		TileY:    int64(math.Floor(cy / tileSize)),
	}
}

// appendPolygon triangulates (fill mode) or strokes (outline mode) the
// polygon and appends the resulting vertices to tb.
func appendPolygon(tb *tileBuilder, points []geom.Point, c color.RGBA, mode lod.FillMode, strokeWidth float64) error {
	if mode == lod.Outline {
		tb.vertices = append(tb.vertices, strokeOutline(points, strokeWidth, c)...)
		return nil
	}

	fillColor := c
	fillColor.A = uint8(float64(c.A) * fillAlpha)
	triangles, err := earClip(points)
	if err != nil {
		return err
	}
	for _, tri := range triangles {
		for _, p := range tri {
			tb.vertices = append(tb.vertices, scene.Vertex{
				X: p.X, Y: p.Y,
				R: fillColor.R, G: fillColor.G, B: fillColor.B, A: fillColor.A,
			})
		}
	}
	return nil
}

// strokeOutline emits two triangles (a quad) per polygon edge, each
// strokeWidth wide, approximating a constant-screen-pixel outline.
func strokeOutline(points []geom.Point, strokeWidth float64, c color.RGBA) []scene.Vertex {
	n := len(points)
	if n < 2 {
		return nil
	}
	half := strokeWidth / 2
	vertices := make([]scene.Vertex, 0, n*6)
	for i := 0; i < n; i++ {
		a := points[i]
		b := points[(i+1)%n]
		dx, dy := b.X-a.X, b.Y-a.Y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		nx, ny := -dy/length*half, dx/length*half

		quad := [4]geom.Point{
			{X: a.X + nx, Y: a.Y + ny},
			{X: b.X + nx, Y: b.Y + ny},
			{X: b.X - nx, Y: b.Y - ny},
			{X: a.X - nx, Y: a.Y - ny},
		}
		tris := [2][3]geom.Point{
			{quad[0], quad[1], quad[2]},
			{quad[0], quad[2], quad[3]},
		}
		for _, tri := range tris {
			for _, p := range tri {
				vertices = append(vertices, scene.Vertex{X: p.X, Y: p.Y, R: c.R, G: c.G, B: c.B, A: c.A})
			}
		}
	}
	return vertices
}

func (s *renderState) flush(idx *spatial.Index) (int, error) {
	count := 0
	for key, tb := range s.tiles {
		if len(tb.vertices) == 0 {
			continue
		}
		handle, err := s.graph.Upload(key, tb.vertices)
		if err != nil {
			return count, fmt.Errorf("uploading tile %v: %w", key, err)
		}
		idx.Insert(spatial.Item{
			ID:   fmt.Sprintf("%d:%d:%d:%d", key.Layer, key.Datatype, key.TileX, key.TileY),
			Bbox: tb.bbox,
			Payload: RenderedTile{
				Key:          key,
				Bbox:         tb.bbox,
				Handle:       handle,
				PolygonCount: tb.count,
			},
		})
		count++
	}
	return count, nil
}

// releaseStaleTiles drops the draw handle for every tile the previous pass
// produced that the current pass didn't reproduce. current is keyed the
// same way the tiles map is built in renderCell, so a tile surviving
// unchanged across passes is simply skipped.
func releaseStaleTiles(graph scene.Graph, previous []spatial.Item, current map[scene.TileKey]*tileBuilder) {
	for _, item := range previous {
		tile, ok := item.Payload.(RenderedTile)
		if !ok {
			continue
		}
		if tb, stillPresent := current[tile.Key]; stillPresent && len(tb.vertices) > 0 {
			continue
		}
		graph.Remove(tile.Handle)
	}
}

// RenderedTile is the payload a spatial.Item carries for a completed tile.
type RenderedTile struct {
	Key          scene.TileKey
	Bbox         model.BoundingBox
	Handle       scene.DrawHandle
	PolygonCount int
}
