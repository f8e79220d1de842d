// Package viewport owns the screen<->world affine transform and the
// debounced culling query, grounded on the teacher's app.View (zoom/pan
// state) generalized with an explicit Y-flip and a spatial-index-backed
// visibility query.
package viewport

import (
	"github.com/jwt625/gdsjam/internal/geom"
	"github.com/jwt625/gdsjam/internal/model"
	"github.com/jwt625/gdsjam/internal/spatial"
)

const (
	minZoom = 0.1
	maxZoom = 8.0
)

// View owns the current transform (tx, ty, s) plus the screen size. World Y
// grows up; screen Y grows down, so the effective y-scale is always -s.
type View struct {
	TX, TY float64
	Scale  float64
	Width  int
	Height int
}

// NewView creates a view state with unit scale and zero translation, so the
// world origin sits at the screen's top-left corner.
func NewView(width, height int) *View {
	return &View{Scale: 1.0, Width: width, Height: height}
}

// SetScale clamps zoom to [minZoom, maxZoom].
func (v *View) SetScale(s float64) {
	switch {
	case s < minZoom:
		v.Scale = minZoom
	case s > maxZoom:
		v.Scale = maxZoom
	default:
		v.Scale = s
	}
}

// SetPan sets the translation component directly.
func (v *View) SetPan(tx, ty float64) {
	v.TX, v.TY = tx, ty
}

// SetSize updates the screen dimensions.
func (v *View) SetSize(width, height int) {
	v.Width, v.Height = width, height
}

// WorldFromScreen maps a screen-space point to world space, accounting for
// the Y-flip.
func (v *View) WorldFromScreen(px, py float64) (wx, wy float64) {
	wx = (px - v.TX) / v.Scale
	wy = -(py - v.TY) / v.Scale
	return wx, wy
}

// ScreenFromWorld is the inverse of WorldFromScreen.
func (v *View) ScreenFromWorld(wx, wy float64) (px, py float64) {
	px = wx*v.Scale + v.TX
	py = -wy*v.Scale + v.TY
	return px, py
}

// ViewportBoundsWorld returns the world-space bounding box currently
// visible on screen. The Y range is inverted relative to a naive
// screen-to-world mapping because of the Y-flip.
func (v *View) ViewportBoundsWorld() model.BoundingBox {
	x0, y0 := v.WorldFromScreen(0, 0)
	x1, y1 := v.WorldFromScreen(float64(v.Width), float64(v.Height))
	return model.BoundingBox{
		MinX: minF(x0, x1), MinY: minF(y0, y1),
		MaxX: maxF(x0, x1), MaxY: maxF(y0, y1),
	}
}

// ResetTo centers the viewport on pos at unit zoom, grounded on the
// teacher's View.ResetTo.
func (v *View) ResetTo(pos geom.Point) {
	v.Scale = 1.0
	v.TX = float64(v.Width)/2.0 - pos.X
	v.TY = float64(v.Height)/2.0 + pos.Y
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// VisibilityItem is anything updateVisibility can cull: a spatial entry
// plus the layer key it belongs to.
type VisibilityItem struct {
	ID          string
	Bbox        model.BoundingBox
	LayerKey    string
	PolygonCount int
}

// UpdateVisibility sets visible = inWindow(item) && layerVisible(item's
// layer) for each item, and returns the sum of PolygonCount over the
// visible items.
func UpdateVisibility(bounds model.BoundingBox, items []VisibilityItem, layerVisible map[string]bool) (visibleIDs map[string]bool, totalPolygons int) {
	visibleIDs = make(map[string]bool, len(items))
	for _, it := range items {
		inWindow := bounds.Intersects(it.Bbox)
		visible := inWindow && layerVisible[it.LayerKey]
		if visible {
			visibleIDs[it.ID] = true
			totalPolygons += it.PolygonCount
		}
	}
	return visibleIDs, totalPolygons
}

// DetectNewlyVisibleLayers returns the layers that transitioned false->true
// between oldVis and newVis and have no rendered tiles yet (per
// hasRenderedTiles): a trigger for on-demand rendering of those layers.
func DetectNewlyVisibleLayers(newVis, oldVis map[string]bool, hasRenderedTiles map[string]bool) []string {
	var layers []string
	for layer, isVisible := range newVis {
		if !isVisible {
			continue
		}
		if oldVis[layer] {
			continue
		}
		if hasRenderedTiles[layer] {
			continue
		}
		layers = append(layers, layer)
	}
	return layers
}

// Query wraps a spatial.Index with the current viewport bounds, the piece
// callers actually invoke each frame/debounce tick.
func Query(idx *spatial.Index, v *View) []spatial.Item {
	return idx.Query(v.ViewportBoundsWorld())
}
