// Package minimap implements the overview renderer (C8): an independent
// pipeline from the main renderer, refreshed only on document load or
// resize, that fits the whole document to a small canvas and draws
// viewport/participant outlines for navigation.
package minimap

import (
	"image/color"
	"math"
	"time"

	"github.com/jwt625/gdsjam/internal/geom"
	"github.com/jwt625/gdsjam/internal/model"
)

const (
	margin          = 0.05 // fraction of canvas reserved as border on each side
	maxWalkDepth    = 10
	polygonAlpha    = 0.8
	viewportOutlinePx = 3.0
)

// Fit computes the scale and translation that fits bounds into a
// canvasWidth x canvasHeight canvas with a small margin, preserving aspect
// ratio.
type Fit struct {
	Scale  float64
	OffsetX, OffsetY float64
}

// FitToCanvas derives the document-to-canvas transform.
func FitToCanvas(bounds model.BoundingBox, canvasWidth, canvasHeight float64) Fit {
	if bounds.IsEmpty() || bounds.Width() == 0 || bounds.Height() == 0 {
		return Fit{Scale: 1}
	}
	usableW := canvasWidth * (1 - 2*margin)
	usableH := canvasHeight * (1 - 2*margin)
	scale := math.Min(usableW/bounds.Width(), usableH/bounds.Height())

	drawnW := bounds.Width() * scale
	drawnH := bounds.Height() * scale
	offsetX := (canvasWidth-drawnW)/2 - bounds.MinX*scale
	offsetY := (canvasHeight-drawnH)/2 - bounds.MinY*scale
	return Fit{Scale: scale, OffsetX: offsetX, OffsetY: offsetY}
}

// ToCanvas maps a world-space point to canvas space under fit.
func (f Fit) ToCanvas(wx, wy float64) (cx, cy float64) {
	return wx*f.Scale + f.OffsetX, wy*f.Scale + f.OffsetY
}

// DrawnPolygon is one polygon the minimap draws, already in canvas space.
type DrawnPolygon struct {
	CellName string
	Points   [][2]float64
	Color    color.RGBA
}

// Stats tracks what one Render call did.
type Stats struct {
	PolygonsDrawn int
	CellsSkipped  int
	Elapsed       time.Duration
}

// Result is the output of one minimap render pass.
type Result struct {
	Polygons []DrawnPolygon
	Stats    Stats
}

// Render walks doc's top cells (skipping skipInMinimap cells and
// descending no deeper than maxWalkDepth), drawing each remaining polygon
// on a visible layer at fit's scale with fixed alpha.
func Render(doc model.Document, fit Fit, layerVisibility map[string]bool, layerColors map[string]color.RGBA) Result {
	r := &renderState{
		doc:             doc,
		fit:             fit,
		layerVisibility: layerVisibility,
		layerColors:     layerColors,
	}
	for _, name := range doc.TopCells {
		r.walk(name, 0, geom.Identity())
	}
	return Result{Polygons: r.polygons, Stats: r.stats}
}

type renderState struct {
	doc             model.Document
	fit             Fit
	layerVisibility map[string]bool
	layerColors     map[string]color.RGBA
	polygons        []DrawnPolygon
	stats           Stats
}

func (r *renderState) walk(name string, depth int, t geom.Affine) {
	if depth > maxWalkDepth {
		return
	}
	cell, ok := r.doc.Cells[name]
	if !ok {
		return
	}
	if cell.SkipInMinimap {
		r.stats.CellsSkipped++
		return
	}

	for _, poly := range cell.Polygons {
		key := model.LayerKey(poly.Layer, poly.Datatype)
		if !r.layerVisibility[key] {
			continue
		}
		c, ok := r.layerColors[key]
		if !ok {
			continue
		}
		c.A = uint8(polygonAlpha * 255)

		pts := make([][2]float64, len(poly.Points))
		for i, p := range poly.Points {
			wp := t.MulPoint(p)
			cx, cy := r.fit.ToCanvas(wp.X, wp.Y)
			pts[i] = [2]float64{cx, cy}
		}
		r.polygons = append(r.polygons, DrawnPolygon{CellName: name, Points: pts, Color: c})
		r.stats.PolygonsDrawn++
	}

	if cell.IsContextInfo() {
		return // skip instance descent into CONTEXT_INFO cells
	}
	for _, inst := range cell.Instances {
		r.walk(inst.CellRef, depth+1, t.Mul(inst.Transform()))
	}
}

// ViewportOutline is the main viewport's world bbox rendered as a
// fixed-width canvas-space rectangle.
type ViewportOutline struct {
	MinX, MinY, MaxX, MaxY float64
	StrokeWidthPx          float64
}

// ComputeViewportOutline maps a world-space viewport bbox into canvas space.
func ComputeViewportOutline(fit Fit, bounds model.BoundingBox) ViewportOutline {
	x0, y0 := fit.ToCanvas(bounds.MinX, bounds.MinY)
	x1, y1 := fit.ToCanvas(bounds.MaxX, bounds.MaxY)
	return ViewportOutline{
		MinX: math.Min(x0, x1), MinY: math.Min(y0, y1),
		MaxX: math.Max(x0, x1), MaxY: math.Max(y0, y1),
		StrokeWidthPx: viewportOutlinePx,
	}
}

// Participant is another session's viewport, shown as a thin labeled
// rectangle on the minimap.
type Participant struct {
	UserID     string
	Color      color.RGBA
	X, Y       float64
	Scale      float64
	Width      float64
	Height     float64
	IsFollowed bool
}

// worldBounds returns the participant's viewport extent in world space,
// grounded on the same (tx,ty,s) + Y-flip convention as the main viewport.
func (p Participant) worldBounds() model.BoundingBox {
	if p.Scale <= 0 {
		return model.EmptyBoundingBox()
	}
	x0 := -p.X / p.Scale
	y0 := -p.Y / p.Scale
	x1 := (p.Width - p.X) / p.Scale
	y1 := (p.Height - p.Y) / p.Scale
	return model.BoundingBox{
		MinX: math.Min(x0, x1), MinY: math.Min(-y0, -y1),
		MaxX: math.Max(x0, x1), MaxY: math.Max(-y0, -y1),
	}
}

// ParticipantOutline is a participant's viewport rectangle in canvas space.
type ParticipantOutline struct {
	Participant Participant
	MinX, MinY, MaxX, MaxY float64
}

// ComputeParticipantOutlines maps each participant's viewport into canvas
// space for drawing.
func ComputeParticipantOutlines(fit Fit, participants []Participant) []ParticipantOutline {
	outlines := make([]ParticipantOutline, 0, len(participants))
	for _, p := range participants {
		bb := p.worldBounds()
		if bb.IsEmpty() {
			continue
		}
		x0, y0 := fit.ToCanvas(bb.MinX, bb.MinY)
		x1, y1 := fit.ToCanvas(bb.MaxX, bb.MaxY)
		outlines = append(outlines, ParticipantOutline{
			Participant: p,
			MinX:        math.Min(x0, x1), MinY: math.Min(y0, y1),
			MaxX: math.Max(x0, x1), MaxY: math.Max(y0, y1),
		})
	}
	return outlines
}

// NavigationTarget is what a click resolves to: either an exact
// participant-rectangle hit (Scale set) or a bare world point under the
// cursor (ScaleValid false).
type NavigationTarget struct {
	WorldCenterX, WorldCenterY float64
	Scale                      float64
	ScaleValid                 bool
}

// ResolveClick checks canvas point (cx, cy) against each participant
// outline; a hit returns that participant's (worldCenterX, worldCenterY,
// scale), otherwise the world point under the cursor with ScaleValid
// false.
func ResolveClick(fit Fit, outlines []ParticipantOutline, cx, cy float64) NavigationTarget {
	for _, o := range outlines {
		if cx >= o.MinX && cx <= o.MaxX && cy >= o.MinY && cy <= o.MaxY {
			bb := o.Participant.worldBounds()
			return NavigationTarget{
				WorldCenterX: bb.CenterX(),
				WorldCenterY: bb.CenterY(),
				Scale:        o.Participant.Scale,
				ScaleValid:   true,
			}
		}
	}
	wx := (cx - fit.OffsetX) / fit.Scale
	wy := (cy - fit.OffsetY) / fit.Scale
	return NavigationTarget{WorldCenterX: wx, WorldCenterY: wy}
}
