package core

import (
	"image/color"

	"github.com/jwt625/gdsjam/internal/coreerrors"
	"github.com/jwt625/gdsjam/internal/minimap"
	"github.com/jwt625/gdsjam/internal/model"
)

// Minimap is the overview-pane session: independent of Renderer, refreshed
// only on document load or canvas resize per the spec's minimap design.
type Minimap struct {
	ready bool
	width, height float64

	fit      minimap.Fit
	outlines []minimap.ParticipantOutline

	onNavigate func(minimap.NavigationTarget)
}

// NewMinimap constructs an unready Minimap; call Init before any other
// method.
func NewMinimap() *Minimap {
	return &Minimap{}
}

// Init sizes the minimap's canvas.
func (m *Minimap) Init(canvasWidth, canvasHeight float64) {
	m.width, m.height = canvasWidth, canvasHeight
	m.ready = true
}

// Render fits doc to the canvas and walks it into drawable polygons.
func (m *Minimap) Render(doc model.Document, layerVisibility map[string]bool, layerColors map[string]color.RGBA) (minimap.Result, error) {
	if !m.ready {
		return minimap.Result{}, coreerrors.InitNotReady
	}
	m.fit = minimap.FitToCanvas(doc.BoundingBox, m.width, m.height)
	return minimap.Render(doc, m.fit, layerVisibility, layerColors), nil
}

// UpdateViewportOutline recomputes the main viewport's outline in canvas
// space for the last Render's fit.
func (m *Minimap) UpdateViewportOutline(bounds model.BoundingBox) (minimap.ViewportOutline, error) {
	if !m.ready {
		return minimap.ViewportOutline{}, coreerrors.InitNotReady
	}
	return minimap.ComputeViewportOutline(m.fit, bounds), nil
}

// UpdateParticipantViewports recomputes every participant's outline and
// retains them for the next ResolveClick.
func (m *Minimap) UpdateParticipantViewports(participants []minimap.Participant) ([]minimap.ParticipantOutline, error) {
	if !m.ready {
		return nil, coreerrors.InitNotReady
	}
	m.outlines = minimap.ComputeParticipantOutlines(m.fit, participants)
	return m.outlines, nil
}

// SetOnNavigate installs the callback a click resolution fires through.
func (m *Minimap) SetOnNavigate(cb func(minimap.NavigationTarget)) {
	m.onNavigate = cb
}

// ResolveClick resolves a canvas-space click against the last computed
// participant outlines and invokes the installed onNavigate callback.
func (m *Minimap) ResolveClick(cx, cy float64) (minimap.NavigationTarget, error) {
	if !m.ready {
		return minimap.NavigationTarget{}, coreerrors.InitNotReady
	}
	target := minimap.ResolveClick(m.fit, m.outlines, cx, cy)
	if m.onNavigate != nil {
		m.onNavigate(target)
	}
	return target, nil
}
