// Package core is the public API surface (C5+C3+C4 composed): a Renderer
// that owns one document's viewport, LOD controller, spatial index, and
// scene graph, and exposes the lifecycle operations collaborators drive
// (load a document, move the viewport, toggle fill/grid, read back
// performance metrics) without any of them touching the internal packages
// directly.
package core

import (
	"fmt"
	"sync"

	"github.com/jwt625/gdsjam/internal/coreerrors"
	"github.com/jwt625/gdsjam/internal/lod"
	"github.com/jwt625/gdsjam/internal/model"
	"github.com/jwt625/gdsjam/internal/render"
	"github.com/jwt625/gdsjam/internal/scene"
	"github.com/jwt625/gdsjam/internal/spatial"
	"github.com/jwt625/gdsjam/internal/viewport"
)

// Config configures a Renderer at Init time.
type Config struct {
	CanvasWidth, CanvasHeight int
	TileSize                  float64 // 0 uses render.TileSize
}

// TransformState is the (tx, ty, s) triple getViewportState/setViewportState
// exchange with collaborators.
type TransformState struct {
	TX, TY, Scale float64
}

// PerformanceMetrics is the snapshot getPerformanceMetrics returns.
type PerformanceMetrics struct {
	VisiblePolygons   int
	TotalPolygons     int
	PolygonBudget     int
	BudgetUtilization float64
	CurrentDepth      uint32
	ZoomLevel         float64
	ZoomThresholdLow  float64
	ZoomThresholdHigh float64
	ViewportBounds    model.BoundingBox
	Fps               float64
}

// Renderer is the core per-document rendering session. All methods are
// intended to run on a single goroutine (the owning render/event loop);
// Renderer applies no internal locking beyond what's needed to make
// onViewportChanged delivery safe to call from onDepthChange.
type Renderer struct {
	mu sync.Mutex

	ready bool
	graph scene.Graph
	idx   *spatial.Index
	view  *viewport.View
	lodCtl *lod.Controller

	doc             model.Document
	layerVisibility map[string]bool
	hasRenderedTile map[string]bool
	mode            lod.FillMode
	locked          bool

	tileSize float64

	lastResult  render.Result
	rerendering bool
	generation  int64
	fps         float64

	onViewportChanged func()
	onViewportBlocked func()
	pendingNotify     bool
}

// NewRenderer constructs a Renderer bound to the given scene graph backend.
// The graph is supplied by the caller (glscene.NewGraph() in production, a
// fake in tests) so Init never needs a live GPU context.
func NewRenderer(graph scene.Graph) *Renderer {
	return &Renderer{graph: graph}
}

// Init prepares the renderer for a canvas of the given size. Operations
// called before Init return coreerrors.InitNotReady.
func (r *Renderer) Init(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.view = viewport.NewView(cfg.CanvasWidth, cfg.CanvasHeight)
	r.idx = spatial.New()
	r.tileSize = cfg.TileSize
	r.layerVisibility = map[string]bool{}
	r.hasRenderedTile = map[string]bool{}
	r.mode = lod.Fill
	r.ready = true
}

// Destroy releases the renderer's spatial index and marks it not-ready.
// Further calls behave as if Init was never called.
func (r *Renderer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = false
	r.idx = nil
}

// RenderDocument installs doc as the current document and performs a full
// render. skipFit suppresses the implicit fitToView a fresh load normally
// performs. overrideScale is accepted but not applied: this pass, like
// every rerender, derives stroke width from the live view scale.
func (r *Renderer) RenderDocument(doc model.Document, progress func(rendered, total int), skipFit bool, overrideScale float64) (render.Result, error) {
	if !r.requireReady() {
		return render.Result{}, coreerrors.InitNotReady
	}

	r.mu.Lock()
	r.doc = doc
	r.layerVisibility = make(map[string]bool, len(doc.Layers))
	for key, info := range doc.Layers {
		r.layerVisibility[key] = info.Visible
	}
	r.hasRenderedTile = map[string]bool{}
	if r.lodCtl == nil {
		r.lodCtl = lod.New(doc.TotalInstances(doc.TopCells), doc.TotalPolygons(doc.TopCells))
		r.lodCtl.SetOnDepthChange(func(uint32) { r.rerender(nil) })
	}
	r.mu.Unlock()

	if !skipFit {
		r.FitToView()
	}

	return r.rerender(progress)
}

// rerender performs one full render pass. Calls nest only when a caller's
// OnProgress callback turns around and triggers a fresh rerender (e.g. the
// host aborts a slow render in response to further user input); in that
// case the inner call's generation is newer, and this call's own completion
// is superseded: it returns coreerrors.RerenderSuperseded and leaves
// lastResult alone rather than clobbering the newer pass's result with
// stale data.
func (r *Renderer) rerender(progress func(rendered, total int)) (render.Result, error) {
	r.mu.Lock()
	r.generation++
	myGeneration := r.generation
	r.rerendering = true
	r.lodCtl.SetRerendering(true)
	doc := r.doc
	opts := render.Options{
		MaxDepth:             int(r.lodCtl.CurrentDepth()),
		MaxPolygonsPerRender: r.lodCtl.GetScaledBudget(),
		Mode:                 r.mode,
		ViewportScale:        r.view.Scale,
		LayerVisibility:      r.layerVisibility,
		OnProgress:           progress,
		TileSize:             r.tileSize,
	}
	graph, idx := r.graph, r.idx
	r.mu.Unlock()

	result, err := render.Render(doc, graph, idx, opts)

	r.mu.Lock()
	if r.generation != myGeneration {
		r.mu.Unlock()
		return render.Result{}, coreerrors.RerenderSuperseded
	}
	r.lastResult = result
	r.rerendering = false
	r.lodCtl.SetRerendering(false)
	r.lodCtl.RecomputeZoomThresholds(r.view.Scale)
	for key, visible := range r.layerVisibility {
		if visible {
			r.hasRenderedTile[key] = true
		}
	}
	pending := r.pendingNotify
	r.pendingNotify = false
	cb := r.onViewportChanged
	r.mu.Unlock()

	if err != nil {
		return render.Result{}, fmt.Errorf("render document: %w", err)
	}
	if pending && cb != nil {
		cb()
	}
	if result.BudgetExhausted {
		return result, coreerrors.BudgetExhausted
	}
	return result, nil
}

func (r *Renderer) requireReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// GetViewportState returns the current (tx, ty, s).
func (r *Renderer) GetViewportState() TransformState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.view == nil {
		return TransformState{}
	}
	return TransformState{TX: r.view.TX, TY: r.view.TY, Scale: r.view.Scale}
}

// SetViewportState installs a transform directly, subject to the viewport
// lock.
func (r *Renderer) SetViewportState(s TransformState) error {
	return r.mutateViewport(func() {
		r.view.SetPan(s.TX, s.TY)
		r.view.SetScale(s.Scale)
	})
}

// SetViewportCenter recenters the viewport on a world point at the current
// scale.
func (r *Renderer) SetViewportCenter(wx, wy float64) error {
	return r.mutateViewport(func() {
		r.view.SetPan(float64(r.view.Width)/2-wx*r.view.Scale, float64(r.view.Height)/2+wy*r.view.Scale)
	})
}

// SetViewportCenterAndScale recenters and rescales in one step.
func (r *Renderer) SetViewportCenterAndScale(wx, wy, s float64) error {
	return r.mutateViewport(func() {
		r.view.SetScale(s)
		r.view.SetPan(float64(r.view.Width)/2-wx*r.view.Scale, float64(r.view.Height)/2+wy*r.view.Scale)
	})
}

// FitToView scales and centers the viewport so the whole document is
// visible. Idempotent: calling it twice in a row with no other state
// change produces the same transform both times.
func (r *Renderer) FitToView() error {
	return r.mutateViewport(func() {
		bb := r.doc.BoundingBox
		if bb.IsEmpty() || bb.Width() == 0 || bb.Height() == 0 {
			return
		}
		scaleX := float64(r.view.Width) / bb.Width()
		scaleY := float64(r.view.Height) / bb.Height()
		scale := scaleX
		if scaleY < scaleX {
			scale = scaleY
		}
		r.view.SetScale(scale)
		r.view.SetPan(float64(r.view.Width)/2-bb.CenterX()*r.view.Scale, float64(r.view.Height)/2+bb.CenterY()*r.view.Scale)
	})
}

// mutateViewport applies fn under the viewport lock check, firing
// onViewportChanged afterwards unless a re-render is mid-flight (in which
// case the notification is deferred and emitted once, after it completes).
func (r *Renderer) mutateViewport(fn func()) error {
	if !r.requireReady() {
		return coreerrors.InitNotReady
	}

	r.mu.Lock()
	if r.locked {
		cb := r.onViewportBlocked
		r.mu.Unlock()
		if cb != nil {
			cb()
		}
		return coreerrors.ViewportLocked
	}
	fn()
	rerendering := r.rerendering
	if rerendering {
		r.pendingNotify = true
	}
	cb := r.onViewportChanged
	r.mu.Unlock()

	if !rerendering && cb != nil {
		cb()
	}
	return nil
}

// SetViewportLocked suppresses all user-initiated transform changes while
// true; blocked attempts invoke onViewportBlocked instead of mutating state.
func (r *Renderer) SetViewportLocked(locked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = locked
}

// ToggleFill swaps between fill and outline rendering modes and triggers a
// re-render if the new mode requires one.
func (r *Renderer) ToggleFill() {
	r.mu.Lock()
	r.mode = !r.mode
	needsRerender := lod.ShouldRerenderOnZoomChange(r.mode)
	r.mu.Unlock()
	if needsRerender {
		r.rerender(nil)
	}
}

// ToggleGrid is a no-op on renderer state: the grid overlay is drawn by the
// host from internal/overlay independently of the scene graph, so there is
// nothing here to recompute. Kept as an explicit entry point so
// collaborators have one call to make regardless of which layer owns the
// grid.
func (r *Renderer) ToggleGrid() {}

// CheckZoomRerender feeds the current zoom into the LOD controller after a
// scale change; the host calls this once per scroll/zoom gesture. A
// resulting depth change runs rerender via the onDepthChange callback
// installed in RenderDocument.
func (r *Renderer) CheckZoomRerender() {
	r.mu.Lock()
	if r.lodCtl == nil || r.view == nil {
		r.mu.Unlock()
		return
	}
	budget := r.lodCtl.GetScaledBudget()
	utilization := 0.0
	if budget > 0 {
		utilization = float64(r.lastResult.TotalRendered) / float64(budget)
	}
	scale := r.view.Scale
	r.mu.Unlock()

	r.lodCtl.CheckAndTriggerRerender(scale, utilization)
}

// SetOnViewportChanged installs the callback fired after any transform
// change, except while a re-render is mid-flight (that notification is
// deferred and emitted once when the re-render completes).
func (r *Renderer) SetOnViewportChanged(cb func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onViewportChanged = cb
}

// SetOnViewportBlocked installs the callback fired when a locked viewport
// rejects a mutation attempt.
func (r *Renderer) SetOnViewportBlocked(cb func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onViewportBlocked = cb
}

// ReportFrameTime feeds the host frame loop's measured frames-per-second
// into the renderer, surfaced through GetPerformanceMetrics. The host is
// responsible for the measurement window (e.g. a rolling one-second
// average); the renderer just stores the latest value.
func (r *Renderer) ReportFrameTime(fps float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fps = fps
}

// GetPerformanceMetrics snapshots the renderer's current stats.
func (r *Renderer) GetPerformanceMetrics() PerformanceMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	budget := 0
	depth := uint32(0)
	low, high := 0.0, 0.0
	if r.lodCtl != nil {
		budget = r.lodCtl.GetScaledBudget()
		depth = r.lodCtl.CurrentDepth()
		low = r.lodCtl.ZoomThresholdLow()
		high = r.lodCtl.ZoomThresholdHigh()
	}
	bounds := model.EmptyBoundingBox()
	if r.view != nil {
		bounds = r.view.ViewportBoundsWorld()
	}

	utilization := 0.0
	if budget > 0 {
		utilization = float64(r.lastResult.TotalRendered) / float64(budget)
	}

	return PerformanceMetrics{
		VisiblePolygons:   r.lastResult.TotalRendered,
		TotalPolygons:     r.doc.TotalPolygons(r.doc.TopCells),
		PolygonBudget:     budget,
		BudgetUtilization: utilization,
		CurrentDepth:      depth,
		ZoomLevel:         r.zoomLevel(),
		ZoomThresholdLow:  low,
		ZoomThresholdHigh: high,
		ViewportBounds:    bounds,
		Fps:               r.fps,
	}
}

func (r *Renderer) zoomLevel() float64 {
	if r.view == nil {
		return 0
	}
	return r.view.Scale
}

// OnLayerVisibilityChanged installs the new layer -> visible map. It is
// idempotent: calling it again with the same map is a no-op beyond
// recomputing which layers became visible without rendered tiles. If any
// did, one full re-render of every visible layer runs; the pass is not
// restricted to the newly visible layers. Otherwise nothing is re-rendered,
// and tiles of layers that were just hidden stay in the scene graph until
// the next render pass.
func (r *Renderer) OnLayerVisibilityChanged(newVisibility map[string]bool) {
	r.mu.Lock()
	oldVisibility := r.layerVisibility
	r.layerVisibility = newVisibility
	newlyVisible := viewport.DetectNewlyVisibleLayers(newVisibility, oldVisibility, r.hasRenderedTile)
	r.mu.Unlock()

	if len(newlyVisible) > 0 {
		r.rerender(nil)
	}
}
