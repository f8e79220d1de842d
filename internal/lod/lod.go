// Package lod implements the level-of-detail controller (C4): it decides
// how deep into the cell hierarchy the renderer should flatten, and how
// large a polygon budget it gets, based on zoom and utilization feedback.
package lod

import (
	"io"
	"log"
	"os"
)

var lodLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("GDSJAM_DEBUG_LOD") == "1" {
		lodLogger = log.New(os.Stdout, "[lod] ", log.Ltime|log.Lmsgprefix)
	}
}

const (
	// HierarchicalPolygonThreshold: a document whose top cells reference
	// instances and have fewer polygons than this is declared hierarchical,
	// starting the renderer at depth 3 instead of 0.
	HierarchicalPolygonThreshold = 4000

	// MaxDepth is the hard ceiling on recursion depth, independent of
	// zoom/utilization feedback.
	MaxDepth = 16

	baseBudget = 200_000

	highUtilization = 0.90
	lowUtilization  = 0.30
)

// Controller tracks currentDepth and the derived polygon budget, and turns
// zoom/utilization signals into depth-change requests.
type Controller struct {
	currentDepth uint32
	rerendering  bool

	zoomThresholdLow  float64
	zoomThresholdHigh float64

	onDepthChange func(newDepth uint32)
}

// New creates a controller. If the document is hierarchical (per
// topCellInstanceCount > 0 and topCellPolygonCount <
// HierarchicalPolygonThreshold), currentDepth starts at 3; otherwise 0.
func New(topCellInstanceCount, topCellPolygonCount int) *Controller {
	c := &Controller{}
	if topCellInstanceCount > 0 && topCellPolygonCount < HierarchicalPolygonThreshold {
		c.currentDepth = 3
	}
	return c
}

// SetOnDepthChange installs the callback invoked whenever the controller
// raises or lowers depth. The host wires this to the renderer's incremental
// re-render entry point.
func (c *Controller) SetOnDepthChange(fn func(newDepth uint32)) {
	c.onDepthChange = fn
}

// CurrentDepth returns the controller's current recursion depth.
func (c *Controller) CurrentDepth() uint32 { return c.currentDepth }

// ZoomThresholdLow and ZoomThresholdHigh return the current re-render
// trigger bounds set by the last RecomputeZoomThresholds call, for
// performance-metrics reporting.
func (c *Controller) ZoomThresholdLow() float64  { return c.zoomThresholdLow }
func (c *Controller) ZoomThresholdHigh() float64 { return c.zoomThresholdHigh }

// SetRerendering marks whether a re-render is currently in flight;
// CheckAndTriggerRerender is a no-op while true.
func (c *Controller) SetRerendering(rerendering bool) { c.rerendering = rerendering }

// RecomputeZoomThresholds derives (zoomThresholdLow, zoomThresholdHigh)
// around the current zoom, called after each render so smooth zooming
// triggers a re-render when crossing these bounds.
func (c *Controller) RecomputeZoomThresholds(currentZoom float64) {
	c.zoomThresholdLow = currentZoom / 2
	c.zoomThresholdHigh = currentZoom * 2
}

// CheckAndTriggerRerender requests a depth change when currentZoom falls
// outside [zoomThresholdLow, zoomThresholdHigh] and no re-render is already
// in flight. Depth increases as zoom increases (more detail when zoomed
// in), decreases when zoomed out; utilization applies a tie-break: >90%
// forbids an increase, <30% after a zoom-in allows depth to climb by 1.
func (c *Controller) CheckAndTriggerRerender(currentZoom, utilization float64) {
	if c.rerendering {
		return
	}
	if c.zoomThresholdLow == 0 && c.zoomThresholdHigh == 0 {
		return // RecomputeZoomThresholds not yet called
	}

	switch {
	case currentZoom > c.zoomThresholdHigh:
		if utilization > highUtilization {
			lodLogger.Printf("zoom-in requested depth increase suppressed: utilization %.2f > %.2f", utilization, highUtilization)
			return
		}
		c.changeDepth(c.currentDepth + 1)
	case currentZoom < c.zoomThresholdLow:
		if c.currentDepth == 0 {
			return
		}
		c.changeDepth(c.currentDepth - 1)
	}
}

func (c *Controller) changeDepth(newDepth uint32) {
	if newDepth > MaxDepth {
		newDepth = MaxDepth
	}
	if newDepth == c.currentDepth {
		return
	}
	c.currentDepth = newDepth
	if c.onDepthChange != nil {
		c.onDepthChange(newDepth)
	}
}

// GetScaledBudget returns the polygon budget for the current depth: the
// budget shrinks as depth grows, a hard ceiling against OOM/stall from
// runaway flattening.
func (c *Controller) GetScaledBudget() int {
	budget := baseBudget >> c.currentDepth
	if budget < 1000 {
		budget = 1000
	}
	return budget
}

// FillMode selects whether strokes are drawn (outline mode, true) or
// polygons are filled (fill mode, false).
type FillMode bool

const (
	Fill    FillMode = false
	Outline FillMode = true
)

// ShouldRerenderOnZoomChange is true in outline mode (stroke widths are
// baked into the draw list at a fixed screen-pixel target and go stale as
// zoom changes) and false in fill mode.
func ShouldRerenderOnZoomChange(mode FillMode) bool {
	return mode == Outline
}
