package main

import (
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/jwt625/gdsjam/internal/geom"
	"github.com/jwt625/gdsjam/internal/lod"
	"github.com/jwt625/gdsjam/internal/zoomlimits"
)

const repeatInterval = 125 * time.Millisecond // time between successive pans when a key is held

// eventHandlers wires GLFW input callbacks to viewport/LOD state, grounded
// on the teacher's continuous-key-repeat and drag-to-pan event loop.
type eventHandlers struct {
	app *application

	panKeyHeld                   bool
	panDirectionX, panDirectionY float64
	lastPanTime                  time.Time

	isDragging                       bool
	dragStartMouseX, dragStartMouseY float64
	dragStartPanX, dragStartPanY     float64

	mouseCanvasX, mouseCanvasY float64

	limits zoomlimits.Limits
}

func newEventHandlers(app *application) *eventHandlers {
	eh := &eventHandlers{app: app, lastPanTime: time.Now()}
	eh.limits = zoomlimits.ForDocument(app.doc.BoundingBox, app.doc.Units.ToMicrons)
	eh.setupCallbacks(app.window)
	return eh
}

func (eh *eventHandlers) setupCallbacks(window *glfw.Window) {
	window.SetKeyCallback(func(wnd *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
		eh.handleKey(key, action)
	})
	window.SetMouseButtonCallback(func(wnd *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		eh.handleMouseButton(button, action)
	})
	window.SetCursorPosCallback(func(wnd *glfw.Window, xpos, ypos float64) {
		eh.handleCursorPos(xpos, ypos)
	})
	window.SetScrollCallback(func(wnd *glfw.Window, _, zoomDelta float64) {
		eh.performZoom(zoomDelta)
	})
	window.SetFramebufferSizeCallback(func(wnd *glfw.Window, newW, newH int) {
		eh.handleFramebufferSize(newW, newH)
	})
}

func (eh *eventHandlers) handleKey(key glfw.Key, action glfw.Action) {
	if action == glfw.Release {
		switch key {
		case glfw.KeyJ, glfw.KeyK, glfw.KeyH, glfw.KeyL:
			eh.panKeyHeld = false
		}
		return
	}
	if action != glfw.Press {
		return
	}
	switch key {
	case glfw.KeyF:
		eh.app.mode = !eh.app.mode
		if lod.ShouldRerenderOnZoomChange(eh.app.mode) {
			eh.app.rerender()
		}
	case glfw.KeyJ:
		eh.startPan(0, -1)
	case glfw.KeyK:
		eh.startPan(0, 1)
	case glfw.KeyH:
		eh.startPan(-1, 0)
	case glfw.KeyL:
		eh.startPan(1, 0)
	case glfw.KeyR:
		eh.app.view.ResetTo(currentCenter(eh.app))
		eh.app.cullDebounce.Request()
	}
}

func currentCenter(app *application) geom.Point {
	wx, wy := app.view.WorldFromScreen(float64(app.view.Width)/2, float64(app.view.Height)/2)
	return geom.Point{X: wx, Y: wy}
}

func (eh *eventHandlers) startPan(dx, dy float64) {
	eh.panKeyHeld = true
	eh.panDirectionX, eh.panDirectionY = dx, dy
}

func (eh *eventHandlers) handleContinuousPanning() {
	if !eh.panKeyHeld {
		return
	}
	if time.Since(eh.lastPanTime) < repeatInterval {
		return
	}
	eh.lastPanTime = time.Now()

	const basePanDistance = 40.0
	v := eh.app.view
	v.SetPan(v.TX+eh.panDirectionX*basePanDistance, v.TY+eh.panDirectionY*basePanDistance)
	eh.app.cullDebounce.Request()
}

func (eh *eventHandlers) handleMouseButton(button glfw.MouseButton, action glfw.Action) {
	if button != glfw.MouseButtonLeft {
		return
	}
	v := eh.app.view
	switch action {
	case glfw.Press:
		eh.isDragging = true
		eh.dragStartMouseX, eh.dragStartMouseY = eh.mouseCanvasX, eh.mouseCanvasY
		eh.dragStartPanX, eh.dragStartPanY = v.TX, v.TY
	case glfw.Release:
		eh.isDragging = false
	}
}

func (eh *eventHandlers) handleCursorPos(xpos, ypos float64) {
	eh.mouseCanvasX, eh.mouseCanvasY = xpos, ypos
	if !eh.isDragging {
		return
	}
	v := eh.app.view
	v.SetPan(eh.dragStartPanX+(xpos-eh.dragStartMouseX), eh.dragStartPanY+(ypos-eh.dragStartMouseY))
	eh.app.cullDebounce.Request()
}

// performZoom zooms around the current cursor position: the world point
// under the cursor stays fixed on screen after the zoom.
func (eh *eventHandlers) performZoom(delta float64) {
	v := eh.app.view
	const zoomFactor = 1.1

	wx, wy := v.WorldFromScreen(eh.mouseCanvasX, eh.mouseCanvasY)

	newScale := v.Scale
	if delta > 0 {
		newScale *= zoomFactor
	} else if delta < 0 {
		newScale /= zoomFactor
	}
	newScale = zoomlimits.ClampZoomScale(newScale, v.Scale, float64(v.Width), eh.limits, eh.app.doc.Units.ToMicrons)
	v.SetScale(newScale)

	px, py := v.ScreenFromWorld(wx, wy)
	v.SetPan(v.TX+(eh.mouseCanvasX-px), v.TY+(eh.mouseCanvasY-py))

	eh.app.cullDebounce.Request()
	eh.app.lodCtl.CheckAndTriggerRerender(v.Scale, utilization(eh.app))
}

func utilization(app *application) float64 {
	budget := app.lodCtl.GetScaledBudget()
	if budget == 0 {
		return 0
	}
	return float64(app.lastResult.TotalRendered) / float64(budget)
}

func (eh *eventHandlers) handleFramebufferSize(newW, newH int) {
	eh.app.view.SetSize(newW, newH)
	eh.app.cullDebounce.Request()
}
