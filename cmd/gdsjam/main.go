package main

import (
	"flag"
	"fmt"
	"image/color"
	"io"
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/jwt625/gdsjam/internal/glscene"
	"github.com/jwt625/gdsjam/internal/lod"
	"github.com/jwt625/gdsjam/internal/minimap"
	"github.com/jwt625/gdsjam/internal/model"
	"github.com/jwt625/gdsjam/internal/render"
	"github.com/jwt625/gdsjam/internal/scene"
	"github.com/jwt625/gdsjam/internal/spatial"
	"github.com/jwt625/gdsjam/internal/viewport"
)

const logFlags = log.Ltime | log.Lshortfile

var runtimeLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	// OpenGL contexts are tied to specific OS threads - let's pin to just one.
	runtime.LockOSThread()
	log.SetFlags(logFlags)

	if os.Getenv("GDSJAM_DEBUG_RUNTIME") == "1" {
		runtimeLogger = log.New(os.Stdout, "[runtime] ", log.Ltime|log.Lmsgprefix)
	}
}

func makeTitle(fps, avgFrameTime float64, stats scene.GraphStats, renderResult render.Result) string {
	return fmt.Sprintf("GDSJam (%.1f FPS, %.2fms/frame, %d tiles, %d polygons, %d vertices, %.1fMiB GPU)",
		fps, avgFrameTime,
		stats.TotalTiles, renderResult.TotalRendered, stats.TotalVertices,
		float64(stats.TotalGPUBytes)/(1024.0*1024.0),
	)
}

// application bundles the single-threaded, cooperatively-scheduled state
// the renderer, viewport, and LOD controller all read from and write to.
type application struct {
	window *glfw.Window
	view   *viewport.View
	graph  *glscene.Graph
	idx    *spatial.Index
	lodCtl *lod.Controller

	doc             model.Document
	layerVisibility map[string]bool
	mode            lod.FillMode
	lastResult      render.Result

	cullDebounce *viewport.Debouncer
}

func (a *application) rerender() {
	opts := render.Options{
		MaxDepth:             int(a.lodCtl.CurrentDepth()),
		MaxPolygonsPerRender: a.lodCtl.GetScaledBudget(),
		Mode:                 a.mode,
		ViewportScale:        a.view.Scale,
		LayerVisibility:      a.layerVisibility,
		OnProgress: func(rendered, total int) {
			runtimeLogger.Printf("progress: %d/%d polygons", rendered, total)
		},
	}
	result, err := render.Render(a.doc, a.graph, a.idx, opts)
	if err != nil {
		runtimeLogger.Printf("render failed: %v", err)
		return
	}
	a.lastResult = result
	a.lodCtl.RecomputeZoomThresholds(a.view.Scale)
}

func main() {
	flag.Parse()

	if err := glfw.Init(); err != nil {
		log.Fatalf("failed to initialize GLFW: %v", err)
	}
	defer glfw.Terminate()

	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)

	window, err := glfw.CreateWindow(1280, 960, "GDSJam", nil, nil)
	if err != nil {
		log.Fatalf("failed to create window: %v", err)
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		log.Fatalf("failed to initialize OpenGL: %v", err)
	}

	cw, ch := window.GetFramebufferSize()
	doc := buildDemoDocument(seed())

	layerVisibility := make(map[string]bool, len(doc.Layers))
	for key, info := range doc.Layers {
		layerVisibility[key] = info.Visible
	}

	app := &application{
		window:          window,
		view:            viewport.NewView(cw, ch),
		graph:           glscene.NewGraph(),
		idx:             spatial.New(),
		lodCtl:          lod.New(doc.TotalInstances(doc.TopCells), doc.TotalPolygons(doc.TopCells)),
		doc:             doc,
		layerVisibility: layerVisibility,
		mode:            lod.Fill,
	}
	app.cullDebounce = viewport.NewDebouncer(viewport.CullDebounceInterval, func() {
		viewport.UpdateVisibility(app.view.ViewportBoundsWorld(), nil, app.layerVisibility)
	})
	app.lodCtl.SetOnDepthChange(func(uint32) { app.rerender() })
	app.rerender()

	minimapFit := minimap.FitToCanvas(doc.BoundingBox, 256, 256)
	minimapResult := minimap.Render(doc, minimapFit, layerVisibility, colorsFromLayers(doc))
	runtimeLogger.Printf("minimap: %d polygons drawn, %d cells skipped", minimapResult.Stats.PolygonsDrawn, minimapResult.Stats.CellsSkipped)

	handlers := newEventHandlers(app)

	frameCount, frameTimeSum := 0, 0.0
	lastFPSUpdate := time.Now()

	for !window.ShouldClose() {
		frameStart := time.Now()

		handlers.handleContinuousPanning()

		w, h := window.GetFramebufferSize()
		gl.Viewport(0, 0, int32(w), int32(h))
		gl.ClearColor(1, 1, 1, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT)

		app.graph.SetTransform(transformMatrix(app.view))
		app.graph.Draw()

		window.SwapBuffers()
		glfw.PollEvents()

		frameTime := time.Since(frameStart).Seconds() * 1000.0
		frameTimeSum += frameTime
		frameCount++

		now := time.Now()
		if now.Sub(lastFPSUpdate) >= time.Second {
			fps := float64(frameCount) / now.Sub(lastFPSUpdate).Seconds()
			avgFrameTime := frameTimeSum / float64(frameCount)
			frameCount, frameTimeSum = 0, 0.0
			lastFPSUpdate = now

			stats := app.graph.Stats()
			window.SetTitle(makeTitle(fps, avgFrameTime, stats, app.lastResult))
			runtimeLogger.Printf("tiles=%d vertices=%d gpu=%.2fMiB", stats.TotalTiles, stats.TotalVertices, float64(stats.TotalGPUBytes)/(1024.0*1024.0))
		}
	}
}

// transformMatrix builds the row-major 3x3 world-to-clip affine matrix the
// scene graph's shader uniform expects: the viewport's world-to-screen
// transform followed by the pixel-to-[-1,1] clip-space mapping.
func transformMatrix(v *viewport.View) [9]float64 {
	w, h := float64(v.Width), float64(v.Height)
	if w == 0 || h == 0 {
		w, h = 1, 1
	}
	return [9]float64{
		2 * v.Scale / w, 0, 2*v.TX/w - 1,
		0, 2 * v.Scale / h, 1 - 2*v.TY/h,
		0, 0, 1,
	}
}

func colorsFromLayers(doc model.Document) map[string]color.RGBA {
	colors := make(map[string]color.RGBA, len(doc.Layers))
	for key, info := range doc.Layers {
		colors[key] = info.Color
	}
	return colors
}

func seed() int64 {
	seedStr := os.Getenv("GDSJAM_SEED")
	if seedStr == "" {
		return 1
	}
	s, err := strconv.ParseInt(seedStr, 10, 64)
	if err != nil {
		log.Fatalf("invalid GDSJAM_SEED value %q: %v", seedStr, err)
	}
	return s
}
