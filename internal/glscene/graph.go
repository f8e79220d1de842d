package glscene

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/jwt625/gdsjam/internal/scene"
)

// Graph adapts MemoryController and ShaderManager to scene.Graph.
type Graph struct {
	mc      *MemoryController
	shaders *ShaderManager
	nextID  int64
	ids     map[scene.TileKey]TileID
}

// NewGraph compiles the shader program and constructs an empty graph. Must
// be called on the thread holding the current GL context.
func NewGraph() *Graph {
	return &Graph{
		mc:      NewMemoryController(),
		shaders: NewShaderManager(),
		ids:     make(map[scene.TileKey]TileID),
	}
}

type handle struct {
	key scene.TileKey
	id  TileID
	g   *Graph
}

func (h *handle) Key() scene.TileKey { return h.key }
func (h *handle) Release() {
	h.g.mc.RemoveTile(h.id)
	delete(h.g.ids, h.key)
}

func (g *Graph) tileID(key scene.TileKey) TileID {
	if id, ok := g.ids[key]; ok {
		return id
	}
	g.nextID++
	id := TileID(g.nextID)
	g.ids[key] = id
	return id
}

// Upload flattens vertex.{X,Y,R,G,B,A} into the interleaved float32 layout
// the memory controller's VBOs expect: position (2) then RGBA color (4),
// normalized to [0, 1].
func (g *Graph) Upload(key scene.TileKey, vertices []scene.Vertex) (scene.DrawHandle, error) {
	id := g.tileID(key)
	data := make([]float32, 0, len(vertices)*6)
	for _, v := range vertices {
		data = append(data,
			float32(v.X), float32(v.Y),
			float32(v.R)/255, float32(v.G)/255, float32(v.B)/255, float32(v.A)/255,
		)
	}
	if err := g.mc.EnsureSlot(id, data); err != nil {
		return nil, fmt.Errorf("uploading tile %v: %w", key, err)
	}
	return &handle{key: key, id: id, g: g}, nil
}

func (g *Graph) Remove(h scene.DrawHandle) {
	if h == nil {
		return
	}
	if hh, ok := h.(*handle); ok {
		hh.Release()
	}
}

// SetTransform accepts a row-major 3x3 affine matrix (the last row is
// implicitly [0 0 1]) and expands it into the 4x4 matrix the shader
// uniform expects.
func (g *Graph) SetTransform(m [9]float64) {
	flat := [16]float32{
		float32(m[0]), float32(m[3]), 0, 0,
		float32(m[1]), float32(m[4]), 0, 0,
		0, 0, 1, 0,
		float32(m[2]), float32(m[5]), 0, 1,
	}
	g.shaders.SetTransform(flat)
}

func (g *Graph) Draw() {
	gl.UseProgram(g.shaders.program)
	if err := g.mc.Draw(); err != nil {
		glsceneLogger.Printf("draw failed: %v", err)
	}
}

func (g *Graph) Stats() scene.GraphStats {
	s := g.mc.Stats()
	return scene.GraphStats{
		TotalTiles:       s.TotalTiles,
		TotalVertices:    s.TotalVertices,
		TotalGPUBytes:    s.TotalGPUBytes,
		TotalActiveSlots: s.TotalActiveSlots,
	}
}
