// Package scene defines the backend-agnostic interfaces the renderer (C5)
// draws through. internal/glscene provides the concrete OpenGL
// implementation; tests exercise the renderer against a fake, so the
// hierarchy-flattening algorithm is verifiable without a GPU context.
package scene

// TileKey identifies one batch of triangulated geometry: everything sharing
// a layer, datatype, and tile coordinate is drawn together.
type TileKey struct {
	Layer    uint16
	Datatype uint16
	TileX    int64
	TileY    int64
}

// Vertex is a single triangulated point plus its fill color, in world-space
// coordinates (pre-viewport-transform).
type Vertex struct {
	X, Y       float64
	R, G, B, A uint8
}

// DrawHandle is a live GPU (or fake, in tests) allocation for one tile's
// triangulated geometry. Renderers hold onto handles across frames so
// unaffected tiles are never re-uploaded.
type DrawHandle interface {
	// Key identifies which tile this handle belongs to.
	Key() TileKey
	// Release frees the handle's GPU allocation. Safe to call once.
	Release()
}

// Graph is the drawable scene: a set of tile allocations the renderer keeps
// in sync with what's visible, plus whatever state is needed to issue the
// actual draw calls for a frame.
type Graph interface {
	// Upload allocates or replaces the geometry for a tile, returning a
	// handle the caller retains until the tile is no longer visible.
	Upload(key TileKey, vertices []Vertex) (DrawHandle, error)
	// Remove releases a previously uploaded tile's allocation.
	Remove(handle DrawHandle)
	// SetTransform installs the current world-to-clip transform used by
	// the next Draw call.
	SetTransform(m [9]float64)
	// Draw issues the GPU (or fake) draw calls for every live handle.
	Draw()
	// Stats reports current GPU memory utilization, for performance
	// metrics surfaced through the renderer's public API.
	Stats() GraphStats
}

// GraphStats mirrors glscene.Stats at the interface boundary so callers
// outside internal/glscene don't need to import it directly.
type GraphStats struct {
	TotalTiles       int
	TotalVertices    int64
	TotalGPUBytes    int64
	TotalActiveSlots int
}
