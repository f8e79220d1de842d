// Package glscene is the OpenGL-backed implementation of the scene.Graph
// interface. A tile's triangulated geometry lands in one of a handful of
// shared GPU vertex buffers, grouped by how big the tile is so that a
// single oversized tile never forces every other tile's buffer to resize.
//
// Tiles are keyed by (layer, datatype, tileX, tileY); see
// internal/render.tileKeyFor for how that key is derived from a polygon's
// transformed position.
package glscene

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
)

var glsceneLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("GDSJAM_DEBUG_GLSCENE") == "1" {
		glsceneLogger = log.New(os.Stdout, "[glscene] ", log.Ltime|log.Lmsgprefix)
	}
}

// Allocator tuning. These knobs trade GPU memory and chunk churn against
// each other; the values below are starting points, not load-tested.
const (
	// A chunk below DefragThreshold slot utilization is a compaction
	// candidate: TryCompaction tries to relocate its live slots into other
	// chunks in the same class and delete it once empty. At most
	// DefragMaxPerFrame chunks are touched per call, so a large backlog of
	// sparse chunks drains gradually instead of stalling a frame.
	DefragEnableCompaction = true
	DefragThreshold        = 0.25
	DefragMaxPerFrame      = 1

	// A chunk at or above GrowthUtilThreshold slot utilization is eligible
	// to double its VBO and slot count, up to GrowthMaxCycles times or
	// until GrowthMaxBatchBytes is reached, whichever comes first.
	GrowthEnableDynamic = true
	GrowthUtilThreshold = 0.75
	GrowthMaxCycles     = 2
	GrowthMaxBatchBytes = 256 * 1024 * 1024

	// With the free list sorted by (chunkID, slotIndex), slots are reused
	// in a stable order instead of LIFO, which keeps geometry for
	// nearby tiles clustered in the same region of a VBO as tiles churn.
	FreeListEnableSorted = true

	// Slot classes, by vertex capacity and how many slots share one chunk.
	// Smaller classes pack more slots per chunk since a single small tile's
	// waste is cheap; the oversized class gets one slot per chunk sized
	// exactly to the tile, since nothing else could reuse the excess room
	// anyway.
	slotCapacitySmall  = 1024
	slotCapacityMedium = 4096
	slotCapacityLarge  = 16384
	slotCapacityJumbo  = 65536
	slotsPerChunkSmall  = 256
	slotsPerChunkMedium = 128
	slotsPerChunkLarge  = 64
	slotsPerChunkJumbo  = 16
	slotsPerChunkSingle = 1
)

// SlotClass groups tiles by how many vertices they need, so a chunk's slot
// size can stay fixed within a class.
type SlotClass int

const (
	ClassSmall     SlotClass = iota // up to 1K vertices (~341 triangles)
	ClassMedium                     // up to 4K vertices (~1365 triangles)
	ClassLarge                      // up to 16K vertices (~5461 triangles)
	ClassJumbo                      // up to 64K vertices (~21845 triangles)
	ClassSingleton                  // one dedicated chunk per tile, for outliers
)

var slotClasses = []SlotClass{ClassSmall, ClassMedium, ClassLarge, ClassJumbo, ClassSingleton}

func (sc SlotClass) String() string {
	switch sc {
	case ClassSmall:
		return "small"
	case ClassMedium:
		return "medium"
	case ClassLarge:
		return "large"
	case ClassJumbo:
		return "jumbo"
	case ClassSingleton:
		return "singleton"
	default:
		return "unknown"
	}
}

// TileID is the memory controller's own handle for a tile's GPU allocation,
// assigned by Graph.tileID the first time a scene.TileKey is uploaded.
type TileID int64

// MemoryController owns every chunk, across every slot class, and tracks
// which tile occupies which slot.
type MemoryController struct {
	pools                map[SlotClass]*ClassPool
	tileSlots            map[TileID]*SlotAllocation
	stats                Stats
	compactor            *Compactor
	tilesNeedingReupload map[TileID]bool
	nextChunkID          int
}

// Stats summarizes the memory controller's current allocation state, for
// performance metrics and the debug print in PrintStats.
type Stats struct {
	TotalTiles           int
	TotalVertices        int64
	TotalGPUBytes        int64
	TotalChunks          int
	TotalSlots           int
	TotalActiveSlots     int
	TotalActiveChunks    int
	DrawCallsPerFrame    int
	ClassStats           map[SlotClass]ClassStats
	CompactionEvents     int
	LastCompactionTimeUs float64
	ChunkDeletions       int
	SlotsRelocated       int
	GrowthEvents         int
	LastGrowthTimeUs     float64
	FreeSlots            int
}

// ClassStats aggregates Stats down to one slot class.
type ClassStats struct {
	TileCount    int
	ChunkCount   int
	TotalSlots   int
	ActiveSlots  int
	ActiveChunks int
	FreeSlots    int
	GPUBytes     int64
	Vertices     int64
}

// Slot is one fixed-capacity allocation inside a chunk.
type Slot struct {
	active       bool
	tileID       TileID
	vertexCount  int
	vertexOffset int
}

// Chunk is a single VBO+VAO pair holding several fixed-capacity slots, all
// in the same slot class.
type Chunk struct {
	id                  int
	vbo                 uint32
	vao                 uint32
	totalVertexCapacity int
	slots               []Slot
	activeSlots         []int // indices into slots, for the ones currently in use
	class               SlotClass
	growthCycles        int
	initialCapacity     int
}

// ClassPool tracks every chunk and every free slot for one slot class.
type ClassPool struct {
	class           SlotClass
	vertexCapacity  int
	slotsPerChunk   int
	chunks          []*Chunk
	freeSlots       []SlotRef
}

// SlotRef points at a specific slot inside a specific chunk.
type SlotRef struct {
	chunk     *Chunk
	slotIndex int
}

// SlotAllocation records where a tile's vertex data currently lives.
type SlotAllocation struct {
	chunk       *Chunk
	slotIndex   int
	vertexCount int
}

// classify picks the smallest slot class that can hold vertexCount
// vertices without reallocating.
func classify(vertexCount int) SlotClass {
	switch {
	case vertexCount <= slotCapacitySmall:
		return ClassSmall
	case vertexCount <= slotCapacityMedium:
		return ClassMedium
	case vertexCount <= slotCapacityLarge:
		return ClassLarge
	case vertexCount <= slotCapacityJumbo:
		return ClassJumbo
	default:
		return ClassSingleton
	}
}

func slotCapacityFor(class SlotClass) int {
	switch class {
	case ClassSmall:
		return slotCapacitySmall
	case ClassMedium:
		return slotCapacityMedium
	case ClassLarge:
		return slotCapacityLarge
	case ClassJumbo:
		return slotCapacityJumbo
	case ClassSingleton:
		return 0 // sized per-tile at allocation time
	default:
		return slotCapacitySmall
	}
}

func slotCountFor(class SlotClass) int {
	switch class {
	case ClassSmall:
		return slotsPerChunkSmall
	case ClassMedium:
		return slotsPerChunkMedium
	case ClassLarge:
		return slotsPerChunkLarge
	case ClassJumbo:
		return slotsPerChunkJumbo
	case ClassSingleton:
		return slotsPerChunkSingle
	default:
		return slotsPerChunkSmall
	}
}

func newClassPool(class SlotClass) *ClassPool {
	return &ClassPool{
		class:          class,
		vertexCapacity: slotCapacityFor(class),
		slotsPerChunk:  slotCountFor(class),
		chunks:         make([]*Chunk, 0),
		freeSlots:      make([]SlotRef, 0),
	}
}

// takeFreeSlot pops a free slot reference, honoring FreeListEnableSorted's
// FIFO-by-(chunk,slot) ordering when enabled.
func (cp *ClassPool) takeFreeSlot() *SlotRef {
	if len(cp.freeSlots) == 0 {
		return nil
	}
	if FreeListEnableSorted {
		ref := cp.freeSlots[0]
		cp.freeSlots = cp.freeSlots[1:]
		return &ref
	}
	ref := cp.freeSlots[len(cp.freeSlots)-1]
	cp.freeSlots = cp.freeSlots[:len(cp.freeSlots)-1]
	return &ref
}

func (cp *ClassPool) releaseSlot(ref SlotRef) {
	if !FreeListEnableSorted {
		cp.freeSlots = append(cp.freeSlots, ref)
		return
	}

	insertAt := len(cp.freeSlots)
	for i, existing := range cp.freeSlots {
		if existing.chunk.id > ref.chunk.id {
			insertAt = i
			break
		}
		if existing.chunk.id < ref.chunk.id {
			continue
		}
		if existing.slotIndex > ref.slotIndex {
			insertAt = i
			break
		}
	}

	cp.freeSlots = append(cp.freeSlots, SlotRef{})
	copy(cp.freeSlots[insertAt+1:], cp.freeSlots[insertAt:])
	cp.freeSlots[insertAt] = ref
}

func (cp *ClassPool) forgetFreeSlot(chunk *Chunk, slotIndex int) {
	kept := cp.freeSlots[:0]
	for _, ref := range cp.freeSlots {
		if ref.chunk.id == chunk.id && ref.slotIndex == slotIndex {
			continue
		}
		kept = append(kept, ref)
	}
	cp.freeSlots = kept
}

func (cp *ClassPool) findChunkWithRoom() *Chunk {
	for _, chunk := range cp.chunks {
		if len(chunk.activeSlots) < len(chunk.slots) {
			return chunk
		}
	}
	return nil
}

// allocateChunk reserves GPU memory for a new chunk of the given class,
// sized to hold vertexCount vertices immediately if the class is
// ClassSingleton, or the class's fixed per-slot capacity otherwise.
func (mc *MemoryController) allocateChunk(class SlotClass, vertexCount int) (*Chunk, error) {
	pool := mc.pools[class]

	var totalVertexCapacity, numSlots int
	if class == ClassSingleton {
		totalVertexCapacity = vertexCount
		numSlots = 1
	} else {
		totalVertexCapacity = pool.vertexCapacity * pool.slotsPerChunk
		numSlots = pool.slotsPerChunk
	}

	var vao, vbo uint32
	gl.GenVertexArrays(1, &vao)
	gl.GenBuffers(1, &vbo)

	gl.BindVertexArray(vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)

	// 6 floats per vertex: x, y, r, g, b, a.
	bufferSize := totalVertexCapacity * 6 * 4
	gl.BufferData(gl.ARRAY_BUFFER, bufferSize, nil, gl.DYNAMIC_DRAW)

	gl.EnableVertexAttribArray(0) // position: vec2
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 24, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1) // color: vec4
	gl.VertexAttribPointer(1, 4, gl.FLOAT, false, 24, gl.PtrOffset(8))

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	slots := make([]Slot, numSlots)
	if class == ClassSingleton {
		slots[0].vertexOffset = 0
	} else {
		for i := 0; i < numSlots; i++ {
			slots[i].vertexOffset = i * pool.vertexCapacity
		}
	}

	chunk := &Chunk{
		id:                  mc.nextChunkID,
		vbo:                 vbo,
		vao:                 vao,
		totalVertexCapacity: totalVertexCapacity,
		slots:               slots,
		activeSlots:         make([]int, 0),
		class:               class,
		initialCapacity:     totalVertexCapacity,
	}
	mc.nextChunkID++

	pool.chunks = append(pool.chunks, chunk)
	return chunk, nil
}

// claimSlot activates the first free slot in the chunk for tileID, removing
// it from the pool's free list if it was tracked there.
func (c *Chunk) claimSlot(pool *ClassPool, tileID TileID, vertexCount int) (int, error) {
	for i := range c.slots {
		if c.slots[i].active {
			continue
		}
		c.slots[i].active = true
		c.slots[i].tileID = tileID
		c.slots[i].vertexCount = vertexCount
		c.activeSlots = append(c.activeSlots, i)
		pool.forgetFreeSlot(c, i)
		return i, nil
	}
	return -1, fmt.Errorf("no available slots in chunk")
}

func (c *Chunk) releaseSlot(slotIndex int) {
	if slotIndex < 0 || slotIndex >= len(c.slots) {
		return
	}

	slot := &c.slots[slotIndex]
	slot.active = false
	slot.tileID = 0
	slot.vertexCount = 0

	for i, idx := range c.activeSlots {
		if idx != slotIndex {
			continue
		}
		last := len(c.activeSlots) - 1
		c.activeSlots[i] = c.activeSlots[last]
		c.activeSlots = c.activeSlots[:last]
		break
	}
}

func (c *Chunk) destroy() {
	if c.vao != 0 {
		gl.DeleteVertexArrays(1, &c.vao)
		c.vao = 0
	}
	if c.vbo != 0 {
		gl.DeleteBuffers(1, &c.vbo)
		c.vbo = 0
	}
}

// growthEligible reports whether this chunk qualifies for a capacity
// doubling: enabled, under the growth-cycle ceiling, above the utilization
// threshold, and the doubled size still fits the byte ceiling.
func (c *Chunk) growthEligible() bool {
	if !GrowthEnableDynamic || len(c.slots) == 0 {
		return false
	}
	if c.growthCycles >= GrowthMaxCycles {
		return false
	}
	util := float64(len(c.activeSlots)) / float64(len(c.slots))
	if util < GrowthUtilThreshold {
		return false
	}
	doubledBytes := c.totalVertexCapacity * 2 * 6 * 4
	return doubledBytes <= GrowthMaxBatchBytes
}

// expandChunk doubles a chunk's VBO and slot count in place, preserving
// every active slot's vertex data by reallocating the underlying buffer and
// copying the vertex attribute bindings across.
func (mc *MemoryController) expandChunk(chunk *Chunk) ([]TileID, error) {
	if !chunk.growthEligible() {
		return nil, fmt.Errorf("chunk not eligible for growth")
	}

	start := time.Now()

	affected := make([]TileID, 0, len(chunk.activeSlots))
	for _, idx := range chunk.activeSlots {
		affected = append(affected, chunk.slots[idx].tileID)
	}

	var savedVAO, savedVBO int32
	gl.GetIntegerv(gl.VERTEX_ARRAY_BINDING, &savedVAO)
	gl.GetIntegerv(gl.ARRAY_BUFFER_BINDING, &savedVBO)

	newCapacity := chunk.totalVertexCapacity * 2
	newSlotCount := len(chunk.slots) * 2

	var newVBO uint32
	gl.GenBuffers(1, &newVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, newVBO)
	gl.BufferData(gl.ARRAY_BUFFER, newCapacity*6*4, nil, gl.DYNAMIC_DRAW)

	oldBytes := chunk.totalVertexCapacity * 6 * 4
	scratch := make([]float32, chunk.totalVertexCapacity*6)
	gl.BindBuffer(gl.ARRAY_BUFFER, chunk.vbo)
	gl.GetBufferSubData(gl.ARRAY_BUFFER, 0, oldBytes, gl.Ptr(scratch))
	gl.BindBuffer(gl.ARRAY_BUFFER, newVBO)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, oldBytes, gl.Ptr(scratch))

	gl.BindVertexArray(chunk.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, newVBO)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 24, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 4, gl.FLOAT, false, 24, gl.PtrOffset(8))

	if savedVAO > 0 {
		gl.BindVertexArray(uint32(savedVAO))
	} else {
		gl.BindVertexArray(0)
	}
	if savedVBO > 0 {
		gl.BindBuffer(gl.ARRAY_BUFFER, uint32(savedVBO))
	} else {
		gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	}
	gl.Finish()

	oldVBO := chunk.vbo
	gl.DeleteBuffers(1, &oldVBO)

	chunk.vbo = newVBO
	chunk.totalVertexCapacity = newCapacity
	chunk.growthCycles++

	oldSlots := chunk.slots
	chunk.slots = make([]Slot, newSlotCount)
	copy(chunk.slots, oldSlots)

	pool := mc.pools[chunk.class]
	offset := pool.vertexCapacity * len(oldSlots)
	for i := len(oldSlots); i < newSlotCount; i++ {
		chunk.slots[i] = Slot{vertexOffset: offset}
		offset += pool.vertexCapacity
		pool.releaseSlot(SlotRef{chunk: chunk, slotIndex: i})
	}

	mc.stats.GrowthEvents++
	mc.stats.LastGrowthTimeUs = float64(time.Since(start).Microseconds())
	return affected, nil
}

// NewMemoryController creates a memory controller with one pool per slot
// class, ready to accept uploads.
func NewMemoryController() *MemoryController {
	mc := &MemoryController{
		pools:                make(map[SlotClass]*ClassPool),
		tileSlots:            make(map[TileID]*SlotAllocation),
		tilesNeedingReupload: make(map[TileID]bool),
		stats:                Stats{ClassStats: make(map[SlotClass]ClassStats)},
		compactor:            newCompactor(),
	}
	for _, class := range slotClasses {
		mc.pools[class] = newClassPool(class)
	}
	return mc
}

// EnsureSlot uploads vertices for tileID, reusing its existing slot in
// place when the data still fits, reallocating into a (possibly different)
// slot class when it doesn't, and allocating fresh when the tile is new.
func (mc *MemoryController) EnsureSlot(tileID TileID, vertices []float32) error {
	if len(vertices) == 0 {
		return fmt.Errorf("cannot allocate empty vertex data for tile %d", tileID)
	}
	if len(vertices)%6 != 0 {
		return fmt.Errorf("vertex data must be multiple of 6 floats (x,y,r,g,b,a), got %d", len(vertices))
	}

	vertexCount := len(vertices) / 6
	class := classify(vertexCount)

	if existing, ok := mc.tileSlots[tileID]; ok {
		capacity := existing.chunk.totalVertexCapacity - existing.chunk.slots[existing.slotIndex].vertexOffset
		if existing.chunk.class != ClassSingleton {
			capacity = mc.pools[existing.chunk.class].vertexCapacity
		}
		if vertexCount <= capacity {
			return mc.updateSlotInPlace(existing, vertices, vertexCount)
		}
		if err := mc.RemoveTile(tileID); err != nil {
			return fmt.Errorf("failed to remove tile %d for reallocation: %w", tileID, err)
		}
	}

	pool := mc.pools[class]
	var chunk *Chunk
	var slotIndex int
	var err error

	for {
		free := pool.takeFreeSlot()
		if free == nil {
			break
		}
		chunk, slotIndex = free.chunk, free.slotIndex
		if class == ClassSingleton {
			capacity := chunk.totalVertexCapacity - chunk.slots[slotIndex].vertexOffset
			if vertexCount > capacity {
				chunk = nil
				continue
			}
		}
		chunk.slots[slotIndex].active = true
		chunk.slots[slotIndex].tileID = tileID
		chunk.slots[slotIndex].vertexCount = vertexCount
		chunk.activeSlots = append(chunk.activeSlots, slotIndex)
		break
	}

	if chunk == nil {
		chunk = pool.findChunkWithRoom()
		if chunk == nil && GrowthEnableDynamic && class != ClassSingleton {
			for _, candidate := range pool.chunks {
				if !candidate.growthEligible() {
					continue
				}
				if affected, err := mc.expandChunk(candidate); err == nil {
					chunk = candidate
					mc.markTilesForReupload(affected)
					break
				}
			}
		}
		if chunk == nil {
			chunk, err = mc.allocateChunk(class, vertexCount)
			if err != nil {
				return fmt.Errorf("failed to create chunk for class %s: %w", class, err)
			}
		}
		if class == ClassSingleton && vertexCount > chunk.totalVertexCapacity {
			chunk, err = mc.allocateChunk(class, vertexCount)
			if err != nil {
				return fmt.Errorf("failed to create singleton chunk for %d vertices: %w", vertexCount, err)
			}
		}
		slotIndex, err = chunk.claimSlot(pool, tileID, vertexCount)
		if err != nil {
			return fmt.Errorf("failed to claim slot in chunk: %w", err)
		}
	}

	slot := &chunk.slots[slotIndex]
	if err := mc.uploadVertexData(chunk, slot, vertices); err != nil {
		return fmt.Errorf("failed to upload vertex data: %w", err)
	}

	mc.tileSlots[tileID] = &SlotAllocation{chunk: chunk, slotIndex: slotIndex, vertexCount: vertexCount}
	return nil
}

func (mc *MemoryController) updateSlotInPlace(alloc *SlotAllocation, vertices []float32, vertexCount int) error {
	slot := &alloc.chunk.slots[alloc.slotIndex]
	slot.vertexCount = vertexCount
	return mc.uploadVertexData(alloc.chunk, slot, vertices)
}

func (mc *MemoryController) uploadVertexData(chunk *Chunk, slot *Slot, vertices []float32) error {
	gl.BindBuffer(gl.ARRAY_BUFFER, chunk.vbo)
	byteOffset := slot.vertexOffset * 6 * 4
	byteSize := len(vertices) * 4
	gl.BufferSubData(gl.ARRAY_BUFFER, byteOffset, byteSize, gl.Ptr(vertices))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return nil
}

// RemoveTile frees tileID's slot and returns it to its pool's free list.
func (mc *MemoryController) RemoveTile(tileID TileID) error {
	alloc, ok := mc.tileSlots[tileID]
	if !ok {
		return fmt.Errorf("tile %d not found", tileID)
	}

	chunk := alloc.chunk
	chunk.releaseSlot(alloc.slotIndex)

	pool := mc.pools[chunk.class]
	pool.releaseSlot(SlotRef{chunk: chunk, slotIndex: alloc.slotIndex})

	delete(mc.tileSlots, tileID)
	return nil
}

// ValidateTileIntegrity cross-checks every tracked tile against the chunk
// and slot it claims to occupy, returning an error describing every
// mismatch found.
func (mc *MemoryController) ValidateTileIntegrity() error {
	var problems []string

	for tileID, alloc := range mc.tileSlots {
		pool := mc.pools[alloc.chunk.class]
		found := false
		for _, c := range pool.chunks {
			if c.id == alloc.chunk.id {
				found = true
				break
			}
		}
		if !found {
			problems = append(problems, fmt.Sprintf("tile %d references deleted chunk %d", tileID, alloc.chunk.id))
			continue
		}
		if alloc.slotIndex >= len(alloc.chunk.slots) {
			problems = append(problems, fmt.Sprintf("tile %d has invalid slot index %d (chunk has %d slots)",
				tileID, alloc.slotIndex, len(alloc.chunk.slots)))
			continue
		}

		slot := &alloc.chunk.slots[alloc.slotIndex]
		if !slot.active {
			problems = append(problems, fmt.Sprintf("tile %d references inactive slot %d in chunk %d",
				tileID, alloc.slotIndex, alloc.chunk.id))
		}
		if slot.tileID != tileID {
			problems = append(problems, fmt.Sprintf("tile %d slot mismatch: slot points to tile %d", tileID, slot.tileID))
		}
	}

	if len(problems) > 0 {
		log.Printf("tile integrity check failed with %d problems:", len(problems))
		for _, p := range problems {
			log.Printf("  - %s", p)
		}
		return fmt.Errorf("tile integrity check failed with %d problems", len(problems))
	}
	return nil
}

// Draw issues one MultiDrawArrays call per non-empty chunk.
func (mc *MemoryController) Draw() error {
	drawCalls := 0

	for _, class := range slotClasses {
		pool := mc.pools[class]
		for _, chunk := range pool.chunks {
			if len(chunk.activeSlots) == 0 {
				continue
			}

			gl.BindVertexArray(chunk.vao)

			firsts := make([]int32, len(chunk.activeSlots))
			counts := make([]int32, len(chunk.activeSlots))
			for i, idx := range chunk.activeSlots {
				slot := chunk.slots[idx]
				firsts[i] = int32(slot.vertexOffset)
				counts[i] = int32(slot.vertexCount)
			}

			gl.MultiDrawArrays(gl.TRIANGLES, &firsts[0], &counts[0], int32(len(firsts)))
			drawCalls++
		}
	}

	gl.BindVertexArray(0)
	mc.stats.DrawCallsPerFrame = drawCalls
	return nil
}

// Cleanup releases every chunk's OpenGL resources.
func (mc *MemoryController) Cleanup() {
	for _, pool := range mc.pools {
		for _, chunk := range pool.chunks {
			chunk.destroy()
		}
	}
}

// Stats recomputes and returns the controller's current allocation stats.
func (mc *MemoryController) Stats() Stats {
	mc.updateStats()
	return mc.stats
}

func (mc *MemoryController) updateStats() {
	mc.stats.TotalTiles = len(mc.tileSlots)
	mc.stats.TotalVertices = 0
	mc.stats.TotalGPUBytes = 0
	mc.stats.TotalChunks = 0
	mc.stats.TotalSlots = 0
	mc.stats.TotalActiveSlots = 0
	mc.stats.TotalActiveChunks = 0

	for class, pool := range mc.pools {
		cs := pool.classStats()
		mc.stats.TotalChunks += cs.ChunkCount
		mc.stats.TotalGPUBytes += cs.GPUBytes
		mc.stats.TotalVertices += cs.Vertices
		mc.stats.TotalSlots += cs.TotalSlots
		mc.stats.TotalActiveSlots += cs.ActiveSlots
		mc.stats.TotalActiveChunks += cs.ActiveChunks
		mc.stats.ClassStats[class] = cs
	}

	freeSlots := 0
	for _, pool := range mc.pools {
		freeSlots += len(pool.freeSlots)
	}
	mc.stats.FreeSlots = freeSlots
}

// PrintStats logs a human-readable breakdown of current GPU memory usage,
// per slot class and per chunk.
func (mc *MemoryController) PrintStats() {
	stats := mc.Stats()

	slotsUtil := ratio(stats.TotalActiveSlots, stats.TotalSlots)
	chunksUtil := ratio(stats.TotalActiveChunks, stats.TotalChunks)

	glsceneLogger.Println("===== glscene allocator stats =====")
	glsceneLogger.Printf("%d compactions (%d slots relocated, %d chunks deleted, %.2fus last), %d growth events (%.2fus last)",
		stats.CompactionEvents, stats.SlotsRelocated, stats.ChunkDeletions, stats.LastCompactionTimeUs,
		stats.GrowthEvents, stats.LastGrowthTimeUs)
	glsceneLogger.Printf("%.1f%% slots active (%d/%d), %.1f%% chunks active (%d/%d), %d free-list slots, %s GPU, %d tiles (%s triangles, %s vertices)",
		slotsUtil*100, stats.TotalActiveSlots, stats.TotalSlots,
		chunksUtil*100, stats.TotalActiveChunks, stats.TotalChunks,
		stats.FreeSlots, formatNumber(stats.TotalGPUBytes),
		stats.TotalTiles, formatNumber(stats.TotalVertices/3), formatNumber(stats.TotalVertices))

	for _, class := range slotClasses {
		cs, ok := stats.ClassStats[class]
		if !ok || cs.ChunkCount == 0 {
			continue
		}

		classSlotsUtil := ratio(cs.ActiveSlots, cs.TotalSlots)
		classChunksUtil := ratio(cs.ActiveChunks, cs.ChunkCount)

		glsceneLogger.Printf("  [%9s] %s %.0f%% slots active (%d/%d), %.0f%% chunks active (%d/%d), %d free-list slots, %s GPU (%s triangles, %s vertices)",
			class.String(), utilizationBar(classSlotsUtil, 12),
			classSlotsUtil*100, cs.ActiveSlots, cs.TotalSlots,
			classChunksUtil*100, cs.ActiveChunks, cs.ChunkCount,
			cs.FreeSlots, formatNumber(cs.GPUBytes), formatNumber(cs.Vertices/3), formatNumber(cs.Vertices))

		pool := mc.pools[class]
		for _, chunk := range pool.chunks {
			active := len(chunk.activeSlots)
			total := len(chunk.slots)
			var vertices int64
			for _, idx := range chunk.activeSlots {
				if idx < len(chunk.slots) {
					vertices += int64(chunk.slots[idx].vertexCount)
				}
			}
			gpuBytes := int64(chunk.totalVertexCapacity * 6 * 4)

			glsceneLogger.Printf("      chunk#%03d  %s %.0f%% slots active (%d/%d), %s GPU (%s triangles, %s vertices), %dx growth (%s -> %s)",
				chunk.id, utilizationBar(ratio(active, total), 8), ratio(active, total)*100, active, total,
				formatNumber(gpuBytes), formatNumber(vertices/3), formatNumber(vertices),
				chunk.growthCycles+1, formatNumber(int64(chunk.initialCapacity)), formatNumber(int64(chunk.totalVertexCapacity)))
		}
	}
	glsceneLogger.Println("====================================")
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func utilizationBar(utilization float64, width int) string {
	if utilization < 0 {
		utilization = 0
	}
	if utilization > 1 {
		utilization = 1
	}
	filled := int(utilization * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func formatNumber(n int64) string {
	switch {
	case n < 1000:
		return fmt.Sprintf("%d", n)
	case n < 1_000_000:
		return fmt.Sprintf("%.1fK", float64(n)/1000.0)
	default:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000.0)
	}
}

func (mc *MemoryController) markTilesForReupload(tileIDs []TileID) {
	for _, id := range tileIDs {
		mc.tilesNeedingReupload[id] = true
	}
}

// GetAndClearTilesNeedingReupload returns the tiles whose chunk was grown
// since the last call, clearing the pending set.
func (mc *MemoryController) GetAndClearTilesNeedingReupload() []TileID {
	if len(mc.tilesNeedingReupload) == 0 {
		return nil
	}
	result := make([]TileID, 0, len(mc.tilesNeedingReupload))
	for id := range mc.tilesNeedingReupload {
		result = append(result, id)
	}
	mc.tilesNeedingReupload = make(map[TileID]bool)
	return result
}

// TryCompaction relocates live slots out of sparse chunks and deletes the
// ones left empty, touching at most DefragMaxPerFrame chunks per call so a
// large backlog drains over several calls instead of one long pause.
func (mc *MemoryController) TryCompaction() error {
	if mc.compactor == nil || !DefragEnableCompaction {
		return nil
	}

	candidates := mc.compactor.ScanForCompaction(mc.pools)
	if len(candidates) == 0 {
		return nil
	}

	start := time.Now()
	compacted, deleted := 0, 0
	for _, chunk := range candidates {
		if compacted >= DefragMaxPerFrame {
			glsceneLogger.Printf("reached max compactions (%d) per call, skipping %d remaining candidates", DefragMaxPerFrame, len(candidates)-compacted)
			break
		}

		glsceneLogger.Printf("processing chunk#%d (%s) - %d active slots", chunk.id, chunk.class.String(), len(chunk.activeSlots))

		if len(chunk.activeSlots) == 0 {
			if err := mc.releaseChunk(chunk); err != nil {
				glsceneLogger.Printf("failed to delete empty chunk %d: %v", chunk.id, err)
				continue
			}
			glsceneLogger.Printf("deleted empty chunk %d", chunk.id)
			compacted++
			deleted++
			mc.stats.CompactionEvents++
			mc.stats.ChunkDeletions++
			continue
		}

		emptied, relocated, err := mc.compactor.CompactChunk(mc, chunk)
		if err != nil {
			glsceneLogger.Printf("failed to compact chunk %d: %v", chunk.id, err)
			continue
		}
		if relocated > 0 {
			compacted++
			mc.stats.CompactionEvents++
			mc.stats.SlotsRelocated += relocated
		}
		if !emptied {
			glsceneLogger.Printf("chunk#%d still has active slots after compaction", chunk.id)
			continue
		}
		if err := mc.releaseChunk(chunk); err != nil {
			glsceneLogger.Printf("failed to delete compacted chunk %d: %v", chunk.id, err)
			continue
		}
		glsceneLogger.Printf("deleted empty chunk %d after compaction", chunk.id)
		deleted++
		mc.stats.ChunkDeletions++
	}

	glsceneLogger.Printf("completed: processed %d candidates, compacted %d chunks, deleted %d empty chunks", len(candidates), compacted, deleted)
	if compacted > 0 || deleted > 0 {
		mc.stats.LastCompactionTimeUs = float64(time.Since(start).Microseconds())
	}
	return nil
}

// releaseChunk removes an empty chunk from its pool and frees its OpenGL
// resources. Refuses to touch a chunk that still has active slots.
func (mc *MemoryController) releaseChunk(chunk *Chunk) error {
	if len(chunk.activeSlots) > 0 {
		glsceneLogger.Printf("refusing to delete chunk %d with %d active slots", chunk.id, len(chunk.activeSlots))
		for _, idx := range chunk.activeSlots {
			slot := &chunk.slots[idx]
			glsceneLogger.Printf("  - slot %d: tile %d, %d vertices", idx, slot.tileID, slot.vertexCount)
		}
		return fmt.Errorf("cannot delete chunk %d: still has %d active tiles", chunk.id, len(chunk.activeSlots))
	}

	pool := mc.pools[chunk.class]
	for i, c := range pool.chunks {
		if c.id == chunk.id {
			pool.chunks = append(pool.chunks[:i], pool.chunks[i+1:]...)
			break
		}
	}

	kept := pool.freeSlots[:0]
	removed := 0
	for _, ref := range pool.freeSlots {
		if ref.chunk.id == chunk.id {
			removed++
			continue
		}
		kept = append(kept, ref)
	}
	pool.freeSlots = kept
	if removed > 0 {
		glsceneLogger.Printf("dropped %d free-list entries for chunk %d", removed, chunk.id)
	}

	chunk.destroy()
	return nil
}

func (cp *ClassPool) classStats() ClassStats {
	cs := ClassStats{ChunkCount: len(cp.chunks), FreeSlots: len(cp.freeSlots)}
	for _, chunk := range cp.chunks {
		cs.GPUBytes += int64(chunk.totalVertexCapacity * 6 * 4)
		cs.TotalSlots += len(chunk.slots)
		cs.ActiveSlots += len(chunk.activeSlots)
		if len(chunk.activeSlots) > 0 {
			cs.ActiveChunks++
		}
		for _, idx := range chunk.activeSlots {
			cs.Vertices += int64(chunk.slots[idx].vertexCount)
			cs.TileCount++
		}
	}
	return cs
}
