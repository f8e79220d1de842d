package glscene

import "github.com/go-gl/gl/v4.1-core/gl"

// Compactor picks sparse chunks and relocates their live slots into chunks
// with spare capacity, so the emptied chunk can be deleted outright instead
// of sitting around half-used.
type Compactor struct{}

func newCompactor() *Compactor {
	return &Compactor{}
}

// ScanForCompaction returns every chunk below DefragThreshold slot
// utilization, across all classes, sorted from sparsest to least sparse so
// the biggest wins are attempted first.
func (c *Compactor) ScanForCompaction(pools map[SlotClass]*ClassPool) []*Chunk {
	var candidates []*Chunk

	for _, pool := range pools {
		for _, chunk := range pool.chunks {
			if len(chunk.slots) == 0 {
				continue
			}
			util := float64(len(chunk.activeSlots)) / float64(len(chunk.slots))
			if util < DefragThreshold {
				candidates = append(candidates, chunk)
			}
		}
	}

	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0; j-- {
			a := float64(len(candidates[j].activeSlots)) / float64(len(candidates[j].slots))
			b := float64(len(candidates[j-1].activeSlots)) / float64(len(candidates[j-1].slots))
			if a >= b {
				break
			}
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}

	return candidates
}

// CompactChunk tries to move every active slot out of source into chunks
// with free room in the same class, creating a fresh chunk only as a last
// resort. Reports whether source ended up fully empty and how many slots
// moved.
func (c *Compactor) CompactChunk(mc *MemoryController, source *Chunk) (emptied bool, relocated int, err error) {
	pool := mc.pools[source.class]

	activeSlotIndices := make([]int, len(source.activeSlots))
	copy(activeSlotIndices, source.activeSlots)

	for _, slotIndex := range activeSlotIndices {
		slot := source.slots[slotIndex]
		if !slot.active {
			continue
		}

		target := c.findRelocationTarget(pool, source, slot.vertexCount)
		if target == nil {
			target, err = mc.allocateChunk(source.class, slot.vertexCount)
			if err != nil {
				return false, relocated, err
			}
		}

		targetSlotIndex, err := target.claimSlot(pool, slot.tileID, slot.vertexCount)
		if err != nil {
			return false, relocated, err
		}

		if err := c.copySlotData(source, slotIndex, target, targetSlotIndex); err != nil {
			target.releaseSlot(targetSlotIndex)
			pool.releaseSlot(SlotRef{chunk: target, slotIndex: targetSlotIndex})
			return false, relocated, err
		}

		mc.tileSlots[slot.tileID] = &SlotAllocation{chunk: target, slotIndex: targetSlotIndex, vertexCount: slot.vertexCount}
		source.releaseSlot(slotIndex)
		relocated++
	}

	return len(source.activeSlots) == 0, relocated, nil
}

// findRelocationTarget looks for a chunk in the pool, other than source,
// with an empty slot that can already hold vertexCount vertices.
func (c *Compactor) findRelocationTarget(pool *ClassPool, source *Chunk, vertexCount int) *Chunk {
	for _, chunk := range pool.chunks {
		if chunk.id == source.id {
			continue
		}
		if len(chunk.activeSlots) >= len(chunk.slots) {
			continue
		}
		if source.class == ClassSingleton && chunk.totalVertexCapacity < vertexCount {
			continue
		}
		return chunk
	}
	return nil
}

// copySlotData moves one slot's vertex bytes from source to target through
// a CPU-staged round trip. OpenGL 4.1 has no buffer-to-buffer copy call
// available here, so the bytes are read back into a scratch slice and
// re-uploaded at the new offset.
func (c *Compactor) copySlotData(source *Chunk, sourceSlotIndex int, target *Chunk, targetSlotIndex int) error {
	sourceSlot := &source.slots[sourceSlotIndex]
	targetSlot := &target.slots[targetSlotIndex]

	byteSize := sourceSlot.vertexCount * 6 * 4
	if byteSize == 0 {
		return nil
	}

	scratch := make([]float32, sourceSlot.vertexCount*6)

	gl.BindBuffer(gl.ARRAY_BUFFER, source.vbo)
	srcByteOffset := sourceSlot.vertexOffset * 6 * 4
	gl.GetBufferSubData(gl.ARRAY_BUFFER, srcByteOffset, byteSize, gl.Ptr(scratch))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	gl.BindBuffer(gl.ARRAY_BUFFER, target.vbo)
	dstByteOffset := targetSlot.vertexOffset * 6 * 4
	gl.BufferSubData(gl.ARRAY_BUFFER, dstByteOffset, byteSize, gl.Ptr(scratch))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	targetSlot.vertexCount = sourceSlot.vertexCount
	return nil
}
