package model

import (
	"io"
	"log"
	"os"
)

// skipInMinimapThreshold is the fraction of document extent at or below
// which a cell's own bounding box is considered too small to bother drawing
// on the minimap.
const skipInMinimapThreshold = 0.01

// maxBoundsRecursionDepth guards against cyclic cell references (a cell
// referencing itself, directly or transitively, through instances) while
// computing bounding boxes bottom-up.
const maxBoundsRecursionDepth = 64

var modelLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("GDSJAM_DEBUG_MODEL") == "1" {
		modelLogger = log.New(os.Stdout, "[model] ", log.Ltime|log.Lmsgprefix)
	}
}

// DocumentBuilder assembles a Document from cells/instances/polygons and
// performs the derivations the model requires: topCells, per-cell and
// document bounding boxes, and skipInMinimap flags. This is the seam an
// external GDSII/DXF parser plugs into; GDSJam itself never parses layout
// files.
type DocumentBuilder struct {
	units  Units
	layers map[string]LayerInfo
	cells  map[string]Cell
}

// NewDocumentBuilder creates a builder for the given unit conversion.
func NewDocumentBuilder(units Units) *DocumentBuilder {
	return &DocumentBuilder{
		units:  units,
		layers: make(map[string]LayerInfo),
		cells:  make(map[string]Cell),
	}
}

// AddLayer registers layer metadata, keyed by LayerKey(layer, datatype).
func (b *DocumentBuilder) AddLayer(info LayerInfo) {
	b.layers[LayerKey(info.Layer, info.Datatype)] = info
}

// AddCell registers (or replaces) a cell by name. Its BoundingBox and
// SkipInMinimap fields are overwritten by Build.
func (b *DocumentBuilder) AddCell(cell Cell) {
	b.cells[cell.Name] = cell
}

// Build derives topCells, recursively computes bounding boxes bottom-up, and
// sets skipInMinimap relative to the resulting document extent.
func (b *DocumentBuilder) Build() Document {
	cells := make(map[string]Cell, len(b.cells))
	for name, c := range b.cells {
		cells[name] = c
	}

	referenced := make(map[string]bool)
	for _, c := range cells {
		for _, inst := range c.Instances {
			referenced[inst.CellRef] = true
		}
	}

	var topCells []string
	for _, name := range sortedCellNames(cells) {
		if !referenced[name] {
			topCells = append(topCells, name)
		}
	}

	bboxCache := make(map[string]BoundingBox, len(cells))
	for _, name := range sortedCellNames(cells) {
		computeCellBounds(cells, name, bboxCache, make(map[string]bool), 0)
	}
	for name, c := range cells {
		c.BoundingBox = bboxCache[name]
		cells[name] = c
	}

	docBounds := EmptyBoundingBox()
	for _, name := range topCells {
		docBounds = docBounds.Union(cells[name].BoundingBox)
	}

	maxDim := docBounds.MaxDimension()
	for name, c := range cells {
		c.SkipInMinimap = maxDim > 0 && c.BoundingBox.MaxDimension() <= skipInMinimapThreshold*maxDim
		cells[name] = c
	}

	return Document{
		Units:       b.units,
		Layers:      b.layers,
		Cells:       cells,
		TopCells:    topCells,
		BoundingBox: docBounds,
	}
}

// computeCellBounds computes (and memoizes) the bounding box of the named
// cell as the union of its own polygons and every transformed child
// instance's bounding box. A visited-set plus a hard depth cap guards
// against cyclic cell references.
func computeCellBounds(cells map[string]Cell, name string, cache map[string]BoundingBox, stack map[string]bool, depth int) BoundingBox {
	if bb, ok := cache[name]; ok {
		return bb
	}
	if stack[name] || depth > maxBoundsRecursionDepth {
		modelLogger.Printf("cycle or excessive depth detected computing bounds for cell %q, stopping recursion", name)
		return EmptyBoundingBox()
	}

	cell, ok := cells[name]
	if !ok {
		return EmptyBoundingBox()
	}

	stack[name] = true
	defer delete(stack, name)

	bb := EmptyBoundingBox()
	for _, poly := range cell.Polygons {
		bb = bb.Union(poly.BoundingBox)
	}

	for _, inst := range cell.Instances {
		if _, ok := cells[inst.CellRef]; !ok {
			continue // dangling reference: drop silently at bounds time too
		}
		childBounds := computeCellBounds(cells, inst.CellRef, cache, stack, depth+1)
		if childBounds.IsEmpty() {
			continue
		}
		bb = bb.Union(TransformBoundingBox(childBounds, inst.Transform()))
	}

	cache[name] = bb
	return bb
}
