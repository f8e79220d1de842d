// Package model implements the hierarchical layout data model: cells,
// polygons, and parameterized instances, along with the read-only
// derivations (bounding boxes, top cells, minimap-skip flags) that the
// renderer and minimap depend on.
//
// The model is produced once by an external parser (GDSII/DXF parsing is out
// of scope here) and is read-only during rendering.
package model

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strings"

	"github.com/jwt625/gdsjam/internal/geom"
)

// contextInfoMarker identifies library-metadata cells whose instances must
// not be recursed into.
const contextInfoMarker = "CONTEXT_INFO"

// BoundingBox is an axis-aligned rectangle in database units, with the
// invariant min <= max unless the box is empty.
type BoundingBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// EmptyBoundingBox returns a degenerate box recognized by IsEmpty.
func EmptyBoundingBox() BoundingBox {
	return BoundingBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
}

// IsEmpty reports whether the box has no extent (min > max on either axis).
func (b BoundingBox) IsEmpty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// Width and Height return the box's extent; zero for an empty box.
func (b BoundingBox) Width() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.MaxX - b.MinX
}

func (b BoundingBox) Height() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.MaxY - b.MinY
}

// MaxDimension returns the larger of width and height.
func (b BoundingBox) MaxDimension() float64 {
	return math.Max(b.Width(), b.Height())
}

func (b BoundingBox) CenterX() float64 { return (b.MinX + b.MaxX) / 2 }
func (b BoundingBox) CenterY() float64 { return (b.MinY + b.MaxY) / 2 }

// Union returns the smallest box containing both b and o. An empty operand
// is the identity.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	if b.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return b
	}
	return BoundingBox{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// Intersects reports whether b and o overlap (touching edges count).
func (b BoundingBox) Intersects(o BoundingBox) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	return b.MinX <= o.MaxX && b.MaxX >= o.MinX && b.MinY <= o.MaxY && b.MaxY >= o.MinY
}

// BoundingBoxFromPoints derives the tight integer-or-real bounds of a point
// ring.
func BoundingBoxFromPoints(points []geom.Point) BoundingBox {
	bb := EmptyBoundingBox()
	for _, p := range points {
		if p.X < bb.MinX {
			bb.MinX = p.X
		}
		if p.Y < bb.MinY {
			bb.MinY = p.Y
		}
		if p.X > bb.MaxX {
			bb.MaxX = p.X
		}
		if p.Y > bb.MaxY {
			bb.MaxY = p.Y
		}
	}
	return bb
}

// TransformBoundingBox transforms all four corners of bb by t and re-bounds
// — never transforms only the min/max corners, per the model's bounding-box
// invariant.
func TransformBoundingBox(bb BoundingBox, t geom.Affine) BoundingBox {
	if bb.IsEmpty() {
		return bb
	}
	corners := [4]geom.Point{
		{X: bb.MinX, Y: bb.MinY},
		{X: bb.MaxX, Y: bb.MinY},
		{X: bb.MaxX, Y: bb.MaxY},
		{X: bb.MinX, Y: bb.MaxY},
	}
	out := EmptyBoundingBox()
	for _, c := range corners {
		p := t.MulPoint(c)
		if p.X < out.MinX {
			out.MinX = p.X
		}
		if p.Y < out.MinY {
			out.MinY = p.Y
		}
		if p.X > out.MaxX {
			out.MaxX = p.X
		}
		if p.Y > out.MaxY {
			out.MaxY = p.Y
		}
	}
	return out
}

// Units describes the document's unit conversion factors.
type Units struct {
	DatabaseUnitM float64 // metres per database unit, e.g. 1e-9
	UserUnitM     float64 // metres per user unit, e.g. 1e-6
}

// ToMicrons converts a value in database units to micrometres.
func (u Units) ToMicrons(v float64) float64 {
	if u.DatabaseUnitM == 0 {
		return v
	}
	return v * u.DatabaseUnitM / 1e-6
}

// Polygon is a closed ring of points on a (layer, datatype) pair, with a
// cached tight bounding box.
type Polygon struct {
	Layer       uint16
	Datatype    uint16
	Points      []geom.Point
	BoundingBox BoundingBox
}

// NewPolygon constructs a polygon and derives its bounding box. Returns an
// error (ModelInconsistent-class) if fewer than 3 points are given.
func NewPolygon(layer, datatype uint16, points []geom.Point) (Polygon, error) {
	if len(points) < 3 {
		return Polygon{}, fmt.Errorf("polygon needs at least 3 points, got %d", len(points))
	}
	return Polygon{
		Layer:       layer,
		Datatype:    datatype,
		Points:      points,
		BoundingBox: BoundingBoxFromPoints(points),
	}, nil
}

// LayerKey returns the string key "L:D" used to index LayerInfo and
// layer-visibility maps.
func LayerKey(layer, datatype uint16) string {
	return fmt.Sprintf("%d:%d", layer, datatype)
}

// LayerInfo describes one design layer's color and visibility.
type LayerInfo struct {
	Layer    uint16
	Datatype uint16
	Color    color.RGBA
	Visible  bool
}

// Instance places a cell inside another cell with an affine transform.
type Instance struct {
	CellRef       string
	X, Y          float64
	RotationDeg   float64
	Mirror        bool
	Magnification float64
}

// Transform returns the instance's placement transform, composed
// mirror -> rotate -> magnify -> translate.
func (inst Instance) Transform() geom.Affine {
	mag := inst.Magnification
	if mag == 0 {
		mag = 1
	}
	return geom.InstanceTransform(inst.X, inst.Y, inst.RotationDeg, inst.Mirror, mag)
}

// Cell is a named group of polygons and sub-instances.
type Cell struct {
	Name          string
	Polygons      []Polygon
	Instances     []Instance
	BoundingBox   BoundingBox
	SkipInMinimap bool
}

// IsContextInfo reports whether the cell's instances must not be recursed
// into (its own polygons still render normally).
func (c Cell) IsContextInfo() bool {
	return strings.Contains(c.Name, contextInfoMarker)
}

// Document is the read-only root of the layout model.
type Document struct {
	Units       Units
	Layers      map[string]LayerInfo
	Cells       map[string]Cell
	TopCells    []string
	BoundingBox BoundingBox
}

// TotalPolygons sums polygon counts over the given cell names (used for
// progress scaling and the hierarchical-document heuristic).
func (d Document) TotalPolygons(cellNames []string) int {
	total := 0
	for _, name := range cellNames {
		if c, ok := d.Cells[name]; ok {
			total += len(c.Polygons)
		}
	}
	return total
}

// TotalInstances sums instance counts over the given cell names.
func (d Document) TotalInstances(cellNames []string) int {
	total := 0
	for _, name := range cellNames {
		if c, ok := d.Cells[name]; ok {
			total += len(c.Instances)
		}
	}
	return total
}

// Stats aggregates whole-document counts for diagnostics/metrics.
type Stats struct {
	TotalCells     int
	TotalPolygons  int
	TotalInstances int
}

// Stats walks every cell (not just reachable ones) and totals polygons and
// instances.
func (d Document) Stats() Stats {
	s := Stats{TotalCells: len(d.Cells)}
	for _, c := range d.Cells {
		s.TotalPolygons += len(c.Polygons)
		s.TotalInstances += len(c.Instances)
	}
	return s
}

// sortedCellNames returns cell names in deterministic (alphabetical) order.
func sortedCellNames(cells map[string]Cell) []string {
	names := make([]string, 0, len(cells))
	for name := range cells {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
