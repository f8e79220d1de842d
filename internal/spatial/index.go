// Package spatial implements the bounding-box R-tree used to cull rendered
// geometry against the current viewport. It wraps
// github.com/dhconnelly/rtreego rather than hand-rolling a quadratic-split
// tree: the teacher repo (a single-threaded OpenGL renderer) doesn't need
// spatial indexing of its own, but the pack's geospatial-tiling repo
// (pspoerri-geotiff2pmtiles) establishes that bbox/tile-keyed lookups are
// the idiomatic shape for this kind of problem in the retrieval pack; a
// real R-tree gives logarithmic query time instead of the teacher's
// equivalent of a linear scan.
package spatial

import (
	"io"
	"log"
	"os"

	"github.com/dhconnelly/rtreego"

	"github.com/jwt625/gdsjam/internal/model"
)

var indexLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("GDSJAM_DEBUG_SPATIAL") == "1" {
		indexLogger = log.New(os.Stdout, "[spatial] ", log.Ltime|log.Lmsgprefix)
	}
}

const (
	minBranchFactor = 25
	maxBranchFactor = 50
	dimensions      = 2

	// minExtent avoids NewRect rejecting degenerate (zero-width/height)
	// boxes; tiles and polygons are never exactly zero-sized in practice,
	// but callers are not required to guarantee it.
	minExtent = 1e-9
)

// Item is an opaque entry in the index: an id, its bounding box, and a
// caller-owned payload (typically a RenderedTile).
type Item struct {
	ID      string
	Bbox    model.BoundingBox
	Payload interface{}
}

// entry adapts Item to rtreego.Spatial.
type entry struct {
	item Item
	rect rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect { return e.rect }

func toRect(bb model.BoundingBox) rtreego.Rect {
	w := bb.Width()
	h := bb.Height()
	if w <= 0 {
		w = minExtent
	}
	if h <= 0 {
		h = minExtent
	}
	rect, err := rtreego.NewRect(rtreego.Point{bb.MinX, bb.MinY}, []float64{w, h})
	if err != nil {
		// Malformed bboxes are the caller's responsibility per the spatial
		// index contract; fall back to a minimal rect at the box's origin
		// rather than dropping the item silently.
		indexLogger.Printf("invalid bbox %v: %v, using minimal rect", bb, err)
		rect, _ = rtreego.NewRect(rtreego.Point{bb.MinX, bb.MinY}, []float64{minExtent, minExtent})
	}
	return rect
}

// Index is a bounding-box R-tree keyed by opaque item id. Query is a
// superset of truly visible items: false positives are permitted, false
// negatives are forbidden.
type Index struct {
	tree  *rtreego.Rtree
	items []Item
}

// New creates an empty spatial index.
func New() *Index {
	return &Index{tree: rtreego.NewTree(dimensions, minBranchFactor, maxBranchFactor)}
}

// Insert adds an item to the index.
func (idx *Index) Insert(item Item) {
	idx.tree.Insert(&entry{item: item, rect: toRect(item.Bbox)})
	idx.items = append(idx.items, item)
}

// Items returns every item currently held, in insertion order. Callers use
// this before Clear to find out what a rebuild is about to discard.
func (idx *Index) Items() []Item {
	return idx.items
}

// Clear discards all inserted items.
func (idx *Index) Clear() {
	idx.tree = rtreego.NewTree(dimensions, minBranchFactor, maxBranchFactor)
	idx.items = nil
}

// Query returns every inserted item whose bbox intersects window. No
// ordering is guaranteed.
func (idx *Index) Query(window model.BoundingBox) []Item {
	results := idx.tree.SearchIntersect(toRect(window))
	items := make([]Item, 0, len(results))
	for _, r := range results {
		if e, ok := r.(*entry); ok {
			items = append(items, e.item)
		}
	}
	return items
}

// Size returns the number of items currently indexed.
func (idx *Index) Size() int {
	return idx.tree.Size()
}
