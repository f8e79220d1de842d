package render

import (
	"fmt"

	"github.com/rclancey/earcut"

	"github.com/jwt625/gdsjam/internal/geom"
)

// earClip triangulates a polygon using the earcut algorithm, returning a
// slice of triangles each represented as a [3]geom.Point. Degenerate input
// or a triangulation failure returns an error instead of aborting the
// process, consistent with the renderer's silent-drop failure semantics.
func earClip(polygonPoints []geom.Point) ([][3]geom.Point, error) {
	if len(polygonPoints) < 3 {
		return nil, fmt.Errorf("degenerate polygon (%d vertices < 3)", len(polygonPoints))
	}

	// Convert polygon points to flat coordinate array required by earcut.
	// Format: [x0, y0, x1, y1, ..., xn, yn]
	vertexCoords := make([]float64, len(polygonPoints)*2)
	for i, point := range polygonPoints {
		vertexCoords[i*2] = point.X   // x coordinate
		vertexCoords[i*2+1] = point.Y // y coordinate
	}

	triangleIndices, err := earcut.Earcut(vertexCoords, nil /* holeIndices */, 2 /* dim */)
	if err != nil {
		return nil, fmt.Errorf("triangulating %d-vertex polygon: %w", len(polygonPoints), err)
	}
	if len(triangleIndices)%3 != 0 {
		return nil, fmt.Errorf("invalid triangle index count %d", len(triangleIndices))
	}

	// Convert triangle indices back to geom.Point triangles.
	triangleCount := len(triangleIndices) / 3
	triangles := make([][3]geom.Point, triangleCount)

	for triangleIndex := 0; triangleIndex < triangleCount; triangleIndex++ {
		baseIndex := triangleIndex * 3
		vertexIndex0 := triangleIndices[baseIndex]
		vertexIndex1 := triangleIndices[baseIndex+1]
		vertexIndex2 := triangleIndices[baseIndex+2]

		triangles[triangleIndex] = [3]geom.Point{
			{X: vertexCoords[vertexIndex0*2], Y: vertexCoords[vertexIndex0*2+1]},
			{X: vertexCoords[vertexIndex1*2], Y: vertexCoords[vertexIndex1*2+1]},
			{X: vertexCoords[vertexIndex2*2], Y: vertexCoords[vertexIndex2*2+1]},
		}
	}

	return triangles, nil
}
