package main

import (
	"image/color"
	"math/rand"

	"github.com/jwt625/gdsjam/internal/geom"
	"github.com/jwt625/gdsjam/internal/model"
	"github.com/jwt625/gdsjam/internal/palette"
)

// buildDemoDocument constructs a synthetic hierarchical layout: GDSII/DXF
// parsing is out of scope, so the demo binary exercises the renderer
// against a procedurally generated document instead. A handful of leaf
// cells with randomly placed rectangles on a few layers are instantiated
// repeatedly on a grid across a larger top cell, producing the kind of cell
// reuse a real layout shows.
func buildDemoDocument(seed int64) model.Document {
	rng := rand.New(rand.NewSource(seed))
	b := model.NewDocumentBuilder(model.Units{DatabaseUnitM: 1e-9, UserUnitM: 1e-6})

	const numLayers = 6
	for l := uint16(0); l < numLayers; l++ {
		b.AddLayer(model.LayerInfo{
			Layer:    l,
			Datatype: 0,
			Color:    paletteColorOrDefault(l),
			Visible:  true,
		})
	}

	const leafSize = 1000.0
	const cellsPerLeaf = 20
	for leafIdx := 0; leafIdx < 8; leafIdx++ {
		name := leafCellName(leafIdx)
		var polys []model.Polygon
		for i := 0; i < cellsPerLeaf; i++ {
			x := rng.Float64() * leafSize
			y := rng.Float64() * leafSize
			w := 10 + rng.Float64()*40
			h := 10 + rng.Float64()*40
			layer := uint16(rng.Intn(numLayers))
			p, err := model.NewPolygon(layer, 0, rectPoints(x, y, w, h))
			if err != nil {
				continue
			}
			polys = append(polys, p)
		}
		b.AddCell(model.Cell{Name: name, Polygons: polys})
	}

	const gridSide = 10
	const spacing = leafSize * 1.5
	var instances []model.Instance
	for gx := 0; gx < gridSide; gx++ {
		for gy := 0; gy < gridSide; gy++ {
			leafIdx := (gx + gy) % 8
			instances = append(instances, model.Instance{
				CellRef:       leafCellName(leafIdx),
				X:             float64(gx) * spacing,
				Y:             float64(gy) * spacing,
				RotationDeg:   float64(90 * ((gx + gy) % 4)),
				Magnification: 1,
			})
		}
	}
	b.AddCell(model.Cell{Name: "TOP", Instances: instances})

	return b.Build()
}

func leafCellName(i int) string {
	return "LEAF_" + string(rune('A'+i))
}

func rectPoints(x, y, w, h float64) []geom.Point {
	return []geom.Point{
		{X: x, Y: y},
		{X: x + w, Y: y},
		{X: x + w, Y: y + h},
		{X: x, Y: y + h},
	}
}

func paletteColorOrDefault(layer uint16) color.RGBA {
	c := palette.ColorForLayer(layer, 0)
	if c.A == 0 {
		return palette.DefaultColor
	}
	return c
}
