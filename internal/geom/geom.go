// Package geom provides the 2D geometric primitives shared by the layout
// model, viewport, and renderer:
//   - 2D affine transformations (translation, rotation, scaling, mirroring)
//   - Point arithmetic
//   - Transform composition and inversion
package geom

import (
	"fmt"
	"math"
)

// Point represents a 2D point or vector in Cartesian (database-unit) space.
type Point struct {
	X float64
	Y float64
}

// Affine represents a 2D affine transform in row-major form:
// [ a b c ]
// [ d e f ]
// where (x', y') = (a*x + b*y + c, d*x + e*y + f)
type Affine struct {
	A float64
	B float64
	C float64
	D float64
	E float64
	F float64
}

func MakePoint(x, y float64) Point               { return Point{X: x, Y: y} }
func MakeAffine(a, b, c, d, e, f float64) Affine { return Affine{A: a, B: b, C: c, D: d, E: e, F: f} }

// Identity returns the identity affine transform.
func Identity() Affine { return MakeAffine(1, 0, 0, 0, 1, 0) }

// MulPoint applies the affine transform to a point.
func (t Affine) MulPoint(p Point) Point {
	return Point{
		X: t.A*p.X + t.B*p.Y + t.C,
		Y: t.D*p.X + t.E*p.Y + t.F,
	}
}

// Mul composes two affine transforms: the result applies u first, then t.
func (t Affine) Mul(u Affine) Affine {
	return MakeAffine(
		t.A*u.A+t.B*u.D,
		t.A*u.B+t.B*u.E,
		t.A*u.C+t.B*u.F+t.C,
		t.D*u.A+t.E*u.D,
		t.D*u.B+t.E*u.E,
		t.D*u.C+t.E*u.F+t.F,
	)
}

// Inv returns the inverse of the affine transform.
// Returns an error if the transform is not invertible (determinant is zero).
func (t Affine) Inv() (Affine, error) {
	det := t.A*t.E - t.B*t.D
	if math.Abs(det) < 1e-10 {
		return Affine{}, fmt.Errorf("affine transform is not invertible (determinant ≈ 0)")
	}
	return MakeAffine(
		t.E/det, -t.B/det, (t.B*t.F-t.C*t.E)/det,
		-t.D/det, t.A/det, (t.C*t.D-t.A*t.F)/det,
	), nil
}

// InstanceTransform builds the affine transform for placing a cell via an
// instance, composed in the order mirror (y -> -y) -> rotate -> magnify ->
// translate, matching GDSII instance-placement semantics.
func InstanceTransform(x, y, rotationDeg float64, mirror bool, magnification float64) Affine {
	t := Identity()

	if mirror {
		t = MakeAffine(1, 0, 0, 0, -1, 0).Mul(t)
	}

	if rotationDeg != 0 {
		rad := rotationDeg * math.Pi / 180.0
		cos, sin := math.Cos(rad), math.Sin(rad)
		t = MakeAffine(cos, -sin, 0, sin, cos, 0).Mul(t)
	}

	if magnification != 1 {
		t = MakeAffine(magnification, 0, 0, 0, magnification, 0).Mul(t)
	}

	t = MakeAffine(1, 0, x, 0, 1, y).Mul(t)
	return t
}
