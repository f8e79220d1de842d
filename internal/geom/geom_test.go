package geom

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestInstanceTransformRotation(t *testing.T) {
	// S2 scenario: 90-degree rotation, no mirror, magnification 1, translated
	// to (1000, 1000).
	tr := InstanceTransform(1000, 1000, 90, false, 1)

	corners := []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	want := []Point{{1000, 1000}, {1000, 1010}, {990, 1010}, {990, 1000}}

	for i, c := range corners {
		got := tr.MulPoint(c)
		if !almostEqual(got.X, want[i].X) || !almostEqual(got.Y, want[i].Y) {
			t.Errorf("corner %d: got %v, want %v", i, got, want[i])
		}
	}
}

func TestInstanceTransformMirrorOrder(t *testing.T) {
	// Mirror then rotate 90 degrees: mirror first flips Y, then rotate.
	tr := InstanceTransform(0, 0, 90, true, 1)
	got := tr.MulPoint(Point{1, 0})
	// mirror: (1, 0) -> (1, 0) [y=0 unaffected]; rotate 90: (1,0) -> (0,1)
	if !almostEqual(got.X, 0) || !almostEqual(got.Y, 1) {
		t.Errorf("got %v, want (0,1)", got)
	}

	tr2 := InstanceTransform(0, 0, 90, true, 1)
	got2 := tr2.MulPoint(Point{0, 1})
	// mirror: (0,1) -> (0,-1); rotate 90: (0,-1) -> (1,0)
	if !almostEqual(got2.X, 1) || !almostEqual(got2.Y, 0) {
		t.Errorf("got %v, want (1,0)", got2)
	}
}

func TestInstanceTransformMagnification(t *testing.T) {
	tr := InstanceTransform(5, 5, 0, false, 2)
	got := tr.MulPoint(Point{1, 1})
	if !almostEqual(got.X, 7) || !almostEqual(got.Y, 7) {
		t.Errorf("got %v, want (7,7)", got)
	}
}

func TestAffineMulInverse(t *testing.T) {
	tr := InstanceTransform(3, -2, 37, true, 1.5)
	inv, err := tr.Inv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := Point{4, 9}
	roundTrip := inv.MulPoint(tr.MulPoint(p))
	if !almostEqual(roundTrip.X, p.X) || !almostEqual(roundTrip.Y, p.Y) {
		t.Errorf("round trip: got %v, want %v", roundTrip, p)
	}
}

func TestComposeChainMatchesMatrixProduct(t *testing.T) {
	// Composition of two instance placements should equal applying each
	// transform in turn.
	outer := InstanceTransform(100, 200, 45, false, 1)
	inner := InstanceTransform(10, 0, 30, true, 2)
	composed := outer.Mul(inner)

	p := Point{3, 4}
	want := outer.MulPoint(inner.MulPoint(p))
	got := composed.MulPoint(p)
	if !almostEqual(got.X, want.X) || !almostEqual(got.Y, want.Y) {
		t.Errorf("got %v, want %v", got, want)
	}
}
