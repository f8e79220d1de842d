package palette

import "testing"

func TestColorForLayerDeterministic(t *testing.T) {
	a := ColorForLayer(1, 0)
	b := ColorForLayer(1, 0)
	if a != b {
		t.Fatalf("expected stable color, got %v and %v", a, b)
	}
}

func TestColorForLayerVariesAcrossLayers(t *testing.T) {
	seen := make(map[[3]uint8]bool)
	for l := uint16(0); l < 12; l++ {
		c := ColorForLayer(l, 0)
		key := [3]uint8{c.R, c.G, c.B}
		if seen[key] {
			t.Errorf("layer %d collided with a previously seen color %v", l, key)
		}
		seen[key] = true
	}
}
