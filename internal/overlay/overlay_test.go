package overlay

import "testing"

func TestGridSpacingPicksPowerOfTen(t *testing.T) {
	cases := []struct {
		viewWidth float64
		want      float64
	}{
		{100, 10},
		{1000, 100},
		{50, 1},
	}
	for _, c := range cases {
		got := GridSpacing(c.viewWidth)
		if got != c.want {
			t.Errorf("GridSpacing(%v) = %v, want %v", c.viewWidth, got, c.want)
		}
	}
}

func TestGridLinesSpanRange(t *testing.T) {
	vertical, horizontal := GridLines(0, 100, 0, 100)
	if len(vertical) == 0 || len(horizontal) == 0 {
		t.Fatalf("expected non-empty grid lines")
	}
	for _, l := range vertical {
		if l.Position < 0 || l.Position > 100 {
			t.Errorf("vertical line out of range: %v", l.Position)
		}
	}
}

func TestScaleBarWidthIsRoundNumber(t *testing.T) {
	got := ScaleBarWidthUM(40)
	if got != 10 {
		t.Errorf("expected scale bar width 10 for a 40um view, got %v", got)
	}
}

func TestFormatScaleLabelUsesAppropriateUnit(t *testing.T) {
	if got := FormatScaleLabel(0.5); got != "500 nm" {
		t.Errorf("expected 500 nm, got %q", got)
	}
	if got := FormatScaleLabel(10); got != "10 µm" {
		t.Errorf("expected 10 µm, got %q", got)
	}
	if got := FormatScaleLabel(2000); got != "2 mm" {
		t.Errorf("expected 2 mm, got %q", got)
	}
}

func TestFormatCoordinateReadoutPrecision(t *testing.T) {
	if got := FormatCoordinateReadout(1.23456, 2.34567, 1.0); got != "(1.235, 2.346) µm" {
		t.Errorf("expected 3-decimal precision at normal zoom, got %q", got)
	}
	if got := FormatCoordinateReadout(1.23456, 2.34567, 0.001); got != "(1.2346, 2.3457) µm" {
		t.Errorf("expected 4-decimal precision at sub-0.01 zoom, got %q", got)
	}
}
