package geom

import (
	"errors"
	"math"
	"testing"
)

func approx(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestOrderCorners(t *testing.T) {
	want := Quad{{10, 10}, {110, 12}, {108, 115}, {8, 112}}
	shuffled := [4]Point{want[2], want[0], want[3], want[1]}

	got := OrderCorners(shuffled)
	if got != want {
		t.Errorf("OrderCorners = %v, want %v", got, want)
	}
}

func TestOrderCornersRotated(t *testing.T) {
	// A square rotated by exactly 45 degrees ties both x+y and y-x
	want := Quad{{50, 0}, {100, 50}, {50, 100}, {0, 50}}
	inputs := [][4]Point{
		{want[0], want[1], want[2], want[3]},
		{want[3], want[2], want[1], want[0]},
		{want[1], want[3], want[0], want[2]},
	}
	for _, in := range inputs {
		got := OrderCorners(in)
		if got != want {
			t.Errorf("OrderCorners(%v) = %v, want %v", in, got, want)
		}
		if !got.IsConvex() || !approx(got.Area(), 5000, 1e-9) {
			t.Errorf("OrderCorners(%v) is not the input square: %v", in, got)
		}
	}
}

func TestQuadMetrics(t *testing.T) {
	sq := Rect(0, 0, 100, 100)

	if !approx(sq.Area(), 10000, 1e-9) {
		t.Errorf("Area = %f, want 10000", sq.Area())
	}
	if !approx(sq.MeanSide(), 100, 1e-9) {
		t.Errorf("MeanSide = %f, want 100", sq.MeanSide())
	}
	if !approx(sq.Squareness(), 1, 1e-9) {
		t.Errorf("Squareness = %f, want 1", sq.Squareness())
	}

	rect := Rect(0, 0, 200, 100)
	if s := rect.Squareness(); !approx(s, 0.5, 1e-9) {
		t.Errorf("rectangle Squareness = %f, want 0.5", s)
	}

	lo, hi := Quad{{5, 3}, {50, 1}, {48, 40}, {2, 38}}.Bounds()
	if lo != (Point{2, 1}) || hi != (Point{50, 40}) {
		t.Errorf("Bounds = %v %v", lo, hi)
	}
}

func TestConvexity(t *testing.T) {
	tests := []struct {
		name string
		q    Quad
		want bool
	}{
		{"square", Rect(0, 0, 10, 10), true},
		{"trapezoid", Quad{{20, 0}, {80, 0}, {100, 60}, {0, 60}}, true},
		{"dart", Quad{{0, 0}, {100, 0}, {20, 20}, {0, 100}}, false},
		{"bowtie", Quad{{0, 0}, {100, 100}, {100, 0}, {0, 100}}, false},
		{"collapsed", Quad{{0, 0}, {10, 0}, {20, 0}, {0, 10}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.IsConvex(); got != tt.want {
				t.Errorf("IsConvex = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDegenerate(t *testing.T) {
	if Rect(0, 0, 100, 100).IsDegenerate(8) {
		t.Error("100px square should not be degenerate")
	}
	if !Rect(0, 0, 100, 4).IsDegenerate(8) {
		t.Error("4px sliver should be degenerate")
	}
}

func TestSmoother(t *testing.T) {
	s := NewSmoother(0.5, 0.25)

	q, reset := s.Update(Rect(0, 0, 100, 100))
	if !reset || q != Rect(0, 0, 100, 100) {
		t.Fatalf("first update should prime the average, got %v reset=%v", q, reset)
	}

	q, reset = s.Update(Rect(4, 4, 104, 104))
	if reset {
		t.Error("small jitter should not reset")
	}
	if !approx(q[TopLeft].X, 2, 1e-9) || !approx(q[BottomRight].Y, 102, 1e-9) {
		t.Errorf("smoothed = %v, want midpoint", q)
	}

	jump := Rect(200, 200, 300, 300)
	q, reset = s.Update(jump)
	if !reset || q != jump {
		t.Errorf("large jump should reset to the detection, got %v reset=%v", q, reset)
	}

	s.Reset()
	if _, ok := s.Current(); ok {
		t.Error("Current should be empty after Reset")
	}
}

func TestHomography(t *testing.T) {
	src := Rect(0, 0, 1, 1)
	dst := Quad{{120, 80}, {520, 95}, {560, 470}, {90, 440}}

	h, err := ComputeHomography(src, dst)
	if err != nil {
		t.Fatalf("ComputeHomography failed: %v", err)
	}

	for i := range src {
		got := h.Apply(src[i])
		if !approx(got.X, dst[i].X, 1e-6) || !approx(got.Y, dst[i].Y, 1e-6) {
			t.Errorf("corner %d mapped to %v, want %v", i, got, dst[i])
		}
	}

	// Affine case: centre maps to centre
	h, err = ComputeHomography(Rect(0, 0, 8, 8), Rect(100, 100, 500, 500))
	if err != nil {
		t.Fatal(err)
	}
	c := h.Apply(Point{4, 4})
	if !approx(c.X, 300, 1e-6) || !approx(c.Y, 300, 1e-6) {
		t.Errorf("centre mapped to %v, want (300,300)", c)
	}
}

func TestHomographySingular(t *testing.T) {
	collapsed := Quad{{0, 0}, {0, 0}, {0, 0}, {0, 0}}
	_, err := ComputeHomography(collapsed, Rect(0, 0, 10, 10))
	if !errors.Is(err, ErrSingular) {
		t.Errorf("expected ErrSingular, got %v", err)
	}
}
