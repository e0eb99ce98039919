// Package geom holds the planar geometry used to locate and rectify the board.
package geom

import (
	"fmt"
	"math"
	"sort"
)

// Point is a 2D point in frame pixel coordinates
type Point struct {
	X, Y float64
}

// Sub returns p - q
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Dist returns the euclidean distance between p and q
func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

func cross(a, b Point) float64 { return a.X*b.Y - a.Y*b.X }

func dot(a, b Point) float64 { return a.X*b.X + a.Y*b.Y }

// Corner indices of a Quad
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
)

// Quad is a board region: corners ordered top-left, top-right,
// bottom-right, bottom-left in image coordinates (y grows downward).
type Quad [4]Point

// OrderCorners arranges four arbitrary corner points as TL, TR, BR, BL.
// TL has the smallest x+y, BR the largest; TR has the smallest y-x, BL the largest.
// Near 45 degrees of rotation those extremes can coincide; the points are then
// ordered clockwise around their centroid starting from the topmost of the
// smallest x+y.
func OrderCorners(pts [4]Point) Quad {
	var idx [4]int
	minSum, maxSum := math.Inf(1), math.Inf(-1)
	minDiff, maxDiff := math.Inf(1), math.Inf(-1)
	for i, p := range pts {
		s, d := p.X+p.Y, p.Y-p.X
		if s < minSum {
			minSum, idx[TopLeft] = s, i
		}
		if s > maxSum {
			maxSum, idx[BottomRight] = s, i
		}
		if d < minDiff {
			minDiff, idx[TopRight] = d, i
		}
		if d > maxDiff {
			maxDiff, idx[BottomLeft] = d, i
		}
	}

	seen := 0
	for _, i := range idx {
		seen |= 1 << i
	}
	if seen != 0xf {
		return orderByAngle(pts)
	}

	var q Quad
	for c, i := range idx {
		q[c] = pts[i]
	}
	return q
}

func orderByAngle(pts [4]Point) Quad {
	var c Point
	for _, p := range pts {
		c.X += p.X / 4
		c.Y += p.Y / 4
	}
	q := Quad(pts)
	// y grows downward, so increasing angle runs clockwise on screen
	sort.Slice(q[:], func(i, j int) bool {
		return math.Atan2(q[i].Y-c.Y, q[i].X-c.X) < math.Atan2(q[j].Y-c.Y, q[j].X-c.X)
	})

	first := 0
	for i := 1; i < 4; i++ {
		si, sf := q[i].X+q[i].Y, q[first].X+q[first].Y
		if si < sf-1e-9 || (math.Abs(si-sf) <= 1e-9 && q[i].Y < q[first].Y) {
			first = i
		}
	}
	var out Quad
	for i := range out {
		out[i] = q[(first+i)%4]
	}
	return out
}

// Area returns the absolute shoelace area
func (q Quad) Area() float64 {
	var a float64
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		a += q[i].X*q[j].Y - q[j].X*q[i].Y
	}
	return math.Abs(a) / 2
}

// Sides returns the four side lengths TL-TR, TR-BR, BR-BL, BL-TL
func (q Quad) Sides() [4]float64 {
	var s [4]float64
	for i := 0; i < 4; i++ {
		s[i] = q[i].Dist(q[(i+1)%4])
	}
	return s
}

// MeanSide returns the average side length
func (q Quad) MeanSide() float64 {
	s := q.Sides()
	return (s[0] + s[1] + s[2] + s[3]) / 4
}

// IsConvex reports whether the quad is strictly convex with distinct corners
func (q Quad) IsConvex() bool {
	var sign float64
	for i := 0; i < 4; i++ {
		a := q[(i+1)%4].Sub(q[i])
		b := q[(i+2)%4].Sub(q[(i+1)%4])
		c := cross(a, b)
		if c == 0 || math.IsNaN(c) {
			return false
		}
		if sign == 0 {
			sign = c
		} else if (c > 0) != (sign > 0) {
			return false
		}
	}
	return true
}

// IsDegenerate reports quads with a side shorter than minSide pixels or
// an area below minSide squared.
func (q Quad) IsDegenerate(minSide float64) bool {
	for _, s := range q.Sides() {
		if s < minSide {
			return true
		}
	}
	return q.Area() < minSide*minSide
}

// Squareness scores how close the quad is to a square, in [0, 1]:
// the product of the shortest/longest side ratio and the mean
// deviation of interior angles from 90 degrees.
func (q Quad) Squareness() float64 {
	s := q.Sides()
	minS, maxS := s[0], s[0]
	for _, v := range s[1:] {
		minS = math.Min(minS, v)
		maxS = math.Max(maxS, v)
	}
	if maxS == 0 {
		return 0
	}
	ratio := minS / maxS

	var dev float64
	for i := 0; i < 4; i++ {
		prev := q[(i+3)%4].Sub(q[i])
		next := q[(i+1)%4].Sub(q[i])
		n := math.Hypot(prev.X, prev.Y) * math.Hypot(next.X, next.Y)
		if n == 0 {
			return 0
		}
		cos := math.Max(-1, math.Min(1, dot(prev, next)/n))
		dev += math.Abs(math.Acos(cos) - math.Pi/2)
	}
	angle := 1 - (dev/4)/(math.Pi/2)

	return math.Max(0, ratio*angle)
}

// MaxDisplacement returns the largest distance between corresponding corners
func (q Quad) MaxDisplacement(other Quad) float64 {
	var m float64
	for i := range q {
		m = math.Max(m, q[i].Dist(other[i]))
	}
	return m
}

// Bounds returns the axis-aligned bounding box (min, max)
func (q Quad) Bounds() (Point, Point) {
	lo := Point{math.Inf(1), math.Inf(1)}
	hi := Point{math.Inf(-1), math.Inf(-1)}
	for _, p := range q {
		lo.X, lo.Y = math.Min(lo.X, p.X), math.Min(lo.Y, p.Y)
		hi.X, hi.Y = math.Max(hi.X, p.X), math.Max(hi.Y, p.Y)
	}
	return lo, hi
}

// String formats the corners
func (q Quad) String() string {
	return fmt.Sprintf("[(%.1f,%.1f) (%.1f,%.1f) (%.1f,%.1f) (%.1f,%.1f)]",
		q[0].X, q[0].Y, q[1].X, q[1].Y, q[2].X, q[2].Y, q[3].X, q[3].Y)
}

// Rect returns the axis-aligned quad for a rectangle
func Rect(x0, y0, x1, y1 float64) Quad {
	return Quad{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}
