// Package geom holds the 2D vector math shared by input and world.
package geom

import "math"

type Vec2 struct {
	X, Y float64
}

func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(f float64) Vec2 { return Vec2{v.X * f, v.Y * f} }
func (v Vec2) Dot(o Vec2) float64   { return v.X*o.X + v.Y*o.Y }
func (v Vec2) Len() float64         { return math.Hypot(v.X, v.Y) }
func (v Vec2) IsZero() bool         { return v.X == 0 && v.Y == 0 }
func (v Vec2) Dist(o Vec2) float64  { return v.Sub(o).Len() }

// Normalize returns the unit vector, or zero for a zero vector.
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// ClampLen shortens v to at most limit.
func (v Vec2) ClampLen(limit float64) Vec2 {
	l := v.Len()
	if l <= limit || l == 0 {
		return v
	}
	return v.Scale(limit / l)
}

// Overlap reports whether two circles intersect.
func Overlap(a Vec2, ra float64, b Vec2, rb float64) bool {
	d := a.Sub(b)
	r := ra + rb
	return d.Dot(d) <= r*r
}

// Rect is an axis-aligned arena bound anchored at the origin.
type Rect struct {
	W, H float64
}

// Clamp keeps a circle of radius r inside the rect.
func (r Rect) Clamp(p Vec2, radius float64) Vec2 {
	p.X = math.Max(radius, math.Min(r.W-radius, p.X))
	p.Y = math.Max(radius, math.Min(r.H-radius, p.Y))
	return p
}

func (r Rect) Contains(p Vec2) bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= r.W && p.Y <= r.H
}
