// math/point.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"fmt"
	gomath "math"
)

///////////////////////////////////////////////////////////////////////////
// Point3

// Point3 is a position in the flat simulation plane: x, y, and altitude,
// all in the same units. It is a plain value; functions that "modify" a
// point return a new one.
type Point3 [3]float64

func (p Point3) X() float64        { return p[0] }
func (p Point3) Y() float64        { return p[1] }
func (p Point3) Altitude() float64 { return p[2] }

// WithAltitude returns p at altitude alt.
func (p Point3) WithAltitude(alt float64) Point3 {
	return Point3{p[0], p[1], alt}
}

func (p Point3) String() string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f)", p[0], p[1], p[2])
}

func (p Point3) IsFinite() bool {
	return IsFinite(p[0]) && IsFinite(p[1]) && IsFinite(p[2])
}

// a+b
func Add3(a, b Point3) Point3 {
	return Point3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// a-b
func Sub3(a, b Point3) Point3 {
	return Point3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

// a*s
func Scale3(a Point3, s float64) Point3 {
	return Point3{s * a[0], s * a[1], s * a[2]}
}

func Length3(v Point3) float64 {
	return gomath.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Distance returns the 3-D Euclidean distance between a and b.
func Distance(a, b Point3) float64 {
	return Length3(Sub3(a, b))
}

// Distance2 returns the distance between a and b ignoring altitude.
func Distance2(a, b Point3) float64 {
	return gomath.Hypot(a[0]-b[0], a[1]-b[1])
}

// MoveToward returns the point reached by travelling at most step units
// from p toward target, and whether target was reached. Once the
// remaining distance is no more than step, the result is exactly target.
func MoveToward(p, target Point3, step float64) (Point3, bool) {
	d := Distance(p, target)
	if d <= step {
		return target, true
	}
	dir := Scale3(Sub3(target, p), 1/d)
	return Add3(p, Scale3(dir, step)), false
}

// CirclePoints returns n points evenly spaced counter-clockwise on the
// horizontal circle of the given radius around center at altitude alt,
// starting due east.
func CirclePoints(center Point3, radius, alt float64, n int) []Point3 {
	pts := make([]Point3, 0, n)
	for i := range n {
		theta := 2 * gomath.Pi * float64(i) / float64(n)
		pts = append(pts, Point3{
			center[0] + radius*gomath.Cos(theta),
			center[1] + radius*gomath.Sin(theta),
			alt,
		})
	}
	return pts
}
