// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package spatial

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
)

// planePoint is a 2D projection of an s2.Point onto the tangent plane
// at some reference point, used only as gift-wrapping's working
// coordinate system; the hull is mapped back to s2.Point afterwards.
type planePoint struct {
	x, y float64
	src  s2.Point
}

// convexHull returns the points of pts lying on their convex hull, in
// counter-clockwise order, via a Go port of the classic gift-wrapping
// (Jarvis march) algorithm. Degenerate inputs (<3 points) are returned
// unchanged.
func convexHull(pts []s2.Point) []s2.Point {
	if len(pts) < 3 {
		return pts
	}

	ref := centroid(pts)
	e1, e2 := tangentBasis(ref.Vector)
	plane := make([]planePoint, len(pts))
	for i, p := range pts {
		plane[i] = planePoint{x: p.Vector.Dot(e1), y: p.Vector.Dot(e2), src: p}
	}

	start := 0
	for i := 1; i < len(plane); i++ {
		if plane[i].y < plane[start].y || (plane[i].y == plane[start].y && plane[i].x < plane[start].x) {
			start = i
		}
	}

	hull := []s2.Point{}
	current := start
	for {
		hull = append(hull, plane[current].src)
		next := (current + 1) % len(plane)
		for i := range plane {
			if i == current {
				continue
			}
			orientation := cross(plane[current], plane[next], plane[i])
			if orientation < 0 {
				next = i
			}
		}
		current = next
		if current == start {
			break
		}
		if len(hull) > len(plane) {
			break // safety valve against degenerate collinear input
		}
	}
	return hull
}

func cross(o, a, b planePoint) float64 {
	return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
}

func centroid(pts []s2.Point) s2.Point {
	var v r3.Vector
	for _, p := range pts {
		v = v.Add(p.Vector)
	}
	return s2.Point{Vector: v.Normalize()}
}

// tangentBasis returns two orthonormal vectors spanning the tangent
// plane at unit vector center.
func tangentBasis(center r3.Vector) (r3.Vector, r3.Vector) {
	ortho := r3.Vector{X: 1, Y: 0, Z: 0}
	if math.Abs(center.X) > 0.9 {
		ortho = r3.Vector{X: 0, Y: 1, Z: 0}
	}
	e1 := center.Cross(ortho).Normalize()
	e2 := center.Cross(e1).Normalize()
	return e1, e2
}

// sortByBearingFrom orders pts by bearing from the reference point,
// used when a hull needs to be re-walked in angular order instead of
// gift-wrapping order (e.g. after merging two independently hulled
// sets).
func sortByBearingFrom(ref s2.LatLng, pts []s2.LatLng) {
	sort.Slice(pts, func(i, j int) bool {
		return bearing(ref, pts[i]) < bearing(ref, pts[j])
	})
}
