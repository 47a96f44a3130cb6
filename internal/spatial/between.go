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
	"github.com/golang/geo/s2"
)

// BetweenPolygon synthesises the connecting polygon for a
// Between(a, b) query: item-item pairs get an ellipse-like
// quadrilateral around their midpoint; anything touching a region
// (way-way, polygon-polygon, or mixed) gets the convex hull of both
// subjects' bounding-box corners.
func BetweenPolygon(a, b Subject) *s2.Loop {
	if a.Kind == SubjectItem && b.Kind == SubjectItem {
		return itemItemBetween(a.Centroid, b.Centroid)
	}
	return rectConnector(a.BBox, b.BBox)
}

// itemItemBetween builds a half-diameter ellipse-like quadrilateral
// around the midpoint of p1/p2: the midpoint displaced perpendicular
// to the p1-p2 bearing by a quarter of their distance, on both sides,
// plus the two endpoints.
func itemItemBetween(p1, p2 s2.LatLng) *s2.Loop {
	mid := midpoint(p1, p2)
	dist := distanceMeters(p1, p2) / 4
	brg := bearing(mid, p2)

	left := destinationPoint(mid, brg+90, dist)
	right := destinationPoint(mid, brg-90, dist)

	pts := normalizePoints([]s2.LatLng{p1, left, p2, right})
	return s2.LoopFromPoints(toS2Points(pts))
}

// rectConnector covers the way-way, polygon-polygon and mixed cases:
// take both boxes' four corners, run them through the same
// gift-wrapping hull used for way/polygon point sets, then walk the
// hull in bearing order from its centroid so the result is a simple
// (non-self-intersecting) polygon spanning both boxes.
func rectConnector(a, b s2.Rect) *s2.Loop {
	corners := append(rectCorners(a), rectCorners(b)...)
	hull := convexHull(toS2Points(corners))

	hullLatLng := make([]s2.LatLng, len(hull))
	for i, p := range hull {
		hullLatLng[i] = s2.LatLngFromPoint(p)
	}
	center := s2.LatLngFromPoint(centroid(hull))
	sortByBearingFrom(center, hullLatLng)

	return s2.LoopFromPoints(toS2Points(normalizePoints(hullLatLng)))
}

func rectCorners(rect s2.Rect) []s2.LatLng {
	lo, hi := rect.Lat.Lo, rect.Lat.Hi
	loLng, hiLng := rect.Lng.Lo, rect.Lng.Hi
	return []s2.LatLng{
		{Lat: lo, Lng: loLng},
		{Lat: lo, Lng: hiLng},
		{Lat: hi, Lng: hiLng},
		{Lat: hi, Lng: loLng},
	}
}
