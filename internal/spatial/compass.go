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

	"github.com/oscarquery/cellquery/internal/config"
)

// Direction is one of the four compass directions a Compass query can
// extend a subject towards.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

func (d Direction) degrees() float64 {
	switch d {
	case North:
		return 0
	case East:
		return 90
	case South:
		return 180
	default:
		return 270
	}
}

// CompassPolygon builds the cone/strip polygon a Compass(subject, dir)
// query resolves through the polygon resolver: a point-radius triangle
// for a point subject, a trapezoidal strip extended from the bbox edge
// for a region subject.
func CompassPolygon(subj Subject, dir Direction, th config.Thresholds) *s2.Loop {
	if subj.Kind == SubjectItem {
		return compassTriangle(subj.Centroid, dir, th)
	}
	return compassTrapezoid(subj.BBox, dir, th)
}

// compassTriangle builds a triangle of the configured opening angle
// and length anchored at p, pointing in dir.
func compassTriangle(p s2.LatLng, dir Direction, th config.Thresholds) *s2.Loop {
	base := dir.degrees()
	tip := destinationPoint(p, base, th.CompassPointRadiusMeters)
	left := destinationPoint(p, base-th.CompassOpeningAngleDegrees, th.CompassPointRadiusMeters)
	right := destinationPoint(p, base+th.CompassOpeningAngleDegrees, th.CompassPointRadiusMeters)

	pts := normalizePoints([]s2.LatLng{p, left, tip, right})
	return s2.LoopFromPoints(toS2Points(pts))
}

// compassTrapezoid extends bbox's edge facing dir outward by
// inDirectionScale*edge and flares perpendicular to it by
// orthoScale*edge, where inDirectionScale decays with the bbox's
// diagonal per the configured min/max.
func compassTrapezoid(bbox s2.Rect, dir Direction, th config.Thresholds) *s2.Loop {
	diag := rectDiagonal(bbox) * earthRadiusMeters
	scale := inDirectionScale(diag, th)

	center := bbox.Center()
	height := distanceMeters(
		s2.LatLng{Lat: bbox.Lat.Lo, Lng: center.Lng},
		s2.LatLng{Lat: bbox.Lat.Hi, Lng: center.Lng},
	)
	width := distanceMeters(
		s2.LatLng{Lat: center.Lat, Lng: bbox.Lng.Lo},
		s2.LatLng{Lat: center.Lat, Lng: bbox.Lng.Hi},
	)

	var edgeLen float64
	var nearA, nearB s2.LatLng
	switch dir {
	case North:
		edgeLen = width
		nearA = s2.LatLng{Lat: bbox.Lat.Hi, Lng: bbox.Lng.Lo}
		nearB = s2.LatLng{Lat: bbox.Lat.Hi, Lng: bbox.Lng.Hi}
	case South:
		edgeLen = width
		nearA = s2.LatLng{Lat: bbox.Lat.Lo, Lng: bbox.Lng.Lo}
		nearB = s2.LatLng{Lat: bbox.Lat.Lo, Lng: bbox.Lng.Hi}
	case East:
		edgeLen = height
		nearA = s2.LatLng{Lat: bbox.Lat.Lo, Lng: bbox.Lng.Hi}
		nearB = s2.LatLng{Lat: bbox.Lat.Hi, Lng: bbox.Lng.Hi}
	default: // West
		edgeLen = height
		nearA = s2.LatLng{Lat: bbox.Lat.Lo, Lng: bbox.Lng.Lo}
		nearB = s2.LatLng{Lat: bbox.Lat.Hi, Lng: bbox.Lng.Lo}
	}

	outDist := scale * edgeLen
	flare := th.CompassOrthoScale * edgeLen
	base := dir.degrees()

	farA := destinationPoint(destinationPoint(nearA, base, outDist), base-90, flare)
	farB := destinationPoint(destinationPoint(nearB, base, outDist), base+90, flare)

	pts := normalizePoints([]s2.LatLng{nearA, nearB, farB, farA})
	return s2.LoopFromPoints(toS2Points(pts))
}

// inDirectionScale decays linearly from AtMin (diagonal <= MinDiagonal)
// to AtMax (diagonal >= MaxDiagonal).
func inDirectionScale(diagonalMeters float64, th config.Thresholds) float64 {
	switch {
	case diagonalMeters <= th.CompassInDirectionScaleMinDiagonalMeters:
		return th.CompassInDirectionScaleAtMin
	case diagonalMeters >= th.CompassInDirectionScaleMaxDiagonalMeters:
		return th.CompassInDirectionScaleAtMax
	default:
		span := th.CompassInDirectionScaleMaxDiagonalMeters - th.CompassInDirectionScaleMinDiagonalMeters
		frac := (diagonalMeters - th.CompassInDirectionScaleMinDiagonalMeters) / span
		return th.CompassInDirectionScaleAtMin + frac*(th.CompassInDirectionScaleAtMax-th.CompassInDirectionScaleAtMin)
	}
}

func toS2Points(pts []s2.LatLng) []s2.Point {
	out := make([]s2.Point, len(pts))
	for i, p := range pts {
		out[i] = s2.PointFromLatLng(p)
	}
	return out
}
