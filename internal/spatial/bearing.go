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

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

const earthRadiusMeters = 6371010.0

// bearing returns the initial compass bearing in degrees [0, 360) from
// "from" to "to", computed the standard forward-azimuth way.
func bearing(from, to s2.LatLng) float64 {
	lat1, lat2 := from.Lat.Radians(), to.Lat.Radians()
	dLng := to.Lng.Radians() - from.Lng.Radians()

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	theta := math.Atan2(y, x)
	return math.Mod(theta*180/math.Pi+360, 360)
}

// destinationPoint returns the point reached travelling distanceMeters
// from p along the given bearing (degrees), via the standard
// spherical direct-geodesic formula.
func destinationPoint(p s2.LatLng, bearingDegrees, distanceMeters float64) s2.LatLng {
	angularDist := s1.Angle(distanceMeters / earthRadiusMeters)
	brng := bearingDegrees * math.Pi / 180
	lat1 := p.Lat.Radians()
	lng1 := p.Lng.Radians()

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(float64(angularDist)) +
		math.Cos(lat1)*math.Sin(float64(angularDist))*math.Cos(brng))
	lng2 := lng1 + math.Atan2(
		math.Sin(brng)*math.Sin(float64(angularDist))*math.Cos(lat1),
		math.Cos(float64(angularDist))-math.Sin(lat1)*math.Sin(lat2))

	return s2.LatLng{Lat: s1.Angle(lat2), Lng: s1.Angle(normalizeLng(lng2 * 180 / math.Pi) * math.Pi / 180)}
}

// midpoint returns the great-circle midpoint between a and b.
func midpoint(a, b s2.LatLng) s2.LatLng {
	pa, pb := s2.PointFromLatLng(a), s2.PointFromLatLng(b)
	mid := pa.Vector.Add(pb.Vector).Normalize()
	return s2.LatLngFromPoint(s2.Point{Vector: mid})
}

func distanceMeters(a, b s2.LatLng) float64 {
	pa, pb := s2.PointFromLatLng(a), s2.PointFromLatLng(b)
	return float64(pa.Distance(pb)) * earthRadiusMeters
}

// normalizeLng clips a longitude in degrees into [-180, 180].
func normalizeLng(lngDegrees float64) float64 {
	for lngDegrees > 180 {
		lngDegrees -= 360
	}
	for lngDegrees < -180 {
		lngDegrees += 360
	}
	return lngDegrees
}

// normalizeLat clips a latitude in degrees into [-90, 90].
func normalizeLat(latDegrees float64) float64 {
	if latDegrees > 90 {
		return 90
	}
	if latDegrees < -90 {
		return -90
	}
	return latDegrees
}

// normalizePoints clamps every point's lat/lng into range, matching
// the synthesis-wide normalisation rule.
func normalizePoints(pts []s2.LatLng) []s2.LatLng {
	out := make([]s2.LatLng, len(pts))
	for i, p := range pts {
		latDeg := normalizeLat(p.Lat.Degrees())
		lngDeg := normalizeLng(p.Lng.Degrees())
		out[i] = s2.LatLngFromDegrees(latDeg, lngDeg)
	}
	return out
}
