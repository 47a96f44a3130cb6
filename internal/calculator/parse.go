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

package calculator

import (
	"strings"

	"github.com/golang/geo/s2"
	"github.com/spf13/cast"
)

// parseUint32 parses a single unsigned integer, returning ok=false on
// any malformed input instead of an error: every leaf value-parsing
// failure degrades to an empty result, matching the DSL's silent
// error-recovery style.
func parseUint32(s string) (uint32, bool) {
	n, err := cast.ToUint32E(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseFloat(s string) (float64, bool) {
	f, err := cast.ToFloat64E(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return f, true
}

func splitList(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseUint32List parses a sep-separated list of unsigned integers,
// silently dropping any entry that fails to parse.
func parseUint32List(s, sep string) []uint32 {
	var out []uint32
	for _, part := range splitList(s, sep) {
		if n, ok := parseUint32(part); ok {
			out = append(out, n)
		}
	}
	return out
}

// parseLatLngList parses a flat comma-separated list of
// lat,lng,lat,lng,... pairs into points, dropping the trailing odd
// value (if any) and any pair with an unparseable coordinate.
func parseLatLngList(s string) []s2.LatLng {
	fields := splitList(s, ",")
	var pts []s2.LatLng
	for i := 0; i+1 < len(fields); i += 2 {
		lat, ok1 := parseFloat(fields[i])
		lng, ok2 := parseFloat(fields[i+1])
		if !ok1 || !ok2 {
			continue
		}
		pts = append(pts, s2.LatLngFromDegrees(lat, lng))
	}
	return pts
}

// parseLatLng parses a single "lat,lng" pair.
func parseLatLng(s string) (s2.LatLng, bool) {
	pts := parseLatLngList(s)
	if len(pts) != 1 {
		return s2.LatLng{}, false
	}
	return pts[0], true
}

// closeLoopPoints drops a trailing point that repeats the first one,
// so a caller-supplied explicitly closed list can be handed to
// s2.LoopFromPoints, which takes the loop without a closing vertex.
func closeLoopPoints(pts []s2.LatLng) []s2.LatLng {
	if len(pts) < 2 {
		return pts
	}
	first, last := pts[0], pts[len(pts)-1]
	if first.Lat == last.Lat && first.Lng == last.Lng {
		return pts[:len(pts)-1]
	}
	return pts
}

func toS2Points(pts []s2.LatLng) []s2.Point {
	out := make([]s2.Point, len(pts))
	for i, p := range pts {
		out[i] = s2.PointFromLatLng(p)
	}
	return out
}

// parseMinMax parses a qec operand of either "max" or "min:max" form.
func parseMinMax(s string) (min, max uint32, ok bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) == 2 {
		lo, ok1 := parseUint32(parts[0])
		hi, ok2 := parseUint32(parts[1])
		if !ok1 || !ok2 {
			return 0, 0, false
		}
		return lo, hi, true
	}
	hi, ok1 := parseUint32(parts[0])
	if !ok1 {
		return 0, 0, false
	}
	return 0, hi, true
}
