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

// Package resolver turns a polygon (or a point+radius) into a CQR by
// walking the region DAG and testing candidate cells/items against
// the polygon at the caller-chosen accuracy.
package resolver

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/oscarquery/cellquery/internal/cqr"
	"github.com/oscarquery/cellquery/internal/geoindex"
	"github.com/oscarquery/cellquery/internal/qerrors"
)

// Accuracy selects how precisely a polygon's cell/item coverage is
// computed, trading exactness for speed.
type Accuracy int

const (
	ACPolygonItem Accuracy = iota
	ACPolygonItemBBox
	ACPolygonCell
	ACPolygonCellBBox
	ACPolygonBBoxCellBBox
	ACAuto
)

// Thresholds bundles the auto-accuracy length-vs-diagonal cutover
// points so the resolver doesn't import internal/config directly.
type Thresholds struct {
	ItemMeters            float64
	ItemBBoxMeters        float64
	CellBBoxMeters        float64
	LengthToDiagonalRatio float64
}

// Resolver implements the polygon-to-CQR algorithm over a GeoHierarchy
// region DAG and a triangulation arrangement for the point+radius<=0
// shortcut.
type Resolver struct {
	Hierarchy     geoindex.GeoHierarchy
	IndexStore    geoindex.IndexStore
	Triangulation geoindex.TriangulationArrangement
	Flags         cqr.Flags
	Thresholds    Thresholds
}

// Resolve computes the CQR covering poly at the given accuracy,
// starting the BFS from every DAG root.
func (r Resolver) Resolve(ctx context.Context, poly *s2.Loop, accuracy Accuracy) (cqr.CQR, error) {
	if accuracy == ACAuto {
		accuracy = r.chooseAutoAccuracy(poly)
	}

	roots, err := r.Hierarchy.RootRegions(ctx)
	if err != nil {
		return cqr.Empty(r.Flags), qerrors.Wrap(err, "listing root regions")
	}

	polyBBox := poly.RectBound()
	visited := map[uint32]bool{}
	queue := make([]uint32, 0, len(roots))
	for _, rid := range roots {
		bbox, err := r.Hierarchy.RegionBBox(ctx, rid)
		if err != nil {
			continue
		}
		if bbox.Intersects(polyBBox) {
			queue = append(queue, rid)
			visited[rid] = true
		}
	}

	alg := cqr.Algebra{Resolver: cellItemsAdapter{r.Hierarchy}}
	result := cqr.Empty(r.Flags)
	var candidateCells []uint32

	for len(queue) > 0 {
		rid := queue[0]
		queue = queue[1:]

		boundary, err := r.Hierarchy.RegionBoundary(ctx, rid)
		if err != nil {
			continue
		}
		enclosed := polygonEncloses(poly, boundary)

		if enclosed {
			ptr, err := r.Hierarchy.RegionCellIdxPtr(ctx, rid)
			if err == nil {
				cells := r.cellsForIdxPtr(ctx, ptr)
				if cellBBoxSufficient(accuracy) {
					result = alg.Union(result, cqr.NewFullMatch(cells, r.Flags))
				} else {
					candidateCells = append(candidateCells, cells...)
				}
			}
			continue
		}

		children, err := r.Hierarchy.ChildRegions(ctx, rid)
		if err == nil {
			for _, cid := range children {
				if visited[cid] {
					continue
				}
				bbox, err := r.Hierarchy.RegionBBox(ctx, cid)
				if err != nil {
					continue
				}
				childBoundary, err := r.Hierarchy.RegionBoundary(ctx, cid)
				if err != nil {
					continue
				}
				if bbox.Intersects(polyBBox) && loopBoundsOverlap(poly, childBoundary) {
					visited[cid] = true
					queue = append(queue, cid)
				}
			}
		}

		ptr, err := r.Hierarchy.ExclusiveCellIndexPtr(ctx, rid)
		if err == nil {
			candidateCells = append(candidateCells, r.cellsForIdxPtr(ctx, ptr)...)
		}
	}

	for _, cellID := range candidateCells {
		c, err := r.testCell(ctx, poly, cellID, accuracy)
		if err != nil {
			continue
		}
		result = alg.Union(result, c)
	}

	return result, nil
}

// ResolvePoint handles the point+radius shortcut: radiusMeters<=0
// looks the point up directly in the triangulation arrangement instead
// of running the polygon BFS, which would otherwise need a degenerate
// single-point loop.
func (r Resolver) ResolvePoint(ctx context.Context, p s2.LatLng, radiusMeters float64) (cqr.CQR, error) {
	if radiusMeters <= 0 {
		if r.Triangulation == nil {
			return cqr.Empty(r.Flags), qerrors.MissingCollaborator("TriangulationArrangement")
		}
		cellID, err := r.Triangulation.CellID(ctx, p)
		if err != nil {
			return cqr.Empty(r.Flags), qerrors.Wrap(err, "locating point in triangulation")
		}
		if cellID == geoindex.NullCellID {
			return cqr.Empty(r.Flags), nil
		}
		return cqr.NewFullMatch([]uint32{cellID}, r.Flags), nil
	}

	center := s2.PointFromLatLng(p)
	disc := s2.CapFromCenterAngle(center, s1.Angle(radiusMeters/earthRadiusMeters))
	poly := loopApproximatingCap(disc, 32)
	return r.Resolve(ctx, poly, ACAuto)
}

// loopApproximatingCap builds a regular n-gon loop inscribed in cap's
// boundary circle, giving the polygon BFS something to work with for a
// radius query without needing a dedicated circular-region code path.
func loopApproximatingCap(c s2.Cap, n int) *s2.Loop {
	center := c.Center()
	e1, e2 := tangentBasis(center.Vector)
	radius := float64(c.Radius())

	points := make([]s2.Point, n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		dir := e1.Mul(math.Cos(theta)).Add(e2.Mul(math.Sin(theta)))
		v := center.Vector.Mul(math.Cos(radius)).Add(dir.Mul(math.Sin(radius)))
		points[i] = s2.Point{Vector: v.Normalize()}
	}
	return s2.LoopFromPoints(points)
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

// cellsForIdxPtr dereferences an idx-ptr returned by
// RegionCellIdxPtr/ExclusiveCellIndexPtr against the resolver's
// IndexStore. GeoHierarchy alone never exposes the cell ids behind a
// pointer, so a resolver built without one treats every region as
// having no addressable cells.
func (r Resolver) cellsForIdxPtr(ctx context.Context, ptr uint64) []uint32 {
	if r.IndexStore == nil {
		return nil
	}
	items, err := r.IndexStore.At(ctx, ptr)
	if err != nil {
		return nil
	}
	return items.Slice()
}

// testCell evaluates one candidate cell against the polygon at the
// requested accuracy: a full bbox-contained cell is fm; otherwise its
// items are tested individually, some fm-promoting, some partial.
func (r Resolver) testCell(ctx context.Context, poly *s2.Loop, cellID uint32, accuracy Accuracy) (cqr.CQR, error) {
	cellBBox, err := r.Hierarchy.CellBoundary(ctx, cellID)
	if err != nil {
		return cqr.Empty(r.Flags), err
	}
	if rectContainedByLoop(cellBBox, poly) {
		return cqr.NewFullMatch([]uint32{cellID}, r.Flags), nil
	}
	if cellBBoxSufficient(accuracy) {
		if !poly.RectBound().Intersects(cellBBox) {
			return cqr.Empty(r.Flags), nil
		}
		return cqr.NewFullMatch([]uint32{cellID}, r.Flags), nil
	}

	items, err := r.Hierarchy.CellItems(ctx, cellID)
	if err != nil {
		return cqr.Empty(r.Flags), err
	}
	var matched []uint32
	total := 0
	for _, id := range items.Slice() {
		total++
		ok, err := r.itemMatches(ctx, poly, id, accuracy)
		if err != nil || !ok {
			continue
		}
		matched = append(matched, id)
	}
	switch {
	case len(matched) == 0:
		return cqr.Empty(r.Flags), nil
	case len(matched) == total:
		return cqr.NewFullMatch([]uint32{cellID}, r.Flags), nil
	default:
		return cqr.NewPartialMatch(cellID, cqr.NewItemSet(matched...), r.Flags), nil
	}
}

// itemMatches tests one item against poly. ItemBBox accuracy is a
// pure bbox-intersect test; everything finer uses the item's own
// boundary when it has one (an areal feature) and falls back to its
// representative point (a POI) when it doesn't.
func (r Resolver) itemMatches(ctx context.Context, poly *s2.Loop, itemID uint32, accuracy Accuracy) (bool, error) {
	if accuracy == ACPolygonItemBBox {
		bbox, err := r.Hierarchy.ItemBBox(ctx, itemID)
		if err != nil {
			return false, err
		}
		return poly.RectBound().Intersects(bbox), nil
	}
	boundary, err := r.Hierarchy.ItemBoundary(ctx, itemID)
	if err != nil {
		return false, err
	}
	if len(boundary) > 0 {
		for _, p := range boundary {
			if poly.ContainsPoint(p) {
				return true, nil
			}
		}
		return false, nil
	}
	point, err := r.Hierarchy.ItemPoint(ctx, itemID)
	if err != nil {
		return false, err
	}
	return poly.ContainsPoint(s2.PointFromLatLng(point)), nil
}

func cellBBoxSufficient(a Accuracy) bool {
	return a == ACPolygonCellBBox || a == ACPolygonBBoxCellBBox
}

func polygonEncloses(poly *s2.Loop, region *s2.Loop) bool {
	if region == nil {
		return false
	}
	for i := 0; i < region.NumVertices(); i++ {
		if !poly.ContainsPoint(region.Vertex(i)) {
			return false
		}
	}
	return true
}

// loopBoundsOverlap is a cheap bbox-only pre-filter used to decide
// whether a child region is worth descending into; it can admit false
// positives (handled by the enclosure/candidate-cell tests further
// down), never false negatives.
func loopBoundsOverlap(a, b *s2.Loop) bool {
	if a == nil || b == nil {
		return false
	}
	return a.RectBound().Intersects(b.RectBound())
}

func rectContainedByLoop(r s2.Rect, poly *s2.Loop) bool {
	for _, ll := range []s2.LatLng{
		{Lat: r.Lat.Lo, Lng: r.Lng.Lo}, {Lat: r.Lat.Lo, Lng: r.Lng.Hi},
		{Lat: r.Lat.Hi, Lng: r.Lng.Lo}, {Lat: r.Lat.Hi, Lng: r.Lng.Hi},
	} {
		if !poly.ContainsPoint(s2.PointFromLatLng(ll)) {
			return false
		}
	}
	return true
}

// chooseAutoAccuracy picks an accuracy level from the polygon's
// perimeter, falling back to perimeter/ratio when the shape is long
// and thin relative to its bounding rect's diagonal (a coastline-like
// query shouldn't be judged by its bbox diagonal alone).
func (r Resolver) chooseAutoAccuracy(poly *s2.Loop) Accuracy {
	perimeter := loopPerimeterMeters(poly)
	diagonal := rectDiagonalMeters(poly.RectBound())

	threshold := perimeter
	if diagonal > 0 && perimeter > r.Thresholds.LengthToDiagonalRatio*diagonal {
		threshold = perimeter / r.Thresholds.LengthToDiagonalRatio
	}

	switch {
	case threshold <= r.Thresholds.ItemMeters:
		return ACPolygonItem
	case threshold <= r.Thresholds.ItemBBoxMeters:
		return ACPolygonItemBBox
	case threshold <= r.Thresholds.CellBBoxMeters:
		return ACPolygonCellBBox
	default:
		return ACPolygonBBoxCellBBox
	}
}

const earthRadiusMeters = 6371010.0

func loopPerimeterMeters(poly *s2.Loop) float64 {
	var total float64
	n := poly.NumVertices()
	for i := 0; i < n; i++ {
		a := poly.Vertex(i)
		b := poly.Vertex((i + 1) % n)
		total += float64(a.Distance(b)) * earthRadiusMeters
	}
	return total
}

func rectDiagonalMeters(r s2.Rect) float64 {
	lo := s2.PointFromLatLng(s2.LatLng{Lat: r.Lat.Lo, Lng: r.Lng.Lo})
	hi := s2.PointFromLatLng(s2.LatLng{Lat: r.Lat.Hi, Lng: r.Lng.Hi})
	return float64(lo.Distance(hi)) * earthRadiusMeters
}

// cellItemsAdapter satisfies cqr.CellItemsResolver over a
// GeoHierarchy, so the resolver's own Algebra.Union calls can promote
// cells to full match without a separate store handle.
type cellItemsAdapter struct {
	h geoindex.GeoHierarchy
}

func (a cellItemsAdapter) ItemsAt(cellID uint32) (*cqr.ItemSet, error) {
	return a.h.CellItems(context.Background(), cellID)
}
