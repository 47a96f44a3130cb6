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
	"context"
	"strings"

	"github.com/golang/geo/s2"

	"github.com/oscarquery/cellquery/internal/cqr"
	"github.com/oscarquery/cellquery/internal/geoindex"
	"github.com/oscarquery/cellquery/internal/lang"
	"github.com/oscarquery/cellquery/internal/resolver"
)

func (c *Calculator) evalString(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	ctc, err := c.requireCompleter()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	out, err := ctc.Complete(ctx, n.Value, geoindex.QueryUnified)
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	return out, nil
}

func (c *Calculator) evalStringItem(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	ctc, err := c.requireCompleter()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	out, err := ctc.Items(ctx, n.Value, geoindex.QueryItems)
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	return out, nil
}

func (c *Calculator) evalStringRegion(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	ctc, err := c.requireCompleter()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	out, err := ctc.Regions(ctx, n.Value, geoindex.QueryRegions)
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	return out, nil
}

func (c *Calculator) evalRegion(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	ctc, err := c.requireCompleter()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	id, ok := parseUint32(n.Value)
	if !ok {
		return cqr.Empty(c.flags()), nil
	}
	out, err := ctc.CQRFromRegionStoreID(ctx, id)
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	return out, nil
}

// evalRegionExclusiveCells emits $rec:<regionId>'s exclusive cells as
// an fm-only CQR, bypassing the text completer since the exclusive-
// cell index is a plain hierarchy lookup.
func (c *Calculator) evalRegionExclusiveCells(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	h, err := c.requireHierarchy()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	store, err := c.requireIndexStore()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	regionID, ok := parseUint32(n.Value)
	if !ok {
		return cqr.Empty(c.flags()), nil
	}
	ptr, err := h.ExclusiveCellIndexPtr(ctx, regionID)
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	cells, err := store.At(ctx, ptr)
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	return cqr.NewFullMatch(cells.Slice(), c.flags()), nil
}

// evalCell implements $cell, accepting either a bare cell id or a
// "lat,lng" point looked up via the triangulation arrangement.
func (c *Calculator) evalCell(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	ctc, err := c.requireCompleter()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}

	if strings.Contains(n.Value, ",") {
		p, ok := parseLatLng(n.Value)
		if !ok {
			return cqr.Empty(c.flags()), nil
		}
		tri, err := c.requireTriangulation()
		if err != nil {
			return cqr.Empty(c.flags()), nil
		}
		cellID, err := tri.CellID(ctx, p)
		if err != nil || cellID == geoindex.NullCellID {
			return cqr.Empty(c.flags()), nil
		}
		out, err := ctc.CQRFromCellID(ctx, cellID)
		if err != nil {
			return cqr.Empty(c.flags()), nil
		}
		return out, nil
	}

	id, ok := parseUint32(n.Value)
	if !ok {
		return cqr.Empty(c.flags()), nil
	}
	out, err := ctc.CQRFromCellID(ctx, id)
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	return out, nil
}

// evalCells implements $cells, a Thresholds.CellsSeparator-separated
// list of cell ids, unioned together.
func (c *Calculator) evalCells(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	ctc, err := c.requireCompleter()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	sep := c.Thresholds.CellsSeparator
	if sep == "" {
		sep = ","
	}
	ids := parseUint32List(n.Value, sep)
	if len(ids) == 0 {
		return cqr.Empty(c.flags()), nil
	}

	alg := c.algebra()
	out := cqr.Empty(c.flags())
	for _, id := range ids {
		cellCQR, err := ctc.CQRFromCellID(ctx, id)
		if err != nil {
			continue
		}
		out = alg.Union(out, cellCQR)
	}
	return out, nil
}

func (c *Calculator) evalTriangle(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	ctc, err := c.requireCompleter()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	id, ok := parseUint32(n.Value)
	if !ok {
		return cqr.Empty(c.flags()), nil
	}
	out, err := ctc.CQRFromTriangleID(ctx, id)
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	return out, nil
}

func (c *Calculator) evalTriangles(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	ctc, err := c.requireCompleter()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	sep := c.Thresholds.CellsSeparator
	if sep == "" {
		sep = ","
	}
	ids := parseUint32List(n.Value, sep)
	alg := c.algebra()
	out := cqr.Empty(c.flags())
	for _, id := range ids {
		triCQR, err := ctc.CQRFromTriangleID(ctx, id)
		if err != nil {
			continue
		}
		out = alg.Union(out, triCQR)
	}
	return out, nil
}

// evalRect implements $geo/$rect("lat1,lng1,lat2,lng2"): small rects
// route through C3 at ACAuto for precise containment, larger ones use
// the completer's direct rectangle shortcut.
func (c *Calculator) evalRect(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	fields := splitList(n.Value, ",")
	if len(fields) != 4 {
		return cqr.Empty(c.flags()), nil
	}
	lat1, ok1 := parseFloat(fields[0])
	lng1, ok2 := parseFloat(fields[1])
	lat2, ok3 := parseFloat(fields[2])
	lng2, ok4 := parseFloat(fields[3])
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return cqr.Empty(c.flags()), nil
	}
	rect := s2.RectFromLatLng(s2.LatLngFromDegrees(lat1, lng1)).AddPoint(s2.LatLngFromDegrees(lat2, lng2))

	diag := rectDiagonalMeters(rect)
	if diag <= c.Thresholds.AutoAccuracyCellBBoxMeters {
		loop := s2.LoopFromPoints(toS2Points([]s2.LatLng{
			{Lat: rect.Lat.Lo, Lng: rect.Lng.Lo},
			{Lat: rect.Lat.Lo, Lng: rect.Lng.Hi},
			{Lat: rect.Lat.Hi, Lng: rect.Lng.Hi},
			{Lat: rect.Lat.Hi, Lng: rect.Lng.Lo},
		}))
		out, err := c.Resolver.Resolve(ctx, loop, resolver.ACAuto)
		if err != nil {
			return cqr.Empty(c.flags()), nil
		}
		return out, nil
	}

	ctc, err := c.requireCompleter()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	out, err := ctc.CQRFromRect(ctx, rect)
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	return out, nil
}

// evalPolygon implements $poly("lat1,lng1,lat2,lng2,..."): parses the
// point list, drops a duplicate closing point, and resolves it through C3.
func (c *Calculator) evalPolygon(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	pts := closeLoopPoints(parseLatLngList(n.Value))
	if len(pts) < 3 {
		return cqr.Empty(c.flags()), nil
	}
	loop := s2.LoopFromPoints(toS2Points(pts))
	out, err := c.Resolver.Resolve(ctx, loop, resolver.ACAuto)
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	return out, nil
}

// evalPath implements $path("radius,lat,lon[,lat,lon...]"): a single
// point is a disc resolved via C3; two or more points route through
// the completer's along-path corridor lookup.
func (c *Calculator) evalPath(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	fields := splitList(n.Value, ",")
	if len(fields) < 3 {
		return cqr.Empty(c.flags()), nil
	}
	radius, ok := parseFloat(fields[0])
	if !ok {
		return cqr.Empty(c.flags()), nil
	}
	pts := parseLatLngList(strings.Join(fields[1:], ","))
	if len(pts) == 0 {
		return cqr.Empty(c.flags()), nil
	}
	if len(pts) == 1 {
		out, err := c.Resolver.ResolvePoint(ctx, pts[0], radius)
		if err != nil {
			return cqr.Empty(c.flags()), nil
		}
		return out, nil
	}

	ctc, err := c.requireCompleter()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	out, err := ctc.CQRAlongPath(ctx, radius, pts)
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	return out, nil
}

// evalPoint implements $point("radius,lat,lon"), a synonym for a
// single-point $path.
func (c *Calculator) evalPoint(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	fields := splitList(n.Value, ",")
	if len(fields) != 3 {
		return cqr.Empty(c.flags()), nil
	}
	radius, ok := parseFloat(fields[0])
	if !ok {
		return cqr.Empty(c.flags()), nil
	}
	p, ok := parseLatLng(strings.Join(fields[1:], ","))
	if !ok {
		return cqr.Empty(c.flags()), nil
	}
	out, err := c.Resolver.ResolvePoint(ctx, p, radius)
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	return out, nil
}

func (c *Calculator) evalItem(ctx context.Context, n *lang.Node) (cqr.CQR, error) {
	id, ok := parseUint32(n.Value)
	if !ok {
		return cqr.Empty(c.flags()), nil
	}
	return c.itemCQR(ctx, id)
}

// itemCQR builds the CQR naming exactly one item: pm on each of its
// cells, restricted to {itemID} in every one.
func (c *Calculator) itemCQR(ctx context.Context, itemID uint32) (cqr.CQR, error) {
	h, err := c.requireHierarchy()
	if err != nil {
		return cqr.Empty(c.flags()), nil
	}
	cells, err := h.ItemCells(ctx, itemID)
	if err != nil || len(cells) == 0 {
		return cqr.Empty(c.flags()), nil
	}

	alg := c.algebra()
	out := cqr.Empty(c.flags())
	for _, cellID := range cells {
		out = alg.Union(out, cqr.NewPartialMatch(cellID, cqr.NewItemSet(itemID), c.flags()))
	}
	return out, nil
}

func rectDiagonalMeters(r s2.Rect) float64 {
	lo := s2.PointFromLatLng(s2.LatLng{Lat: r.Lat.Lo, Lng: r.Lng.Lo})
	hi := s2.PointFromLatLng(s2.LatLng{Lat: r.Lat.Hi, Lng: r.Lng.Hi})
	return float64(lo.Distance(hi)) * earthRadiusMeters
}

const earthRadiusMeters = 6371010.0
