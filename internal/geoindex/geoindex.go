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

// Package geoindex declares the read-only collaborator contracts the
// query engine consumes: the on-disk cell/region hierarchy, the item
// index store, the triangulated point-location arrangement, the
// text-completion backend and the external CQR dilator. The core
// never constructs these; it is handed implementations (see
// internal/fixtures for in-memory and embedded-store reference ones).
package geoindex

import (
	"context"

	"github.com/golang/geo/s2"

	"github.com/oscarquery/cellquery/internal/cqr"
)

// NullCellID marks "no cell" the way a sentinel region/cell id does in
// the persisted layout.
const NullCellID = ^uint32(0)

// IndexStore resolves an item-index pointer to its backing item set
// and reports its cardinality.
type IndexStore interface {
	At(ctx context.Context, idxPtr uint64) (*cqr.ItemSet, error)
	Size(ctx context.Context, idxPtr uint64) (uint32, error)
}

// MatchType hints how a STRING/STRING_ITEM/STRING_REGION leaf's
// payload should be matched against the text index.
type MatchType int

const (
	MatchExact MatchType = iota
	MatchPrefix
	MatchSuffix
	MatchSubstring
)

// QueryTarget selects which sub-index a text query is run against.
type QueryTarget int

const (
	QueryUnified QueryTarget = iota
	QueryItems
	QueryRegions
)

// CellTextCompleter answers free-text and geometric leaf queries
// against the persisted text/cell index.
type CellTextCompleter interface {
	Complete(ctx context.Context, q string, qt QueryTarget) (cqr.CQR, error)
	Items(ctx context.Context, q string, qt QueryTarget) (cqr.CQR, error)
	Regions(ctx context.Context, q string, qt QueryTarget) (cqr.CQR, error)

	CQRFromCellID(ctx context.Context, cellID uint32) (cqr.CQR, error)
	CQRFromTriangleID(ctx context.Context, triangleID uint32) (cqr.CQR, error)
	CQRFromRegionStoreID(ctx context.Context, regionID uint32) (cqr.CQR, error)
	CQRFromPoint(ctx context.Context, p s2.LatLng) (cqr.CQR, error)
	CQRFromRect(ctx context.Context, r s2.Rect) (cqr.CQR, error)

	CQRAlongPath(ctx context.Context, radiusMeters float64, points []s2.LatLng) (cqr.CQR, error)
	CQRBetween(ctx context.Context, a, b cqr.CQR, radiusMeters float64) (cqr.CQR, error)

	Flags() cqr.Flags
}

// GeoHierarchy exposes cell/region metadata and DAG traversal.
type GeoHierarchy interface {
	CellParents(ctx context.Context, cellID uint32) ([]uint32, error)
	RegionCellCount(ctx context.Context, regionID uint32) (uint32, error)
	RegionItemCount(ctx context.Context, regionID uint32) (uint32, error)
	RegionBoundary(ctx context.Context, regionID uint32) (*s2.Loop, error)
	RegionBBox(ctx context.Context, regionID uint32) (s2.Rect, error)
	CellBoundary(ctx context.Context, cellID uint32) (s2.Rect, error)
	RegionCellIdxPtr(ctx context.Context, regionID uint32) (uint64, error)
	ExclusiveCellIndexPtr(ctx context.Context, regionID uint32) (uint64, error)

	ChildRegions(ctx context.Context, regionID uint32) ([]uint32, error)
	ParentRegions(ctx context.Context, regionID uint32) ([]uint32, error)
	RootRegions(ctx context.Context) ([]uint32, error)

	// CellItems returns the item set local to a single cell, used by
	// the resolver's per-item containment tests and by CQR.Difference
	// when it needs a cell's full inventory (cqr.CellItemsResolver).
	CellItems(ctx context.Context, cellID uint32) (*cqr.ItemSet, error)
	ItemBBox(ctx context.Context, itemID uint32) (s2.Rect, error)
	ItemPoint(ctx context.Context, itemID uint32) (s2.LatLng, error)
	ItemBoundary(ctx context.Context, itemID uint32) ([]s2.Point, error)
	// ItemCells returns every cell an item appears in, needed to build
	// the single-item CQR leaf (pm on each of the item's cells, with
	// that cell's item-index restricted to just this id).
	ItemCells(ctx context.Context, itemID uint32) ([]uint32, error)
}

// TriangulationArrangement locates points and paths in the triangle
// mesh used for exact point-in-feature lookups.
type TriangulationArrangement interface {
	CellID(ctx context.Context, p s2.LatLng) (uint32, error)
	CellsAlongPath(ctx context.Context, radiusMeters float64, points []s2.LatLng) (*cqr.ItemSet, error)
}

// CQRDilator grows a CQR's footprint by a metric distance, typically
// backed by an external routing/buffering service.
type CQRDilator interface {
	Dilate(ctx context.Context, c cqr.CQR, distanceMeters float64, threads int) (*cqr.ItemSet, error)
}

