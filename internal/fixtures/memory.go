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

// Package fixtures provides reference implementations of the
// internal/geoindex collaborator interfaces: an in-memory one
// sufficient to unit test every other component, plus embedded-store
// backed ones (pebble, boltdb) used by the package's own integration
// tests.
package fixtures

import (
	"context"
	"sort"
	"strings"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/pkg/errors"

	"github.com/oscarquery/cellquery/internal/cqr"
	"github.com/oscarquery/cellquery/internal/geoindex"
	"github.com/oscarquery/cellquery/internal/kvstats"
)

const earthRadiusMeters = 6371010.0

func metersToAngle(m float64) s1.Angle {
	return s1.Angle(m / earthRadiusMeters)
}

// Cell is one map cell in the in-memory fixture graph.
type Cell struct {
	ID       uint32
	Boundary s2.Rect
	Items    []uint32
	Parents  []uint32
}

// Region is one node of the in-memory region DAG.
type Region struct {
	ID             uint32
	Boundary       *s2.Loop
	BBox           s2.Rect
	Cells          []uint32 // all cells under this region, direct+indirect
	ExclusiveCells []uint32 // cells whose most specific region is this one
	Children       []uint32
	Parents        []uint32
}

// Item is one point-of-interest/feature in the fixture store.
type Item struct {
	ID       uint32
	Name     string
	Point    s2.LatLng
	BBox     s2.Rect
	Boundary []s2.Point
	Cells    []uint32
	// KV holds the item's (key,value) attribute pairs by name, for the
	// kvstats/koma fixtures.
	KV map[string]string
}

// MemoryStore is an in-memory implementation of IndexStore,
// CellTextCompleter, GeoHierarchy and TriangulationArrangement built
// from plain Go maps/slices, the way the teacher's own enginetest
// harness builds an in-memory sql.Database for query tests.
type MemoryStore struct {
	cells   map[uint32]*Cell
	regions map[uint32]*Region
	items   map[uint32]*Item
	roots   []uint32

	// idxPools stores named item-index pointers (IndexStore.At), keyed
	// by an opaque pointer value assigned on registration.
	idxPools map[uint64]*cqr.ItemSet
	nextPtr  uint64

	regionNames map[uint32]string
	flags       cqr.Flags

	// keyIDs/valueIDs intern the KV attribute names an item carries,
	// assigned deterministically in AddItem by sorting each item's own
	// key set before interning, so repeated runs over the same Add*
	// call sequence always produce the same ids.
	keyIDs   map[string]uint32
	valueIDs map[string]uint32
}

// NewMemoryStore builds an empty fixture store; use the Add* methods
// to populate it before use.
func NewMemoryStore(flags cqr.Flags) *MemoryStore {
	return &MemoryStore{
		cells:       map[uint32]*Cell{},
		regions:     map[uint32]*Region{},
		items:       map[uint32]*Item{},
		idxPools:    map[uint64]*cqr.ItemSet{},
		regionNames: map[uint32]string{},
		keyIDs:      map[string]uint32{},
		valueIDs:    map[string]uint32{},
		flags:       flags,
	}
}

func (m *MemoryStore) AddCell(c *Cell) { m.cells[c.ID] = c }

func (m *MemoryStore) AddItem(i *Item) {
	m.items[i.ID] = i
	names := make([]string, 0, len(i.KV))
	for k := range i.KV {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		m.internKey(k)
		m.internValue(i.KV[k])
	}
}

func (m *MemoryStore) internKey(k string) uint32 {
	if id, ok := m.keyIDs[k]; ok {
		return id
	}
	id := uint32(len(m.keyIDs))
	m.keyIDs[k] = id
	return id
}

func (m *MemoryStore) internValue(v string) uint32 {
	if id, ok := m.valueIDs[v]; ok {
		return id
	}
	id := uint32(len(m.valueIDs))
	m.valueIDs[v] = id
	return id
}

// KeyID exposes a key string's interned id for tests that need to
// name a kvstats result without hardcoding assignment order.
func (m *MemoryStore) KeyID(k string) (uint32, bool) { id, ok := m.keyIDs[k]; return id, ok }

// ValueID exposes a value string's interned id, analogous to KeyID.
func (m *MemoryStore) ValueID(v string) (uint32, bool) { id, ok := m.valueIDs[v]; return id, ok }

// ItemKV implements kvstats.Source.
func (m *MemoryStore) ItemKV(_ context.Context, itemID uint32) ([]kvstats.KeyValue, error) {
	it, ok := m.items[itemID]
	if !ok {
		return nil, errors.Errorf("fixtures: unknown item %d", itemID)
	}
	out := make([]kvstats.KeyValue, 0, len(it.KV))
	for k, v := range it.KV {
		out = append(out, kvstats.KeyValue{KeyID: m.keyIDs[k], ValueID: m.valueIDs[v]})
	}
	return out, nil
}
func (m *MemoryStore) AddRegion(r *Region, name string, isRoot bool) {
	m.regions[r.ID] = r
	m.regionNames[r.ID] = name
	if isRoot {
		m.roots = append(m.roots, r.ID)
	}
}

// RegisterItemIndex stores items under a fresh pointer and returns it,
// for tests that need an IndexStore-addressable item set (e.g. a
// REGION_EXCLUSIVE_CELLS leaf's region-cell-idx-ptr).
func (m *MemoryStore) RegisterItemIndex(items *cqr.ItemSet) uint64 {
	m.nextPtr++
	m.idxPools[m.nextPtr] = items
	return m.nextPtr
}

// --- IndexStore ---

func (m *MemoryStore) At(_ context.Context, idxPtr uint64) (*cqr.ItemSet, error) {
	items, ok := m.idxPools[idxPtr]
	if !ok {
		return cqr.NewItemSet(), nil
	}
	return items, nil
}

func (m *MemoryStore) Size(ctx context.Context, idxPtr uint64) (uint32, error) {
	items, err := m.At(ctx, idxPtr)
	if err != nil {
		return 0, err
	}
	return uint32(items.Len()), nil
}

// --- GeoHierarchy ---

func (m *MemoryStore) CellParents(_ context.Context, cellID uint32) ([]uint32, error) {
	c, ok := m.cells[cellID]
	if !ok {
		return nil, nil
	}
	return c.Parents, nil
}

func (m *MemoryStore) RegionCellCount(_ context.Context, regionID uint32) (uint32, error) {
	r, ok := m.regions[regionID]
	if !ok {
		return 0, nil
	}
	return uint32(len(r.Cells)), nil
}

func (m *MemoryStore) RegionItemCount(_ context.Context, regionID uint32) (uint32, error) {
	r, ok := m.regions[regionID]
	if !ok {
		return 0, nil
	}
	var n uint32
	for _, cid := range r.Cells {
		if c, ok := m.cells[cid]; ok {
			n += uint32(len(c.Items))
		}
	}
	return n, nil
}

func (m *MemoryStore) RegionBoundary(_ context.Context, regionID uint32) (*s2.Loop, error) {
	r, ok := m.regions[regionID]
	if !ok {
		return nil, errors.Errorf("fixtures: unknown region %d", regionID)
	}
	return r.Boundary, nil
}

func (m *MemoryStore) RegionBBox(_ context.Context, regionID uint32) (s2.Rect, error) {
	r, ok := m.regions[regionID]
	if !ok {
		return s2.EmptyRect(), errors.Errorf("fixtures: unknown region %d", regionID)
	}
	return r.BBox, nil
}

func (m *MemoryStore) CellBoundary(_ context.Context, cellID uint32) (s2.Rect, error) {
	c, ok := m.cells[cellID]
	if !ok {
		return s2.EmptyRect(), errors.Errorf("fixtures: unknown cell %d", cellID)
	}
	return c.Boundary, nil
}

func (m *MemoryStore) RegionCellIdxPtr(_ context.Context, regionID uint32) (uint64, error) {
	r, ok := m.regions[regionID]
	if !ok {
		return 0, errors.Errorf("fixtures: unknown region %d", regionID)
	}
	return m.RegisterItemIndex(cellsToItemSet(m, r.Cells)), nil
}

func (m *MemoryStore) ExclusiveCellIndexPtr(_ context.Context, regionID uint32) (uint64, error) {
	r, ok := m.regions[regionID]
	if !ok {
		return 0, errors.Errorf("fixtures: unknown region %d", regionID)
	}
	return m.RegisterItemIndex(cellsToItemSet(m, r.ExclusiveCells)), nil
}

func cellsToItemSet(m *MemoryStore, cellIDs []uint32) *cqr.ItemSet {
	ids := make([]uint32, len(cellIDs))
	copy(ids, cellIDs)
	return cqr.NewItemSet(ids...)
}

func (m *MemoryStore) ChildRegions(_ context.Context, regionID uint32) ([]uint32, error) {
	r, ok := m.regions[regionID]
	if !ok {
		return nil, nil
	}
	return r.Children, nil
}

func (m *MemoryStore) ParentRegions(_ context.Context, regionID uint32) ([]uint32, error) {
	r, ok := m.regions[regionID]
	if !ok {
		return nil, nil
	}
	return r.Parents, nil
}

func (m *MemoryStore) RootRegions(context.Context) ([]uint32, error) {
	out := append([]uint32(nil), m.roots...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *MemoryStore) CellItems(_ context.Context, cellID uint32) (*cqr.ItemSet, error) {
	c, ok := m.cells[cellID]
	if !ok {
		return cqr.NewItemSet(), nil
	}
	return cqr.NewItemSet(c.Items...), nil
}

func (m *MemoryStore) ItemBBox(_ context.Context, itemID uint32) (s2.Rect, error) {
	it, ok := m.items[itemID]
	if !ok {
		return s2.EmptyRect(), errors.Errorf("fixtures: unknown item %d", itemID)
	}
	return it.BBox, nil
}

func (m *MemoryStore) ItemPoint(_ context.Context, itemID uint32) (s2.LatLng, error) {
	it, ok := m.items[itemID]
	if !ok {
		return s2.LatLng{}, errors.Errorf("fixtures: unknown item %d", itemID)
	}
	return it.Point, nil
}

func (m *MemoryStore) ItemBoundary(_ context.Context, itemID uint32) ([]s2.Point, error) {
	it, ok := m.items[itemID]
	if !ok {
		return nil, errors.Errorf("fixtures: unknown item %d", itemID)
	}
	return it.Boundary, nil
}

func (m *MemoryStore) ItemCells(_ context.Context, itemID uint32) ([]uint32, error) {
	it, ok := m.items[itemID]
	if !ok {
		return nil, errors.Errorf("fixtures: unknown item %d", itemID)
	}
	return it.Cells, nil
}

// ItemsAt implements cqr.CellItemsResolver.
func (m *MemoryStore) ItemsAt(cellID uint32) (*cqr.ItemSet, error) {
	return m.CellItems(context.Background(), cellID)
}

// --- TriangulationArrangement ---

func (m *MemoryStore) CellID(_ context.Context, p s2.LatLng) (uint32, error) {
	for _, c := range m.cells {
		if c.Boundary.ContainsLatLng(p) {
			return c.ID, nil
		}
	}
	return geoindex.NullCellID, nil
}

func (m *MemoryStore) CellsAlongPath(ctx context.Context, radiusMeters float64, points []s2.LatLng) (*cqr.ItemSet, error) {
	out := cqr.NewItemSet()
	for _, p := range points {
		disc := s2.CapFromCenterAngle(s2.PointFromLatLng(p), metersToAngle(radiusMeters))
		for _, c := range m.cells {
			center := s2.PointFromLatLng(c.Boundary.Center())
			if disc.ContainsPoint(center) {
				out = out.Union(cqr.NewItemSet(c.ID))
			}
		}
	}
	return out, nil
}

// --- CellTextCompleter ---

func (m *MemoryStore) matchType(q string) (string, geoindex.MatchType) {
	switch {
	case strings.HasPrefix(q, "*") && strings.HasSuffix(q, "*") && len(q) > 1:
		return strings.Trim(q, "*"), geoindex.MatchSubstring
	case strings.HasSuffix(q, "*"):
		return strings.TrimSuffix(q, "*"), geoindex.MatchPrefix
	case strings.HasPrefix(q, "*"):
		return strings.TrimPrefix(q, "*"), geoindex.MatchSuffix
	default:
		return q, geoindex.MatchSubstring
	}
}

func (m *MemoryStore) matches(name string, q string, mt geoindex.MatchType) bool {
	name, q = strings.ToLower(name), strings.ToLower(q)
	switch mt {
	case geoindex.MatchPrefix:
		return strings.HasPrefix(name, q)
	case geoindex.MatchSuffix:
		return strings.HasSuffix(name, q)
	case geoindex.MatchSubstring:
		return strings.Contains(name, q)
	default:
		return name == q
	}
}

func (m *MemoryStore) Complete(ctx context.Context, q string, qt geoindex.QueryTarget) (cqr.CQR, error) {
	return m.Items(ctx, q, qt)
}

func (m *MemoryStore) Items(_ context.Context, q string, _ geoindex.QueryTarget) (cqr.CQR, error) {
	needle, mt := m.matchType(q)
	entries := map[uint32]*cqr.ItemSet{}
	for _, it := range m.items {
		if !m.matches(it.Name, needle, mt) {
			continue
		}
		for _, cid := range it.Cells {
			if entries[cid] == nil {
				entries[cid] = cqr.NewItemSet()
			}
			entries[cid] = entries[cid].Union(cqr.NewItemSet(it.ID))
		}
	}
	return buildCQR(entries, m.flags), nil
}

func (m *MemoryStore) Regions(_ context.Context, q string, _ geoindex.QueryTarget) (cqr.CQR, error) {
	needle, mt := m.matchType(q)
	var fm []uint32
	for _, r := range m.regions {
		if m.matches(m.regionNames[r.ID], needle, mt) {
			fm = append(fm, r.Cells...)
		}
	}
	return cqr.NewFullMatch(fm, m.flags), nil
}

func (m *MemoryStore) CQRFromCellID(_ context.Context, cellID uint32) (cqr.CQR, error) {
	if _, ok := m.cells[cellID]; !ok {
		return cqr.Empty(m.flags), nil
	}
	return cqr.NewFullMatch([]uint32{cellID}, m.flags), nil
}

func (m *MemoryStore) CQRFromTriangleID(_ context.Context, triangleID uint32) (cqr.CQR, error) {
	return cqr.NewFullMatch([]uint32{triangleID}, m.flags), nil
}

func (m *MemoryStore) CQRFromRegionStoreID(_ context.Context, regionID uint32) (cqr.CQR, error) {
	r, ok := m.regions[regionID]
	if !ok {
		return cqr.Empty(m.flags), nil
	}
	return cqr.NewFullMatch(r.Cells, m.flags), nil
}

func (m *MemoryStore) CQRFromPoint(ctx context.Context, p s2.LatLng) (cqr.CQR, error) {
	id, err := m.CellID(ctx, p)
	if err != nil || id == geoindex.NullCellID {
		return cqr.Empty(m.flags), err
	}
	return cqr.NewFullMatch([]uint32{id}, m.flags), nil
}

func (m *MemoryStore) CQRFromRect(_ context.Context, r s2.Rect) (cqr.CQR, error) {
	var fm []uint32
	for _, c := range m.cells {
		if r.Intersects(c.Boundary) {
			fm = append(fm, c.ID)
		}
	}
	return cqr.NewFullMatch(fm, m.flags), nil
}

func (m *MemoryStore) CQRAlongPath(ctx context.Context, radiusMeters float64, points []s2.LatLng) (cqr.CQR, error) {
	items, err := m.CellsAlongPath(ctx, radiusMeters, points)
	if err != nil {
		return cqr.Empty(m.flags), err
	}
	return cqr.NewFullMatch(items.Slice(), m.flags), nil
}

func (m *MemoryStore) CQRBetween(_ context.Context, a, b cqr.CQR, radiusMeters float64) (cqr.CQR, error) {
	alg := cqr.Algebra{Resolver: m}
	return alg.Union(a, b), nil
}

func (m *MemoryStore) Flags() cqr.Flags { return m.flags }

func buildCQR(entries map[uint32]*cqr.ItemSet, flags cqr.Flags) cqr.CQR {
	empty := cqr.Empty(flags)
	alg := cqr.Algebra{}
	for cellID, items := range entries {
		empty = alg.Union(empty, cqr.NewPartialMatch(cellID, items, flags))
	}
	return empty
}

