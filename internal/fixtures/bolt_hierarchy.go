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

package fixtures

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/boltdb/bolt"
	"github.com/golang/geo/s2"
	"github.com/pkg/errors"

	"github.com/oscarquery/cellquery/internal/cqr"
)

var (
	bucketRegions = []byte("regions")
	bucketCells   = []byte("cells")
)

// boltRegionRecord is the on-disk shape of one region DAG node.
type boltRegionRecord struct {
	BBoxLoLat, BBoxLoLng float64
	BBoxHiLat, BBoxHiLng float64
	Cells                []uint32
	ExclusiveCells       []uint32
	Children             []uint32
	Parents              []uint32
}

// BoltGeoHierarchy is a GeoHierarchy fixture loader backed by a real
// embedded key-value file, grounded on the teacher's own direct
// dependency on boltdb/bolt for small persisted lookup tables.
type BoltGeoHierarchy struct {
	db    *bolt.DB
	roots []uint32
}

// OpenBoltGeoHierarchy opens a boltdb file at path as a GeoHierarchy.
func OpenBoltGeoHierarchy(path string) (*BoltGeoHierarchy, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening boltdb geo hierarchy")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRegions); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketCells)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "initializing boltdb buckets")
	}
	return &BoltGeoHierarchy{db: db}, nil
}

func (b *BoltGeoHierarchy) Close() error { return b.db.Close() }

// PutRegion writes one region record and, if isRoot, registers it as
// a DAG root. Exposed for test-fixture loading.
func (b *BoltGeoHierarchy) PutRegion(id uint32, rec boltRegionRecord, isRoot bool) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encoding region record")
	}
	if isRoot {
		b.roots = append(b.roots, id)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRegions).Put(regionKey(id), data)
	})
}

// PutCellBoundary writes one cell's bounding rectangle.
func (b *BoltGeoHierarchy) PutCellBoundary(cellID uint32, r s2.Rect, parents []uint32) error {
	rec := boltRegionRecord{
		BBoxLoLat: r.Lat.Lo, BBoxLoLng: r.Lng.Lo,
		BBoxHiLat: r.Lat.Hi, BBoxHiLng: r.Lng.Hi,
		Parents: parents,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encoding cell boundary")
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCells).Put(regionKey(cellID), data)
	})
}

func regionKey(id uint32) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, id)
	return key
}

func (b *BoltGeoHierarchy) readRegion(id uint32) (boltRegionRecord, bool, error) {
	var rec boltRegionRecord
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRegions).Get(regionKey(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	return rec, found, err
}

func (b *BoltGeoHierarchy) CellParents(_ context.Context, cellID uint32) ([]uint32, error) {
	var rec boltRegionRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCells).Get(regionKey(cellID))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &rec)
	})
	return rec.Parents, err
}

func (b *BoltGeoHierarchy) RegionCellCount(_ context.Context, regionID uint32) (uint32, error) {
	rec, _, err := b.readRegion(regionID)
	return uint32(len(rec.Cells)), err
}

func (b *BoltGeoHierarchy) RegionItemCount(context.Context, uint32) (uint32, error) {
	// The fixture doesn't track item counts separately; callers that
	// need this exactness should use MemoryStore instead.
	return 0, nil
}

func (b *BoltGeoHierarchy) RegionBoundary(context.Context, uint32) (*s2.Loop, error) {
	return nil, errors.New("boltdb fixture does not persist loop geometry; use the bbox-only accessors")
}

func (b *BoltGeoHierarchy) RegionBBox(_ context.Context, regionID uint32) (s2.Rect, error) {
	rec, found, err := b.readRegion(regionID)
	if err != nil {
		return s2.EmptyRect(), err
	}
	if !found {
		return s2.EmptyRect(), errors.Errorf("boltdb fixture: unknown region %d", regionID)
	}
	return rectFromRecord(rec), nil
}

func (b *BoltGeoHierarchy) CellBoundary(_ context.Context, cellID uint32) (s2.Rect, error) {
	var rec boltRegionRecord
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCells).Get(regionKey(cellID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return s2.EmptyRect(), err
	}
	if !found {
		return s2.EmptyRect(), errors.Errorf("boltdb fixture: unknown cell %d", cellID)
	}
	return rectFromRecord(rec), nil
}

func rectFromRecord(rec boltRegionRecord) s2.Rect {
	return s2.RectFromDegrees(rec.BBoxLoLat, rec.BBoxLoLng, rec.BBoxHiLat, rec.BBoxHiLng)
}

func (b *BoltGeoHierarchy) RegionCellIdxPtr(_ context.Context, regionID uint32) (uint64, error) {
	return uint64(regionID)<<1 | 0, nil
}

func (b *BoltGeoHierarchy) ExclusiveCellIndexPtr(_ context.Context, regionID uint32) (uint64, error) {
	return uint64(regionID)<<1 | 1, nil
}

// ResolveIdxPtr maps a pointer produced by RegionCellIdxPtr/
// ExclusiveCellIndexPtr back to its item set, for a companion
// IndexStore to serve (the boltdb fixture doesn't implement
// IndexStore itself; pair it with MemoryStore.RegisterItemIndex or
// PebbleIndexStore in tests that need both).
func (b *BoltGeoHierarchy) ResolveIdxPtr(ctx context.Context, ptr uint64) (*cqr.ItemSet, error) {
	regionID := uint32(ptr >> 1)
	rec, found, err := b.readRegion(regionID)
	if err != nil || !found {
		return cqr.NewItemSet(), err
	}
	if ptr&1 == 1 {
		return cqr.NewItemSet(rec.ExclusiveCells...), nil
	}
	return cqr.NewItemSet(rec.Cells...), nil
}

func (b *BoltGeoHierarchy) ChildRegions(_ context.Context, regionID uint32) ([]uint32, error) {
	rec, _, err := b.readRegion(regionID)
	return rec.Children, err
}

func (b *BoltGeoHierarchy) ParentRegions(_ context.Context, regionID uint32) ([]uint32, error) {
	rec, _, err := b.readRegion(regionID)
	return rec.Parents, err
}

func (b *BoltGeoHierarchy) RootRegions(context.Context) ([]uint32, error) {
	return b.roots, nil
}

func (b *BoltGeoHierarchy) CellItems(context.Context, uint32) (*cqr.ItemSet, error) {
	return cqr.NewItemSet(), nil
}

func (b *BoltGeoHierarchy) ItemBBox(context.Context, uint32) (s2.Rect, error) {
	return s2.EmptyRect(), errors.New("boltdb fixture carries no item records")
}

func (b *BoltGeoHierarchy) ItemPoint(context.Context, uint32) (s2.LatLng, error) {
	return s2.LatLng{}, errors.New("boltdb fixture carries no item records")
}

func (b *BoltGeoHierarchy) ItemBoundary(context.Context, uint32) ([]s2.Point, error) {
	return nil, errors.New("boltdb fixture carries no item records")
}

func (b *BoltGeoHierarchy) ItemCells(context.Context, uint32) ([]uint32, error) {
	return nil, errors.New("boltdb fixture carries no item records")
}
