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

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/oscarquery/cellquery/internal/cqr"
)

// PebbleIndexStore is an IndexStore backed by a real embedded LSM
// store, demonstrating the facade against the kind of static,
// read-mostly store a production deployment's item index plausibly
// sits on. Keys are the big-endian idxPtr; values are the ascending
// item ids, each encoded as a uvarint.
type PebbleIndexStore struct {
	db *pebble.DB
}

// OpenPebbleIndexStore opens (creating if absent) a pebble database at
// dir as an IndexStore.
func OpenPebbleIndexStore(dir string) (*PebbleIndexStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "opening pebble index store")
	}
	return &PebbleIndexStore{db: db}, nil
}

func (p *PebbleIndexStore) Close() error { return p.db.Close() }

// Put writes the item set backing idxPtr. Exposed for test fixture
// construction; the real indexer would own this write path.
func (p *PebbleIndexStore) Put(idxPtr uint64, items *cqr.ItemSet) error {
	key := encodeIdxPtr(idxPtr)
	val := encodeItemSet(items)
	return p.db.Set(key, val, pebble.Sync)
}

func (p *PebbleIndexStore) At(_ context.Context, idxPtr uint64) (*cqr.ItemSet, error) {
	key := encodeIdxPtr(idxPtr)
	val, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return cqr.NewItemSet(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading index pointer %d", idxPtr)
	}
	defer closer.Close()
	return decodeItemSet(val), nil
}

func (p *PebbleIndexStore) Size(ctx context.Context, idxPtr uint64) (uint32, error) {
	items, err := p.At(ctx, idxPtr)
	if err != nil {
		return 0, err
	}
	return uint32(items.Len()), nil
}

func encodeIdxPtr(idxPtr uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, idxPtr)
	return key
}

func encodeItemSet(items *cqr.ItemSet) []byte {
	ids := items.Slice()
	buf := make([]byte, 0, len(ids)*4)
	for _, id := range ids {
		var tmp [binary.MaxVarintLen32]byte
		n := binary.PutUvarint(tmp[:], uint64(id))
		buf = append(buf, tmp[:n]...)
	}
	return buf
}

func decodeItemSet(buf []byte) *cqr.ItemSet {
	var ids []uint32
	for len(buf) > 0 {
		v, n := binary.Uvarint(buf)
		if n <= 0 {
			break
		}
		ids = append(ids, uint32(v))
		buf = buf[n:]
	}
	return cqr.NewItemSet(ids...)
}
