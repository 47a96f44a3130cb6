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

package koma

import (
	"context"
	"testing"

	"github.com/oscarquery/cellquery/internal/exclusions"
)

// mapSource is a trivial in-memory koma.Source test double.
type mapSource map[uint32][]KeyValue

func (m mapSource) ItemKV(_ context.Context, itemID uint32) ([]KeyValue, error) {
	return m[itemID], nil
}

// buildFixture wires up four attribute groups over a shared item
// range:
//   - key 1/value 1 ("A"): items 1..100               (size 100)
//   - key 2/value 2 ("B"): items 100..200, i.e. +item100 (size 101, overlaps A by 1)
//   - key 3/value 3 ("C"): items 1..60                 (size 60, overlaps A by 60 -- too much)
//   - key 4/value 1 ("D"): items 201..260              (size 60, disjoint from everything)
func buildFixture() (mapSource, []uint32) {
	src := mapSource{}
	var items []uint32
	add := func(itemID, keyID, valueID uint32) {
		src[itemID] = append(src[itemID], KeyValue{KeyID: keyID, ValueID: valueID})
	}
	seen := map[uint32]bool{}
	track := func(id uint32) {
		if !seen[id] {
			seen[id] = true
			items = append(items, id)
		}
	}

	for id := uint32(1); id <= 100; id++ {
		add(id, 1, 1)
		track(id)
	}
	for id := uint32(100); id <= 200; id++ {
		add(id, 2, 2)
		track(id)
	}
	for id := uint32(1); id <= 60; id++ {
		add(id, 3, 3)
		track(id)
	}
	for id := uint32(201); id <= 260; id++ {
		add(id, 4, 1)
		track(id)
	}
	return src, items
}

func TestTopKeyValuesFindsSeedAndExtends(t *testing.T) {
	src, items := buildFixture()
	c, err := Select(context.Background(), src, items, nil, nil, Options{Workers: 1})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	top := c.TopKeyValues(3)
	keys := map[uint32]bool{}
	for _, kvi := range top {
		keys[kvi.KeyID] = true
	}
	if !keys[1] || !keys[2] || !keys[4] {
		t.Fatalf("expected keys {1,2,4} among top-3, got %+v", top)
	}
	if keys[3] {
		t.Fatalf("key 3 overlaps key 1 too much and should have been discarded, got %+v", top)
	}
}

func TestTopKeyValuesSeedIgnoresRequestedK(t *testing.T) {
	src, items := buildFixture()
	c, err := Select(context.Background(), src, items, nil, nil, Options{Workers: 1})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	top := c.TopKeyValues(1)
	if len(top) != 2 {
		t.Fatalf("expected the seed pair (2 entries) even though k=1, got %d: %+v", len(top), top)
	}
}

func TestFacetsExcludesPreviouslyChosenKeys(t *testing.T) {
	src, items := buildFixture()
	c, err := Select(context.Background(), src, items, nil, nil, Options{Workers: 1})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	facets := c.Facets(2, nil, 5)
	if len(facets) != 2 {
		t.Fatalf("expected 2 facets, got %d: %+v", len(facets), facets)
	}
	if facets[0].KeyID == facets[1].KeyID {
		t.Fatalf("facets must not repeat a key: %+v", facets)
	}
	if facets[0].KeyID != 2 || facets[1].KeyID != 1 {
		t.Fatalf("expected facet keys [2,1] in that order, got [%d,%d]", facets[0].KeyID, facets[1].KeyID)
	}
}

func TestFindValuesToKeyOrdersByCountDescAndCapsSize(t *testing.T) {
	src := mapSource{
		1: {{KeyID: 9, ValueID: 1}},
		2: {{KeyID: 9, ValueID: 1}},
		3: {{KeyID: 9, ValueID: 1}},
		4: {{KeyID: 9, ValueID: 2}},
		5: {{KeyID: 9, ValueID: 2}},
		6: {{KeyID: 9, ValueID: 3}},
	}
	items := []uint32{1, 2, 3, 4, 5, 6}
	c, err := Select(context.Background(), src, items, nil, nil, Options{Workers: 1})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	values := c.FindValuesToKey(9, 2)
	if len(values) != 2 {
		t.Fatalf("expected facetSize to cap at 2, got %d: %+v", len(values), values)
	}
	if values[0].ValueID != 1 || values[0].Count != 3 {
		t.Fatalf("expected value 1 (count 3) first, got %+v", values[0])
	}
	if values[1].ValueID != 2 || values[1].Count != 2 {
		t.Fatalf("expected value 2 (count 2) second, got %+v", values[1])
	}
}

func TestFindValuesToKeyUnknownKeyIsEmpty(t *testing.T) {
	src := mapSource{1: {{KeyID: 1, ValueID: 1}}}
	c, err := Select(context.Background(), src, []uint32{1}, nil, nil, Options{Workers: 1})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := c.FindValuesToKey(99, 5); got != nil {
		t.Fatalf("expected nil for unknown key, got %+v", got)
	}
}

func TestSelectHonoursUpfrontKeyExclusions(t *testing.T) {
	src, items := buildFixture()
	var excl exclusions.Keys
	excl.Add(2) // exclude "B" before preprocessing even runs

	c, err := Select(context.Background(), src, items, &excl, nil, Options{Workers: 1})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	top := c.TopKeyValues(3)
	for _, kvi := range top {
		if kvi.KeyID == 2 {
			t.Fatalf("key 2 was excluded up front and should never appear, got %+v", top)
		}
	}
}

func TestClusteringExcludeAddsAfterSelect(t *testing.T) {
	src, items := buildFixture()
	c, err := Select(context.Background(), src, items, nil, nil, Options{Workers: 1})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	var excl exclusions.Keys
	excl.Add(1)
	c.Exclude(&excl)

	top := c.TopKeyValues(3)
	for _, kvi := range top {
		if kvi.KeyID == 1 {
			t.Fatalf("key 1 was excluded after the fact and should never appear, got %+v", top)
		}
	}
}

func TestSelectEmptyItemsYieldsNoFacets(t *testing.T) {
	c, err := Select(context.Background(), mapSource{}, nil, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := c.TopKeyValues(3); len(got) != 0 {
		t.Fatalf("expected no candidates, got %+v", got)
	}
	if got := c.Facets(3, nil, 5); len(got) != 0 {
		t.Fatalf("expected no facets, got %+v", got)
	}
}
