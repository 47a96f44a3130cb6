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

package cqr

import "github.com/oscarquery/cellquery/internal/qerrors"

// CQR is the central value of the query algebra: a set of
// fully matched cells, a set of partially matched cells each carrying
// the exact subset of matching items, and a flag describing how those
// item ids are encoded.
//
// CQR values are immutable after construction; every method that
// looks like a mutation returns a new value. Cloning is cheap: fm/pm
// share underlying roaring containers with their source until one
// side is actually mutated (copy-on-write is left to the roaring
// library's own Clone semantics, invoked only when a new value is
// built).
type CQR struct {
	fm      *ItemSet            // cell ids, fully matched
	pmCells *ItemSet            // cell ids, partially matched (index into pm)
	pm      map[uint32]*ItemSet // pm cell id -> matching item ids
	flags   Flags
}

// Empty returns the empty CQR with the given flags. A null operator
// tree node evaluates to this.
func Empty(flags Flags) CQR {
	return CQR{fm: NewItemSet(), pmCells: NewItemSet(), pm: map[uint32]*ItemSet{}, flags: flags}
}

// NewFullMatch returns a CQR whose cells are all fully matched.
func NewFullMatch(cellIDs []uint32, flags Flags) CQR {
	return CQR{fm: NewItemSet(cellIDs...), pmCells: NewItemSet(), pm: map[uint32]*ItemSet{}, flags: flags}
}

// NewPartialMatch returns a CQR with a single partially matched cell.
// items must be non-empty; callers that would otherwise produce an
// empty partial set should omit the cell entirely.
func NewPartialMatch(cellID uint32, items *ItemSet, flags Flags) CQR {
	qerrors.Invariant(!items.Empty(), "pm item-index for cell %d must be non-empty", cellID)
	return CQR{
		fm:      NewItemSet(),
		pmCells: NewItemSet(cellID),
		pm:      map[uint32]*ItemSet{cellID: items},
		flags:   flags,
	}
}

// Flags returns the CQR's item-id encoding.
func (c CQR) Flags() Flags { return c.flags }

// FM returns the fully-matched cell ids in ascending order.
func (c CQR) FM() []uint32 {
	if c.fm == nil {
		return nil
	}
	return c.fm.Slice()
}

// PM returns the partially-matched cell ids in ascending order.
func (c CQR) PM() []uint32 {
	if c.pmCells == nil {
		return nil
	}
	return c.pmCells.Slice()
}

// PMItems returns the matching item set for a partially matched cell,
// or nil if cellID is not in PM().
func (c CQR) PMItems(cellID uint32) *ItemSet {
	if c.pm == nil {
		return nil
	}
	return c.pm[cellID]
}

// CellCount returns |fm| + |pm|.
func (c CQR) CellCount() int {
	return c.fm.Len() + c.pmCells.Len()
}

// IsEmpty reports whether the CQR matches no cells at all.
func (c CQR) IsEmpty() bool {
	return c.CellCount() == 0
}

// IsFM reports whether cellID is a full match.
func (c CQR) IsFM(cellID uint32) bool { return c.fm.Contains(cellID) }

// IsPM reports whether cellID is a partial match.
func (c CQR) IsPM(cellID uint32) bool { return c.pmCells.Contains(cellID) }

// Validate checks the well-formedness invariants: fm and
// pm are disjoint, and every pm item set is non-empty. It does not
// check "strict subset of the cell's items" since that requires store
// access; callers that can check it (the calculator, which has a
// store) should do so separately.
func (c CQR) Validate() error {
	for _, id := range c.pmCells.Slice() {
		if c.fm.Contains(id) {
			return qerrorsOverlap(id)
		}
		items := c.pm[id]
		if items == nil || items.Empty() {
			return qerrorsEmptyPM(id)
		}
	}
	return nil
}

func qerrorsOverlap(cellID uint32) error {
	return errOverlap{cellID}
}

func qerrorsEmptyPM(cellID uint32) error {
	return errEmptyPM{cellID}
}

type errOverlap struct{ cellID uint32 }

func (e errOverlap) Error() string {
	return "cell is both fully and partially matched: " + uint32Str(e.cellID)
}

type errEmptyPM struct{ cellID uint32 }

func (e errEmptyPM) Error() string {
	return "partial match cell carries an empty item set: " + uint32Str(e.cellID)
}

func uint32Str(v uint32) string {
	// Avoid pulling in strconv at the top just for this; tiny local helper.
	if v == 0 {
		return "0"
	}
	digits := [10]byte{}
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	return string(digits[i:])
}

// newPM builds a pm map+index from a set of (cellID, items) pairs,
// dropping any cell whose item set ends up empty.
func newPM(entries map[uint32]*ItemSet) (*ItemSet, map[uint32]*ItemSet) {
	cells := make([]uint32, 0, len(entries))
	out := make(map[uint32]*ItemSet, len(entries))
	for id, items := range entries {
		if items == nil || items.Empty() {
			continue
		}
		cells = append(cells, id)
		out[id] = items
	}
	return NewItemSet(cells...), out
}
