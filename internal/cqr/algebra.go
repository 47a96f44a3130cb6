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

// CellItemsResolver resolves the full item set belonging to a fully
// matched cell. It is needed only when a binary operator combines a
// full match on one side with a partial match on the other and the
// result must express "everything except what the partial side
// names" (e.g. Difference) — a case that genuinely requires
// knowing the cell's complete inventory, which this package does not
// itself own.
type CellItemsResolver interface {
	ItemsAt(cellID uint32) (*ItemSet, error)
}

// FlagConverter re-encodes a partial cell's item ids between flag
// encodings. Implementations live with the collaborator that knows
// the cell-local <-> global item id mapping; this package only
// invokes it when flags mismatch.
type FlagConverter interface {
	Convert(cellID uint32, items *ItemSet, from, to Flags) *ItemSet
}

// Algebra implements the closed CQR operator set. It is stateless
// beyond the two collaborators it holds, both optional: a nil
// Resolver/Converter is fine as long as the operations performed
// never need them (e.g. two same-flagged CQRs with no full/partial
// overlaps).
type Algebra struct {
	Resolver  CellItemsResolver
	Converter FlagConverter
}

// align converts b to a's flags if they differ: the left operand's
// flags win, and the right is converted.
func (alg Algebra) align(a, b CQR) (CQR, CQR) {
	if a.flags == b.flags || alg.Converter == nil {
		return a, b
	}
	converted := map[uint32]*ItemSet{}
	for _, id := range b.pmCells.Slice() {
		converted[id] = alg.Converter.Convert(id, b.pm[id], b.flags, a.flags)
	}
	pmCells, pm := newPM(converted)
	b2 := CQR{fm: b.fm, pmCells: pmCells, pm: pm, flags: a.flags}
	return a, b2
}

func (alg Algebra) itemsAt(cellID uint32) *ItemSet {
	if alg.Resolver == nil {
		return NewItemSet()
	}
	items, err := alg.Resolver.ItemsAt(cellID)
	if err != nil || items == nil {
		return NewItemSet()
	}
	return items
}

// Union computes a + b: fm is the union of both fm sets;
// pm is the per-cell union of residual partials, with cells promoted
// to fm removed from pm.
func (alg Algebra) Union(a, b CQR) CQR {
	a, b = alg.align(a, b)

	fm := a.fm.Union(b.fm)
	pmEntries := map[uint32]*ItemSet{}

	consider := func(id uint32, aItems, bItems *ItemSet, aFM, bFM bool) {
		if fm.Contains(id) {
			return
		}
		switch {
		case aFM || bFM:
			// One side fully matches this cell: union is full.
			fm = fm.Union(NewItemSet(id))
		case aItems != nil && bItems != nil:
			pmEntries[id] = aItems.Union(bItems)
		case aItems != nil:
			pmEntries[id] = aItems
		case bItems != nil:
			pmEntries[id] = bItems
		}
	}

	seen := map[uint32]bool{}
	for _, id := range a.pmCells.Slice() {
		seen[id] = true
		consider(id, a.pm[id], b.pm[id], false, b.fm.Contains(id))
	}
	for _, id := range b.pmCells.Slice() {
		if seen[id] {
			continue
		}
		consider(id, a.pm[id], b.pm[id], a.fm.Contains(id), false)
	}

	pmCells, pm := newPM(pmEntries)
	return CQR{fm: fm, pmCells: pmCells, pm: pm, flags: a.flags}
}

// Intersect computes a / b == a b: fm is the intersection
// of both fm sets; cells fully covered on one side and partial on the
// other take the partial side's items; doubly-partial cells intersect
// their item sets.
func (alg Algebra) Intersect(a, b CQR) CQR {
	a, b = alg.align(a, b)

	fm := a.fm.Intersect(b.fm)
	pmEntries := map[uint32]*ItemSet{}

	for _, id := range a.pmCells.Slice() {
		switch {
		case b.fm.Contains(id):
			pmEntries[id] = a.pm[id]
		case b.pmCells.Contains(id):
			pmEntries[id] = a.pm[id].Intersect(b.pm[id])
		}
	}
	for _, id := range b.pmCells.Slice() {
		if a.pmCells.Contains(id) {
			continue // already handled above
		}
		if a.fm.Contains(id) {
			pmEntries[id] = b.pm[id]
		}
	}

	pmCells, pm := newPM(pmEntries)
	return CQR{fm: fm, pmCells: pmCells, pm: pm, flags: a.flags}
}

// Difference computes a - b, item-wise on partial
// overlap. A cell fully matched in a and partially matched in b needs
// the cell's full inventory (via Resolver) to compute what remains.
func (alg Algebra) Difference(a, b CQR) CQR {
	a, b = alg.align(a, b)

	fmEntries := []uint32{}
	pmEntries := map[uint32]*ItemSet{}

	for _, id := range a.fm.Slice() {
		switch {
		case b.fm.Contains(id):
			// fully subtracted
		case b.pmCells.Contains(id):
			remaining := alg.itemsAt(id).Difference(b.pm[id])
			if !remaining.Empty() {
				pmEntries[id] = remaining
			}
		default:
			fmEntries = append(fmEntries, id)
		}
	}
	for _, id := range a.pmCells.Slice() {
		switch {
		case b.fm.Contains(id):
			// fully subtracted
		case b.pmCells.Contains(id):
			remaining := a.pm[id].Difference(b.pm[id])
			if !remaining.Empty() {
				pmEntries[id] = remaining
			}
		default:
			pmEntries[id] = a.pm[id]
		}
	}

	pmCells, pm := newPM(pmEntries)
	return CQR{fm: NewItemSet(fmEntries...), pmCells: pmCells, pm: pm, flags: a.flags}
}

// SymmetricDifference computes a ^ b as (a - b) + (b - a), reusing
// Union/Difference to keep a single source of truth for the fm/pm
// promotion rules.
func (alg Algebra) SymmetricDifference(a, b CQR) CQR {
	return alg.Union(alg.Difference(a, b), alg.Difference(b, a))
}

// AllToFull promotes every partial cell to a full match, discarding
// its item list, the FM_CONVERSION operator).
func (c CQR) AllToFull() CQR {
	fm := c.fm.Union(c.pmCells)
	return CQR{fm: fm, pmCells: NewItemSet(), pm: map[uint32]*ItemSet{}, flags: c.flags}
}

// Convert re-encodes every partial cell's item ids to newFlags.
func (c CQR) Convert(newFlags Flags, conv FlagConverter) CQR {
	if c.flags == newFlags || conv == nil {
		return c
	}
	entries := map[uint32]*ItemSet{}
	for _, id := range c.pmCells.Slice() {
		entries[id] = conv.Convert(id, c.pm[id], c.flags, newFlags)
	}
	pmCells, pm := newPM(entries)
	return CQR{fm: c.fm, pmCells: pmCells, pm: pm, flags: newFlags}
}
