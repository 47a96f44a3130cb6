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

// Flags describes how item ids are encoded in a CQR's partial-match
// item sets. CellLocal ids are indices into a cell's own
// item list; GlobalItemIDs are ids in the item store's global
// numbering. Most binary operators require both operands to share a
// flag value; see Algebra.align.
type Flags uint8

const (
	// CellLocal item ids are local offsets within their cell.
	CellLocal Flags = 1 << iota
	// GlobalItemIDs are globally unique item ids.
	GlobalItemIDs
)

func (f Flags) String() string {
	switch f {
	case CellLocal:
		return "cell-local"
	case GlobalItemIDs:
		return "global"
	default:
		return "unspecified"
	}
}
