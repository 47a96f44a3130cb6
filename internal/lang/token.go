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

// Package lang implements the query DSL tokenizer and parser: a
// single-pass character-driven lexer feeding a recursive-descent
// parser that never fails — an empty or uninterpretable query yields
// a nil root, which the calculator evaluates to the empty CQR.
package lang

// tokenKind identifies what the lexer produced for one scan.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokInvalid
	tokLParen
	tokRParen

	tokFMConversion
	tokCellDilation
	tokRegionDilationByCellCoverage
	tokRegionDilationByItemCoverage
	tokCompass
	tokRelevantElement
	tokBetween
	tokIn
	tokNear
	tokSetOp
	tokQueryExclusiveCells

	tokRegion
	tokRegionExclusiveCells
	tokCell
	tokCells
	tokTriangle
	tokTriangles
	tokRect
	tokPolygon
	tokPath
	tokPoint
	tokItem

	tokString
	tokStringItem
	tokStringRegion
)

// token is one lexer output: a kind plus the raw payload text needed
// to build the corresponding tree node (operator glyph, numeric
// value, geometry payload, ...).
type token struct {
	kind  tokenKind
	value string
}
