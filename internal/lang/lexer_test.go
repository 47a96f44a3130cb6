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

package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []token) []tokenKind {
	ks := make([]tokenKind, len(toks))
	for i, t := range toks {
		ks[i] = t.kind
	}
	return ks
}

func TestLexBareString(t *testing.T) {
	toks := lexAll("hotel")
	require.Len(t, toks, 2)
	assert.Equal(t, tokString, toks[0].kind)
	assert.Equal(t, "hotel", toks[0].value)
	assert.Equal(t, tokEOF, toks[1].kind)
}

func TestLexSetOperators(t *testing.T) {
	toks := lexAll("hotel + restaurant")
	assert.Equal(t, []tokenKind{tokString, tokSetOp, tokString, tokEOF}, kinds(toks))
	assert.Equal(t, "+", toks[1].value)
}

func TestLexCellDilationWithDistance(t *testing.T) {
	toks := lexAll("%5% hotel")
	require.Len(t, toks, 3)
	assert.Equal(t, tokCellDilation, toks[0].kind)
	assert.Equal(t, "5", toks[0].value)
	assert.Equal(t, tokString, toks[1].kind)
}

func TestLexFMConversionBareMarker(t *testing.T) {
	toks := lexAll("% hotel")
	require.Len(t, toks, 3)
	assert.Equal(t, tokFMConversion, toks[0].kind)
}

func TestLexRegionDilationVariants(t *testing.T) {
	toks := lexAll("%#3% hotel")
	assert.Equal(t, tokRegionDilationByCellCoverage, toks[0].kind)
	assert.Equal(t, "3", toks[0].value)

	toks = lexAll("%!2% hotel")
	assert.Equal(t, tokRegionDilationByItemCoverage, toks[0].kind)
	assert.Equal(t, "2", toks[0].value)
}

func TestLexGeoLeafColonPayload(t *testing.T) {
	toks := lexAll("$region:42")
	require.Len(t, toks, 2)
	assert.Equal(t, tokRegion, toks[0].kind)
	assert.Equal(t, "42", toks[0].value)
}

func TestLexGeoLeafParenPayload(t *testing.T) {
	toks := lexAll("$geo(48.0,49.0,8.0,9.0) hotel")
	require.Len(t, toks, 3)
	assert.Equal(t, tokRect, toks[0].kind)
	assert.Equal(t, "48.0,49.0,8.0,9.0", toks[0].value)
	assert.Equal(t, tokString, toks[1].kind)
}

func TestLexQueryExclusiveCells(t *testing.T) {
	toks := lexAll("$qec:1:1 $region:42")
	require.Len(t, toks, 3)
	assert.Equal(t, tokQueryExclusiveCells, toks[0].kind)
	assert.Equal(t, "1:1", toks[0].value)
	assert.Equal(t, tokRegion, toks[1].kind)
}

func TestLexUnknownGeoLeafIsInvalid(t *testing.T) {
	toks := lexAll("$bogus:1")
	assert.Equal(t, tokInvalid, toks[0].kind)
}

func TestLexCompassGlyphAndName(t *testing.T) {
	toks := lexAll(":^ hotel")
	assert.Equal(t, tokCompass, toks[0].kind)
	assert.Equal(t, "^", toks[0].value)

	toks = lexAll(":north-of hotel")
	assert.Equal(t, tokCompass, toks[0].kind)
	assert.Equal(t, "^", toks[0].value)
}

func TestLexBetweenKeywordAndGlyph(t *testing.T) {
	toks := lexAll("hotel :between restaurant")
	assert.Equal(t, []tokenKind{tokString, tokBetween, tokString, tokEOF}, kinds(toks))

	toks = lexAll("hotel <-> restaurant")
	assert.Equal(t, []tokenKind{tokString, tokBetween, tokString, tokEOF}, kinds(toks))
}

func TestLexBareLessThanIsInvalid(t *testing.T) {
	toks := lexAll("hotel < restaurant")
	assert.Equal(t, tokInvalid, toks[1].kind)
}

func TestLexInAndNear(t *testing.T) {
	toks := lexAll(":in hotel")
	assert.Equal(t, tokIn, toks[0].kind)

	toks = lexAll(":near hotel")
	assert.Equal(t, tokNear, toks[0].kind)
}

func TestLexRelevantElement(t *testing.T) {
	toks := lexAll("* hotel")
	assert.Equal(t, tokRelevantElement, toks[0].kind)
}

func TestLexQuotedStringPreservesSpaces(t *testing.T) {
	toks := lexAll(`"grand hotel"`)
	require.Len(t, toks, 2)
	assert.Equal(t, tokString, toks[0].kind)
	assert.Equal(t, "grand hotel", toks[0].value)
}

func TestLexQuotedStringUnterminatedIsPermissive(t *testing.T) {
	toks := lexAll(`"grand hotel`)
	assert.Equal(t, tokString, toks[0].kind)
	assert.Equal(t, "grand hotel", toks[0].value)
}

func TestLexStringRegionAndItemMarkers(t *testing.T) {
	toks := lexAll("#bavaria !42")
	require.Len(t, toks, 3)
	assert.Equal(t, tokStringRegion, toks[0].kind)
	assert.Equal(t, "bavaria", toks[0].value)
	assert.Equal(t, tokStringItem, toks[1].kind)
	assert.Equal(t, "42", toks[1].value)
}

func TestLexEmptyInputIsJustEOF(t *testing.T) {
	toks := lexAll("   ")
	assert.Equal(t, []tokenKind{tokEOF}, kinds(toks))
}
