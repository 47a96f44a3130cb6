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

// parser implements the DSL's recursive-descent grammar. It never
// returns an error: every recovery rule is implemented as silent
// node-dropping or node-substitution.
type parser struct {
	tokens []token
	pos    int
}

// Parse tokenizes and parses a query string, returning the operator
// tree root or nil for an empty/uninterpretable query.
func Parse(input string) *Node {
	p := &parser{tokens: lexAll(input)}
	return p.parseQ(false)
}

func lexAll(input string) []token {
	lx := newLexer(input)
	var toks []token
	for {
		t := lx.next()
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks
		}
	}
}

func (p *parser) peek() token {
	if p.pos >= len(p.tokens) {
		return token{kind: tokEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) consume() token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

var leafKinds = map[tokenKind]OpKind{
	tokString:               OpString,
	tokStringItem:           OpStringItem,
	tokStringRegion:         OpStringRegion,
	tokRegion:               OpRegion,
	tokRegionExclusiveCells: OpRegionExclusiveCells,
	tokCell:                 OpCell,
	tokCells:                OpCells,
	tokTriangle:             OpTriangle,
	tokTriangles:            OpTriangles,
	tokRect:                 OpRect,
	tokPolygon:              OpPolygon,
	tokPath:                 OpPath,
	tokPoint:                OpPoint,
	tokItem:                 OpItem,
}

var unaryKinds = map[tokenKind]OpKind{
	tokFMConversion:                 OpFMConversion,
	tokCellDilation:                 OpCellDilation,
	tokRegionDilationByCellCoverage: OpRegionDilationByCellCoverage,
	tokRegionDilationByItemCoverage: OpRegionDilationByItemCoverage,
	tokCompass:                      OpCompass,
	tokIn:                           OpIn,
	tokNear:                         OpNear,
	tokRelevantElement:              OpRelevantElement,
	tokQueryExclusiveCells:          OpQueryExclusiveCells,
}

// parseQ reads a sequence of SingleQ separated by explicit or
// implicit SET_OP/BETWEEN operators. insideParen controls how a
// RParen token is handled: as this scope's closer (consumed, stopping
// the loop) when true, or as a stray token to be dropped when false
// (top-level unbalanced-paren repair).
func (p *parser) parseQ(insideParen bool) *Node {
	left := p.nextSingleQSkippingGarbage(insideParen)
	if left == nil {
		if insideParen && p.peek().kind == tokRParen {
			p.consume()
		}
		return nil
	}

	for {
		tok := p.peek()
		switch tok.kind {
		case tokEOF:
			return left
		case tokRParen:
			if insideParen {
				p.consume()
				return left
			}
			// Stray close paren at top level: drop it and keep going.
			p.consume()
			continue
		case tokSetOp:
			p.consume()
			right := p.parseSingleQ()
			left = newBinary(OpSetOp, tok.value, left, right)
		case tokBetween:
			p.consume()
			right := p.parseSingleQ()
			left = newBinary(OpBetweenOp, tok.value, left, right)
		default:
			start := p.pos
			right := p.parseSingleQ()
			if right == nil {
				// Current token starts nothing parseable: drop it and
				// retry, unless parseSingleQ already consumed it.
				if p.pos == start {
					p.consume()
				}
				continue
			}
			left = newBinary(OpSetOp, " ", left, right)
		}
	}
}

// nextSingleQSkippingGarbage parses the first SingleQ in the input,
// skipping unparseable tokens ahead of it, per the "unknown tokens
// are skipped" recovery rule.
func (p *parser) nextSingleQSkippingGarbage(insideParen bool) *Node {
	for {
		tok := p.peek()
		if tok.kind == tokEOF {
			return nil
		}
		if tok.kind == tokRParen {
			if insideParen {
				return nil
			}
			p.consume()
			continue
		}
		start := p.pos
		if n := p.parseSingleQ(); n != nil {
			return n
		}
		// If parseSingleQ refused the current token without consuming it
		// (SetOp/Between can't start a SingleQ, or it was invalid), drop
		// it and keep looking.
		if p.pos == start {
			p.consume()
		}
	}
}

// parseSingleQ handles scopes, unary-operator-headed sub-queries and
// leaves. It returns nil, without consuming, when the
// current token cannot start a SingleQ; a scope or unary operator
// whose contents yield nothing is consumed and also returns nil.
func (p *parser) parseSingleQ() *Node {
	tok := p.peek()

	if tok.kind == tokLParen {
		p.consume()
		return p.parseQ(true)
	}

	if sub, ok := leafKinds[tok.kind]; ok {
		p.consume()
		return newLeaf(sub, tok.value)
	}

	if sub, ok := unaryKinds[tok.kind]; ok {
		p.consume()
		child := p.parseSingleQ()
		return newUnary(sub, tok.value, child)
	}

	return nil
}
