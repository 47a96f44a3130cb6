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

import "testing"

func TestFingerprintEqualForIdenticalTrees(t *testing.T) {
	a := Parse("hotel + restaurant")
	b := Parse("hotel + restaurant")
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("expected identical parse trees to fingerprint equal")
	}
}

func TestFingerprintDiffersOnValue(t *testing.T) {
	a := Parse("hotel")
	b := Parse("restaurant")
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatalf("expected different leaves to fingerprint differently")
	}
}

func TestFingerprintDiffersOnShape(t *testing.T) {
	a := Parse("hotel + restaurant")
	b := Parse("hotel - restaurant")
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatalf("expected different operators to fingerprint differently")
	}
}

func TestFingerprintNilIsZero(t *testing.T) {
	var n *Node
	if n.Fingerprint() != 0 {
		t.Fatalf("expected nil node to fingerprint to 0")
	}
}
