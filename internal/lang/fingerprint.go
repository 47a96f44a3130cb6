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

import "github.com/mitchellh/hashstructure"

// Fingerprint returns a stable hash of the node's subtree: two nodes
// parsed from different query strings that produce structurally
// identical trees fingerprint identically. Used to memoize repeated
// sub-expression evaluation within a single query (e.g. the same leaf
// appearing twice in a SET_OP chain), never across queries.
func (n *Node) Fingerprint() uint64 {
	if n == nil {
		return 0
	}
	h, err := hashstructure.Hash(n, nil)
	if err != nil {
		return 0
	}
	return h
}
