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

package qerrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingCollaborator(t *testing.T) {
	err := MissingCollaborator("CellTextCompleter")
	require.Error(t, err)
	assert.True(t, ErrMissingCollaborator.Is(err))
	assert.Contains(t, err.Error(), "CellTextCompleter")
}

func TestInvariantPanicsOnViolation(t *testing.T) {
	assert.NotPanics(t, func() { Invariant(true, "fine") })
	assert.Panics(t, func() { Invariant(false, "pm/fm overlap at cell %d", 7) })
}

func TestWrapNilIsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "whatever"))
}
