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

// Package qerrors defines the typed, caller-facing error taxonomy of
// the query engine. Only the two fatal classes are typed
// errors: a missing collaborator and a violated internal invariant.
// Every other condition listed in (parse errors, invalid operands,
// out-of-range ids, flag mismatches) is a user error recovered from
// silently inside the package that detects it, never surfaced here.
package qerrors

import (
	"fmt"

	"github.com/pkg/errors"
	goerrors "gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrMissingCollaborator is returned when a leaf or modifier
	// evaluator needs a collaborator (text completer, geo hierarchy,
	// index store, triangulation) that was not supplied at Engine
	// construction time. Fatal: propagated to the caller as-is.
	ErrMissingCollaborator = goerrors.NewKind("missing collaborator: %s")

	// ErrInvariantViolation marks a violated internal assertion (e.g.
	// a CQR whose pm set overlaps its fm set). These represent
	// programmer errors in this engine or its collaborators, not user
	// input problems, and are never expected to trigger in a correct
	// build.
	ErrInvariantViolation = goerrors.NewKind("invariant violation: %s")
)

// MissingCollaborator builds a fatal error naming the absent
// collaborator, e.g. qerrors.MissingCollaborator("CellTextCompleter").
func MissingCollaborator(name string) error {
	return ErrMissingCollaborator.New(name)
}

// Invariant panics with a typed InvariantViolation error if cond is
// false. Internal invariants are abort-on-violation; they
// are never expected to fire against a correct store and evaluator.
func Invariant(cond bool, format string, args ...interface{}) {
	if cond {
		return
	}
	panic(ErrInvariantViolation.New(fmt.Sprintf(format, args...)))
}

// Wrap annotates err with a message describing the collaborator call
// that failed, preserving a stack trace the way engine.go's own
// pkg/errors usage does at collaborator boundaries.
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
