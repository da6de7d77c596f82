// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package context tracks the active circuit: a strict LIFO stack letting
// builder-style code (the textual front end, generated definition
// registration helpers) address "the circuit currently being built" without
// threading a *circuit.Circuit through every call. Nesting a second,
// distinct circuit on top of the stack is allowed (e.g. a definition that
// embeds a sub-circuit while its own enclosing circuit is still open);
// re-entering the same circuit that is already on top is not, since nothing
// in this design ever needs two overlapping build scopes for one circuit.
package context

import (
	"fmt"

	"github.com/dataflowc/circuitc/pkg/circuit"
	"github.com/dataflowc/circuitc/pkg/util/collection/stack"
)

var active = stack.NewStack[*circuit.Circuit]()

// Push makes c the active circuit, nesting it atop whatever was already
// active. It fails if c is already the active circuit (self-reentry).
func Push(c *circuit.Circuit) error {
	if !active.IsEmpty() && active.Peek(0) == c {
		return fmt.Errorf("context: circuit is already active; reentrant Push is not permitted")
	}

	active.Push(c)

	return nil
}

// Pop removes and returns the active circuit. It panics if called with no
// active circuit, matching the underlying stack's own precondition -- a
// balanced Push/Pop is the caller's responsibility, just as with any other
// scope-stack discipline.
func Pop() *circuit.Circuit {
	return active.Pop()
}

// Current returns the active circuit, if any.
func Current() (*circuit.Circuit, bool) {
	if active.IsEmpty() {
		return nil, false
	}

	return active.Peek(0), true
}

// With pushes c, runs fn, and pops c again, even if fn panics. It is the
// recommended way to scope a circuit as active, since it cannot leave the
// stack unbalanced.
func With(c *circuit.Circuit, fn func() error) error {
	if err := Push(c); err != nil {
		return err
	}

	defer Pop()

	return fn()
}
