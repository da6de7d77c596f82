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
package circuit

import "fmt"

// ValueRef identifies the producer of a value flowing into a component
// input: either an external input (identified by name) or a graph output of
// a previously-inserted component (identified by component name and output
// name).  Equality is structural (§3).  Because a ValueRef can only name a
// component that was inserted earlier into the circuit, the wiring graph is
// acyclic by construction.
type ValueRef struct {
	// External is true for ExternalOutput references, false for
	// GraphOutput references.
	External bool
	// Component is the producing component's name; empty for externals.
	Component string
	// Output is the external input's name (for externals) or the producing
	// component's output name (for graph outputs).
	Output string
}

// NewExternalOutput constructs a reference to an external input.
func NewExternalOutput(name string) ValueRef {
	return ValueRef{External: true, Output: name}
}

// NewGraphOutput constructs a reference to a named output of a named
// component.
func NewGraphOutput(component, output string) ValueRef {
	return ValueRef{External: false, Component: component, Output: output}
}

// IsExternal reports whether this reference names an external input.
func (v ValueRef) IsExternal() bool {
	return v.External
}

// String renders a ValueRef for diagnostics and the textual front end.
func (v ValueRef) String() string {
	if v.External {
		return fmt.Sprintf("ext:%s", v.Output)
	}

	return fmt.Sprintf("%s.%s", v.Component, v.Output)
}

// key returns a string uniquely identifying this ValueRef, suitable for use
// as a map key (e.g. detecting duplicate wiring under I3, or building a
// component's structural wiring key).
func (v ValueRef) key() string {
	if v.External {
		return "e:" + v.Output
	}

	return "g:" + v.Component + ":" + v.Output
}
