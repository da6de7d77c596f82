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

// Package annotate implements the Variable Annotator (§4.6): the final
// lowering pass, which decides for every component output how its value
// and its validity bit are represented -- as transient per-call scratch, or
// as state that must persist across calls -- using the Ephemerality
// Analyzer's verdict as its input.
package annotate

import (
	"sort"

	"github.com/dataflowc/circuitc/pkg/circuit"
	"github.com/dataflowc/circuitc/pkg/circuit/ephemeral"
	"github.com/dataflowc/circuitc/pkg/util"
)

// VarKind classifies how an output's value is represented in the lowered
// plan.
type VarKind uint

const (
	// VarScratch holds a value only for the duration of the call that
	// produced it; it is never read by a later call.
	VarScratch VarKind = iota
	// VarStored persists across calls, because some consumer reads it from
	// a different subgraph episode than the one that produced it (or it
	// was never ephemeral to begin with).
	VarStored
)

// String renders a VarKind for diagnostics and serialization.
func (k VarKind) String() string {
	if k == VarStored {
		return "stored"
	}

	return "scratch"
}

// ValidKind classifies how an output's validity bit, if any, is
// represented.
type ValidKind uint

const (
	// ValidStatic means no runtime validity bit is needed at all: the
	// output's OutputSpec guarantees it is always valid.
	ValidStatic ValidKind = iota
	// ValidPerCall means the validity bit is computed fresh on every call
	// and never persisted, mirroring a VarScratch value.
	ValidPerCall
	// ValidStored means the validity bit must persist alongside a VarStored
	// value, so a later call in a different subgraph episode can still
	// observe it.
	ValidStored
)

// String renders a ValidKind for diagnostics and serialization.
func (k ValidKind) String() string {
	switch k {
	case ValidStatic:
		return "static"
	case ValidStored:
		return "stored"
	default:
		return "per_call"
	}
}

// GraphVariable is one entry of the annotation table: a single component
// output's storage classification.
type GraphVariable struct {
	Ref   circuit.ValueRef
	Var   VarKind
	Valid ValidKind
}

// Table is the Variable Annotator's output: a verdict for every component
// output appearing anywhere in the circuit, keyed by the output's canonical
// ValueRef string form.
type Table struct {
	entries map[string]GraphVariable
}

// Lookup returns the annotation for ref, if one exists (an output that no
// component of the circuit declares has none).
func (t *Table) Lookup(ref circuit.ValueRef) (GraphVariable, bool) {
	v, ok := t.entries[ref.String()]
	return v, ok
}

// All returns every entry of the table, sorted by ValueRef string form for
// determinism.
func (t *Table) All() []GraphVariable {
	pairs := make([]util.Pair[string, GraphVariable], 0, len(t.entries))
	for k, v := range t.entries {
		pairs = append(pairs, util.NewPair(k, v))
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Left < pairs[j].Left })

	result := make([]GraphVariable, len(pairs))
	for i, p := range pairs {
		result[i] = p.Right
	}

	return result
}

// Annotate builds the annotation table for circ, given the Ephemerality
// Analyzer's verdict (§4.6).  Every declared output of every component is
// annotated, whether or not a subgraph actually calls it, since a
// not-yet-called output (e.g. one an as-yet-unused callset would produce)
// must still be assigned a representation ahead of code emission.
func Annotate(circ *circuit.Circuit, analysis *ephemeral.Analysis) *Table {
	entries := make(map[string]GraphVariable)

	for _, comp := range circ.Components() {
		for outName, spec := range comp.Definition.OutputSpecs {
			ref := circuit.NewGraphOutput(comp.Name, outName)

			varKind := VarScratch
			if analysis.NonEphemeral(ref) {
				varKind = VarStored
			}

			entries[ref.String()] = GraphVariable{
				Ref:   ref,
				Var:   varKind,
				Valid: validKindFor(spec, varKind),
			}
		}
	}

	return &Table{entries: entries}
}

// validKindFor derives an output's validity representation from its
// OutputSpec and its already-decided VarKind: a statically-valid output
// never needs a runtime bit at all; an assume_invalid output's default is
// reconstituted per invocation, so it always gets a per-call bit even when
// stored (§4.6 table row 3); otherwise the validity bit follows the
// value's own storage class (a stored value needs a stored bit so a
// cross-episode reader can still see it; a scratch value only ever needs a
// bit for the call that produced it).
func validKindFor(spec circuit.OutputSpec, varKind VarKind) ValidKind {
	if spec.AlwaysValid {
		return ValidStatic
	}

	if spec.AssumeInvalid {
		return ValidPerCall
	}

	if varKind == VarStored {
		return ValidStored
	}

	return ValidPerCall
}
