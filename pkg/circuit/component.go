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

import "sort"

// InputWiring is the wiring of a single component input slot: either a
// single source (Basic inputs), or an ordered list of batches, each mapping
// field name to source (Array inputs).
type InputWiring struct {
	// Single is the source for a Basic input.  Valid only when Array is nil.
	Single *ValueRef
	// Array is the ordered list of batches for an Array input.  Each batch
	// maps field name to source.  Valid only when Single is nil.
	Array []map[string]ValueRef
}

// NewSingleWiring constructs the wiring for a Basic input.
func NewSingleWiring(source ValueRef) InputWiring {
	return InputWiring{Single: &source}
}

// NewArrayWiring constructs the wiring for an Array input from an ordered
// list of field-keyed batches.
func NewArrayWiring(batches []map[string]ValueRef) InputWiring {
	return InputWiring{Array: batches}
}

// IsArray reports whether this wiring is an Array wiring.
func (w InputWiring) IsArray() bool {
	return w.Array != nil
}

// Sources returns every ValueRef wired into this input slot, flattening
// batches for Array inputs.  Used by I3 (duplicate detection), the
// conservative topological sort, and the Subgraph Discoverer's per-input
// freshness test that feeds the callset resolver.
func (w InputWiring) Sources() []ValueRef {
	if w.Single != nil {
		return []ValueRef{*w.Single}
	}

	var refs []ValueRef

	for _, batch := range w.Array {
		// Iterate fields in deterministic order for reproducible
		// diagnostics; map iteration order is otherwise unspecified.
		fields := make([]string, 0, len(batch))
		for f := range batch {
			fields = append(fields, f)
		}

		sort.Strings(fields)

		for _, f := range fields {
			refs = append(refs, batch[f])
		}
	}

	return refs
}

// OutputOptions records the per-output overrides a component instance may
// carry, independent of the definition's OutputSpec.
type OutputOptions struct {
	// ForceStored requires this output to be stored even if the spec (or
	// ephemerality analysis) would otherwise classify it as ephemeral.
	ForceStored bool
	// BlockPropagation prevents this output from being considered "fresh"
	// by downstream callset resolution, even once produced.  Reserved for
	// future use by optimizing passes; the core subgraph discoverer and
	// ephemerality analyzer do not currently special-case it beyond storing
	// it through coalescing merges.
	BlockPropagation bool
}

// MergeOutputOptions implements the "strongest_of" combinator (§9, §10.6):
// logical OR per field, so a single call site requiring storage wins when
// two component insertions coalesce.
func MergeOutputOptions(a, b OutputOptions) OutputOptions {
	return OutputOptions{
		ForceStored:      a.ForceStored || b.ForceStored,
		BlockPropagation: a.BlockPropagation || b.BlockPropagation,
	}
}

// ComponentIndex is the structural identity of a component: two components
// with equal ComponentIndex values are interchangeable and are coalesced by
// the builder unless inserted with force=true (§3, §9).
type ComponentIndex struct {
	// DefinitionName identifies the component's kind.
	DefinitionName string
	// WiringKey is a canonical string encoding of the component's input
	// wiring.
	WiringKey string
	// GenericsKey is a canonical string encoding of ClassGenerics.
	GenericsKey string
	// ParamsKey is a canonical string encoding of Params (or "" if none).
	ParamsKey string
}

// Component is a mutable instance of a Definition within a Circuit (§3).
type Component struct {
	// Name uniquely identifies this component within its circuit.
	Name string
	// Definition is a shared, immutable reference to this component's kind.
	Definition *Definition
	// Inputs maps input name to its wiring.
	Inputs map[string]InputWiring
	// OutputOptions maps output name to its per-instance overrides.
	OutputOptions map[string]OutputOptions
	// ClassGenerics maps generic-parameter name to a concrete type string.
	ClassGenerics map[string]string
	// Params is an optional, frozen, free-form record of construction-time
	// parameters (e.g. numeric literals for a "constant" component).
	Params map[string]any
}

// Index computes this component's structural identity (§3's `index()`),
// used by the builder to detect and coalesce duplicate insertions.
func (c *Component) Index() ComponentIndex {
	return ComponentIndex{
		DefinitionName: c.Definition.ClassName,
		WiringKey:      wiringKey(c.Inputs),
		GenericsKey:    stringMapKey(c.ClassGenerics),
		ParamsKey:      anyMapKey(c.Params),
	}
}
