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

// Package ephemeral implements the Ephemerality Analyzer (§4.5): it decides,
// for every component output, whether it can live as per-call scratch state
// or must be stored because some consumer reads it from a different
// subgraph episode than the one that produced it.
package ephemeral

import (
	"sort"

	"github.com/bits-and-blooms/bitset"

	"github.com/dataflowc/circuitc/pkg/circuit"
	"github.com/dataflowc/circuitc/pkg/circuit/subgraph"
)

// Analysis is the result of running Analyze: the full non-ephemeral set NE,
// keyed by the canonical string form of each output's ValueRef.
type Analysis struct {
	nonEphemeral map[string]circuit.ValueRef
}

// NonEphemeral reports whether ref must be stored rather than recomputed
// per call.
func (a *Analysis) NonEphemeral(ref circuit.ValueRef) bool {
	_, ok := a.nonEphemeral[ref.String()]
	return ok
}

// AllNonephemeralOutputs returns every output in NE, sorted by string form
// for determinism (used by serialization and by tests).
func (a *Analysis) AllNonephemeralOutputs() []circuit.ValueRef {
	keys := make([]string, 0, len(a.nonEphemeral))
	for k := range a.nonEphemeral {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	result := make([]circuit.ValueRef, 0, len(keys))
	for _, k := range keys {
		result = append(result, a.nonEphemeral[k])
	}

	return result
}

// Analyze computes the non-ephemeral set NE over every subgraph discovered
// in circ (§4.5).  An output is placed in NE when:
//
//   - its OutputSpec does not mark it Ephemeral at all (it was never a
//     storage candidate to begin with);
//   - any component instance force-stores it (OutputOptions.ForceStored);
//     or
//   - it is read (wired as an input source) from a subgraph episode other
//     than one of the episodes that produced it -- a cross-subgraph read --
//     unless its OutputSpec marks it AssumeInvalid or AssumeDefault, whose
//     value is reconstituted per invocation anyway.
//
// Everything else remains a scratch candidate: produced and consumed
// within the same subgraph invocation, never surviving past it.
func Analyze(circ *circuit.Circuit, subgraphs []subgraph.Subgraph) *Analysis {
	// Each subgraph's entry point is assigned a bit position, so the
	// "every reading episode is also a producing episode" test below is a
	// single bitset difference rather than a per-key map walk.
	subgraphBit := make(map[string]uint, len(subgraphs))
	for i, sg := range subgraphs {
		subgraphBit[sg.EntryName] = uint(i)
	}

	producingSubgraphs := make(map[string]*bitset.BitSet)
	consumingSubgraphs := make(map[string]*bitset.BitSet)

	for _, sg := range subgraphs {
		bit := subgraphBit[sg.EntryName]

		for _, call := range sg.Calls {
			for _, cs := range call.Callsets {
				for outName := range cs.Outputs {
					ref := circuit.NewGraphOutput(call.Name, outName)
					setBit(producingSubgraphs, ref.String(), bit)
				}
			}

			comp, ok := circ.Component(call.Name)
			if !ok {
				continue
			}

			for _, wiring := range comp.Inputs {
				for _, ref := range wiring.Sources() {
					if ref.IsExternal() {
						continue
					}

					setBit(consumingSubgraphs, ref.String(), bit)
				}
			}
		}
	}

	ne := make(map[string]circuit.ValueRef)

	for _, comp := range circ.Components() {
		for outName, spec := range comp.Definition.OutputSpecs {
			ref := circuit.NewGraphOutput(comp.Name, outName)
			key := ref.String()

			if !spec.Ephemeral {
				ne[key] = ref

				continue
			}

			if opts, ok := comp.OutputOptions[outName]; ok && opts.ForceStored {
				ne[key] = ref

				continue
			}

			needsWrite := spec.AssumeInvalid || spec.AssumeDefault
			if !needsWrite && !subset(consumingSubgraphs[key], producingSubgraphs[key]) {
				ne[key] = ref
			}
		}
	}

	return &Analysis{nonEphemeral: ne}
}

func setBit(m map[string]*bitset.BitSet, key string, bit uint) {
	b, ok := m[key]
	if !ok {
		b = bitset.New(bit + 1)
		m[key] = b
	}

	b.Set(bit)
}

// subset reports whether every bit set in a is also set in b: a's reading
// episodes are all among b's producing episodes.  A nil a (never read
// cross-subgraph) is vacuously a subset of anything, including a nil b.
func subset(a, b *bitset.BitSet) bool {
	if a == nil {
		return true
	}

	if b == nil {
		return a.None()
	}

	return a.DifferenceCardinality(b) == 0
}
