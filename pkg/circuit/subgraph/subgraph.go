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

// Package subgraph implements the Subgraph Discoverer (§4.4): for each entry
// point (a call group, or a component with a timer callset) it finds the
// topologically-ordered list of component calls that freshness reachable
// from that entry point can trigger, via a conservative over-approximation
// pass followed by an exact propagation pass.
package subgraph

import (
	"github.com/dataflowc/circuitc/pkg/circuit"
	"github.com/dataflowc/circuitc/pkg/circuit/callset"
)

// EntryKind distinguishes the two ways a Subgraph can be entered.
type EntryKind uint

const (
	// EntryCallGroup is rooted at a call group's bound externals.
	EntryCallGroup EntryKind = iota
	// EntryTimer is rooted at a single component's timer callset, firing on
	// an implementation-defined schedule rather than from external writes.
	EntryTimer
)

// CalledComponent records one component call within a Subgraph: the
// component's name and the callset(s) resolved to fire for it (more than
// one only when a CallsetGroup fired together, §4.3).
type CalledComponent struct {
	Name     string
	Callsets []*circuit.CallSpec
}

// Subgraph is one entry point's topologically-ordered list of component
// calls (§4.4).  Calls is ordered consistently with Circuit's own
// component insertion order, which is itself a valid topological order of
// the wiring graph (see pkg/circuit's ValueRef doc comment: a reference can
// only name an earlier-inserted component, so the graph is acyclic by
// construction and insertion order is always a topological order of it).
type Subgraph struct {
	Entry     EntryKind
	EntryName string
	Calls     []CalledComponent
}

// DiscoverAll finds every Subgraph of circ: one per registered call group,
// and one per component declaring a timer callset (§4.4).
func DiscoverAll(circ *circuit.Circuit, mode callset.Mode) ([]Subgraph, error) {
	var subgraphs []Subgraph

	for name, group := range circ.CallGroups() {
		sg, err := discoverFrom(circ, EntryCallGroup, name, seedRefs(group.Outputs()), mode)
		if err != nil {
			return nil, err
		}

		subgraphs = append(subgraphs, sg)
	}

	for _, comp := range circ.Components() {
		if comp.Definition.TimerCallset == nil {
			continue
		}

		sg, err := discoverFromTimer(circ, comp, mode)
		if err != nil {
			return nil, err
		}

		subgraphs = append(subgraphs, sg)
	}

	return subgraphs, nil
}

func seedRefs(refs []circuit.ValueRef) map[string]circuit.ValueRef {
	m := make(map[string]circuit.ValueRef, len(refs))
	for _, r := range refs {
		m[refKey(r)] = r
	}

	return m
}

func refKey(r circuit.ValueRef) string {
	return r.String()
}

// discoverFrom runs the two-pass discovery for a call-group entry point
// rooted at the given seed external-output references.
func discoverFrom(circ *circuit.Circuit, kind EntryKind, name string, seed map[string]circuit.ValueRef, mode callset.Mode) (Subgraph, error) {
	candidates := conservativeCandidates(circ, seed, circ.Components())

	calls, err := exactPropagate(circ, seed, candidates, mode)
	if err != nil {
		return Subgraph{}, err
	}

	return Subgraph{Entry: kind, EntryName: name, Calls: calls}, nil
}

// discoverFromTimer runs discovery for a timer-callset entry point: the
// owning component always fires its TimerCallset, and discovery then
// proceeds over the components following it in insertion order, seeded by
// the outputs that callset declares.
func discoverFromTimer(circ *circuit.Circuit, comp *circuit.Component, mode callset.Mode) (Subgraph, error) {
	pos, _ := circ.ComponentPosition(comp.Name)

	rest := circ.Components()[pos+1:]

	seed := make(map[string]circuit.ValueRef)
	for name := range comp.Definition.TimerCallset.Outputs {
		ref := circuit.NewGraphOutput(comp.Name, name)
		seed[refKey(ref)] = ref
	}

	candidates := conservativeCandidates(circ, seed, rest)

	calls, err := exactPropagate(circ, seed, candidates, mode)
	if err != nil {
		return Subgraph{}, err
	}

	firstCall := CalledComponent{Name: comp.Name, Callsets: []*circuit.CallSpec{comp.Definition.TimerCallset}}

	return Subgraph{
		Entry:     EntryTimer,
		EntryName: comp.Name,
		Calls:     append([]CalledComponent{firstCall}, calls...),
	}, nil
}

// conservativeCandidates is Pass A (§4.4): a single forward scan over order
// that over-approximates reachability by assuming, once a component is
// included, that every output it declares (not just the ones some callset
// would actually produce) becomes fresh. This can only ever over-include a
// component relative to Pass B, never under-include one, so it is safe as a
// filter ahead of the exact pass.
func conservativeCandidates(circ *circuit.Circuit, seed map[string]circuit.ValueRef, order []*circuit.Component) []*circuit.Component {
	fresh := make(map[string]struct{}, len(seed))
	for k := range seed {
		fresh[k] = struct{}{}
	}

	var candidates []*circuit.Component

	for _, comp := range order {
		if !anySourceFresh(comp, fresh) {
			continue
		}

		candidates = append(candidates, comp)

		for name := range comp.Definition.OutputNames() {
			fresh[refKey(circuit.NewGraphOutput(comp.Name, name))] = struct{}{}
		}
	}

	return candidates
}

// exactPropagate is Pass B (§4.4): re-scans the Pass A candidates in order,
// this time resolving the actual callset(s) that fire for each component
// (via the Callset Resolver) and propagating only the outputs those
// specific callsets declare. A candidate that fails to resolve (no callset
// matches, and no generic callset) produced no call this round and
// contributes no further freshness; it is simply omitted from the result.
func exactPropagate(circ *circuit.Circuit, seed map[string]circuit.ValueRef, candidates []*circuit.Component, mode callset.Mode) ([]CalledComponent, error) {
	fresh := make(map[string]struct{}, len(seed))
	for k := range seed {
		fresh[k] = struct{}{}
	}

	var calls []CalledComponent

	for _, comp := range candidates {
		freshInputs := freshInputNames(comp, fresh, mode)
		if len(freshInputs) == 0 {
			continue
		}

		matched, err := callset.Resolve(comp.Definition, freshInputs)
		if err != nil {
			if iv, ok := err.(*circuit.InvariantViolation); ok && iv.Reason() == circuit.ReasonNoMatchingCallset {
				continue
			}

			return nil, err
		}

		calls = append(calls, CalledComponent{Name: comp.Name, Callsets: matched})

		for _, cs := range matched {
			for name := range cs.Outputs {
				fresh[refKey(circuit.NewGraphOutput(comp.Name, name))] = struct{}{}
			}
		}
	}

	return calls, nil
}

// anySourceFresh always uses "any source of any input" regardless of mode:
// Pass A must only ever over-include relative to Pass B, and the real
// per-input satisfaction test (inputSatisfied, below) can only be at least
// as strict as this, so this looser test remains a safe over-approximation
// under either mode.
func anySourceFresh(comp *circuit.Component, fresh map[string]struct{}) bool {
	for _, wiring := range comp.Inputs {
		for _, ref := range wiring.Sources() {
			if _, ok := fresh[refKey(ref)]; ok {
				return true
			}
		}
	}

	return false
}

// freshInputNames returns the set of comp's input names considered
// satisfied this round, per mode's any/all rule over each input's own
// wired sources (§9; relevant only to an Array input wiring more than one
// source into a single slot).
func freshInputNames(comp *circuit.Component, fresh map[string]struct{}, mode callset.Mode) map[string]struct{} {
	names := make(map[string]struct{})

	for inputName, wiring := range comp.Inputs {
		if inputSatisfied(wiring, fresh, mode) {
			names[inputName] = struct{}{}
		}
	}

	return names
}

func inputSatisfied(wiring circuit.InputWiring, fresh map[string]struct{}, mode callset.Mode) bool {
	sources := wiring.Sources()
	if len(sources) == 0 {
		return false
	}

	if mode == callset.ModeAll {
		for _, ref := range sources {
			if _, ok := fresh[refKey(ref)]; !ok {
				return false
			}
		}

		return true
	}

	// ModeAny (default): satisfied once any one wired source is fresh.
	for _, ref := range sources {
		if _, ok := fresh[refKey(ref)]; ok {
			return true
		}
	}

	return false
}
