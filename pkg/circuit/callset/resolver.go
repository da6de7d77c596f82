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

// Package callset implements the Callset Resolver (§4.3): given a
// definition and the set of its inputs that are fresh this round, it
// determines which of the definition's callsets (if any) must fire, using
// CallsetGroups to disambiguate a simultaneous match.
package callset

import (
	"sort"

	"github.com/dataflowc/circuitc/pkg/circuit"
	"github.com/dataflowc/circuitc/pkg/util"
)

// Mode selects how a single input slot's multiple wired sources count
// towards that input's freshness, resolving the specification's one open
// question (§9): this only matters for an Array input whose batches wire
// more than one source into it. ModeAny (the default) treats the input as
// fresh once any one of its wired sources is fresh. ModeAll requires every
// wired source of that input to be fresh simultaneously, for components
// whose callback genuinely needs a synchronised batch. Mode is consumed by
// the Subgraph Discoverer when it computes the fresh input-name set (see
// pkg/circuit/subgraph); by the time a freshSet reaches Resolve, each
// input name it contains is already considered satisfied, and §4.3 rule 1
// requires every name in a callset's WrittenSet to be present (an
// unconditional AND across names, never a mode-dependent choice).
type Mode uint

const (
	// ModeAny is the default: an input counts as fresh once any one of its
	// wired sources is fresh.
	ModeAny Mode = iota
	// ModeAll requires every one of an input's wired sources to be fresh
	// simultaneously.
	ModeAll
)

// Resolve determines which callset(s) of def must fire given freshSet, the
// set of def's input names considered satisfied this round (see Mode for
// how the Subgraph Discoverer computes that set from each input's wired
// sources).
//
// On success it returns the batch of CallSpecs to invoke, in the order
// declared by the matching CallsetGroup (or a single-element slice when
// exactly one callset matched and no group was involved).  If no declared
// callset matches, def.GenericCallset fires instead, if present; otherwise
// Resolve fails with ReasonNoMatchingCallset.
func Resolve(def *circuit.Definition, freshSet map[string]struct{}) ([]*circuit.CallSpec, error) {
	matched := matchingCallsets(def, freshSet)

	switch len(matched) {
	case 0:
		if def.GenericCallset != nil {
			return []*circuit.CallSpec{def.GenericCallset}, nil
		}

		return nil, circuit.NewInvariantViolation(circuit.ReasonNoMatchingCallset, def.ClassName,
			"no callset matches the fresh input set and no generic callset is declared")

	case 1:
		return matched, nil

	default:
		return disambiguate(def, matched)
	}
}

// matchingCallsets returns, in definition-map order stabilised by name, the
// callsets whose entire WrittenSet is satisfied by freshSet.
func matchingCallsets(def *circuit.Definition, freshSet map[string]struct{}) []*circuit.CallSpec {
	names := make([]string, 0, len(def.Callsets))
	for name := range def.Callsets {
		names = append(names, name)
	}

	sort.Strings(names)

	var matched []*circuit.CallSpec

	for _, name := range names {
		cs := def.Callsets[name]
		if matches(cs, freshSet) {
			csCopy := cs
			matched = append(matched, &csCopy)
		}
	}

	return matched
}

// matches reports whether every input name in cs.WrittenSet is present in
// freshSet (§4.3 rule 1: an unconditional AND across input names). A
// callset with an empty WrittenSet never matches.
func matches(cs circuit.CallSpec, freshSet map[string]struct{}) bool {
	if len(cs.WrittenSet) == 0 {
		return false
	}

	for name := range cs.WrittenSet {
		if _, ok := freshSet[name]; !ok {
			return false
		}
	}

	return true
}

// disambiguate resolves a simultaneous match of two or more callsets by
// locating the CallsetGroup whose member names exactly equal the matched
// set.  Every matched callset must be named for a group lookup to even be
// attempted: an anonymous callset participating in a multi-match can never
// be disambiguated, since groups are keyed by name.
func disambiguate(def *circuit.Definition, matched []*circuit.CallSpec) ([]*circuit.CallSpec, error) {
	names := make([]string, 0, len(matched))

	for _, cs := range matched {
		if cs.Name == "" {
			return nil, circuit.NewInvariantViolation(circuit.ReasonUnnameableAmbiguity, def.ClassName,
				"multiple callsets matched simultaneously and at least one is unnamed")
		}

		names = append(names, cs.Name)
	}

	group := findGroup(def, groupKey(names))
	if group.IsEmpty() {
		return nil, circuit.NewInvariantViolation(circuit.ReasonAmbiguousCallsets, def.ClassName,
			"multiple callsets matched simultaneously and no callset group names exactly this set")
	}

	return orderByGroup(matched, group.Unwrap().Names), nil
}

// findGroup locates the CallsetGroup, if any, whose canonicalised name set
// equals target.
func findGroup(def *circuit.Definition, target string) util.Option[circuit.CallsetGroup] {
	for _, group := range def.CallsetGroups {
		if groupKey(group.Names) == target {
			return util.Some(group)
		}
	}

	return util.None[circuit.CallsetGroup]()
}

// groupKey canonicalises a name set the same way circuit.CallsetGroup does,
// so a matched-name set and a declared group's Names compare equal
// regardless of order.
func groupKey(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	key := ""
	for i, n := range sorted {
		if i > 0 {
			key += ","
		}

		key += n
	}

	return key
}

// orderByGroup returns matched reordered to follow group.Names's declared
// order, which is the order callbacks must run in when a group fires
// together (§4.3).
func orderByGroup(matched []*circuit.CallSpec, order []string) []*circuit.CallSpec {
	byName := make(map[string]*circuit.CallSpec, len(matched))
	for _, cs := range matched {
		byName[cs.Name] = cs
	}

	result := make([]*circuit.CallSpec, 0, len(order))

	for _, name := range order {
		if cs, ok := byName[name]; ok {
			result = append(result, cs)
		}
	}

	return result
}
