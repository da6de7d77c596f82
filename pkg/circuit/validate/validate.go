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

// Package validate implements the Validator pass (§4.2): it re-checks the
// component-local invariants (I1-I4, via circuit.ValidateComponent) and adds
// the definition-local invariants I5-I10 and the whole-circuit invariant I11
// (re-checked defensively, though Circuit.AddCallGroup already enforces it
// at registration time).
//
// I5 is output-spec consistency (always_valid/assume_invalid/assume_default/
// default_constructor implications); I6 is callset well-formedness (written
// and observed inputs are declared and disjoint, skippable callsets produce
// nothing, the generic callset never observes, the timer callset never
// requires a written input and is never skippable); I7 is callset-group
// membership; I8 forbids a callset from observing an Array input; I9 is the
// must-trigger specialisation (a must_trigger external may never be merely
// observed, checked across the whole circuit since it concerns wiring, not
// just a definition in isolation); I10 bounds a callset to at most one
// aggregate input.
//
// Validate never mutates the circuit; it is run on demand and automatically
// before lowering (subgraph discovery) and before serialization (§4.2).
package validate

import (
	"fmt"
	"sort"

	"github.com/dataflowc/circuitc/pkg/circuit"
	"github.com/dataflowc/circuitc/pkg/util/collection/set"
)

// Validate runs every invariant check against circ and returns the full list
// of violations found, in a deterministic order.  A nil/empty result means
// circ is well-formed.
func Validate(circ *circuit.Circuit) []error {
	var errs []error

	for _, name := range sortedDefNames(circ) {
		def, _ := circ.Definition(name)
		errs = append(errs, validateDefinition(name, def)...)
	}

	for _, comp := range circ.Components() {
		if err := circ.ValidateComponent(comp); err != nil {
			errs = append(errs, err)
		}
	}

	errs = append(errs, validateMustTrigger(circ)...)
	errs = append(errs, validateCallGroups(circ)...)

	return errs
}

func sortedDefNames(circ *circuit.Circuit) []string {
	names := make([]string, 0, len(circ.Definitions()))
	for name := range circ.Definitions() {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// validateDefinition checks I5-I10 against a single definition.
func validateDefinition(defName string, def *circuit.Definition) []error {
	var errs []error

	errs = append(errs, checkOutputSpecConsistency(defName, def)...)

	allCallsets := allCallsetsOf(def)

	for _, cs := range allCallsets {
		errs = append(errs, checkCallsetWellFormed(defName, def, cs)...)
		errs = append(errs, checkNoObservedArrayInput(defName, def, cs)...)
		errs = append(errs, checkAtMostOneArrayInput(defName, def, cs)...)
	}

	if def.GenericCallset != nil && len(def.GenericCallset.Observes) > 0 {
		errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
			"generic callset may not observe any input"))
	}

	if def.TimerCallset != nil {
		if len(def.TimerCallset.WrittenSet) > 0 {
			errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
				fmt.Sprintf("timer callset %q may not require a written set; it is not triggered by input freshness",
					def.TimerCallset.Name)))
		}

		if def.TimerCallset.Skippable() {
			errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
				"timer callset must not be skippable (it must carry a callback)"))
		}
	}

	errs = append(errs, checkCallsetGroups(defName, def)...)
	errs = append(errs, checkNoDeadInputs(defName, def, allCallsets)...)
	errs = append(errs, checkNoUnproducedOutputs(defName, def, allCallsets)...)

	return errs
}

// checkOutputSpecConsistency enforces I5: always_valid and assume_invalid
// are mutually exclusive; assume_default implies (always_valid or
// assume_invalid) and implies ephemeral; default_constructor implies
// assume_default.
func checkOutputSpecConsistency(defName string, def *circuit.Definition) []error {
	var errs []error

	for name, spec := range def.OutputSpecs {
		if spec.AlwaysValid && spec.AssumeInvalid {
			errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
				fmt.Sprintf("output %q is both always_valid and assume_invalid", name)))
		}

		if spec.AssumeDefault {
			if !spec.AlwaysValid && !spec.AssumeInvalid {
				errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
					fmt.Sprintf("output %q is assume_default but neither always_valid nor assume_invalid", name)))
			}

			if !spec.Ephemeral {
				errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
					fmt.Sprintf("output %q is assume_default but not ephemeral", name)))
			}
		}

		if spec.DefaultConstructor != "" && !spec.AssumeDefault {
			errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
				fmt.Sprintf("output %q names a default_constructor but is not assume_default", name)))
		}
	}

	return errs
}

// checkCallsetWellFormed enforces I6: a callset's WrittenSet/Observes must
// be a subset of the definition's declared inputs and disjoint from each
// other, its Outputs must only name declared outputs, and a skippable
// callset (no callback) may not declare any outputs.
func checkCallsetWellFormed(defName string, def *circuit.Definition, cs circuit.CallSpec) []error {
	var errs []error

	for name := range cs.WrittenSet {
		if _, ok := def.Inputs[name]; !ok {
			errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
				fmt.Sprintf("callset %q writes undeclared input %q", cs.Name, name)))
		}

		if _, ok := cs.Observes[name]; ok {
			errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
				fmt.Sprintf("callset %q both writes and observes input %q", cs.Name, name)))
		}
	}

	for name := range cs.Observes {
		if _, ok := def.Inputs[name]; !ok {
			errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
				fmt.Sprintf("callset %q observes undeclared input %q", cs.Name, name)))
		}
	}

	for name := range cs.Outputs {
		if _, ok := def.OutputSpecs[name]; !ok {
			errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
				fmt.Sprintf("callset %q produces undeclared output %q", cs.Name, name)))
		}
	}

	if cs.Skippable() && len(cs.Outputs) > 0 {
		errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
			fmt.Sprintf("skippable callset %q declares outputs but has no callback", cs.Name)))
	}

	return errs
}

// checkNoObservedArrayInput enforces I8: a callset may only observe Basic
// inputs; observing an Array input would require it to pick one of an
// unbounded number of batches without the freshness signal that would
// identify which.
func checkNoObservedArrayInput(defName string, def *circuit.Definition, cs circuit.CallSpec) []error {
	var errs []error

	for name := range cs.Observes {
		spec, ok := def.Inputs[name]
		if ok && spec.Kind == circuit.InputArray {
			errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
				fmt.Sprintf("callset %q observes array input %q", cs.Name, name)))
		}
	}

	return errs
}

// checkAtMostOneArrayInput enforces I10: a callset may reference at most one
// aggregate (Array) input, whether written or observed -- multi-aggregate
// callsets have no well-defined batch-alignment semantics.
func checkAtMostOneArrayInput(defName string, def *circuit.Definition, cs circuit.CallSpec) []error {
	count := 0

	for name := range cs.Inputs() {
		if spec, ok := def.Inputs[name]; ok && spec.Kind == circuit.InputArray {
			count++
		}
	}

	if count > 1 {
		return []error{circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
			fmt.Sprintf("callset %q references %d array inputs, at most one is permitted", cs.Name, count))}
	}

	return nil
}

// checkCallsetGroups enforces I7: every name in a CallsetGroup must refer to
// an actually-declared, named callset of this definition, and no two groups
// may share the same set of names (an ambiguous match could not choose
// between them).
func checkCallsetGroups(defName string, def *circuit.Definition) []error {
	var errs []error

	named := make(map[string]struct{}, len(def.Callsets))

	for _, cs := range def.Callsets {
		if cs.Name != "" {
			named[cs.Name] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(def.CallsetGroups))

	for _, group := range def.CallsetGroups {
		for _, name := range group.Names {
			if _, ok := named[name]; !ok {
				errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
					fmt.Sprintf("callset group references unknown callset %q", name)))
			}
		}

		key := groupKey(group.Names)
		if _, ok := seen[key]; ok {
			errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
				"two callset groups name the same set of callsets"))
		}

		seen[key] = struct{}{}
	}

	return errs
}

// groupKey canonicalises a callset-group's name list (order-independent) so
// two groups naming the same set, listed in different orders, compare equal.
func groupKey(names []string) string {
	sorted := set.NewSortedSet[string]()
	for _, name := range names {
		sorted.Insert(name)
	}

	return sorted.String()
}

// checkNoDeadInputs is a supplementary well-formedness check, not one of
// I1-I11: every input not marked AllowUnused must be referenced (written or
// observed) by at least one callset, or it can never cause or inform any
// call -- a definition author almost certainly meant to use it somewhere.
func checkNoDeadInputs(defName string, def *circuit.Definition, callsets []circuit.CallSpec) []error {
	var errs []error

	used := make(map[string]struct{})

	for _, cs := range callsets {
		for name := range cs.Inputs() {
			used[name] = struct{}{}
		}
	}

	for name, spec := range def.Inputs {
		if spec.AllowUnused {
			continue
		}

		if _, ok := used[name]; !ok {
			errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
				fmt.Sprintf("input %q is neither written nor observed by any callset", name)))
		}
	}

	return errs
}

// checkNoUnproducedOutputs is a supplementary well-formedness check, not one
// of I1-I11: every output not statically known (AlwaysValid or
// AssumeDefault) must be produced by at least one callset, or it could
// never receive a value.
func checkNoUnproducedOutputs(defName string, def *circuit.Definition, callsets []circuit.CallSpec) []error {
	var errs []error

	produced := make(map[string]struct{})

	for _, cs := range callsets {
		for name := range cs.Outputs {
			produced[name] = struct{}{}
		}
	}

	for name, spec := range def.OutputSpecs {
		if spec.AlwaysValid || spec.AssumeDefault {
			continue
		}

		if _, ok := produced[name]; !ok {
			errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, defName,
				fmt.Sprintf("output %q is never produced by any callset", name)))
		}
	}

	return errs
}

// validateMustTrigger enforces I9: every callset referencing a producer
// flagged MustTrigger externally must do so via its WrittenSet, never via
// Observes -- an observed must-trigger external would let its freshness
// go unconsumed, since observing never requires the callset to fire.
func validateMustTrigger(circ *circuit.Circuit) []error {
	var errs []error

	for _, comp := range circ.Components() {
		for inputName, wiring := range comp.Inputs {
			if !wiringHasMustTriggerSource(circ, wiring) {
				continue
			}

			for _, cs := range allCallsetsOf(comp.Definition) {
				if _, observed := cs.Observes[inputName]; observed {
					errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonDefinitionInvalid, comp.Name,
						fmt.Sprintf("callset %q of %q observes input %q, which is wired from a must-trigger external",
							cs.Name, comp.Name, inputName)))
				}
			}
		}
	}

	return errs
}

// wiringHasMustTriggerSource reports whether any source wired into an input
// slot is an external flagged MustTrigger.
func wiringHasMustTriggerSource(circ *circuit.Circuit, wiring circuit.InputWiring) bool {
	for _, ref := range wiring.Sources() {
		if !ref.IsExternal() {
			continue
		}

		if ext, ok := circ.External(ref.Output); ok && ext.MustTrigger {
			return true
		}
	}

	return false
}

// allCallsetsOf returns every callset declared by def, including the
// generic and timer callsets where present.
func allCallsetsOf(def *circuit.Definition) []circuit.CallSpec {
	all := make([]circuit.CallSpec, 0, len(def.Callsets)+2)
	for _, cs := range def.Callsets {
		all = append(all, cs)
	}

	if def.GenericCallset != nil {
		all = append(all, *def.GenericCallset)
	}

	if def.TimerCallset != nil {
		all = append(all, *def.TimerCallset)
	}

	return all
}

// validateCallGroups re-checks I11 defensively.  Circuit.AddCallGroup
// already enforces this at registration time, and both the textual front end
// and pkg/circuit/serial register call groups through it, so this only fires
// for a call group that reached the circuit some other way.
func validateCallGroups(circ *circuit.Circuit) []error {
	var errs []error

	for name, group := range circ.CallGroups() {
		s, ok := circ.CallStructs()[group.StructName]
		if !ok {
			errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonCircuitInvalid, name,
				fmt.Sprintf("call struct %q not registered", group.StructName)))

			continue
		}

		fieldTypes := make(map[string]string, len(s.Fields))
		for _, f := range s.Fields {
			fieldTypes[f.Name] = f.Type
		}

		for field, extName := range group.Bindings {
			ftype, ok := fieldTypes[field]
			if !ok {
				errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonCircuitInvalid, name,
					fmt.Sprintf("call struct %q has no field %q", group.StructName, field)))

				continue
			}

			ext, ok := circ.External(extName)
			if !ok {
				errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonCircuitInvalid, name,
					fmt.Sprintf("external %q referenced by field %q is not registered", extName, field)))

				continue
			}

			if ext.Type != ftype {
				errs = append(errs, circuit.NewInvariantViolation(circuit.ReasonCircuitInvalid, name,
					fmt.Sprintf("field %q has type %q but bound external %q has type %q",
						field, ftype, extName, ext.Type)))
			}
		}
	}

	return errs
}
