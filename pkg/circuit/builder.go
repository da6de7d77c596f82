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

// MakeComponent builds a component of the named definition, validates it
// (ValidateComponent, i.e. I1-I4), and inserts it into the circuit.
//
// Unless force is true, if an existing component shares this component's
// structural Index(), the insertion coalesces into that existing component:
// its OutputOptions are merged by per-field OR (MergeOutputOptions) and the
// existing component is returned, unchanged in every other respect (§3,
// §4.1).  If force is true, the new component is always inserted under its
// own name, even when a structural duplicate already exists.
//
// name must be unique within the circuit (unless this call coalesces into an
// existing component of that same structural index under a different
// name -- coalescing never renames anything).
func (c *Circuit) MakeComponent(
	defName, name string,
	inputs map[string]InputWiring,
	options map[string]OutputOptions,
	generics map[string]string,
	params map[string]any,
	force bool,
) (*Component, error) {
	def, ok := c.definitions[defName]
	if !ok {
		return nil, NewInvariantViolation(ReasonComponentInvalid, name,
			fmt.Sprintf("unknown definition %q", defName))
	}

	if options == nil {
		options = make(map[string]OutputOptions)
	}

	comp := &Component{
		Name:          name,
		Definition:    def,
		Inputs:        inputs,
		OutputOptions: options,
		ClassGenerics: generics,
		Params:        params,
	}

	if err := c.ValidateComponent(comp); err != nil {
		return nil, err
	}

	idx := comp.Index()

	if !force {
		if existingName, ok := c.byStructIndex[idx]; ok {
			existing, _ := c.Component(existingName)
			merged := make(map[string]OutputOptions, len(existing.OutputOptions))

			for k, v := range existing.OutputOptions {
				merged[k] = v
			}

			for k, v := range comp.OutputOptions {
				merged[k] = MergeOutputOptions(merged[k], v)
			}

			existing.OutputOptions = merged

			return existing, nil
		}
	}

	if _, ok := c.componentIndex[name]; ok {
		return nil, NewInvariantViolation(ReasonDuplicateInsert, name,
			"a component with this name already exists")
	}

	c.componentIndex[name] = len(c.components)
	c.components = append(c.components, comp)
	c.byStructIndex[idx] = name

	return comp, nil
}

// RenameComponent renames an existing component.  Fails (RenameViolation)
// if: the new name is already in use; or any other component in the circuit
// wires an input from the component being renamed, since those wires are
// addressed by name (§3 Ownership) and would otherwise dangle
// (supplemented from the Python original's circuit.py, see SPEC_FULL.md
// §10.6 -- the spec.md text alone only forbids renaming a depended-upon
// component, but is silent on which direction "depended upon" runs; the
// original rejects a rename whenever *any* other component still
// references the old name, which is the interpretation implemented here).
func (c *Circuit) RenameComponent(oldName, newName string) error {
	pos, ok := c.componentIndex[oldName]
	if !ok {
		return NewInvariantViolation(ReasonRenameViolation, oldName, "no such component")
	}

	if oldName == newName {
		return nil
	}

	if _, ok := c.componentIndex[newName]; ok {
		return NewInvariantViolation(ReasonRenameViolation, newName, "name already in use")
	}

	for _, other := range c.components {
		if other.Name == oldName {
			continue
		}

		for _, w := range other.Inputs {
			for _, ref := range w.Sources() {
				if !ref.External && ref.Component == oldName {
					return NewInvariantViolation(ReasonRenameViolation, oldName,
						fmt.Sprintf("component %q depends on this component", other.Name))
				}
			}
		}
	}

	comp := c.components[pos]
	comp.Name = newName
	delete(c.componentIndex, oldName)
	c.componentIndex[newName] = pos

	// The struct-index table may point at the old name; repair it so future
	// coalescing lookups still resolve to the renamed component.
	for idx, name := range c.byStructIndex {
		if name == oldName {
			c.byStructIndex[idx] = newName
		}
	}

	return nil
}

// ValidateComponent checks the per-component invariants I1-I4 against the
// given component's own definition.  This is run synchronously
// by MakeComponent, and is re-run by pkg/circuit/validate as part of a
// whole-graph Validate pass; it is exported precisely so that package can
// reuse it without duplicating the logic (avoiding an import cycle, since
// pkg/circuit/validate imports pkg/circuit and not vice versa).
func (c *Circuit) ValidateComponent(comp *Component) error {
	def := comp.Definition

	// I1: every non-optional input must be wired.
	for name, spec := range def.Inputs {
		if _, wired := comp.Inputs[name]; !wired && !spec.Optional {
			return NewInvariantViolation(ReasonComponentInvalid, comp.Name,
				fmt.Sprintf("required input %q is not wired", name))
		}
	}

	// Inputs wired but not declared by the definition are themselves an
	// error, since a component's wiring must directly correspond to its
	// definition's schema.
	for name, wiring := range comp.Inputs {
		spec, ok := def.Inputs[name]
		if !ok {
			return NewInvariantViolation(ReasonComponentInvalid, comp.Name,
				fmt.Sprintf("wires undeclared input %q", name))
		}

		if wiring.IsArray() != (spec.Kind == InputArray) {
			return NewInvariantViolation(ReasonComponentInvalid, comp.Name,
				fmt.Sprintf("input %q wiring kind does not match its declared kind", name))
		}
	}

	// Every graph-output source must name a component already in the
	// circuit, which keeps the wiring graph acyclic (see ValueRef).
	for name, wiring := range comp.Inputs {
		for _, ref := range wiring.Sources() {
			if _, ok := c.Component(ref.Component); !ref.IsExternal() && !ok {
				return NewInvariantViolation(ReasonComponentInvalid, comp.Name,
					fmt.Sprintf("input %q is wired from unknown component %q", name, ref.Component))
			}
		}
	}

	// I3: no output reference appears twice within a single input's own
	// wiring (relevant for Array batches).
	if err := c.checkNoDuplicateSources(comp); err != nil {
		return err
	}

	// I2: every always-valid input must resolve (transitively) to an
	// always-valid producer.
	if err := c.checkAlwaysValid(comp); err != nil {
		return err
	}

	// I4: force_stored is incompatible with assume_invalid.
	for name, opts := range comp.OutputOptions {
		spec, ok := def.OutputSpecs[name]
		if !ok {
			return NewInvariantViolation(ReasonComponentInvalid, comp.Name,
				fmt.Sprintf("output options given for undeclared output %q", name))
		}

		if opts.ForceStored && spec.AssumeInvalid {
			return NewInvariantViolation(ReasonComponentInvalid, comp.Name,
				fmt.Sprintf("output %q is force_stored but spec marks assume_invalid", name))
		}
	}

	return nil
}

// checkNoDuplicateSources enforces I3: within a single input's own wiring,
// no upstream output reference may appear twice (e.g. two batch entries of
// the same Array input sourced from the same producer). Distinct inputs of
// the same component may legitimately share a source.
func (c *Circuit) checkNoDuplicateSources(comp *Component) error {
	for name, wiring := range comp.Inputs {
		seen := make(map[string]bool)

		for _, ref := range wiring.Sources() {
			k := ref.key()
			if seen[k] {
				return NewInvariantViolation(ReasonComponentInvalid, comp.Name,
					fmt.Sprintf("output %s wired more than once into input %q", ref, name))
			}

			seen[k] = true
		}
	}

	return nil
}

// checkAlwaysValid enforces I2 for one component: every wired input whose
// InputSpec says AlwaysValid must resolve, for every one of its wired
// sources, to a producer that is itself always-valid.
func (c *Circuit) checkAlwaysValid(comp *Component) error {
	for name, spec := range comp.Definition.Inputs {
		if !spec.AlwaysValid {
			continue
		}

		wiring, ok := comp.Inputs[name]
		if !ok {
			continue // optional and unwired; nothing to check
		}

		for _, ref := range wiring.Sources() {
			if !c.refIsAlwaysValid(ref) {
				return NewInvariantViolation(ReasonComponentInvalid, comp.Name,
					fmt.Sprintf("always-valid input %q is fed by a non-always-valid producer %s", name, ref))
			}
		}
	}

	return nil
}

// refIsAlwaysValid determines whether a ValueRef's producer is statically
// always-valid: externals are (conservatively) always-valid, and a graph
// output is always-valid iff its OutputSpec says so.
func (c *Circuit) refIsAlwaysValid(ref ValueRef) bool {
	if ref.External {
		return true
	}

	producer, ok := c.Component(ref.Component)
	if !ok {
		return false
	}

	spec, ok := producer.Definition.OutputSpecs[ref.Output]

	return ok && spec.AlwaysValid
}
