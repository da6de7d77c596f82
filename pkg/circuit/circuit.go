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

// Package circuit implements the in-memory dataflow-circuit model: immutable
// component Definitions, mutable Component instances, and the Circuit
// builder which wires them together (§3-§4.1 of the specification).
package circuit

import "fmt"

// ExternalInput is a named value entering the circuit from outside (§3).
type ExternalInput struct {
	// Name uniquely identifies this external within its circuit.
	Name string
	// Type is an opaque, emitter-facing type identifier.
	Type string
	// MustTrigger marks this external as one whose freshness must be
	// consumed via a callset's written set, never purely observed (I9).
	MustTrigger bool
	// Index is the monotone, insertion-order position of this external.
	Index uint
}

// CallStructField describes one field of a CallStruct.
type CallStructField struct {
	Name string
	Type string
}

// CallStruct is a typed record shape for a call group's payload (§3).
type CallStruct struct {
	Name   string
	Fields []CallStructField
}

// CallGroup is a typed entry point: a named binding from call-struct fields
// to external inputs (§3).
type CallGroup struct {
	Name       string
	StructName string
	// Bindings maps a CallStruct field name to the external input name it
	// supplies.
	Bindings map[string]string
}

// Circuit owns all definitions, external inputs, components, call structs
// and call groups making up one dataflow graph (§3).  A Circuit is
// constructed incrementally through its Builder-style methods; all mutating
// operations are fallible and signal failure via *InvariantViolation,
// leaving the circuit in its last-good state otherwise (§5).
type Circuit struct {
	definitions    map[string]*Definition
	externals      map[string]*ExternalInput
	externalOrder  []string
	components     []*Component
	componentIndex map[string]int // name -> position in components
	byStructIndex  map[ComponentIndex]string
	callStructs    map[string]*CallStruct
	callGroups     map[string]*CallGroup
}

// NewCircuit constructs an empty circuit.
func NewCircuit() *Circuit {
	return &Circuit{
		definitions:    make(map[string]*Definition),
		externals:      make(map[string]*ExternalInput),
		componentIndex: make(map[string]int),
		byStructIndex:  make(map[ComponentIndex]string),
		callStructs:    make(map[string]*CallStruct),
		callGroups:     make(map[string]*CallGroup),
	}
}

// Definitions returns the read-only set of definitions registered with this
// circuit, keyed by class name (§6).
func (c *Circuit) Definitions() map[string]*Definition {
	return c.definitions
}

// Definition looks up a definition by name.
func (c *Circuit) Definition(name string) (*Definition, bool) {
	d, ok := c.definitions[name]
	return d, ok
}

// ExternalInputs returns the externals of this circuit in insertion order
// (§6).
func (c *Circuit) ExternalInputs() []*ExternalInput {
	result := make([]*ExternalInput, len(c.externalOrder))
	for i, name := range c.externalOrder {
		result[i] = c.externals[name]
	}

	return result
}

// External looks up an external input by name.
func (c *Circuit) External(name string) (*ExternalInput, bool) {
	e, ok := c.externals[name]
	return e, ok
}

// Components returns the components of this circuit in insertion order
// (§6).
func (c *Circuit) Components() []*Component {
	return c.components
}

// Component looks up a component by name.
func (c *Circuit) Component(name string) (*Component, bool) {
	i, ok := c.componentIndex[name]
	if !ok {
		return nil, false
	}

	return c.components[i], true
}

// ComponentPosition returns the insertion-order position of a named
// component, used by subgraph ordering checks (P6).
func (c *Circuit) ComponentPosition(name string) (int, bool) {
	i, ok := c.componentIndex[name]
	return i, ok
}

// CallStructs returns the call structs registered with this circuit, keyed
// by name (§6).
func (c *Circuit) CallStructs() map[string]*CallStruct {
	return c.callStructs
}

// CallGroups returns the call groups registered with this circuit, keyed by
// name (§6).
func (c *Circuit) CallGroups() map[string]*CallGroup {
	return c.callGroups
}

// AddDefinition registers a definition under the given name.  Idempotent if
// an identical definition is already registered under that name; fails
// otherwise (§4.1).
func (c *Circuit) AddDefinition(name string, def *Definition) error {
	if existing, ok := c.definitions[name]; ok {
		if existing.Equal(def) {
			return nil
		}

		return NewInvariantViolation(ReasonDuplicateInsert, name,
			"a different definition is already registered under this name")
	}

	c.definitions[name] = def

	return nil
}

// GetExternal returns the external input registered under name, creating it
// (and assigning it the next monotone index) if absent.  Idempotent per
// (name, type, mustTrigger); fails if the same name is requested with
// conflicting type or mustTrigger (§4.1).
func (c *Circuit) GetExternal(name, typ string, mustTrigger bool) (*ExternalInput, error) {
	if existing, ok := c.externals[name]; ok {
		if existing.Type != typ || existing.MustTrigger != mustTrigger {
			return nil, NewInvariantViolation(ReasonDuplicateInsert, name,
				"external already registered with a different type or must-trigger flag")
		}

		return existing, nil
	}

	ext := &ExternalInput{
		Name:        name,
		Type:        typ,
		MustTrigger: mustTrigger,
		Index:       uint(len(c.externalOrder)),
	}
	c.externals[name] = ext
	c.externalOrder = append(c.externalOrder, name)

	return ext, nil
}

// AddCallStruct registers a call-struct shape under the given name.
func (c *Circuit) AddCallStruct(name string, s *CallStruct) error {
	if _, ok := c.callStructs[name]; ok {
		return NewInvariantViolation(ReasonDuplicateInsert, name, "call struct already registered")
	}

	c.callStructs[name] = s

	return nil
}

// AddCallGroup registers a call group, validating its field-to-external type
// compatibility immediately (I11).
func (c *Circuit) AddCallGroup(name string, g *CallGroup) error {
	if _, ok := c.callGroups[name]; ok {
		return NewInvariantViolation(ReasonCircuitInvalid, name, "call group already registered")
	}

	s, ok := c.callStructs[g.StructName]
	if !ok {
		return NewInvariantViolation(ReasonCircuitInvalid, name,
			fmt.Sprintf("call struct %q not registered", g.StructName))
	}

	fieldTypes := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		fieldTypes[f.Name] = f.Type
	}

	for field, extName := range g.Bindings {
		ftype, ok := fieldTypes[field]
		if !ok {
			return NewInvariantViolation(ReasonCircuitInvalid, name,
				fmt.Sprintf("call struct %q has no field %q", g.StructName, field))
		}

		ext, ok := c.externals[extName]
		if !ok {
			return NewInvariantViolation(ReasonCircuitInvalid, name,
				fmt.Sprintf("external %q referenced by field %q is not registered", extName, field))
		}

		if ext.Type != ftype {
			return NewInvariantViolation(ReasonCircuitInvalid, name,
				fmt.Sprintf("field %q has type %q but bound external %q has type %q",
					field, ftype, extName, ext.Type))
		}
	}

	c.callGroups[name] = g

	return nil
}

// Outputs returns the external outputs written by a call group: one
// ExternalOutput ValueRef per bound external (the F₀ of §4.4).
func (g *CallGroup) Outputs() []ValueRef {
	refs := make([]ValueRef, 0, len(g.Bindings))
	for _, ext := range g.Bindings {
		refs = append(refs, NewExternalOutput(ext))
	}

	return refs
}
