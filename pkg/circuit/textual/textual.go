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

// Package textual implements a small s-expression-based source format for
// describing a circuit by hand, used by the fmt and check subcommands. It
// is a thin, direct mapping onto the circuit builder: every top-level form
// is one builder call, in declaration order, so errors are reported against
// the same InvariantViolation machinery the builder itself uses.
//
// A circuit file looks like:
//
//	(circuit
//	  (external price f64)
//	  (external qty f64 :must-trigger)
//	  (struct Tick (price f64) (qty f64))
//	  (group tick Tick (price price) (qty qty))
//	  (definition Adder
//	    (input a basic)
//	    (input b basic)
//	    (output sum f64 :ephemeral)
//	    (callset main (written a b) (outputs sum) (callback add)))
//	  (component total Adder
//	    (input a (ext price))
//	    (input b (ext qty))))
package textual

import (
	"fmt"
	"strconv"

	"github.com/dataflowc/circuitc/pkg/circuit"
	"github.com/dataflowc/circuitc/pkg/util/source"
	"github.com/dataflowc/circuitc/pkg/util/source/sexp"
)

// Parse reads a circuit description from source text named filename (used
// only for diagnostics) and builds the Circuit it denotes.
func Parse(filename string, contents []byte) (*circuit.Circuit, error) {
	srcfile := source.NewSourceFile(filename, contents)

	term, _, synErr := sexp.Parse(srcfile)
	if synErr != nil {
		return nil, synErr
	}

	top := term.AsList()
	if top == nil || !top.MatchSymbols(1, "circuit") {
		return nil, fmt.Errorf("textual: expected (circuit ...) at top level")
	}

	circ := circuit.NewCircuit()

	for i := 1; i < top.Len(); i++ {
		form := top.Get(i).AsList()
		if form == nil || form.Len() == 0 {
			return nil, fmt.Errorf("textual: malformed top-level form at position %d", i)
		}

		head := symbolOf(form.Get(0))

		var err error

		switch head {
		case "external":
			err = parseExternal(circ, form)
		case "struct":
			err = parseStruct(circ, form)
		case "group":
			err = parseGroup(circ, form)
		case "definition":
			err = parseDefinition(circ, form)
		case "component":
			err = parseComponent(circ, form)
		default:
			err = fmt.Errorf("textual: unknown top-level form %q", head)
		}

		if err != nil {
			return nil, err
		}
	}

	return circ, nil
}

func symbolOf(e sexp.SExp) string {
	if s := e.AsSymbol(); s != nil {
		return s.Value
	}

	return ""
}

func hasFlag(form *sexp.List, flag string) bool {
	for i := 0; i < form.Len(); i++ {
		if symbolOf(form.Get(i)) == flag {
			return true
		}
	}

	return false
}

// (external NAME TYPE [:must-trigger])
func parseExternal(circ *circuit.Circuit, form *sexp.List) error {
	if form.Len() < 3 {
		return fmt.Errorf("textual: (external NAME TYPE) requires a name and type")
	}

	name := symbolOf(form.Get(1))
	typ := symbolOf(form.Get(2))
	mustTrigger := hasFlag(form, ":must-trigger")

	_, err := circ.GetExternal(name, typ, mustTrigger)

	return err
}

// (struct NAME (FIELD TYPE)...)
func parseStruct(circ *circuit.Circuit, form *sexp.List) error {
	if form.Len() < 2 {
		return fmt.Errorf("textual: (struct NAME ...) requires a name")
	}

	name := symbolOf(form.Get(1))

	var fields []circuit.CallStructField

	for i := 2; i < form.Len(); i++ {
		field := form.Get(i).AsList()
		if field == nil || field.Len() != 2 {
			return fmt.Errorf("textual: struct %q field %d must be (NAME TYPE)", name, i)
		}

		fields = append(fields, circuit.CallStructField{
			Name: symbolOf(field.Get(0)),
			Type: symbolOf(field.Get(1)),
		})
	}

	return circ.AddCallStruct(name, &circuit.CallStruct{Name: name, Fields: fields})
}

// (group NAME STRUCT (FIELD EXTERNAL)...)
func parseGroup(circ *circuit.Circuit, form *sexp.List) error {
	if form.Len() < 3 {
		return fmt.Errorf("textual: (group NAME STRUCT ...) requires a name and struct")
	}

	name := symbolOf(form.Get(1))
	structName := symbolOf(form.Get(2))
	bindings := make(map[string]string)

	for i := 3; i < form.Len(); i++ {
		pair := form.Get(i).AsList()
		if pair == nil || pair.Len() != 2 {
			return fmt.Errorf("textual: group %q binding %d must be (FIELD EXTERNAL)", name, i)
		}

		bindings[symbolOf(pair.Get(0))] = symbolOf(pair.Get(1))
	}

	return circ.AddCallGroup(name, &circuit.CallGroup{Name: name, StructName: structName, Bindings: bindings})
}

// (definition NAME (input NAME KIND [:always-valid] [:optional] [:allow-unused] [FIELD...])...
//
//	(output NAME TYPE [:ephemeral] [:always-valid] [:assume-invalid] [:assume-default])...
//	(callset NAME (written NAME...) (observes NAME...) (outputs NAME...) (callback NAME)))
func parseDefinition(circ *circuit.Circuit, form *sexp.List) error {
	if form.Len() < 2 {
		return fmt.Errorf("textual: (definition NAME ...) requires a name")
	}

	name := symbolOf(form.Get(1))

	def := &circuit.Definition{
		ClassName:   name,
		Inputs:      make(map[string]circuit.InputSpec),
		OutputSpecs: make(map[string]circuit.OutputSpec),
		Callsets:    make(map[string]circuit.CallSpec),
	}

	for i := 2; i < form.Len(); i++ {
		elem := form.Get(i).AsList()
		if elem == nil || elem.Len() == 0 {
			return fmt.Errorf("textual: definition %q has a malformed member at position %d", name, i)
		}

		switch symbolOf(elem.Get(0)) {
		case "input":
			if err := parseInput(def, elem); err != nil {
				return err
			}
		case "output":
			if err := parseOutput(def, elem); err != nil {
				return err
			}
		case "callset":
			cs, err := parseCallset(elem)
			if err != nil {
				return err
			}

			def.Callsets[cs.Name] = cs
		default:
			return fmt.Errorf("textual: definition %q has unknown member %q", name, symbolOf(elem.Get(0)))
		}
	}

	return circ.AddDefinition(name, def)
}

func parseInput(def *circuit.Definition, elem *sexp.List) error {
	if elem.Len() < 3 {
		return fmt.Errorf("textual: (input NAME KIND) requires a name and kind")
	}

	name := symbolOf(elem.Get(1))
	kind := symbolOf(elem.Get(2))
	alwaysValid := hasFlag(elem, ":always-valid")
	optional := hasFlag(elem, ":optional")
	allowUnused := hasFlag(elem, ":allow-unused")

	switch kind {
	case "basic":
		def.Inputs[name] = circuit.NewBasicInput(alwaysValid, optional, allowUnused)
	case "array":
		var fields []string

		for i := 3; i < elem.Len(); i++ {
			if s := elem.Get(i).AsSymbol(); s != nil && s.Value[0] != ':' {
				fields = append(fields, s.Value)
			}
		}

		def.Inputs[name] = circuit.NewArrayInput(fields, alwaysValid, optional, allowUnused)
	default:
		return fmt.Errorf("textual: input %q has unknown kind %q", name, kind)
	}

	return nil
}

func parseOutput(def *circuit.Definition, elem *sexp.List) error {
	if elem.Len() < 3 {
		return fmt.Errorf("textual: (output NAME TYPE) requires a name and type")
	}

	name := symbolOf(elem.Get(1))
	def.OutputSpecs[name] = circuit.OutputSpec{
		TypePath:      symbolOf(elem.Get(2)),
		Ephemeral:     hasFlag(elem, ":ephemeral"),
		AlwaysValid:   hasFlag(elem, ":always-valid"),
		AssumeInvalid: hasFlag(elem, ":assume-invalid"),
		AssumeDefault: hasFlag(elem, ":assume-default"),
	}

	return nil
}

func parseCallset(elem *sexp.List) (circuit.CallSpec, error) {
	if elem.Len() < 2 {
		return circuit.CallSpec{}, fmt.Errorf("textual: (callset NAME ...) requires a name")
	}

	cs := circuit.CallSpec{
		Name:       symbolOf(elem.Get(1)),
		WrittenSet: make(map[string]struct{}),
		Observes:   make(map[string]struct{}),
		Outputs:    make(map[string]struct{}),
	}

	for i := 2; i < elem.Len(); i++ {
		sub := elem.Get(i).AsList()
		if sub == nil || sub.Len() == 0 {
			continue
		}

		switch symbolOf(sub.Get(0)) {
		case "written":
			addSymbols(cs.WrittenSet, sub)
		case "observes":
			addSymbols(cs.Observes, sub)
		case "outputs":
			addSymbols(cs.Outputs, sub)
		case "callback":
			if sub.Len() > 1 {
				cs.Callback = symbolOf(sub.Get(1))
			}
		case "cleanup":
			if sub.Len() > 1 {
				cs.Cleanup = symbolOf(sub.Get(1))
			}
		}
	}

	return cs, nil
}

func addSymbols(set map[string]struct{}, form *sexp.List) {
	for i := 1; i < form.Len(); i++ {
		set[symbolOf(form.Get(i))] = struct{}{}
	}
}

// (component NAME DEFINITION (input NAME WIRING)...)
//
// WIRING is either (ext NAME) or (NAME OUTPUT).
func parseComponent(circ *circuit.Circuit, form *sexp.List) error {
	if form.Len() < 3 {
		return fmt.Errorf("textual: (component NAME DEFINITION ...) requires a name and definition")
	}

	name := symbolOf(form.Get(1))
	defName := symbolOf(form.Get(2))
	inputs := make(map[string]circuit.InputWiring)

	for i := 3; i < form.Len(); i++ {
		elem := form.Get(i).AsList()
		if elem == nil || elem.Len() < 3 || symbolOf(elem.Get(0)) != "input" {
			return fmt.Errorf("textual: component %q has a malformed input at position %d", name, i)
		}

		inputName := symbolOf(elem.Get(1))

		wiring, err := parseWiring(elem.Get(2))
		if err != nil {
			return fmt.Errorf("textual: component %q input %q: %w", name, inputName, err)
		}

		inputs[inputName] = wiring
	}

	_, err := circ.MakeComponent(defName, name, inputs, nil, nil, nil, false)

	return err
}

func parseWiring(e sexp.SExp) (circuit.InputWiring, error) {
	list := e.AsList()
	if list == nil || list.Len() != 2 {
		return circuit.InputWiring{}, fmt.Errorf("wiring must be (ext NAME) or (COMPONENT OUTPUT)")
	}

	first := symbolOf(list.Get(0))
	second := symbolOf(list.Get(1))

	if first == "ext" {
		return circuit.NewSingleWiring(circuit.NewExternalOutput(second)), nil
	}

	return circuit.NewSingleWiring(circuit.NewGraphOutput(first, second)), nil
}

// parseNumber parses a numeric literal symbol. The grammar above has no form
// that carries a number (component params are not part of it), so nothing
// in this package calls it; integer literals in flag position are just
// symbols.
func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
