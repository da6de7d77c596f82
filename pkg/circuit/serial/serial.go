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

// Package serial implements the self-describing JSON record-tree
// persistence format described in §6: a Circuit serializes to externals,
// components, definitions, call_groups and call_structs, and deserializes
// back to an equivalent Circuit (the round-trip law, P4).
//
// Marshalling uses segmentio/encoding/json rather than the standard
// library's encoding/json: it is a drop-in, faster encoder/decoder that the
// rest of this dependency family already pulls in transitively, and this
// package is the natural place in the circuit to put that throughput to
// work, since a large circuit's record tree can run to tens of thousands of
// components.
package serial

import (
	"fmt"
	"sort"

	"github.com/segmentio/encoding/json"

	"github.com/dataflowc/circuitc/pkg/circuit"
)

// valueRefDTO is the wire form of a circuit.ValueRef.
type valueRefDTO struct {
	External bool   `json:"external"`
	Component string `json:"component,omitempty"`
	Output    string `json:"output"`
}

func toValueRefDTO(r circuit.ValueRef) valueRefDTO {
	return valueRefDTO{External: r.External, Component: r.Component, Output: r.Output}
}

func (d valueRefDTO) toValueRef() circuit.ValueRef {
	if d.External {
		return circuit.NewExternalOutput(d.Output)
	}

	return circuit.NewGraphOutput(d.Component, d.Output)
}

// inputWiringDTO is the wire form of a circuit.InputWiring, discriminated
// by input_type as "single" or "array" (§6).
type inputWiringDTO struct {
	InputType string                   `json:"input_type"`
	Single    *valueRefDTO             `json:"single,omitempty"`
	Array     []map[string]valueRefDTO `json:"array,omitempty"`
}

func toInputWiringDTO(w circuit.InputWiring) inputWiringDTO {
	if w.IsArray() {
		batches := make([]map[string]valueRefDTO, len(w.Array))

		for i, batch := range w.Array {
			m := make(map[string]valueRefDTO, len(batch))
			for f, ref := range batch {
				m[f] = toValueRefDTO(ref)
			}

			batches[i] = m
		}

		return inputWiringDTO{InputType: "array", Array: batches}
	}

	single := toValueRefDTO(*w.Single)

	return inputWiringDTO{InputType: "single", Single: &single}
}

func (d inputWiringDTO) toInputWiring() (circuit.InputWiring, error) {
	switch d.InputType {
	case "single":
		if d.Single == nil {
			return circuit.InputWiring{}, fmt.Errorf("serial: single wiring missing its value")
		}

		return circuit.NewSingleWiring(d.Single.toValueRef()), nil

	case "array":
		batches := make([]map[string]circuit.ValueRef, len(d.Array))

		for i, batch := range d.Array {
			m := make(map[string]circuit.ValueRef, len(batch))
			for f, ref := range batch {
				m[f] = ref.toValueRef()
			}

			batches[i] = m
		}

		return circuit.NewArrayWiring(batches), nil

	default:
		return circuit.InputWiring{}, fmt.Errorf("serial: unknown input_type %q", d.InputType)
	}
}

type outputOptionsDTO struct {
	ForceStored      bool `json:"force_stored,omitempty"`
	BlockPropagation bool `json:"block_propagation,omitempty"`
}

func toOutputOptionsDTO(o circuit.OutputOptions) outputOptionsDTO {
	return outputOptionsDTO{ForceStored: o.ForceStored, BlockPropagation: o.BlockPropagation}
}

func (d outputOptionsDTO) toOutputOptions() circuit.OutputOptions {
	return circuit.OutputOptions{ForceStored: d.ForceStored, BlockPropagation: d.BlockPropagation}
}

type componentDTO struct {
	Name          string                      `json:"name"`
	Definition    string                       `json:"definition"`
	Inputs        map[string]inputWiringDTO    `json:"inputs"`
	OutputOptions map[string]outputOptionsDTO  `json:"output_options,omitempty"`
	ClassGenerics map[string]string            `json:"class_generics,omitempty"`
	Params        map[string]any               `json:"params,omitempty"`
}

type inputSpecDTO struct {
	Kind        string          `json:"kind"`
	Fields      []string        `json:"fields,omitempty"`
	AlwaysValid bool            `json:"always_valid,omitempty"`
	Optional    bool            `json:"optional,omitempty"`
	AllowUnused bool            `json:"allow_unused,omitempty"`
}

type outputSpecDTO struct {
	TypePath           string `json:"type_path"`
	Ephemeral          bool   `json:"ephemeral,omitempty"`
	AlwaysValid        bool   `json:"always_valid,omitempty"`
	AssumeInvalid      bool   `json:"assume_invalid,omitempty"`
	AssumeDefault      bool   `json:"assume_default,omitempty"`
	DefaultConstructor string `json:"default_constructor,omitempty"`
}

type callSpecDTO struct {
	Name             string         `json:"name,omitempty"`
	WrittenSet       []string       `json:"written_set,omitempty"`
	Observes         []string       `json:"observes,omitempty"`
	Outputs          []string       `json:"outputs,omitempty"`
	Callback         string         `json:"callback,omitempty"`
	Cleanup          string         `json:"cleanup,omitempty"`
	InputStructPath  string         `json:"input_struct_path,omitempty"`
	OutputStructPath string         `json:"output_struct_path,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

type callsetGroupDTO struct {
	Names []string `json:"names"`
}

type definitionDTO struct {
	ClassName                  string                   `json:"class_name"`
	Header                     string                   `json:"header,omitempty"`
	Module                     string                   `json:"module,omitempty"`
	Inputs                     map[string]inputSpecDTO  `json:"inputs"`
	OutputSpecs                map[string]outputSpecDTO `json:"output_specs"`
	Callsets                   map[string]callSpecDTO   `json:"callsets,omitempty"`
	GenericCallset             *callSpecDTO             `json:"generic_callset,omitempty"`
	TimerCallset               *callSpecDTO             `json:"timer_callset,omitempty"`
	CallsetGroups              []callsetGroupDTO        `json:"callset_groups,omitempty"`
	GenericsOrder              map[string]uint          `json:"generics_order,omitempty"`
	ClassGenerics              map[string]uint          `json:"class_generics,omitempty"`
	InitSpec                   string                   `json:"init_spec,omitempty"`
	DefaultOutput              string                   `json:"default_output,omitempty"`
	DifferentiableOperatorName string                   `json:"differentiable_operator_name,omitempty"`
	Metadata                   map[string]any           `json:"metadata,omitempty"`
}

type externalDTO struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	MustTrigger bool   `json:"must_trigger,omitempty"`
}

type callStructFieldDTO struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type callStructDTO struct {
	Name   string               `json:"name"`
	Fields []callStructFieldDTO `json:"fields"`
}

type callGroupDTO struct {
	Name       string            `json:"name"`
	StructName string            `json:"struct_name"`
	Bindings   map[string]string `json:"bindings"`
}

// document is the top-level record tree (§6).
type document struct {
	Externals   []externalDTO            `json:"externals"`
	Definitions map[string]definitionDTO `json:"definitions"`
	Components  []componentDTO           `json:"components"`
	CallStructs map[string]callStructDTO `json:"call_structs,omitempty"`
	CallGroups  map[string]callGroupDTO  `json:"call_groups,omitempty"`
}

// Marshal serializes circ to its JSON record-tree form.
func Marshal(circ *circuit.Circuit) ([]byte, error) {
	doc := document{
		Definitions: make(map[string]definitionDTO, len(circ.Definitions())),
		CallStructs: make(map[string]callStructDTO, len(circ.CallStructs())),
		CallGroups:  make(map[string]callGroupDTO, len(circ.CallGroups())),
	}

	for _, ext := range circ.ExternalInputs() {
		doc.Externals = append(doc.Externals, externalDTO{
			Name: ext.Name, Type: ext.Type, MustTrigger: ext.MustTrigger,
		})
	}

	for name, def := range circ.Definitions() {
		doc.Definitions[name] = toDefinitionDTO(def)
	}

	for _, comp := range circ.Components() {
		doc.Components = append(doc.Components, toComponentDTO(comp))
	}

	for name, s := range circ.CallStructs() {
		fields := make([]callStructFieldDTO, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = callStructFieldDTO{Name: f.Name, Type: f.Type}
		}

		doc.CallStructs[name] = callStructDTO{Name: s.Name, Fields: fields}
	}

	for name, g := range circ.CallGroups() {
		doc.CallGroups[name] = callGroupDTO{Name: g.Name, StructName: g.StructName, Bindings: g.Bindings}
	}

	return json.Marshal(doc)
}

// Unmarshal reconstructs a Circuit from its JSON record-tree form, replaying
// the same builder operations Marshal's source circuit was itself built
// from. Components are inserted with force=true so that deserialization
// always reproduces the exact component set that was serialized, rather
// than re-running structural-duplicate coalescing a second time.
func Unmarshal(data []byte) (*circuit.Circuit, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	circ := circuit.NewCircuit()

	for _, name := range sortedDefinitionNames(doc.Definitions) {
		def := fromDefinitionDTO(doc.Definitions[name])
		if err := circ.AddDefinition(name, def); err != nil {
			return nil, err
		}
	}

	for _, ext := range doc.Externals {
		if _, err := circ.GetExternal(ext.Name, ext.Type, ext.MustTrigger); err != nil {
			return nil, err
		}
	}

	for name, s := range doc.CallStructs {
		fields := make([]circuit.CallStructField, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = circuit.CallStructField{Name: f.Name, Type: f.Type}
		}

		if err := circ.AddCallStruct(name, &circuit.CallStruct{Name: s.Name, Fields: fields}); err != nil {
			return nil, err
		}
	}

	for name, g := range doc.CallGroups {
		if err := circ.AddCallGroup(name, &circuit.CallGroup{
			Name: g.Name, StructName: g.StructName, Bindings: g.Bindings,
		}); err != nil {
			return nil, err
		}
	}

	for _, cdto := range doc.Components {
		inputs := make(map[string]circuit.InputWiring, len(cdto.Inputs))

		for name, wdto := range cdto.Inputs {
			w, err := wdto.toInputWiring()
			if err != nil {
				return nil, err
			}

			inputs[name] = w
		}

		options := make(map[string]circuit.OutputOptions, len(cdto.OutputOptions))
		for name, odto := range cdto.OutputOptions {
			options[name] = odto.toOutputOptions()
		}

		if _, err := circ.MakeComponent(
			cdto.Definition, cdto.Name, inputs, options, cdto.ClassGenerics, cdto.Params, true,
		); err != nil {
			return nil, err
		}
	}

	return circ, nil
}

func sortedDefinitionNames(m map[string]definitionDTO) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

func toComponentDTO(comp *circuit.Component) componentDTO {
	inputs := make(map[string]inputWiringDTO, len(comp.Inputs))
	for name, w := range comp.Inputs {
		inputs[name] = toInputWiringDTO(w)
	}

	options := make(map[string]outputOptionsDTO, len(comp.OutputOptions))
	for name, o := range comp.OutputOptions {
		options[name] = toOutputOptionsDTO(o)
	}

	return componentDTO{
		Name:          comp.Name,
		Definition:    comp.Definition.ClassName,
		Inputs:        inputs,
		OutputOptions: options,
		ClassGenerics: comp.ClassGenerics,
		Params:        comp.Params,
	}
}

func toDefinitionDTO(def *circuit.Definition) definitionDTO {
	inputs := make(map[string]inputSpecDTO, len(def.Inputs))

	for name, spec := range def.Inputs {
		kind := "basic"

		var fields []string

		if spec.Kind == circuit.InputArray {
			kind = "array"

			for f := range spec.Fields {
				fields = append(fields, f)
			}

			sort.Strings(fields)
		}

		inputs[name] = inputSpecDTO{
			Kind: kind, Fields: fields, AlwaysValid: spec.AlwaysValid,
			Optional: spec.Optional, AllowUnused: spec.AllowUnused,
		}
	}

	outputs := make(map[string]outputSpecDTO, len(def.OutputSpecs))
	for name, spec := range def.OutputSpecs {
		outputs[name] = outputSpecDTO{
			TypePath: spec.TypePath, Ephemeral: spec.Ephemeral, AlwaysValid: spec.AlwaysValid,
			AssumeInvalid: spec.AssumeInvalid, AssumeDefault: spec.AssumeDefault,
			DefaultConstructor: spec.DefaultConstructor,
		}
	}

	callsets := make(map[string]callSpecDTO, len(def.Callsets))
	for name, cs := range def.Callsets {
		callsets[name] = toCallSpecDTO(cs)
	}

	groups := make([]callsetGroupDTO, len(def.CallsetGroups))
	for i, g := range def.CallsetGroups {
		groups[i] = callsetGroupDTO{Names: g.Names}
	}

	var generic, timer *callSpecDTO

	if def.GenericCallset != nil {
		dto := toCallSpecDTO(*def.GenericCallset)
		generic = &dto
	}

	if def.TimerCallset != nil {
		dto := toCallSpecDTO(*def.TimerCallset)
		timer = &dto
	}

	return definitionDTO{
		ClassName: def.ClassName, Header: def.Header, Module: def.Module,
		Inputs: inputs, OutputSpecs: outputs, Callsets: callsets,
		GenericCallset: generic, TimerCallset: timer, CallsetGroups: groups,
		GenericsOrder: def.GenericsOrder, ClassGenerics: def.ClassGenerics,
		InitSpec: def.InitSpec, DefaultOutput: def.DefaultOutput,
		DifferentiableOperatorName: def.DifferentiableOperatorName, Metadata: def.Metadata,
	}
}

func toCallSpecDTO(cs circuit.CallSpec) callSpecDTO {
	return callSpecDTO{
		Name: cs.Name, WrittenSet: setToSlice(cs.WrittenSet), Observes: setToSlice(cs.Observes),
		Outputs: setToSlice(cs.Outputs), Callback: cs.Callback, Cleanup: cs.Cleanup,
		InputStructPath: cs.InputStructPath, OutputStructPath: cs.OutputStructPath, Metadata: cs.Metadata,
	}
}

func fromDefinitionDTO(dto definitionDTO) *circuit.Definition {
	inputs := make(map[string]circuit.InputSpec, len(dto.Inputs))

	for name, idto := range dto.Inputs {
		if idto.Kind == "array" {
			inputs[name] = circuit.NewArrayInput(idto.Fields, idto.AlwaysValid, idto.Optional, idto.AllowUnused)
		} else {
			inputs[name] = circuit.NewBasicInput(idto.AlwaysValid, idto.Optional, idto.AllowUnused)
		}
	}

	outputs := make(map[string]circuit.OutputSpec, len(dto.OutputSpecs))
	for name, odto := range dto.OutputSpecs {
		outputs[name] = circuit.OutputSpec{
			TypePath: odto.TypePath, Ephemeral: odto.Ephemeral, AlwaysValid: odto.AlwaysValid,
			AssumeInvalid: odto.AssumeInvalid, AssumeDefault: odto.AssumeDefault,
			DefaultConstructor: odto.DefaultConstructor,
		}
	}

	callsets := make(map[string]circuit.CallSpec, len(dto.Callsets))
	for name, cdto := range dto.Callsets {
		callsets[name] = fromCallSpecDTO(cdto)
	}

	groups := make([]circuit.CallsetGroup, len(dto.CallsetGroups))
	for i, g := range dto.CallsetGroups {
		groups[i] = circuit.CallsetGroup{Names: g.Names}
	}

	var generic, timer *circuit.CallSpec

	if dto.GenericCallset != nil {
		cs := fromCallSpecDTO(*dto.GenericCallset)
		generic = &cs
	}

	if dto.TimerCallset != nil {
		cs := fromCallSpecDTO(*dto.TimerCallset)
		timer = &cs
	}

	return &circuit.Definition{
		ClassName: dto.ClassName, Header: dto.Header, Module: dto.Module,
		Inputs: inputs, OutputSpecs: outputs, Callsets: callsets,
		GenericCallset: generic, TimerCallset: timer, CallsetGroups: groups,
		GenericsOrder: dto.GenericsOrder, ClassGenerics: dto.ClassGenerics,
		InitSpec: dto.InitSpec, DefaultOutput: dto.DefaultOutput,
		DifferentiableOperatorName: dto.DifferentiableOperatorName, Metadata: dto.Metadata,
	}
}

func fromCallSpecDTO(dto callSpecDTO) circuit.CallSpec {
	return circuit.CallSpec{
		Name: dto.Name, WrittenSet: sliceToSet(dto.WrittenSet), Observes: sliceToSet(dto.Observes),
		Outputs: sliceToSet(dto.Outputs), Callback: dto.Callback, Cleanup: dto.Cleanup,
		InputStructPath: dto.InputStructPath, OutputStructPath: dto.OutputStructPath, Metadata: dto.Metadata,
	}
}

func setToSlice(s map[string]struct{}) []string {
	if len(s) == 0 {
		return nil
	}

	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

func sliceToSet(s []string) map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for _, v := range s {
		out[v] = struct{}{}
	}

	return out
}
