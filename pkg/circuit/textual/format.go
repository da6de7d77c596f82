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
package textual

import (
	"fmt"
	"sort"

	"github.com/dataflowc/circuitc/pkg/circuit"
	"github.com/dataflowc/circuitc/pkg/util/source/sexp"
)

// formatWidth is the column width the formatter tries to keep every line
// within, matching the width the grammar example in the package doc comment
// was hand-wrapped to.
const formatWidth = 78

// formatter is the shared pretty-printer: each head below starts its own
// indented line for every member after the head, the same "one top-level
// form per line, one definition/component member per line" shape the
// textual grammar example shows. Forms not listed here (external, struct,
// group, callset, and a component's individual inputs) stay on one line via
// the default rule, since they are always short enough to fit.
func formatter() *sexp.Formatter {
	f := sexp.NewFormatter(formatWidth)
	f.Add(&sexp.LFormatter{Head: "circuit", Priority: 0})
	f.Add(&sexp.LFormatter{Head: "definition", Priority: 0})
	f.Add(&sexp.LFormatter{Head: "component", Priority: 0})

	return f
}

// Format renders circ back into the s-expression source form Parse accepts,
// in a canonical (sorted, reparse-stable) order; it is used by the fmt
// subcommand. Only what the grammar covers is written: array wirings,
// per-output options, class generics, params, generic and timer callsets,
// callset groups and default constructors are left out, so Parse(Format(c))
// reproduces a circuit equal to c only when c uses none of them. It builds
// the same sexp.SExp tree Parse
// itself consumes and renders it with the package's own Formatter/
// FormattingRule machinery, rather than hand-writing text.
func Format(circ *circuit.Circuit) string {
	elements := []sexp.SExp{sexp.NewSymbol("circuit")}

	for _, ext := range circ.ExternalInputs() {
		elements = append(elements, formatExternal(*ext))
	}

	for _, name := range sortedKeys(circ.CallStructs()) {
		elements = append(elements, formatStruct(name, circ.CallStructs()[name]))
	}

	for _, name := range sortedKeys(circ.CallGroups()) {
		elements = append(elements, formatGroup(name, circ.CallGroups()[name]))
	}

	for _, name := range sortedKeys(circ.Definitions()) {
		elements = append(elements, formatDefinition(name, circ.Definitions()[name]))
	}

	for _, comp := range circ.Components() {
		elements = append(elements, formatComponent(comp))
	}

	return formatter().Format(sexp.NewList(elements))
}

func formatExternal(ext circuit.ExternalInput) sexp.SExp {
	elements := []sexp.SExp{sym("external"), sym(ext.Name), sym(ext.Type)}
	elements = appendFlags(elements, ext.MustTrigger, ":must-trigger")

	return sexp.NewList(elements)
}

func formatStruct(name string, s *circuit.CallStruct) sexp.SExp {
	elements := []sexp.SExp{sym("struct"), sym(name)}

	for _, f := range s.Fields {
		elements = append(elements, sexp.NewList([]sexp.SExp{sym(f.Name), sym(f.Type)}))
	}

	return sexp.NewList(elements)
}

func formatGroup(name string, g *circuit.CallGroup) sexp.SExp {
	elements := []sexp.SExp{sym("group"), sym(name), sym(g.StructName)}

	for _, field := range sortedKeys(g.Bindings) {
		elements = append(elements, sexp.NewList([]sexp.SExp{sym(field), sym(g.Bindings[field])}))
	}

	return sexp.NewList(elements)
}

func formatDefinition(name string, def *circuit.Definition) sexp.SExp {
	elements := []sexp.SExp{sym("definition"), sym(name)}

	for _, iname := range sortedKeys(def.Inputs) {
		elements = append(elements, formatInputSpec(iname, def.Inputs[iname]))
	}

	for _, oname := range sortedKeys(def.OutputSpecs) {
		elements = append(elements, formatOutputSpec(oname, def.OutputSpecs[oname]))
	}

	for _, cname := range sortedKeys(def.Callsets) {
		elements = append(elements, formatCallset(def.Callsets[cname]))
	}

	return sexp.NewList(elements)
}

func formatInputSpec(name string, spec circuit.InputSpec) sexp.SExp {
	kind := "basic"
	if spec.Kind == circuit.InputArray {
		kind = "array"
	}

	elements := []sexp.SExp{sym("input"), sym(name), sym(kind)}
	elements = appendFlags(elements, spec.AlwaysValid, ":always-valid", spec.Optional, ":optional",
		spec.AllowUnused, ":allow-unused")

	return sexp.NewList(elements)
}

func formatOutputSpec(name string, spec circuit.OutputSpec) sexp.SExp {
	elements := []sexp.SExp{sym("output"), sym(name), sym(spec.TypePath)}
	elements = appendFlags(elements, spec.Ephemeral, ":ephemeral", spec.AlwaysValid, ":always-valid",
		spec.AssumeInvalid, ":assume-invalid", spec.AssumeDefault, ":assume-default")

	return sexp.NewList(elements)
}

func formatCallset(cs circuit.CallSpec) sexp.SExp {
	elements := []sexp.SExp{sym("callset"), sym(cs.Name)}

	if len(cs.WrittenSet) > 0 {
		elements = append(elements, formatNameSet("written", cs.WrittenSet))
	}

	if len(cs.Observes) > 0 {
		elements = append(elements, formatNameSet("observes", cs.Observes))
	}

	if len(cs.Outputs) > 0 {
		elements = append(elements, formatNameSet("outputs", cs.Outputs))
	}

	if cs.Callback != "" {
		elements = append(elements, sexp.NewList([]sexp.SExp{sym("callback"), sym(cs.Callback)}))
	}

	if cs.Cleanup != "" {
		elements = append(elements, sexp.NewList([]sexp.SExp{sym("cleanup"), sym(cs.Cleanup)}))
	}

	return sexp.NewList(elements)
}

func formatComponent(comp *circuit.Component) sexp.SExp {
	elements := []sexp.SExp{sym("component"), sym(comp.Name), sym(comp.Definition.ClassName)}

	for _, iname := range sortedKeys(comp.Inputs) {
		w := comp.Inputs[iname]
		if w.Single == nil {
			continue // array wiring omitted from the minimal single-valued grammar above
		}

		ref := *w.Single
		wiring := sexp.NewList([]sexp.SExp{sym(wiringHead(ref)), sym(wiringTail(ref))})
		elements = append(elements, sexp.NewList([]sexp.SExp{sym("input"), sym(iname), wiring}))
	}

	return sexp.NewList(elements)
}

func wiringHead(ref circuit.ValueRef) string {
	if ref.IsExternal() {
		return "ext"
	}

	return ref.Component
}

func wiringTail(ref circuit.ValueRef) string {
	return ref.Output
}

func sym(s string) *sexp.Symbol {
	return sexp.NewSymbol(s)
}

// appendFlags appends a :flag symbol for each (bool, name) pair whose bool
// is true, preserving pair order.
func appendFlags(elements []sexp.SExp, flags ...any) []sexp.SExp {
	for i := 0; i+1 < len(flags); i += 2 {
		if on, _ := flags[i].(bool); on {
			elements = append(elements, sym(fmt.Sprint(flags[i+1])))
		}
	}

	return elements
}

func formatNameSet(head string, set map[string]struct{}) sexp.SExp {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}

	sort.Strings(names)

	elements := make([]sexp.SExp, 0, len(names)+1)
	elements = append(elements, sym(head))

	for _, n := range names {
		elements = append(elements, sym(n))
	}

	return sexp.NewList(elements)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
