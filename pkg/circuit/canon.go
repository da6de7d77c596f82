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

import (
	"fmt"
	"sort"
	"strings"
)

// setKey canonicalises an unordered collection of names into a stable,
// order-independent string, used both for CallsetGroup matching (§4.3) and
// for structural-equality checks elsewhere in this package.
func setKey(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	return strings.Join(sorted, ",")
}

// wiringKey canonicalises a component's input wiring into a stable string,
// used by Component.Index for structural deduplication (§3, §4.1).
func wiringKey(inputs map[string]InputWiring) string {
	names := make([]string, 0, len(inputs))
	for n := range inputs {
		names = append(names, n)
	}

	sort.Strings(names)

	var b strings.Builder

	for _, n := range names {
		w := inputs[n]

		fmt.Fprintf(&b, "%s=", n)

		if w.IsArray() {
			b.WriteString("[")

			for i, batch := range w.Array {
				if i > 0 {
					b.WriteString(";")
				}

				fields := make([]string, 0, len(batch))
				for f := range batch {
					fields = append(fields, f)
				}

				sort.Strings(fields)

				for j, f := range fields {
					if j > 0 {
						b.WriteString(",")
					}

					fmt.Fprintf(&b, "%s:%s", f, batch[f].key())
				}
			}

			b.WriteString("]")
		} else if w.Single != nil {
			b.WriteString(w.Single.key())
		}

		b.WriteString("|")
	}

	return b.String()
}

// stringMapKey canonicalises a map[string]string into a stable string.
func stringMapKey(m map[string]string) string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}

	sort.Strings(names)

	var b strings.Builder

	for _, n := range names {
		fmt.Fprintf(&b, "%s=%s;", n, m[n])
	}

	return b.String()
}

// anyMapKey canonicalises a map[string]any into a stable string using
// %v formatting.  This is sufficient for the scalar-ish parameter values
// (numbers, strings, bools) this field is expected to carry; it is not a
// general-purpose deep-equality mechanism.
func anyMapKey(m map[string]any) string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}

	sort.Strings(names)

	var b strings.Builder

	for _, n := range names {
		fmt.Fprintf(&b, "%s=%v;", n, m[n])
	}

	return b.String()
}

// definitionsEqual performs a structural comparison of two definitions.
func definitionsEqual(a, b *Definition) bool {
	if a.ClassName != b.ClassName || a.Header != b.Header || a.Module != b.Module {
		return false
	}

	if len(a.Inputs) != len(b.Inputs) || len(a.OutputSpecs) != len(b.OutputSpecs) ||
		len(a.Callsets) != len(b.Callsets) {
		return false
	}

	for name, spec := range a.Inputs {
		other, ok := b.Inputs[name]
		if !ok || spec.Kind != other.Kind || spec.AlwaysValid != other.AlwaysValid ||
			spec.Optional != other.Optional || spec.AllowUnused != other.AllowUnused ||
			!setsEqual(spec.Fields, other.Fields) {
			return false
		}
	}

	for name, spec := range a.OutputSpecs {
		other, ok := b.OutputSpecs[name]
		if !ok || spec != other {
			return false
		}
	}

	for name, spec := range a.Callsets {
		other, ok := b.Callsets[name]
		if !ok || !callSpecsEqual(spec, other) {
			return false
		}
	}

	return nullableCallSpecEqual(a.GenericCallset, b.GenericCallset) &&
		nullableCallSpecEqual(a.TimerCallset, b.TimerCallset)
}

func callSpecsEqual(a, b CallSpec) bool {
	return a.Name == b.Name && a.Callback == b.Callback && a.Cleanup == b.Cleanup &&
		setsEqual(a.WrittenSet, b.WrittenSet) && setsEqual(a.Observes, b.Observes) &&
		setsEqual(a.Outputs, b.Outputs)
}

func nullableCallSpecEqual(a, b *CallSpec) bool {
	if (a == nil) != (b == nil) {
		return false
	}

	if a == nil {
		return true
	}

	return callSpecsEqual(*a, *b)
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}

	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}

	return true
}
