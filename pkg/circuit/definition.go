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

// InputKind distinguishes a scalar ("Basic") input slot from an aggregate
// ("Array") input slot which is wired from an ordered list of field-keyed
// batches.
type InputKind uint

const (
	// InputBasic is a single-valued input slot.
	InputBasic InputKind = iota
	// InputArray is an aggregate input slot, wired from zero or more batches
	// each of which supplies a fixed set of named fields.
	InputArray
)

// InputSpec describes one input slot declared by a Definition.
type InputSpec struct {
	// Kind distinguishes Basic from Array.
	Kind InputKind
	// Fields names the field set of an Array input.  Empty for Basic inputs.
	Fields map[string]struct{}
	// AlwaysValid requires every transitively wired source to itself be
	// always-valid (I2).
	AlwaysValid bool
	// Optional permits the input to go unwired (relaxes I1).
	Optional bool
	// AllowUnused marks an input which may be wired but never observed or
	// written by any callset, without this being treated as dead wiring.
	AllowUnused bool
}

// NewBasicInput constructs a scalar InputSpec.
func NewBasicInput(alwaysValid, optional, allowUnused bool) InputSpec {
	return InputSpec{InputBasic, nil, alwaysValid, optional, allowUnused}
}

// NewArrayInput constructs an aggregate InputSpec over the given field names.
func NewArrayInput(fields []string, alwaysValid, optional, allowUnused bool) InputSpec {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}

	return InputSpec{InputArray, set, alwaysValid, optional, allowUnused}
}

// OutputSpec describes one output slot declared by a Definition.
type OutputSpec struct {
	// TypePath is an opaque, emitter-facing type identifier.
	TypePath string
	// Ephemeral marks this output as a candidate for per-call scratch
	// storage (subject to override by the ephemerality analyzer, see
	// pkg/circuit/ephemeral).
	Ephemeral bool
	// AlwaysValid marks this output as statically valid; no runtime
	// validity bit is required.
	AlwaysValid bool
	// AssumeInvalid marks this output as defaulting to invalid at the start
	// of every call, requiring a per-call validity bit even when stored.
	AssumeInvalid bool
	// AssumeDefault marks this output as being reconstituted from its
	// default value every call, regardless of storage.
	AssumeDefault bool
	// DefaultConstructor, when non-empty, names the emitter-facing
	// constructor used to build the default value of this output.
	DefaultConstructor string
}

// CallSpec is a named update rule: see §3 of the specification.
type CallSpec struct {
	// Name identifies this callset within its definition.  May be empty,
	// except where the specification requires a name (disambiguation).
	Name string
	// WrittenSet is the set of input names which must all carry a freshly
	// produced value for this callset to match.
	WrittenSet map[string]struct{}
	// Observes is the set of input names passed to the callback without
	// requiring freshness.
	Observes map[string]struct{}
	// Outputs is the set of output names this callset may produce.
	Outputs map[string]struct{}
	// Callback names the function to invoke.  A CallSpec with an empty
	// Callback is skippable: it counts for ordering purposes but emits no
	// call.
	Callback string
	// Cleanup, if non-empty, names a secondary callback invoked when an
	// aggregate (Array) input's batch is retired.
	Cleanup string
	// InputStructPath and OutputStructPath are opaque emitter-facing type
	// identifiers for the callback's argument and return shapes.
	InputStructPath  string
	OutputStructPath string
	// Metadata is a free-form, uninterpreted bag forwarded verbatim to
	// emitters (see SPEC_FULL.md §10.6).
	Metadata map[string]any
}

// Inputs returns the union of WrittenSet and Observes.
func (c *CallSpec) Inputs() map[string]struct{} {
	result := make(map[string]struct{}, len(c.WrittenSet)+len(c.Observes))
	for k := range c.WrittenSet {
		result[k] = struct{}{}
	}

	for k := range c.Observes {
		result[k] = struct{}{}
	}

	return result
}

// Skippable reports whether this callset has no callback, meaning it counts
// towards ordering during subgraph discovery but is never actually called.
func (c *CallSpec) Skippable() bool {
	return c.Callback == ""
}

// CallsetGroup is an ordered list of callset names, used to break ties when
// several callsets match the same freshness set (§4.3).
type CallsetGroup struct {
	Names []string
}

// key returns a canonical, order-independent representation of the name set
// carried by this group, used to match against the set of matching callset
// names during disambiguation.
func (g CallsetGroup) key() string {
	return setKey(g.Names)
}

// Definition is an immutable description of a component kind (§3). Once
// constructed and added to a Circuit via Circuit.AddDefinition, a Definition
// is never mutated; two components sharing a Definition share the same
// pointer.
type Definition struct {
	// ClassName and Header/Module are opaque strings forwarded to emitters.
	ClassName string
	Header    string
	Module    string
	// Inputs maps input name to its InputSpec.
	Inputs map[string]InputSpec
	// OutputSpecs maps output name to its OutputSpec.
	OutputSpecs map[string]OutputSpec
	// Callsets is the set of named update rules for this definition.
	Callsets map[string]CallSpec
	// GenericCallset fires when no declared callset matches and the
	// definition provides one (§4.3).
	GenericCallset *CallSpec
	// TimerCallset, if present, is invoked on an implementation-defined
	// schedule rather than in response to a triggering input (§4.4).
	TimerCallset *CallSpec
	// CallsetGroups disambiguates simultaneous matches (§4.3).
	CallsetGroups []CallsetGroup
	// GenericsOrder maps an input name to its position among generic type
	// parameters, where applicable.
	GenericsOrder map[string]uint
	// ClassGenerics maps a generic parameter name to its position.
	ClassGenerics map[string]uint
	// InitSpec, DefaultOutput and DifferentiableOperatorName are opaque,
	// emitter-facing passthrough fields (SPEC_FULL.md §10.6); the core never
	// interprets them.
	InitSpec                   string
	DefaultOutput              string
	DifferentiableOperatorName string
	// Metadata is a free-form, uninterpreted bag.
	Metadata map[string]any
}

// OutputNames returns the full set of output names declared by this
// definition, used by the conservative topological sort (§4.4) which must
// over-approximate a component's produced outputs.
func (d *Definition) OutputNames() map[string]struct{} {
	names := make(map[string]struct{}, len(d.OutputSpecs))
	for name := range d.OutputSpecs {
		names[name] = struct{}{}
	}

	return names
}

// Equal performs a structural (value) comparison of two definitions, used by
// Circuit.AddDefinition to decide whether a re-registration under the same
// name is idempotent.
func (d *Definition) Equal(other *Definition) bool {
	if d == other {
		return true
	}

	if other == nil {
		return false
	}

	return definitionsEqual(d, other)
}
