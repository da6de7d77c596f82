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
package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataflowc/circuitc/pkg/circuit"
)

func set(names ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}

	return s
}

func newCircuitWith(t *testing.T, name string, def *circuit.Definition) *circuit.Circuit {
	t.Helper()

	circ := circuit.NewCircuit()
	require.NoError(t, circ.AddDefinition(name, def))

	return circ
}

func hasReason(errs []error, reason circuit.Reason) bool {
	for _, e := range errs {
		if iv, ok := e.(*circuit.InvariantViolation); ok && iv.Reason() == reason {
			return true
		}
	}

	return false
}

func TestCheckOutputSpecConsistency_AlwaysValidAndAssumeInvalidConflict(t *testing.T) {
	def := &circuit.Definition{
		ClassName:   "Bad",
		OutputSpecs: map[string]circuit.OutputSpec{"out": {TypePath: "f64", AlwaysValid: true, AssumeInvalid: true}},
	}

	errs := checkOutputSpecConsistency("Bad", def)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestCheckOutputSpecConsistency_AssumeDefaultRequiresValidityBasis(t *testing.T) {
	def := &circuit.Definition{
		ClassName: "Bad",
		OutputSpecs: map[string]circuit.OutputSpec{
			"out": {TypePath: "f64", AssumeDefault: true, Ephemeral: true},
		},
	}

	errs := checkOutputSpecConsistency("Bad", def)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestCheckOutputSpecConsistency_AssumeDefaultMustBeEphemeral(t *testing.T) {
	def := &circuit.Definition{
		ClassName: "Bad",
		OutputSpecs: map[string]circuit.OutputSpec{
			"out": {TypePath: "f64", AlwaysValid: true, AssumeDefault: true, Ephemeral: false},
		},
	}

	errs := checkOutputSpecConsistency("Bad", def)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestCheckOutputSpecConsistency_DefaultConstructorRequiresAssumeDefault(t *testing.T) {
	def := &circuit.Definition{
		ClassName: "Bad",
		OutputSpecs: map[string]circuit.OutputSpec{
			"out": {TypePath: "f64", DefaultConstructor: "zero"},
		},
	}

	errs := checkOutputSpecConsistency("Bad", def)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestCheckOutputSpecConsistency_ValidCombinationsPass(t *testing.T) {
	def := &circuit.Definition{
		ClassName: "Good",
		OutputSpecs: map[string]circuit.OutputSpec{
			"a": {TypePath: "f64", AlwaysValid: true},
			"b": {TypePath: "f64", AssumeInvalid: true, AssumeDefault: true, Ephemeral: true, DefaultConstructor: "zero"},
		},
	}

	assert.Empty(t, checkOutputSpecConsistency("Good", def))
}

func TestCheckCallsetWellFormed_UndeclaredWrittenInput(t *testing.T) {
	def := &circuit.Definition{Inputs: map[string]circuit.InputSpec{}}
	cs := circuit.CallSpec{Name: "update", WrittenSet: set("ghost"), Callback: "onUpdate"}

	errs := checkCallsetWellFormed("D", def, cs)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestCheckCallsetWellFormed_WrittenAndObservedOverlap(t *testing.T) {
	def := &circuit.Definition{Inputs: map[string]circuit.InputSpec{"a": circuit.NewBasicInput(false, false, false)}}
	cs := circuit.CallSpec{Name: "update", WrittenSet: set("a"), Observes: set("a"), Callback: "onUpdate"}

	errs := checkCallsetWellFormed("D", def, cs)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestCheckCallsetWellFormed_UndeclaredOutput(t *testing.T) {
	def := &circuit.Definition{
		Inputs:      map[string]circuit.InputSpec{"a": circuit.NewBasicInput(false, false, false)},
		OutputSpecs: map[string]circuit.OutputSpec{},
	}
	cs := circuit.CallSpec{Name: "update", WrittenSet: set("a"), Outputs: set("ghost"), Callback: "onUpdate"}

	errs := checkCallsetWellFormed("D", def, cs)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestCheckCallsetWellFormed_SkippableMayNotProduceOutputs(t *testing.T) {
	def := &circuit.Definition{
		Inputs:      map[string]circuit.InputSpec{"a": circuit.NewBasicInput(false, false, false)},
		OutputSpecs: map[string]circuit.OutputSpec{"out": {TypePath: "f64"}},
	}
	cs := circuit.CallSpec{Name: "update", WrittenSet: set("a"), Outputs: set("out")} // no Callback => skippable

	errs := checkCallsetWellFormed("D", def, cs)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestCheckCallsetWellFormed_ValidCallsetPasses(t *testing.T) {
	def := &circuit.Definition{
		Inputs:      map[string]circuit.InputSpec{"a": circuit.NewBasicInput(false, false, false)},
		OutputSpecs: map[string]circuit.OutputSpec{"out": {TypePath: "f64"}},
	}
	cs := circuit.CallSpec{Name: "update", WrittenSet: set("a"), Outputs: set("out"), Callback: "onUpdate"}

	assert.Empty(t, checkCallsetWellFormed("D", def, cs))
}

func TestCheckNoObservedArrayInput_Rejected(t *testing.T) {
	def := &circuit.Definition{
		Inputs: map[string]circuit.InputSpec{"batch": circuit.NewArrayInput([]string{"x"}, false, false, false)},
	}
	cs := circuit.CallSpec{Name: "update", Observes: set("batch"), Callback: "onUpdate"}

	errs := checkNoObservedArrayInput("D", def, cs)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestCheckAtMostOneArrayInput_RejectsTwo(t *testing.T) {
	def := &circuit.Definition{
		Inputs: map[string]circuit.InputSpec{
			"batch1": circuit.NewArrayInput([]string{"x"}, false, false, false),
			"batch2": circuit.NewArrayInput([]string{"y"}, false, false, false),
		},
	}
	cs := circuit.CallSpec{Name: "update", WrittenSet: set("batch1"), Observes: set("batch2"), Callback: "onUpdate"}

	errs := checkAtMostOneArrayInput("D", def, cs)
	assert.Len(t, errs, 1)
}

func TestCheckAtMostOneArrayInput_AllowsOne(t *testing.T) {
	def := &circuit.Definition{
		Inputs: map[string]circuit.InputSpec{
			"batch": circuit.NewArrayInput([]string{"x"}, false, false, false),
			"a":     circuit.NewBasicInput(false, false, false),
		},
	}
	cs := circuit.CallSpec{Name: "update", WrittenSet: set("batch", "a"), Callback: "onUpdate"}

	assert.Empty(t, checkAtMostOneArrayInput("D", def, cs))
}

func TestCheckCallsetGroups_UnknownNameInGroup(t *testing.T) {
	def := &circuit.Definition{
		Callsets:      map[string]circuit.CallSpec{"a": {Name: "a", WrittenSet: set("x"), Callback: "onA"}},
		CallsetGroups: []circuit.CallsetGroup{{Names: []string{"a", "ghost"}}},
	}

	errs := checkCallsetGroups("D", def)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestCheckCallsetGroups_DuplicateNameSet(t *testing.T) {
	def := &circuit.Definition{
		Callsets: map[string]circuit.CallSpec{
			"a": {Name: "a", WrittenSet: set("x"), Callback: "onA"},
			"b": {Name: "b", WrittenSet: set("y"), Callback: "onB"},
		},
		CallsetGroups: []circuit.CallsetGroup{
			{Names: []string{"a", "b"}},
			{Names: []string{"b", "a"}}, // same set, different order
		},
	}

	errs := checkCallsetGroups("D", def)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestCheckCallsetGroups_DistinctGroupsPass(t *testing.T) {
	def := &circuit.Definition{
		Callsets: map[string]circuit.CallSpec{
			"a": {Name: "a", WrittenSet: set("x"), Callback: "onA"},
			"b": {Name: "b", WrittenSet: set("y"), Callback: "onB"},
			"c": {Name: "c", WrittenSet: set("z"), Callback: "onC"},
		},
		CallsetGroups: []circuit.CallsetGroup{
			{Names: []string{"a", "b"}},
			{Names: []string{"a", "c"}},
		},
	}

	assert.Empty(t, checkCallsetGroups("D", def))
}

func TestValidateDefinition_GenericCallsetMayNotObserve(t *testing.T) {
	def := &circuit.Definition{
		ClassName: "Bad",
		Inputs:    map[string]circuit.InputSpec{"a": circuit.NewBasicInput(false, false, true)},
		GenericCallset: &circuit.CallSpec{
			Observes: set("a"),
			Callback: "onAny",
		},
	}

	errs := validateDefinition("Bad", def)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestValidateDefinition_TimerCallsetMayNotHaveWrittenSet(t *testing.T) {
	def := &circuit.Definition{
		ClassName: "Bad",
		Inputs:    map[string]circuit.InputSpec{"a": circuit.NewBasicInput(false, false, true)},
		TimerCallset: &circuit.CallSpec{
			Name:       "tick",
			WrittenSet: set("a"),
			Callback:   "onTick",
		},
	}

	errs := validateDefinition("Bad", def)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestValidateDefinition_TimerCallsetMustNotBeSkippable(t *testing.T) {
	def := &circuit.Definition{
		ClassName:    "Bad",
		TimerCallset: &circuit.CallSpec{Name: "tick"}, // no callback
	}

	errs := validateDefinition("Bad", def)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestValidateDefinition_DeadInputFlagged(t *testing.T) {
	def := &circuit.Definition{
		ClassName: "Bad",
		Inputs: map[string]circuit.InputSpec{
			"a":      circuit.NewBasicInput(false, false, false),
			"unused": circuit.NewBasicInput(false, false, false),
		},
		Callsets: map[string]circuit.CallSpec{
			"update": {Name: "update", WrittenSet: set("a"), Callback: "onUpdate"},
		},
	}

	errs := validateDefinition("Bad", def)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestValidateDefinition_AllowUnusedInputNotFlagged(t *testing.T) {
	def := &circuit.Definition{
		ClassName: "Good",
		Inputs: map[string]circuit.InputSpec{
			"a":    circuit.NewBasicInput(false, false, false),
			"spare": circuit.NewBasicInput(false, false, true),
		},
		Callsets: map[string]circuit.CallSpec{
			"update": {Name: "update", WrittenSet: set("a"), Callback: "onUpdate"},
		},
	}

	assert.Empty(t, validateDefinition("Good", def))
}

func TestValidateDefinition_UnproducedOutputFlagged(t *testing.T) {
	def := &circuit.Definition{
		ClassName: "Bad",
		Inputs:    map[string]circuit.InputSpec{"a": circuit.NewBasicInput(false, false, false)},
		OutputSpecs: map[string]circuit.OutputSpec{
			"out": {TypePath: "f64"},
		},
		Callsets: map[string]circuit.CallSpec{
			"update": {Name: "update", WrittenSet: set("a"), Callback: "onUpdate"},
		},
	}

	errs := validateDefinition("Bad", def)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestValidateMustTrigger_ObservedMustTriggerExternalRejected(t *testing.T) {
	def := &circuit.Definition{
		ClassName: "Sink",
		Inputs:    map[string]circuit.InputSpec{"in": circuit.NewBasicInput(false, false, false)},
		Callsets: map[string]circuit.CallSpec{
			"update": {Name: "update", Observes: set("in"), Callback: "onUpdate"},
		},
		GenericCallset: &circuit.CallSpec{Callback: "onAny"},
	}

	circ := newCircuitWith(t, "Sink", def)

	_, err := circ.GetExternal("trigger", "f64", true) // MustTrigger=true
	require.NoError(t, err)

	inputs := map[string]circuit.InputWiring{"in": circuit.NewSingleWiring(circuit.NewExternalOutput("trigger"))}
	_, err = circ.MakeComponent("Sink", "sink", inputs, nil, nil, nil, false)
	require.NoError(t, err)

	errs := validateMustTrigger(circ)
	assert.True(t, hasReason(errs, circuit.ReasonDefinitionInvalid))
}

func TestValidateMustTrigger_WrittenMustTriggerExternalAllowed(t *testing.T) {
	def := &circuit.Definition{
		ClassName: "Sink",
		Inputs:    map[string]circuit.InputSpec{"in": circuit.NewBasicInput(false, false, false)},
		Callsets: map[string]circuit.CallSpec{
			"update": {Name: "update", WrittenSet: set("in"), Callback: "onUpdate"},
		},
	}

	circ := newCircuitWith(t, "Sink", def)

	_, err := circ.GetExternal("trigger", "f64", true)
	require.NoError(t, err)

	inputs := map[string]circuit.InputWiring{"in": circuit.NewSingleWiring(circuit.NewExternalOutput("trigger"))}
	_, err = circ.MakeComponent("Sink", "sink", inputs, nil, nil, nil, false)
	require.NoError(t, err)

	assert.Empty(t, validateMustTrigger(circ))
}

func TestValidate_CleanCircuitProducesNoErrors(t *testing.T) {
	def := &circuit.Definition{
		ClassName: "Adder",
		Inputs:    map[string]circuit.InputSpec{"a": circuit.NewBasicInput(false, false, false)},
		OutputSpecs: map[string]circuit.OutputSpec{
			"sum": {TypePath: "f64", Ephemeral: true},
		},
		Callsets: map[string]circuit.CallSpec{
			"update": {Name: "update", WrittenSet: set("a"), Outputs: set("sum"), Callback: "onUpdate"},
		},
	}

	circ := newCircuitWith(t, "Adder", def)

	_, err := circ.GetExternal("price", "f64", false)
	require.NoError(t, err)

	inputs := map[string]circuit.InputWiring{"a": circuit.NewSingleWiring(circuit.NewExternalOutput("price"))}
	_, err = circ.MakeComponent("Adder", "total", inputs, nil, nil, nil, false)
	require.NoError(t, err)

	assert.Empty(t, Validate(circ))
}
