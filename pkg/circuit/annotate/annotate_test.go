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
package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataflowc/circuitc/pkg/circuit"
	"github.com/dataflowc/circuitc/pkg/circuit/ephemeral"
	"github.com/dataflowc/circuitc/pkg/circuit/subgraph"
)

func fourOutputCircuit(t *testing.T) *circuit.Circuit {
	t.Helper()

	circ := circuit.NewCircuit()

	def := &circuit.Definition{
		ClassName: "Multi",
		OutputSpecs: map[string]circuit.OutputSpec{
			"scratchable":   {TypePath: "f64", Ephemeral: true},
			"mustStore":     {TypePath: "f64", Ephemeral: true},
			"static":        {TypePath: "f64", AlwaysValid: true},
			"storedInvalid": {TypePath: "f64", AssumeInvalid: true}, // not Ephemeral: always stored
		},
		Callsets: map[string]circuit.CallSpec{
			"update": {
				Name: "update",
				Outputs: map[string]struct{}{
					"scratchable": {}, "mustStore": {}, "static": {}, "storedInvalid": {},
				},
				Callback: "onUpdate",
			},
		},
	}
	require.NoError(t, circ.AddDefinition("Multi", def))

	_, err := circ.MakeComponent("Multi", "m", nil, nil, nil, nil, false)
	require.NoError(t, err)

	return circ
}

func TestAnnotate_ScratchVsStoredVsStatic(t *testing.T) {
	circ := fourOutputCircuit(t)
	comp, _ := circ.Component("m")

	cs := comp.Definition.Callsets["update"]

	producer := subgraph.Subgraph{
		EntryName: "producer",
		Calls:     []subgraph.CalledComponent{{Name: "m", Callsets: []*circuit.CallSpec{&cs}}},
	}
	consumer := subgraph.Subgraph{
		EntryName: "consumer",
	}

	// mustStore is read cross-subgraph by wiring a second component into the
	// consumer episode; scratchable is read only within the producer
	// episode (same subgraph as production), hence stays scratch.
	logger := &circuit.Definition{
		ClassName: "Logger",
		Inputs:    map[string]circuit.InputSpec{"in": circuit.NewBasicInput(false, false, false)},
		Callsets: map[string]circuit.CallSpec{
			"update": {Name: "update", WrittenSet: map[string]struct{}{"in": {}}, Callback: "onLog"},
		},
	}
	require.NoError(t, circ.AddDefinition("Logger", logger))

	inputs := map[string]circuit.InputWiring{"in": circuit.NewSingleWiring(circuit.NewGraphOutput("m", "mustStore"))}
	_, err := circ.MakeComponent("Logger", "logger", inputs, nil, nil, nil, false)
	require.NoError(t, err)

	loggerCS := circuit.CallSpec{Name: "update", WrittenSet: map[string]struct{}{"in": {}}, Callback: "onLog"}
	consumer.Calls = append(consumer.Calls, subgraph.CalledComponent{Name: "logger", Callsets: []*circuit.CallSpec{&loggerCS}})

	analysis := ephemeral.Analyze(circ, []subgraph.Subgraph{producer, consumer})
	table := Annotate(circ, analysis)

	scratchVar, ok := table.Lookup(circuit.NewGraphOutput("m", "scratchable"))
	require.True(t, ok)
	assert.Equal(t, VarScratch, scratchVar.Var)
	assert.Equal(t, ValidPerCall, scratchVar.Valid)

	storedVar, ok := table.Lookup(circuit.NewGraphOutput("m", "mustStore"))
	require.True(t, ok)
	assert.Equal(t, VarStored, storedVar.Var)
	assert.Equal(t, ValidStored, storedVar.Valid)

	staticVar, ok := table.Lookup(circuit.NewGraphOutput("m", "static"))
	require.True(t, ok)
	assert.Equal(t, ValidStatic, staticVar.Valid)

	// storedInvalid is forced VarStored (not Ephemeral at all), but its
	// AssumeInvalid flag means the default is reconstituted per call, so it
	// gets a per-call bool rather than a stored one (§4.6 table row 3).
	invalidVar, ok := table.Lookup(circuit.NewGraphOutput("m", "storedInvalid"))
	require.True(t, ok)
	assert.Equal(t, VarStored, invalidVar.Var)
	assert.Equal(t, ValidPerCall, invalidVar.Valid)
}

func TestAnnotate_AllIsSortedAndDeterministic(t *testing.T) {
	circ := fourOutputCircuit(t)

	analysis := ephemeral.Analyze(circ, nil)
	table := Annotate(circ, analysis)

	entries := table.All()
	require.Len(t, entries, 4)

	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Ref.String(), entries[i].Ref.String())
	}

	// Calling All() again must produce an identical order (no map-iteration
	// nondeterminism leaking through).
	again := table.All()
	for i := range entries {
		assert.Equal(t, entries[i].Ref, again[i].Ref)
	}
}

func TestAnnotate_LookupMissingIsAbsent(t *testing.T) {
	circ := fourOutputCircuit(t)
	analysis := ephemeral.Analyze(circ, nil)
	table := Annotate(circ, analysis)

	_, ok := table.Lookup(circuit.NewGraphOutput("m", "ghost"))
	assert.False(t, ok)
}
