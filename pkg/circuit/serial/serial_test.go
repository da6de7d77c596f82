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
package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataflowc/circuitc/pkg/circuit"
)

// richCircuit exercises generic/timer callsets, a callset group, externals
// (including a must-trigger one), a call struct/group, and a force-inserted
// structural duplicate component -- every record-tree shape §6 describes.
func richCircuit(t *testing.T) *circuit.Circuit {
	t.Helper()

	circ := circuit.NewCircuit()

	def := &circuit.Definition{
		ClassName: "Blender",
		Header:    "blender.h",
		Inputs: map[string]circuit.InputSpec{
			"a":     circuit.NewBasicInput(false, false, false),
			"b":     circuit.NewBasicInput(false, true, false),
			"batch": circuit.NewArrayInput([]string{"x", "y"}, false, true, false),
		},
		OutputSpecs: map[string]circuit.OutputSpec{
			"out":   {TypePath: "f64", Ephemeral: true},
			"const": {TypePath: "f64", AlwaysValid: true},
		},
		Callsets: map[string]circuit.CallSpec{
			"onA": {Name: "onA", WrittenSet: map[string]struct{}{"a": {}}, Outputs: map[string]struct{}{"out": {}}, Callback: "cbA"},
			"onB": {Name: "onB", WrittenSet: map[string]struct{}{"b": {}}, Outputs: map[string]struct{}{"out": {}}, Callback: "cbB"},
		},
		GenericCallset: &circuit.CallSpec{Callback: "cbGeneric"},
		TimerCallset:   &circuit.CallSpec{Name: "tick", Callback: "cbTick"},
		CallsetGroups:  []circuit.CallsetGroup{{Names: []string{"onA", "onB"}}},
		Metadata:       map[string]any{"note": "round-trip fixture"},
	}
	require.NoError(t, circ.AddDefinition("Blender", def))

	_, err := circ.GetExternal("trigger", "f64", true)
	require.NoError(t, err)

	inputs := map[string]circuit.InputWiring{"a": circuit.NewSingleWiring(circuit.NewExternalOutput("trigger"))}

	first, err := circ.MakeComponent("Blender", "blend1", inputs, nil, nil, nil, false)
	require.NoError(t, err)

	_, err = circ.MakeComponent("Blender", "blend2", inputs, nil, nil, nil, true) // force duplicate
	require.NoError(t, err)

	require.NoError(t, circ.AddCallStruct("Trigger", &circuit.CallStruct{
		Name:   "Trigger",
		Fields: []circuit.CallStructField{{Name: "t", Type: "f64"}},
	}))
	require.NoError(t, circ.AddCallGroup("onTrigger", &circuit.CallGroup{
		Name:       "onTrigger",
		StructName: "Trigger",
		Bindings:   map[string]string{"t": "trigger"},
	}))

	_ = first

	return circ
}

func TestMarshalUnmarshal_RoundTrip(t *testing.T) {
	circ := richCircuit(t)

	data, err := Marshal(circ)
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)

	require.Len(t, restored.Components(), 2)
	assert.Equal(t, len(circ.Definitions()), len(restored.Definitions()))
	assert.Equal(t, len(circ.ExternalInputs()), len(restored.ExternalInputs()))

	def, ok := restored.Definition("Blender")
	require.True(t, ok)
	assert.Equal(t, "blender.h", def.Header)
	assert.Len(t, def.Callsets, 2)
	require.NotNil(t, def.GenericCallset)
	assert.Equal(t, "cbGeneric", def.GenericCallset.Callback)
	require.NotNil(t, def.TimerCallset)
	assert.Equal(t, "cbTick", def.TimerCallset.Callback)
	require.Len(t, def.CallsetGroups, 1)
	assert.ElementsMatch(t, []string{"onA", "onB"}, def.CallsetGroups[0].Names)

	ext, ok := restored.External("trigger")
	require.True(t, ok)
	assert.True(t, ext.MustTrigger)

	_, ok = restored.Component("blend1")
	assert.True(t, ok)
	_, ok = restored.Component("blend2")
	assert.True(t, ok)

	_, ok = restored.CallStructs()["Trigger"]
	assert.True(t, ok)

	group, ok := restored.CallGroups()["onTrigger"]
	require.True(t, ok)
	assert.Equal(t, "trigger", group.Bindings["t"])
}

func TestMarshalUnmarshal_ArrayWiringRoundTrips(t *testing.T) {
	circ := circuit.NewCircuit()

	def := &circuit.Definition{
		ClassName: "Agg",
		Inputs: map[string]circuit.InputSpec{
			"batch": circuit.NewArrayInput([]string{"x"}, false, false, false),
		},
		Callsets: map[string]circuit.CallSpec{
			"update": {Name: "update", WrittenSet: map[string]struct{}{"batch": {}}, Callback: "onUpdate"},
		},
	}
	require.NoError(t, circ.AddDefinition("Agg", def))

	_, err := circ.GetExternal("e1", "f64", false)
	require.NoError(t, err)

	_, err = circ.GetExternal("e2", "f64", false)
	require.NoError(t, err)

	batch := []map[string]circuit.ValueRef{
		{"x": circuit.NewExternalOutput("e1")},
		{"x": circuit.NewExternalOutput("e2")},
	}
	inputs := map[string]circuit.InputWiring{"batch": circuit.NewArrayWiring(batch)}

	_, err = circ.MakeComponent("Agg", "agg", inputs, nil, nil, nil, false)
	require.NoError(t, err)

	data, err := Marshal(circ)
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)

	comp, ok := restored.Component("agg")
	require.True(t, ok)

	wiring := comp.Inputs["batch"]
	require.True(t, wiring.IsArray())
	require.Len(t, wiring.Array, 2)
	assert.Equal(t, "e1", wiring.Array[0]["x"].Output)
	assert.Equal(t, "e2", wiring.Array[1]["x"].Output)
}

func TestUnmarshal_InvalidJSONFails(t *testing.T) {
	_, err := Unmarshal([]byte("not json"))
	assert.Error(t, err)
}
