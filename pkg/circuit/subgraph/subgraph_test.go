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
package subgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataflowc/circuitc/pkg/circuit"
	"github.com/dataflowc/circuitc/pkg/circuit/callset"
)

// chainCircuit builds price -> Doubler(double) -> Adder(sum), registered as
// a call group over a call struct binding "price", plus a third component,
// Logger, that never fires because nothing ever writes its trigger.
func chainCircuit(t *testing.T) *circuit.Circuit {
	t.Helper()

	circ := circuit.NewCircuit()

	doubler := &circuit.Definition{
		ClassName: "Doubler",
		Inputs:    map[string]circuit.InputSpec{"in": circuit.NewBasicInput(false, false, false)},
		OutputSpecs: map[string]circuit.OutputSpec{
			"out": {TypePath: "f64", Ephemeral: true},
		},
		Callsets: map[string]circuit.CallSpec{
			"update": {Name: "update", WrittenSet: map[string]struct{}{"in": {}}, Outputs: map[string]struct{}{"out": {}}, Callback: "onUpdate"},
		},
	}
	require.NoError(t, circ.AddDefinition("Doubler", doubler))

	adder := &circuit.Definition{
		ClassName: "Adder",
		Inputs:    map[string]circuit.InputSpec{"in": circuit.NewBasicInput(false, false, false)},
		OutputSpecs: map[string]circuit.OutputSpec{
			"sum": {TypePath: "f64", Ephemeral: true},
		},
		Callsets: map[string]circuit.CallSpec{
			"update": {Name: "update", WrittenSet: map[string]struct{}{"in": {}}, Outputs: map[string]struct{}{"sum": {}}, Callback: "onUpdate"},
		},
	}
	require.NoError(t, circ.AddDefinition("Adder", adder))

	logger := &circuit.Definition{
		ClassName: "Logger",
		Inputs:    map[string]circuit.InputSpec{"in": circuit.NewBasicInput(false, false, false)},
		Callsets: map[string]circuit.CallSpec{
			"update": {Name: "update", WrittenSet: map[string]struct{}{"in": {}}, Callback: "onLog"},
		},
	}
	require.NoError(t, circ.AddDefinition("Logger", logger))

	_, err := circ.GetExternal("price", "f64", false)
	require.NoError(t, err)

	_, err = circ.GetExternal("unrelated", "f64", false)
	require.NoError(t, err)

	dIn := map[string]circuit.InputWiring{"in": circuit.NewSingleWiring(circuit.NewExternalOutput("price"))}
	dbl, err := circ.MakeComponent("Doubler", "dbl", dIn, nil, nil, nil, false)
	require.NoError(t, err)

	aIn := map[string]circuit.InputWiring{"in": circuit.NewSingleWiring(circuit.NewGraphOutput(dbl.Name, "out"))}
	_, err = circ.MakeComponent("Adder", "total", aIn, nil, nil, nil, false)
	require.NoError(t, err)

	lIn := map[string]circuit.InputWiring{"in": circuit.NewSingleWiring(circuit.NewExternalOutput("unrelated"))}
	_, err = circ.MakeComponent("Logger", "logger", lIn, nil, nil, nil, false)
	require.NoError(t, err)

	require.NoError(t, circ.AddCallStruct("PriceUpdate", &circuit.CallStruct{
		Name:   "PriceUpdate",
		Fields: []circuit.CallStructField{{Name: "price", Type: "f64"}},
	}))
	require.NoError(t, circ.AddCallGroup("onPrice", &circuit.CallGroup{
		Name:       "onPrice",
		StructName: "PriceUpdate",
		Bindings:   map[string]string{"price": "price"},
	}))

	return circ
}

func TestDiscoverAll_CallGroupEntryPropagatesThroughChain(t *testing.T) {
	circ := chainCircuit(t)

	subgraphs, err := DiscoverAll(circ, callset.ModeAny)
	require.NoError(t, err)
	require.Len(t, subgraphs, 1) // no timer callsets declared

	sg := subgraphs[0]
	assert.Equal(t, EntryCallGroup, sg.Entry)
	assert.Equal(t, "onPrice", sg.EntryName)

	require.Len(t, sg.Calls, 2)
	assert.Equal(t, "dbl", sg.Calls[0].Name)
	assert.Equal(t, "total", sg.Calls[1].Name)

	// logger's trigger (unrelated) was never written by the seed, so it
	// never appears despite being a registered component.
	for _, c := range sg.Calls {
		assert.NotEqual(t, "logger", c.Name)
	}
}

func TestDiscoverAll_OrderMatchesComponentInsertionOrder(t *testing.T) {
	circ := chainCircuit(t)

	subgraphs, err := DiscoverAll(circ, callset.ModeAny)
	require.NoError(t, err)

	sg := subgraphs[0]

	dblPos, ok := circ.ComponentPosition(sg.Calls[0].Name)
	require.True(t, ok)

	totalPos, ok := circ.ComponentPosition(sg.Calls[1].Name)
	require.True(t, ok)

	assert.Less(t, dblPos, totalPos)
}

func TestDiscoverFromTimer_SeedsFromTimerOutputs(t *testing.T) {
	circ := circuit.NewCircuit()

	ticker := &circuit.Definition{
		ClassName:   "Ticker",
		OutputSpecs: map[string]circuit.OutputSpec{"tick": {TypePath: "f64", Ephemeral: true}},
		TimerCallset: &circuit.CallSpec{
			Name:     "tick",
			Outputs:  map[string]struct{}{"tick": {}},
			Callback: "onTick",
		},
	}
	require.NoError(t, circ.AddDefinition("Ticker", ticker))

	logger := &circuit.Definition{
		ClassName: "Logger",
		Inputs:    map[string]circuit.InputSpec{"in": circuit.NewBasicInput(false, false, false)},
		Callsets: map[string]circuit.CallSpec{
			"update": {Name: "update", WrittenSet: map[string]struct{}{"in": {}}, Callback: "onLog"},
		},
	}
	require.NoError(t, circ.AddDefinition("Logger", logger))

	tick, err := circ.MakeComponent("Ticker", "ticker", nil, nil, nil, nil, false)
	require.NoError(t, err)

	lIn := map[string]circuit.InputWiring{"in": circuit.NewSingleWiring(circuit.NewGraphOutput(tick.Name, "tick"))}
	_, err = circ.MakeComponent("Logger", "logger", lIn, nil, nil, nil, false)
	require.NoError(t, err)

	subgraphs, err := DiscoverAll(circ, callset.ModeAny)
	require.NoError(t, err)
	require.Len(t, subgraphs, 1)

	sg := subgraphs[0]
	assert.Equal(t, EntryTimer, sg.Entry)
	assert.Equal(t, "ticker", sg.EntryName)

	require.Len(t, sg.Calls, 2)
	assert.Equal(t, "ticker", sg.Calls[0].Name)
	assert.Equal(t, "logger", sg.Calls[1].Name)
}

// arrayInputCircuit wires a single Array input ("batch", fields x and y)
// from two distinct externals into one component, to exercise mode's
// any/all rule over an input slot's multiple wired sources (§9). Only
// external "x" is ever written by the call group, so "y"'s source is never
// fresh.
func arrayInputCircuit(t *testing.T) *circuit.Circuit {
	t.Helper()

	circ := circuit.NewCircuit()

	aggregator := &circuit.Definition{
		ClassName: "Aggregator",
		Inputs:    map[string]circuit.InputSpec{"batch": circuit.NewArrayInput([]string{"x", "y"}, false, false, false)},
		OutputSpecs: map[string]circuit.OutputSpec{
			"total": {TypePath: "f64", Ephemeral: true},
		},
		Callsets: map[string]circuit.CallSpec{
			"update": {Name: "update", WrittenSet: map[string]struct{}{"batch": {}}, Outputs: map[string]struct{}{"total": {}}, Callback: "onUpdate"},
		},
	}
	require.NoError(t, circ.AddDefinition("Aggregator", aggregator))

	_, err := circ.GetExternal("x", "f64", false)
	require.NoError(t, err)

	_, err = circ.GetExternal("y", "f64", false)
	require.NoError(t, err)

	inputs := map[string]circuit.InputWiring{
		"batch": circuit.NewArrayWiring([]map[string]circuit.ValueRef{
			{"x": circuit.NewExternalOutput("x"), "y": circuit.NewExternalOutput("y")},
		}),
	}
	_, err = circ.MakeComponent("Aggregator", "agg", inputs, nil, nil, nil, false)
	require.NoError(t, err)

	require.NoError(t, circ.AddCallStruct("XUpdate", &circuit.CallStruct{
		Name:   "XUpdate",
		Fields: []circuit.CallStructField{{Name: "x", Type: "f64"}},
	}))
	require.NoError(t, circ.AddCallGroup("onX", &circuit.CallGroup{
		Name:       "onX",
		StructName: "XUpdate",
		Bindings:   map[string]string{"x": "x"},
	}))

	return circ
}

func TestDiscoverAll_ModeAnyFiresWhenOnlyOneArraySourceFresh(t *testing.T) {
	circ := arrayInputCircuit(t)

	subgraphs, err := DiscoverAll(circ, callset.ModeAny)
	require.NoError(t, err)
	require.Len(t, subgraphs, 1)

	require.Len(t, subgraphs[0].Calls, 1)
	assert.Equal(t, "agg", subgraphs[0].Calls[0].Name)
}

func TestDiscoverAll_ModeAllRequiresEveryArraySourceFresh(t *testing.T) {
	circ := arrayInputCircuit(t)

	subgraphs, err := DiscoverAll(circ, callset.ModeAll)
	require.NoError(t, err)
	require.Len(t, subgraphs, 1)

	// "y"'s source is never written by the call group, so under ModeAll
	// the batch input is never satisfied and agg never fires.
	assert.Empty(t, subgraphs[0].Calls)
}
