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
package context

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataflowc/circuitc/pkg/circuit"
)

// drain pops the active stack back to empty, used to isolate each test from
// leftover state left behind by a failing prior test (the stack is a package
// level global, shared across this file's tests).
func drain() {
	for {
		if _, ok := Current(); !ok {
			return
		}

		Pop()
	}
}

func TestPushPop_BasicScoping(t *testing.T) {
	defer drain()

	circ := circuit.NewCircuit()

	_, ok := Current()
	assert.False(t, ok)

	require.NoError(t, Push(circ))

	cur, ok := Current()
	require.True(t, ok)
	assert.Same(t, circ, cur)

	assert.Same(t, circ, Pop())

	_, ok = Current()
	assert.False(t, ok)
}

func TestPush_RejectsSelfReentry(t *testing.T) {
	defer drain()

	circ := circuit.NewCircuit()
	require.NoError(t, Push(circ))

	err := Push(circ)
	require.Error(t, err)

	Pop()
}

func TestPush_AllowsNestingDistinctCircuit(t *testing.T) {
	defer drain()

	outer := circuit.NewCircuit()
	inner := circuit.NewCircuit()

	require.NoError(t, Push(outer))
	require.NoError(t, Push(inner))

	cur, ok := Current()
	require.True(t, ok)
	assert.Same(t, inner, cur)

	assert.Same(t, inner, Pop())

	cur, ok = Current()
	require.True(t, ok)
	assert.Same(t, outer, cur)

	Pop()
}

func TestWith_PopsOnNormalReturn(t *testing.T) {
	defer drain()

	circ := circuit.NewCircuit()

	var sawCurrent *circuit.Circuit

	err := With(circ, func() error {
		cur, _ := Current()
		sawCurrent = cur

		return nil
	})

	require.NoError(t, err)
	assert.Same(t, circ, sawCurrent)

	_, ok := Current()
	assert.False(t, ok)
}

func TestWith_PropagatesFnError(t *testing.T) {
	defer drain()

	circ := circuit.NewCircuit()
	sentinel := errors.New("boom")

	err := With(circ, func() error { return sentinel })
	assert.Equal(t, sentinel, err)

	_, ok := Current()
	assert.False(t, ok)
}

func TestWith_PopsEvenWhenFnPanics(t *testing.T) {
	defer drain()

	circ := circuit.NewCircuit()

	assert.Panics(t, func() {
		_ = With(circ, func() error {
			panic("boom")
		})
	})

	_, ok := Current()
	assert.False(t, ok)
}
