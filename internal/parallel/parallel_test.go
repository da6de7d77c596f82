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
package parallel

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBatch struct {
	jobs    []uint
	deps    []uint
	run     func() error
	started *int32
}

func (b *testBatch) Jobs() []uint         { return b.jobs }
func (b *testBatch) Dependencies() []uint { return b.deps }

func (b *testBatch) Run() error {
	if b.started != nil {
		atomic.AddInt32(b.started, 1)
	}

	if b.run != nil {
		return b.run()
	}

	return nil
}

func TestExec_IndependentBatchesAllRun(t *testing.T) {
	var mu sync.Mutex

	var ran []int

	worklist := make([]*testBatch, 5)
	for i := range worklist {
		i := i
		worklist[i] = &testBatch{
			jobs: []uint{uint(i)},
			run: func() error {
				mu.Lock()
				ran = append(ran, i)
				mu.Unlock()

				return nil
			},
		}
	}

	require.NoError(t, Exec(worklist, 3))
	assert.Len(t, ran, 5)
}

func TestExec_DependentBatchesRunInOrder(t *testing.T) {
	var mu sync.Mutex

	var order []string

	record := func(name string) func() error {
		return func() error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()

			return nil
		}
	}

	// c depends on b, b depends on a; submitted in reverse order to prove
	// Exec respects Dependencies() rather than worklist order.
	worklist := []*testBatch{
		{jobs: []uint{2}, deps: []uint{1}, run: record("c")},
		{jobs: []uint{1}, deps: []uint{0}, run: record("b")},
		{jobs: []uint{0}, run: record("a")},
	}

	require.NoError(t, Exec(worklist, 4))
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestExec_FirstErrorReturned(t *testing.T) {
	var finished int32

	failing := &testBatch{
		jobs: []uint{0},
		run:  func() error { return errors.New("batch failed") },
	}
	independent := &testBatch{
		jobs:    []uint{1},
		started: &finished,
	}

	err := Exec([]*testBatch{failing, independent}, 2)
	require.Error(t, err)
	assert.Equal(t, "batch failed", err.Error())
}

func TestExec_UnsatisfiableDependencyFails(t *testing.T) {
	worklist := []*testBatch{
		{jobs: []uint{0}, deps: []uint{99}}, // no batch ever produces job 99
	}

	err := Exec(worklist, 1)
	assert.ErrorIs(t, err, ErrUnsatisfiable)
}

func TestExec_ZeroOrNegativeWorkersTreatedAsOne(t *testing.T) {
	worklist := []*testBatch{
		{jobs: []uint{0}},
		{jobs: []uint{1}},
	}

	require.NoError(t, Exec(worklist, 0))
	require.NoError(t, Exec(worklist, -5))
}
