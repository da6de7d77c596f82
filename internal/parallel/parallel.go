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

// Package parallel provides a bounded worker pool for running independent
// subgraphs of a lowered circuit concurrently (§5's optional parallel
// execution path). A Batch is an atomic unit of work (one subgraph's calls,
// or some other caller-chosen grouping) that depends on zero or more other
// batches by job identifier; Exec runs every batch exactly once, starting a
// batch as soon as every job it depends on has completed, bounded by a
// worker limit.
package parallel

import (
	"errors"
	"sync"
)

// Batch is one atomic, indivisible unit of work submitted to Exec.
type Batch interface {
	// Jobs returns the job identifiers this batch produces.
	Jobs() []uint
	// Dependencies returns the job identifiers which must be complete
	// before this batch may run.
	Dependencies() []uint
	// Run executes this batch.
	Run() error
}

// ErrUnsatisfiable is returned when no remaining batch is ready to run and
// none is in flight either, meaning the worklist's declared dependencies
// cannot all be satisfied (a cycle, or a dependency on a job no batch
// produces).
var ErrUnsatisfiable = errors.New("parallel: remaining batches have unsatisfiable dependencies")

// Exec runs worklist to completion using up to workers goroutines at once.
// Workers <= 0 is treated as 1. The first error returned by any batch is
// recorded; once observed, no further batch is started, but every
// already-running batch is allowed to finish before Exec returns that
// error.
func Exec[B Batch](worklist []B, workers int) error {
	if workers <= 0 {
		workers = 1
	}

	done := make([]bool, highestJobID(worklist))
	started := make([]bool, len(worklist))

	var (
		mu        sync.Mutex
		cond      = sync.NewCond(&mu)
		wg        sync.WaitGroup
		sem       = make(chan struct{}, workers)
		firstErr  error
		inFlight  int
		completed int
	)

	isReady := func(b B) bool {
		for _, j := range b.Dependencies() {
			if int(j) >= len(done) || !done[j] {
				return false
			}
		}

		return true
	}

	mu.Lock()

	for completed < len(worklist) {
		if firstErr != nil && inFlight == 0 {
			break
		}

		idx := -1

		if firstErr == nil {
			for i, b := range worklist {
				if !started[i] && isReady(b) {
					idx = i

					break
				}
			}
		}

		if idx < 0 {
			if inFlight == 0 {
				if firstErr == nil {
					firstErr = ErrUnsatisfiable
				}

				break
			}

			cond.Wait()

			continue
		}

		started[idx] = true
		inFlight++
		b := worklist[idx]

		mu.Unlock()
		sem <- struct{}{}
		wg.Add(1)

		go func(b B) {
			defer wg.Done()
			defer func() { <-sem }()

			runErr := b.Run()

			mu.Lock()
			defer mu.Unlock()

			inFlight--
			completed++

			if runErr != nil {
				if firstErr == nil {
					firstErr = runErr
				}
			} else {
				for _, j := range b.Jobs() {
					if int(j) < len(done) {
						done[j] = true
					}
				}
			}

			cond.Broadcast()
		}(b)

		mu.Lock()
	}

	mu.Unlock()
	wg.Wait()

	return firstErr
}

// highestJobID returns one past the largest job identifier any batch in
// worklist produces, used to size the completion-tracking slice.
func highestJobID[B Batch](worklist []B) uint {
	var n uint

	for _, b := range worklist {
		for _, j := range b.Jobs() {
			if j+1 > n {
				n = j + 1
			}
		}
	}

	return n
}
