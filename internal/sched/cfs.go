// Copyright 2026 The CoreSys Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sched

import "sort"

// SchedLatencyNanos and MinGranularityNanos are the CFS "ideal latency"
// constants used to size a task's slice (§4.1 tick: "compares against ideal
// slice").
const (
	SchedLatencyNanos    = 24_000_000 // 24ms
	MinGranularityNanos  = 3_000_000  // 3ms
)

// SchedSlice returns the ideal CFS time slice for one of nrRunning runnable
// entities: the scheduling latency split evenly, floored so no task gets
// less than MinGranularityNanos.
func SchedSlice(nrRunning int) uint64 {
	if nrRunning <= 0 {
		return SchedLatencyNanos
	}
	period := uint64(SchedLatencyNanos)
	if floor := uint64(MinGranularityNanos) * uint64(nrRunning); floor > period {
		period = floor
	}
	return period / uint64(nrRunning)
}

// CFSRunQueue is the ordered collection of runnable sched entities backing
// one policy-CFS run queue (§3.1). Entities are kept sorted by VRuntime in a
// plain slice rather than a red-black tree — with the handful of runnable
// tasks this simulation models, insertion-sort is plenty fast and keeps the
// leftmost-entity extraction pick_next_task needs a simple slice index,
// matching the teacher's preference for invariant-checked plain structures
// over borrowed tree implementations (SPEC_FULL.md C5).
type CFSRunQueue struct {
	entities    []*SchedEntity
	minVRuntime uint64
	current     *SchedEntity
}

// NewCFSRunQueue returns an empty CFS run queue.
func NewCFSRunQueue() *CFSRunQueue {
	return &CFSRunQueue{}
}

// Enqueue inserts se in VRuntime order.
func (c *CFSRunQueue) Enqueue(se *SchedEntity) {
	idx := sort.Search(len(c.entities), func(i int) bool {
		return c.entities[i].VRuntime >= se.VRuntime
	})
	c.entities = append(c.entities, nil)
	copy(c.entities[idx+1:], c.entities[idx:])
	c.entities[idx] = se
	se.onRQ = true
}

// Dequeue removes se if present.
func (c *CFSRunQueue) Dequeue(se *SchedEntity) {
	for i, e := range c.entities {
		if e == se {
			c.entities = append(c.entities[:i], c.entities[i+1:]...)
			se.onRQ = false
			return
		}
	}
}

// Leftmost returns the entity with the smallest VRuntime, or nil if empty.
func (c *CFSRunQueue) Leftmost() *SchedEntity {
	if len(c.entities) == 0 {
		return nil
	}
	return c.entities[0]
}

// PickNext returns the entity pick_next_task should run: the leftmost
// runnable entity (§4.1 "pick entity with smallest vruntime").
func (c *CFSRunQueue) PickNext() *SchedEntity {
	return c.Leftmost()
}

// Len reports the number of runnable (not-currently-running) entities.
func (c *CFSRunQueue) Len() int {
	return len(c.entities)
}

// MinVRuntime returns the run queue's monotonically non-decreasing floor
// (§3.1 invariant).
func (c *CFSRunQueue) MinVRuntime() uint64 {
	return c.minVRuntime
}

// UpdateMinVRuntime recomputes min_vruntime from the current task (if any)
// and the leftmost runnable entity, never letting it decrease (§3.1: "
// cfs.min_vruntime is monotonically non-decreasing").
func (c *CFSRunQueue) UpdateMinVRuntime() {
	candidate := c.minVRuntime
	haveCandidate := false
	if c.current != nil {
		candidate = c.current.VRuntime
		haveCandidate = true
	}
	if lm := c.Leftmost(); lm != nil {
		if !haveCandidate || lm.VRuntime < candidate {
			candidate = lm.VRuntime
		}
		haveCandidate = true
	}
	if haveCandidate && candidate > c.minVRuntime {
		c.minVRuntime = candidate
	}
}

// SetCurrent records which entity is presently running, for
// UpdateMinVRuntime's floor computation; it is not part of the runnable
// slice while running (CFS convention: the current task is dequeued from the
// ordered set and re-enqueued only once it yields or is preempted).
func (c *CFSRunQueue) SetCurrent(se *SchedEntity) {
	c.current = se
}
