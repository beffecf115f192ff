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

import (
	"sync"
	"sync/atomic"

	"github.com/kernelsim/coresys/internal/clock"
)

// LoadFreqJiffies is LOAD_FREQ = 5*HZ+1 (§4.1 load accounting): the sampling
// period for the global load-average counter, deliberately not a round
// multiple of HZ so the sample phase drifts relative to any periodic load
// spike.
const LoadFreqJiffies = 5*clock.HZ + 1

// loadAccountant implements §4.1 calculate_global_load_tick, grounded on the
// teacher's ratelimit.TokenBucket: both are tick-driven accumulators that
// only act once a time-gated threshold has elapsed, repurposed here from
// token replenishment to load-average sampling (SPEC_FULL.md C5).
type loadAccountant struct {
	mu          sync.Mutex
	lastJiffies uint64
	lastSample  int64
	global      atomic.Int64
	primed      bool
}

// CalculateGlobalLoadTick implements §4.1: "adds the delta of (nr_running -
// adjust) + nr_uninterruptible vs. last sample into a global counter once
// per LOAD_FREQ jiffies". adjust corrects for a task that woke up on this
// tick and would otherwise be double-counted against the previous sample.
func (s *Scheduler) CalculateGlobalLoadTick(nowJiffies uint64, adjust int64) {
	la := &s.load
	la.mu.Lock()
	defer la.mu.Unlock()

	if la.primed && nowJiffies-la.lastJiffies < LoadFreqJiffies {
		return
	}
	la.lastJiffies = nowJiffies
	la.primed = true

	var total int64
	for _, rq := range s.rqs {
		total += int64(rq.NrRunning()) + int64(rq.NrUninterruptible())
	}
	total -= adjust

	delta := total - la.lastSample
	la.lastSample = total
	la.global.Add(delta)
}

// GlobalLoad returns the current global load-average accumulator value.
func (s *Scheduler) GlobalLoad() int64 {
	return s.load.global.Load()
}
