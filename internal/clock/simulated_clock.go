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

package clock

import (
	"sync"
	"time"
)

// afterRequest is a pending After() call waiting for simulated time to catch
// up to targetTime.
type afterRequest struct {
	targetTime time.Time
	ch         chan time.Time
}

// SimulatedClock is a Clock whose notion of "now" only moves when AdvanceTime
// or SetTime is called. This is what makes futex timeout-vs-wake races (P2)
// deterministic in tests: the test controls exactly when the timeout fires
// relative to when the wake is delivered, instead of racing real goroutines
// against a real timer.
//
// The zero value is a clock fixed at the zero time.
type SimulatedClock struct {
	mu      sync.Mutex
	epoch   time.Time
	t       time.Time
	pending []*afterRequest
}

var _ Clock = &SimulatedClock{}

// NewSimulatedClock returns a clock fixed at startTime, with startTime also
// serving as the jiffies epoch.
func NewSimulatedClock(startTime time.Time) *SimulatedClock {
	return &SimulatedClock{epoch: startTime, t: startTime}
}

// Now returns the current simulated time.
func (sc *SimulatedClock) Now() time.Time {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.t
}

// Jiffies returns ticks elapsed since the clock was created.
func (sc *SimulatedClock) Jiffies() uint64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return jiffiesSince(sc.epoch, sc.t)
}

// SetTime moves the clock to t and fires any pending After calls whose
// target time has now passed.
func (sc *SimulatedClock) SetTime(t time.Time) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.t = t
	sc.processPending()
}

// AdvanceTime moves the clock forward by d and fires any pending After calls
// whose target time has now passed.
func (sc *SimulatedClock) AdvanceTime(d time.Duration) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.t = sc.t.Add(d)
	sc.processPending()
}

// After returns a channel that fires once the simulated clock reaches
// now+d, delivering now+d. A non-positive d is delivered synchronously here,
// carrying the current simulated time.
func (sc *SimulatedClock) After(d time.Duration) <-chan time.Time {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	ch := make(chan time.Time, 1)
	target := sc.t.Add(d)
	if !target.After(sc.t) {
		ch <- sc.t
		return ch
	}

	sc.pending = append(sc.pending, &afterRequest{targetTime: target, ch: ch})
	return ch
}

// processPending delivers and removes every pending request whose target
// time is now due. Caller must hold sc.mu.
func (sc *SimulatedClock) processPending() {
	remaining := sc.pending[:0]
	for _, r := range sc.pending {
		if !r.targetTime.After(sc.t) {
			r.ch <- r.targetTime
		} else {
			remaining = append(remaining, r)
		}
	}
	sc.pending = remaining
}
