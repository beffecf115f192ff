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

// Package clock supplies the monotonic time source (C1) that drives the
// scheduler tick and futex timeouts. All four subsystems take a Clock as a
// constructor dependency rather than calling time.Now directly, so tests can
// swap in SimulatedClock to make timeout races deterministic.
package clock

import "time"

// HZ is the simulated scheduler tick frequency, in ticks per second.
const HZ = 1000

// Clock is the narrow time source consumed by the scheduler (tick
// accounting) and the futex subsystem (wait timeouts).
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the time once d has elapsed.
	After(d time.Duration) <-chan time.Time

	// Jiffies returns the number of HZ-scaled ticks since the clock's epoch.
	// It is monotonically non-decreasing for a given clock instance.
	Jiffies() uint64
}

// jiffiesSince converts an elapsed duration into HZ-scaled ticks.
func jiffiesSince(epoch, now time.Time) uint64 {
	if now.Before(epoch) {
		return 0
	}
	return uint64(now.Sub(epoch) / (time.Second / HZ))
}
