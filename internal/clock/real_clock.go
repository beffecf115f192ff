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

import "time"

// RealClock implements Clock on top of the wall clock.
type RealClock struct {
	epoch time.Time
}

var _ Clock = RealClock{}

// NewRealClock returns a RealClock whose jiffies epoch is the moment of
// construction.
func NewRealClock() RealClock {
	return RealClock{epoch: time.Now()}
}

// Now returns the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// After notifies on the returned channel after d has elapsed.
func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Jiffies returns ticks elapsed since the clock was constructed.
func (c RealClock) Jiffies() uint64 {
	return jiffiesSince(c.epoch, time.Now())
}
