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

// FakeClock reports a fixed Now() but still sleeps for real on After. Useful
// for tests that care about ordering but not about wall-clock precision.
type FakeClock struct {
	Fixed    time.Time
	WaitTime time.Duration
}

var _ Clock = &FakeClock{}

// Now returns the fixed time this clock was configured with.
func (c *FakeClock) Now() time.Time {
	return c.Fixed
}

// After sleeps for WaitTime and then delivers Now().
func (c *FakeClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	go func() {
		time.Sleep(c.WaitTime)
		ch <- c.Now()
	}()
	return ch
}

// Jiffies is always zero: a fixed clock never advances.
func (c *FakeClock) Jiffies() uint64 {
	return 0
}
