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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSimulatedClockJiffiesAreHZScaled(t *testing.T) {
	epoch := time.Unix(0, 0)
	sc := NewSimulatedClock(epoch)
	assert.EqualValues(t, 0, sc.Jiffies())

	sc.AdvanceTime(time.Second)
	assert.EqualValues(t, HZ, sc.Jiffies())

	sc.AdvanceTime(500 * time.Millisecond)
	assert.EqualValues(t, HZ+HZ/2, sc.Jiffies())
}

func TestFakeClockJiffiesAlwaysZero(t *testing.T) {
	c := &FakeClock{Fixed: time.Now()}
	assert.EqualValues(t, 0, c.Jiffies())
}
