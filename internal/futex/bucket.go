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

package futex

import (
	"sync"

	"github.com/kernelsim/coresys/common"
)

// Outcome is the result delivered to a parked waiter (§4.3 futex_wait).
type Outcome int

const (
	OutcomeWake Outcome = iota
	OutcomeTimeout
	OutcomeInterrupted
)

// waiter is one parked futex_wait call (§4.3). result is buffered so a
// waker never blocks delivering it.
type waiter struct {
	key    Key
	bitset uint32
	result chan Outcome
}

// bucket is the FIFO of waiters parked on a single Key (§4.3 concurrency
// contract: "per-bucket operations are atomic under the bucket's own
// lock").
type bucket struct {
	mu      sync.Mutex
	waiters *common.FIFO[*waiter]
}

func newBucket() *bucket {
	return &bucket{waiters: common.NewFIFO[*waiter]()}
}

// drainMatching pops up to limit waiters whose bitset intersects mask,
// pushing non-matching ones back to the tail in a single pass (§4.3
// futex_wake "single-pass stability").
func (b *bucket) drainMatching(limit int, mask uint32) []*waiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.waiters.DrainMatching(limit, func(w *waiter) bool {
		return w.bitset&mask != 0
	})
}

func (b *bucket) push(w *waiter) {
	b.mu.Lock()
	b.waiters.PushBack(w)
	b.mu.Unlock()
}

func (b *bucket) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.waiters.Len()
}

// remove deletes w from the bucket if still present, reporting whether it
// was found (i.e. still parked rather than already woken/moved).
func (b *bucket) remove(w *waiter) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	all := b.waiters.DrainAll()
	found := false
	for _, cand := range all {
		if cand == w {
			found = true
			continue
		}
		b.waiters.PushBack(cand)
	}
	return found
}
