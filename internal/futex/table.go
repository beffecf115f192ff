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
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kernelsim/coresys/internal/collab"
	"github.com/kernelsim/coresys/internal/errno"
)

// Table owns the global key→bucket map (§4.3 concurrency contract: "Bucket
// lookup holds a map-level lock only long enough to find/create the
// bucket").
type Table struct {
	mem   collab.UserMemory
	timer collab.TimerSource

	mu      sync.Mutex
	buckets map[Key]*bucket
}

// NewTable constructs an empty futex table backed by mem for user-memory
// reads/CAS and timer for wait timeouts.
func NewTable(mem collab.UserMemory, timer collab.TimerSource) *Table {
	return &Table{mem: mem, timer: timer, buckets: make(map[Key]*bucket)}
}

func (t *Table) bucketFor(key Key) *bucket {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.buckets[key]
	if !ok {
		b = newBucket()
		t.buckets[key] = b
	}
	return b
}

func (t *Table) dropIfEmpty(key Key, b *bucket) {
	if b.len() > 0 {
		return
	}
	t.mu.Lock()
	if cur, ok := t.buckets[key]; ok && cur == b && b.len() == 0 {
		delete(t.buckets, key)
	}
	t.mu.Unlock()
}

func addrOf(key Key) uint64 { return key.Base + uint64(key.PageOffset) }

// Wait parks the caller on key until woken, timed out, or (in this
// simulation) ctx is cancelled in place of a pending signal (§4.3
// futex_wait).
func (t *Table) Wait(ctx context.Context, key Key, val uint32, timeout *time.Duration, bitset uint32) (Outcome, error) {
	if bitset == 0 {
		return 0, fmt.Errorf("zero bitset: %w", errno.EINVAL)
	}

	cur, err := t.mem.ReadU32(addrOf(key))
	if err != nil {
		return 0, err
	}
	if cur != val {
		return 0, fmt.Errorf("value changed before wait: %w", errno.EAGAIN)
	}

	if timeout != nil && *timeout <= 0 {
		return 0, fmt.Errorf("deadline already passed: %w", errno.ETIMEDOUT)
	}

	b := t.bucketFor(key)
	w := &waiter{key: key, bitset: bitset, result: make(chan Outcome, 1)}

	// The sleep mark (enqueue) happens before the timer is armed, matching
	// §4.3's race-avoidance ordering: a short timeout must never fire before
	// the waiter is actually parked.
	b.push(w)

	var cancelTimer func()
	var fireCh <-chan struct{}
	if timeout != nil {
		fireCh, cancelTimer = t.timer.ArmOneShot(int64(*timeout))
	}

	select {
	case outcome := <-w.result:
		if cancelTimer != nil {
			cancelTimer()
		}
		return outcome, nil
	case <-fireChOrNil(fireCh):
		// Highest priority: if we also got woken concurrently, prefer the
		// timeout per P2 only when the deadline is the one that fired first;
		// remove() tells us whether we won the race to leave the bucket.
		if !b.remove(w) {
			// Already popped by a waker racing us; honor that wake instead.
			return <-w.result, nil
		}
		return 0, fmt.Errorf("wait deadline exceeded: %w", errno.ETIMEDOUT)
	case <-ctx.Done():
		if !b.remove(w) {
			return <-w.result, nil
		}
		return 0, fmt.Errorf("wait interrupted: %w", errno.EINTR)
	}
}

func fireChOrNil(ch <-chan struct{}) <-chan struct{} {
	return ch
}

// Wake wakes up to nrWake waiters on key matching bitset, per the
// single-pass bucket scan (§4.3 futex_wake). nrWake == 0 behaves as 1.
func (t *Table) Wake(key Key, nrWake int, bitset uint32) (int, error) {
	if bitset == 0 {
		return 0, fmt.Errorf("zero bitset: %w", errno.EINVAL)
	}
	if nrWake == 0 {
		nrWake = 1
	}

	t.mu.Lock()
	b, ok := t.buckets[key]
	t.mu.Unlock()
	if !ok {
		return 0, nil
	}

	woken := b.drainMatching(nrWake, bitset)
	for _, w := range woken {
		w.result <- OutcomeWake
	}
	t.dropIfEmpty(key, b)
	return len(woken), nil
}

// Requeue wakes up to nrWake waiters on key1 then moves up to nrRequeue of
// the remaining waiters to key2 without waking them (§4.3 futex_requeue).
func (t *Table) Requeue(key1, key2 Key, nrWake, nrRequeue int, cmpval *uint32) (woken, requeued int, err error) {
	if cmpval != nil {
		cur, rerr := t.mem.ReadU32(addrOf(key1))
		if rerr != nil {
			return 0, 0, rerr
		}
		if cur != *cmpval {
			return 0, 0, fmt.Errorf("value changed before requeue: %w", errno.EAGAIN)
		}
	}

	t.mu.Lock()
	b1, ok := t.buckets[key1]
	t.mu.Unlock()
	if !ok {
		return 0, 0, nil
	}

	wokenList := b1.drainMatching(nrWake, ^uint32(0))
	for _, w := range wokenList {
		w.result <- OutcomeWake
	}
	woken = len(wokenList)

	if nrRequeue > 0 {
		moved := b1.drainMatching(nrRequeue, ^uint32(0))
		if len(moved) > 0 {
			b2 := t.bucketFor(key2)
			for _, w := range moved {
				w.key = key2
				b2.push(w)
			}
			requeued = len(moved)
		}
	}

	t.dropIfEmpty(key1, b1)
	return woken, requeued, nil
}
