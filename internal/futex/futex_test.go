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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelsim/coresys/internal/clock"
	"github.com/kernelsim/coresys/internal/collab"
)

func newTestTable(t *testing.T) (*Table, collab.UserMemory) {
	t.Helper()
	tbl, mem, _ := newTestTableWithClock(t)
	return tbl, mem
}

func newTestTableWithClock(t *testing.T) (*Table, collab.UserMemory, *clock.SimulatedClock) {
	t.Helper()
	mem := collab.NewFakeUserMemory(4096)
	clk := clock.NewSimulatedClock(time.Unix(0, 0))
	timer := collab.ClockTimerSource{Clock: clk}
	return NewTable(mem, timer), mem, clk
}

const allOnes = ^uint32(0)

func privateKey(addr uint64) Key {
	return Key{Kind: KeyPrivate, AddressSpace: 1, Base: addr, PageOffset: 0}
}

func TestWakeWaitPairing(t *testing.T) {
	// P1: a waiter parked on key returns success once a matching wake
	// arrives.
	tbl, mem := newTestTable(t)
	require.NoError(t, mem.WriteU32(0, 0))

	key := privateKey(0)
	done := make(chan Outcome, 1)
	go func() {
		outcome, err := tbl.Wait(context.Background(), key, 0, nil, allOnes)
		require.NoError(t, err)
		done <- outcome
	}()

	waitUntilBucketLen(t, tbl, key, 1)
	n, err := tbl.Wake(key, 1, allOnes)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, OutcomeWake, <-done)
}

func TestTimeoutPrecedence(t *testing.T) {
	// P2: arm a short timeout and issue the wake only after it fires.
	tbl, mem, clk := newTestTableWithClock(t)
	require.NoError(t, mem.WriteU32(0, 0))

	key := privateKey(0)
	timeout := time.Microsecond
	outcomeCh := make(chan Outcome, 1)
	errCh := make(chan error, 1)
	go func() {
		o, err := tbl.Wait(context.Background(), key, 0, &timeout, allOnes)
		outcomeCh <- o
		errCh <- err
	}()

	waitUntilBucketLen(t, tbl, key, 1)
	clk.AdvanceTime(timeout) // fires the armed one-shot timer
	time.Sleep(20 * time.Millisecond) // let the wait goroutine observe the fire

	_, _ = tbl.Wake(key, 1, allOnes) // issued only after the timeout already fired

	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ETIMEDOUT")
}

func TestWakeThreeWaitersNrWakeTwo(t *testing.T) {
	// S4: 3 waiters park; wake(nr_wake=2) wakes exactly 2, leaves 1 parked.
	tbl, mem := newTestTable(t)
	require.NoError(t, mem.WriteU32(0, 0))
	key := privateKey(0)

	var wg sync.WaitGroup
	results := make(chan Outcome, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := tbl.Wait(context.Background(), key, 0, nil, allOnes)
			if err == nil {
				results <- o
			}
		}()
	}
	waitUntilBucketLen(t, tbl, key, 3)

	n, err := tbl.Wake(key, 2, allOnes)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	select {
	case <-results:
	case <-time.After(time.Second):
		t.Fatal("expected first wake")
	}
	select {
	case <-results:
	case <-time.After(time.Second):
		t.Fatal("expected second wake")
	}
	select {
	case <-results:
		t.Fatal("third waiter should remain parked")
	case <-time.After(20 * time.Millisecond):
	}

	// Clean up the remaining waiter so the goroutine doesn't leak past the
	// test.
	_, _ = tbl.Wake(key, 1, allOnes)
	wg.Wait()
}

func TestWakeOpXorEq(t *testing.T) {
	// S5: *uaddr2 = 0b0101; op = {XOR, EQ, oparg=0b0011, cmparg=0b0101}.
	tbl, mem := newTestTable(t)
	require.NoError(t, mem.WriteU32(0, 0))    // uaddr1
	require.NoError(t, mem.WriteU32(4, 0b0101)) // uaddr2

	key1 := privateKey(0)
	key2 := privateKey(4)

	done1 := make(chan Outcome, 1)
	done2 := make(chan Outcome, 1)
	go func() {
		o, _ := tbl.Wait(context.Background(), key1, 0, nil, allOnes)
		done1 <- o
	}()
	go func() {
		o, _ := tbl.Wait(context.Background(), key2, 0b0101, nil, allOnes)
		done2 <- o
	}()
	waitUntilBucketLen(t, tbl, key1, 1)
	waitUntilBucketLen(t, tbl, key2, 1)

	op := WakeOp{Op: opXor, Cmp: cmpEQ, OpArg: 0b0011, CmpArg: 0b0101}
	total, err := tbl.WakeOpExec(key1, key2, 1, 1, op)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	got, err := mem.ReadU32(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b0110), got)

	assert.Equal(t, OutcomeWake, <-done1)
	assert.Equal(t, OutcomeWake, <-done2)
}

func TestRobustListFixupWakesOnOwnerDied(t *testing.T) {
	tbl, mem := newTestTable(t)
	const tid = 42
	const futexAddr = 8
	require.NoError(t, mem.WriteU32(futexAddr, tid|robustWaitersBit))

	key := Key{Kind: KeyPrivate, AddressSpace: 7, Base: futexAddr, PageOffset: 0}
	done := make(chan Outcome, 1)
	go func() {
		o, _ := tbl.Wait(context.Background(), key, tid|robustWaitersBit, nil, allOnes)
		done <- o
	}()
	waitUntilBucketLen(t, tbl, key, 1)

	require.NoError(t, tbl.ExitRobustList(7, tid, []RobustListEntry{{FutexWordAddr: futexAddr}}, nil))

	got, err := mem.ReadU32(futexAddr)
	require.NoError(t, err)
	assert.Equal(t, uint32(robustWaitersBit|robustOwnerDied), got)
	assert.Equal(t, OutcomeWake, <-done)
}

func TestGetFutexKeyRejectsUnalignedAddress(t *testing.T) {
	_, err := GetFutexKey(1, 5, false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EINVAL")
}

func TestGetFutexKeyPrivateSplitsPageOffset(t *testing.T) {
	key, err := GetFutexKey(1, PageSize+16, false, nil)
	require.NoError(t, err)
	assert.Equal(t, KeyPrivate, key.Kind)
	assert.Equal(t, uint64(PageSize), key.Base)
	assert.Equal(t, uint32(16), key.PageOffset)
}

type fakeResolver struct{ vma VMA }

func (f fakeResolver) Resolve(uint64) (VMA, error) { return f.vma, nil }

func TestGetFutexKeySharedFileDerivesFileOffset(t *testing.T) {
	resolver := fakeResolver{vma: VMA{IsFile: true, Dev: 3, Ino: 9, PageOffset: 0}}
	key, err := GetFutexKey(1, 2*PageSize, true, resolver)
	require.NoError(t, err)
	assert.Equal(t, KeySharedFile, key.Kind)
	assert.Equal(t, uint64(3), key.Dev)
	assert.Equal(t, uint64(9), key.Ino)
	assert.Equal(t, uint64(2*PageSize), key.FileOff)
}

func TestRequeueMovesRemainingWaitersWithoutWaking(t *testing.T) {
	tbl, mem := newTestTable(t)
	require.NoError(t, mem.WriteU32(0, 0))
	require.NoError(t, mem.WriteU32(4, 0))
	key1 := privateKey(0)
	key2 := privateKey(4)

	done := make(chan Outcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			o, err := tbl.Wait(context.Background(), key1, 0, nil, allOnes)
			if err == nil {
				done <- o
			}
		}()
	}
	waitUntilBucketLen(t, tbl, key1, 2)

	woken, requeued, err := tbl.Requeue(key1, key2, 1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, woken)
	assert.Equal(t, 1, requeued)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected exactly one wake from requeue")
	}
	waitUntilBucketLen(t, tbl, key2, 1)

	n, err := tbl.Wake(key2, 1, allOnes)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, OutcomeWake, <-done)
}

func waitUntilBucketLen(t *testing.T, tbl *Table, key Key, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		tbl.mu.Lock()
		b, ok := tbl.buckets[key]
		tbl.mu.Unlock()
		if ok && b.len() == n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("bucket never reached length %d", n)
}
