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
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kernelsim/coresys/common"
	"github.com/kernelsim/coresys/internal/clock"
	"github.com/kernelsim/coresys/internal/collab"
	"github.com/kernelsim/coresys/internal/logger"
)

// EnqueueFlag is the flag set accepted by RunQueue.Enqueue (§4.1).
type EnqueueFlag uint32

const (
	EnqueueWakeup EnqueueFlag = 1 << iota
	EnqueueRestore
	EnqueueMove
	EnqueueMigrated
	EnqueueNoClock
	EnqueueInitial
)

// DequeueFlag is the flag set accepted by RunQueue.Dequeue (§4.1).
type DequeueFlag uint32

const (
	DequeueSleep DequeueFlag = 1 << iota
	DequeueSave
	DequeueMove
	DequeueNoClock
)

// rq clock-update flags (§4.1 __schedule step 2-3), named after the kernel's
// RQCF_* bits.
const (
	rqcfReqSkip uint8 = 1 << iota
	rqcfActSkip
	rqcfUpdated
)

// ownerLock is the re-entrant-by-owner-CPU spinlock described in §3.1 and §9
// "Interior mutability through IRQ-off zones": the CPU that owns this run
// queue may re-enter while already holding the lock (e.g. an IRQ handler
// invoking a wakeup mid-schedule); any other CPU must acquire it normally and
// blocks until released.
type ownerLock struct {
	mu    sync.Mutex
	owner atomic.Int32 // CPU id currently holding the lock, or -1
	depth int
}

func newOwnerLock() *ownerLock {
	l := &ownerLock{}
	l.owner.Store(-1)
	return l
}

func (l *ownerLock) Lock(cpu int) {
	if l.owner.Load() == int32(cpu) {
		l.depth++
		return
	}
	l.mu.Lock()
	l.owner.Store(int32(cpu))
	l.depth = 1
}

func (l *ownerLock) Unlock(cpu int) {
	if l.owner.Load() != int32(cpu) {
		panic("sched: rq lock unlocked by non-owner CPU")
	}
	l.depth--
	if l.depth == 0 {
		l.owner.Store(-1)
		l.mu.Unlock()
	}
}

// RunQueue is one CPU's run queue (§3.1): the currently running task, the
// idle task, the embedded CFS run queue, aggregate counters, rq clock, and
// the re-entrant lock.
type RunQueue struct {
	cpu  int
	lock *ownerLock

	current *PCB
	idle    *PCB
	cfs     *CFSRunQueue
	classQ  map[Policy]*common.FIFO[*PCB] // RT and FIFO policy queues

	nrRunning         atomic.Int32
	nrUninterruptible atomic.Int32

	clockNow         uint64 // rq.clock: ns
	clockTask        uint64 // rq.clock_task: ns, irq-time excluded
	clockUpdateFlags uint8

	clk clock.Clock
	irq collab.IRQController
	log *slog.Logger
}

// NewRunQueue constructs the run queue for cpu, with idle as its idle-task
// fallback (§4.1 "pick_next_task returning no CFS task falls back to IDLE
// unconditionally").
func NewRunQueue(cpu int, clk clock.Clock, irq collab.IRQController, idle *PCB) *RunQueue {
	rq := &RunQueue{
		cpu:    cpu,
		lock:   newOwnerLock(),
		idle:   idle,
		cfs:    NewCFSRunQueue(),
		classQ: map[Policy]*common.FIFO[*PCB]{
			PolicyRT:    common.NewFIFO[*PCB](),
			PolicyFIFO:  common.NewFIFO[*PCB](),
		},
		clk: clk,
		irq: irq,
		log: logger.New("sched"),
	}
	rq.current = idle
	if clk != nil {
		rq.clockNow = uint64(clk.Now().UnixNano())
		rq.clockTask = rq.clockNow
	}
	return rq
}

// CPU returns the run queue's owning CPU id.
func (rq *RunQueue) CPU() int { return rq.cpu }

// NrRunning returns the count of PCBs with OnRQ == OnRQQueued on this rq
// (§3.1 invariant).
func (rq *RunQueue) NrRunning() int32 { return rq.nrRunning.Load() }

// NrUninterruptible returns the count of tasks dequeued into uninterruptible
// sleep from this rq.
func (rq *RunQueue) NrUninterruptible() int32 { return rq.nrUninterruptible.Load() }

// Current returns the PCB currently scheduled on this rq.
func (rq *RunQueue) Current() *PCB { return rq.current }

// lockFrom/unlockFrom wrap the owner lock for a caller identifying itself as
// callerCPU; callerCPU == rq.cpu takes the re-entrant fast path, any other
// value acquires the lock as a genuinely different CPU would (§3.1: "a
// different CPU must acquire the lock normally").
func (rq *RunQueue) lockFrom(callerCPU int) { rq.lock.Lock(callerCPU) }
func (rq *RunQueue) unlockFrom(callerCPU int) { rq.lock.Unlock(callerCPU) }

// RequestSkipClockUpdate marks that the next updateRqClock should be treated
// as already up to date without re-reading the clocksource (used by
// preempt-disable blocks that bracket a clock update they already performed).
func (rq *RunQueue) RequestSkipClockUpdate() {
	rq.clockUpdateFlags |= rqcfReqSkip
}

// rotateClockUpdateFlags implements §4.1 __schedule step 2: "Rotate
// clock-update flags left by one (so RQCF_ACT_SKIP from a prior
// preempt-disable block clears automatically)".
func (rq *RunQueue) rotateClockUpdateFlags() {
	rq.clockUpdateFlags = (rq.clockUpdateFlags << 1) & (rqcfReqSkip | rqcfActSkip)
}

// updateRqClock implements §4.1 __schedule step 3: advances clock and
// clock_task from the clocksource unless a skip was requested, idempotent
// within one schedule pass via RQCF_UPDATED (§5 ordering guarantees).
func (rq *RunQueue) updateRqClock() {
	if rq.clockUpdateFlags&rqcfUpdated != 0 {
		return
	}
	if rq.clockUpdateFlags&rqcfActSkip != 0 {
		return
	}
	if rq.clk == nil {
		return
	}
	now := uint64(rq.clk.Now().UnixNano())
	delta := now - rq.clockNow
	rq.clockNow = now
	// Real kernels subtract accumulated irq-time from clock_task; this
	// simulation has no IRQ-time accounting collaborator, so clock_task
	// tracks clock exactly.
	rq.clockTask += delta
	rq.clockUpdateFlags |= rqcfUpdated
}

// Enqueue inserts pcb into its policy's queue (§4.1 enqueue).
func (rq *RunQueue) Enqueue(callerCPU int, pcb *PCB, flags EnqueueFlag) {
	rq.lockFrom(callerCPU)
	defer rq.unlockFrom(callerCPU)
	rq.enqueueLocked(pcb, flags)
}

func (rq *RunQueue) enqueueLocked(pcb *PCB, flags EnqueueFlag) {
	switch pcb.Policy {
	case PolicyCFS:
		rq.cfs.Enqueue(&pcb.SE)
	case PolicyRT, PolicyFIFO:
		rq.classQ[pcb.Policy].PushBack(pcb)
	default:
		rq.log.Warn("enqueue of IDLE-policy task ignored", slog.Int("pid", pcb.PID))
		return
	}
	pcb.OnRQ = OnRQQueued
	pcb.CPU = rq.cpu
	pcb.rq = rq
	if flags&EnqueueRestore == 0 {
		pcb.LastQueued = rq.clockNow
	}
	rq.nrRunning.Add(1)
}

// Dequeue removes pcb from its policy's queue (§4.1 dequeue).
func (rq *RunQueue) Dequeue(callerCPU int, pcb *PCB, flags DequeueFlag) {
	rq.lockFrom(callerCPU)
	defer rq.unlockFrom(callerCPU)
	rq.dequeueLocked(pcb, flags)
}

func (rq *RunQueue) dequeueLocked(pcb *PCB, flags DequeueFlag) {
	switch pcb.Policy {
	case PolicyCFS:
		rq.cfs.Dequeue(&pcb.SE)
	case PolicyRT, PolicyFIFO:
		rq.classQ[pcb.Policy].DrainMatching(1, func(cand *PCB) bool { return cand == pcb })
	default:
		return
	}
	pcb.OnRQ = OnRQUnbound
	if flags&DequeueSleep != 0 && pcb.State == StateUninterruptibleSleep {
		rq.nrUninterruptible.Add(1)
	}
	rq.nrRunning.Add(-1)
}

// Activate is the high-level wakeup entry point: enqueue plus the on-rq
// state transition to runnable (§4.1 activate/deactivate; §6.2 ABI
// activate_task).
func (rq *RunQueue) Activate(callerCPU int, pcb *PCB) {
	rq.lockFrom(callerCPU)
	defer rq.unlockFrom(callerCPU)
	rq.enqueueLocked(pcb, EnqueueWakeup)
	pcb.State = StateRunnable
	rq.checkPreemptCurrentLocked(pcb)
}

// Deactivate dequeues pcb and transitions it to the given sleep state
// (§6.2 deactivate_task).
func (rq *RunQueue) Deactivate(callerCPU int, pcb *PCB, sleepState TaskState) {
	rq.lockFrom(callerCPU)
	defer rq.unlockFrom(callerCPU)
	pcb.State = sleepState
	rq.dequeueLocked(pcb, DequeueSleep)
}

// CheckPreemptCurrent requests resched if pcb should preempt rq's current
// task (§4.1 check_preempt_current).
func (rq *RunQueue) CheckPreemptCurrent(callerCPU int, pcb *PCB) {
	rq.lockFrom(callerCPU)
	defer rq.unlockFrom(callerCPU)
	rq.checkPreemptCurrentLocked(pcb)
}

func (rq *RunQueue) checkPreemptCurrentLocked(pcb *PCB) {
	cur := rq.current
	if cur == nil || cur == pcb {
		return
	}
	if pcb.Policy < cur.Policy {
		rq.reschedLocked()
		return
	}
	if pcb.Policy == cur.Policy && pcb.Policy == PolicyCFS {
		if pcb.SE.VRuntime < cur.SE.VRuntime {
			rq.reschedLocked()
		}
	}
}

// PickNextTask selects the next PCB to run in policy-priority order: RT,
// FIFO, CFS, IDLE (§4.1 pick_next_task).
func (rq *RunQueue) PickNextTask(callerCPU int) *PCB {
	rq.lockFrom(callerCPU)
	defer rq.unlockFrom(callerCPU)
	return rq.pickNextTaskLocked()
}

func (rq *RunQueue) pickNextTaskLocked() *PCB {
	if pcb, ok := rq.classQ[PolicyRT].PeekFront(); ok {
		return pcb
	}
	if pcb, ok := rq.classQ[PolicyFIFO].PeekFront(); ok {
		return pcb
	}
	if se := rq.cfs.PickNext(); se != nil {
		return se.Owner
	}
	return rq.idle
}

// Tick implements §4.1 tick: advances the current CFS task's vruntime by
// reciprocal multiplication and flags resched once it has exceeded its ideal
// slice relative to the leftmost waiting entity.
func (rq *RunQueue) Tick(callerCPU int) {
	rq.lockFrom(callerCPU)
	defer rq.unlockFrom(callerCPU)

	cur := rq.current
	if cur == nil || cur.Policy != PolicyCFS || cur == rq.idle {
		return
	}
	// Tick is its own clock-update pass, independent of any enclosing
	// __schedule call, so it rotates RQCF_UPDATED out the same way
	// __schedule's step 2 does before reading the clocksource again.
	rq.rotateClockUpdateFlags()
	rq.updateRqClock()

	se := &cur.SE
	now := rq.clockTask
	delta := now - se.execStart
	se.execStart = now
	se.SumExecRuntime += delta
	se.VRuntime += calcDeltaFair(delta, se.invWeightOf())

	rq.cfs.SetCurrent(se)
	rq.cfs.UpdateMinVRuntime()

	ideal := SchedSlice(int(rq.nrRunning.Load()))
	if se.VRuntime > rq.cfs.MinVRuntime()+ideal {
		cur.NeedResched.Store(true)
	}
}

// Resched implements §4.1 resched(cpu) for the local-CPU case: mark the
// current task's NEED_SCHEDULE flag. Cross-CPU resched is Scheduler.Resched,
// which also fires an IPI.
func (rq *RunQueue) Resched(callerCPU int) {
	rq.lockFrom(callerCPU)
	defer rq.unlockFrom(callerCPU)
	rq.reschedLocked()
}

func (rq *RunQueue) reschedLocked() {
	if rq.current != nil {
		rq.current.NeedResched.Store(true)
	}
}
