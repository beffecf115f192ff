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
	"fmt"
	"log/slog"

	"github.com/kernelsim/coresys/internal/clock"
	"github.com/kernelsim/coresys/internal/collab"
	"github.com/kernelsim/coresys/internal/logger"
)

// ScheduleMode is the mode argument threaded through schedule()/__schedule()
// (§6.2).
type ScheduleMode int

const (
	ModeNone ScheduleMode = iota
	ModePreempt
	ModeRTLockWait
)

// Scheduler owns one RunQueue per simulated CPU and implements the
// cross-CPU-visible ABI of §6.2: sched_fork, sched_cgroup_fork,
// activate/deactivate, resched, and __schedule.
type Scheduler struct {
	rqs  []*RunQueue
	clk  clock.Clock
	irq  collab.IRQController
	load loadAccountant
	log  *slog.Logger
}

// NewScheduler constructs a Scheduler with nCPUs run queues, each seeded with
// its own idle PCB.
func NewScheduler(nCPUs int, clk clock.Clock, irq collab.IRQController) *Scheduler {
	s := &Scheduler{clk: clk, irq: irq, log: logger.New("sched")}
	for cpu := 0; cpu < nCPUs; cpu++ {
		idle := NewPCB(-1, -1, PolicyIDLE, 0)
		idle.CPU = cpu
		idle.OnRQ = OnRQRunning
		s.rqs = append(s.rqs, NewRunQueue(cpu, clk, irq, idle))
	}
	return s
}

// RQ returns the run queue for cpu. It panics on an out-of-range cpu, the
// same as indexing a percpu array would in the kernel this mirrors — CPU
// lifecycle (hotplug) is explicitly out of scope (§4.1 failure semantics).
func (s *Scheduler) RQ(cpu int) *RunQueue {
	return s.rqs[cpu]
}

// NumCPUs returns how many run queues the scheduler owns.
func (s *Scheduler) NumCPUs() int { return len(s.rqs) }

// SchedFork implements §4.1 sched_fork: the child inherits the parent's nice
// value and, for RT-priority parents, its policy; everything else starts
// CFS. The child's runnable average starts at zero.
func SchedFork(parent, child *PCB) {
	child.Nice = parent.Nice
	if parent.Policy == PolicyRT || parent.Policy == PolicyFIFO {
		child.Policy = parent.Policy
	} else {
		child.Policy = PolicyCFS
	}
	child.SE.Owner = child
	child.SE.SetWeight(WeightForNice(child.Nice))
	child.SE.RunnableAvg = 0
}

// SchedCgroupFork implements §4.1 sched_cgroup_fork: pins the child to cpu's
// CFS run queue and applies START_DEBIT by placing its initial vruntime at
// min_vruntime + sched_slice, so a freshly forked task doesn't get a free
// ride to the front of the queue.
func (s *Scheduler) SchedCgroupFork(cpu int, child *PCB) {
	rq := s.RQ(cpu)
	rq.lockFrom(cpu)
	defer rq.unlockFrom(cpu)
	slice := SchedSlice(int(rq.nrRunning.Load()) + 1)
	child.SE.VRuntime = rq.cfs.MinVRuntime() + slice
	child.CPU = cpu
}

// ActivateTask wakes pcb onto cpu's run queue, acquiring the lock as a
// remote CPU would unless callerCPU == cpu (§6.2 activate_task, §3.1).
func (s *Scheduler) ActivateTask(callerCPU, cpu int, pcb *PCB) {
	s.RQ(cpu).Activate(callerCPU, pcb)
}

// DeactivateTask parks pcb off cpu's run queue into sleepState.
func (s *Scheduler) DeactivateTask(callerCPU, cpu int, pcb *PCB, sleepState TaskState) {
	s.RQ(cpu).Deactivate(callerCPU, pcb, sleepState)
}

// Resched implements §4.1 resched(cpu): if the request originates on cpu
// itself, it just flags NEED_SCHEDULE; otherwise it also fires an IPI so the
// remote CPU notices on its next IRQ return.
func (s *Scheduler) Resched(callerCPU, cpu int) {
	s.RQ(cpu).Resched(callerCPU)
	if callerCPU != cpu {
		if s.irq != nil {
			s.irq.SendIPI(cpu, "resched")
		}
	}
}

// Schedule implements §4.1 __schedule, entered (by convention) with
// interrupts already disabled on cpu and running as cpu itself — this
// simulation has no IRQ state to assert against, so the only runtime check
// is that schedule() isn't called reentrantly outside ModePreempt, mirroring
// "calling schedule() when not in __MASK_PREEMPT mode asserts
// preempt_count == 0".
func (s *Scheduler) Schedule(cpu int, mode ScheduleMode, prevSleeping bool, sleepState TaskState) *PCB {
	rq := s.RQ(cpu)
	rq.lockFrom(cpu)
	defer rq.unlockFrom(cpu)
	if mode != ModePreempt && rq.lock.depth > 1 {
		panic("sched: schedule() re-entered outside ModePreempt")
	}

	rq.rotateClockUpdateFlags()
	rq.updateRqClock()

	prev := rq.current
	if prevSleeping && prev != nil && prev.Policy != PolicyIDLE {
		prev.State = sleepState
		rq.dequeueLocked(prev, DequeueSleep|DequeueNoClock)
	}

	next := rq.pickNextTaskLocked()
	if prev != nil {
		prev.NeedResched.Store(false)
	}

	if next != prev {
		// put_prev_task: a preempted-but-still-runnable CFS task goes back
		// into the ordered set now that it's no longer the one executing.
		if !prevSleeping && prev != nil && prev != rq.idle && prev.Policy == PolicyCFS {
			rq.cfs.Enqueue(&prev.SE)
			prev.OnRQ = OnRQQueued
		}
		// set_next_entity: the task about to run leaves the waiting set —
		// it is tracked via rq.current, not the ordered structure, while
		// running (cfs.go SetCurrent).
		switch next.Policy {
		case PolicyCFS:
			rq.cfs.Dequeue(&next.SE)
		case PolicyRT, PolicyFIFO:
			rq.classQ[next.Policy].DrainMatching(1, func(c *PCB) bool { return c == next })
		}
		rq.cfs.SetCurrent(&next.SE)
		rq.current = next
		next.OnRQ = OnRQRunning
		next.SE.execStart = rq.clockTask
		s.log.Debug("context switch",
			slog.Int("cpu", cpu), slog.Int("from_pid", pidOf(prev)), slog.Int("to_pid", pidOf(next)))
	}
	return next
}

func pidOf(pcb *PCB) int {
	if pcb == nil {
		return -1
	}
	return pcb.PID
}

// String renders a short per-CPU summary, handy for the ksimd sched demo.
func (s *Scheduler) String() string {
	out := ""
	for _, rq := range s.rqs {
		out += fmt.Sprintf("cpu%d: current=pid%d nr_running=%d nr_uninterruptible=%d\n",
			rq.cpu, pidOf(rq.current), rq.NrRunning(), rq.NrUninterruptible())
	}
	return out
}
