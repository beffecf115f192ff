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

// Package sched implements the process scheduler (C5): per-CPU CFS-style run
// queues, preemption, tick-driven vruntime accounting, and fork/exit hooks
// (§3.1, §4.1). It never talks to real hardware; a PCB is a plain struct
// moved between run queues the way gcsfuse's DirInode is moved between lookup
// tables, not a thread backed by a real OS scheduler.
package sched

import "sync/atomic"

// Policy is the scheduling class tag (§3.1). Lower numeric value is higher
// priority: RT < FIFO < CFS < IDLE.
type Policy int

const (
	PolicyRT Policy = iota
	PolicyFIFO
	PolicyCFS
	PolicyIDLE
)

func (p Policy) String() string {
	switch p {
	case PolicyRT:
		return "RT"
	case PolicyFIFO:
		return "FIFO"
	case PolicyCFS:
		return "CFS"
	case PolicyIDLE:
		return "IDLE"
	default:
		return "UNKNOWN"
	}
}

// OnRQState is a PCB's run-queue membership (§3.1 invariant: "A PCB is on at
// most one run queue at a time; transitions Unbound -> Queued -> Running ->
// Queued|Sleeping").
type OnRQState int

const (
	OnRQUnbound OnRQState = iota
	OnRQQueued
	OnRQRunning
)

// TaskState is the PCB's runnability, distinct from OnRQState: a task can be
// Queued (runnable, waiting its turn) without being Running.
type TaskState int

const (
	StateRunnable TaskState = iota
	StateRunning
	StateInterruptibleSleep
	StateUninterruptibleSleep
	StateZombie
)

// SchedEntity is the CFS accounting record embedded in every PCB (§3.1).
type SchedEntity struct {
	VRuntime       uint64
	Weight         uint64
	InvWeight      uint64
	invWeightValid bool

	SumExecRuntime uint64
	RunnableAvg    uint64
	execStart      uint64

	// Owner is the PCB this entity is embedded in; set by NewPCB. Used by the
	// CFS run queue to recover the PCB from the leftmost entity during
	// pick_next_task.
	Owner *PCB
	onRQ  bool
}

// invWeightOf lazily computes and caches the reciprocal-multiplication
// constant used by calcDeltaFair (§4.1), invalidated whenever SetWeight is
// called.
func (se *SchedEntity) invWeightOf() uint64 {
	if !se.invWeightValid {
		se.InvWeight = computeInvWeight(se.Weight)
		se.invWeightValid = true
	}
	return se.InvWeight
}

// SetWeight assigns a new CFS load weight to the entity, invalidating the
// cached reciprocal (§4.1: "inv_weight is lazily computed ... and invalidated
// on weight change").
func (se *SchedEntity) SetWeight(weight uint64) {
	se.Weight = weight
	se.invWeightValid = false
}

// PCB is the process control block (§3.1): identity, scheduling info, and
// run-queue linkage. Only the fields this subsystem's operations touch are
// modeled; address-space handle, fd table, and signal mask are named in the
// spec as part of the PCB but have no bearing on scheduling semantics, so
// they are represented by an opaque AddressSpaceID rather than full types.
type PCB struct {
	PID  int
	TGID int

	AddressSpaceID uint64
	Nice           int
	Policy         Policy
	State          TaskState
	OnRQ           OnRQState
	CPU            int
	RobustListHead uint64

	SE SchedEntity

	// NeedResched mirrors the TIF_NEED_RESCHED flag (§4.1 resched).
	NeedResched atomic.Bool

	// LastQueued is the rq-clock timestamp recorded by enqueue (unless the
	// RESTORE flag is set) for wait-time accounting.
	LastQueued uint64

	// rq is a back-pointer to the run queue this PCB currently sits on, or
	// nil when OnRQ == OnRQUnbound. The spec (§9) describes this as a weak
	// reference; Go has no borrow checker to enforce that, so ownership
	// discipline is: the process table owns the PCB, run queues only ever
	// observe it.
	rq *RunQueue
}

// NewPCB constructs a PCB at the given nice level, with its CFS weight
// derived from the standard nice-to-weight table (§4.1).
func NewPCB(pid, tgid int, policy Policy, nice int) *PCB {
	p := &PCB{
		PID:    pid,
		TGID:   tgid,
		Policy: policy,
		Nice:   nice,
		State:  StateRunnable,
		OnRQ:   OnRQUnbound,
		CPU:    -1,
	}
	p.SE.Owner = p
	p.SE.SetWeight(WeightForNice(nice))
	return p
}
