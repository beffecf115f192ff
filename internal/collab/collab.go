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

// Package collab defines the narrow interfaces C2-C5 consume from the
// external collaborators named in spec §2 (MMU, block device, user-memory
// access, IRQ/timers) without depending on any real device, driver, or
// hypervisor code — those are explicitly out of scope (§1). Each interface
// has an in-memory fake suitable for tests, mirroring the way the teacher
// repo keeps gcs.Bucket and clock.Clock behind an interface boundary so the
// filesystem logic can be exercised without a real object-store connection.
package collab

import "context"

// BlockDevice is the block-I/O collaborator consumed by the ext4 layer (C3).
// Blocks are fixed size; callers (the ext4 superblock) own the size.
type BlockDevice interface {
	BlockSize() uint32
	NumBlocks() uint64
	ReadBlock(ctx context.Context, block uint64) ([]byte, error)
	WriteBlock(ctx context.Context, block uint64, data []byte) error
}

// UserMemory is the user-address-space access collaborator consumed by the
// futex subsystem (C4) for reading/CAS-ing *uaddr, and by the eBPF VM (C2)
// when mem/mbuff are sourced from userspace rather than kernel buffers.
type UserMemory interface {
	// ReadU32 reads the 32-bit word at addr.
	ReadU32(addr uint64) (uint32, error)
	// WriteU32 stores val at addr.
	WriteU32(addr uint64, val uint32) error
	// CompareAndSwapU32 atomically stores new at addr iff the current value
	// equals old, returning the value observed before the attempt.
	CompareAndSwapU32(addr uint64, old, new uint32) (actual uint32, swapped bool, err error)
}

// IRQController is the cross-CPU notification collaborator consumed by the
// scheduler's resched(cpu) (§4.1) to interrupt a remote CPU.
type IRQController interface {
	SendIPI(cpu int, reason string)
}

// TimerSource arms one-shot timers for the futex subsystem's wait timeouts
// (§4.3, §5 "Cancellation & timeout"). It is a thin wrapper over a
// clock.Clock's After so futex code depends on collab, not clock, directly.
type TimerSource interface {
	// ArmOneShot returns a channel that fires once when the timer expires,
	// and a cancel function that prevents a late fire from being observed
	// (the channel may still receive a stale value; callers must check a
	// cancellation flag or rely on select with another case).
	ArmOneShot(nanosFromNow int64) (fire <-chan struct{}, cancel func())
}
