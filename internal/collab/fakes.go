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

package collab

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/kernelsim/coresys/internal/clock"
	"github.com/kernelsim/coresys/internal/errno"
)

// FakeBlockDevice is an in-memory BlockDevice backed by a flat byte slice.
type FakeBlockDevice struct {
	blockSize uint32

	mu     sync.Mutex
	blocks [][]byte
}

var _ BlockDevice = (*FakeBlockDevice)(nil)

// NewFakeBlockDevice allocates numBlocks zero-filled blocks of blockSize
// bytes each.
func NewFakeBlockDevice(blockSize uint32, numBlocks uint64) *FakeBlockDevice {
	blocks := make([][]byte, numBlocks)
	for i := range blocks {
		blocks[i] = make([]byte, blockSize)
	}
	return &FakeBlockDevice{blockSize: blockSize, blocks: blocks}
}

func (d *FakeBlockDevice) BlockSize() uint32  { return d.blockSize }
func (d *FakeBlockDevice) NumBlocks() uint64  { return uint64(len(d.blocks)) }

func (d *FakeBlockDevice) ReadBlock(_ context.Context, block uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if block >= uint64(len(d.blocks)) {
		return nil, fmt.Errorf("block %d out of range: %w", block, errno.EFAULT)
	}
	out := make([]byte, d.blockSize)
	copy(out, d.blocks[block])
	return out, nil
}

func (d *FakeBlockDevice) WriteBlock(_ context.Context, block uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if block >= uint64(len(d.blocks)) {
		return fmt.Errorf("block %d out of range: %w", block, errno.EFAULT)
	}
	if uint32(len(data)) != d.blockSize {
		return fmt.Errorf("write of %d bytes to %d-byte block: %w", len(data), d.blockSize, errno.EINVAL)
	}
	copy(d.blocks[block], data)
	return nil
}

// FakeUserMemory is an in-memory UserMemory backed by a flat byte slice,
// addressed by byte offset. All three operations serialize through a single
// mutex so CompareAndSwapU32 is a genuine atomic test-and-set with respect to
// concurrent readers/writers of the same backing slice — not an IRQ-off-then
// non-atomic RMW, which the Design Notes flag as a correctness gap on SMP.
type FakeUserMemory struct {
	mu  sync.Mutex
	mem []byte
}

var _ UserMemory = (*FakeUserMemory)(nil)

// NewFakeUserMemory allocates size bytes of zeroed user memory.
func NewFakeUserMemory(size int) *FakeUserMemory {
	return &FakeUserMemory{mem: make([]byte, size)}
}

func (m *FakeUserMemory) bounds(addr uint64) error {
	if addr+4 > uint64(len(m.mem)) {
		return fmt.Errorf("address 0x%x: %w", addr, errno.EFAULT)
	}
	return nil
}

func (m *FakeUserMemory) ReadU32(addr uint64) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bounds(addr); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.mem[addr : addr+4]), nil
}

func (m *FakeUserMemory) WriteU32(addr uint64, val uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bounds(addr); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.mem[addr:addr+4], val)
	return nil
}

func (m *FakeUserMemory) CompareAndSwapU32(addr uint64, old, new uint32) (uint32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.bounds(addr); err != nil {
		return 0, false, err
	}
	current := binary.LittleEndian.Uint32(m.mem[addr : addr+4])
	if current != old {
		return current, false, nil
	}
	binary.LittleEndian.PutUint32(m.mem[addr:addr+4], new)
	return old, true, nil
}

// FakeIRQController records IPIs sent instead of delivering them anywhere;
// the scheduler's remote-resched tests assert against Sent.
type FakeIRQController struct {
	mu   sync.Mutex
	Sent []IPIRecord
}

// IPIRecord is one SendIPI call observed by FakeIRQController.
type IPIRecord struct {
	CPU    int
	Reason string
}

var _ IRQController = (*FakeIRQController)(nil)

func (f *FakeIRQController) SendIPI(cpu int, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, IPIRecord{CPU: cpu, Reason: reason})
}

// ClockTimerSource adapts a clock.Clock into a TimerSource.
type ClockTimerSource struct {
	Clock clock.Clock
}

var _ TimerSource = ClockTimerSource{}

func (c ClockTimerSource) ArmOneShot(nanosFromNow int64) (<-chan struct{}, func()) {
	out := make(chan struct{}, 1)
	cancelled := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(cancelled) }) }

	ch := c.Clock.After(time.Duration(nanosFromNow))
	go func() {
		select {
		case <-ch:
			select {
			case <-cancelled:
			default:
				out <- struct{}{}
			}
		case <-cancelled:
		}
	}()

	return out, cancel
}
