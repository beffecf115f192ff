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

// Package ebpf implements the sandboxed bytecode interpreter (C2): an
// 11-register VM with per-call stack frames, memory-region bounds checking,
// and helper-function dispatch. Execution is synchronous and never blocks or
// calls back into the scheduler (§4.4, §5).
package ebpf

import (
	"fmt"
)

// Register file size and well-known register indices (§3.4).
const (
	NumRegisters = 11
	RegR0        = 0 // return value
	RegR1        = 1
	RegR2        = 2
	RegR3        = 3
	RegR4        = 4
	RegR5        = 5
	RegR6        = 6 // callee-saved across BPF-to-BPF calls
	RegR7        = 7
	RegR8        = 8
	RegR9        = 9
	RegR10       = 10 // frame pointer, read-only to the program
)

// StackFrameSize is the size in bytes of each call frame's private stack.
const StackFrameSize = 512

// RBPFMaxCallDepth bounds nested BPF-to-BPF call depth (§3.4 invariant).
const RBPFMaxCallDepth = 8

// InstructionSize is the fixed width of one bytecode instruction, in bytes.
const InstructionSize = 8

// Helper is a host-supplied native function callable from a program by
// numeric id (§6.4).
type Helper func(r1, r2, r3, r4, r5 uint64) uint64

// HelperTable maps helper ids to their native implementations.
type HelperTable map[uint32]Helper

// VMError is a fatal interpreter error: the eBPF taxonomy treats every
// failure mode as unrecoverable (§7) — the interpreter aborts and returns an
// error rather than trying to continue.
type VMError struct {
	Reason string
	PC     uint64
}

func (e *VMError) Error() string {
	return fmt.Sprintf("ebpf: %s (pc=%d)", e.Reason, e.PC)
}

func fatal(pc uint64, format string, args ...any) error {
	return &VMError{Reason: fmt.Sprintf(format, args...), PC: pc}
}

// frame is one call-frame's saved state, pushed on a BPF-to-BPF call and
// popped on the matching EXIT (§3.4).
type frame struct {
	savedR6, savedR7, savedR8, savedR9 uint64
	returnPC                           uint64
	savedR10                           uint64
	stack                              []byte
}

// VM holds the state of one execute_program invocation (§4.4). It is not
// reused across invocations.
type VM struct {
	regs   [NumRegisters]uint64
	frames []*frame
	pc     uint64

	prog    []byte
	mem     *Region
	mbuff   *Region
	helpers HelperTable
}

// Execute runs prog to completion against mem/mbuff and the supplied helper
// table, returning the program's R0 result (§6.4).
func Execute(prog, mem, mbuff []byte, helpers HelperTable) (uint64, error) {
	vm := &VM{
		prog:    prog,
		mem:     newRegion(memBaseAddr, mem),
		mbuff:   newRegion(mbuffBaseAddr, mbuff),
		helpers: helpers,
	}
	vm.frames = []*frame{{stack: make([]byte, StackFrameSize)}}
	vm.regs[RegR10] = frameTopAddr(0)

	if len(mbuff) > 0 {
		vm.regs[RegR1] = mbuffBaseAddr
	} else if len(mem) > 0 {
		vm.regs[RegR1] = memBaseAddr
	}

	for {
		result, done, err := vm.step()
		if err != nil {
			return 0, err
		}
		if done {
			return result, nil
		}
	}
}

// step fetches and executes a single instruction, advancing pc. done is true
// once a frame-0 EXIT has produced the final result.
func (vm *VM) step() (result uint64, done bool, err error) {
	if vm.pc*InstructionSize >= uint64(len(vm.prog)) {
		return 0, false, fatal(vm.pc, "fetch out of bounds: unreachable end of program")
	}

	insn := decode(vm.prog[vm.pc*InstructionSize:])

	// EXIT and CALL are control-flow instructions encoded in class JMP but
	// handled outside the generic branch executor: EXIT pops a frame (or
	// terminates at frame 0) and CALL dispatches to a helper or pushes a new
	// frame, neither of which is "compare and maybe add off to pc" (§4.4).
	if insn.class() == classJMP && insn.jmpOp() == jmpEXIT {
		if len(vm.frames) == 1 {
			return vm.regs[RegR0], true, nil
		}
		vm.popFrame()
		return 0, false, nil
	}
	if insn.class() == classJMP && insn.jmpOp() == jmpCALL {
		if err := vm.execCall(insn); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}

	switch insn.class() {
	case classLD:
		err = vm.execLD(insn)
	case classLDX:
		err = vm.execLDX(insn)
	case classST:
		err = vm.execST(insn)
	case classSTX:
		err = vm.execSTX(insn)
	case classALU:
		err = vm.execALU(insn, false)
	case classALU64:
		err = vm.execALU(insn, true)
	case classJMP, classJMP32:
		var branched bool
		branched, err = vm.execJMP(insn)
		if err == nil && branched {
			return 0, false, nil
		}
	default:
		err = fatal(vm.pc, "unknown instruction class %d", insn.class())
	}
	if err != nil {
		return 0, false, err
	}

	vm.pc++
	if insn.isWideImm() {
		vm.pc++
	}
	return 0, false, nil
}

func (vm *VM) pushFrame(callOffset int64) error {
	if len(vm.frames) >= RBPFMaxCallDepth {
		return fatal(vm.pc, "call depth exceeds RBPF_MAX_CALL_DEPTH=%d", RBPFMaxCallDepth)
	}
	cur := vm.frames[len(vm.frames)-1]
	cur.savedR6, cur.savedR7, cur.savedR8, cur.savedR9 = vm.regs[RegR6], vm.regs[RegR7], vm.regs[RegR8], vm.regs[RegR9]
	cur.returnPC = vm.pc + 1
	cur.savedR10 = vm.regs[RegR10]

	nf := &frame{stack: make([]byte, StackFrameSize)}
	vm.frames = append(vm.frames, nf)
	vm.regs[RegR10] = frameTopAddr(len(vm.frames) - 1)
	vm.pc = uint64(int64(vm.pc) + 1 + callOffset)
	return nil
}

func (vm *VM) popFrame() {
	vm.frames = vm.frames[:len(vm.frames)-1]
	cur := vm.frames[len(vm.frames)-1]
	vm.regs[RegR6], vm.regs[RegR7], vm.regs[RegR8], vm.regs[RegR9] = cur.savedR6, cur.savedR7, cur.savedR8, cur.savedR9
	vm.regs[RegR10] = cur.savedR10
	vm.pc = cur.returnPC
}

func (vm *VM) execCall(insn instruction) error {
	switch insn.src() {
	case 0: // helper call by id
		fn, ok := vm.helpers[uint32(insn.imm)]
		if !ok {
			return fatal(vm.pc, "unknown helper id %d", insn.imm)
		}
		vm.regs[RegR0] = fn(vm.regs[RegR1], vm.regs[RegR2], vm.regs[RegR3], vm.regs[RegR4], vm.regs[RegR5])
		vm.pc++
		return nil
	case 1: // BPF-to-BPF call
		return vm.pushFrame(int64(insn.imm))
	default:
		return fatal(vm.pc, "invalid call src %d", insn.src())
	}
}

func (vm *VM) currentFrame() *frame {
	return vm.frames[len(vm.frames)-1]
}
