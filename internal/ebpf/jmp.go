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

package ebpf

import "errors"

// execJMP executes a plain JMP/JMP32 branch instruction (EXIT and CALL are
// intercepted earlier in step() and never reach here). JMP32 compares the
// low 32 bits of each operand; JMP compares the full 64 bits (§4.4). Returns
// whether the branch was taken so step() knows not to apply the ordinary
// pc++ fallthrough — the offset is relative to the instruction *after* this
// one.
func (vm *VM) execJMP(insn instruction) (bool, error) {
	is32 := insn.class() == classJMP32

	var operand uint64
	if insn.isALUSourceReg() {
		operand = vm.regs[insn.srcReg]
	} else {
		operand = uint64(int64(insn.imm))
	}

	dst := vm.regs[insn.dst]
	if is32 {
		dst = uint64(uint32(dst))
		operand = uint64(uint32(operand))
	}

	taken, err := evalJump(insn.jmpOp(), dst, operand, is32)
	if err != nil {
		return false, fatal(vm.pc, "%s", err.Error())
	}
	if !taken {
		return false, nil
	}
	vm.pc = uint64(int64(vm.pc) + 1 + int64(insn.off))
	return true, nil
}

func evalJump(op uint8, dst, operand uint64, is32 bool) (bool, error) {
	switch op {
	case jmpJA:
		return true, nil
	case jmpJEQ:
		return dst == operand, nil
	case jmpJNE:
		return dst != operand, nil
	case jmpJGT:
		return dst > operand, nil
	case jmpJGE:
		return dst >= operand, nil
	case jmpJLT:
		return dst < operand, nil
	case jmpJLE:
		return dst <= operand, nil
	case jmpJSET:
		return dst&operand != 0, nil
	case jmpJSGT:
		return signed(dst, is32) > signed(operand, is32), nil
	case jmpJSGE:
		return signed(dst, is32) >= signed(operand, is32), nil
	case jmpJSLT:
		return signed(dst, is32) < signed(operand, is32), nil
	case jmpJSLE:
		return signed(dst, is32) <= signed(operand, is32), nil
	default:
		return false, errors.New("unknown jump operation")
	}
}

func signed(v uint64, is32 bool) int64 {
	if is32 {
		return int64(int32(uint32(v)))
	}
	return int64(v)
}
