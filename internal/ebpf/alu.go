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

import "math/bits"

// execALU executes one ALU (32-bit) or ALU64 (64-bit) instruction (§4.4).
// ALU32 operates on the low 32 bits of the destination and sign-extends the
// result back into the full 64-bit register on store-back, except NEG32,
// which masks its result to 32 bits, and LE/BE, which zero-extend the
// converted width; ALU64 operates on
// the full width with a 0x3f shift mask instead of ALU32's implicit 32-bit
// wrapping shift.
func (vm *VM) execALU(insn instruction, is64 bool) error {
	dst := &vm.regs[insn.dst]

	var operand uint64
	if insn.isALUSourceReg() {
		operand = vm.regs[insn.srcReg]
	} else {
		operand = uint64(int64(insn.imm))
	}

	op := insn.aluOp()

	if op == aluNEG {
		if is64 {
			*dst = uint64(-int64(*dst))
		} else {
			*dst = uint64(uint32(-int32(uint32(*dst))))
		}
		return nil
	}

	if op == aluEND {
		return vm.execEndianConv(insn, is64)
	}

	if is64 {
		*dst = alu64(op, *dst, operand)
		return nil
	}

	result := alu32(op, uint32(*dst), uint32(operand))
	// ALU32 always sign-extends its 32-bit result into the full register
	// (§4.4 "ALU32 ... sign-extended to 64 on store-back").
	*dst = uint64(int64(int32(result)))
	return nil
}

func alu64(op uint8, a, b uint64) uint64 {
	switch op {
	case aluADD:
		return a + b
	case aluSUB:
		return a - b
	case aluMUL:
		return a * b
	case aluDIV:
		if b == 0 {
			return 0
		}
		return a / b
	case aluMOD:
		if b == 0 {
			return a
		}
		return a % b
	case aluOR:
		return a | b
	case aluAND:
		return a & b
	case aluXOR:
		return a ^ b
	case aluLSH:
		return a << (b & 0x3f)
	case aluRSH:
		return a >> (b & 0x3f)
	case aluARSH:
		return uint64(int64(a) >> (b & 0x3f))
	case aluMOV:
		return b
	default:
		return a
	}
}

func alu32(op uint8, a, b uint32) uint32 {
	switch op {
	case aluADD:
		return a + b
	case aluSUB:
		return a - b
	case aluMUL:
		return a * b
	case aluDIV:
		if b == 0 {
			return 0
		}
		return a / b
	case aluMOD:
		if b == 0 {
			return a
		}
		return a % b
	case aluOR:
		return a | b
	case aluAND:
		return a & b
	case aluXOR:
		return a ^ b
	case aluLSH:
		return a << (b & 0x1f)
	case aluRSH:
		return a >> (b & 0x1f)
	case aluARSH:
		return uint32(int32(a) >> (b & 0x1f))
	case aluMOV:
		return b
	default:
		return a
	}
}

// execEndianConv implements BE/LE (§4.4 "LE/BE converts per imm in
// {16,32,64}"). The low imm bits of the destination register are converted;
// ALU32's "operand from imm" vs "from reg" distinction does not apply here —
// imm always selects the width.
func (vm *VM) execEndianConv(insn instruction, is64 bool) error {
	dst := &vm.regs[insn.dst]
	toBE := insn.isALUSourceReg() // BE is encoded with the source bit set, LE without
	switch insn.imm {
	case 16:
		v := uint16(*dst)
		if toBE {
			v = bits.ReverseBytes16(v)
		}
		*dst = uint64(v)
	case 32:
		v := uint32(*dst)
		if toBE {
			v = bits.ReverseBytes32(v)
		}
		*dst = uint64(v)
	case 64:
		v := *dst
		if toBE {
			v = bits.ReverseBytes64(v)
		}
		*dst = v
	default:
		return fatal(vm.pc, "invalid endian-conversion width %d", insn.imm)
	}
	_ = is64
	return nil
}
