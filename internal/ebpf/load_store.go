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

import "encoding/binary"

// execLD handles the LD instruction class: LD_DW_IMM (a two-instruction wide
// immediate load into dst) and LD_*_ABS/IND (absolute/indirect loads from the
// mem region, used by packet-style programs) (§4.4).
func (vm *VM) execLD(insn instruction) error {
	switch insn.mode() {
	case modeIMM:
		if !insn.isWideImm() {
			return fatal(vm.pc, "LD_IMM only supported for 8-byte width")
		}
		if (vm.pc+1)*InstructionSize+InstructionSize > uint64(len(vm.prog)) {
			return fatal(vm.pc, "LD_DW_IMM missing second instruction slot")
		}
		next := decode(vm.prog[(vm.pc+1)*InstructionSize:])
		lo := uint32(insn.imm)
		hi := uint32(next.imm)
		vm.regs[insn.dst] = uint64(hi)<<32 | uint64(lo)
		return nil
	case modeABS, modeIND:
		addr := vm.mem.base
		if insn.mode() == modeIND {
			addr += vm.regs[insn.srcReg]
		}
		addr += uint64(insn.imm)
		return vm.loadInto(RegR0, addr, insn.size())
	default:
		return fatal(vm.pc, "unsupported LD addressing mode 0x%x", insn.mode())
	}
}

// execLDX handles LDX_*_REG: dst = *(size *)(src + off) against whichever
// region the pointer in src resolves to (§4.4).
func (vm *VM) execLDX(insn instruction) error {
	addr := uint64(int64(vm.regs[insn.srcReg]) + int64(insn.off))
	return vm.loadInto(insn.dst, addr, insn.size())
}

func (vm *VM) loadInto(dstReg uint8, addr uint64, size uint8) error {
	n := sizeBytes(size)
	if n == 0 {
		return fatal(vm.pc, "invalid load size modifier 0x%x", size)
	}
	raw, err := vm.readMem(addr, n)
	if err != nil {
		return err
	}
	vm.regs[dstReg] = decodeUnsigned(raw)
	return nil
}

// execST handles ST_*_IMM: *(size *)(dst + off) = imm (§4.4).
func (vm *VM) execST(insn instruction) error {
	addr := uint64(int64(vm.regs[insn.dst]) + int64(insn.off))
	return vm.storeFrom(addr, uint64(uint32(insn.imm)), insn.size())
}

// execSTX handles STX_*_REG: *(size *)(dst + off) = src (§4.4).
func (vm *VM) execSTX(insn instruction) error {
	addr := uint64(int64(vm.regs[insn.dst]) + int64(insn.off))
	return vm.storeFrom(addr, vm.regs[insn.srcReg], insn.size())
}

func (vm *VM) storeFrom(addr uint64, value uint64, size uint8) error {
	n := sizeBytes(size)
	if n == 0 {
		return fatal(vm.pc, "invalid store size modifier 0x%x", size)
	}
	buf := make([]byte, n)
	encodeUnsigned(buf, value)
	return vm.writeMem(addr, buf)
}

// decodeUnsigned reads a little-endian unsigned integer of 1, 2, 4 or 8 bytes
// without sign extension — loads always zero-extend into the 64-bit register.
func decodeUnsigned(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		return 0
	}
}

func encodeUnsigned(b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, v)
	}
}
