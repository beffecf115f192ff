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

// instruction classes, packed in the low 3 bits of the opcode byte (§3.4).
const (
	classLD     = 0x00
	classLDX    = 0x01
	classST     = 0x02
	classSTX    = 0x03
	classALU    = 0x04
	classJMP    = 0x05
	classJMP32  = 0x06
	classALU64  = 0x07
)

// ALU/ALU64 operation codes, packed in the high 4 bits of the opcode byte.
const (
	aluADD  = 0x00
	aluSUB  = 0x10
	aluMUL  = 0x20
	aluDIV  = 0x30
	aluOR   = 0x40
	aluAND  = 0x50
	aluLSH  = 0x60
	aluRSH  = 0x70
	aluNEG  = 0x80
	aluMOD  = 0x90
	aluXOR  = 0xa0
	aluMOV  = 0xb0
	aluARSH = 0xc0
	aluEND  = 0xd0
)

// aluSourceReg is set when the ALU operand comes from a register rather than
// the immediate field.
const aluSourceReg = 0x08

// JMP/JMP32 operation codes, packed in the high 4 bits of the opcode byte.
const (
	jmpJA   = 0x00
	jmpJEQ  = 0x10
	jmpJGT  = 0x20
	jmpJGE  = 0x30
	jmpJSET = 0x40
	jmpJNE  = 0x50
	jmpJSGT = 0x60
	jmpJSGE = 0x70
	jmpCALL = 0x80
	jmpEXIT = 0x90
	jmpJLT  = 0xa0
	jmpJLE  = 0xb0
	jmpJSLT = 0xc0
	jmpJSLE = 0xd0
)

// LD/LDX/ST/STX size modifiers, packed in bits 3-4 of the opcode byte.
const (
	sizeW  = 0x00 // word, 4 bytes
	sizeH  = 0x08 // half word, 2 bytes
	sizeB  = 0x10 // byte
	sizeDW = 0x18 // double word, 8 bytes
)

// LD addressing modes, packed in the high 3 bits of the opcode byte.
const (
	modeIMM = 0x00
	modeABS = 0x20
	modeIND = 0x40
	modeMEM = 0x60
)

// instruction is one decoded 8-byte bytecode instruction (§3.4, §4.4).
type instruction struct {
	opcode uint8
	dst    uint8
	srcReg uint8
	off    int16
	imm    int32
}

func decode(b []byte) instruction {
	regs := b[1]
	return instruction{
		opcode: b[0],
		dst:    regs & 0x0f,
		srcReg: (regs >> 4) & 0x0f,
		off:    int16(binary.LittleEndian.Uint16(b[2:4])),
		imm:    int32(binary.LittleEndian.Uint32(b[4:8])),
	}
}

func (i instruction) class() uint8 { return i.opcode & 0x07 }
func (i instruction) size() uint8  { return i.opcode & 0x18 }
func (i instruction) mode() uint8  { return i.opcode & 0xe0 }
func (i instruction) aluOp() uint8 { return i.opcode & 0xf0 }
func (i instruction) jmpOp() uint8 { return i.opcode & 0xf0 }
func (i instruction) src() uint8   { return i.srcReg }

// isALUSourceReg reports whether the ALU/ALU64 operand comes from src rather
// than the sign-extended imm field.
func (i instruction) isALUSourceReg() bool { return i.opcode&aluSourceReg != 0 }

// isWideImm reports whether this instruction is the first half of an
// LD_DW_IMM pair, which consumes the following instruction slot as the upper
// 32 immediate bits (§4.4 "LD_DW_IMM").
func (i instruction) isWideImm() bool {
	return i.class() == classLD && i.mode() == modeIMM && i.size() == sizeDW
}

func sizeBytes(sz uint8) int {
	switch sz {
	case sizeB:
		return 1
	case sizeH:
		return 2
	case sizeW:
		return 4
	case sizeDW:
		return 8
	default:
		return 0
	}
}
