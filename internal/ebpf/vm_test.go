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

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// asm assembles instructions from raw field tuples into the 8-byte encoded
// program the VM expects.
func asm(insns [][5]int64) []byte {
	buf := make([]byte, 0, len(insns)*InstructionSize)
	for _, in := range insns {
		opcode, dst, src, off, imm := byte(in[0]), byte(in[1])&0x0f, byte(in[2])&0x0f, int16(in[3]), int32(in[4])
		var b [8]byte
		b[0] = opcode
		b[1] = dst | (src << 4)
		binary.LittleEndian.PutUint16(b[2:4], uint16(off))
		binary.LittleEndian.PutUint32(b[4:8], uint32(imm))
		buf = append(buf, b[:]...)
	}
	return buf
}

func TestExitAtFrameZeroReturnsInitialR0(t *testing.T) {
	prog := asm([][5]int64{
		{classJMP | jmpEXIT, 0, 0, 0, 0},
	})
	result, err := Execute(prog, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), result)
}

func TestALU64CallScenario(t *testing.T) {
	// R1 := 5; R2 := 7; call +1 (target: R0 := R1 + R2; EXIT); EXIT.
	prog := asm([][5]int64{
		{classALU64 | aluMOV, RegR1, 0, 0, 5},
		{classALU64 | aluMOV, RegR2, 0, 0, 7},
		{classJMP | jmpCALL, 0, 1, 0, 1},
		{classJMP | jmpEXIT, 0, 0, 0, 0},
		{classALU64 | aluMOV | aluSourceReg, RegR0, RegR1, 0, 0},
		{classALU64 | aluADD | aluSourceReg, RegR0, RegR2, 0, 0},
		{classJMP | jmpEXIT, 0, 0, 0, 0},
	})
	result, err := Execute(prog, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), result)
}

func TestHelperDispatch(t *testing.T) {
	helpers := HelperTable{
		7: func(r1, r2, r3, r4, r5 uint64) uint64 { return r1 * r2 },
	}
	prog := asm([][5]int64{
		{classALU64 | aluMOV, RegR1, 0, 0, 6},
		{classALU64 | aluMOV, RegR2, 0, 0, 7},
		{classJMP | jmpCALL, 0, 0, 0, 7},
		{classJMP | jmpEXIT, 0, 0, 0, 0},
	})
	result, err := Execute(prog, nil, nil, helpers)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), result)
}

func TestUnknownHelperIsFatal(t *testing.T) {
	prog := asm([][5]int64{
		{classJMP | jmpCALL, 0, 0, 0, 99},
		{classJMP | jmpEXIT, 0, 0, 0, 0},
	})
	_, err := Execute(prog, nil, nil, nil)
	require.Error(t, err)
	var vmErr *VMError
	require.ErrorAs(t, err, &vmErr)
}

func TestCallDepthOverflowIsFatal(t *testing.T) {
	// A program whose only instruction calls itself (offset -1 targets its
	// own index) must hit the RBPF_MAX_CALL_DEPTH ceiling rather than
	// recursing forever.
	prog := asm([][5]int64{
		{classJMP | jmpCALL, 0, 1, 0, -1},
	})
	_, err := Execute(prog, nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call depth")
}

func TestMemoryLoadStoreRoundTrip(t *testing.T) {
	mem := make([]byte, 16)
	// R6 := mem base (via a wide LD_DW_IMM pair); *(u32*)(r6+0) = 0x2a; R0 := *(u32*)(r6+0).
	prog := asm([][5]int64{
		{classLD | modeIMM | sizeDW, RegR6, 0, 0, int64(int32(memBaseAddr))},
		{0, 0, 0, 0, int64(memBaseAddr >> 32)},
		{classALU64 | aluMOV, RegR1, 0, 0, 0x2a},
		{classSTX | sizeW, RegR6, RegR1, 0, 0},
		{classLDX | sizeW, RegR0, RegR6, 0, 0},
		{classJMP | jmpEXIT, 0, 0, 0, 0},
	})
	result, err := Execute(prog, mem, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x2a), result)
}

func TestOutOfBoundsAccessReturnsAccessError(t *testing.T) {
	mem := make([]byte, 4)
	wide := asm([][5]int64{
		{classLD | modeIMM | sizeDW, RegR6, 0, 0, int64(int32(memBaseAddr))},
		{0, 0, 0, 0, int64(memBaseAddr >> 32)},
		{classALU64 | aluADD, RegR6, 0, 0, 1000},
		{classLDX | sizeW, RegR0, RegR6, 0, 0},
		{classJMP | jmpEXIT, 0, 0, 0, 0},
	})
	_, err := Execute(wide, mem, nil, nil)
	require.Error(t, err)
	var accErr *AccessError
	require.ErrorAs(t, err, &accErr)
	assert.Equal(t, AccessLoad, accErr.Kind)
}

func TestJumpComparisons(t *testing.T) {
	// R1 := 10; if R1 > 5 goto +2 (skip the R0:=0 branch); R0 := 0; EXIT; R0 := 1; EXIT.
	prog := asm([][5]int64{
		{classALU64 | aluMOV, RegR1, 0, 0, 10},
		{classJMP | jmpJGT, RegR1, 0, 2, 5},
		{classALU64 | aluMOV, RegR0, 0, 0, 0},
		{classJMP | jmpEXIT, 0, 0, 0, 0},
		{classALU64 | aluMOV, RegR0, 0, 0, 1},
		{classJMP | jmpEXIT, 0, 0, 0, 0},
	})
	result, err := Execute(prog, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result)
}

func TestALU32NegMasksTo32Bits(t *testing.T) {
	// R1 := -1 (32-bit NEG of 1) is masked to the low 32 bits, not sign-extended.
	prog := asm([][5]int64{
		{classALU | aluMOV, RegR1, 0, 0, 1},
		{classALU | aluNEG, RegR1, 0, 0, 0},
		{classALU64 | aluMOV | aluSourceReg, RegR0, RegR1, 0, 0},
		{classJMP | jmpEXIT, 0, 0, 0, 0},
	})
	result, err := Execute(prog, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x00000000FFFFFFFF), result)
}

func TestDivByZeroYieldsZero(t *testing.T) {
	prog := asm([][5]int64{
		{classALU64 | aluMOV, RegR1, 0, 0, 42},
		{classALU64 | aluMOV, RegR2, 0, 0, 0},
		{classALU64 | aluDIV | aluSourceReg, RegR1, RegR2, 0, 0},
		{classALU64 | aluMOV | aluSourceReg, RegR0, RegR1, 0, 0},
		{classJMP | jmpEXIT, 0, 0, 0, 0},
	})
	result, err := Execute(prog, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), result)
}
