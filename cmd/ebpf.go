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

package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kernelsim/coresys/internal/ebpf"
)

func newEBPFCmd() *cobra.Command {
	ebpfCmd := &cobra.Command{Use: "ebpf", Short: "eBPF interpreter subcommands"}
	ebpfCmd.AddCommand(newEBPFRunCmd())
	return ebpfCmd
}

func newEBPFRunCmd() *cobra.Command {
	var progHex string
	run := &cobra.Command{
		Use:   "run",
		Short: "Execute a hex-encoded bytecode program and print R0",
		RunE: func(cmd *cobra.Command, args []string) error {
			if progHex == "" {
				progHex = demoProgramHex()
			}
			prog, err := hex.DecodeString(progHex)
			if err != nil {
				return fmt.Errorf("decode --prog: %w", err)
			}
			result, err := ebpf.Execute(prog, nil, nil, ebpf.HelperTable{})
			if err != nil {
				return err
			}
			fmt.Printf("R0 = %d\n", result)
			return nil
		},
	}
	run.Flags().StringVar(&progHex, "prog", "", "hex-encoded program; defaults to the S6 ALU64+call demo")
	return run
}

// s6ProgramHex is the S6 scenario hand-encoded to the VM's 8-byte
// instruction wire format (opcode, dst|src<<4, off LE16, imm LE32):
//
//	R1 := 5                         ALU64 MOV imm   dst=R1 imm=5
//	R2 := 7                         ALU64 MOV imm   dst=R2 imm=7
//	call +1                         JMP CALL        src=1 imm=1
//	EXIT                            JMP EXIT
//	R0 := R1                        ALU64 MOV reg   dst=R0 src=R1
//	R0 += R2                        ALU64 ADD reg   dst=R0 src=R2
//	EXIT                            JMP EXIT
const s6ProgramHex = "b701000005000000" +
	"b702000007000000" +
	"8510000001000000" +
	"9500000000000000" +
	"bf10000000000000" +
	"0f20000000000000" +
	"9500000000000000"

// demoProgramHex returns S6 encoded as hex: R1:=5; R2:=7; call +1 (target:
// R0 := R1+R2; EXIT); EXIT. Kept as a literal rather than assembled at
// runtime since this command has no assembler — just the raw bytes a
// verified loader would have handed the VM.
func demoProgramHex() string {
	return s6ProgramHex
}
