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
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kernelsim/coresys/internal/clock"
	"github.com/kernelsim/coresys/internal/collab"
	"github.com/kernelsim/coresys/internal/sched"
)

func newSchedCmd() *cobra.Command {
	schedCmd := &cobra.Command{Use: "sched", Short: "Scheduler subcommands"}
	schedCmd.AddCommand(newSchedDemoCmd())
	return schedCmd
}

func newSchedDemoCmd() *cobra.Command {
	var ticks int
	demo := &cobra.Command{
		Use:   "demo",
		Short: "Run a handful of CFS tasks for N ticks and print per-CPU state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedDemo(cfgValue.Sched.NumCPUs, ticks)
		},
	}
	demo.Flags().IntVar(&ticks, "ticks", 100, "number of scheduler ticks to simulate")
	return demo
}

// runSchedDemo seeds 5 CFS tasks per CPU and ticks every run queue for the
// requested number of rounds. Each round ticks all CPUs concurrently via an
// errgroup, the same fan-out-then-join shape the teacher uses for per-object
// parallel work, since distinct CPUs' run queues share no locks at this
// granularity.
func runSchedDemo(numCPUs, ticks int) error {
	clk := clock.NewSimulatedClock(time.Unix(0, 0))
	irq := &collab.FakeIRQController{}
	s := sched.NewScheduler(numCPUs, clk, irq)

	for cpu := 0; cpu < numCPUs; cpu++ {
		for i := 0; i < 5; i++ {
			pid := 1000 + cpu*5 + i
			pcb := sched.NewPCB(pid, pid, sched.PolicyCFS, 0)
			s.RQ(cpu).Enqueue(cpu, pcb, sched.EnqueueInitial)
		}
		s.Schedule(cpu, sched.ModeNone, false, sched.StateRunnable) // pick the first task off idle
	}

	for t := 0; t < ticks; t++ {
		clk.AdvanceTime(time.Millisecond)

		var g errgroup.Group
		for cpu := 0; cpu < numCPUs; cpu++ {
			cpu := cpu
			g.Go(func() error {
				s.RQ(cpu).Tick(cpu)
				if cur := s.RQ(cpu).Current(); cur != nil && cur.NeedResched.Load() {
					s.Schedule(cpu, sched.ModeNone, false, sched.StateRunnable)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		s.CalculateGlobalLoadTick(clk.Jiffies(), 0)
	}

	fmt.Print(s.String())
	fmt.Printf("global load average sample: %d\n", s.GlobalLoad())
	return nil
}
