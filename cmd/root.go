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

// Package cmd wires the four kernel subsystems into a cobra command tree
// (ksimd), the same flag-to-struct rationalization shape the teacher's
// cmd/root.go uses for gcsfuse: pflag registers the flags, viper binds them,
// mapstructure decodes into a typed Config, then Rationalize fills defaults.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kernelsim/coresys/cfg"
	"github.com/kernelsim/coresys/internal/logger"
)

var (
	cfgValue cfg.Config
	v        = viper.New()
)

// NewRootCmd builds the ksimd command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ksimd",
		Short: "Interactive driver for the kernel-subsystem simulator",
		Long: `ksimd exercises the scheduler, futex, ext4, and eBPF subsystems
from the command line, the same way a kernel developer might poke at them
through /proc or a debugger script.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return decodeConfig()
		},
	}

	root.PersistentFlags().Int("sched-num-cpus", 4, "number of simulated CPUs")
	root.PersistentFlags().Int("futex-robust-list-retry-cap", 64, "CAS retry cap for robust-list cleanup")
	root.PersistentFlags().Int("ebpf-stack-frame-size-bytes", 512, "eBPF per-call stack frame size")
	root.PersistentFlags().String("log-level", "info", "log level: trace|debug|info|warning|error")
	root.PersistentFlags().String("log-format", "text", "log format: text|json")
	root.PersistentFlags().String("log-path", "", "log file path (empty = stderr, no rotation)")

	bindFlags(root)

	root.AddCommand(newSchedCmd(), newFutexCmd(), newEBPFCmd(), newExt4Cmd())
	return root
}

func bindFlags(root *cobra.Command) {
	for _, name := range []string{
		"sched-num-cpus", "futex-robust-list-retry-cap", "ebpf-stack-frame-size-bytes",
		"log-level", "log-format", "log-path",
	} {
		if err := v.BindPFlag(name, root.PersistentFlags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("cmd: bind flag %q: %v", name, err))
		}
	}
}

// decodeConfig mirrors the teacher's rationalize step: viper's flat
// flag-name map decodes into the nested Config struct via mapstructure, then
// defaults are applied for anything left zero.
func decodeConfig() error {
	raw := map[string]any{
		"sched": map[string]any{
			"num-cpus": v.GetInt("sched-num-cpus"),
		},
		"futex": map[string]any{
			"robust-list-retry-cap": v.GetInt("futex-robust-list-retry-cap"),
		},
		"ebpf": map[string]any{
			"stack-frame-size-bytes": v.GetInt("ebpf-stack-frame-size-bytes"),
		},
		"log": map[string]any{
			"level":  v.GetString("log-level"),
			"format": v.GetString("log-format"),
			"path":   v.GetString("log-path"),
		},
	}
	if err := mapstructure.Decode(raw, &cfgValue); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	cfgValue.Rationalize()

	level := parseLevel(cfgValue.Log.Level)
	format := logger.TextFormat
	if cfgValue.Log.Format == "json" {
		format = logger.JSONFormat
	}
	_, err := logger.Init(logger.Config{Level: level, Format: format, FilePath: cfgValue.Log.Path})
	return err
}

func parseLevel(s string) slog.Level {
	switch s {
	case "trace":
		return logger.LevelTrace
	case "debug":
		return logger.LevelDebug
	case "warning":
		return logger.LevelWarning
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

// Execute runs the ksimd command tree, exiting the process on error the way
// a standalone cobra binary's main() conventionally does.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
