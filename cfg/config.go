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

// Package cfg is the flag-to-struct configuration surface for the ksimd
// binary, mirroring the teacher's cfg package: a plain struct decoded from
// viper-bound pflags via mapstructure, then rationalized into the values the
// subsystems actually consume.
package cfg

// Config is the root configuration for ksimd, bound from command-line flags
// via viper + pflag and decoded with mapstructure (cmd/root.go).
type Config struct {
	Sched SchedConfig `mapstructure:"sched"`
	Futex FutexConfig `mapstructure:"futex"`
	EBPF  EBPFConfig  `mapstructure:"ebpf"`
	Log   LogConfig   `mapstructure:"log"`
}

// SchedConfig controls the scheduler demo's shape.
type SchedConfig struct {
	NumCPUs int `mapstructure:"num-cpus"`
	// NiceOverrides maps nice levels to weights. It is decoded from
	// configuration only: the scheduler does not read it and always uses its
	// built-in nice-to-weight table.
	NiceOverrides map[int]uint64 `mapstructure:"nice-overrides"`
}

// FutexConfig controls the futex demo and robust-list cleanup behavior.
type FutexConfig struct {
	// RobustListRetryCap is a cap on CAS retries during exit-time
	// robust-list cleanup. It is decoded and defaulted here only: the futex
	// package does not read it, and its cleanup retries the CAS without a
	// bound.
	RobustListRetryCap int `mapstructure:"robust-list-retry-cap"`
}

// EBPFConfig controls the eBPF demo.
type EBPFConfig struct {
	StackFrameSizeBytes int `mapstructure:"stack-frame-size-bytes"`
}

// LogConfig controls the logger package's Init (internal/logger).
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// Rationalize applies defaults and clamps to whatever viper/mapstructure
// produced, the way the teacher's cfg.Rationalize step fills in zero-valued
// fields after flag decoding (cfg/rationalize.go).
func (c *Config) Rationalize() {
	if c.Sched.NumCPUs <= 0 {
		c.Sched.NumCPUs = 4
	}
	if c.Futex.RobustListRetryCap <= 0 {
		c.Futex.RobustListRetryCap = 64
	}
	if c.EBPF.StackFrameSizeBytes <= 0 {
		c.EBPF.StackFrameSizeBytes = 512
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}
