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

// Package logger is the structured-logging facade every subsystem logs
// through. It wraps log/slog with a severity vocabulary matching the kernel's
// own (TRACE/DEBUG/INFO/WARNING/ERROR) and, when configured with a file path,
// rotates output through gopkg.in/natefinch/lumberjack.v2.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels, numbered so TRACE < DEBUG < INFO < WARNING < ERROR.
const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
)

var levelNames = map[slog.Leveler]string{
	LevelTrace:   "TRACE",
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
}

// Format selects the handler's wire format.
type Format int

const (
	TextFormat Format = iota
	JSONFormat
)

// Config controls where and how subsystem loggers write.
type Config struct {
	Format   Format
	Level    slog.Level
	FilePath string // empty means stderr, no rotation
	MaxSizeMB int
	MaxBackups int
}

var defaultLogger = slog.New(newHandler(os.Stderr, LevelInfo, TextFormat))

// Init replaces the package-wide default logger. Subsystems obtain loggers
// via New(name), which is a child of this default, so calling Init before
// constructing subsystem components changes where everything subsequently
// logs.
func Init(cfg Config) (io.Closer, error) {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if cfg.FilePath != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
		}
		w = lj
		closer = lj
	}

	defaultLogger = slog.New(newHandler(w, cfg.Level, cfg.Format))
	return closer, nil
}

// New returns a logger scoped to a subsystem name (e.g. "sched", "futex",
// "ext4", "ebpf"), attached as a structured attribute on every record.
func New(subsystem string) *slog.Logger {
	return defaultLogger.With(slog.String("subsystem", subsystem))
}

func newHandler(w io.Writer, level slog.Level, format Format) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				lvl := a.Value.Any().(slog.Level)
				if name, ok := levelNames[lvl]; ok {
					a.Value = slog.StringValue(name)
				}
				a.Key = "severity"
			}
			return a
		},
	}
	if format == JSONFormat {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Trace logs at the lowest severity; most deployments never surface it.
func Trace(ctx context.Context, l *slog.Logger, msg string, args ...any) {
	l.Log(ctx, LevelTrace, msg, args...)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
