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

package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityReplacesLevelKey(t *testing.T) {
	var buf bytes.Buffer
	h := newHandler(&buf, LevelInfo, JSONFormat)
	l := slog.New(h)

	l.Info("hello")

	require.Contains(t, buf.String(), `"severity":"INFO"`)
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestTraceBelowDefaultLevelIsSuppressed(t *testing.T) {
	var buf bytes.Buffer
	h := newHandler(&buf, LevelInfo, TextFormat)
	l := slog.New(h)

	l.Log(context.Background(), LevelTrace, "should not appear")

	assert.Empty(t, buf.String())
}

func TestNewScopesSubsystemAttribute(t *testing.T) {
	var buf bytes.Buffer
	defaultLogger = slog.New(newHandler(&buf, LevelInfo, TextFormat))

	l := New("sched")
	l.Info("tick")

	assert.Contains(t, buf.String(), "subsystem=sched")
}
