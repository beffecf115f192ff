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

package collab

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeBlockDeviceRoundTrip(t *testing.T) {
	dev := NewFakeBlockDevice(512, 4)
	ctx := context.Background()

	data := make([]byte, 512)
	data[0] = 0xAB
	require.NoError(t, dev.WriteBlock(ctx, 2, data))

	got, err := dev.ReadBlock(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), got[0])

	_, err = dev.ReadBlock(ctx, 10)
	assert.Error(t, err)
}

func TestFakeUserMemoryCompareAndSwap(t *testing.T) {
	m := NewFakeUserMemory(16)
	require.NoError(t, m.WriteU32(0, 5))

	_, swapped, err := m.CompareAndSwapU32(0, 4, 9)
	require.NoError(t, err)
	assert.False(t, swapped)

	old, swapped, err := m.CompareAndSwapU32(0, 5, 9)
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.Equal(t, uint32(5), old)

	got, err := m.ReadU32(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), got)
}
