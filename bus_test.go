// Copyright 2026 The go-dashcam Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package dashcam

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockBus_WriteRead(t *testing.T) {
	t.Parallel()

	bus := NewMockBus()
	ctx := context.Background()

	require.NoError(t, bus.WriteRegister(ctx, 0x12, 0x63))
	got, err := bus.ReadRegister(ctx, 0x12)
	require.NoError(t, err)
	assert.Equal(t, byte(0x63), got)

	assert.Equal(t, 1, bus.WriteCount(0x12))
	assert.Equal(t, 1, bus.ReadCount(0x12))
}

func TestMockBus_InjectedError(t *testing.T) {
	t.Parallel()

	bus := NewMockBus()
	ctx := context.Background()
	injected := NewNoACKError("WriteRegister", "mock", 0x11)

	bus.SetError(0x11, injected)
	err := bus.WriteRegister(ctx, 0x11, 0x01)
	require.ErrorIs(t, err, ErrNoACK)
	// The failed write is still counted
	assert.Equal(t, 1, bus.WriteCount(0x11))

	bus.ClearError(0x11)
	require.NoError(t, bus.WriteRegister(ctx, 0x11, 0x01))
}

func TestMockBus_ClosedBus(t *testing.T) {
	t.Parallel()

	bus := NewMockBus()
	assert.True(t, bus.IsConnected())

	require.NoError(t, bus.Close())
	assert.False(t, bus.IsConnected())

	err := bus.WriteRegister(context.Background(), 0x12, 0x80)
	require.ErrorIs(t, err, ErrBusClosed)
	assert.True(t, IsFatal(err))

	_, err = bus.ReadRegister(context.Background(), 0x12)
	require.ErrorIs(t, err, ErrBusClosed)
}

func TestMockBus_ContextCancellation(t *testing.T) {
	t.Parallel()

	bus := NewMockBus()
	bus.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := bus.WriteRegister(ctx, 0x12, 0x80)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	// A cancelled transaction never lands in the register file
	assert.Equal(t, byte(0x00), bus.Register(0x12))
}

func TestMockBus_Type(t *testing.T) {
	t.Parallel()

	assert.Equal(t, BusMock, NewMockBus().Type())
}
