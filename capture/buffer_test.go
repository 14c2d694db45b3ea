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

package capture

import (
	"testing"

	dashcam "github.com/bbrown1867/go-dashcam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testGeom keeps slot math small and readable in tests
var testGeom = dashcam.FrameGeometry{Width: 4, Height: 2, BytesPerPixel: 2}

func newTestManager(t *testing.T, capacity int) *Manager {
	t.Helper()
	buf, err := NewFrameBuffer(testGeom, capacity)
	require.NoError(t, err)
	return NewManager(buf)
}

func TestNewFrameBuffer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		geom     dashcam.FrameGeometry
		capacity int
		wantErr  bool
	}{
		{
			name:     "ping-pong pair",
			geom:     testGeom,
			capacity: 2,
		},
		{
			name:     "rolling window",
			geom:     testGeom,
			capacity: 10,
		},
		{
			name:     "single slot rejected",
			geom:     testGeom,
			capacity: 1,
			wantErr:  true,
		},
		{
			name:     "empty geometry rejected",
			geom:     dashcam.FrameGeometry{},
			capacity: 2,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			buf, err := NewFrameBuffer(tt.geom, tt.capacity)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrBufferGeometry)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.capacity, buf.Capacity())
			assert.Equal(t, tt.geom, buf.Geometry())
			assert.Len(t, buf.Slot(0), tt.geom.FrameBytes())
		})
	}
}

func TestFrameBuffer_SlotsAreDisjoint(t *testing.T) {
	t.Parallel()

	buf, err := NewFrameBuffer(testGeom, 3)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		slot := buf.Slot(i)
		for j := range slot {
			slot[j] = byte(i + 1)
		}
	}
	for i := 0; i < 3; i++ {
		for _, b := range buf.Slot(i) {
			assert.Equal(t, byte(i+1), b)
		}
	}
}

func TestManager_CompleteAndTake(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t, 2)

	_, ok := mgr.TryTakeReadyFrame()
	assert.False(t, ok, "empty buffer should have no ready frame")

	dst := mgr.beginWrite(0)
	require.NotNil(t, dst)
	dst[0] = 0xAB
	mgr.complete(0, 1)

	assert.Equal(t, 1, mgr.Buffered())
	assert.Equal(t, uint64(1), mgr.Frames())

	h, ok := mgr.TryTakeReadyFrame()
	require.True(t, ok)
	assert.Equal(t, 0, h.Slot())
	assert.Equal(t, uint64(1), h.Sequence())
	assert.Equal(t, byte(0xAB), h.Data()[0])
	assert.Equal(t, 0, mgr.Buffered(), "held frame is no longer buffered")

	require.NoError(t, h.Release())
	require.ErrorIs(t, h.Release(), ErrHandleReleased)
}

func TestManager_TakeOldestFirst(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t, 4)
	for slot, seq := range map[int]uint64{2: 7, 0: 5, 3: 9} {
		require.NotNil(t, mgr.beginWrite(slot))
		mgr.complete(slot, seq)
	}

	var got []uint64
	for {
		h, ok := mgr.TryTakeReadyFrame()
		if !ok {
			break
		}
		got = append(got, h.Sequence())
		require.NoError(t, h.Release())
	}
	assert.Equal(t, []uint64{5, 7, 9}, got)
}

func TestManager_OverwriteUnreadFrame(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t, 2)

	require.NotNil(t, mgr.beginWrite(0))
	mgr.complete(0, 1)

	// Ring wraps before anyone read slot 0: oldest frame is overwritten
	dst := mgr.beginWrite(0)
	require.NotNil(t, dst)
	mgr.complete(0, 3)

	assert.Equal(t, uint64(1), mgr.Drops())

	h, ok := mgr.TryTakeReadyFrame()
	require.True(t, ok)
	assert.Equal(t, uint64(3), h.Sequence())
	require.NoError(t, h.Release())
}

func TestManager_HeldSlotRefusesWriter(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t, 2)

	require.NotNil(t, mgr.beginWrite(0))
	mgr.complete(0, 1)

	h, ok := mgr.TryTakeReadyFrame()
	require.True(t, ok)

	// Consumer stalled a full buffer cycle: the engine is refused the slot
	// and the incoming frame is dropped instead of racing the reader.
	assert.Nil(t, mgr.beginWrite(0))
	assert.Equal(t, uint64(1), mgr.Drops())

	// The held frame's data stays readable
	assert.Len(t, h.Data(), testGeom.FrameBytes())
	require.NoError(t, h.Release())

	// After release the slot is writable again
	assert.NotNil(t, mgr.beginWrite(0))
}

func TestManager_AbortWrite(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t, 2)

	require.NotNil(t, mgr.beginWrite(1))
	mgr.abortWrite(1)

	_, ok := mgr.TryTakeReadyFrame()
	assert.False(t, ok, "aborted transfer must not surface a frame")
	assert.Equal(t, uint64(0), mgr.Frames())
}

func TestManager_NoteDrop(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t, 2)
	mgr.noteDrop()

	assert.Equal(t, uint64(1), mgr.Drops())
	assert.Equal(t, uint64(1), mgr.Frames())
	assert.Equal(t, 0, mgr.Buffered())
}

func TestManager_Reset(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t, 3)
	for slot := 0; slot < 3; slot++ {
		require.NotNil(t, mgr.beginWrite(slot))
		mgr.complete(slot, uint64(slot+1))
	}
	mgr.noteDrop()

	mgr.Reset()
	assert.Equal(t, 0, mgr.Buffered())
	assert.Equal(t, uint64(0), mgr.Frames())
	assert.Equal(t, uint64(0), mgr.Drops())
	_, ok := mgr.TryTakeReadyFrame()
	assert.False(t, ok)
}
