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

// Package capture implements the double-buffered frame acquisition pipeline:
// a fixed ring of frame slots filled by a free-running capture engine, with
// an ownership manager that hands completed frames to consumers without ever
// exposing a half-written frame.
package capture

import (
	"errors"
	"fmt"

	dashcam "github.com/bbrown1867/go-dashcam"
	"github.com/bbrown1867/go-dashcam/internal/syncutil"
)

var (
	// ErrAlreadyRunning indicates Start was called on a running pipeline
	ErrAlreadyRunning = errors.New("capture already running")
	// ErrNotRunning indicates Stop was called on a stopped pipeline
	ErrNotRunning = errors.New("capture not running")
	// ErrBufferGeometry indicates the buffer does not fit the frame geometry
	ErrBufferGeometry = errors.New("buffer geometry invalid")
	// ErrHandleReleased indicates a frame handle was released twice
	ErrHandleReleased = errors.New("frame handle already released")
)

// FrameBuffer is a statically allocated memory region divided into equal
// frame-sized slots. Two slots is the pure ping-pong configuration; more
// slots extend the same discipline into a rolling capture window (the slot
// being written and the slot queued for the engine are the two in-flight
// "halves", everything behind them is history). The buffer lives for the
// whole capture session and is never resized.
type FrameBuffer struct {
	geom  dashcam.FrameGeometry
	data  []byte
	slots int
}

// NewFrameBuffer allocates a buffer of capacity frame slots
func NewFrameBuffer(geom dashcam.FrameGeometry, capacity int) (*FrameBuffer, error) {
	if !geom.Valid() {
		return nil, fmt.Errorf("%w: empty frame geometry", ErrBufferGeometry)
	}
	if capacity < 2 {
		return nil, fmt.Errorf("%w: need at least 2 slots, got %d", ErrBufferGeometry, capacity)
	}
	return &FrameBuffer{
		geom:  geom,
		data:  make([]byte, geom.FrameBytes()*capacity),
		slots: capacity,
	}, nil
}

// Geometry returns the frame geometry the buffer was sized for
func (b *FrameBuffer) Geometry() dashcam.FrameGeometry {
	return b.geom
}

// Capacity returns the number of frame slots
func (b *FrameBuffer) Capacity() int {
	return b.slots
}

// Slot returns the memory region of one frame slot
func (b *FrameBuffer) Slot(i int) []byte {
	fs := b.geom.FrameBytes()
	return b.data[i*fs : (i+1)*fs]
}

// slotState tracks who owns a frame slot
type slotState int

const (
	slotIdle slotState = iota
	slotWriting
	slotReady
	slotHeld
)

// FrameHandle grants exclusive read access to one completed frame slot until
// released back to the Manager.
type FrameHandle struct {
	mgr  *Manager
	data []byte
	slot int
	seq  uint64
}

// Data returns the frame's pixel data. Valid until Release.
func (h *FrameHandle) Data() []byte { return h.data }

// Slot returns the buffer slot index the handle refers to
func (h *FrameHandle) Slot() int { return h.slot }

// Sequence returns the frame's capture sequence number
func (h *FrameHandle) Sequence() uint64 { return h.seq }

// Release returns the slot to the manager
func (h *FrameHandle) Release() error {
	if h.mgr == nil {
		return ErrHandleReleased
	}
	mgr := h.mgr
	h.mgr = nil
	return mgr.release(h.slot)
}

// Manager is the single arbitration point for slot ownership. At any instant
// a slot is owned by exactly one party: the capture engine (writing), the
// manager (completed, awaiting a consumer), or a consumer (held through a
// FrameHandle). No other component touches ownership.
//
// Ownership transfer happens under one short mutex hold so a completion
// arriving concurrently can never observe a half-updated ownership record.
type Manager struct {
	buf      *FrameBuffer
	state    []slotState
	seq      []uint64
	reclaims []bool
	drops    uint64
	frames   uint64
	mu       syncutil.Mutex
}

// NewManager creates an ownership manager over a frame buffer
func NewManager(buf *FrameBuffer) *Manager {
	return &Manager{
		buf:      buf,
		state:    make([]slotState, buf.Capacity()),
		seq:      make([]uint64, buf.Capacity()),
		reclaims: make([]bool, buf.Capacity()),
	}
}

// Buffer returns the managed frame buffer
func (m *Manager) Buffer() *FrameBuffer {
	return m.buf
}

// beginWrite claims a slot for the capture engine. If the slot still holds an
// unread completed frame it is overwritten and the drop counter incremented
// (rolling-window policy: data loss is preferred to stalling live capture).
// If a consumer still holds the slot, the engine is refused: the incoming
// frame must be discarded instead, the handle is marked reclaimed, and the
// drop counter incremented. Returns the slot memory, or nil when refused.
func (m *Manager) beginWrite(slot int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state[slot] {
	case slotHeld:
		// Overrun: consumer stalled past a full buffer cycle
		m.reclaims[slot] = true
		m.drops++
		return nil
	case slotReady:
		// Oldest unread frame is overwritten
		m.drops++
	case slotIdle, slotWriting:
	}
	m.state[slot] = slotWriting
	return m.buf.Slot(slot)
}

// abortWrite returns a claimed slot to idle without completing it. Used when
// capture stops or fails mid-transfer so a partial frame is never exposed.
func (m *Manager) abortWrite(slot int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state[slot] == slotWriting {
		m.state[slot] = slotIdle
		m.seq[slot] = 0
	}
}

// complete marks a slot's transfer finished, handing ownership from the
// engine to the manager.
func (m *Manager) complete(slot int, seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[slot] = slotReady
	m.seq[slot] = seq
	m.frames++
}

// noteDrop records a frame deliberately discarded before reaching a slot
func (m *Manager) noteDrop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops++
	m.frames++
}

// TryTakeReadyFrame hands out the oldest completed frame, or ok=false when
// none is ready. Non-blocking; safe to call from any goroutine.
func (m *Manager) TryTakeReadyFrame() (handle *FrameHandle, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	best := -1
	for i, st := range m.state {
		if st != slotReady {
			continue
		}
		if best == -1 || m.seq[i] < m.seq[best] {
			best = i
		}
	}
	if best == -1 {
		return nil, false
	}

	m.state[best] = slotHeld
	return &FrameHandle{
		mgr:  m,
		data: m.buf.Slot(best),
		slot: best,
		seq:  m.seq[best],
	}, true
}

func (m *Manager) release(slot int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state[slot] != slotHeld {
		return ErrHandleReleased
	}
	m.state[slot] = slotIdle
	m.seq[slot] = 0
	m.reclaims[slot] = false
	return nil
}

// Buffered returns the number of completed frames awaiting a consumer
func (m *Manager) Buffered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, st := range m.state {
		if st == slotReady {
			n++
		}
	}
	return n
}

// Frames returns the number of completed (or deliberately dropped) frames
func (m *Manager) Frames() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// Drops returns the dropped-frame counter
func (m *Manager) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}

// Reset returns every slot to idle and zeroes the counters. Called on
// session teardown; the capture engine must already be stopped.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state {
		m.state[i] = slotIdle
		m.seq[i] = 0
		m.reclaims[i] = false
	}
	m.drops = 0
	m.frames = 0
}
