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

// Package simulator provides a virtual OV9655 for running the full pipeline
// without hardware. The Bus type emulates the sensor's register file at the
// control-bus level (including software reset semantics), and the Source type
// produces synthetic RGB565 frames at a configurable rate.
package simulator

import (
	"context"
	"time"

	dashcam "github.com/bbrown1867/go-dashcam"
	"github.com/bbrown1867/go-dashcam/internal/syncutil"
)

// OV9655 identification registers. The virtual register file preloads these
// so the driver's ID handshake passes.
const (
	regProdIDMSB = 0x0A
	regProdIDLSB = 0x0B
	regCOM7      = 0x12
	regManfIDMSB = 0x1C
	regManfIDLSB = 0x1D

	com7Reset = 0x80
)

// Bus is a virtual sensor register file implementing dashcam.ControlBus.
// Writing COM7 with the reset bit restores every register to its power-on
// value, matching the real sensor's software reset.
type Bus struct {
	regs     map[byte]byte
	nacks    map[byte]int
	closed   bool
	writeLog []byte
	mu       syncutil.Mutex
}

// NewBus creates a virtual sensor with power-on register values
func NewBus() *Bus {
	b := &Bus{}
	b.reset()
	return b
}

// reset restores power-on register values. Caller holds b.mu (or is the
// constructor).
func (b *Bus) reset() {
	b.regs = map[byte]byte{
		regManfIDMSB: 0x7F,
		regManfIDLSB: 0xA2,
		regProdIDMSB: 0x96,
		regProdIDLSB: 0x57,
	}
}

// FailWrites makes the next n writes to reg answer with a NACK, emulating a
// sensor that is slow to come out of reset
func (b *Bus) FailWrites(reg byte, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nacks == nil {
		b.nacks = make(map[byte]int)
	}
	b.nacks[reg] = n
}

// Register returns the current value of a register
func (b *Bus) Register(reg byte) byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.regs[reg]
}

// Writes returns the sequence of register addresses written so far, in order
func (b *Bus) Writes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.writeLog))
	copy(out, b.writeLog)
	return out
}

// WriteRegister stores a register value, honoring reset and scripted NACKs
func (b *Bus) WriteRegister(ctx context.Context, reg, value byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return dashcam.NewBusClosedError("WriteRegister", "simulator")
	}
	if n := b.nacks[reg]; n > 0 {
		b.nacks[reg] = n - 1
		return dashcam.NewNoACKError("WriteRegister", "simulator", reg)
	}

	b.writeLog = append(b.writeLog, reg)
	if reg == regCOM7 && value&com7Reset != 0 {
		b.reset()
		return nil
	}
	b.regs[reg] = value
	return nil
}

// ReadRegister returns a register value
func (b *Bus) ReadRegister(ctx context.Context, reg byte) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, dashcam.NewBusClosedError("ReadRegister", "simulator")
	}
	if n := b.nacks[reg]; n > 0 {
		b.nacks[reg] = n - 1
		return 0, dashcam.NewNoACKError("ReadRegister", "simulator", reg)
	}
	return b.regs[reg], nil
}

// SetTimeout is a no-op for the simulator
func (*Bus) SetTimeout(_ time.Duration) error { return nil }

// Close marks the bus closed
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// IsConnected returns true until Close is called
func (b *Bus) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

// Type returns the bus type
func (*Bus) Type() dashcam.BusType { return dashcam.BusMock }

// Ensure Bus implements dashcam.ControlBus
var _ dashcam.ControlBus = (*Bus)(nil)
