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

// Package i2c provides the native SCCB-over-I2C control bus for the sensor
package i2c

import (
	"context"
	"fmt"
	"strings"
	"time"

	dashcam "github.com/bbrown1867/go-dashcam"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// SCCB runs at standard I2C speed; the OV9655 does not support fast mode
const busClockFreq = 100 * physic.KiloHertz

// Bus implements the dashcam.ControlBus interface over an I2C adapter.
// SCCB is electrically I2C but without repeated-start support, so register
// reads are issued as two independent transactions.
type Bus struct {
	dev     *i2c.Dev
	bus     i2c.BusCloser // Held so Close() can release the OS file descriptor
	busName string
	timeout time.Duration
}

// parseBusPath extracts the bus path from a composite path.
// Accepts "/dev/i2c-1:0x30" or "/dev/i2c-1".
func parseBusPath(path string) string {
	bus, _, _ := strings.Cut(path, ":")
	return bus
}

// New opens an I2C bus and addresses the sensor on it
func New(busName string) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(parseBusPath(busName))
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}

	if err := bus.SetSpeed(busClockFreq); err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("failed to set I2C bus speed: %w", err)
	}

	return &Bus{
		dev:     &i2c.Dev{Addr: dashcam.SensorAddr, Bus: bus},
		bus:     bus,
		busName: busName,
		timeout: 100 * time.Millisecond,
	}, nil
}

// WriteRegister writes one register in a single two-byte transaction. An
// I2C NACK from the sensor surfaces as dashcam.ErrNoACK.
func (b *Bus) WriteRegister(ctx context.Context, reg, value byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.dev == nil {
		return dashcam.NewBusClosedError("WriteRegister", b.busName)
	}

	if err := b.dev.Tx([]byte{reg, value}, nil); err != nil {
		dashcam.Debugf("i2c write reg 0x%02X: %v", reg, err)
		return dashcam.NewNoACKError("WriteRegister", b.busName, reg)
	}
	return nil
}

// ReadRegister reads one register: a one-byte address write followed by a
// separate one-byte read, per the SCCB two-phase read sequence.
func (b *Bus) ReadRegister(ctx context.Context, reg byte) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if b.dev == nil {
		return 0, dashcam.NewBusClosedError("ReadRegister", b.busName)
	}

	if err := b.dev.Tx([]byte{reg}, nil); err != nil {
		dashcam.Debugf("i2c address phase reg 0x%02X: %v", reg, err)
		return 0, dashcam.NewNoACKError("ReadRegister", b.busName, reg)
	}

	var buf [1]byte
	if err := b.dev.Tx(nil, buf[:]); err != nil {
		dashcam.Debugf("i2c data phase reg 0x%02X: %v", reg, err)
		return 0, dashcam.NewBusReadError("ReadRegister", b.busName, reg)
	}
	return buf[0], nil
}

// SetTimeout sets the per-transaction timeout
func (b *Bus) SetTimeout(timeout time.Duration) error {
	b.timeout = timeout
	return nil
}

// Close releases the I2C bus file descriptor. Must be called when the bus is
// no longer needed to prevent descriptor leaks on destroy/recreate cycles.
func (b *Bus) Close() error {
	if b.bus != nil {
		if err := b.bus.Close(); err != nil {
			return fmt.Errorf("failed to close I2C bus: %w", err)
		}
		b.bus = nil
		b.dev = nil // IsConnected() returns false after Close
	}
	return nil
}

// IsConnected returns true if the bus is open
func (b *Bus) IsConnected() bool {
	return b.dev != nil
}

// Type returns the bus type
func (*Bus) Type() dashcam.BusType {
	return dashcam.BusI2C
}

// Ensure Bus implements dashcam.ControlBus
var _ dashcam.ControlBus = (*Bus)(nil)
