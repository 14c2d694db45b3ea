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

// Package serial provides a control bus backend that speaks to the sensor
// through a USB serial register bridge (a small adapter MCU forwarding
// register transactions onto the SCCB wires). Useful for bench work where
// the host has no I2C adapter.
package serial

import (
	"context"
	"fmt"
	"sync"
	"time"

	dashcam "github.com/bbrown1867/go-dashcam"
	"go.bug.st/serial"
)

// Bridge protocol bytes. Requests are 'W' reg val or 'R' reg; the bridge
// answers with ACK (followed by the value for reads) or NAK when the sensor
// did not acknowledge on the wire.
const (
	cmdWrite  = 'W'
	cmdRead   = 'R'
	bridgeAck = 0x06
	bridgeNak = 0x15
)

// Bus implements the dashcam.ControlBus interface over a serial register
// bridge.
type Bus struct {
	port     serial.Port
	portName string
	mu       sync.Mutex
}

// New opens the bridge's serial port
func New(portName string) (*Bus, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set serial read timeout: %w", err)
	}

	return &Bus{port: port, portName: portName}, nil
}

// WriteRegister forwards one register write through the bridge
func (b *Bus) WriteRegister(ctx context.Context, reg, value byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.port == nil {
		return dashcam.NewBusClosedError("WriteRegister", b.portName)
	}

	if _, err := b.port.Write([]byte{cmdWrite, reg, value}); err != nil {
		dashcam.Debugf("serial write reg 0x%02X: %v", reg, err)
		return dashcam.NewBusWriteError("WriteRegister", b.portName, reg)
	}

	status, err := b.readByte()
	if err != nil {
		return dashcam.NewTimeoutError("WriteRegister", b.portName, reg)
	}
	switch status {
	case bridgeAck:
		return nil
	case bridgeNak:
		return dashcam.NewNoACKError("WriteRegister", b.portName, reg)
	default:
		return dashcam.NewBusError("WriteRegister", b.portName, reg,
			dashcam.ErrBadBridgeResp, dashcam.ErrorTypeTransient)
	}
}

// ReadRegister forwards one register read through the bridge
func (b *Bus) ReadRegister(ctx context.Context, reg byte) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.port == nil {
		return 0, dashcam.NewBusClosedError("ReadRegister", b.portName)
	}

	if _, err := b.port.Write([]byte{cmdRead, reg}); err != nil {
		dashcam.Debugf("serial read reg 0x%02X: %v", reg, err)
		return 0, dashcam.NewBusWriteError("ReadRegister", b.portName, reg)
	}

	status, err := b.readByte()
	if err != nil {
		return 0, dashcam.NewTimeoutError("ReadRegister", b.portName, reg)
	}
	switch status {
	case bridgeAck:
	case bridgeNak:
		return 0, dashcam.NewNoACKError("ReadRegister", b.portName, reg)
	default:
		return 0, dashcam.NewBusError("ReadRegister", b.portName, reg,
			dashcam.ErrBadBridgeResp, dashcam.ErrorTypeTransient)
	}

	value, err := b.readByte()
	if err != nil {
		return 0, dashcam.NewBusReadError("ReadRegister", b.portName, reg)
	}
	return value, nil
}

// readByte reads exactly one byte, treating a zero-length read as a timeout
// (go.bug.st/serial returns n == 0 with no error on read timeout)
func (b *Bus) readByte() (byte, error) {
	var buf [1]byte
	n, err := b.port.Read(buf[:])
	if err != nil {
		return 0, fmt.Errorf("serial read: %w", err)
	}
	if n == 0 {
		return 0, dashcam.ErrBusTimeout
	}
	return buf[0], nil
}

// SetTimeout sets the bridge response timeout
func (b *Bus) SetTimeout(timeout time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.port == nil {
		return dashcam.NewBusClosedError("SetTimeout", b.portName)
	}
	if err := b.port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set serial read timeout: %w", err)
	}
	return nil
}

// Close closes the serial port
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// IsConnected returns true if the port is open
func (b *Bus) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.port != nil
}

// Type returns the bus type
func (*Bus) Type() dashcam.BusType {
	return dashcam.BusSerial
}

// Ensure Bus implements dashcam.ControlBus
var _ dashcam.ControlBus = (*Bus)(nil)
