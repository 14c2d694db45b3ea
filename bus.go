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
	"sync"
	"time"
)

// ControlBus defines the interface for the sensor's two-wire register control
// bus (SCCB). Each transaction addresses a single 8-bit register with an
// 8-bit value and is acknowledged at the bus level. Implemented by the I2C
// and serial-bridge backends, and by MockBus for tests.
type ControlBus interface {
	// WriteRegister writes an 8-bit value to an 8-bit register address
	WriteRegister(ctx context.Context, reg, value byte) error

	// ReadRegister reads an 8-bit value from an 8-bit register address
	ReadRegister(ctx context.Context, reg byte) (byte, error)

	// Close closes the bus connection
	Close() error

	// SetTimeout sets the per-transaction timeout for the bus
	SetTimeout(timeout time.Duration) error

	// IsConnected returns true if the bus is connected
	IsConnected() bool

	// Type returns the bus type
	Type() BusType
}

// BusType represents the type of control bus backend
type BusType string

const (
	// BusI2C represents the native SCCB-over-I2C bus.
	BusI2C BusType = "i2c"
	// BusSerial represents a register bridge over a USB serial adapter.
	BusSerial BusType = "serial"
	// BusMock represents a mock bus for testing
	BusMock BusType = "mock"
)

// MockBus is a scriptable ControlBus for tests. Register writes are recorded,
// reads are served from a canned register file, and individual registers can
// be made to fail with an injected error.
type MockBus struct {
	regs       map[byte]byte
	writeCount map[byte]int
	readCount  map[byte]int
	errorMap   map[byte]error
	timeout    time.Duration
	delay      time.Duration
	mu         sync.RWMutex
	connected  bool
}

// NewMockBus creates a new mock control bus
func NewMockBus() *MockBus {
	return &MockBus{
		connected:  true,
		timeout:    time.Second,
		regs:       make(map[byte]byte),
		writeCount: make(map[byte]int),
		readCount:  make(map[byte]int),
		errorMap:   make(map[byte]error),
	}
}

// WriteRegister implements ControlBus
func (m *MockBus) WriteRegister(ctx context.Context, reg, value byte) error {
	if err := m.prepare(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCount[reg]++
	if err, ok := m.errorMap[reg]; ok {
		return err
	}
	m.regs[reg] = value
	return nil
}

// ReadRegister implements ControlBus
func (m *MockBus) ReadRegister(ctx context.Context, reg byte) (byte, error) {
	if err := m.prepare(ctx); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCount[reg]++
	if err, ok := m.errorMap[reg]; ok {
		return 0, err
	}
	return m.regs[reg], nil
}

func (m *MockBus) prepare(ctx context.Context) error {
	m.mu.RLock()
	connected := m.connected
	delay := m.delay
	m.mu.RUnlock()

	if !connected {
		return NewBusClosedError("mock", "mock")
	}

	// Simulate hardware delay if configured
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

// Close implements ControlBus
func (m *MockBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// SetTimeout implements ControlBus
func (m *MockBus) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// IsConnected implements ControlBus
func (m *MockBus) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Type implements ControlBus
func (*MockBus) Type() BusType {
	return BusMock
}

// SetRegister seeds a register value served by subsequent reads
func (m *MockBus) SetRegister(reg, value byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[reg] = value
}

// Register returns the last value written to a register
func (m *MockBus) Register(reg byte) byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.regs[reg]
}

// SetError makes any access to the given register fail with err
func (m *MockBus) SetError(reg byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMap[reg] = err
}

// ClearError removes an injected error for the given register
func (m *MockBus) ClearError(reg byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.errorMap, reg)
}

// SetDelay simulates per-transaction hardware latency
func (m *MockBus) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
}

// WriteCount returns the number of writes issued to a register
func (m *MockBus) WriteCount(reg byte) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writeCount[reg]
}

// ReadCount returns the number of reads issued to a register
func (m *MockBus) ReadCount(reg byte) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readCount[reg]
}

// Ensure MockBus implements ControlBus
var _ ControlBus = (*MockBus)(nil)
