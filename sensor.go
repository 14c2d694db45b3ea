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
	"errors"
	"fmt"
	"time"
)

// resetSettle is how long the sensor needs after a software reset before it
// accepts further register writes.
const resetSettle = 100 * time.Millisecond

// Sensor is the control-plane driver for the image sensor. It owns the
// register protocol only: configuration happens once at mode entry, never
// during steady-state capture, so control-bus latency never touches the
// capture path.
type Sensor struct {
	bus        ControlBus
	settle     time.Duration
	config     SensorConfig
	configured bool
}

// NewSensor creates a sensor driver on the given control bus
func NewSensor(bus ControlBus) (*Sensor, error) {
	if bus == nil {
		return nil, fmt.Errorf("%w: nil control bus", ErrInvalidParameter)
	}
	return &Sensor{bus: bus, settle: resetSettle}, nil
}

// Bus returns the underlying control bus
func (s *Sensor) Bus() ControlBus {
	return s.bus
}

// SetResetSettle overrides the post-reset settle delay. Used by tests and by
// boards with a faster crystal.
func (s *Sensor) SetResetSettle(d time.Duration) {
	s.settle = d
}

// Reset issues a software reset via COM7 and waits for the sensor to settle.
// All register state returns to power-on defaults.
func (s *Sensor) Reset(ctx context.Context) error {
	s.configured = false
	if err := s.bus.WriteRegister(ctx, regCOM7, sensorResetVal); err != nil {
		return fmt.Errorf("sensor reset: %w", err)
	}
	select {
	case <-time.After(s.settle):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckID verifies the manufacturer and product identification registers.
// A mismatch means the device on the bus is not the expected sensor.
func (s *Sensor) CheckID(ctx context.Context) error {
	manf, err := s.readWord(ctx, regManfIDMSB, regManfIDLSB)
	if err != nil {
		return fmt.Errorf("read manufacturer ID: %w", err)
	}
	if manf != sensorManfID {
		return fmt.Errorf("%w: manufacturer 0x%04X, want 0x%04X",
			ErrSensorIDMismatch, manf, sensorManfID)
	}

	prod, err := s.readWord(ctx, regProdIDMSB, regProdIDLSB)
	if err != nil {
		return fmt.Errorf("read product ID: %w", err)
	}
	if prod != sensorProdID {
		return fmt.Errorf("%w: product 0x%04X, want 0x%04X",
			ErrSensorIDMismatch, prod, sensorProdID)
	}

	return nil
}

// Configure applies a full capture configuration: software reset, ID
// handshake, then the complete register sequence with per-write bus
// acknowledgment. There is no rollback — a mid-sequence failure leaves the
// sensor configuration undefined, and callers must re-run the whole sequence
// before capturing.
func (s *Sensor) Configure(ctx context.Context, cfg SensorConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.configured = false

	if err := s.Reset(ctx); err != nil {
		return err
	}
	if err := s.CheckID(ctx); err != nil {
		return err
	}

	for _, rv := range configSequence(cfg) {
		if err := s.bus.WriteRegister(ctx, rv.reg, rv.val); err != nil {
			return fmt.Errorf("configure reg 0x%02X: %w", rv.reg, err)
		}
	}

	s.config = cfg
	s.configured = true
	Debugf("sensor configured: %s %d fps", cfg.Resolution, cfg.FrameRate)
	return nil
}

// Config returns the applied configuration. ok is false until Configure has
// completed successfully since the last reset.
func (s *Sensor) Config() (cfg SensorConfig, ok bool) {
	return s.config, s.configured
}

// Geometry returns the frame geometry fixed by the applied configuration
func (s *Sensor) Geometry() (FrameGeometry, error) {
	if !s.configured {
		return FrameGeometry{}, errors.New("sensor not configured")
	}
	return s.config.Geometry(), nil
}

// readWord reads a 16-bit value from an MSB/LSB register pair
func (s *Sensor) readWord(ctx context.Context, msbReg, lsbReg byte) (uint16, error) {
	msb, err := s.bus.ReadRegister(ctx, msbReg)
	if err != nil {
		return 0, err
	}
	lsb, err := s.bus.ReadRegister(ctx, lsbReg)
	if err != nil {
		return 0, err
	}
	return uint16(msb)<<8 | uint16(lsb), nil
}
