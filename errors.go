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
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Error categories for better error handling and retry logic
var (
	// Bus errors - potentially retryable
	ErrBusTimeout  = errors.New("control bus timeout")
	ErrBusWrite    = errors.New("control bus write failed")
	ErrBusRead     = errors.New("control bus read failed")
	ErrBusClosed   = errors.New("control bus is closed")
	ErrBusNotReady = errors.New("control bus not ready")

	// Protocol errors - potentially retryable
	ErrNoACK         = errors.New("no ACK received")
	ErrNACKReceived  = errors.New("NACK received")
	ErrBadBridgeResp = errors.New("malformed bridge response")

	// Sensor errors - generally not retryable
	ErrSensorNotFound      = errors.New("sensor not found")
	ErrSensorIDMismatch    = errors.New("sensor ID mismatch")
	ErrUnsupportedGeometry = errors.New("unsupported capture geometry")

	// Data errors - not retryable
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// BusError wraps control-bus errors with additional context
type BusError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Bus       string    // Bus or device identifier
	Reg       byte      // Register address involved
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *BusError) Error() string {
	if e.Bus != "" {
		return fmt.Sprintf("%s %s reg 0x%02X: %v", e.Op, e.Bus, e.Reg, e.Err)
	}
	return fmt.Sprintf("%s reg 0x%02X: %v", e.Op, e.Reg, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is potentially retryable.
// Whether a retry actually happens is the mode controller's decision;
// lower layers never retry register writes on their own.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var be *BusError
	if errors.As(err, &be) {
		return be.Retryable
	}

	switch {
	case errors.Is(err, ErrBusTimeout),
		errors.Is(err, ErrBusRead),
		errors.Is(err, ErrBusWrite),
		errors.Is(err, ErrNoACK),
		errors.Is(err, ErrNACKReceived),
		errors.Is(err, ErrBadBridgeResp):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the bus/device is gone and the
// current mode entry should be abandoned. This is distinct from IsRetryable
// which indicates whether a single operation can be retried.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var be *BusError
	if errors.As(err, &be) {
		return be.Type == ErrorTypePermanent
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrBusClosed),
		errors.Is(err, ErrSensorNotFound),
		errors.Is(err, ErrSensorIDMismatch),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// isDeviceGoneError checks for OS-level errors indicating device disconnection.
// These occur when a USB bridge is unplugged during I/O operations.
func isDeviceGoneError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}

	return false
}

// Error constructors for consistent error creation

// NewBusError creates a standard bus error with consistent formatting
func NewBusError(op, bus string, reg byte, err error, errType ErrorType) *BusError {
	return &BusError{
		Op:        op,
		Bus:       bus,
		Reg:       reg,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewNoACKError creates a "no ACK received" error (timeout)
func NewNoACKError(op, bus string, reg byte) *BusError {
	return NewBusError(op, bus, reg, ErrNoACK, ErrorTypeTimeout)
}

// NewNACKReceivedError creates a "NACK received" error (transient)
func NewNACKReceivedError(op, bus string, reg byte) *BusError {
	return NewBusError(op, bus, reg, ErrNACKReceived, ErrorTypeTransient)
}

// NewBusWriteError creates a write error (transient)
func NewBusWriteError(op, bus string, reg byte) *BusError {
	return NewBusError(op, bus, reg, ErrBusWrite, ErrorTypeTransient)
}

// NewBusReadError creates a read error (transient)
func NewBusReadError(op, bus string, reg byte) *BusError {
	return NewBusError(op, bus, reg, ErrBusRead, ErrorTypeTransient)
}

// NewTimeoutError creates a timeout error for bus operations
func NewTimeoutError(op, bus string, reg byte) *BusError {
	return NewBusError(op, bus, reg, ErrBusTimeout, ErrorTypeTimeout)
}

// NewBusClosedError creates a permanent closed-bus error
func NewBusClosedError(op, bus string) *BusError {
	return NewBusError(op, bus, 0, ErrBusClosed, ErrorTypePermanent)
}
