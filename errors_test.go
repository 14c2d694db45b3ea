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
	"strings"
	"syscall"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "bus timeout retryable",
			err:  ErrBusTimeout,
			want: true,
		},
		{
			name: "bus read retryable",
			err:  ErrBusRead,
			want: true,
		},
		{
			name: "bus write retryable",
			err:  ErrBusWrite,
			want: true,
		},
		{
			name: "no ACK retryable",
			err:  ErrNoACK,
			want: true,
		},
		{
			name: "NACK retryable",
			err:  ErrNACKReceived,
			want: true,
		},
		{
			name: "malformed bridge response retryable",
			err:  ErrBadBridgeResp,
			want: true,
		},
		{
			name: "bus closed not retryable",
			err:  ErrBusClosed,
			want: false,
		},
		{
			name: "sensor not found not retryable",
			err:  ErrSensorNotFound,
			want: false,
		},
		{
			name: "ID mismatch not retryable",
			err:  ErrSensorIDMismatch,
			want: false,
		},
		{
			name: "invalid parameter not retryable",
			err:  ErrInvalidParameter,
			want: false,
		},
		{
			name: "wrapped retryable error",
			err:  fmt.Errorf("configure reg 0x12: %w", ErrBusTimeout),
			want: true,
		},
		{
			name: "transient bus error",
			err:  NewBusWriteError("WriteRegister", "/dev/i2c-1", 0x12),
			want: true,
		},
		{
			name: "permanent bus error",
			err:  NewBusClosedError("WriteRegister", "/dev/i2c-1"),
			want: false,
		},
		{
			name: "unknown error not retryable",
			err:  errors.New("something else"),
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := IsRetryable(tt.err)
			if got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "bus closed fatal",
			err:  ErrBusClosed,
			want: true,
		},
		{
			name: "sensor not found fatal",
			err:  ErrSensorNotFound,
			want: true,
		},
		{
			name: "ID mismatch fatal",
			err:  ErrSensorIDMismatch,
			want: true,
		},
		{
			name: "bus timeout not fatal",
			err:  ErrBusTimeout,
			want: false,
		},
		{
			name: "device gone EIO",
			err:  fmt.Errorf("write: %w", syscall.EIO),
			want: true,
		},
		{
			name: "device gone ENODEV",
			err:  fmt.Errorf("write: %w", syscall.ENODEV),
			want: true,
		},
		{
			name: "permanent bus error fatal",
			err:  NewBusClosedError("ReadRegister", "mock"),
			want: true,
		},
		{
			name: "timeout bus error not fatal",
			err:  NewTimeoutError("ReadRegister", "mock", 0x0A),
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := IsFatal(tt.err)
			if got != tt.want {
				t.Errorf("IsFatal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBusError_Error(t *testing.T) {
	t.Parallel()

	withBus := NewNoACKError("WriteRegister", "/dev/i2c-1", 0x12)
	msg := withBus.Error()
	if !strings.Contains(msg, "/dev/i2c-1") || !strings.Contains(msg, "0x12") {
		t.Errorf("Error() = %q, want bus and register in message", msg)
	}

	noBus := NewBusError("ReadRegister", "", 0x0A, ErrBusRead, ErrorTypeTransient)
	msg = noBus.Error()
	if strings.Contains(msg, "  ") {
		t.Errorf("Error() = %q, want no empty bus segment", msg)
	}
}

func TestBusError_Unwrap(t *testing.T) {
	t.Parallel()

	err := NewNACKReceivedError("WriteRegister", "mock", 0x11)
	if !errors.Is(err, ErrNACKReceived) {
		t.Error("expected errors.Is to reach the sentinel through BusError")
	}

	var be *BusError
	if !errors.As(fmt.Errorf("outer: %w", err), &be) {
		t.Fatal("expected errors.As to find BusError through wrapping")
	}
	if be.Reg != 0x11 {
		t.Errorf("Reg = 0x%02X, want 0x11", be.Reg)
	}
}

func TestErrorConstructors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err       *BusError
		sentinel  error
		name      string
		wantType  ErrorType
		retryable bool
	}{
		{
			name:      "no ACK is timeout class",
			err:       NewNoACKError("op", "bus", 1),
			sentinel:  ErrNoACK,
			wantType:  ErrorTypeTimeout,
			retryable: true,
		},
		{
			name:      "NACK is transient",
			err:       NewNACKReceivedError("op", "bus", 1),
			sentinel:  ErrNACKReceived,
			wantType:  ErrorTypeTransient,
			retryable: true,
		},
		{
			name:      "write error is transient",
			err:       NewBusWriteError("op", "bus", 1),
			sentinel:  ErrBusWrite,
			wantType:  ErrorTypeTransient,
			retryable: true,
		},
		{
			name:      "read error is transient",
			err:       NewBusReadError("op", "bus", 1),
			sentinel:  ErrBusRead,
			wantType:  ErrorTypeTransient,
			retryable: true,
		},
		{
			name:      "timeout error",
			err:       NewTimeoutError("op", "bus", 1),
			sentinel:  ErrBusTimeout,
			wantType:  ErrorTypeTimeout,
			retryable: true,
		},
		{
			name:      "closed error is permanent",
			err:       NewBusClosedError("op", "bus"),
			sentinel:  ErrBusClosed,
			wantType:  ErrorTypePermanent,
			retryable: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if !errors.Is(tt.err, tt.sentinel) {
				t.Error("constructor did not wrap the expected sentinel")
			}
			if tt.err.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", tt.err.Type, tt.wantType)
			}
			if tt.err.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", tt.err.Retryable, tt.retryable)
			}
		})
	}
}
