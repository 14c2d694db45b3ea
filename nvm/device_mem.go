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

package nvm

import (
	"errors"
	"fmt"
	"sync"
)

// MemDevice is an in-memory raw flash device with NOR semantics: erase sets
// cells to 0xFF, programming can only pull bits low. Used by tests and the
// demo binary; supports failure injection and operation counting.
type MemDevice struct {
	data       []byte
	programErr error
	eraseErr   error
	readErr    error
	programs   int
	erases     int
	mu         sync.Mutex
}

// NewMemDevice creates a device of the given size with undefined (all-zero)
// cell history, so nothing is writable before an erase.
func NewMemDevice(size uint32) *MemDevice {
	return &MemDevice{data: make([]byte, size)}
}

// ReadAt implements Device
func (d *MemDevice) ReadAt(addr uint32, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readErr != nil {
		return d.readErr
	}
	if int(addr)+len(buf) > len(d.data) {
		return errors.New("read beyond device")
	}
	copy(buf, d.data[addr:int(addr)+len(buf)])
	return nil
}

// ProgramAt implements Device. NOR behavior: bits can only transition 1 -> 0.
func (d *MemDevice) ProgramAt(addr uint32, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.programs++
	if d.programErr != nil {
		return d.programErr
	}
	if int(addr)+len(data) > len(d.data) {
		return errors.New("program beyond device")
	}
	for i, b := range data {
		d.data[int(addr)+i] &= b
	}
	return nil
}

// Erase implements Device
func (d *MemDevice) Erase(addr, length uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.erases++
	if d.eraseErr != nil {
		return d.eraseErr
	}
	if int(addr)+int(length) > len(d.data) {
		return fmt.Errorf("erase beyond device: 0x%06X + %d", addr, length)
	}
	for i := addr; i < addr+length; i++ {
		d.data[i] = 0xFF
	}
	return nil
}

// Size implements Device
func (d *MemDevice) Size() uint32 {
	return uint32(len(d.data))
}

// SetProgramError makes subsequent programs fail with err (nil clears)
func (d *MemDevice) SetProgramError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.programErr = err
}

// SetEraseError makes subsequent erases fail with err (nil clears)
func (d *MemDevice) SetEraseError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eraseErr = err
}

// SetReadError makes subsequent reads fail with err (nil clears)
func (d *MemDevice) SetReadError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readErr = err
}

// Programs returns the number of program operations issued
func (d *MemDevice) Programs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.programs
}

// Erases returns the number of erase operations issued
func (d *MemDevice) Erases() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.erases
}

// Ensure MemDevice implements Device
var _ Device = (*MemDevice)(nil)
