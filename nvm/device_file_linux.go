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

//go:build linux

package nvm

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FileDevice is a raw flash device persisted to a memory-mapped file. It
// gives the driver a real non-volatile backing store on a development host;
// cell semantics match MemDevice (erase to 0xFF, program pulls bits low).
type FileDevice struct {
	file *os.File
	mem  []byte
}

// NewFileDevice opens (or creates) a backing file of exactly size bytes and
// maps it shared. A newly created file starts all-zero, i.e. with unknown
// erase history, same as real flash after power-up.
func NewFileDevice(path string, size uint32) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open backing file: %w", err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("size backing file: %w", err)
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap backing file: %w", err)
	}

	return &FileDevice{file: f, mem: mem}, nil
}

// ReadAt implements Device
func (d *FileDevice) ReadAt(addr uint32, buf []byte) error {
	if d.mem == nil {
		return errors.New("device closed")
	}
	if int(addr)+len(buf) > len(d.mem) {
		return errors.New("read beyond device")
	}
	copy(buf, d.mem[addr:int(addr)+len(buf)])
	return nil
}

// ProgramAt implements Device
func (d *FileDevice) ProgramAt(addr uint32, data []byte) error {
	if d.mem == nil {
		return errors.New("device closed")
	}
	if int(addr)+len(data) > len(d.mem) {
		return errors.New("program beyond device")
	}
	for i, b := range data {
		d.mem[int(addr)+i] &= b
	}
	return nil
}

// Erase implements Device
func (d *FileDevice) Erase(addr, length uint32) error {
	if d.mem == nil {
		return errors.New("device closed")
	}
	if int(addr)+int(length) > len(d.mem) {
		return errors.New("erase beyond device")
	}
	for i := addr; i < addr+length; i++ {
		d.mem[i] = 0xFF
	}
	return nil
}

// Size implements Device
func (d *FileDevice) Size() uint32 {
	return uint32(len(d.mem))
}

// Sync flushes the mapping to the backing file
func (d *FileDevice) Sync() error {
	if d.mem == nil {
		return nil
	}
	if err := unix.Msync(d.mem, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync: %w", err)
	}
	return nil
}

// Close flushes and unmaps the device
func (d *FileDevice) Close() error {
	if d.mem == nil {
		return nil
	}
	syncErr := d.Sync()
	unmapErr := unix.Munmap(d.mem)
	d.mem = nil
	closeErr := d.file.Close()

	if syncErr != nil {
		return syncErr
	}
	if unmapErr != nil {
		return fmt.Errorf("munmap: %w", unmapErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close backing file: %w", closeErr)
	}
	return nil
}

// Ensure FileDevice implements Device
var _ Device = (*FileDevice)(nil)
