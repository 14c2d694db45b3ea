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

// Package nvm implements the page-oriented non-volatile storage driver: a
// block-erase flash device addressed in fixed program pages, with the
// erase-before-program invariant enforced in software because the device
// cannot report it.
package nvm

import (
	"errors"
	"fmt"

	"github.com/bbrown1867/go-dashcam/internal/syncutil"
)

// Device geometry defaults for the MT25QL128ABA (16 MiB QSPI NOR flash):
// 256-byte program pages, 4 KiB erase subsectors.
const (
	DefaultPageSize  = 256
	DefaultBlockSize = 4096
)

var (
	// ErrMisaligned indicates a program address that is not page-aligned
	ErrMisaligned = errors.New("address not page-aligned")
	// ErrNotErased indicates a program to a page whose block has not been
	// erased since the page was last programmed
	ErrNotErased = errors.New("page not erased since last program")
	// ErrOutOfRange indicates an access beyond the device
	ErrOutOfRange = errors.New("address out of range")
	// ErrBadLength indicates program data that is not exactly one page
	ErrBadLength = errors.New("data length must equal page size")
	// ErrDeviceFailure indicates a device-level program/erase failure
	ErrDeviceFailure = errors.New("device program/erase failure")
)

// Device is the raw flash device beneath the driver. Implementations do no
// bookkeeping: they move bytes and report device-level failures only.
type Device interface {
	// ReadAt reads len(buf) bytes starting at addr
	ReadAt(addr uint32, buf []byte) error

	// ProgramAt programs data starting at addr. The device can only pull
	// bits low; programming non-erased cells silently corrupts them, which
	// is exactly what the Flash driver exists to prevent.
	ProgramAt(addr uint32, data []byte) error

	// Erase erases length bytes starting at addr back to 0xFF. Long-latency
	// relative to the capture frame period.
	Erase(addr, length uint32) error

	// Size returns the device capacity in bytes
	Size() uint32
}

// Flash is the page-addressed storage driver. All addresses are byte offsets
// within the device; page and block sizes are fixed at construction. The
// driver tracks erase state per block and program state per page so that
// erase-before-program misuse is caught before it reaches the device.
type Flash struct {
	dev        Device
	erased     []bool
	programmed []bool
	pageSize   uint32
	blockSize  uint32
	mu         syncutil.Mutex
}

// NewFlash creates a flash driver over a raw device. The page size must
// divide the block size, and the block size must divide the device size.
// Erase state is assumed unknown: every block starts dirty, matching a
// device of unknown history.
func NewFlash(dev Device, pageSize, blockSize uint32) (*Flash, error) {
	if dev == nil {
		return nil, errors.New("nil device")
	}
	if pageSize == 0 || blockSize == 0 || pageSize >= blockSize {
		return nil, fmt.Errorf("bad geometry: page %d, block %d", pageSize, blockSize)
	}
	if blockSize%pageSize != 0 {
		return nil, fmt.Errorf("page size %d does not divide block size %d", pageSize, blockSize)
	}
	size := dev.Size()
	if size == 0 || size%blockSize != 0 {
		return nil, fmt.Errorf("block size %d does not divide device size %d", blockSize, size)
	}

	return &Flash{
		dev:        dev,
		pageSize:   pageSize,
		blockSize:  blockSize,
		erased:     make([]bool, size/blockSize),
		programmed: make([]bool, size/pageSize),
	}, nil
}

// PageSize returns the fixed program-page size in bytes
func (f *Flash) PageSize() uint32 { return f.pageSize }

// BlockSize returns the fixed erase-block size in bytes
func (f *Flash) BlockSize() uint32 { return f.blockSize }

// Size returns the device capacity in bytes
func (f *Flash) Size() uint32 { return f.dev.Size() }

// Blocks returns the number of erase blocks
func (f *Flash) Blocks() uint32 { return f.dev.Size() / f.blockSize }

// EraseBlock erases one block. Idempotent: erasing an already-erased block
// leaves it in the same observable state. This blocks the calling task for
// the full device latency and must never run while a capture deadline is
// pending.
func (f *Flash) EraseBlock(index uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if index >= f.Blocks() {
		return fmt.Errorf("%w: block %d of %d", ErrOutOfRange, index, f.Blocks())
	}

	addr := index * f.blockSize
	if err := f.dev.Erase(addr, f.blockSize); err != nil {
		// Erase state is now unknown; keep the block dirty
		f.erased[index] = false
		return fmt.Errorf("%w: erase block %d: %w", ErrDeviceFailure, index, err)
	}

	f.erased[index] = true
	pagesPerBlock := f.blockSize / f.pageSize
	first := index * pagesPerBlock
	for i := first; i < first+pagesPerBlock; i++ {
		f.programmed[i] = false
	}
	return nil
}

// ProgramPage programs exactly one page at a page-aligned address. Fails with
// ErrMisaligned for unaligned addresses regardless of device state, and with
// ErrNotErased when the containing block has not been erased since the page
// was last programmed.
func (f *Flash) ProgramPage(addr uint32, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if addr%f.pageSize != 0 {
		return fmt.Errorf("%w: 0x%06X", ErrMisaligned, addr)
	}
	if uint32(len(data)) != f.pageSize {
		return fmt.Errorf("%w: got %d, page is %d", ErrBadLength, len(data), f.pageSize)
	}
	if uint64(addr)+uint64(f.pageSize) > uint64(f.dev.Size()) {
		return fmt.Errorf("%w: 0x%06X", ErrOutOfRange, addr)
	}

	block := addr / f.blockSize
	page := addr / f.pageSize
	if !f.erased[block] || f.programmed[page] {
		return fmt.Errorf("%w: page 0x%06X", ErrNotErased, addr)
	}

	if err := f.dev.ProgramAt(addr, data); err != nil {
		// The page may be partially programmed; treat it as used
		f.programmed[page] = true
		return fmt.Errorf("%w: program 0x%06X: %w", ErrDeviceFailure, addr, err)
	}

	f.programmed[page] = true
	return nil
}

// Read reads into buf starting at addr. No alignment constraint; safe to
// stream frame-sized chunks during playback.
func (f *Flash) Read(addr uint32, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if uint64(addr)+uint64(len(buf)) > uint64(f.dev.Size()) {
		return fmt.Errorf("%w: 0x%06X + %d", ErrOutOfRange, addr, len(buf))
	}
	if err := f.dev.ReadAt(addr, buf); err != nil {
		return fmt.Errorf("read 0x%06X: %w", addr, err)
	}
	return nil
}
