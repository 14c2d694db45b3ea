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
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Small geometry so tests touch several blocks without big allocations:
// 16-byte pages, 64-byte blocks, 4 blocks.
const (
	testPageSize  = 16
	testBlockSize = 64
	testDevSize   = 256
)

func newTestFlash(t *testing.T) (*Flash, *MemDevice) {
	t.Helper()
	dev := NewMemDevice(testDevSize)
	flash, err := NewFlash(dev, testPageSize, testBlockSize)
	require.NoError(t, err)
	return flash, dev
}

func pageOf(b byte) []byte {
	page := make([]byte, testPageSize)
	for i := range page {
		page[i] = b
	}
	return page
}

func TestNewFlash_Geometry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		pageSize  uint32
		blockSize uint32
		devSize   uint32
		wantErr   bool
	}{
		{
			name:      "valid geometry",
			pageSize:  16,
			blockSize: 64,
			devSize:   256,
		},
		{
			name:      "default geometry",
			pageSize:  DefaultPageSize,
			blockSize: DefaultBlockSize,
			devSize:   16 * 1024 * 1024,
		},
		{
			name:      "zero page size",
			pageSize:  0,
			blockSize: 64,
			devSize:   256,
			wantErr:   true,
		},
		{
			name:      "page does not divide block",
			pageSize:  24,
			blockSize: 64,
			devSize:   256,
			wantErr:   true,
		},
		{
			name:      "page not smaller than block",
			pageSize:  64,
			blockSize: 64,
			devSize:   256,
			wantErr:   true,
		},
		{
			name:      "block does not divide device",
			pageSize:  16,
			blockSize: 64,
			devSize:   250,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewFlash(NewMemDevice(tt.devSize), tt.pageSize, tt.blockSize)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestFlash_EraseProgramRead(t *testing.T) {
	t.Parallel()

	flash, _ := newTestFlash(t)

	require.NoError(t, flash.EraseBlock(0))
	want := pageOf(0x5A)
	require.NoError(t, flash.ProgramPage(0, want))

	got := make([]byte, testPageSize)
	require.NoError(t, flash.Read(0, got))
	assert.True(t, bytes.Equal(want, got))

	// Neighboring page in the same block is still erased
	require.NoError(t, flash.Read(testPageSize, got))
	assert.True(t, bytes.Equal(pageOf(0xFF), got))
}

func TestFlash_ProgramRequiresErase(t *testing.T) {
	t.Parallel()

	flash, _ := newTestFlash(t)

	// Device history is unknown at construction: nothing is programmable
	err := flash.ProgramPage(0, pageOf(0x00))
	require.ErrorIs(t, err, ErrNotErased)

	require.NoError(t, flash.EraseBlock(0))
	require.NoError(t, flash.ProgramPage(0, pageOf(0x11)))

	// Reprogramming the same page without an intervening erase is refused
	err = flash.ProgramPage(0, pageOf(0x22))
	require.ErrorIs(t, err, ErrNotErased)

	// Other pages of the block remain programmable
	require.NoError(t, flash.ProgramPage(testPageSize, pageOf(0x33)))

	// An erase makes the whole block writable again
	require.NoError(t, flash.EraseBlock(0))
	require.NoError(t, flash.ProgramPage(0, pageOf(0x22)))
}

func TestFlash_MisalignedCheckedFirst(t *testing.T) {
	t.Parallel()

	flash, _ := newTestFlash(t)

	// Alignment is validated before erase state: a misaligned program to a
	// dirty block still reports ErrMisaligned.
	err := flash.ProgramPage(3, pageOf(0x00))
	require.ErrorIs(t, err, ErrMisaligned)
	assert.False(t, errors.Is(err, ErrNotErased))

	// Same for a misaligned program past the end of the device
	err = flash.ProgramPage(testDevSize+1, pageOf(0x00))
	require.ErrorIs(t, err, ErrMisaligned)
}

func TestFlash_ProgramBadLength(t *testing.T) {
	t.Parallel()

	flash, _ := newTestFlash(t)
	require.NoError(t, flash.EraseBlock(0))

	require.ErrorIs(t, flash.ProgramPage(0, make([]byte, testPageSize-1)), ErrBadLength)
	require.ErrorIs(t, flash.ProgramPage(0, make([]byte, testPageSize+1)), ErrBadLength)
}

func TestFlash_OutOfRange(t *testing.T) {
	t.Parallel()

	flash, _ := newTestFlash(t)

	require.ErrorIs(t, flash.EraseBlock(flash.Blocks()), ErrOutOfRange)
	require.ErrorIs(t, flash.ProgramPage(testDevSize, pageOf(0)), ErrOutOfRange)
	require.ErrorIs(t, flash.Read(testDevSize-4, make([]byte, 8)), ErrOutOfRange)

	// A page-aligned address near the top of the 32-bit space must not wrap
	// the range check back into the device
	require.ErrorIs(t, flash.ProgramPage(0xFFFFFFF0, pageOf(0)), ErrOutOfRange)
}

func TestFlash_EraseIdempotent(t *testing.T) {
	t.Parallel()

	flash, dev := newTestFlash(t)

	require.NoError(t, flash.EraseBlock(1))
	require.NoError(t, flash.EraseBlock(1))
	assert.Equal(t, 2, dev.Erases())

	// Observable state is the same either way
	buf := make([]byte, testBlockSize)
	require.NoError(t, flash.Read(testBlockSize, buf))
	assert.True(t, bytes.Equal(buf, bytes.Repeat([]byte{0xFF}, testBlockSize)))
	require.NoError(t, flash.ProgramPage(testBlockSize, pageOf(0x42)))
}

func TestFlash_EraseFailureKeepsBlockDirty(t *testing.T) {
	t.Parallel()

	flash, dev := newTestFlash(t)

	dev.SetEraseError(errors.New("power glitch"))
	require.ErrorIs(t, flash.EraseBlock(0), ErrDeviceFailure)

	// Failed erase leaves the block unusable until a successful one
	dev.SetEraseError(nil)
	require.ErrorIs(t, flash.ProgramPage(0, pageOf(0)), ErrNotErased)
	require.NoError(t, flash.EraseBlock(0))
	require.NoError(t, flash.ProgramPage(0, pageOf(0)))
}

func TestFlash_ProgramFailureMarksPageUsed(t *testing.T) {
	t.Parallel()

	flash, dev := newTestFlash(t)
	require.NoError(t, flash.EraseBlock(0))

	dev.SetProgramError(errors.New("write fault"))
	require.ErrorIs(t, flash.ProgramPage(0, pageOf(0x01)), ErrDeviceFailure)

	// The page may hold partial data now; it stays unusable until erased
	dev.SetProgramError(nil)
	require.ErrorIs(t, flash.ProgramPage(0, pageOf(0x01)), ErrNotErased)
	require.NoError(t, flash.EraseBlock(0))
	require.NoError(t, flash.ProgramPage(0, pageOf(0x01)))
}

func TestFlash_BlockIsolation(t *testing.T) {
	t.Parallel()

	flash, _ := newTestFlash(t)

	require.NoError(t, flash.EraseBlock(0))
	require.NoError(t, flash.EraseBlock(1))
	require.NoError(t, flash.ProgramPage(0, pageOf(0xAA)))
	require.NoError(t, flash.ProgramPage(testBlockSize, pageOf(0xBB)))

	// Erasing block 1 does not disturb block 0
	require.NoError(t, flash.EraseBlock(1))

	got := make([]byte, testPageSize)
	require.NoError(t, flash.Read(0, got))
	assert.True(t, bytes.Equal(pageOf(0xAA), got))
	require.NoError(t, flash.Read(testBlockSize, got))
	assert.True(t, bytes.Equal(pageOf(0xFF), got))
}

func TestMemDevice_NORSemantics(t *testing.T) {
	t.Parallel()

	dev := NewMemDevice(testDevSize)
	require.NoError(t, dev.Erase(0, testBlockSize))

	// Programming can only pull bits low
	require.NoError(t, dev.ProgramAt(0, []byte{0xF0}))
	require.NoError(t, dev.ProgramAt(0, []byte{0x0F}))

	got := make([]byte, 1)
	require.NoError(t, dev.ReadAt(0, got))
	assert.Equal(t, byte(0x00), got[0])
}
