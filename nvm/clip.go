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
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	dashcam "github.com/bbrown1867/go-dashcam"
)

var (
	// ErrNoClip indicates the metadata slot holds no clip record
	ErrNoClip = errors.New("no persisted clip")
	// ErrCorruptMeta indicates the metadata record failed validation
	ErrCorruptMeta = errors.New("corrupt clip metadata")
	// ErrRegionFull indicates the frame region cannot hold the clip
	ErrRegionFull = errors.New("frame region too small for clip")
)

var clipMagic = []byte{'D', 'C', 'A', 'M'}

const clipMetaVersion = 1

// clipMetaLen is the encoded record size: magic(4) + version(1) + width(2) +
// height(2) + bpp(1) + frame count(4) + unix timestamp(8) + checksum(1).
const clipMetaLen = 23

// ClipMeta is the persisted clip record: creation timestamp, frame count and
// the geometry needed to slice the frame region back into frames.
type ClipMeta struct {
	Timestamp  time.Time
	Geometry   dashcam.FrameGeometry
	FrameCount uint32
}

// encode serializes the record. The final byte is a two's-complement
// checksum so the whole record sums to zero.
func (m ClipMeta) encode() []byte {
	buf := make([]byte, clipMetaLen)
	copy(buf[0:4], clipMagic)
	buf[4] = clipMetaVersion
	binary.BigEndian.PutUint16(buf[5:7], uint16(m.Geometry.Width))
	binary.BigEndian.PutUint16(buf[7:9], uint16(m.Geometry.Height))
	buf[9] = byte(m.Geometry.BytesPerPixel)
	binary.BigEndian.PutUint32(buf[10:14], m.FrameCount)
	binary.BigEndian.PutUint64(buf[14:22], uint64(m.Timestamp.Unix()))

	var sum byte
	for _, b := range buf[:clipMetaLen-1] {
		sum += b
	}
	buf[clipMetaLen-1] = ^sum + 1
	return buf
}

// decodeClipMeta parses and validates a record read back from flash
func decodeClipMeta(buf []byte) (ClipMeta, error) {
	if len(buf) < clipMetaLen {
		return ClipMeta{}, fmt.Errorf("%w: short record", ErrCorruptMeta)
	}
	if !bytes.Equal(buf[0:4], clipMagic) {
		return ClipMeta{}, ErrNoClip
	}

	var sum byte
	for _, b := range buf[:clipMetaLen] {
		sum += b
	}
	if sum != 0 {
		return ClipMeta{}, fmt.Errorf("%w: bad checksum", ErrCorruptMeta)
	}
	if buf[4] != clipMetaVersion {
		return ClipMeta{}, fmt.Errorf("%w: version %d", ErrCorruptMeta, buf[4])
	}

	meta := ClipMeta{
		Geometry: dashcam.FrameGeometry{
			Width:         int(binary.BigEndian.Uint16(buf[5:7])),
			Height:        int(binary.BigEndian.Uint16(buf[7:9])),
			BytesPerPixel: int(buf[9]),
		},
		FrameCount: binary.BigEndian.Uint32(buf[10:14]),
		Timestamp:  time.Unix(int64(binary.BigEndian.Uint64(buf[14:22])), 0),
	}
	if !meta.Geometry.Valid() {
		return ClipMeta{}, fmt.Errorf("%w: empty geometry", ErrCorruptMeta)
	}
	return meta, nil
}

// Store lays a single persisted clip out on a Flash: the first erase block is
// the reserved metadata slot, the rest is the contiguous frame-data region.
// Frames are placed at page-aligned strides so every frame starts on a
// program-page boundary. The metadata record is written last, so an aborted
// save never leaves a clip that looks valid.
type Store struct {
	flash *Flash
}

// NewStore creates a clip store over a flash driver
func NewStore(flash *Flash) (*Store, error) {
	if flash == nil {
		return nil, errors.New("nil flash driver")
	}
	if flash.Blocks() < 2 {
		return nil, fmt.Errorf("device too small: %d blocks", flash.Blocks())
	}
	return &Store{flash: flash}, nil
}

// Flash returns the underlying storage driver
func (s *Store) Flash() *Flash { return s.flash }

// FrameBase returns the byte offset of the frame-data region
func (s *Store) FrameBase() uint32 { return s.flash.BlockSize() }

// frameStride returns the page-aligned distance between frame starts
func (s *Store) frameStride(frameBytes int) uint32 {
	ps := s.flash.PageSize()
	return (uint32(frameBytes) + ps - 1) / ps * ps
}

// FramePages returns the number of program pages one frame occupies
func (s *Store) FramePages(frameBytes int) uint32 {
	return s.frameStride(frameBytes) / s.flash.PageSize()
}

// FrameCapacity returns how many frames of the given size fit the region
func (s *Store) FrameCapacity(frameBytes int) int {
	if frameBytes <= 0 {
		return 0
	}
	region := s.flash.Size() - s.FrameBase()
	return int(region / s.frameStride(frameBytes))
}

// BlocksForClip returns the number of erase blocks a clip occupies,
// including the reserved metadata block
func (s *Store) BlocksForClip(frameBytes, frameCount int) (uint32, error) {
	if frameCount > s.FrameCapacity(frameBytes) {
		return 0, fmt.Errorf("%w: %d frames of %d bytes", ErrRegionFull, frameCount, frameBytes)
	}
	dataBytes := s.frameStride(frameBytes) * uint32(frameCount)
	bs := s.flash.BlockSize()
	return 1 + (dataBytes+bs-1)/bs, nil
}

// PageAddr returns the flash address of one program page within one frame
func (s *Store) PageAddr(frameBytes, frameIdx int, pageIdx uint32) uint32 {
	return s.FrameBase() + uint32(frameIdx)*s.frameStride(frameBytes) + pageIdx*s.flash.PageSize()
}

// ProgramFramePage programs one page-sized chunk of a frame, padding the
// final partial page with 0xFF. This is the drain granularity: the mode
// controller calls it once per page so deferred events can be applied at
// page boundaries.
func (s *Store) ProgramFramePage(frameIdx int, pageIdx uint32, frame []byte) error {
	ps := s.flash.PageSize()
	page := make([]byte, ps)

	start := int(pageIdx * ps)
	if start >= len(frame) {
		return fmt.Errorf("page %d beyond frame of %d bytes", pageIdx, len(frame))
	}
	n := copy(page, frame[start:])
	for i := n; i < int(ps); i++ {
		page[i] = 0xFF
	}

	return s.flash.ProgramPage(s.PageAddr(len(frame), frameIdx, pageIdx), page)
}

// WriteFrame programs a whole frame page by page. Convenience wrapper around
// ProgramFramePage for callers without boundary checkpoints.
func (s *Store) WriteFrame(frameIdx int, frame []byte) error {
	for page := uint32(0); page < s.FramePages(len(frame)); page++ {
		if err := s.ProgramFramePage(frameIdx, page, frame); err != nil {
			return err
		}
	}
	return nil
}

// WriteMeta programs the clip record into the reserved metadata slot. Called
// after all frame data is in place.
func (s *Store) WriteMeta(meta ClipMeta) error {
	page := make([]byte, s.flash.PageSize())
	for i := range page {
		page[i] = 0xFF
	}
	copy(page, meta.encode())
	if err := s.flash.ProgramPage(0, page); err != nil {
		return fmt.Errorf("write clip record: %w", err)
	}
	return nil
}

// ReadMeta reads back the clip record. Returns ErrNoClip when the metadata
// slot is erased or blank.
func (s *Store) ReadMeta() (ClipMeta, error) {
	buf := make([]byte, clipMetaLen)
	if err := s.flash.Read(0, buf); err != nil {
		return ClipMeta{}, err
	}
	return decodeClipMeta(buf)
}

// HasClip reports whether a valid clip record is present
func (s *Store) HasClip() bool {
	_, err := s.ReadMeta()
	return err == nil
}

// ReadFrame reads one frame of a persisted clip into buf, which must hold
// exactly one frame of the clip's geometry
func (s *Store) ReadFrame(meta ClipMeta, frameIdx int, buf []byte) error {
	frameBytes := meta.Geometry.FrameBytes()
	if len(buf) != frameBytes {
		return fmt.Errorf("%w: buffer %d, frame %d", ErrBadLength, len(buf), frameBytes)
	}
	if frameIdx < 0 || uint32(frameIdx) >= meta.FrameCount {
		return fmt.Errorf("%w: frame %d of %d", ErrOutOfRange, frameIdx, meta.FrameCount)
	}
	addr := s.FrameBase() + uint32(frameIdx)*s.frameStride(frameBytes)
	return s.flash.Read(addr, buf)
}
