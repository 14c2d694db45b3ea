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

package simulator

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"time"

	dashcam "github.com/bbrown1867/go-dashcam"
	"github.com/bbrown1867/go-dashcam/capture"
)

// Source produces synthetic RGB565 frames. Each frame is filled with a
// repeating gradient derived from its index and carries the index in its
// first four bytes, so tests and demos can tell frames apart after they have
// been through the buffer ring and flash.
type Source struct {
	geom     dashcam.FrameGeometry
	interval time.Duration
	count    atomic.Uint64
	limit    uint64
}

// NewSource creates a frame source for the given geometry. interval is the
// synthetic frame period; zero produces frames as fast as the pipeline asks.
func NewSource(geom dashcam.FrameGeometry, interval time.Duration) *Source {
	return &Source{geom: geom, interval: interval}
}

// SetFrameLimit makes NextFrame return capture.ErrNotRunning after n frames,
// emulating a sensor that stops streaming
func (s *Source) SetFrameLimit(n uint64) {
	s.limit = n
}

// Frames returns the number of frames produced so far
func (s *Source) Frames() uint64 {
	return s.count.Load()
}

// NextFrame fills dst with the next synthetic frame after the frame period
// elapses. dst must hold exactly one frame.
func (s *Source) NextFrame(ctx context.Context, dst []byte) error {
	if len(dst) != s.geom.FrameBytes() {
		return dashcam.ErrUnsupportedGeometry
	}

	if s.interval > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.interval):
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	n := s.count.Add(1) - 1
	if s.limit > 0 && n >= s.limit {
		return capture.ErrNotRunning
	}

	fill := byte(n)
	for i := range dst {
		dst[i] = fill + byte(i)
	}
	binary.BigEndian.PutUint32(dst[:4], uint32(n))
	return nil
}

// Ensure Source implements capture.Source
var _ capture.Source = (*Source)(nil)
