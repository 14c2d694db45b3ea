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

import "time"

// Resolution selects one of the sensor's supported output sizes.
// The OV9655 pipeline scales its native VGA output down in powers of two.
type Resolution int

const (
	// ResQQVGA is 160x120 output.
	ResQQVGA Resolution = iota
	// ResQVGA is 320x240 output.
	ResQVGA
)

func (r Resolution) String() string {
	switch r {
	case ResQQVGA:
		return "QQVGA"
	case ResQVGA:
		return "QVGA"
	default:
		return "unknown"
	}
}

// PixelFormat selects the sensor's output encoding
type PixelFormat int

// FormatRGB565 is 16-bit packed color, the only supported encoding
const FormatRGB565 PixelFormat = iota

// Supported frame rates in frames per second
const (
	FrameRate30 = 30
	FrameRate15 = 15
)

// SensorConfig describes the capture format applied to the sensor at mode
// entry. Immutable once applied; re-applied in full on mode re-entry.
type SensorConfig struct {
	Resolution Resolution
	Format     PixelFormat
	FrameRate  int
}

// DefaultConfig returns the boot-time default capture profile
func DefaultConfig() SensorConfig {
	return SensorConfig{
		Resolution: ResQQVGA,
		Format:     FormatRGB565,
		FrameRate:  FrameRate30,
	}
}

// Validate reports whether the configuration is in the supported set
func (c SensorConfig) Validate() error {
	switch c.Resolution {
	case ResQQVGA, ResQVGA:
	default:
		return ErrUnsupportedGeometry
	}
	if c.Format != FormatRGB565 {
		return ErrUnsupportedGeometry
	}
	if c.FrameRate != FrameRate30 && c.FrameRate != FrameRate15 {
		return ErrUnsupportedGeometry
	}
	return nil
}

// Geometry derives the frame geometry fixed by this configuration
func (c SensorConfig) Geometry() FrameGeometry {
	g := FrameGeometry{BytesPerPixel: 2}
	switch c.Resolution {
	case ResQQVGA:
		g.Width, g.Height = 160, 120
	case ResQVGA:
		g.Width, g.Height = 320, 240
	}
	return g
}

// FramePeriod returns the time between frames at the configured rate
func (c SensorConfig) FramePeriod() time.Duration {
	if c.FrameRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.FrameRate)
}

// FrameGeometry describes the fixed shape of a captured frame. It is constant
// for the lifetime of a capture session and exactly divides the configured
// buffer region.
type FrameGeometry struct {
	Width         int
	Height        int
	BytesPerPixel int
}

// FrameBytes returns the derived byte size of one frame
func (g FrameGeometry) FrameBytes() int {
	return g.Width * g.Height * g.BytesPerPixel
}

// Valid reports whether the geometry describes a non-empty frame
func (g FrameGeometry) Valid() bool {
	return g.Width > 0 && g.Height > 0 && g.BytesPerPixel > 0
}
