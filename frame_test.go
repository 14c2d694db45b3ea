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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensorConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     SensorConfig
		wantErr bool
	}{
		{
			name:    "default config valid",
			cfg:     DefaultConfig(),
			wantErr: false,
		},
		{
			name:    "QVGA at 15 fps valid",
			cfg:     SensorConfig{Resolution: ResQVGA, Format: FormatRGB565, FrameRate: FrameRate15},
			wantErr: false,
		},
		{
			name:    "unknown resolution",
			cfg:     SensorConfig{Resolution: Resolution(7), Format: FormatRGB565, FrameRate: FrameRate30},
			wantErr: true,
		},
		{
			name:    "unknown format",
			cfg:     SensorConfig{Resolution: ResQQVGA, Format: PixelFormat(3), FrameRate: FrameRate30},
			wantErr: true,
		},
		{
			name:    "unsupported frame rate",
			cfg:     SensorConfig{Resolution: ResQQVGA, Format: FormatRGB565, FrameRate: 60},
			wantErr: true,
		},
		{
			name:    "zero frame rate",
			cfg:     SensorConfig{Resolution: ResQQVGA, Format: FormatRGB565},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedGeometry)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSensorConfig_Geometry(t *testing.T) {
	t.Parallel()

	qqvga := DefaultConfig().Geometry()
	assert.Equal(t, FrameGeometry{Width: 160, Height: 120, BytesPerPixel: 2}, qqvga)
	assert.Equal(t, 38400, qqvga.FrameBytes())

	qvga := SensorConfig{Resolution: ResQVGA, Format: FormatRGB565, FrameRate: FrameRate30}.Geometry()
	assert.Equal(t, FrameGeometry{Width: 320, Height: 240, BytesPerPixel: 2}, qvga)
	assert.Equal(t, 153600, qvga.FrameBytes())
}

func TestSensorConfig_FramePeriod(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, time.Second/30, cfg.FramePeriod())

	cfg.FrameRate = FrameRate15
	assert.Equal(t, time.Second/15, cfg.FramePeriod())

	cfg.FrameRate = 0
	assert.Equal(t, time.Duration(0), cfg.FramePeriod())
}

func TestFrameGeometry_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, FrameGeometry{Width: 160, Height: 120, BytesPerPixel: 2}.Valid())
	assert.False(t, FrameGeometry{}.Valid())
	assert.False(t, FrameGeometry{Width: 160, BytesPerPixel: 2}.Valid())
}

func TestResolution_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "QQVGA", ResQQVGA.String())
	assert.Equal(t, "QVGA", ResQVGA.String())
	assert.Equal(t, "unknown", Resolution(42).String())
}
