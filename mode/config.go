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

package mode

import (
	"time"

	dashcam "github.com/bbrown1867/go-dashcam"
	"github.com/bbrown1867/go-dashcam/capture"
)

// Sink accepts one frame at a time during playback or live preview.
// Backpressure is the sink's responsibility.
type Sink interface {
	DisplayFrame(geom dashcam.FrameGeometry, data []byte) error
}

// Config holds mode controller configuration
type Config struct {
	// Sensor is the capture profile applied at every mode entry
	Sensor dashcam.SensorConfig

	// BufferFrames is the rolling-window capacity in frames. This is a
	// deployment-time capacity parameter, not a duration guarantee: how
	// much footage it holds depends on frame geometry and available memory.
	// Minimum (and default floor) is 2, the pure ping-pong configuration.
	BufferFrames int

	// PlaybackDelay paces playback frames. Zero disables pacing.
	PlaybackDelay time.Duration

	// Retry governs re-running a failed sensor configuration sequence.
	// Configuration is all-or-nothing, so a retry always replays the full
	// sequence. Nil uses dashcam.DefaultRetryConfig.
	Retry *dashcam.RetryConfig

	// OnFrameReady, when set, observes each completed capture transfer.
	// Bookkeeping only; runs on the capture goroutine.
	OnFrameReady capture.NotifyFunc
}

// DefaultConfig returns the default controller configuration: QQVGA at
// 30 fps, an 8-frame rolling window, playback paced at the capture rate.
func DefaultConfig() Config {
	sensor := dashcam.DefaultConfig()
	return Config{
		Sensor:        sensor,
		BufferFrames:  8,
		PlaybackDelay: sensor.FramePeriod(),
	}
}
