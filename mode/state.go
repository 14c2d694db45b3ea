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

// Package mode implements the operating-mode state machine that arbitrates
// between live capture, saving to flash and playback under asynchronous
// button and switch events.
package mode

// State represents the finite state machine for device operation
type State int

const (
	// StateOff is the only state known safe regardless of prior progress;
	// every fatal error lands here.
	StateOff State = iota
	// StateOnIdle is switch-on with capture not yet running
	StateOnIdle
	// StateRecording is a bounded recording started by a button press
	StateRecording
	// StateStandby is continuous rolling-window capture
	StateStandby
	// StateSaving drains buffered frames to flash
	StateSaving
	// StatePlaying replays the persisted clip to the display sink
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateOnIdle:
		return "on-idle"
	case StateRecording:
		return "recording"
	case StateStandby:
		return "standby"
	case StateSaving:
		return "saving"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// SwitchPos is the three-position mode switch, delivered debounced
type SwitchPos int

const (
	// SwitchOff requests OFF from any state, unconditionally
	SwitchOff SwitchPos = iota
	// SwitchOn requests the on-idle/recording path
	SwitchOn
	// SwitchStandby requests continuous rolling-window capture
	SwitchStandby
)

func (p SwitchPos) String() string {
	switch p {
	case SwitchOff:
		return "off"
	case SwitchOn:
		return "on"
	case SwitchStandby:
		return "standby"
	default:
		return "unknown"
	}
}

// eventKind distinguishes the two logical input signals
type eventKind int

const (
	eventButton eventKind = iota
	eventSwitch
)

// pendingEvent is the single-slot queue for events arriving while SAVING is
// between page boundaries. Newer events overwrite older ones.
type pendingEvent struct {
	kind eventKind
	pos  SwitchPos
}
