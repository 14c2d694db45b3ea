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
	"context"
	"errors"
	"fmt"

	dashcam "github.com/bbrown1867/go-dashcam"
	"github.com/bbrown1867/go-dashcam/capture"
	"github.com/bbrown1867/go-dashcam/internal/syncutil"
	"github.com/bbrown1867/go-dashcam/nvm"
)

// ErrNoSink indicates playback was requested without a display sink
var ErrNoSink = errors.New("no display sink configured")

// session aggregates one capture session: geometry, the frame buffer ring,
// its ownership manager and the pipeline driving it. Created on entering
// recording or standby; destroyed on returning to off.
type session struct {
	buf  *capture.FrameBuffer
	mgr  *capture.Manager
	pipe *capture.Pipeline
	geom dashcam.FrameGeometry
}

// Controller is the mode state machine. It owns every transition between
// capture, save and playback, and is the only component that issues storage
// erase/program calls, which is how those calls stay off the capture path.
//
// Button and switch events arrive through HandleSwitch and HandleButton.
// The debouncing collaborator is a single event source, and eventMu keeps
// delivery sequential even when the save worker re-dispatches an event that
// was deferred during a drain.
type Controller struct {
	sensor *dashcam.Sensor
	source capture.Source
	store  *nvm.Store
	sink   Sink
	cfg    Config

	// eventMu serializes event delivery; mu guards the fields below and is
	// never held across a blocking call
	eventMu  syncutil.Mutex
	mu       syncutil.Mutex
	state    State
	session  *session
	pending  *pendingEvent
	saveDone chan struct{}
	playDone chan struct{}
	stopPlay chan struct{}
}

// New creates a mode controller wired to its collaborators. The sink may be
// nil, in which case playback requests fail with ErrNoSink.
func New(sensor *dashcam.Sensor, source capture.Source, store *nvm.Store, sink Sink, cfg Config) (*Controller, error) {
	if sensor == nil || source == nil || store == nil {
		return nil, fmt.Errorf("%w: nil collaborator", dashcam.ErrInvalidParameter)
	}
	if cfg.BufferFrames < 2 {
		cfg.BufferFrames = 2
	}
	if cfg.Retry == nil {
		cfg.Retry = dashcam.DefaultRetryConfig()
	}
	return &Controller{
		sensor: sensor,
		source: source,
		store:  store,
		sink:   sink,
		cfg:    cfg,
		state:  StateOff,
	}, nil
}

// State returns the current operating mode
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the active capture session's manager for observation, or
// nil outside a session
func (c *Controller) Session() *capture.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.mgr
}

// HandleSwitch applies a debounced three-position switch change. While a
// save is between page boundaries the event is deferred (single slot,
// newest wins); everywhere else switch-to-off is honored unconditionally.
func (c *Controller) HandleSwitch(ctx context.Context, pos SwitchPos) error {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.mu.Lock()
	if c.state == StateSaving {
		c.pending = &pendingEvent{kind: eventSwitch, pos: pos}
		c.mu.Unlock()
		dashcam.Debugf("switch %s deferred during save", pos)
		return nil
	}
	playing := c.state == StatePlaying
	c.mu.Unlock()

	if playing {
		c.stopPlayback(ctx)
	}

	switch pos {
	case SwitchOff:
		c.teardownSession(ctx)
		c.setState(StateOff)
		return nil
	case SwitchOn:
		c.teardownSession(ctx)
		c.setState(StateOnIdle)
		return nil
	case SwitchStandby:
		c.teardownSession(ctx)
		if err := c.startSession(ctx); err != nil {
			c.setState(StateOff)
			return err
		}
		c.setState(StateStandby)
		return nil
	default:
		return fmt.Errorf("%w: switch position %d", dashcam.ErrInvalidParameter, pos)
	}
}

// HandleButton applies a debounced momentary button press. Its meaning
// depends on the current state: start recording from on-idle, stop-and-save
// from recording, capture-and-save from standby, start playback from off,
// stop playback while playing.
func (c *Controller) HandleButton(ctx context.Context) error {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.mu.Lock()
	state := c.state
	if state == StateSaving {
		c.pending = &pendingEvent{kind: eventButton}
		c.mu.Unlock()
		dashcam.Debugf("button deferred during save")
		return nil
	}
	c.mu.Unlock()

	switch state {
	case StateOff:
		return c.startPlayback(ctx)
	case StateOnIdle:
		if err := c.startSession(ctx); err != nil {
			c.setState(StateOff)
			return err
		}
		c.setState(StateRecording)
		return nil
	case StateRecording, StateStandby:
		return c.beginSave()
	case StatePlaying:
		c.stopPlayback(ctx)
		c.setState(StateOff)
		return nil
	case StateSaving:
		return nil // handled above; unreachable
	default:
		return fmt.Errorf("%w: state %d", dashcam.ErrInvalidParameter, state)
	}
}

// WaitIdle blocks until any in-flight save or playback worker has finished
func (c *Controller) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	saveDone := c.saveDone
	playDone := c.playDone
	c.mu.Unlock()

	for _, done := range []chan struct{}{saveDone, playDone} {
		if done == nil {
			continue
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close drives the controller to off and waits for workers to finish
func (c *Controller) Close(ctx context.Context) error {
	if err := c.HandleSwitch(ctx, SwitchOff); err != nil {
		return err
	}
	return c.WaitIdle(ctx)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	old := c.state
	c.state = s
	c.mu.Unlock()
	if old != s {
		dashcam.Debugf("mode %s -> %s", old, s)
	}
}

// startSession configures the sensor and starts the capture pipeline.
// Configuration has no rollback, so the retry helper replays the full
// register sequence; only the controller knows a retry is safe here
// (capture has not started yet).
func (c *Controller) startSession(ctx context.Context) error {
	err := dashcam.RetryWithConfig(ctx, c.cfg.Retry, func() error {
		return c.sensor.Configure(ctx, c.cfg.Sensor)
	})
	if err != nil {
		return fmt.Errorf("sensor configuration: %w", err)
	}

	geom := c.cfg.Sensor.Geometry()
	buf, err := capture.NewFrameBuffer(geom, c.cfg.BufferFrames)
	if err != nil {
		return err
	}
	mgr := capture.NewManager(buf)
	pipe, err := capture.New(c.source, mgr, c.cfg.OnFrameReady)
	if err != nil {
		return err
	}
	if err := pipe.Start(ctx); err != nil {
		return fmt.Errorf("capture start: %w", err)
	}

	c.mu.Lock()
	c.session = &session{buf: buf, mgr: mgr, pipe: pipe, geom: geom}
	c.mu.Unlock()
	return nil
}

// teardownSession stops capture at a frame boundary, waits for the stopped
// acknowledgment and resets buffer ownership. Safe to call with no session.
func (c *Controller) teardownSession(ctx context.Context) {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.mu.Unlock()

	if sess == nil {
		return
	}
	if err := sess.pipe.Stop(ctx); err != nil && !errors.Is(err, capture.ErrNotRunning) {
		dashcam.Debugf("capture stop: %v", err)
	}
	sess.mgr.Reset()
}

// takePending consumes the deferred event slot
func (c *Controller) takePending() *pendingEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.pending
	c.pending = nil
	return p
}

// abortRequested reports whether a deferred switch-to-off is waiting. Called
// at page-boundary checkpoints during a save; the event stays queued so the
// worker's completion path applies it. Only switch-to-off interrupts a drain
// at these checkpoints; every other deferred event applies after the drain
// completes (see the deferred-event decision in DESIGN.md).
func (c *Controller) abortRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil && c.pending.kind == eventSwitch && c.pending.pos == SwitchOff
}

// applyDeferred re-dispatches an event that arrived during a save, now that
// the device is back in a safe state. It goes through the same entry points
// external events use, so eventMu orders it with any concurrently arriving
// delivery.
func (c *Controller) applyDeferred(ctx context.Context, p *pendingEvent) {
	var err error
	switch p.kind {
	case eventSwitch:
		err = c.HandleSwitch(ctx, p.pos)
	case eventButton:
		err = c.HandleButton(ctx)
	}
	if err != nil {
		dashcam.Debugf("deferred event failed: %v", err)
	}
}
