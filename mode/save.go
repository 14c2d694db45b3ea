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
	"time"

	dashcam "github.com/bbrown1867/go-dashcam"
	"github.com/bbrown1867/go-dashcam/capture"
	"github.com/bbrown1867/go-dashcam/nvm"
)

// beginSave transitions to SAVING and starts the drain worker. The worker
// runs below capture priority in the original's task model; here it is a
// goroutine whose storage calls never run concurrently with live capture
// because the pipeline is stopped first.
func (c *Controller) beginSave() error {
	c.mu.Lock()
	sess := c.session
	done := make(chan struct{})
	c.saveDone = done
	c.state = StateSaving
	c.mu.Unlock()

	go c.saveWorker(sess, done)
	return nil
}

// saveWorker drains the session's backlog to flash, writes the clip record
// and returns the device to OFF. Events deferred during the drain are
// re-dispatched once the state machine is back in a safe state.
func (c *Controller) saveWorker(sess *session, done chan struct{}) {
	ctx := context.Background()

	if err := c.drain(ctx, sess); err != nil {
		// Abort rather than leave a clip in an indeterminate state; the
		// record is written last, so an aborted save is simply no clip.
		dashcam.Debugf("save aborted: %v", err)
	}

	if err := sess.pipe.Stop(ctx); err != nil && !errors.Is(err, capture.ErrNotRunning) {
		dashcam.Debugf("capture stop: %v", err)
	}
	sess.mgr.Reset()

	c.mu.Lock()
	c.session = nil
	c.state = StateOff
	pending := c.pending
	c.pending = nil
	c.saveDone = nil
	c.mu.Unlock()
	close(done)

	if pending != nil {
		c.applyDeferred(ctx, pending)
	}
}

// drain stops capture, then moves every buffered frame oldest-first into the
// clip region in page-sized chunks. Erase and program calls each run to
// their natural boundary; deferred switch-to-off is honored only between
// them. Returns nil on a deliberate abort (no clip written).
func (c *Controller) drain(ctx context.Context, sess *session) error {
	// Live capture halts at a frame boundary before any long-latency
	// storage operation is issued. The stopped acknowledgment also makes
	// the buffer safe to read from this goroutine.
	if err := sess.pipe.Stop(ctx); err != nil && !errors.Is(err, capture.ErrNotRunning) {
		return fmt.Errorf("stopping capture for save: %w", err)
	}

	var handles []*capture.FrameHandle
	defer func() {
		for _, h := range handles {
			_ = h.Release()
		}
	}()
	for {
		h, ok := sess.mgr.TryTakeReadyFrame()
		if !ok {
			break
		}
		handles = append(handles, h)
	}

	if len(handles) == 0 {
		dashcam.Debugf("save: no frames buffered")
		return nil
	}

	frameBytes := sess.geom.FrameBytes()
	blocks, err := c.store.BlocksForClip(frameBytes, len(handles))
	if err != nil {
		return err
	}

	for b := uint32(0); b < blocks; b++ {
		if err := c.store.Flash().EraseBlock(b); err != nil {
			return err
		}
		// A block boundary is also a page boundary checkpoint
		if c.abortRequested() {
			dashcam.Debugf("save: switch-off during erase, aborting")
			return nil
		}
	}

	pages := c.store.FramePages(frameBytes)
	for i, h := range handles {
		for page := uint32(0); page < pages; page++ {
			if err := c.store.ProgramFramePage(i, page, h.Data()); err != nil {
				return err
			}
			if c.abortRequested() {
				dashcam.Debugf("save: switch-off at page boundary, aborting")
				return nil
			}
		}
	}

	meta := nvm.ClipMeta{
		Timestamp:  time.Now(),
		Geometry:   sess.geom,
		FrameCount: uint32(len(handles)),
	}
	if err := c.store.WriteMeta(meta); err != nil {
		return err
	}

	dashcam.Debugf("save: %d frames persisted", len(handles))
	return nil
}
