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
	"time"

	dashcam "github.com/bbrown1867/go-dashcam"
	"github.com/bbrown1867/go-dashcam/nvm"
)

// startPlayback reads the persisted clip record and starts the playback
// worker. Fails with nvm.ErrNoClip when nothing has been saved.
func (c *Controller) startPlayback(_ context.Context) error {
	if c.sink == nil {
		return ErrNoSink
	}
	meta, err := c.store.ReadMeta()
	if err != nil {
		return err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.mu.Lock()
	c.stopPlay = stop
	c.playDone = done
	c.state = StatePlaying
	c.mu.Unlock()

	go c.playWorker(meta, stop, done)
	return nil
}

// playWorker streams the clip's frames from flash to the sink in a loop
// until stopped. Reads have no alignment constraint, so frames come out in
// single frame-sized chunks.
func (c *Controller) playWorker(meta nvm.ClipMeta, stop, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.state == StatePlaying {
			c.state = StateOff
		}
		c.playDone = nil
		c.stopPlay = nil
		c.mu.Unlock()
		close(done)
	}()

	frame := make([]byte, meta.Geometry.FrameBytes())
	delay := c.cfg.PlaybackDelay

	for i := 0; ; i = (i + 1) % int(meta.FrameCount) {
		select {
		case <-stop:
			return
		default:
		}

		if err := c.store.ReadFrame(meta, i, frame); err != nil {
			dashcam.Debugf("playback read failed: %v", err)
			return
		}
		if err := c.sink.DisplayFrame(meta.Geometry, frame); err != nil {
			dashcam.Debugf("playback sink failed: %v", err)
			return
		}

		if delay > 0 {
			select {
			case <-stop:
				return
			case <-time.After(delay):
			}
		}
	}
}

// stopPlayback signals the playback worker and waits for it to exit
func (c *Controller) stopPlayback(ctx context.Context) {
	c.mu.Lock()
	stop := c.stopPlay
	done := c.playDone
	c.stopPlay = nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
}
