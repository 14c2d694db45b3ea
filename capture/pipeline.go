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

package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	dashcam "github.com/bbrown1867/go-dashcam"
)

// Source delivers raw frames from the sensor's parallel interface. NextFrame
// blocks until the block-transfer engine has streamed one complete frame into
// dst, which is always exactly one frame-geometry's worth of bytes.
type Source interface {
	NextFrame(ctx context.Context, dst []byte) error
}

// NotifyFunc is called after each completed frame transfer. It runs on the
// capture goroutine, so it must do bookkeeping only and return before the
// next transfer needs the slot.
type NotifyFunc func(slot int, seq uint64)

// Pipeline drives the free-running capture engine. Once started it streams
// frames from the Source into the Manager's slots in ring order without
// per-frame software intervention from the caller, raising a completion
// notification per frame. Stop takes effect at the next frame boundary only,
// never mid-transfer.
type Pipeline struct {
	src      Source
	mgr      *Manager
	notify   NotifyFunc
	stopChan chan struct{}
	wg       sync.WaitGroup
	scratch  []byte
	seq      uint64 // atomic
	running  int64  // atomic: 0 = stopped, 1 = running
}

// New creates a pipeline over a source and a buffer manager
func New(src Source, mgr *Manager, notify NotifyFunc) (*Pipeline, error) {
	if src == nil || mgr == nil {
		return nil, fmt.Errorf("%w: nil source or manager", dashcam.ErrInvalidParameter)
	}
	return &Pipeline{
		src:    src,
		mgr:    mgr,
		notify: notify,
	}, nil
}

// Start begins continuous capture. Fails with ErrAlreadyRunning if capture is
// active and ErrBufferGeometry if the buffer cannot hold a frame.
func (p *Pipeline) Start(_ context.Context) error {
	geom := p.mgr.Buffer().Geometry()
	if !geom.Valid() {
		return ErrBufferGeometry
	}
	if !atomic.CompareAndSwapInt64(&p.running, 0, 1) {
		return ErrAlreadyRunning
	}

	// Scratch transfer target for frames refused by the manager (overrun
	// while a consumer holds the slot). The feed stays live either way.
	if p.scratch == nil {
		p.scratch = make([]byte, geom.FrameBytes())
	}

	p.stopChan = make(chan struct{}, 1)
	p.wg.Add(1)
	go p.captureLoop()
	return nil
}

// captureLoop free-runs until stopped, walking the slot ring. The stop signal
// is only observed here, at frame boundaries, so no partially-written frame
// is ever exposed.
func (p *Pipeline) captureLoop() {
	defer func() {
		atomic.StoreInt64(&p.running, 0)
		p.wg.Done()
	}()

	capacity := p.mgr.Buffer().Capacity()
	ctx := context.Background()
	next := 0

	for {
		select {
		case <-p.stopChan:
			return
		default:
		}

		slot := next
		dst := p.mgr.beginWrite(slot)
		dropped := dst == nil
		if dropped {
			dst = p.scratch
		}

		if err := p.src.NextFrame(ctx, dst); err != nil {
			// Source gone (device unplugged, simulator closed). Leave no
			// partial frame behind and stop the engine.
			if !dropped {
				p.mgr.abortWrite(slot)
			}
			dashcam.Debugf("capture source failed: %v", err)
			return
		}

		seq := atomic.AddUint64(&p.seq, 1)
		if dropped {
			p.mgr.noteDrop()
		} else {
			p.mgr.complete(slot, seq)
		}
		if p.notify != nil {
			p.notify(slot, seq)
		}

		next = (next + 1) % capacity
	}
}

// Stop requests a halt and waits for the engine's stopped acknowledgment.
// The buffer must not be reused for another purpose (such as a playback
// read-back destination) until Stop has returned.
func (p *Pipeline) Stop(ctx context.Context) error {
	if atomic.LoadInt64(&p.running) == 0 {
		return ErrNotRunning
	}

	select {
	case p.stopChan <- struct{}{}:
	default:
		// Stop already requested
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for capture stop: %w", ctx.Err())
	}
}

// Running reports whether the engine is active
func (p *Pipeline) Running() bool {
	return atomic.LoadInt64(&p.running) == 1
}

// Sequence returns the sequence number of the last completed frame
func (p *Pipeline) Sequence() uint64 {
	return atomic.LoadUint64(&p.seq)
}
