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

// Command dashcam runs the capture/save/playback loop against real hardware
// or the built-in simulator. With no flags it records from a simulated sensor
// into an in-memory flash image, saves the clip and plays it back once.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	dashcam "github.com/bbrown1867/go-dashcam"
	"github.com/bbrown1867/go-dashcam/capture"
	"github.com/bbrown1867/go-dashcam/internal/simulator"
	"github.com/bbrown1867/go-dashcam/mode"
	"github.com/bbrown1867/go-dashcam/nvm"
	"github.com/bbrown1867/go-dashcam/transport/i2c"
	"github.com/bbrown1867/go-dashcam/transport/serial"
)

type config struct {
	devicePath string
	flashPath  string
	flashSize  uint
	frames     int
	record     time.Duration
	playback   time.Duration
	debug      bool
}

// Package-level flag variables
var (
	flagDevicePath string
	flagFlashPath  string
	flagFlashSize  uint
	flagFrames     int
	flagRecord     time.Duration
	flagPlayback   time.Duration
	flagDebug      bool
)

func init() {
	flag.StringVar(&flagDevicePath, "device", "", "Sensor bus path (e.g. /dev/i2c-1 or /dev/ttyUSB0; simulator if empty)")
	flag.StringVar(&flagFlashPath, "flash", "", "Flash image file (in-memory if empty)")
	flag.UintVar(&flagFlashSize, "flash-size", 16*1024*1024, "Flash size in bytes")
	flag.IntVar(&flagFrames, "frames", 8, "Frame buffer capacity in frames")
	flag.DurationVar(&flagRecord, "record", 2*time.Second, "How long to record before saving")
	flag.DurationVar(&flagPlayback, "play", 2*time.Second, "How long to play the saved clip back")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
}

func parseConfig() *config {
	cfg := &config{
		devicePath: flagDevicePath,
		flashPath:  flagFlashPath,
		flashSize:  flagFlashSize,
		frames:     flagFrames,
		record:     flagRecord,
		playback:   flagPlayback,
		debug:      flagDebug,
	}

	if cfg.debug {
		dashcam.SetDebugEnabled(true)
	}

	return cfg
}

// newBus creates a control bus from a device path by pattern, defaulting to
// the serial register bridge for tty-style paths.
func newBus(path string) (dashcam.ControlBus, error) {
	if strings.Contains(strings.ToLower(path), "i2c") {
		bus, err := i2c.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C bus for %s: %w", path, err)
		}
		return bus, nil
	}

	bus, err := serial.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create serial bus for %s: %w", path, err)
	}
	return bus, nil
}

// consoleSink prints one line per displayed frame
type consoleSink struct {
	shown int
}

func (s *consoleSink) DisplayFrame(geom dashcam.FrameGeometry, data []byte) error {
	s.shown++
	_, _ = fmt.Printf("frame %d: %dx%d (%d bytes)\n", s.shown, geom.Width, geom.Height, len(data))
	return nil
}

func run(ctx context.Context, cfg *config) error {
	sensorCfg := dashcam.DefaultConfig()

	// Sensor bus and frame source: hardware when a path is given, otherwise
	// the simulator provides both ends.
	var (
		bus    dashcam.ControlBus
		source capture.Source
	)
	if cfg.devicePath == "" {
		_, _ = fmt.Println("No device path given, using simulated sensor")
		bus = simulator.NewBus()
		source = simulator.NewSource(sensorCfg.Geometry(), sensorCfg.FramePeriod())
	} else {
		hw, err := newBus(cfg.devicePath)
		if err != nil {
			return err
		}
		bus = hw
		// Frame data still comes from the simulator: the control bus talks
		// to the real sensor, but this host has no parallel capture port.
		source = simulator.NewSource(sensorCfg.Geometry(), sensorCfg.FramePeriod())
	}
	defer func() {
		if err := bus.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close bus: %v\n", err)
		}
	}()

	sensor, err := dashcam.NewSensor(bus)
	if err != nil {
		return err
	}
	if cfg.devicePath == "" {
		sensor.SetResetSettle(0)
	}

	dev, cleanup, err := newFlashDevice(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	flash, err := nvm.NewFlash(dev, nvm.DefaultPageSize, nvm.DefaultBlockSize)
	if err != nil {
		return err
	}
	store, err := nvm.NewStore(flash)
	if err != nil {
		return err
	}

	sink := &consoleSink{}
	ctrl, err := mode.New(sensor, source, store, sink, mode.Config{
		Sensor:        sensorCfg,
		BufferFrames:  cfg.frames,
		PlaybackDelay: sensorCfg.FramePeriod(),
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ctrl.Close(closeCtx); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close controller: %v\n", err)
		}
	}()

	// Recording leg: standby buffers frames in the rolling window
	_, _ = fmt.Printf("Recording %s of %s footage...\n", cfg.record, sensorCfg.Resolution)
	if err := ctrl.HandleSwitch(ctx, mode.SwitchStandby); err != nil {
		return fmt.Errorf("failed to enter standby: %w", err)
	}
	select {
	case <-time.After(cfg.record):
	case <-ctx.Done():
		return ctx.Err()
	}
	if mgr := ctrl.Session(); mgr != nil {
		_, _ = fmt.Printf("Buffered %d frames (%d captured, %d dropped)\n",
			mgr.Buffered(), mgr.Frames(), mgr.Drops())
	}

	// Save leg: button press drains the window to flash
	if err := ctrl.HandleButton(ctx); err != nil {
		return fmt.Errorf("failed to start save: %w", err)
	}
	if err := ctrl.WaitIdle(ctx); err != nil {
		return err
	}
	meta, err := store.ReadMeta()
	if err != nil {
		return fmt.Errorf("no clip after save: %w", err)
	}
	_, _ = fmt.Printf("Saved clip: %d frames of %dx%d at %s\n",
		meta.FrameCount, meta.Geometry.Width, meta.Geometry.Height,
		meta.Timestamp.Format(time.RFC3339))

	// Playback leg: button press from off loops the clip until stopped
	if cfg.playback > 0 {
		if err := ctrl.HandleButton(ctx); err != nil {
			return fmt.Errorf("failed to start playback: %w", err)
		}
		select {
		case <-time.After(cfg.playback):
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := ctrl.HandleButton(ctx); err != nil {
			return fmt.Errorf("failed to stop playback: %w", err)
		}
		_, _ = fmt.Printf("Played back %d frames\n", sink.shown)
	}

	return nil
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg := parseConfig()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
