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

//go:build linux

package main

import (
	"fmt"
	"os"

	"github.com/bbrown1867/go-dashcam/nvm"
)

// newFlashDevice creates the raw flash backend: a mmap'd file image when a
// path is given, an in-memory device otherwise.
func newFlashDevice(cfg *config) (nvm.Device, func(), error) {
	if cfg.flashPath == "" {
		return nvm.NewMemDevice(uint32(cfg.flashSize)), func() {}, nil
	}

	dev, err := nvm.NewFileDevice(cfg.flashPath, uint32(cfg.flashSize))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open flash image %s: %w", cfg.flashPath, err)
	}
	cleanup := func() {
		if closeErr := dev.Close(); closeErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close flash image: %v\n", closeErr)
		}
	}
	return dev, cleanup, nil
}
