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

//go:build !linux

package main

import (
	"errors"

	"github.com/bbrown1867/go-dashcam/nvm"
)

// newFlashDevice creates the in-memory flash backend. File-backed flash
// images need the mmap device, which is Linux-only.
func newFlashDevice(cfg *config) (nvm.Device, func(), error) {
	if cfg.flashPath != "" {
		return nil, nil, errors.New("file-backed flash images require linux")
	}
	return nvm.NewMemDevice(uint32(cfg.flashSize)), func() {}, nil
}
