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

// SensorAddr is the OV9655's 7-bit SCCB address. The datasheet lists 0x60,
// which is the 8-bit write address including the R/W bit; bus drivers expect
// the 7-bit form: 0x60 >> 1 = 0x30.
const SensorAddr = 0x30

// Identification constants read back during the ID handshake
const (
	sensorManfID   = 0x7FA2
	sensorProdID   = 0x9657
	sensorResetVal = 0x80
)

// OV9655 register addresses (subset used by this driver)
const (
	regGain      = 0x00
	regProdIDMSB = 0x0A
	regProdIDLSB = 0x0B
	regCLKRC     = 0x11 // internal clock prescaler, sets the frame rate
	regCOM7      = 0x12 // reset, output format selection
	regCOM10     = 0x15 // sync polarity, pixel clock edge
	regManfIDMSB = 0x1C
	regManfIDLSB = 0x1D
	regCOM15     = 0x40 // RGB565 output range
	regCOM16     = 0x41 // scale-down enable
	regPOIDX     = 0x72 // pixel output index (vertical/horizontal subsample)
	regPCKDV     = 0x73 // pixel clock output frequency adjustment
	regXINDX     = 0x74 // horizontal scaling
	regYINDX     = 0x75 // vertical scaling
)

// regVal is one entry of a register configuration sequence
type regVal struct {
	reg byte
	val byte
}

// configSequence builds the full register sequence for a validated
// configuration. A mid-sequence failure leaves the sensor undefined, so
// callers always replay the whole sequence.
func configSequence(cfg SensorConfig) []regVal {
	seq := make([]regVal, 0, len(baseConfig)+8)

	// 30 fps VGA with VarioPixel and RGB output data format
	seq = append(seq, regVal{regCOM7, 0x63})

	// Don't change HREF to HSYNC (b6), don't reverse SYNC polarity (b1, b0),
	// falling PCLK (b4)
	seq = append(seq, regVal{regCOM10, 0x00})

	// RGB565 data format with full output range (0x00 --> 0xFF)
	seq = append(seq, regVal{regCOM15, 0x10})

	// Scale down ON
	seq = append(seq, regVal{regCOM16, 0x01})

	switch cfg.Resolution {
	case ResQQVGA:
		// Subsample by half vertically and horizontally twice (640x480 --> 160x120)
		seq = append(seq,
			regVal{regPOIDX, 0x22},
			regVal{regPCKDV, 0x02},
			regVal{regXINDX, 0x10},
			regVal{regYINDX, 0x10})
	case ResQVGA:
		// Subsample by half vertically and horizontally (640x480 --> 320x240)
		seq = append(seq,
			regVal{regPOIDX, 0x11},
			regVal{regPCKDV, 0x01},
			regVal{regXINDX, 0x10},
			regVal{regYINDX, 0x10})
	}

	// Internal clock prescaler; input clock / (n + 1)
	switch cfg.FrameRate {
	case FrameRate30:
		seq = append(seq, regVal{regCLKRC, 0x01})
	case FrameRate15:
		seq = append(seq, regVal{regCLKRC, 0x03})
	}

	return append(seq, baseConfig...)
}

// baseConfig is the resolution-independent tuning block (exposure, gain
// ceiling, windowing, gamma, color matrix). Values follow the vendor BSP.
var baseConfig = []regVal{
	{0x00, 0x00}, {0x01, 0x80}, {0x02, 0x80}, {0x03, 0x02},
	{0x04, 0x03}, {0x09, 0x01}, {0x0b, 0x57}, {0x0e, 0x61},
	{0x0f, 0x40}, {0x13, 0xc7}, {0x14, 0x3a}, {0x16, 0x24},
	{0x17, 0x18}, {0x18, 0x04}, {0x19, 0x01}, {0x1a, 0x81},
	{0x1e, 0x00}, {0x24, 0x3c}, {0x25, 0x36}, {0x26, 0x72},
	{0x27, 0x08}, {0x28, 0x08}, {0x29, 0x15}, {0x2a, 0x00},
	{0x2b, 0x00}, {0x2c, 0x08}, {0x32, 0xa4}, {0x33, 0x00},
	{0x34, 0x3f}, {0x35, 0x00}, {0x36, 0x3a}, {0x38, 0x72},
	{0x39, 0x57}, {0x3a, 0xcc}, {0x3b, 0x04}, {0x3d, 0x99},
	{0x3e, 0x0e}, {0x3f, 0xc1}, {0x42, 0xc0}, {0x43, 0x0a},
	{0x44, 0xf0}, {0x45, 0x46}, {0x46, 0x62}, {0x47, 0x2a},
	{0x48, 0x3c}, {0x4a, 0xfc}, {0x4b, 0xfc}, {0x4c, 0x7f},
	{0x4d, 0x7f}, {0x4e, 0x7f}, {0x4f, 0x98}, {0x50, 0x98},
	{0x51, 0x00}, {0x52, 0x28}, {0x53, 0x70}, {0x54, 0x98},
	{0x58, 0x1a}, {0x59, 0x85}, {0x5a, 0xa9}, {0x5b, 0x64},
	{0x5c, 0x84}, {0x5d, 0x53}, {0x5e, 0x0e}, {0x5f, 0xf0},
	{0x60, 0xf0}, {0x61, 0xf0}, {0x62, 0x00}, {0x63, 0x00},
	{0x64, 0x02}, {0x65, 0x20}, {0x66, 0x00}, {0x69, 0x0a},
	{0x6b, 0x5a}, {0x6c, 0x04}, {0x6d, 0x55}, {0x6e, 0x00},
	{0x6f, 0x9d}, {0x70, 0x21}, {0x71, 0x78}, {0x76, 0x01},
	{0x77, 0x02}, {0x7a, 0x12}, {0x7b, 0x08}, {0x7c, 0x16},
	{0x7d, 0x30}, {0x7e, 0x5e}, {0x7f, 0x72}, {0x80, 0x82},
	{0x81, 0x8e}, {0x82, 0x9a}, {0x83, 0xa4}, {0x84, 0xac},
	{0x85, 0xb8}, {0x86, 0xc3}, {0x87, 0xd6}, {0x88, 0xe6},
	{0x89, 0xf2}, {0x8a, 0x24}, {0x8c, 0x80}, {0x90, 0x7d},
	{0x91, 0x7b}, {0x9d, 0x02}, {0x9e, 0x02}, {0x9f, 0x7a},
	{0xa0, 0x79}, {0xa1, 0x40}, {0xa4, 0x50}, {0xa5, 0x68},
	{0xa6, 0x4a}, {0xa8, 0xc1}, {0xa9, 0xef}, {0xaa, 0x92},
	{0xab, 0x04}, {0xac, 0x80}, {0xad, 0x80}, {0xae, 0x80},
	{0xaf, 0x80}, {0xb2, 0xf2}, {0xb3, 0x20}, {0xb4, 0x20},
	{0xb5, 0x00}, {0xb6, 0xaf}, {0xbb, 0xae}, {0xbc, 0x7f},
	{0xbd, 0x7f}, {0xbe, 0x7f}, {0xbf, 0x7f}, {0xc0, 0xaa},
	{0xc1, 0xc0}, {0xc2, 0x01}, {0xc3, 0x4e}, {0xc6, 0x05},
	{0xc7, 0x82}, {0xc9, 0xe0}, {0xca, 0xe8}, {0xcb, 0xf0},
	{0xcc, 0xd8}, {0xcd, 0x93},
}
