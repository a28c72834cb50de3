/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

// Telemetry is one status report of a device. Fields are nil until the device
// has reported them.
type Telemetry struct {
	Pad       *float64 `json:"pad,omitempty"`        // mission pad id
	PadX      *float64 `json:"pad_x,omitempty"`      // cm, relative to pad
	PadY      *float64 `json:"pad_y,omitempty"`      // cm, relative to pad
	PadZ      *float64 `json:"pad_z,omitempty"`      // cm, relative to pad
	PadPitch  *float64 `json:"pad_pitch,omitempty"`  // degrees, relative to pad
	PadRoll   *float64 `json:"pad_roll,omitempty"`   // degrees, relative to pad
	PadYaw    *float64 `json:"pad_yaw,omitempty"`    // degrees, relative to pad
	Pitch     *float64 `json:"pitch,omitempty"`      // degrees
	Roll      *float64 `json:"roll,omitempty"`       // degrees
	Yaw       *float64 `json:"yaw,omitempty"`        // degrees
	VGX       *float64 `json:"vgx,omitempty"`        // velocity x
	VGY       *float64 `json:"vgy,omitempty"`        // velocity y
	VGZ       *float64 `json:"vgz,omitempty"`        // velocity z
	TempMin   *float64 `json:"temp_min,omitempty"`   // lowest temperature since power on
	TempMax   *float64 `json:"temp_max,omitempty"`   // highest temperature since power on
	TOF       *float64 `json:"tof,omitempty"`        // time-of-flight distance, cm
	Height    *float64 `json:"height,omitempty"`     // cm, relative to takeoff point
	Battery   *float64 `json:"battery,omitempty"`    // percent
	Barometer *float64 `json:"barometer,omitempty"`  // m
	MotorTime *float64 `json:"motor_time,omitempty"` // seconds the motors have been running
	AGX       *float64 `json:"agx,omitempty"`        // acceleration x
	AGY       *float64 `json:"agy,omitempty"`        // acceleration y
	AGZ       *float64 `json:"agz,omitempty"`        // acceleration z
}

// Float returns a pointer to v, for building telemetry literals.
func Float(v float64) *float64 {
	return &v
}
