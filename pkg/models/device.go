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

import "net/netip"

// DeviceInfo is the immutable identity of a fleet member plus its last known
// battery level.
type DeviceInfo struct {
	Index   int        `json:"index"`
	Serial  string     `json:"serial"`
	Address netip.Addr `json:"address"`
	Battery *float64   `json:"battery,omitempty"`
}

// TaskRecord is one entry of a device's task history.
type TaskRecord struct {
	TaskID  int64  `json:"task_id"`
	Command string `json:"command"`
	Result  string `json:"result"`
}

// CommandPair binds one command to one device of the fleet.
type CommandPair struct {
	Command string `json:"command"`
	Index   int    `json:"index"`
}
