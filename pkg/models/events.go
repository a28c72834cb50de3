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

import "time"

const (
	EventTypeDeviceDiscovered = "com.carverauto.dronefleet.device.discovered"
	EventTypeTaskCompleted    = "com.carverauto.dronefleet.task.completed"
)

// CloudEvent represents a CloudEvents v1.0 envelope.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// DeviceDiscoveredEventData is published when discovery registers a device.
type DeviceDiscoveredEventData struct {
	Device    DeviceInfo `json:"device"`
	Timestamp time.Time  `json:"timestamp"`
}

// TaskCompletedEventData is published when every device bound to a task has
// reported a result.
type TaskCompletedEventData struct {
	TaskID    int64        `json:"task_id"`
	Results   []TaskResult `json:"results"`
	Summary   string       `json:"summary"`
	Timestamp time.Time    `json:"timestamp"`
}

// TaskResult is the per-device outcome of a completed task.
type TaskResult struct {
	Index   int      `json:"index"`
	Battery *float64 `json:"battery,omitempty"`
	Command string   `json:"command"`
	Result  string   `json:"result"`
}
