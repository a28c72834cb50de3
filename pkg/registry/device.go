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

package registry

import (
	"bytes"
	"net/netip"

	"github.com/carverauto/dronefleet/pkg/models"
)

// Device is one fleet member. Identity fields never change after creation.
// The mutable state is only touched with the owning Registry's lock held,
// either by Registry methods or inside Registry.View.
type Device struct {
	index   int
	serial  string
	address netip.Addr

	pendingCommand string
	pendingTaskID  int64
	busy           bool
	hold           bool

	telemetry models.Telemetry
	history   []models.TaskRecord
	video     bytes.Buffer
}

func newDevice(address netip.Addr, serial string, index int) *Device {
	return &Device{
		index:   index,
		serial:  serial,
		address: address,
	}
}

func (d *Device) Index() int {
	return d.index
}

func (d *Device) Serial() string {
	return d.serial
}

func (d *Device) Address() netip.Addr {
	return d.address
}

// Busy reports whether a dispatched command is still waiting for its reply.
func (d *Device) Busy() bool {
	return d.busy
}

func (d *Device) Hold() bool {
	return d.hold
}

// Battery returns the last reported battery level, if any.
func (d *Device) Battery() *float64 {
	return d.telemetry.Battery
}

// Info returns a copy of the device identity.
func (d *Device) Info() models.DeviceInfo {
	info := models.DeviceInfo{
		Index:   d.index,
		Serial:  d.serial,
		Address: d.address,
	}

	if d.telemetry.Battery != nil {
		info.Battery = models.Float(*d.telemetry.Battery)
	}

	return info
}

// Execute records cmd as pending for taskID and marks the device busy.
func (d *Device) Execute(taskID int64, cmd string) {
	d.pendingCommand = cmd
	d.pendingTaskID = taskID
	d.busy = true
}

// recordResult appends the reply to the pending command and frees the device.
// An idle device has no pending command, so its reply is not recorded.
func (d *Device) recordResult(result string) (models.TaskRecord, bool) {
	if !d.busy {
		return models.TaskRecord{}, false
	}

	rec := models.TaskRecord{
		TaskID:  d.pendingTaskID,
		Command: d.pendingCommand,
		Result:  result,
	}

	d.history = append(d.history, rec)
	d.busy = false

	return rec, true
}

// HasResult reports whether any reply has been recorded for taskID.
func (d *Device) HasResult(taskID int64) bool {
	for i := range d.history {
		if d.history[i].TaskID == taskID {
			return true
		}
	}

	return false
}

// Result returns the most recent record for taskID.
func (d *Device) Result(taskID int64) (models.TaskRecord, bool) {
	for i := len(d.history) - 1; i >= 0; i-- {
		if d.history[i].TaskID == taskID {
			return d.history[i], true
		}
	}

	return models.TaskRecord{}, false
}
