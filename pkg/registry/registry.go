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

// Package registry holds the authoritative state of every discovered device
// and ingests the replies, status reports and video the devices send back.
package registry

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"
	"sync"

	"github.com/carverauto/dronefleet/pkg/logger"
	"github.com/carverauto/dronefleet/pkg/models"
	"github.com/carverauto/dronefleet/pkg/telemetry"
)

// Options tunes how the registry treats serials outside the fleet table.
type Options struct {
	// UnknownSerialIndex is the index given to devices whose serial is not in
	// the table.
	UnknownSerialIndex int
	// RejectUnknownSerials makes Add refuse such devices instead.
	RejectUnknownSerials bool
}

// Registry is the fleet's device table. Devices are appended on discovery and
// never removed. All state is guarded by one mutex; View lets the scheduler
// read and mutate several devices atomically under that same lock.
type Registry struct {
	mu      sync.Mutex
	serials map[string]int
	opts    Options
	devices []*Device
	logger  logger.Logger
}

// New creates a registry for the given serial → index table.
func New(serials map[string]int, opts Options, log logger.Logger) *Registry {
	table := make(map[string]int, len(serials))
	for serial, index := range serials {
		table[serial] = index
	}

	if opts.UnknownSerialIndex == 0 {
		opts.UnknownSerialIndex = models.DefaultUnknownSerialIndex
	}

	return &Registry{
		serials: table,
		opts:    opts,
		logger:  log,
	}
}

// Add registers the device answering from address with serial. Duplicate
// addresses are refused. Serials outside the table are logged and registered
// under the sentinel index unless RejectUnknownSerials is set.
func (r *Registry) Add(address netip.Addr, serial string) (models.DeviceInfo, error) {
	serial = strings.TrimSpace(serial)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.find(ByAddress(address)); existing != nil {
		return existing.Info(), fmt.Errorf("%w: %s", ErrDuplicateAddress, address)
	}

	index, ok := r.serials[serial]
	if !ok {
		r.logger.Error().Str("serial", serial).Str("addr", address.String()).Msg("Unknown serial")

		if r.opts.RejectUnknownSerials {
			return models.DeviceInfo{}, fmt.Errorf("%w: %q", ErrUnknownSerial, serial)
		}

		index = r.opts.UnknownSerialIndex
	}

	d := newDevice(address, serial, index)
	r.devices = append(r.devices, d)

	r.logger.Info().
		Str("addr", address.String()).
		Str("serial", serial).
		Int("index", index).
		Msg("Device added")

	return d.Info(), nil
}

// Lookup returns the first device matching every criterion of f.
func (r *Registry) Lookup(f Filter) (models.DeviceInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.find(f)
	if d == nil {
		return models.DeviceInfo{}, false
	}

	return d.Info(), true
}

func (r *Registry) find(f Filter) *Device {
	for _, d := range r.devices {
		if f.matches(d) {
			return d
		}
	}

	return nil
}

func (r *Registry) source(d models.Datagram, kind string) (*Device, error) {
	dev := r.find(ByAddress(d.Source()))
	if dev == nil {
		r.logger.Warn().Str("addr", d.Addr.String()).Str("kind", kind).Msg("Datagram from unknown source")

		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, d.Source())
	}

	return dev, nil
}

// UpdateTaskResult records the reply in d against the sender's pending
// command and marks the sender idle. Replies from an idle sender, such as the
// second answer to a repeated command or the answer to a keepalive, are
// logged and dropped.
func (r *Registry) UpdateTaskResult(d models.Datagram) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, err := r.source(d, "reply")
	if err != nil {
		return err
	}

	result := strings.TrimSpace(d.String())

	rec, ok := dev.recordResult(result)
	if !ok {
		r.logger.Debug().
			Int("index", dev.index).
			Int64("last_task_id", dev.pendingTaskID).
			Str("result", result).
			Msg("Unsolicited reply from idle device")

		return nil
	}

	r.logger.Info().
		Int("index", dev.index).
		Int64("task_id", rec.TaskID).
		Str("command", rec.Command).
		Str("result", rec.Result).
		Msg("Task result recorded")

	return nil
}

// UpdateTelemetry replaces the sender's telemetry with the report in d.
func (r *Registry) UpdateTelemetry(d models.Datagram) error {
	status := telemetry.Parse(d.String())

	r.mu.Lock()
	defer r.mu.Unlock()

	dev, err := r.source(d, "status")
	if err != nil {
		return err
	}

	dev.telemetry = status

	r.logger.Trace().Int("index", dev.index).Msg("Telemetry updated")

	return nil
}

// UpdateVideo appends the payload of d to the sender's video buffer.
func (r *Registry) UpdateVideo(d models.Datagram) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, err := r.source(d, "video")
	if err != nil {
		return err
	}

	dev.video.Write(d.Payload)

	r.logger.Trace().Int("index", dev.index).Int("bytes", len(d.Payload)).Msg("Video appended")

	return nil
}

// ScanComplete reports whether every serial of the table has a device.
func (r *Registry) ScanComplete() bool {
	return len(r.Missing()) == 0
}

// Missing lists the table serials that have not been discovered, sorted.
func (r *Registry) Missing() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var missing []string

	for serial := range r.serials {
		if r.find(BySerial(serial)) == nil {
			missing = append(missing, serial)
		}
	}

	sort.Strings(missing)

	return missing
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.devices)
}

// Snapshot returns the identity of every device in discovery order.
func (r *Registry) Snapshot() []models.DeviceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]models.DeviceInfo, 0, len(r.devices))
	for _, d := range r.devices {
		infos = append(infos, d.Info())
	}

	return infos
}

// Telemetry returns the latest status report of the device at index.
func (r *Registry) Telemetry(index int) (models.Telemetry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.find(ByIndex(index))
	if d == nil {
		return models.Telemetry{}, false
	}

	return d.telemetry, true
}

// History returns a copy of the task history of the device at index.
func (r *Registry) History(index int) ([]models.TaskRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.find(ByIndex(index))
	if d == nil {
		return nil, false
	}

	return append([]models.TaskRecord(nil), d.history...), true
}

// Video returns a copy of the video bytes received from the device at index.
func (r *Registry) Video(index int) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.find(ByIndex(index))
	if d == nil {
		return nil, false
	}

	return append([]byte(nil), d.video.Bytes()...), true
}

// VideoSize returns how many video bytes the device at index has sent.
func (r *Registry) VideoSize(index int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d := r.find(ByIndex(index)); d != nil {
		return d.video.Len()
	}

	return 0
}

// SetHold flags the device at index for keepalive.
func (r *Registry) SetHold(index int, hold bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.find(ByIndex(index))
	if d == nil {
		return fmt.Errorf("%w: index %d", ErrDeviceNotFound, index)
	}

	d.hold = hold

	return nil
}

// IdleHeld returns the addresses of held devices with nothing in flight.
func (r *Registry) IdleHeld() []netip.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()

	var addrs []netip.Addr

	for _, d := range r.devices {
		if d.hold && !d.busy {
			addrs = append(addrs, d.address)
		}
	}

	return addrs
}

// View runs fn with the registry lock held.
func (r *Registry) View(fn func(v View)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn(View{r: r})
}

// View is a handle valid only inside Registry.View.
type View struct {
	r *Registry
}

// Device returns the device at index, or nil.
func (v View) Device(index int) *Device {
	return v.r.find(ByIndex(index))
}
