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

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/carverauto/dronefleet/pkg/logger"
)

// Duration is a time.Duration that decodes from "50ms" style strings or from
// integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	return d.set(v)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v interface{}
	if err := node.Decode(&v); err != nil {
		return err
	}

	return d.set(v)
}

func (d *Duration) set(v interface{}) error {
	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
	case int:
		*d = Duration(time.Duration(value))
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDuration, err)
		}

		*d = Duration(dur)
	default:
		return ErrInvalidDuration
	}

	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

const (
	DefaultCommandPort        = 8889
	DefaultStatusPort         = 8890
	DefaultVideoPort          = 11111
	DefaultBindAddress        = "0.0.0.0"
	DefaultReadBufferBytes    = 4 << 20
	DefaultTickInterval       = 50 * time.Millisecond
	DefaultDrainInterval      = 10 * time.Millisecond
	DefaultDiscoveryPause     = 330 * time.Millisecond
	DefaultKeepaliveInterval  = 5 * time.Second
	DefaultUnknownSerialIndex = 1000
	DefaultEventStream        = "dronefleet"
	DefaultEventSubjectPrefix = "events.fleet"
)

// EventsConfig configures publishing of fleet events to NATS JetStream.
type EventsConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	URL           string `json:"url" yaml:"url"`
	Domain        string `json:"domain,omitempty" yaml:"domain,omitempty"`
	StreamName    string `json:"stream_name" yaml:"stream_name"`
	SubjectPrefix string `json:"subject_prefix" yaml:"subject_prefix"`
}

// Validate fills defaults and ensures an enabled publisher has somewhere to go.
func (c *EventsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.URL == "" {
		return ErrEventsURLRequired
	}

	if c.StreamName == "" {
		c.StreamName = DefaultEventStream
	}

	if c.SubjectPrefix == "" {
		c.SubjectPrefix = DefaultEventSubjectPrefix
	}

	return nil
}

// FleetConfig is the configuration of a fleet controller process.
type FleetConfig struct {
	// Serials maps every expected device serial number to its fleet index.
	Serials map[string]int `json:"serials" yaml:"serials"`

	CommandPort     int    `json:"command_port" yaml:"command_port"`
	StatusPort      int    `json:"status_port" yaml:"status_port"`
	VideoPort       int    `json:"video_port" yaml:"video_port"`
	BindAddress     string `json:"bind_address" yaml:"bind_address"`
	LocalIP         string `json:"local_ip,omitempty" yaml:"local_ip,omitempty"`
	ReadBufferBytes int    `json:"read_buffer_bytes" yaml:"read_buffer_bytes"`

	TickInterval      Duration `json:"tick_interval" yaml:"tick_interval"`
	DrainInterval     Duration `json:"drain_interval" yaml:"drain_interval"`
	DiscoveryPause    Duration `json:"discovery_pause" yaml:"discovery_pause"`
	KeepaliveInterval Duration `json:"keepalive_interval" yaml:"keepalive_interval"`

	UnknownSerialIndex   int  `json:"unknown_serial_index" yaml:"unknown_serial_index"`
	RejectUnknownSerials bool `json:"reject_unknown_serials" yaml:"reject_unknown_serials"`

	Logging *logger.Config `json:"logging,omitempty" yaml:"logging,omitempty"`
	Events  *EventsConfig  `json:"events,omitempty" yaml:"events,omitempty"`
}

// Validate applies defaults and checks the serial table.
func (c *FleetConfig) Validate() error {
	if len(c.Serials) == 0 {
		return ErrNoSerials
	}

	seen := make(map[int]string, len(c.Serials))

	for serial, index := range c.Serials {
		if serial == "" {
			return ErrEmptySerial
		}

		if other, ok := seen[index]; ok {
			return fmt.Errorf("%w: %d used by %q and %q", ErrDuplicateIndex, index, other, serial)
		}

		seen[index] = serial
	}

	c.applyDefaults()

	if err := c.validateIntervals(); err != nil {
		return err
	}

	if _, ok := seen[c.UnknownSerialIndex]; ok && !c.RejectUnknownSerials {
		return fmt.Errorf("%w: %d", ErrSentinelIndexInUse, c.UnknownSerialIndex)
	}

	if c.Events != nil {
		if err := c.Events.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// validateIntervals runs after defaults, so any remaining non-positive value
// was configured explicitly.
func (c *FleetConfig) validateIntervals() error {
	intervals := []struct {
		name  string
		value Duration
	}{
		{"tick_interval", c.TickInterval},
		{"drain_interval", c.DrainInterval},
		{"discovery_pause", c.DiscoveryPause},
		{"keepalive_interval", c.KeepaliveInterval},
	}

	for _, iv := range intervals {
		if iv.value <= 0 {
			return fmt.Errorf("%w: %s=%s", ErrNonPositiveInterval, iv.name, time.Duration(iv.value))
		}
	}

	return nil
}

func (c *FleetConfig) applyDefaults() {
	if c.CommandPort == 0 {
		c.CommandPort = DefaultCommandPort
	}

	if c.StatusPort == 0 {
		c.StatusPort = DefaultStatusPort
	}

	if c.VideoPort == 0 {
		c.VideoPort = DefaultVideoPort
	}

	if c.BindAddress == "" {
		c.BindAddress = DefaultBindAddress
	}

	if c.ReadBufferBytes == 0 {
		c.ReadBufferBytes = DefaultReadBufferBytes
	}

	if c.TickInterval == 0 {
		c.TickInterval = Duration(DefaultTickInterval)
	}

	if c.DrainInterval == 0 {
		c.DrainInterval = Duration(DefaultDrainInterval)
	}

	if c.DiscoveryPause == 0 {
		c.DiscoveryPause = Duration(DefaultDiscoveryPause)
	}

	if c.KeepaliveInterval == 0 {
		c.KeepaliveInterval = Duration(DefaultKeepaliveInterval)
	}

	if c.UnknownSerialIndex == 0 {
		c.UnknownSerialIndex = DefaultUnknownSerialIndex
	}
}
