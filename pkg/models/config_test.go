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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFleetConfigValidateDefaults(t *testing.T) {
	t.Parallel()

	cfg := &FleetConfig{Serials: map[string]int{"SERIALA": 1}}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultCommandPort, cfg.CommandPort)
	assert.Equal(t, Duration(DefaultTickInterval), cfg.TickInterval)
	assert.Equal(t, Duration(DefaultDrainInterval), cfg.DrainInterval)
	assert.Equal(t, Duration(DefaultDiscoveryPause), cfg.DiscoveryPause)
	assert.Equal(t, Duration(DefaultKeepaliveInterval), cfg.KeepaliveInterval)
	assert.Equal(t, DefaultUnknownSerialIndex, cfg.UnknownSerialIndex)
}

func TestFleetConfigValidateRejectsNegativeIntervals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		set   func(c *FleetConfig)
		field string
	}{
		{"tick", func(c *FleetConfig) { c.TickInterval = Duration(-time.Millisecond) }, "tick_interval"},
		{"drain", func(c *FleetConfig) { c.DrainInterval = Duration(-10 * time.Millisecond) }, "drain_interval"},
		{"discovery", func(c *FleetConfig) { c.DiscoveryPause = Duration(-time.Second) }, "discovery_pause"},
		{"keepalive", func(c *FleetConfig) { c.KeepaliveInterval = Duration(-time.Second) }, "keepalive_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &FleetConfig{Serials: map[string]int{"SERIALA": 1}}
			tt.set(cfg)

			err := cfg.Validate()
			require.ErrorIs(t, err, ErrNonPositiveInterval)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestFleetConfigValidateSerialTable(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, (&FleetConfig{}).Validate(), ErrNoSerials)
	require.ErrorIs(t, (&FleetConfig{Serials: map[string]int{"": 1}}).Validate(), ErrEmptySerial)
	require.ErrorIs(t, (&FleetConfig{Serials: map[string]int{"A": 1, "B": 1}}).Validate(), ErrDuplicateIndex)
	require.ErrorIs(t, (&FleetConfig{Serials: map[string]int{"A": 1000}}).Validate(), ErrSentinelIndexInUse)
}
