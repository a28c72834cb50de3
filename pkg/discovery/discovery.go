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

// Package discovery bootstraps the device registry from the expected serial
// set by broadcasting on the local subnet until every serial has answered.
package discovery

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/carverauto/dronefleet/pkg/logger"
	"github.com/carverauto/dronefleet/pkg/models"
	"github.com/carverauto/dronefleet/pkg/registry"
	"github.com/carverauto/dronefleet/pkg/scheduler"
)

const (
	activateCommand = "command"
	serialQuery     = "sn?"
)

// Config wires a Discoverer.
type Config struct {
	CommandPort int
	// Pause is slept after each broadcast and once more before the snapshot.
	Pause time.Duration
	// OnDiscovered is called for every newly registered device.
	OnDiscovered func(models.DeviceInfo)
	// OnSnapshot is called with the registry contents after every round.
	OnSnapshot func([]models.DeviceInfo)
	// Clock times the pauses. Nil means the wall clock.
	Clock scheduler.Clock
}

// Discoverer runs discovery rounds against an Endpoint.
type Discoverer struct {
	endpoint Endpoint
	registry *registry.Registry
	config   Config
	logger   logger.Logger
}

func New(endpoint Endpoint, reg *registry.Registry, cfg Config, log logger.Logger) *Discoverer {
	if cfg.CommandPort == 0 {
		cfg.CommandPort = models.DefaultCommandPort
	}

	if cfg.Pause <= 0 {
		cfg.Pause = models.DefaultDiscoveryPause
	}

	if cfg.Clock == nil {
		cfg.Clock = scheduler.RealClock{}
	}

	return &Discoverer{
		endpoint: endpoint,
		registry: reg,
		config:   cfg,
		logger:   log,
	}
}

// Run repeats discovery rounds until every expected serial is registered.
// There is no timeout: an expected device that never answers keeps Run going
// until ctx is done.
func (d *Discoverer) Run(ctx context.Context) error {
	round := 0

	for !d.registry.ScanComplete() {
		round++

		d.logger.Info().
			Int("round", round).
			Strs("missing", d.registry.Missing()).
			Msg("Discovery round")

		if err := d.round(ctx); err != nil {
			return err
		}
	}

	d.logger.Info().Int("rounds", round).Int("devices", d.registry.Len()).Msg("Discovery complete")

	return nil
}

func (d *Discoverer) round(ctx context.Context) error {
	d.endpoint.Broadcast(activateCommand, d.config.CommandPort)

	if err := d.pause(ctx); err != nil {
		return err
	}

	d.drain(nil)

	d.endpoint.Broadcast(serialQuery, d.config.CommandPort)

	if err := d.pause(ctx); err != nil {
		return err
	}

	d.drain(d.register)

	// Give status reports a moment to arrive before the snapshot.
	if err := d.pause(ctx); err != nil {
		return err
	}

	d.snapshot()

	return nil
}

func (d *Discoverer) pause(ctx context.Context) error {
	ticker := d.config.Clock.Ticker(d.config.Pause)
	defer ticker.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ticker.Chan():
		return nil
	}
}

func (d *Discoverer) drain(handle func(models.Datagram)) {
	for d.endpoint.HasPending() {
		dg := d.endpoint.Read()
		if handle != nil {
			handle(dg)
		}
	}
}

func (d *Discoverer) register(dg models.Datagram) {
	serial := strings.TrimSpace(dg.String())
	if isAcknowledgement(serial) {
		d.logger.Debug().Str("addr", dg.Addr.String()).Str("reply", serial).Msg("Ignoring late acknowledgement")

		return
	}

	info, err := d.registry.Add(dg.Source(), serial)

	switch {
	case errors.Is(err, registry.ErrDuplicateAddress):
		return
	case err != nil:
		d.logger.Warn().Err(err).Str("addr", dg.Addr.String()).Msg("Device not registered")

		return
	}

	if d.config.OnDiscovered != nil {
		d.config.OnDiscovered(info)
	}
}

func (d *Discoverer) snapshot() {
	devices := d.registry.Snapshot()

	for _, dev := range devices {
		ev := d.logger.Info().
			Int("index", dev.Index).
			Str("serial", dev.Serial).
			Str("addr", dev.Address.String())

		if dev.Battery != nil {
			ev = ev.Float64("battery", *dev.Battery)
		}

		ev.Msg("Discovered device")
	}

	if d.config.OnSnapshot != nil {
		d.config.OnSnapshot(devices)
	}
}

func isAcknowledgement(reply string) bool {
	return reply == "" || reply == "ok" || strings.HasPrefix(reply, "error")
}
