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

// Package fleet owns the UDP channels and background loops of a drone fleet
// and exposes the batch command API.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/dronefleet/pkg/discovery"
	"github.com/carverauto/dronefleet/pkg/events"
	"github.com/carverauto/dronefleet/pkg/lifecycle"
	"github.com/carverauto/dronefleet/pkg/logger"
	"github.com/carverauto/dronefleet/pkg/models"
	"github.com/carverauto/dronefleet/pkg/registry"
	"github.com/carverauto/dronefleet/pkg/scheduler"
	"github.com/carverauto/dronefleet/pkg/transport"
)

const (
	emergencyCommand  = "emergency"
	emergencyRepeats  = 3
	keepaliveCommand  = "stop"
	publishTimeout    = 5 * time.Second
	outboxSize        = 256
	eventSourcePrefix = "dronefleet/"
)

// Option customizes a Controller.
type Option func(*Controller)

// WithEndpoints replaces the UDP channels the controller would otherwise open.
func WithEndpoints(command, status, video Endpoint) Option {
	return func(c *Controller) {
		c.command = command
		c.status = status
		c.video = video
	}
}

// WithPublisher sets the event publisher. Without it Start connects to NATS
// when events are enabled in the config.
func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

// WithClock sets the clock behind the scheduler tick, the drain and
// keepalive loops and the discovery pauses.
func WithClock(clock scheduler.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithTaskHook registers a callback for completed tasks.
func WithTaskHook(fn func(scheduler.Completion)) Option {
	return func(c *Controller) {
		c.onTask = fn
	}
}

// WithSnapshotHook registers a callback for discovery snapshots.
func WithSnapshotHook(fn func([]models.DeviceInfo)) Option {
	return func(c *Controller) {
		c.onSnapshot = fn
	}
}

// ExecOptions are the task parameters chosen when committing a batch.
type ExecOptions struct {
	// Blocking makes Exec wait for the task to complete.
	Blocking bool
	Sync     bool
	Repeat   bool
	After    []int64
}

// Controller coordinates the fleet.
type Controller struct {
	config  *models.FleetConfig
	session string
	logger  logger.Logger
	clock   scheduler.Clock

	command Endpoint
	status  Endpoint
	video   Endpoint

	registry   *registry.Registry
	scheduler  *scheduler.Scheduler
	discoverer *discovery.Discoverer
	publisher  events.Publisher
	outbox     chan func(context.Context)

	onTask     func(scheduler.Completion)
	onSnapshot func([]models.DeviceInfo)

	mu     sync.Mutex
	batch  []models.CommandPair
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates cfg, opens the command, status and video channels and wires
// the registry, scheduler and discovery over them.
func New(cfg *models.FleetConfig, log logger.Logger, opts ...Option) (*Controller, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fleet config: %w", err)
	}

	c := &Controller{
		config:  cfg,
		session: uuid.New().String(),
		logger:  lifecycle.ComponentLogger(log, "fleet"),
		clock:   scheduler.RealClock{},
		outbox:  make(chan func(context.Context), outboxSize),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.command == nil {
		if err := c.openEndpoints(log); err != nil {
			return nil, err
		}
	}

	c.registry = registry.New(cfg.Serials, registry.Options{
		UnknownSerialIndex:   cfg.UnknownSerialIndex,
		RejectUnknownSerials: cfg.RejectUnknownSerials,
	}, lifecycle.ComponentLogger(log, "registry"))

	c.scheduler = scheduler.New(c.registry, scheduler.Config{
		Interval:    time.Duration(cfg.TickInterval),
		CommandPort: cfg.CommandPort,
		OnComplete:  c.taskCompleted,
	}, c.clock, lifecycle.ComponentLogger(log, "scheduler"))

	c.discoverer = discovery.New(c.command, c.registry, discovery.Config{
		CommandPort:  cfg.CommandPort,
		Pause:        time.Duration(cfg.DiscoveryPause),
		OnDiscovered: c.deviceDiscovered,
		OnSnapshot:   c.snapshot,
		Clock:        c.clock,
	}, lifecycle.ComponentLogger(log, "discovery"))

	c.logger.Info().
		Str("session", c.session).
		Int("expected_devices", len(cfg.Serials)).
		Msg("Fleet controller created")

	return c, nil
}

func (c *Controller) openEndpoints(log logger.Logger) error {
	var localIP netip.Addr

	if c.config.LocalIP != "" {
		ip, err := netip.ParseAddr(c.config.LocalIP)
		if err != nil {
			return fmt.Errorf("invalid local_ip %q: %w", c.config.LocalIP, err)
		}

		localIP = ip
	}

	open := func(port int, decode bool) (*transport.Server, error) {
		return transport.Open(transport.Options{
			Port:            port,
			BindAddress:     c.config.BindAddress,
			DecodeText:      decode,
			LocalIP:         localIP,
			ReadBufferBytes: c.config.ReadBufferBytes,
		}, lifecycle.ComponentLogger(log, fmt.Sprintf("transport-%d", port)))
	}

	command, err := open(c.config.CommandPort, true)
	if err != nil {
		return err
	}

	status, err := open(c.config.StatusPort, true)
	if err != nil {
		_ = command.Close()

		return err
	}

	video, err := open(c.config.VideoPort, false)
	if err != nil {
		_ = command.Close()
		_ = status.Close()

		return err
	}

	c.command, c.status, c.video = command, status, video

	return nil
}

// Session identifies this controller run in published events.
func (c *Controller) Session() string {
	return c.session
}

func (c *Controller) Registry() *registry.Registry {
	return c.registry
}

func (c *Controller) Scheduler() *scheduler.Scheduler {
	return c.scheduler
}

// Start runs discovery until every expected device has answered, then starts
// the scheduler, drain and keepalive loops in the background. Status and
// video are drained during discovery already.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()

		return ErrAlreadyStarted
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	if c.publisher == nil {
		c.publisher = c.connectEvents(ctx)
	}

	c.spawn(func() { c.publishLoop(ctx) })
	c.spawn(func() { c.drain(ctx, c.status, c.registry.UpdateTelemetry) })
	c.spawn(func() { c.drain(ctx, c.video, c.registry.UpdateVideo) })

	if err := c.discoverer.Run(ctx); err != nil {
		return fmt.Errorf("discovery interrupted: %w", err)
	}

	c.spawn(func() { c.drain(ctx, c.command, c.registry.UpdateTaskResult) })
	c.spawn(func() { _ = c.scheduler.Run(ctx, c.sendBatch) })
	c.spawn(func() { c.keepalive(ctx) })

	c.logger.Info().Int("devices", c.registry.Len()).Msg("Fleet ready")

	return nil
}

func (c *Controller) connectEvents(ctx context.Context) events.Publisher {
	if c.config.Events == nil || !c.config.Events.Enabled {
		return events.NoopPublisher{}
	}

	p, err := events.Connect(ctx, c.config.Events, eventSourcePrefix+c.session, c.logger)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Event publishing disabled")

		return events.NoopPublisher{}
	}

	return p
}

// publishLoop delivers queued events off the scheduler and discovery
// goroutines. Events still queued when ctx ends are dropped.
func (c *Controller) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case publish := <-c.outbox:
			pctx, cancel := context.WithTimeout(ctx, publishTimeout)
			publish(pctx)
			cancel()
		}
	}
}

// enqueue hands publish to the publish loop without blocking. It is dropped
// when the outbox is full.
func (c *Controller) enqueue(event string, publish func(context.Context)) {
	select {
	case c.outbox <- publish:
	default:
		c.logger.Warn().Str("event", event).Int("queued", len(c.outbox)).Msg("Event outbox full, dropping event")
	}
}

func (c *Controller) spawn(fn func()) {
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		fn()
	}()
}

func (c *Controller) drain(ctx context.Context, ep Endpoint, handle func(models.Datagram) error) {
	ticker := c.clock.Ticker(time.Duration(c.config.DrainInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			for ep.HasPending() {
				// Failures are logged by the registry.
				_ = handle(ep.Read())
			}
		}
	}
}

func (c *Controller) sendBatch(batch []models.Datagram) {
	for _, d := range batch {
		c.command.Send(d)
	}
}

func (c *Controller) keepalive(ctx context.Context) {
	ticker := c.clock.Ticker(time.Duration(c.config.KeepaliveInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			for _, addr := range c.registry.IdleHeld() {
				c.command.Send(models.NewTextDatagram(keepaliveCommand, addr, c.config.CommandPort))
			}
		}
	}
}

// Queue adds one command for the device at index to the pending batch. A
// command for an unknown index is logged and dropped.
func (c *Controller) Queue(command string, index int) bool {
	if _, ok := c.registry.Lookup(registry.ByIndex(index)); !ok {
		c.logger.Warn().Int("index", index).Str("command", command).Msg("Dropping command for unknown device")

		return false
	}

	c.mu.Lock()
	c.batch = append(c.batch, models.CommandPair{Command: command, Index: index})
	c.mu.Unlock()

	return true
}

// QueueAll adds command for every index and returns how many were queued.
func (c *Controller) QueueAll(command string, indices []int) int {
	queued := 0

	for _, index := range indices {
		if c.Queue(command, index) {
			queued++
		}
	}

	return queued
}

// Exec submits the pending batch as one task and clears it. With Blocking set
// it waits for the task to complete or ctx to end.
func (c *Controller) Exec(ctx context.Context, opts ExecOptions) (int64, error) {
	c.mu.Lock()
	batch := c.batch
	c.batch = nil
	c.mu.Unlock()

	if len(batch) == 0 {
		return 0, ErrEmptyBatch
	}

	id := c.scheduler.Submit(batch, scheduler.Options{
		Blocking: opts.Blocking,
		Sync:     opts.Sync,
		Repeat:   opts.Repeat,
		After:    opts.After,
	})

	if !opts.Blocking {
		return id, nil
	}

	return id, c.scheduler.Wait(ctx, id)
}

// Status reports whether task id has completed.
func (c *Controller) Status(id int64) bool {
	return c.scheduler.Status(id)
}

// SetHold enables or disables keepalive for the device at index.
func (c *Controller) SetHold(index int, hold bool) error {
	return c.registry.SetHold(index, hold)
}

// Emergency broadcasts the emergency stop several times without waiting for
// any acknowledgement.
func (c *Controller) Emergency() {
	logger.Critical(c.logger).Msg("Emergency stop")

	for range emergencyRepeats {
		c.command.Broadcast(emergencyCommand, c.config.CommandPort)
	}
}

// Close stops the background loops and releases the channels.
func (c *Controller) Close() error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	c.wg.Wait()

	var errs []error

	for _, ep := range []Endpoint{c.command, c.status, c.video} {
		if err := ep.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (c *Controller) taskCompleted(comp scheduler.Completion) {
	if c.publisher != nil {
		data := models.TaskCompletedEventData{
			TaskID:    comp.TaskID,
			Results:   comp.Results,
			Summary:   comp.Summary,
			Timestamp: comp.At,
		}

		c.enqueue("task.completed", func(ctx context.Context) {
			if err := c.publisher.PublishTaskCompleted(ctx, data); err != nil {
				c.logger.Warn().Err(err).Int64("task_id", data.TaskID).Msg("Failed to publish task completion")
			}
		})
	}

	if c.onTask != nil {
		c.onTask(comp)
	}
}

func (c *Controller) deviceDiscovered(info models.DeviceInfo) {
	if c.publisher == nil {
		return
	}

	c.enqueue("device.discovered", func(ctx context.Context) {
		if err := c.publisher.PublishDeviceDiscovered(ctx, info); err != nil {
			c.logger.Warn().Err(err).Int("index", info.Index).Msg("Failed to publish discovery")
		}
	})
}

func (c *Controller) snapshot(devices []models.DeviceInfo) {
	if c.onSnapshot != nil {
		c.onSnapshot(devices)
	}
}
