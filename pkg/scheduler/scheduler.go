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

// Package scheduler advances multi-device command tasks one dispatch step per
// tick, honoring prerequisites, sync barriers and repeat sends.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/dronefleet/pkg/logger"
	"github.com/carverauto/dronefleet/pkg/models"
	"github.com/carverauto/dronefleet/pkg/registry"
)

// Options are the caller-chosen parameters of a task.
type Options struct {
	// Blocking is recorded for callers that wait on the task; the scheduler
	// itself never blocks.
	Blocking bool
	// Sync gates dispatch until every bound device is idle at once.
	Sync bool
	// Repeat places each dispatched command twice in the outbound batch.
	Repeat bool
	// After lists task ids that must complete before this task dispatches.
	After []int64
}

// Completion describes a task that has just finished.
type Completion struct {
	TaskID  int64
	Results []models.TaskResult
	Summary string
	At      time.Time
}

// Config wires a Scheduler.
type Config struct {
	Interval    time.Duration
	CommandPort int
	// OnComplete is called outside any lock for every finished task.
	OnComplete func(Completion)
}

type task struct {
	id      int64
	pairs   []models.CommandPair
	opts    Options
	bound   []int
	done    chan struct{}
	summary string
}

// Scheduler tracks active and completed tasks. Task bookkeeping is guarded by
// mu; device state is mutated only inside registry.View, always acquired
// after mu.
type Scheduler struct {
	mu       sync.Mutex
	registry *registry.Registry
	clock    Clock
	config   Config
	logger   logger.Logger

	nextID    int64
	tasks     map[int64]*task
	active    []*task
	completed []int64
}

// New creates a scheduler over reg.
func New(reg *registry.Registry, cfg Config, clock Clock, log logger.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}

	if cfg.Interval <= 0 {
		cfg.Interval = models.DefaultTickInterval
	}

	if cfg.CommandPort == 0 {
		cfg.CommandPort = models.DefaultCommandPort
	}

	return &Scheduler{
		registry: reg,
		clock:    clock,
		config:   cfg,
		logger:   log,
		tasks:    make(map[int64]*task),
	}
}

// Submit registers pairs as a new active task and returns its id without
// waiting for dispatch.
func (s *Scheduler) Submit(pairs []models.CommandPair, opts Options) int64 {
	t := &task{
		pairs: append([]models.CommandPair(nil), pairs...),
		opts:  opts,
		done:  make(chan struct{}),
	}

	t.opts.After = append([]int64(nil), opts.After...)

	seen := make(map[int]bool, len(pairs))

	for _, p := range pairs {
		if !seen[p.Index] {
			seen[p.Index] = true
			t.bound = append(t.bound, p.Index)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	t.id = s.nextID
	s.tasks[t.id] = t
	s.active = append(s.active, t)

	for _, id := range t.opts.After {
		if _, ok := s.tasks[id]; !ok || id == t.id {
			s.logger.Warn().Int64("task_id", t.id).Int64("prerequisite", id).
				Msg("Prerequisite was never submitted, task will not dispatch")
		}
	}

	s.logger.Debug().
		Int64("task_id", t.id).
		Int("pairs", len(t.pairs)).
		Ints("devices", t.bound).
		Bool("sync", opts.Sync).
		Bool("repeat", opts.Repeat).
		Bool("blocking", opts.Blocking).
		Msg("Task submitted")

	return t.id
}

// Status reports whether the task has completed. Unknown ids are logged and
// reported as not done.
func (s *Scheduler) Status(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		s.logger.Warn().Int64("task_id", id).Msg("Status requested for unknown task")

		return false
	}

	return t.complete()
}

// Wait blocks until the task completes or ctx is done.
func (s *Scheduler) Wait(ctx context.Context, id int64) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTask, id)
	}

	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result returns the summary of a completed task.
func (s *Scheduler) Result(id int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || !t.complete() {
		return "", false
	}

	return t.summary, true
}

// Completed returns the ids of completed tasks in completion order.
func (s *Scheduler) Completed() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]int64(nil), s.completed...)
}

// Active returns the number of tasks not yet complete.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.active)
}

// Run ticks until ctx is done, handing every non-empty outbound batch to send.
func (s *Scheduler) Run(ctx context.Context, send func([]models.Datagram)) error {
	ticker := s.clock.Ticker(s.config.Interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.config.Interval).Msg("Starting scheduler")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if batch := s.Tick(); len(batch) > 0 {
				send(batch)
			}
		}
	}
}

// Tick performs one completion sweep followed by one dispatch sweep and
// returns the datagrams to send.
func (s *Scheduler) Tick() []models.Datagram {
	var (
		batch    []models.Datagram
		finished []Completion
	)

	s.mu.Lock()

	s.registry.View(func(v registry.View) {
		finished = s.sweepCompleted(v)
		batch = s.sweepDispatch(v)
	})

	s.mu.Unlock()

	for _, c := range finished {
		s.logger.Info().Int64("task_id", c.TaskID).Msg(c.Summary)

		if s.config.OnComplete != nil {
			s.config.OnComplete(c)
		}
	}

	return batch
}

func (s *Scheduler) sweepCompleted(v registry.View) []Completion {
	var (
		finished []Completion
		still    []*task
	)

	for _, t := range s.active {
		if !t.finished(v) {
			still = append(still, t)

			continue
		}

		c := Completion{
			TaskID:  t.id,
			Results: t.results(v),
			At:      s.clock.Now(),
		}
		c.Summary = formatSummary(t.id, c.Results)

		t.summary = c.Summary
		close(t.done)

		s.completed = append(s.completed, t.id)
		finished = append(finished, c)
	}

	s.active = still

	return finished
}

func (s *Scheduler) sweepDispatch(v registry.View) []models.Datagram {
	var batch []models.Datagram

	for _, t := range s.active {
		if !s.prerequisitesMet(t) {
			continue
		}

		if t.opts.Sync && !t.allIdle(v) {
			continue
		}

		for _, p := range t.pairs {
			d := v.Device(p.Index)
			if d == nil {
				continue
			}

			if !t.opts.Sync && (d.Busy() || d.HasResult(t.id)) {
				continue
			}

			d.Execute(t.id, p.Command)

			out := models.NewTextDatagram(p.Command, d.Address(), s.config.CommandPort)
			batch = append(batch, out)

			if t.opts.Repeat {
				batch = append(batch, out)
			}

			s.logger.Debug().
				Int64("task_id", t.id).
				Int("index", p.Index).
				Str("command", p.Command).
				Msg("Command dispatched")
		}
	}

	return batch
}

func (s *Scheduler) prerequisitesMet(t *task) bool {
	for _, id := range t.opts.After {
		p, ok := s.tasks[id]
		if !ok || !p.complete() {
			return false
		}
	}

	return true
}

func (t *task) complete() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// finished reports whether every bound device has a result for the task.
func (t *task) finished(v registry.View) bool {
	for _, index := range t.bound {
		d := v.Device(index)
		if d == nil || !d.HasResult(t.id) {
			return false
		}
	}

	return true
}

func (t *task) allIdle(v registry.View) bool {
	for _, index := range t.bound {
		d := v.Device(index)
		if d == nil || d.Busy() {
			return false
		}
	}

	return true
}

func (t *task) results(v registry.View) []models.TaskResult {
	results := make([]models.TaskResult, 0, len(t.bound))

	for _, index := range t.bound {
		d := v.Device(index)
		rec, _ := d.Result(t.id)

		r := models.TaskResult{
			Index:   index,
			Command: rec.Command,
			Result:  rec.Result,
		}

		if b := d.Battery(); b != nil {
			r.Battery = models.Float(*b)
		}

		results = append(results, r)
	}

	return results
}

func formatSummary(id int64, results []models.TaskResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\nTask[%d] - Done\n", id)

	for _, r := range results {
		battery := "?"
		if r.Battery != nil {
			battery = strconv.FormatFloat(*r.Battery, 'f', -1, 64)
		}

		fmt.Fprintf(&b, "Device[%d] - %s - %s - %s\n", r.Index, battery, r.Command, r.Result)
	}

	return b.String()
}
