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

package scheduler

import (
	"context"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/dronefleet/pkg/logger"
	"github.com/carverauto/dronefleet/pkg/models"
	"github.com/carverauto/dronefleet/pkg/registry"
)

var (
	addrA = netip.MustParseAddr("192.168.10.11")
	addrB = netip.MustParseAddr("192.168.10.12")
)

func setup(t *testing.T, cfg Config) (*Scheduler, *registry.Registry) {
	t.Helper()

	reg := registry.New(map[string]int{"SERIALA": 1, "SERIALB": 2}, registry.Options{}, logger.NewTestLogger())

	_, err := reg.Add(addrA, "SERIALA")
	require.NoError(t, err)

	_, err = reg.Add(addrB, "SERIALB")
	require.NoError(t, err)

	return New(reg, cfg, nil, logger.NewTestLogger()), reg
}

func reply(t *testing.T, reg *registry.Registry, addr netip.Addr, text string) {
	t.Helper()

	require.NoError(t, reg.UpdateTaskResult(models.NewTextDatagram(text, addr, models.DefaultCommandPort)))
}

func commands(batch []models.Datagram) []string {
	out := make([]string, 0, len(batch))
	for _, d := range batch {
		out = append(out, d.String()+"@"+d.Addr.String())
	}

	return out
}

func busy(reg *registry.Registry, index int) bool {
	var b bool

	reg.View(func(v registry.View) {
		b = v.Device(index).Busy()
	})

	return b
}

func TestRepeatSendsEachCommandTwice(t *testing.T) {
	t.Parallel()

	s, reg := setup(t, Config{})

	id := s.Submit([]models.CommandPair{{Command: "takeoff", Index: 1}}, Options{Blocking: true, Repeat: true})

	batch := s.Tick()
	assert.Equal(t, []string{"takeoff@192.168.10.11:8889", "takeoff@192.168.10.11:8889"}, commands(batch))
	assert.True(t, busy(reg, 1))
	assert.False(t, s.Status(id))

	assert.Empty(t, s.Tick(), "busy device must not be redispatched")

	reply(t, reg, addrA, "ok")

	assert.Empty(t, s.Tick())
	assert.True(t, s.Status(id))
	require.NoError(t, s.Wait(context.Background(), id))

	summary, ok := s.Result(id)
	require.True(t, ok)
	assert.Contains(t, summary, "Task[1] - Done")
	assert.Contains(t, summary, "Device[1] - ? - takeoff - ok")
}

func TestWithoutRepeatSendsOnce(t *testing.T) {
	t.Parallel()

	s, _ := setup(t, Config{CommandPort: 9000})

	s.Submit([]models.CommandPair{{Command: "land", Index: 1}, {Command: "land", Index: 2}}, Options{})

	assert.Equal(t, []string{"land@192.168.10.11:9000", "land@192.168.10.12:9000"}, commands(s.Tick()))
}

func TestSyncWaitsForEveryDeviceIdle(t *testing.T) {
	t.Parallel()

	s, reg := setup(t, Config{})

	first := s.Submit([]models.CommandPair{{Command: "forward 50", Index: 2}}, Options{})
	require.Len(t, s.Tick(), 1)

	flip := s.Submit([]models.CommandPair{{Command: "flip l", Index: 1}, {Command: "flip l", Index: 2}}, Options{Sync: true})

	for range 3 {
		assert.Empty(t, s.Tick(), "sync task must wait while device 2 is busy")
	}

	assert.False(t, busy(reg, 1), "no pair of a gated sync task may be dispatched")

	reply(t, reg, addrB, "ok")

	batch := s.Tick()
	assert.ElementsMatch(t, []string{"flip l@192.168.10.11:8889", "flip l@192.168.10.12:8889"}, commands(batch))
	assert.True(t, s.Status(first))
	assert.False(t, s.Status(flip))
}

func TestNonSyncProgressesPerDevice(t *testing.T) {
	t.Parallel()

	s, reg := setup(t, Config{})

	s.Submit([]models.CommandPair{{Command: "cw 90", Index: 2}}, Options{})
	require.Len(t, s.Tick(), 1)

	id := s.Submit([]models.CommandPair{{Command: "up 20", Index: 1}, {Command: "up 20", Index: 2}}, Options{})

	assert.Equal(t, []string{"up 20@192.168.10.11:8889"}, commands(s.Tick()))

	reply(t, reg, addrA, "ok")
	assert.Empty(t, s.Tick(), "device 1 already answered, device 2 still busy")

	reply(t, reg, addrB, "ok")
	assert.Equal(t, []string{"up 20@192.168.10.12:8889"}, commands(s.Tick()))
	assert.False(t, s.Status(id))

	reply(t, reg, addrB, "ok")
	assert.Empty(t, s.Tick())
	assert.True(t, s.Status(id))
}

func TestCompletionPrecedesDispatch(t *testing.T) {
	t.Parallel()

	s, reg := setup(t, Config{})

	takeoff := s.Submit([]models.CommandPair{{Command: "takeoff", Index: 1}}, Options{})
	land := s.Submit([]models.CommandPair{{Command: "land", Index: 1}}, Options{After: []int64{takeoff}})

	assert.Equal(t, []string{"takeoff@192.168.10.11:8889"}, commands(s.Tick()))
	assert.False(t, s.Status(takeoff), "a task cannot complete in the tick it dispatches")

	reply(t, reg, addrA, "ok")

	assert.Equal(t, []string{"land@192.168.10.11:8889"}, commands(s.Tick()))
	assert.True(t, s.Status(takeoff))
	assert.False(t, s.Status(land))
}

func TestPrerequisitesGateDispatch(t *testing.T) {
	t.Parallel()

	s, reg := setup(t, Config{})

	t1 := s.Submit([]models.CommandPair{{Command: "takeoff", Index: 1}}, Options{})
	t2 := s.Submit([]models.CommandPair{{Command: "takeoff", Index: 2}}, Options{})
	t3 := s.Submit([]models.CommandPair{{Command: "land", Index: 1}, {Command: "land", Index: 2}}, Options{After: []int64{t1, t2}})

	assert.Len(t, s.Tick(), 2)

	reply(t, reg, addrA, "ok")
	assert.Empty(t, s.Tick(), "t3 waits for t2")
	assert.True(t, s.Status(t1))

	reply(t, reg, addrB, "ok")
	assert.Len(t, s.Tick(), 2)
	assert.False(t, s.Status(t3))
}

func TestUnknownPrerequisiteNeverDispatches(t *testing.T) {
	t.Parallel()

	s, reg := setup(t, Config{})

	id := s.Submit([]models.CommandPair{{Command: "land", Index: 1}}, Options{After: []int64{42}})

	for range 5 {
		assert.Empty(t, s.Tick())
	}

	assert.False(t, busy(reg, 1))
	assert.False(t, s.Status(id))
	assert.Equal(t, 1, s.Active())
}

func TestUnregisteredDeviceNeverCompletes(t *testing.T) {
	t.Parallel()

	s, _ := setup(t, Config{})

	id := s.Submit([]models.CommandPair{{Command: "takeoff", Index: 7}}, Options{})

	assert.Empty(t, s.Tick())
	assert.Empty(t, s.Tick())
	assert.False(t, s.Status(id))
}

func TestCompletionIsMonotonic(t *testing.T) {
	t.Parallel()

	s, reg := setup(t, Config{})

	id := s.Submit([]models.CommandPair{{Command: "takeoff", Index: 1}}, Options{Repeat: true})
	s.Tick()

	reply(t, reg, addrA, "ok")
	s.Tick()
	require.True(t, s.Status(id))

	// Second reply of the doubled send arrives late.
	reply(t, reg, addrA, "error")
	s.Tick()

	assert.True(t, s.Status(id))
	assert.Equal(t, []int64{id}, s.Completed())
	assert.Equal(t, 0, s.Active())
}

func TestTaskIDsStrictlyIncrease(t *testing.T) {
	t.Parallel()

	s, _ := setup(t, Config{})

	var last int64

	for range 10 {
		id := s.Submit(nil, Options{})
		assert.Greater(t, id, last)
		last = id
	}
}

func TestStatusAndWaitUnknownTask(t *testing.T) {
	t.Parallel()

	s, _ := setup(t, Config{})

	assert.False(t, s.Status(99))
	require.ErrorIs(t, s.Wait(context.Background(), 99), ErrUnknownTask)

	_, ok := s.Result(99)
	assert.False(t, ok)
}

func TestWaitHonorsContext(t *testing.T) {
	t.Parallel()

	s, _ := setup(t, Config{})

	id := s.Submit([]models.CommandPair{{Command: "takeoff", Index: 1}}, Options{Blocking: true})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, s.Wait(ctx, id), context.DeadlineExceeded)
}

func TestWaitReturnsOnCompletion(t *testing.T) {
	t.Parallel()

	s, reg := setup(t, Config{})

	id := s.Submit([]models.CommandPair{{Command: "takeoff", Index: 1}}, Options{Blocking: true})
	s.Tick()

	errCh := make(chan error, 1)

	go func() {
		errCh <- s.Wait(context.Background(), id)
	}()

	reply(t, reg, addrA, "ok")
	s.Tick()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after completion")
	}
}

func TestOnCompleteReceivesResults(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen []Completion
	)

	s, reg := setup(t, Config{OnComplete: func(c Completion) {
		mu.Lock()
		defer mu.Unlock()

		seen = append(seen, c)
	}})

	require.NoError(t, reg.UpdateTelemetry(models.NewTextDatagram("bat:87;h:0;", addrA, models.DefaultStatusPort)))

	id := s.Submit([]models.CommandPair{{Command: "battery?", Index: 1}, {Command: "battery?", Index: 2}}, Options{})
	s.Tick()

	reply(t, reg, addrA, "87")
	reply(t, reg, addrB, "64")
	s.Tick()

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, seen, 1)
	assert.Equal(t, id, seen[0].TaskID)
	require.Len(t, seen[0].Results, 2)
	assert.Equal(t, "87", seen[0].Results[0].Result)
	require.NotNil(t, seen[0].Results[0].Battery)
	assert.InDelta(t, 87.0, *seen[0].Results[0].Battery, 0.001)
	assert.Nil(t, seen[0].Results[1].Battery)
	assert.Equal(t,
		"\nTask[1] - Done\nDevice[1] - 87 - battery? - 87\nDevice[2] - ? - battery? - 64\n",
		seen[0].Summary)
}

func TestRunTicksOnClock(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)

	clock := NewMockClock(ctrl)
	ticker := NewMockTicker(ctrl)
	ticks := make(chan time.Time)

	clock.EXPECT().Ticker(models.DefaultTickInterval).Return(ticker)
	clock.EXPECT().Now().Return(time.Unix(0, 0)).AnyTimes()
	ticker.EXPECT().Chan().Return((<-chan time.Time)(ticks)).AnyTimes()
	ticker.EXPECT().Stop()

	reg := registry.New(map[string]int{"SERIALA": 1}, registry.Options{}, logger.NewTestLogger())
	_, err := reg.Add(addrA, "SERIALA")
	require.NoError(t, err)

	s := New(reg, Config{}, clock, logger.NewTestLogger())
	s.Submit([]models.CommandPair{{Command: "takeoff", Index: 1}}, Options{})

	sent := make(chan []models.Datagram, 1)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	go func() {
		errCh <- s.Run(ctx, func(batch []models.Datagram) { sent <- batch })
	}()

	ticks <- time.Unix(1, 0)

	select {
	case batch := <-sent:
		assert.Equal(t, []string{"takeoff@192.168.10.11:8889"}, commands(batch))
	case <-time.After(time.Second):
		t.Fatal("no batch sent after tick")
	}

	ticks <- time.Unix(2, 0)
	cancel()

	require.ErrorIs(t, <-errCh, context.Canceled)
}
