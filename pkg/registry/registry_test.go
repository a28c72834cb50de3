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
	"net/netip"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/dronefleet/pkg/logger"
	"github.com/carverauto/dronefleet/pkg/models"
)

var (
	addrA = netip.MustParseAddr("192.168.10.11")
	addrB = netip.MustParseAddr("192.168.10.12")
	addrC = netip.MustParseAddr("192.168.10.13")
)

func newTestRegistry(opts Options) *Registry {
	return New(map[string]int{"SERIALA": 1, "SERIALB": 2}, opts, logger.NewTestLogger())
}

func reply(addr netip.Addr, text string) models.Datagram {
	return models.NewTextDatagram(text, addr, models.DefaultCommandPort)
}

func TestAddRejectsDuplicateAddress(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(Options{})

	info, err := r.Add(addrA, "SERIALA\r\n")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Index)
	assert.Equal(t, "SERIALA", info.Serial)

	_, err = r.Add(addrA, "SERIALB")
	require.ErrorIs(t, err, ErrDuplicateAddress)
	assert.Equal(t, 1, r.Len())
}

func TestAddUnknownSerial(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(Options{})

	info, err := r.Add(addrC, "STRANGER")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultUnknownSerialIndex, info.Index)

	strict := newTestRegistry(Options{RejectUnknownSerials: true})

	_, err = strict.Add(addrC, "STRANGER")
	require.ErrorIs(t, err, ErrUnknownSerial)
	assert.Equal(t, 0, strict.Len())

	custom := newTestRegistry(Options{UnknownSerialIndex: 99})

	info, err = custom.Add(addrC, "STRANGER")
	require.NoError(t, err)
	assert.Equal(t, 99, info.Index)
}

func TestLookupFilters(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(Options{})

	_, err := r.Add(addrA, "SERIALA")
	require.NoError(t, err)
	_, err = r.Add(addrB, "SERIALB")
	require.NoError(t, err)

	tests := []struct {
		name      string
		filter    Filter
		wantFound bool
		wantIndex int
	}{
		{"by address", ByAddress(addrB), true, 2},
		{"by serial", BySerial("SERIALA"), true, 1},
		{"by index", ByIndex(2), true, 2},
		{"address and index agree", ByAddress(addrA).And(ByIndex(1)), true, 1},
		{"address and index disagree", ByAddress(addrA).And(ByIndex(2)), false, 0},
		{"serial and serial disagree", BySerial("SERIALA").And(BySerial("SERIALB")), false, 0},
		{"unknown address", ByAddress(addrC), false, 0},
		{"unknown index", ByIndex(7), false, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			info, found := r.Lookup(tc.filter)
			assert.Equal(t, tc.wantFound, found)

			if tc.wantFound {
				assert.Equal(t, tc.wantIndex, info.Index)
			}
		})
	}
}

func TestUpdateTaskResultClearsBusy(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(Options{})

	_, err := r.Add(addrA, "SERIALA")
	require.NoError(t, err)

	r.View(func(v View) {
		d := v.Device(1)
		require.NotNil(t, d)
		d.Execute(4, "takeoff")
		assert.True(t, d.Busy())
		assert.False(t, d.HasResult(4))
	})

	require.NoError(t, r.UpdateTaskResult(reply(addrA, "ok\r\n")))

	r.View(func(v View) {
		d := v.Device(1)
		assert.False(t, d.Busy())
		assert.True(t, d.HasResult(4))

		rec, ok := d.Result(4)
		require.True(t, ok)
		assert.Equal(t, models.TaskRecord{TaskID: 4, Command: "takeoff", Result: "ok"}, rec)
	})

	history, ok := r.History(1)
	require.True(t, ok)
	assert.Len(t, history, 1)
}

func TestReplyFromIdleDeviceIsNotRecorded(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(Options{})

	_, err := r.Add(addrA, "SERIALA")
	require.NoError(t, err)

	require.NoError(t, r.UpdateTaskResult(reply(addrA, "ok")))

	history, ok := r.History(1)
	require.True(t, ok)
	assert.Empty(t, history, "no command was pending")

	r.View(func(v View) { v.Device(1).Execute(1, "takeoff") })
	require.NoError(t, r.UpdateTaskResult(reply(addrA, "ok")))

	// second answer to a repeated send
	require.NoError(t, r.UpdateTaskResult(reply(addrA, "error")))

	r.View(func(v View) { v.Device(1).Execute(2, "land") })

	history, ok = r.History(1)
	require.True(t, ok)
	assert.Equal(t, []models.TaskRecord{{TaskID: 1, Command: "takeoff", Result: "ok"}}, history)

	r.View(func(v View) {
		d := v.Device(1)
		assert.True(t, d.Busy())
		assert.False(t, d.HasResult(2), "late reply must not complete the next task")
	})
}

func TestUpdatesFromUnknownSource(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(Options{})

	require.ErrorIs(t, r.UpdateTaskResult(reply(addrC, "ok")), ErrUnknownSource)
	require.ErrorIs(t, r.UpdateTelemetry(reply(addrC, "bat:10;")), ErrUnknownSource)
	require.ErrorIs(t, r.UpdateVideo(models.Datagram{Payload: []byte{1}, Addr: netip.AddrPortFrom(addrC, 11111)}),
		ErrUnknownSource)
}

func TestTelemetryAndVideo(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(Options{})

	_, err := r.Add(addrB, "SERIALB")
	require.NoError(t, err)

	require.NoError(t, r.UpdateTelemetry(reply(addrB, "bat:64;h:30;")))

	status, ok := r.Telemetry(2)
	require.True(t, ok)
	assert.InDelta(t, 64, *status.Battery, 0)
	assert.InDelta(t, 30, *status.Height, 0)

	info, ok := r.Lookup(ByIndex(2))
	require.True(t, ok)
	assert.InDelta(t, 64, *info.Battery, 0)

	for _, chunk := range [][]byte{{0, 0, 0, 1}, {0x67, 0x42}} {
		require.NoError(t, r.UpdateVideo(models.Datagram{Payload: chunk, Addr: netip.AddrPortFrom(addrB, 11111)}))
	}

	video, ok := r.Video(2)
	require.True(t, ok)
	assert.Equal(t, []byte{0, 0, 0, 1, 0x67, 0x42}, video)
	assert.Equal(t, 6, r.VideoSize(2))

	video[0] = 9
	again, _ := r.Video(2)
	assert.Equal(t, byte(0), again[0], "Video must return a copy")
}

func TestScanCompleteAndMissing(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(Options{})
	assert.False(t, r.ScanComplete())
	assert.Equal(t, []string{"SERIALA", "SERIALB"}, r.Missing())

	_, err := r.Add(addrA, "SERIALA")
	require.NoError(t, err)
	assert.Equal(t, []string{"SERIALB"}, r.Missing())

	_, err = r.Add(addrC, "STRANGER")
	require.NoError(t, err)
	assert.False(t, r.ScanComplete())

	_, err = r.Add(addrB, "SERIALB")
	require.NoError(t, err)
	assert.True(t, r.ScanComplete())

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "SERIALA", snapshot[0].Serial)
	assert.Equal(t, "STRANGER", snapshot[1].Serial)
}

func TestHold(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(Options{})

	_, err := r.Add(addrA, "SERIALA")
	require.NoError(t, err)
	_, err = r.Add(addrB, "SERIALB")
	require.NoError(t, err)

	require.ErrorIs(t, r.SetHold(5, true), ErrDeviceNotFound)
	require.NoError(t, r.SetHold(1, true))
	require.NoError(t, r.SetHold(2, true))

	r.View(func(v View) { v.Device(2).Execute(1, "land") })

	assert.Equal(t, []netip.Addr{addrA}, r.IdleHeld())
}

func TestConcurrentUpdates(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(Options{})

	_, err := r.Add(addrA, "SERIALA")
	require.NoError(t, err)

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(3)

		go func() {
			defer wg.Done()
			_ = r.UpdateTelemetry(reply(addrA, "bat:50;"))
		}()

		go func(id int64) {
			defer wg.Done()
			r.View(func(v View) { v.Device(1).Execute(id, "up 20") })
			_ = r.UpdateTaskResult(reply(addrA, "ok"))
		}(int64(i))

		go func() {
			defer wg.Done()
			_ = r.UpdateVideo(models.Datagram{Payload: []byte{1}, Addr: netip.AddrPortFrom(addrA, 11111)})
		}()
	}

	wg.Wait()

	history, _ := r.History(1)
	assert.Len(t, history, 50)
	assert.Equal(t, 50, r.VideoSize(1))
}
