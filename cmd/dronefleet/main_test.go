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

package main

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/dronefleet/pkg/fleet"
	"github.com/carverauto/dronefleet/pkg/models"
	"github.com/carverauto/dronefleet/pkg/scheduler"
)

var errExecFailed = errors.New("exec failed")

type queued struct {
	command string
	indices []int
}

type fakeRunner struct {
	queued []queued
	execs  []fleet.ExecOptions
	known  map[int]bool
	err    error
}

func (f *fakeRunner) QueueAll(command string, indices []int) int {
	f.queued = append(f.queued, queued{command: command, indices: indices})

	n := 0

	for _, i := range indices {
		if f.known == nil || f.known[i] {
			n++
		}
	}

	return n
}

func (f *fakeRunner) Exec(_ context.Context, opts fleet.ExecOptions) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}

	f.execs = append(f.execs, opts)

	return int64(len(f.execs) * 10), nil
}

func writeMission(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mission.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

const squareMission = `
steps:
  - command: takeoff
    indices: [1, 2]
    sync: true
  - command: forward 50
    indices: [1]
    blocking: false
  - command: forward 50
    indices: [2]
    repeat: false
    blocking: false
  - command: land
    indices: [1, 2]
    after: [2, 3]
`

func TestMissionRun(t *testing.T) {
	t.Parallel()

	m, err := LoadMission(writeMission(t, squareMission))
	require.NoError(t, err)

	r := &fakeRunner{}

	ids, err := m.Run(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30, 40}, ids)

	require.Len(t, r.execs, 4)
	assert.Equal(t, fleet.ExecOptions{Blocking: true, Sync: true, Repeat: true, After: []int64{}}, r.execs[0])
	assert.False(t, r.execs[1].Blocking)
	assert.False(t, r.execs[2].Repeat)
	assert.Equal(t, []int64{20, 30}, r.execs[3].After)
	assert.Equal(t, queued{command: "land", indices: []int{1, 2}}, r.queued[3])
}

func TestMissionRunStopsOnError(t *testing.T) {
	t.Parallel()

	m, err := LoadMission(writeMission(t, squareMission))
	require.NoError(t, err)

	_, err = m.Run(context.Background(), &fakeRunner{err: errExecFailed})
	require.ErrorIs(t, err, errExecFailed)

	_, err = m.Run(context.Background(), &fakeRunner{known: map[int]bool{}})
	require.ErrorIs(t, err, fleet.ErrEmptyBatch)
}

func TestMissionValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"no steps", "steps: []", errNoSteps},
		{"no command", "steps:\n  - indices: [1]", errEmptyCommand},
		{"no indices", "steps:\n  - command: land", errNoIndices},
		{"forward reference", "steps:\n  - command: land\n    indices: [1]\n    after: [1]", errBadPrerequisite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadMission(writeMission(t, tt.content))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRenderSnapshot(t *testing.T) {
	t.Parallel()

	out := renderSnapshot([]models.DeviceInfo{
		{Index: 1, Serial: "SERIALA", Address: netip.MustParseAddr("192.168.10.11"), Battery: models.Float(87)},
		{Index: 2, Serial: "SERIALB", Address: netip.MustParseAddr("192.168.10.12")},
	})

	assert.Contains(t, out, "Discovered 2 device(s)")
	assert.Contains(t, out, "SERIALA")
	assert.Contains(t, out, "192.168.10.12")
	assert.Contains(t, out, "87")
}

func TestRenderCompletion(t *testing.T) {
	t.Parallel()

	out := renderCompletion(scheduler.Completion{
		TaskID:  4,
		Results: []models.TaskResult{{Index: 2, Command: "battery?", Result: "64"}},
	})

	assert.Contains(t, out, "Task[4] - Done")
	assert.Contains(t, out, "battery?")
	assert.Contains(t, out, "64")
}

func TestRunRejectsMissingConfig(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	err := run([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.ErrorIs(t, err, errFailedToLoadConfig)
}
