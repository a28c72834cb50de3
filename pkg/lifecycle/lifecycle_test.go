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

package lifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/dronefleet/pkg/logger"
)

func TestCreateComponentLoggerTagsComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "component.log")

	log, err := CreateComponentLogger("scheduler", &logger.Config{Level: "debug", Output: path})
	require.NoError(t, err)

	log.Debug().Int64("task_id", 7).Msg("task submitted")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "scheduler", entry["component"])
	assert.Equal(t, "task submitted", entry["message"])
}

func TestLoggerImplSetDebug(t *testing.T) {
	impl, err := NewLoggerImpl(&logger.Config{Level: "warn", Output: "stderr"})
	require.NoError(t, err)

	impl.SetDebug(true)
	assert.Equal(t, zerolog.DebugLevel, impl.logger.GetLevel())

	impl.SetDebug(false)
	assert.Equal(t, zerolog.InfoLevel, impl.logger.GetLevel())
}

func TestHandleSignalsRunsCallbackBeforeCancel(t *testing.T) {
	called := make(chan struct{})

	ctx, cancel := HandleSignals(context.Background(), logger.NewTestLogger(), func(os.Signal) {
		close(called)
	})
	defer cancel()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("signal callback was not invoked")
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not canceled after signal")
	}
}

func TestHandleSignalsStopsWithParent(t *testing.T) {
	parent, parentCancel := context.WithCancel(context.Background())

	ctx, cancel := HandleSignals(parent, logger.NewTestLogger(), nil)
	defer cancel()

	parentCancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context should follow its parent")
	}
}
