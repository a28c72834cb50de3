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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/carverauto/dronefleet/pkg/fleet"
)

var (
	errNoSteps         = errors.New("mission has no steps")
	errEmptyCommand    = errors.New("step has no command")
	errNoIndices       = errors.New("step has no device indices")
	errBadPrerequisite = errors.New("step may only wait on earlier steps")
)

// Mission is an ordered list of fleet commands read from YAML.
type Mission struct {
	Steps []Step `yaml:"steps"`
}

// Step is one batch: command for every device in Indices. After refers to
// earlier steps by their 1-based position.
type Step struct {
	Command  string `yaml:"command"`
	Indices  []int  `yaml:"indices"`
	Sync     bool   `yaml:"sync"`
	Repeat   *bool  `yaml:"repeat"`
	Blocking *bool  `yaml:"blocking"`
	After    []int  `yaml:"after"`
}

func (s Step) repeat() bool {
	return s.Repeat == nil || *s.Repeat
}

func (s Step) blocking() bool {
	return s.Blocking == nil || *s.Blocking
}

// Runner is the part of the fleet controller a mission drives.
type Runner interface {
	QueueAll(command string, indices []int) int
	Exec(ctx context.Context, opts fleet.ExecOptions) (int64, error)
}

// LoadMission reads and validates a mission file.
func LoadMission(path string) (*Mission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mission '%s': %w", path, err)
	}

	var m Mission

	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML from '%s': %w", path, err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Mission) Validate() error {
	if len(m.Steps) == 0 {
		return errNoSteps
	}

	for i, step := range m.Steps {
		n := i + 1

		if step.Command == "" {
			return fmt.Errorf("step %d: %w", n, errEmptyCommand)
		}

		if len(step.Indices) == 0 {
			return fmt.Errorf("step %d: %w", n, errNoIndices)
		}

		for _, after := range step.After {
			if after < 1 || after >= n {
				return fmt.Errorf("step %d after %d: %w", n, after, errBadPrerequisite)
			}
		}
	}

	return nil
}

// Run executes the steps in order and returns the task id of each.
func (m *Mission) Run(ctx context.Context, r Runner) ([]int64, error) {
	ids := make([]int64, 0, len(m.Steps))

	for i, step := range m.Steps {
		if r.QueueAll(step.Command, step.Indices) == 0 {
			return ids, fmt.Errorf("step %d: %w", i+1, fleet.ErrEmptyBatch)
		}

		after := make([]int64, 0, len(step.After))
		for _, n := range step.After {
			after = append(after, ids[n-1])
		}

		id, err := r.Exec(ctx, fleet.ExecOptions{
			Blocking: step.blocking(),
			Sync:     step.Sync,
			Repeat:   step.repeat(),
			After:    after,
		})
		if err != nil {
			return ids, fmt.Errorf("step %d (%s): %w", i+1, step.Command, err)
		}

		ids = append(ids, id)
	}

	return ids, nil
}
