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
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/carverauto/dronefleet/pkg/models"
	"github.com/carverauto/dronefleet/pkg/scheduler"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func battery(b *float64) string {
	if b == nil {
		return "?"
	}

	return strconv.FormatFloat(*b, 'f', -1, 64)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}

			return cellStyle
		})
}

// renderSnapshot formats the devices found by a discovery round.
func renderSnapshot(devices []models.DeviceInfo) string {
	t := newTable("Index", "Serial", "Address", "Battery")

	for _, d := range devices {
		t.Row(strconv.Itoa(d.Index), d.Serial, d.Address.String(), battery(d.Battery))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("Discovered %d device(s)", len(devices))),
		t.Render(),
	)
}

// renderCompletion formats the per-device results of a finished task.
func renderCompletion(c scheduler.Completion) string {
	t := newTable("Device", "Battery", "Command", "Result")

	for _, r := range c.Results {
		t.Row(strconv.Itoa(r.Index), battery(r.Battery), r.Command, r.Result)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("Task[%d] - Done", c.TaskID)),
		t.Render(),
	)
}
