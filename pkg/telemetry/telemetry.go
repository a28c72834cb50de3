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

// Package telemetry parses the semicolon separated status reports devices
// push to the status port.
package telemetry

import (
	"strconv"
	"strings"

	"github.com/carverauto/dronefleet/pkg/models"
)

const (
	tokenSeparator = ";"
	keySeparator   = ":"
	tripleKey      = "mpry"
)

// field returns the telemetry slot for a single-valued key.
type field func(t *models.Telemetry) **float64

//nolint:gochecknoglobals // static key table
var fields = map[string]field{
	"mid":   func(t *models.Telemetry) **float64 { return &t.Pad },
	"x":     func(t *models.Telemetry) **float64 { return &t.PadX },
	"y":     func(t *models.Telemetry) **float64 { return &t.PadY },
	"z":     func(t *models.Telemetry) **float64 { return &t.PadZ },
	"pitch": func(t *models.Telemetry) **float64 { return &t.Pitch },
	"roll":  func(t *models.Telemetry) **float64 { return &t.Roll },
	"yaw":   func(t *models.Telemetry) **float64 { return &t.Yaw },
	"vgx":   func(t *models.Telemetry) **float64 { return &t.VGX },
	"vgy":   func(t *models.Telemetry) **float64 { return &t.VGY },
	"vgz":   func(t *models.Telemetry) **float64 { return &t.VGZ },
	"templ": func(t *models.Telemetry) **float64 { return &t.TempMin },
	"temph": func(t *models.Telemetry) **float64 { return &t.TempMax },
	"tof":   func(t *models.Telemetry) **float64 { return &t.TOF },
	"h":     func(t *models.Telemetry) **float64 { return &t.Height },
	"bat":   func(t *models.Telemetry) **float64 { return &t.Battery },
	"baro":  func(t *models.Telemetry) **float64 { return &t.Barometer },
	"time":  func(t *models.Telemetry) **float64 { return &t.MotorTime },
	"agx":   func(t *models.Telemetry) **float64 { return &t.AGX },
	"agy":   func(t *models.Telemetry) **float64 { return &t.AGY },
	"agz":   func(t *models.Telemetry) **float64 { return &t.AGZ },
}

// Keys is the wire order of the status report.
//
//nolint:gochecknoglobals // static key table
var Keys = []string{
	"mid", "x", "y", "z", tripleKey, "pitch", "roll", "yaw", "vgx", "vgy", "vgz",
	"templ", "temph", "tof", "h", "bat", "baro", "time", "agx", "agy", "agz",
}

// Parse converts a status report into a Telemetry snapshot. Unknown keys and
// tokens that fail to parse are skipped; they never affect other tokens.
func Parse(status string) models.Telemetry {
	var t models.Telemetry

	for _, token := range strings.Split(status, tokenSeparator) {
		key, value, ok := strings.Cut(strings.TrimSpace(token), keySeparator)
		if !ok {
			continue
		}

		if key == tripleKey {
			parseTriple(&t, value)
			continue
		}

		slot, known := fields[key]
		if !known {
			continue
		}

		if v, err := strconv.ParseFloat(value, 64); err == nil {
			*slot(&t) = &v
		}
	}

	return t
}

// parseTriple assigns pad pitch, roll and yaw from "p,r,y". A malformed
// component leaves that component and the ones after it unset.
func parseTriple(t *models.Telemetry, value string) {
	parts := strings.Split(value, ",")
	targets := []**float64{&t.PadPitch, &t.PadRoll, &t.PadYaw}

	for i, target := range targets {
		if i >= len(parts) {
			return
		}

		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return
		}

		*target = &v
	}
}

// Format renders t in the device's wire format. Unset fields are omitted; the
// pad attitude triple is only written when all three values are present.
func Format(t models.Telemetry) string {
	var b strings.Builder

	for _, key := range Keys {
		if key == tripleKey {
			if t.PadPitch == nil || t.PadRoll == nil || t.PadYaw == nil {
				continue
			}

			b.WriteString(key + keySeparator +
				formatFloat(*t.PadPitch) + "," + formatFloat(*t.PadRoll) + "," + formatFloat(*t.PadYaw) +
				tokenSeparator)

			continue
		}

		v := *fields[key](&t)
		if v == nil {
			continue
		}

		b.WriteString(key + keySeparator + formatFloat(*v) + tokenSeparator)
	}

	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
