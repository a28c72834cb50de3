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

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"up", Up(50), "up 50"},
		{"back", Back(20), "back 20"},
		{"cw", Clockwise(90), "cw 90"},
		{"ccw", AntiClockwise(180), "ccw 180"},
		{"flip", Flip(FlipLeft), "flip l"},
		{"go", Go(100, -50, 0, 30), "go 100 -50 0 30"},
		{"curve", Curve(20, 20, 0, 40, 60, 0, 20), "curve 20 20 0 40 60 0 20"},
		{"pad go", PadGo(0, 0, 100, 40, "m1"), "go 0 0 100 40 m1"},
		{"pad jump", PadJump(100, 0, 80, 50, 90, "m1", "m2"), "jump 100 0 80 50 90 m1 m2"},
		{"speed", SetSpeed(60), "speed 60"},
		{"rc", RC(0, -20, 10, 0), "rc 0 -20 10 0"},
		{"ports", SetReportPorts(8890, 11111), "port 8890 11111"},
		{"multiwifi", SetAsAP("fleet", "secret123"), "multiwifi fleet secret123"},
		{"mdirection", FrontPadDetection(), "mdirection 2"},
		{"led static", TopLEDStatic(255, 0, 0), "EXT led 255 0 0"},
		{"led breath", TopLEDBreath(0, 255, 0, 0.5), "EXT led br 0.5 0 255 0"},
		{"led switch", TopLEDSwitch(255, 0, 0, 0, 0, 255, 2), "EXT led bl 2 255 0 0 0 0 255"},
		{"word banner", MatrixWordBanner("hello", "l", "r", 1.5), "EXT mled l r 1.5 hello"},
		{"char", MatrixChar("heart", "p"), "EXT mled s p heart"},
		{"reset", MatrixReset(), "EXT mled sc"},
		{"brightness", MatrixBrightness(128), "EXT mled sl 128"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.got)
		})
	}
}
