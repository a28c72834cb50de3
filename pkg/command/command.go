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

// Package command formats the text verbs understood by the devices.
package command

import (
	"fmt"
	"strconv"
	"strings"
)

// Plain verbs.
const (
	Command   = "command"
	Takeoff   = "takeoff"
	Land      = "land"
	Stop      = "stop"
	Emergency = "emergency"
	Reboot    = "reboot"
	Throwfly  = "throwfly"
	StreamOn  = "streamon"
	StreamOff = "streamoff"
	MotorOn   = "motoron"
	MotorOff  = "motoroff"
	PadOn     = "mon"
	PadOff    = "moff"
)

// Queries.
const (
	Speed       = "speed?"
	Battery     = "battery?"
	Time        = "time?"
	WiFi        = "wifi?"
	SDK         = "sdk?"
	Serial      = "sn?"
	Hardware    = "hardware?"
	WiFiVersion = "wifiversion?"
	AP          = "ap?"
	SSID        = "ssid?"
	ExtTOF      = "EXT tof?"
	ExtVersion  = "EXT version?"
)

// Flip directions.
const (
	FlipLeft    = "l"
	FlipRight   = "r"
	FlipForward = "f"
	FlipBack    = "b"
)

func join(verb string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, verb)

	for _, a := range args {
		switch v := a.(type) {
		case float64:
			parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}

	return strings.Join(parts, " ")
}

func Up(cm int) string { return join("up", cm) }
func Down(cm int) string { return join("down", cm) }
func Left(cm int) string { return join("left", cm) }
func Right(cm int) string { return join("right", cm) }
func Forward(cm int) string { return join("forward", cm) }
func Back(cm int) string { return join("back", cm) }
func Clockwise(deg int) string { return join("cw", deg) }
func AntiClockwise(deg int) string { return join("ccw", deg) }

// Flip rolls toward direction, one of the Flip* constants.
func Flip(direction string) string {
	return join("flip", direction)
}

// Go flies to x y z (cm, relative) at speed cm/s.
func Go(x, y, z, speed int) string {
	return join("go", x, y, z, speed)
}

// Curve flies an arc through (x1,y1,z1) to (x2,y2,z2).
func Curve(x1, y1, z1, x2, y2, z2, speed int) string {
	return join("curve", x1, y1, z1, x2, y2, z2, speed)
}

// PadGo is Go relative to mission pad.
func PadGo(x, y, z, speed int, pad string) string {
	return join("go", x, y, z, speed, pad)
}

func PadCurve(x1, y1, z1, x2, y2, z2, speed int, pad string) string {
	return join("curve", x1, y1, z1, x2, y2, z2, speed, pad)
}

// PadJump flies to x y z over pad1, turns to yaw and searches for pad2.
func PadJump(x, y, z, speed, yaw int, pad1, pad2 string) string {
	return join("jump", x, y, z, speed, yaw, pad1, pad2)
}

func SetSpeed(speed int) string {
	return join("speed", speed)
}

// RC sets the four remote-control channels, each -100..100.
func RC(roll, pitch, throttle, yaw int) string {
	return join("rc", roll, pitch, throttle, yaw)
}

func SetWiFi(ssid, password string) string { return join("wifi", ssid, password) }
func SetAP(ssid, password string) string { return join("ap", ssid, password) }
func SetAsAP(ssid, password string) string { return join("multiwifi", ssid, password) }
func SetWiFiChannel(channel int) string { return join("wifisetchannel", channel) }
func SetReportPorts(status, video int) string { return join("port", status, video) }
func SetVideoFPS(quality string) string { return join("setfps", quality) }
func SetVideoBitrate(bitrate int) string { return join("setbitrate", bitrate) }
func SetVideoResolution(resolution string) string { return join("setresolution", resolution) }

// FrontPadDetection enables pad detection with the forward camera.
func FrontPadDetection() string {
	return join("mdirection", 2)
}

func TopLEDStatic(r, g, b int) string {
	return join("EXT led", r, g, b)
}

func TopLEDBreath(r, g, b int, freq float64) string {
	return join("EXT led br", freq, r, g, b)
}

func TopLEDSwitch(r1, g1, b1, r2, g2, b2 int, freq float64) string {
	return join("EXT led bl", freq, r1, g1, b1, r2, g2, b2)
}

// MatrixGraph draws an 8x8 pattern on the dot matrix.
func MatrixGraph(graph string) string {
	return join("EXT mled g", graph)
}

func MatrixWordBanner(msg, direction, color string, freq float64) string {
	return join("EXT mled", direction, color, freq, msg)
}

func MatrixGraphBanner(graph, direction, color string, freq float64) string {
	return join("EXT mled g", direction, color, freq, graph)
}

func MatrixChar(char, color string) string {
	return join("EXT mled s", color, char)
}

func MatrixDefault(graph string) string {
	return join("EXT mled sg", graph)
}

func MatrixReset() string {
	return "EXT mled sc"
}

func MatrixBrightness(level int) string {
	return join("EXT mled sl", level)
}
