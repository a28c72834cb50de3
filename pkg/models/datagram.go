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

package models

import (
	"fmt"
	"net/netip"
)

// Datagram is one received or outbound UDP payload together with the remote
// endpoint. Text is set when the payload has been decoded as UTF-8.
type Datagram struct {
	Payload []byte
	Addr    netip.AddrPort
	Text    bool
}

// NewTextDatagram builds an outbound text datagram addressed to ip:port.
func NewTextDatagram(text string, ip netip.Addr, port int) Datagram {
	return Datagram{
		Payload: []byte(text),
		Addr:    netip.AddrPortFrom(ip, uint16(port)),
		Text:    true,
	}
}

// String returns the payload as text.
func (d Datagram) String() string {
	return string(d.Payload)
}

// Source returns the remote address without the port.
func (d Datagram) Source() netip.Addr {
	return d.Addr.Addr()
}

func (d Datagram) GoString() string {
	if d.Text {
		return fmt.Sprintf("Datagram{%q, %s}", d.Payload, d.Addr)
	}

	return fmt.Sprintf("Datagram{%d bytes, %s}", len(d.Payload), d.Addr)
}
