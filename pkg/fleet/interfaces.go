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

package fleet

//go:generate mockgen -destination=mock_fleet.go -package=fleet github.com/carverauto/dronefleet/pkg/fleet Endpoint

import "github.com/carverauto/dronefleet/pkg/models"

// Endpoint is one UDP channel of the controller. *transport.Server
// implements it.
type Endpoint interface {
	Send(d models.Datagram)
	Broadcast(message string, port int)
	HasPending() bool
	Read() models.Datagram
	Close() error
}
