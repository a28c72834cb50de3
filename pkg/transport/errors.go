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

package transport

import "errors"

var (
	ErrNoLocalIPv4    = errors.New("no usable local IPv4 address")
	ErrNotIPv4        = errors.New("address is not IPv4")
	ErrServerClosed   = errors.New("transport server closed")
	ErrInvalidPort    = errors.New("port out of range")
	ErrReceiveStopped = errors.New("receive loop stopped")
)
