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

package registry

import "net/netip"

// Filter narrows a lookup. Criteria combine with And as a logical AND; the
// zero Filter matches every device.
type Filter struct {
	preds []func(d *Device) bool
}

func ByAddress(address netip.Addr) Filter {
	return Filter{preds: []func(*Device) bool{
		func(d *Device) bool { return d.address == address },
	}}
}

func BySerial(serial string) Filter {
	return Filter{preds: []func(*Device) bool{
		func(d *Device) bool { return d.serial == serial },
	}}
}

func ByIndex(index int) Filter {
	return Filter{preds: []func(*Device) bool{
		func(d *Device) bool { return d.index == index },
	}}
}

// And returns a filter requiring both f and o.
func (f Filter) And(o Filter) Filter {
	preds := make([]func(*Device) bool, 0, len(f.preds)+len(o.preds))
	preds = append(preds, f.preds...)
	preds = append(preds, o.preds...)

	return Filter{preds: preds}
}

func (f Filter) matches(d *Device) bool {
	for _, pred := range f.preds {
		if !pred(d) {
			return false
		}
	}

	return true
}
