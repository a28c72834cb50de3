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

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// LocalIPv4 returns the first up, non-loopback IPv4 address of this host,
// skipping container bridges.
func LocalIPv4() (netip.Addr, error) {
	dockerPrefixes := []netip.Prefix{
		netip.MustParsePrefix("172.17.0.0/16"),
		netip.MustParsePrefix("172.18.0.0/16"),
		netip.MustParsePrefix("172.19.0.0/16"),
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to list interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		name := strings.ToLower(iface.Name)
		if strings.HasPrefix(name, "docker") || strings.HasPrefix(name, "br-") || strings.HasPrefix(name, "veth") {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet == nil {
				continue
			}

			ip, ok := netip.AddrFromSlice(ipNet.IP.To4())
			if !ok || !ip.IsGlobalUnicast() {
				continue
			}

			if containedIn(ip, dockerPrefixes) {
				continue
			}

			return ip, nil
		}
	}

	return netip.Addr{}, ErrNoLocalIPv4
}

func containedIn(ip netip.Addr, prefixes []netip.Prefix) bool {
	for _, p := range prefixes {
		if p.Contains(ip) {
			return true
		}
	}

	return false
}

// HostsInSlash24 lists the host addresses (.1 through .254) of the /24 that
// contains ip.
func HostsInSlash24(ip netip.Addr) ([]netip.Addr, error) {
	if !ip.Is4() {
		return nil, fmt.Errorf("%w: %s", ErrNotIPv4, ip)
	}

	prefix, err := ip.Prefix(24)
	if err != nil {
		return nil, err
	}

	hosts := make([]netip.Addr, 0, 254)

	// skip the network address and stop before the broadcast address
	for current := prefix.Addr().Next(); prefix.Contains(current); current = current.Next() {
		if isBroadcast(current) {
			break
		}

		hosts = append(hosts, current)
	}

	return hosts, nil
}

func isBroadcast(ip netip.Addr) bool {
	return ip.As4()[3] == 0xff
}
