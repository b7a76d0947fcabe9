/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package agent watches a host network interface and reports its public IPv6
// address to the controller whenever it changes.
package agent

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// ErrNoAddress is returned when an interface carries no usable global IPv6 address.
var ErrNoAddress = errors.New("no usable ipv6 address")

// ErrLoopbackInterface is returned when asked to watch the loopback interface.
var ErrLoopbackInterface = errors.New("cannot watch the loopback interface")

// InterfaceAddrs returns the IP addresses configured on the named interface.
func InterfaceAddrs(name string) ([]netip.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", name, err)
	}
	if iface.Flags&net.FlagLoopback != 0 {
		return nil, fmt.Errorf("interface %s: %w", name, ErrLoopbackInterface)
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("addresses of %s: %w", name, err)
	}

	out := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip, ok := netip.AddrFromSlice(ipnet.IP); ok {
			out = append(out, ip.Unmap())
		}
	}
	return out, nil
}

// SelectAddress picks the address to publish: a global IPv6 address, preferring
// temporary (randomised) addresses over EUI-64 ones derived from the MAC. Order
// within each class is kept.
func SelectAddress(addrs []netip.Addr) (netip.Addr, error) {
	var stable netip.Addr
	for _, a := range addrs {
		a = a.WithZone("")
		if !a.Is6() || a.Is4In6() || a.IsLoopback() || a.IsLinkLocalUnicast() ||
			a.IsMulticast() || a.IsUnspecified() {
			continue
		}
		if !IsEUI64(a) {
			return a, nil
		}
		if !stable.IsValid() {
			stable = a
		}
	}
	if stable.IsValid() {
		return stable, nil
	}
	return netip.Addr{}, ErrNoAddress
}

// IsEUI64 reports whether the interface identifier of a carries the ff:fe marker
// of a MAC-derived address.
func IsEUI64(a netip.Addr) bool {
	b := a.As16()
	return b[11] == 0xff && b[12] == 0xfe
}
