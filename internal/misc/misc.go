// Package misc is a placeholder package for internal utilities that are shared across packages, but do not have any shared characteristics.
package misc

import (
	"math"
	"math/rand/v2"
	"net/netip"
)

// RandomPort returns a random port number from 1024 - 65535
func RandomPort() uint16 {
	return uint16(1024 + rand.Uint32N((math.MaxUint16 - 1024)))
}

// SameHost reports whether a and b refer to the same IP, treating IPv4-mapped IPv6 addresses as their IPv4 form.
func SameHost(a, b netip.Addr) bool {
	return a.Unmap() == b.Unmap()
}
