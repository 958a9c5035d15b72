// Package netguard decides whether a network destination is safe for the
// service (or a client acting on service-issued data) to contact.
package netguard

import (
	"fmt"
	"net/netip"
)

// Class is the verdict for a single address. The zero value is ClassPrivate.
type Class int

const (
	ClassPrivate Class = iota
	ClassPublic
)

func (c Class) String() string {
	if c == ClassPublic {
		return "public"
	}
	return "private"
}

var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("ff00::/8"),
}

var (
	// nat64Prefix and ipv4CompatPrefix carry an IPv4 address in their low 32 bits.
	nat64Prefix      = netip.MustParsePrefix("64:ff9b::/96")
	ipv4CompatPrefix = netip.MustParsePrefix("::/96")
	// sixToFourPrefix carries an IPv4 address in bits 16-47.
	sixToFourPrefix = netip.MustParsePrefix("2002::/16")
)

// Classify reports whether addr lies in private or reserved address space.
// IPv4-mapped IPv6 addresses are unwrapped first so ::ffff:127.0.0.1 is
// judged as 127.0.0.1. Invalid addresses are private.
func Classify(addr netip.Addr) Class {
	if !addr.IsValid() {
		return ClassPrivate
	}
	addr = addr.Unmap().WithZone("")

	if embedded, ok := embeddedIPv4(addr); ok {
		return Classify(embedded)
	}

	for _, prefix := range reservedPrefixes {
		if prefix.Contains(addr) {
			return ClassPrivate
		}
	}
	return ClassPublic
}

// embeddedIPv4 extracts the IPv4 address tunnelled inside a NAT64,
// IPv4-compatible or 6to4 IPv6 address.
func embeddedIPv4(addr netip.Addr) (netip.Addr, bool) {
	if !addr.Is6() {
		return netip.Addr{}, false
	}
	raw := addr.As16()
	switch {
	case nat64Prefix.Contains(addr), ipv4CompatPrefix.Contains(addr):
		return netip.AddrFrom4([4]byte{raw[12], raw[13], raw[14], raw[15]}), true
	case sixToFourPrefix.Contains(addr):
		return netip.AddrFrom4([4]byte{raw[2], raw[3], raw[4], raw[5]}), true
	}
	return netip.Addr{}, false
}

// ClassifyString parses s and classifies it.
func ClassifyString(s string) (Class, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return ClassPrivate, fmt.Errorf("parse address %q: %w", s, err)
	}
	return Classify(addr), nil
}

// IsPublic is shorthand for Classify(addr) == ClassPublic.
func IsPublic(addr netip.Addr) bool {
	return Classify(addr) == ClassPublic
}
