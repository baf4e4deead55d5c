package scpi

import (
	"errors"
	"net"
	"net/netip"
	"strings"
)

var ErrInvalidAddress = errors.New("invalid IP address")

// ParseAddress accepts a literal IP:PORT pair, host names are rejected.
func ParseAddress(address string) (netip.AddrPort, error) {
	addr, err := netip.ParseAddrPort(strings.TrimSpace(address))
	if err != nil {
		return netip.AddrPort{}, ErrInvalidAddress
	}
	return addr, nil
}

// JoinAddress combines separately entered IP and port fields.
func JoinAddress(ip, port string) string {
	return net.JoinHostPort(strings.TrimSpace(ip), strings.TrimSpace(port))
}
