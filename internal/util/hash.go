// Package util provides shared utility functions.
package util

import (
	"hash/fnv"
	"net"
)

// ConnectionID computes a 4-byte hash from a connection's local and remote
// addresses. The hash only identifies a transport peer in logs and route
// tables; it does not need to be reversible.
func ConnectionID(local, remote net.Addr) uint32 {
	h := fnv.New32a()
	if local != nil {
		h.Write([]byte(local.String()))
	}
	if remote != nil {
		h.Write([]byte(remote.String()))
	}
	return h.Sum32()
}

// SplitHostPort splits addr into host and numeric port. Malformed input
// yields the whole string as host and port 0.
func SplitHostPort(addr net.Addr) (string, int) {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String(), tcp.Port
	}
	if addr == nil {
		return "", 0
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	p, err := net.LookupPort("tcp", port)
	if err != nil {
		return host, 0
	}
	return host, p
}
