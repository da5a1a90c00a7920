package model

import (
	"net"
	"strings"
)

const defaultPort = "27017"

// Addr is the location of a server. It is a host:port pair for tcp
// addresses and a path for unix domain sockets.
type Addr string

// Network is the network protocol for this address, either "tcp" or "unix".
func (a Addr) Network() string {
	if strings.HasSuffix(string(a), "sock") {
		return "unix"
	}
	return "tcp"
}

func (a Addr) String() string {
	return string(a)
}

// Canonicalize lowercases the address and ensures tcp addresses
// carry a port.
func (a Addr) Canonicalize() Addr {
	s := strings.ToLower(string(a))
	if !strings.HasSuffix(s, "sock") {
		_, _, err := net.SplitHostPort(s)
		if err != nil && strings.Contains(err.Error(), "missing port in address") {
			s += ":" + defaultPort
		}
	}

	return Addr(s)
}
