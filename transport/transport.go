package transport

import (
	"context"
	"net"
	"strconv"
	"strings"
)

const (
	// MinPort is 0 so that listeners may ask for an ephemeral port
	MinPort = 0
	MaxPort = 65535
)

// Server defines the interface for transport servers
type Server interface {
	// Run starts the server and blocks until it stops
	Run() error
	// Shutdown gracefully shuts down the server
	Shutdown(context.Context) error
}

// ValidateAddress reports whether addr is a listenable host:port
func ValidateAddress(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return false
	}

	if host != "" && !isValidHost(host) {
		return false
	}

	p, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return p >= MinPort && p <= MaxPort
}

func isValidHost(host string) bool {
	if net.ParseIP(host) != nil {
		return true
	}
	if len(host) > 253 || strings.HasPrefix(host, "-") || strings.HasSuffix(host, "-") {
		return false
	}
	for _, r := range host {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-') {
			return false
		}
	}
	return true
}
