package singleinstance

import (
	"os"
	"strconv"
)

// Residents bind the first port of the range; clients PING every port in it,
// so a resident started with a different start port is still found.
const (
	defaultPortStart = 49560
	defaultPortEnd   = 49580

	PortStartEnvVar = "SCREEN_GRAB_PORT_START"
	PortEndEnvVar   = "SCREEN_GRAB_PORT_END"

	minPort = 1024
	maxPort = 65535
)

func envPort(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// PortRange returns the inclusive loopback port range, kept inside the
// unprivileged ports. A reversed range is swapped.
func PortRange() (start, end int) {
	start = max(envPort(PortStartEnvVar, defaultPortStart), minPort)
	end = min(envPort(PortEndEnvVar, defaultPortEnd), maxPort)
	if end < start {
		start, end = end, start
	}
	return start, end
}
