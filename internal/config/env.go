package config

import (
	"fmt"
	"os"
	"strings"
)

// Default daemon endpoint.
const (
	DefaultDaemonHost = "localhost"
	DefaultDaemonPort = "8790"
)

// DaemonAddr returns the daemon address from the SYNCVOICE_ADDR env var.
// Falls back to the provided default if not set.
func DaemonAddr(defaultAddr string) string {
	if addr := os.Getenv("SYNCVOICE_ADDR"); addr != "" {
		return addr
	}
	if defaultAddr != "" {
		return defaultAddr
	}
	return DefaultDaemonHost + ":" + DefaultDaemonPort
}

// DaemonAPIURL returns the daemon HTTP API URL.
func DaemonAPIURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = DefaultDaemonHost + addr
	}
	return fmt.Sprintf("http://%s", addr)
}

// DaemonWSURL returns the daemon websocket base URL.
func DaemonWSURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = DefaultDaemonHost + addr
	}
	return fmt.Sprintf("ws://%s", addr)
}
