// Package config provides configuration helpers for go-avatar commands.
package config

import (
	"fmt"
	"os"
)

// Default configuration.
const (
	DefaultServerHost = "localhost"
	DefaultServerPort = "8765"
	DefaultWebPort    = "5001"
)

// ServerHost returns the animation server host from AVATAR_SERVER_HOST.
// Falls back to the default if not set.
func ServerHost() string {
	if host := os.Getenv("AVATAR_SERVER_HOST"); host != "" {
		return host
	}
	return DefaultServerHost
}

// ServerPort returns the animation server port from AVATAR_SERVER_PORT.
func ServerPort() string {
	if port := os.Getenv("AVATAR_SERVER_PORT"); port != "" {
		return port
	}
	return DefaultServerPort
}

// Secure reports whether the connection should use the secure scheme.
// Mirrors the page scheme: AVATAR_SCHEME=https selects wss.
func Secure() bool {
	return os.Getenv("AVATAR_SCHEME") == "https"
}

// ServerURL returns the full WebSocket endpoint URL.
func ServerURL() string {
	scheme := "ws"
	if Secure() {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%s", scheme, ServerHost(), ServerPort())
}

// WebPort returns the local status server port from AVATAR_WEB_PORT.
func WebPort() string {
	if port := os.Getenv("AVATAR_WEB_PORT"); port != "" {
		return port
	}
	return DefaultWebPort
}

// LogLevel returns the log level from AVATAR_LOG_LEVEL, defaulting to info.
func LogLevel() string {
	if level := os.Getenv("AVATAR_LOG_LEVEL"); level != "" {
		return level
	}
	return "info"
}
