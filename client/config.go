package client

import (
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// TransportProtocol is the at-the-transport-layer protocol the caller's
// Transport implementation uses; the core never inspects it beyond
// plumbing it through Config (spec §6).
type TransportProtocol string

const (
	TransportUDP TransportProtocol = "udp"
	TransportTCP TransportProtocol = "tcp"
)

// Config holds the options spec §6 recognizes, loadable from TOML the way
// the teacher's config/config.go loads its controller configuration.
type Config struct {
	UDPPort                     int               `toml:"udp_port"`
	PropertyMapAcquireTimeoutMS int               `toml:"property_map_acquire_timeout_ms"`
	TransportProtocol           TransportProtocol `toml:"transport_protocol"`
	SelfNodeInstanceCode        byte              `toml:"self_node_instance_code"`
	// SendQueueSize bounds the number of datagrams the send path will
	// allow to back up before a caller observes outbound backpressure.
	// 0 means unbounded (the send mutex alone serializes).
	SendQueueSize int `toml:"send_queue_size"`
	// LogLevel feeds an slog.Leveler for this client's logger. One of
	// "debug", "info", "warn", "error".
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		UDPPort:                     3610,
		PropertyMapAcquireTimeoutMS: 20000,
		TransportProtocol:           TransportUDP,
		SelfNodeInstanceCode:        0x01,
		SendQueueSize:               0,
		LogLevel:                    "info",
	}
}

// LoadConfig decodes a TOML file into a Config seeded with DefaultConfig,
// so a file only needs to override what it cares about.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	_, err := toml.DecodeFile(path, &cfg)
	return cfg, err
}

// PropertyMapAcquireTimeout is the configured timeout as a time.Duration.
func (c Config) PropertyMapAcquireTimeout() time.Duration {
	return time.Duration(c.PropertyMapAcquireTimeoutMS) * time.Millisecond
}

// SlogLevel parses LogLevel into an slog.Leveler for the client's logger,
// defaulting to slog.LevelInfo for an empty or unrecognized value.
func (c Config) SlogLevel() slog.Leveler {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
