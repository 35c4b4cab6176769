// Package config loads sipbridge's command-line and environment configuration.
package config

import (
	"flag"
	"fmt"
	"net"
	"os"
)

// Config holds the engine's startup configuration (spec.md §6 CLI).
type Config struct {
	DBPath         string
	LineID         int // 0 means "all enabled lines"
	AllLines       bool
	BindIP         string
	LogLevel       string
	SilenceWAVPath string // optional; empty means fall back to 0xFF fill
}

// Load parses CLI flags and applies environment-variable overrides.
// Returns an error on bad flags; the caller exits 1 per spec.md §7.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("sipbridge", flag.ContinueOnError)

	cfg := &Config{}
	var lineID int
	fs.StringVar(&cfg.DBPath, "db", "", "path to the external store database")
	fs.IntVar(&lineID, "line-id", 0, "operate on a single SIP line (default: all enabled lines)")
	fs.StringVar(&cfg.BindIP, "bind-ip", "", "local interface IP to bind SIP/RTP sockets on (default: auto-detect)")
	fs.StringVar(&cfg.LogLevel, "loglevel", "info", "log level: debug, info, warn, error")
	fs.StringVar(&cfg.SilenceWAVPath, "silence-wav", "", "path to a mono 8kHz 8-bit mu-law RIFF/WAVE file played as outbound silence (default: 0xFF fill)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.DBPath == "" {
		if v := os.Getenv("SIP_DB_PATH"); v != "" {
			cfg.DBPath = v
		}
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("--db is required")
	}

	if lineID == 0 {
		cfg.AllLines = true
	} else {
		cfg.LineID = lineID
	}

	if cfg.BindIP == "" {
		if v := os.Getenv("SIP_BIND_IP"); v != "" {
			cfg.BindIP = v
		} else {
			cfg.BindIP = primaryInterfaceIP()
		}
	}

	if v := os.Getenv("SIP_LOGLEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if cfg.SilenceWAVPath == "" {
		if v := os.Getenv("SIP_SILENCE_WAV"); v != "" {
			cfg.SilenceWAVPath = v
		}
	}

	return cfg, nil
}

// primaryInterfaceIP detects the primary non-loopback IPv4 interface address.
func primaryInterfaceIP() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "127.0.0.1"
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}

	return "127.0.0.1"
}
