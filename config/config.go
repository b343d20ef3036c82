// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required send settings (channel name), use ValidateSendReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Schedule dispatch modes. Random picks one eligible bot per fire, All fans
// the same message out to every eligible bot, Subset picks SubsetCount random
// eligible bots with distinct messages when the pool allows.
const (
	ModeRandom = "random"
	ModeAll    = "all"
	ModeSubset = "subset"
)

type Config struct {
	// IRC
	IRCAddr string
	IRCTLS  bool

	// Target channel (without leading '#')
	Channel string

	// Optional startup inputs
	BotsFile     string
	MessagesFile string
	ProbeOnStart bool

	// Scheduler
	MinIntervalSec uint
	MaxIntervalSec uint
	ScheduleMode   string
	SubsetCount    int

	// Multi-bot delivery
	Simultaneous bool
	MinDelaySec  uint
	MaxDelaySec  uint

	// HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It doesn't fail if the
// channel is missing; use ValidateSendReady() when a dispatch requires one.
// Interval/delay defaults mirror the desktop tool this service replaces.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.IRCAddr = os.Getenv("IRC_ADDR")
	if cfg.IRCAddr == "" {
		cfg.IRCAddr = "irc.chat.twitch.tv:6667"
	}
	cfg.IRCTLS = os.Getenv("IRC_TLS") == "1"

	cfg.Channel = strings.TrimPrefix(strings.TrimSpace(os.Getenv("TWITCH_CHANNEL")), "#")

	cfg.BotsFile = os.Getenv("BOTS_FILE")
	cfg.MessagesFile = os.Getenv("MESSAGES_FILE")
	cfg.ProbeOnStart = os.Getenv("PROBE_ON_START") == "1"

	cfg.MinIntervalSec = getEnvUint("SCHEDULE_MIN_INTERVAL", 30)
	cfg.MaxIntervalSec = getEnvUint("SCHEDULE_MAX_INTERVAL", 120)

	cfg.ScheduleMode = strings.ToLower(os.Getenv("SCHEDULE_MODE"))
	switch cfg.ScheduleMode {
	case ModeRandom, ModeAll, ModeSubset:
	case "":
		cfg.ScheduleMode = ModeRandom
	default:
		return nil, fmt.Errorf("invalid SCHEDULE_MODE %q (want random|all|subset)", cfg.ScheduleMode)
	}
	cfg.SubsetCount = int(getEnvUint("SCHEDULE_SUBSET_COUNT", 3))

	cfg.Simultaneous = os.Getenv("SEND_SIMULTANEOUS") != "0"
	cfg.MinDelaySec = getEnvUint("SEND_MIN_DELAY", 1)
	cfg.MaxDelaySec = getEnvUint("SEND_MAX_DELAY", 3)

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// ValidateSendReady checks required fields before any message can be dispatched.
func (c *Config) ValidateSendReady() error {
	if c.Channel == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CHANNEL")
	}
	return nil
}

// getEnvUint returns an unsigned integer environment variable value or default
// if not set or invalid.
func getEnvUint(key string, defaultVal uint) uint {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.ParseUint(s, 10, 32); err == nil {
			return uint(n)
		}
	}
	return defaultVal
}
