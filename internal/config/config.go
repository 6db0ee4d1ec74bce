// Package config loads the bridge server's configuration (spec §6.3
// "Configuration"): bind address, per-action timeouts, size caps, and the
// agent-session liveness knobs of §4.E. Layered precedence — defaults,
// optional config file, environment variables, then CLI flags — in the
// style of NavarrePratt-atari's internal/config/loader.go, rebuilt on
// spf13/viper since the teacher itself has no config package beyond plain
// os.Getenv lookups.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every tunable named in spec §6.3 and §4.E/§4.F.
type Config struct {
	Addr string `mapstructure:"addr"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`

	// Liveness (§4.E).
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
	HealthFailures  int           `mapstructure:"health_failures"`
	StaleThreshold  time.Duration `mapstructure:"stale_threshold"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	WriteQueueDepth int           `mapstructure:"write_queue_depth"`

	// Dispatch (§4.F).
	DefaultActionTimeout      time.Duration `mapstructure:"default_action_timeout"`
	AccessibilityTreeTimeout  time.Duration `mapstructure:"accessibility_tree_timeout"`
	DOMSnapshotTimeout        time.Duration `mapstructure:"dom_snapshot_timeout"`
	MinActionTimeout          time.Duration `mapstructure:"min_action_timeout"`
	MaxActionTimeout          time.Duration `mapstructure:"max_action_timeout"`

	// Size caps (§6.3).
	MaxHTML         int `mapstructure:"max_html"`
	MaxText         int `mapstructure:"max_text"`
	MaxDOMNodes     int `mapstructure:"max_dom_nodes"`
	MaxRequestBody  int `mapstructure:"max_request_body"`
	MaxResponseBody int `mapstructure:"max_response_body"`

	// Pagination (§4.B).
	CursorTTL time.Duration `mapstructure:"cursor_ttl"`
}

// Defaults matches the numeric constants named throughout spec §4.E, §4.F,
// §4.B, and §6.3.
func Defaults() Config {
	return Config{
		Addr:      ":8787",
		LogLevel:  "info",
		LogPretty: false,

		PingInterval:    10 * time.Second,
		PingTimeout:     5 * time.Second,
		HealthFailures:  3,
		StaleThreshold:  30 * time.Second,
		SweepInterval:   30 * time.Second,
		WriteTimeout:    5 * time.Second,
		WriteQueueDepth: 64,

		DefaultActionTimeout:     10 * time.Second,
		AccessibilityTreeTimeout: 30 * time.Second,
		DOMSnapshotTimeout:       20 * time.Second,
		MinActionTimeout:         5 * time.Second,
		MaxActionTimeout:         120 * time.Second,

		MaxHTML:         50_000,
		MaxText:         30_000,
		MaxDOMNodes:     500,
		MaxRequestBody:  10_000,
		MaxResponseBody: 10_000,

		CursorTTL: 5 * time.Minute,
	}
}

// BindFlags registers every config field as a CLI flag on fs, defaulted
// from Defaults(). Call before Load so the caller can parse fs first.
func BindFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("addr", d.Addr, "address to listen on for HTTP and WebSocket traffic")
	fs.String("log-level", d.LogLevel, "zerolog level (debug, info, warn, error)")
	fs.Bool("log-pretty", d.LogPretty, "use a human-readable console log writer")

	fs.Duration("ping-interval", d.PingInterval, "agent liveness ping interval")
	fs.Duration("ping-timeout", d.PingTimeout, "time to wait for a pong before counting a failure")
	fs.Int("health-failures", d.HealthFailures, "consecutive ping failures before eviction")
	fs.Duration("stale-threshold", d.StaleThreshold, "inactivity before a session is forced into evicting")
	fs.Duration("sweep-interval", d.SweepInterval, "stale-session sweep period (cursors are swept on each pagination call)")
	fs.Duration("write-timeout", d.WriteTimeout, "time an enqueued frame may wait before PEER-CONGESTED")
	fs.Int("write-queue-depth", d.WriteQueueDepth, "per-session writer queue depth")

	fs.Duration("default-action-timeout", d.DefaultActionTimeout, "default per-action deadline")
	fs.Duration("accessibility-tree-timeout", d.AccessibilityTreeTimeout, "deadline for get-accessibility-tree")
	fs.Duration("dom-snapshot-timeout", d.DOMSnapshotTimeout, "deadline for get-dom-snapshot")
	fs.Duration("min-action-timeout", d.MinActionTimeout, "lower clamp for a caller-supplied timeout")
	fs.Duration("max-action-timeout", d.MaxActionTimeout, "upper clamp for a caller-supplied timeout")

	fs.Int("max-html", d.MaxHTML, "rune cap for returned HTML")
	fs.Int("max-text", d.MaxText, "rune cap for extracted page text")
	fs.Int("max-dom-nodes", d.MaxDOMNodes, "node cap for DOM snapshots")
	fs.Int("max-request-body", d.MaxRequestBody, "byte cap for included request bodies")
	fs.Int("max-response-body", d.MaxResponseBody, "accepted but not applied: included request and response bodies are both truncated to max-request-body")

	fs.Duration("cursor-ttl", d.CursorTTL, "accepted but not applied: the pagination store uses a fixed 5-minute cursor TTL")
}

// Load resolves configuration from, in increasing precedence: built-in
// defaults, an optional YAML file (--config / DEVTOOLS_BRIDGE_CONFIG),
// DEVTOOLS_BRIDGE_* environment variables, then flags already parsed
// into fs.
func Load(fs *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEVTOOLS_BRIDGE")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	// Flags are hyphenated (--max-action-timeout) while the mapstructure
	// keys are underscored (max_action_timeout); bind each flag under its
	// underscored key so flag and DEVTOOLS_BRIDGE_* env overrides decode.
	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return nil, fmt.Errorf("binding flags: %w", bindErr)
	}

	cfg := Defaults()
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.MinActionTimeout > cfg.MaxActionTimeout {
		return nil, fmt.Errorf("min-action-timeout (%s) exceeds max-action-timeout (%s)", cfg.MinActionTimeout, cfg.MaxActionTimeout)
	}
	return &cfg, nil
}

// ClampActionTimeout applies the [min, max] clamp spec §4.F describes for
// a caller-supplied params.timeout.
func (c *Config) ClampActionTimeout(d time.Duration) time.Duration {
	if d < c.MinActionTimeout {
		return c.MinActionTimeout
	}
	if d > c.MaxActionTimeout {
		return c.MaxActionTimeout
	}
	return d
}

// ActionTimeout returns the default deadline for action, per spec §4.F's
// table (get-accessibility-tree=30s, get-dom-snapshot=20s, else 10s).
func (c *Config) ActionTimeout(action string) time.Duration {
	switch action {
	case "getAccessibilityTree":
		return c.AccessibilityTreeTimeout
	case "getDOMSnapshot":
		return c.DOMSnapshotTimeout
	default:
		return c.DefaultActionTimeout
	}
}
