// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

package config

import (
	"time"
)

// Config is the root configuration for Rotavault.
//
// The engine consumes this as an already-validated value; it never parses
// files or flags itself.
type Config struct {
	// SourceDir is the directory tree to back up.
	SourceDir string `koanf:"source_dir" validate:"required"`

	// StoreDir is the snapshot store root. Generation directories, tier
	// stamps, and the in-progress marker all live directly under it.
	StoreDir string `koanf:"store_dir" validate:"required"`

	// CreateStore creates StoreDir on first run instead of aborting when
	// it is missing.
	CreateStore bool `koanf:"create_store"`

	// Excludes are paths relative to SourceDir that are skipped during
	// mirroring. The store itself is excluded automatically when it is
	// nested inside the source.
	Excludes []string `koanf:"excludes"`

	// Tiers is the ordered retention tier list, fastest first. The first
	// tier owns the live mirror; an interval of 0 on the first tier means
	// a new generation is sealed on every run.
	Tiers []TierConfig `koanf:"tiers" validate:"min=1,dive"`

	// RecoveryGrace is the minimum age of an in-progress marker before a
	// new run treats it as a crashed run and recovers. A younger marker is
	// assumed to belong to a live run and aborts the invocation.
	RecoveryGrace time.Duration `koanf:"recovery_grace"`

	Mirror  MirrorConfig  `koanf:"mirror"`
	Janitor JanitorConfig `koanf:"janitor"`
	Daemon  DaemonConfig  `koanf:"daemon"`
	Logging LoggingConfig `koanf:"logging"`
}

// TierConfig describes one retention tier.
type TierConfig struct {
	// Name is the unique tier name; it prefixes generation directories
	// (<name>.<index>) and the stamp file (<name>.stamp).
	Name string `koanf:"name" validate:"required"`

	// Interval is the minimum time between rotations of this tier.
	Interval time.Duration `koanf:"interval" validate:"min=0"`

	// Retain is the maximum number of sealed generations kept.
	Retain int `koanf:"retain" validate:"min=1"`
}

// MirrorConfig configures the external tree-mirroring tool.
type MirrorConfig struct {
	// Command is the mirroring binary. Only rsync-compatible flag
	// semantics are supported.
	Command string `koanf:"command" validate:"required"`

	// ExtraArgs are appended verbatim to the mirror invocation.
	ExtraArgs []string `koanf:"extra_args"`

	// Timeout bounds a single mirror invocation. 0 means no timeout.
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`
}

// JanitorConfig configures asynchronous trash deletion.
type JanitorConfig struct {
	// QueueSize is the trash queue capacity. Enqueueing beyond it falls
	// back to a background goroutine so rotation never blocks.
	QueueSize int `koanf:"queue_size" validate:"min=1"`

	// DeletesPerMinute paces recursive deletes to limit IO pressure.
	// 0 disables pacing.
	DeletesPerMinute int `koanf:"deletes_per_minute" validate:"min=0"`
}

// DaemonConfig configures the optional long-running mode.
type DaemonConfig struct {
	// Enabled switches from one-shot to supervised daemon mode.
	Enabled bool `koanf:"enabled"`

	// Interval is the cadence between engine runs in daemon mode.
	Interval time.Duration `koanf:"interval"`

	// ListenAddr serves /healthz and /metrics in daemon mode.
	ListenAddr string `koanf:"listen_addr"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		SourceDir:     "",
		StoreDir:      "",
		CreateStore:   false,
		Excludes:      nil,
		RecoveryGrace: 12 * time.Hour,
		Tiers: []TierConfig{
			{Name: "day", Interval: 24 * time.Hour, Retain: 6},
			{Name: "week", Interval: 7 * 24 * time.Hour, Retain: 3},
			{Name: "month", Interval: 28 * 24 * time.Hour, Retain: 2},
		},
		Mirror: MirrorConfig{
			Command:   "rsync",
			ExtraArgs: nil,
			Timeout:   0,
		},
		Janitor: JanitorConfig{
			QueueSize:        16,
			DeletesPerMinute: 0,
		},
		Daemon: DaemonConfig{
			Enabled:    false,
			Interval:   1 * time.Hour,
			ListenAddr: "127.0.0.1:9433",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
