// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// ErrConfiguration marks a malformed configuration. It is fatal and always
// reported before any store mutation.
var ErrConfiguration = errors.New("configuration error")

// tierNameRe restricts tier names so that <name>.<index> directory names
// and <name>.stamp files parse unambiguously.
var tierNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

var validate = validator.New()

// Validate checks structural and cross-field constraints. All violations
// wrap ErrConfiguration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrConfiguration, err)
	}

	checks := []func() error{
		c.validatePaths,
		c.validateTiers,
		c.validateExcludes,
		c.validateDaemon,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return fmt.Errorf("%w: %s", ErrConfiguration, err)
		}
	}
	return nil
}

// validatePaths requires absolute, distinct source and store roots.
func (c *Config) validatePaths() error {
	if !filepath.IsAbs(c.SourceDir) {
		return fmt.Errorf("source_dir must be an absolute path, got %q", c.SourceDir)
	}
	if !filepath.IsAbs(c.StoreDir) {
		return fmt.Errorf("store_dir must be an absolute path, got %q", c.StoreDir)
	}
	if filepath.Clean(c.SourceDir) == filepath.Clean(c.StoreDir) {
		return fmt.Errorf("store_dir must differ from source_dir")
	}
	return nil
}

// validateTiers requires unique well-formed names and strictly ascending
// intervals. The fastest tier may have interval 0 (sealed every run); every
// gated tier needs a positive interval above its predecessor.
func (c *Config) validateTiers() error {
	seen := make(map[string]bool, len(c.Tiers))
	for i, t := range c.Tiers {
		if !tierNameRe.MatchString(t.Name) {
			return fmt.Errorf("tier %d: name %q must match %s", i, t.Name, tierNameRe)
		}
		if seen[t.Name] {
			return fmt.Errorf("tier %d: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = true

		if i == 0 {
			continue
		}
		if t.Interval <= 0 {
			return fmt.Errorf("tier %q: gated tiers need a positive interval", t.Name)
		}
		if t.Interval <= c.Tiers[i-1].Interval {
			return fmt.Errorf("tier %q: interval %s not above previous tier's %s",
				t.Name, t.Interval, c.Tiers[i-1].Interval)
		}
	}
	return nil
}

// validateExcludes requires store-relative paths that stay inside the
// source root.
func (c *Config) validateExcludes() error {
	for _, e := range c.Excludes {
		if filepath.IsAbs(e) {
			return fmt.Errorf("exclude %q must be relative to source_dir", e)
		}
		clean := filepath.Clean(e)
		if clean == ".." || len(clean) >= 3 && clean[:3] == ".."+string(filepath.Separator) {
			return fmt.Errorf("exclude %q escapes source_dir", e)
		}
	}
	return nil
}

// validateDaemon requires a run cadence and listen address in daemon mode.
func (c *Config) validateDaemon() error {
	if !c.Daemon.Enabled {
		return nil
	}
	if c.Daemon.Interval <= 0 {
		return fmt.Errorf("daemon.interval must be positive when daemon mode is enabled")
	}
	if c.Daemon.ListenAddr == "" {
		return fmt.Errorf("daemon.listen_addr is required when daemon mode is enabled")
	}
	return nil
}
