// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"rotavault.yaml",
	"rotavault.yml",
	"/etc/rotavault/rotavault.yaml",
	"/etc/rotavault/rotavault.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "ROTAVAULT_CONFIG"

// envPrefix is stripped from environment variables before mapping them to
// koanf paths.
const envPrefix = "ROTAVAULT_"

// envGroups are top-level config sections; an environment variable whose
// first segment matches a group maps to a nested key
// (ROTAVAULT_MIRROR_COMMAND -> mirror.command).
var envGroups = []string{"mirror", "janitor", "daemon", "logging"}

// Load loads configuration with layered sources, highest priority last:
//
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. ROTAVAULT_* environment variables
func Load() (*Config, error) {
	return loadFrom(findConfigFile())
}

// LoadFile loads configuration from an explicit config file path.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return loadFrom(path)
}

func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envTransform maps ROTAVAULT_* variables to koanf paths.
//
//	ROTAVAULT_STORE_DIR       -> store_dir
//	ROTAVAULT_MIRROR_COMMAND  -> mirror.command
//	ROTAVAULT_DAEMON_ENABLED  -> daemon.enabled
func envTransform(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, group := range envGroups {
		if strings.HasPrefix(key, group+"_") {
			return group + "." + strings.TrimPrefix(key, group+"_")
		}
	}
	return key
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
