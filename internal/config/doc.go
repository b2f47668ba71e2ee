// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

// Package config loads and validates Rotavault configuration.
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//
//   - ROTAVAULT_* environment variables
//   - Config file (rotavault.yaml)
//   - Built-in defaults
//
// The tier table is an ordered list of immutable tier values, fastest tier
// first. Example:
//
//	source_dir: /home
//	store_dir: /backup
//	tiers:
//	  - name: day
//	    interval: 24h
//	    retain: 6
//	  - name: week
//	    interval: 168h
//	    retain: 3
//	  - name: month
//	    interval: 672h
//	    retain: 2
//
// Validation failures wrap ErrConfiguration and abort the process before
// any store mutation.
package config
