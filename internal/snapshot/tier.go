// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

package snapshot

import (
	"time"
)

// Tier is one immutable retention level. Tiers are passed around as an
// ordered slice, fastest first; list position is the tier's rank.
type Tier struct {
	// Name prefixes the tier's generation directories and stamp file.
	Name string

	// Interval is the minimum time between rotations. 0 on the fastest
	// tier means a new generation is sealed on every run.
	Interval time.Duration

	// Retain is the maximum number of sealed generations kept.
	Retain int
}

// Generation identifies one retained snapshot directory within a tier.
type Generation struct {
	Tier  Tier
	Index int
}

// DirName returns the generation's directory name within the store.
func (g Generation) DirName() string {
	return generationDirName(g.Tier, g.Index)
}
