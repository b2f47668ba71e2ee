// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

package snapshot

import (
	"time"

	"github.com/rotavault/rotavault/internal/logging"
)

// Gate evaluates per-tier timestamp markers against the run's start time.
// The marker file write is its only mutation; generation directories are
// never touched here.
type Gate struct {
	store *Store
	now   time.Time
}

// NewGate creates a gate anchored at the run's start time. Using one
// fixed time for the whole run keeps all tiers' decisions consistent.
func NewGate(store *Store, runStart time.Time) *Gate {
	return &Gate{store: store, now: runStart}
}

// CheckAndAdvance reports whether the tier's interval has elapsed.
//
// An absent or unreadable stamp seeds the current run's start time and
// reports not due: the first-ever evaluation establishes the baseline
// without forcing an immediate rotation. When due, the stamp advances to
// the highest grid point stamp+k*interval at or before now. Anchoring at
// the original stamp rather than "now" keeps repeated late invocations
// from accumulating more than one interval of drift.
func (g *Gate) CheckAndAdvance(t Tier) (bool, error) {
	stamp, err := g.store.ReadStamp(t)
	if err != nil {
		logging.Debug().Str("tier", t.Name).Err(err).Msg("seeding tier stamp")
		if werr := g.store.WriteStamp(t, g.now); werr != nil {
			return false, werr
		}
		return false, nil
	}

	// Interval 0 is the continuous fastest tier: due on every run once
	// the baseline exists.
	if t.Interval <= 0 {
		if err := g.store.WriteStamp(t, g.now); err != nil {
			return false, err
		}
		return true, nil
	}

	elapsed := g.now.Sub(stamp)
	if elapsed < t.Interval {
		return false, nil
	}

	intervals := elapsed / t.Interval
	advanced := stamp.Add(intervals * t.Interval)
	if err := g.store.WriteStamp(t, advanced); err != nil {
		return false, err
	}

	logging.Debug().
		Str("tier", t.Name).
		Time("stamp", advanced).
		Dur("elapsed", elapsed).
		Msg("tier due for rotation")
	return true, nil
}

// ResetStamp forces a tier's stamp to the run's start time. Recovery uses
// this so the next scheduled check starts from a clean baseline.
func (g *Gate) ResetStamp(t Tier) error {
	return g.store.WriteStamp(t, g.now)
}
