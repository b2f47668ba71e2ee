// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

package snapshot

import (
	"github.com/rotavault/rotavault/internal/logging"
	"github.com/rotavault/rotavault/internal/metrics"
)

// TrashCollector disposes of trash directories off the rotation path.
// Implementations must never block the caller; a failed delete frees disk
// space late, nothing else.
type TrashCollector interface {
	Collect(path string)
}

// Shifter renumbers generations within one tier to evict the oldest and
// free slot 1 for the promoter.
type Shifter struct {
	store *Store
	trash TrashCollector
}

// NewShifter creates a shifter over the store.
func NewShifter(store *Store, trash TrashCollector) *Shifter {
	return &Shifter{store: store, trash: trash}
}

// Shift moves every populated generation of the tier up by one index.
// A generation at index Retain is evicted first: to the tier's reserved
// reuse slot when reuse is set (the fastest tier recycles it as the next
// mirror baseline), otherwise to a unique trash name with deletion
// scheduled in the background.
//
// Calling Shift when index 1 is absent is a no-op; missing intermediate
// indices are skipped silently (sparse tiers are legal).
func (sh *Shifter) Shift(t Tier, reuse bool) error {
	if !sh.store.HasGeneration(t, 1) {
		return nil
	}

	if sh.store.HasGeneration(t, t.Retain) {
		if err := sh.evict(t, reuse); err != nil {
			return err
		}
	}

	for index := t.Retain - 1; index >= 1; index-- {
		if !sh.store.HasGeneration(t, index) {
			continue
		}
		from := sh.store.GenerationPath(t, index)
		to := sh.store.GenerationPath(t, index+1)
		if err := sh.store.Rename(from, to); err != nil {
			return err
		}
	}

	logging.Debug().Str("tier", t.Name).Bool("reuse", reuse).Msg("generations shifted")
	return nil
}

// evict moves the generation at index Retain out of the way.
func (sh *Shifter) evict(t Tier, reuse bool) error {
	from := sh.store.GenerationPath(t, t.Retain)

	if reuse {
		reusePath := sh.store.ReusePath(t)
		if sh.store.HasReuse(t) {
			// A stale reuse directory from an earlier run loses its
			// slot to the fresher eviction.
			stale := sh.store.NewTrashPath(t, t.Retain)
			if err := sh.store.Rename(reusePath, stale); err != nil {
				return err
			}
			sh.trash.Collect(stale)
		}
		if err := sh.store.Rename(from, reusePath); err != nil {
			return err
		}
		metrics.Evictions.WithLabelValues(t.Name).Inc()
		return nil
	}

	trashPath := sh.store.NewTrashPath(t, t.Retain)
	if err := sh.store.Rename(from, trashPath); err != nil {
		return err
	}
	sh.trash.Collect(trashPath)
	metrics.Evictions.WithLabelValues(t.Name).Inc()
	return nil
}
