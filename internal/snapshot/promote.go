// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

package snapshot

import (
	"github.com/rotavault/rotavault/internal/logging"
	"github.com/rotavault/rotavault/internal/metrics"
)

// Promoter moves the oldest generation of a faster tier into slot 1 of
// the tier above it. A generation is handed up exactly once, by rename;
// content is never duplicated across tiers.
type Promoter struct {
	store *Store
	trash TrashCollector
}

// NewPromoter creates a promoter over the store.
func NewPromoter(store *Store, trash TrashCollector) *Promoter {
	return &Promoter{store: store, trash: trash}
}

// Promote renames the highest-index generation of source into tier slot 1.
// Promotion is skipped (false, nil) when the source tier is empty or only
// holds its live generation at index 0. An occupied target slot is evicted
// first; promotion never merges directories.
func (p *Promoter) Promote(tier, source Tier) (bool, error) {
	oldest, ok, err := p.store.OldestGeneration(source)
	if err != nil {
		return false, err
	}
	if !ok || oldest == 0 {
		// Nothing eligible: the source tier has not rotated past its
		// live generation yet.
		return false, nil
	}

	if p.store.HasGeneration(tier, 1) {
		stale := p.store.NewTrashPath(tier, 1)
		if err := p.store.Rename(p.store.GenerationPath(tier, 1), stale); err != nil {
			return false, err
		}
		p.trash.Collect(stale)
		metrics.Evictions.WithLabelValues(tier.Name).Inc()
	}

	from := p.store.GenerationPath(source, oldest)
	to := p.store.GenerationPath(tier, 1)
	if err := p.store.Rename(from, to); err != nil {
		return false, err
	}

	logging.Info().
		Str("from", generationDirName(source, oldest)).
		Str("to", generationDirName(tier, 1)).
		Msg("generation promoted")
	metrics.Promotions.WithLabelValues(tier.Name).Inc()
	return true, nil
}
