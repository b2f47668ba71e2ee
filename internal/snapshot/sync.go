// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotavault/rotavault/internal/logging"
	"github.com/rotavault/rotavault/internal/metrics"
	"github.com/rotavault/rotavault/internal/mirror"
)

// SealMethod names how generation 0 was preserved before mirroring.
const (
	SealClone = "clone"
	SealReuse = "reuse"
)

// SyncResult summarizes one synchronizer pass for the run report.
type SyncResult struct {
	Sealed     bool   `json:"sealed"`
	SealMethod string `json:"seal_method,omitempty"`
	Baseline   string `json:"baseline,omitempty"`
	MirrorExit int    `json:"mirror_exit"`
}

// Synchronizer refreshes the fastest tier's live generation from the
// source tree. Before mirroring it seals the previous live generation
// into slot 1 so rotation always hands a stable directory upward, then
// brackets the mirror with the in-progress marker.
type Synchronizer struct {
	store    *Store
	tier     Tier
	source   string
	excludes []string
	mirrorer mirror.Mirrorer
	cloner   mirror.Cloner
	trash    TrashCollector

	// sameFS decides hardlink eligibility between two roots. A field
	// rather than a hard call so baseline selection is testable on a
	// single filesystem.
	sameFS func(sourceRoot, storeRoot string) bool
}

// NewSynchronizer creates a synchronizer for the fastest tier.
func NewSynchronizer(store *Store, fastest Tier, source string, excludes []string,
	m mirror.Mirrorer, c mirror.Cloner, trash TrashCollector) *Synchronizer {
	return &Synchronizer{
		store:    store,
		tier:     fastest,
		source:   source,
		excludes: excludes,
		mirrorer: m,
		cloner:   c,
		trash:    trash,
		sameFS:   mirror.SameFilesystem,
	}
}

// Run performs one synchronization pass: adopt or seal the live
// generation as needed, then mirror the source into it. The at time is
// recorded in the in-progress marker.
//
// The marker is created immediately before the mirror and removed after
// it returns. On cancellation the marker stays in place so the next run
// takes the recovery path. A non-zero mirror exit is reported in the
// result, not as an error.
func (sy *Synchronizer) Run(ctx context.Context, at time.Time) (SyncResult, error) {
	return sy.run(ctx, at, true)
}

// Resync is the recovery entry point: the live generation's content is
// suspect after a crashed mirror, so it is refreshed in place and never
// sealed upward.
func (sy *Synchronizer) Resync(ctx context.Context, at time.Time) (SyncResult, error) {
	return sy.run(ctx, at, false)
}

func (sy *Synchronizer) run(ctx context.Context, at time.Time, allowSeal bool) (SyncResult, error) {
	var res SyncResult

	if !sy.store.HasGeneration(sy.tier, 0) && sy.store.HasReuse(sy.tier) {
		// A recycled eviction becomes the new live generation; the
		// mirror only has to apply the delta since it was current.
		if err := sy.store.Rename(sy.store.ReusePath(sy.tier), sy.store.GenerationPath(sy.tier, 0)); err != nil {
			return res, err
		}
		logging.Debug().Str("tier", sy.tier.Name).Msg("adopted recycled generation as live")
	}

	if allowSeal && sy.store.HasGeneration(sy.tier, 0) && !sy.store.HasGeneration(sy.tier, 1) {
		method, err := sy.seal(ctx)
		if err != nil {
			return res, err
		}
		res.Sealed = true
		res.SealMethod = method
		metrics.SealsTotal.WithLabelValues(method).Inc()
	}

	res.Baseline = sy.baseline()

	if err := sy.store.CreateMarker(at); err != nil {
		return res, err
	}

	start := time.Now()
	exit, err := sy.mirrorer.Mirror(ctx, mirror.Request{
		SourceRoot:   sy.source,
		DestRoot:     sy.store.GenerationPath(sy.tier, 0),
		Excludes:     sy.mirrorExcludes(),
		LinkBaseline: res.Baseline,
	})
	if err != nil {
		// Launch failure or cancellation: the live generation may be
		// half-written, so the marker stays for the next run to find.
		return res, fmt.Errorf("mirror: %w", err)
	}
	metrics.ObserveMirror(exit, time.Since(start))
	res.MirrorExit = exit

	if exit != 0 {
		logging.Warn().Int("exit_status", exit).Msg("mirror tool reported errors")
	}

	if err := sy.store.RemoveMarker(); err != nil {
		return res, err
	}
	return res, nil
}

// seal preserves the live generation into slot 1. With a reuse directory
// available the whole operation is two renames; otherwise the live tree
// is hardlink-cloned, which shares file content but duplicates the
// directory skeleton.
func (sy *Synchronizer) seal(ctx context.Context) (string, error) {
	live := sy.store.GenerationPath(sy.tier, 0)
	sealed := sy.store.GenerationPath(sy.tier, 1)

	if sy.store.HasReuse(sy.tier) {
		if err := sy.store.Rename(live, sealed); err != nil {
			return "", err
		}
		if err := sy.store.Rename(sy.store.ReusePath(sy.tier), live); err != nil {
			return "", err
		}
		logging.Info().Str("tier", sy.tier.Name).Msg("live generation sealed via recycled directory")
		return SealReuse, nil
	}

	// The clone is staged under a trash name and published into slot 1
	// with a single rename. A partial clone, whether from an error or a
	// kill mid-walk, is therefore never visible as a sealed generation:
	// it is only ever sweepable trash.
	staging := sy.store.NewTrashPath(sy.tier, 1)
	if err := sy.cloner.CloneTree(ctx, live, staging); err != nil {
		sy.trash.Collect(staging)
		return "", fmt.Errorf("seal %s: %w", generationDirName(sy.tier, 1), err)
	}
	if err := sy.store.Rename(staging, sealed); err != nil {
		sy.trash.Collect(staging)
		return "", err
	}
	logging.Info().Str("tier", sy.tier.Name).Msg("live generation sealed via hardlink clone")
	return SealClone, nil
}

// baseline picks the hardlink baseline for the mirror. Same-filesystem
// stores link straight against the source; cross-device stores fall back
// to the sealed previous generation when one exists.
func (sy *Synchronizer) baseline() string {
	if sy.sameFS(sy.source, sy.store.Root()) {
		return sy.source
	}
	if sy.store.HasGeneration(sy.tier, 1) {
		return sy.store.GenerationPath(sy.tier, 1)
	}
	return ""
}

// mirrorExcludes extends the configured excludes with the store's own
// path when the store lives inside the source tree, so the mirror never
// recurses into its own output.
func (sy *Synchronizer) mirrorExcludes() []string {
	rel, err := filepath.Rel(sy.source, sy.store.Root())
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) || rel == ".." {
		return sy.excludes
	}
	out := make([]string, 0, len(sy.excludes)+1)
	out = append(out, sy.excludes...)
	out = append(out, filepath.ToSlash(rel))
	return out
}
