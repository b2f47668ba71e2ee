// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rotavault/rotavault/internal/logging"
	"github.com/rotavault/rotavault/internal/metrics"
	"github.com/rotavault/rotavault/internal/mirror"
)

// ErrPrecondition marks environmental failures detected before any
// mutation: missing source or store, or a run that appears to still be
// in progress. Callers map it to a distinct exit status.
var ErrPrecondition = errors.New("precondition failed")

// EngineConfig carries the run-invariant engine settings.
type EngineConfig struct {
	// Source is the tree being protected.
	Source string

	// Excludes are source-relative paths skipped by the mirror.
	Excludes []string

	// CreateStore permits creating a missing store root instead of
	// refusing to run.
	CreateStore bool

	// RecoveryGrace is the minimum in-progress marker age before a
	// leftover marker is treated as a crash rather than a live run.
	RecoveryGrace time.Duration
}

// Engine drives one full retention pass: precondition checks, the
// slowest-to-fastest rotation walk, the source mirror, and crash
// recovery when a previous run died mid-mirror.
type Engine struct {
	store *Store
	tiers []Tier // fastest first
	cfg   EngineConfig
	sync  *Synchronizer
	shift *Shifter
	prom  *Promoter
	trash TrashCollector
}

// NewEngine creates an engine over the store. tiers must be ordered
// fastest first, matching the validated configuration.
func NewEngine(store *Store, tiers []Tier, cfg EngineConfig,
	m mirror.Mirrorer, c mirror.Cloner, trash TrashCollector) *Engine {
	return &Engine{
		store: store,
		tiers: tiers,
		cfg:   cfg,
		sync:  NewSynchronizer(store, tiers[0], cfg.Source, cfg.Excludes, m, c, trash),
		shift: NewShifter(store, trash),
		prom:  NewPromoter(store, trash),
		trash: trash,
	}
}

// Run executes one retention pass and returns its report. The report is
// also persisted to the store alongside a backup.log line; persistence
// failures are logged but never fail the run.
//
// A non-zero mirror exit yields a partial outcome with a nil error. A
// returned error wrapping ErrPrecondition means nothing was mutated.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := logging.With().Str("run_id", runID).Logger()

	if err := e.checkPreconditions(); err != nil {
		return nil, err
	}

	gate := NewGate(e.store, start)
	report := &Report{RunID: runID, StartedAt: start}

	markerAt, markerExists, err := e.store.ReadMarker()
	if err != nil {
		return nil, fmt.Errorf("read in-progress marker: %w", err)
	}
	if markerExists {
		if age := start.Sub(markerAt); !markerAt.IsZero() && age < e.cfg.RecoveryGrace {
			return nil, fmt.Errorf("%w: in-progress marker is %s old, another run may be live",
				ErrPrecondition, age.Round(time.Second))
		}
		log.Warn().Time("marker", markerAt).Msg("stale in-progress marker found, entering recovery")
		err = e.recover(ctx, gate, report)
	} else {
		err = e.rotate(ctx, gate, report)
	}
	if err != nil {
		metrics.ObserveRun("aborted", time.Since(start))
		return nil, err
	}

	report.FinishedAt = time.Now()
	if report.Outcome == "" {
		report.Outcome = OutcomeCompleted
		if report.Sync.MirrorExit != 0 {
			report.Outcome = OutcomePartial
		}
	}
	metrics.ObserveRun(report.Outcome, time.Since(start))
	e.persist(report, log)

	log.Info().
		Str("outcome", report.Outcome).
		Dur("elapsed", time.Since(start)).
		Msg("run finished")
	return report, nil
}

// checkPreconditions verifies the source and store roots before any
// state is touched.
func (e *Engine) checkPreconditions() error {
	info, err := os.Stat(e.cfg.Source)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: source %s is not an accessible directory", ErrPrecondition, e.cfg.Source)
	}

	info, err = os.Stat(e.store.Root())
	switch {
	case err == nil && info.IsDir():
		return nil
	case os.IsNotExist(err) && e.cfg.CreateStore:
		if err := os.MkdirAll(e.store.Root(), 0o755); err != nil {
			return fmt.Errorf("create store root: %w", err)
		}
		logging.Info().Str("store", e.store.Root()).Msg("created store root")
		return nil
	default:
		return fmt.Errorf("%w: store %s is not an accessible directory", ErrPrecondition, e.store.Root())
	}
}

// rotate is the clean-path pass: walk tiers slowest to fastest so each
// rename happens into a slot already vacated this run, then refresh the
// live generation.
func (e *Engine) rotate(ctx context.Context, gate *Gate, report *Report) error {
	for i := len(e.tiers) - 1; i >= 1; i-- {
		t := e.tiers[i]
		tr := TierReport{Name: t.Name}

		due, err := gate.CheckAndAdvance(t)
		if err != nil {
			return err
		}
		if due {
			if err := e.shift.Shift(t, false); err != nil {
				return err
			}
			promoted, err := e.prom.Promote(t, e.tiers[i-1])
			if err != nil {
				return err
			}
			tr.Rotated = true
			tr.Promoted = promoted
			metrics.TierRotations.WithLabelValues(t.Name).Inc()
		}
		report.Tiers = append(report.Tiers, tr)
	}

	fastest := e.tiers[0]
	tr := TierReport{Name: fastest.Name}
	due, err := gate.CheckAndAdvance(fastest)
	if err != nil {
		return err
	}
	if due {
		// The eviction is parked for reuse so sealing the next live
		// generation costs two renames instead of a full tree clone.
		if err := e.shift.Shift(fastest, true); err != nil {
			return err
		}
		tr.Rotated = true
		metrics.TierRotations.WithLabelValues(fastest.Name).Inc()
	}
	report.Tiers = append(report.Tiers, tr)

	res, err := e.sync.Run(ctx, time.Now())
	if err != nil {
		return err
	}
	report.Sync = res
	return nil
}

// recover handles a store left mid-mirror by a crashed run. Generation
// directories are already consistent (every rotation step is a single
// rename); only the live generation's content is suspect, so the pass
// sweeps transient directories, resets the fastest tier's baseline, and
// re-mirrors. Tier rotation is skipped entirely.
func (e *Engine) recover(ctx context.Context, gate *Gate, report *Report) error {
	metrics.RecoveryRuns.Inc()
	report.Recovered = true
	report.Outcome = OutcomeRecovered

	trash, err := e.store.SweepTransients()
	if err != nil {
		return err
	}
	for _, p := range trash {
		e.trash.Collect(p)
	}
	if len(trash) > 0 {
		logging.Info().Int("count", len(trash)).Msg("swept transient directories for deletion")
	}

	if err := gate.ResetStamp(e.tiers[0]); err != nil {
		return err
	}

	res, err := e.sync.Resync(ctx, time.Now())
	if err != nil {
		return err
	}
	report.Sync = res
	return nil
}

// persist writes report.json and the backup.log line, logging failures
// instead of propagating them.
func (e *Engine) persist(report *Report, log zerolog.Logger) {
	if err := e.store.WriteReport(report); err != nil {
		log.Warn().Err(err).Msg("run report not written")
	}
	line := fmt.Sprintf("run %s outcome=%s sealed=%t mirror_exit=%d",
		report.RunID, report.Outcome, report.Sync.Sealed, report.Sync.MirrorExit)
	if err := e.store.AppendLog(report.FinishedAt, line); err != nil {
		log.Warn().Err(err).Msg("run log not appended")
	}
}
