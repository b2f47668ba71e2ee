// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

// Package metrics exposes Prometheus instrumentation for the rotation
// engine: run outcomes, per-tier rotations, mirror exits, and janitor
// queue pressure. Collectors are registered with the default registry and
// served on /metrics in daemon mode.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Engine run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotavault_runs_total",
			Help: "Total number of engine runs by outcome",
		},
		[]string{"outcome"}, // "completed", "partial", "aborted", "recovered"
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rotavault_run_duration_seconds",
			Help:    "Duration of a full engine run in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
		},
	)

	// Rotation metrics
	TierRotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotavault_tier_rotations_total",
			Help: "Total number of tier rotations (gate reported due)",
		},
		[]string{"tier"},
	)

	Promotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotavault_promotions_total",
			Help: "Total number of generations promoted into a tier",
		},
		[]string{"tier"},
	)

	Evictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotavault_evictions_total",
			Help: "Total number of generations evicted to trash",
		},
		[]string{"tier"},
	)

	// Synchronizer metrics
	MirrorRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotavault_mirror_runs_total",
			Help: "Total number of mirror tool invocations by exit status",
		},
		[]string{"exit_status"},
	)

	MirrorDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rotavault_mirror_duration_seconds",
			Help:    "Duration of mirror tool invocations in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
		},
	)

	SealsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotavault_seals_total",
			Help: "Total number of generation seals by method",
		},
		[]string{"method"}, // "clone", "reuse"
	)

	// Janitor metrics
	TrashQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rotavault_trash_queue_depth",
			Help: "Number of trash directories waiting for deletion",
		},
	)

	TrashDeletes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotavault_trash_deletes_total",
			Help: "Total number of trash deletions by result",
		},
		[]string{"result"}, // "ok", "error"
	)

	// Recovery metrics
	RecoveryRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rotavault_recovery_runs_total",
			Help: "Total number of runs that entered crash recovery",
		},
	)
)

// ObserveRun records one engine run.
func ObserveRun(outcome string, elapsed time.Duration) {
	RunsTotal.WithLabelValues(outcome).Inc()
	RunDuration.Observe(elapsed.Seconds())
}

// ObserveMirror records one mirror invocation.
func ObserveMirror(exitStatus int, elapsed time.Duration) {
	MirrorRuns.WithLabelValues(strconv.Itoa(exitStatus)).Inc()
	MirrorDuration.Observe(elapsed.Seconds())
}
