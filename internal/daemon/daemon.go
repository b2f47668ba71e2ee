// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

// Package daemon runs the engine on a schedule under a suture supervisor
// tree, alongside the janitor and the health/metrics HTTP listener.
package daemon

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/rotavault/rotavault/internal/janitor"
	"github.com/rotavault/rotavault/internal/logging"
	"github.com/rotavault/rotavault/internal/snapshot"
)

// Daemon supervises the scheduler, the janitor, and the HTTP listener.
// Any crashed service is restarted with backoff; the tree stops when the
// root context is canceled.
type Daemon struct {
	tree *suture.Supervisor
}

// New builds the supervisor tree. interval is the time between engine
// runs; listenAddr serves /healthz and /metrics, empty disables it.
func New(interval time.Duration, listenAddr string, engine *snapshot.Engine, collector *janitor.Collector) *Daemon {
	// MustHook has a pointer receiver, hence the address-of.
	hook := (&sutureslog.Handler{Logger: logging.NewSlogLogger()}).MustHook()
	tree := suture.New("rotavault", suture.Spec{
		EventHook:        hook,
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
	})

	tree.Add(collector)
	tree.Add(&scheduler{engine: engine, interval: interval})
	if listenAddr != "" {
		tree.Add(&httpServer{addr: listenAddr})
	}
	return &Daemon{tree: tree}
}

// Serve runs the tree until ctx is canceled.
func (d *Daemon) Serve(ctx context.Context) error {
	return d.tree.Serve(ctx)
}

// scheduler triggers engine runs at a fixed interval. An immediate run
// happens on startup; failures are logged and the schedule continues,
// since a transient condition (another run's marker, an unreachable
// source mount) usually clears itself.
type scheduler struct {
	engine   *snapshot.Engine
	interval time.Duration
}

func (sc *scheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	sc.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sc.runOnce(ctx)
		}
	}
}

func (sc *scheduler) runOnce(ctx context.Context) {
	if _, err := sc.engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Err(err).Msg("scheduled run failed")
	}
}

// String names the service for supervisor logs.
func (sc *scheduler) String() string {
	return "scheduler"
}
