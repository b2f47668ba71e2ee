// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

// Package main is the entry point for the Rotavault retention engine.
//
// Rotavault keeps a rolling set of browsable snapshots of a directory
// tree in a tiered store (for example six dailies, three weeklies, two
// monthlies). Unchanged files are shared between snapshots via
// hardlinks, so each additional generation costs roughly the size of
// what changed. The actual tree copy is delegated to rsync; Rotavault
// owns the rotation state machine around it.
//
// # Operation
//
// One invocation performs one retention pass:
//
//  1. Precondition checks (source and store reachable, no live run)
//  2. Rotation walk from the slowest tier down: tiers whose interval has
//     elapsed shift their generations up by one and adopt the oldest
//     generation of the tier below
//  3. Seal the previous live generation and mirror the source into the
//     fastest tier's slot 0
//  4. Write report.json and append a backup.log line in the store
//
// Evicted generations are renamed away instantly and deleted in the
// background. A run interrupted mid-mirror leaves a marker behind; the
// next invocation detects it and recovers by re-mirroring.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - ROTAVAULT_* environment variables
//   - Config file (rotavault.yaml, or -config / ROTAVAULT_CONFIG)
//   - Built-in defaults
//
// # Modes
//
// By default one pass runs and the process exits: 0 on success (even if
// the mirror tool reported per-file errors), 1 on configuration errors,
// 2 on precondition failures. Cron or a systemd timer provides the
// schedule. With daemon.enabled the process stays up under a supervisor,
// runs the engine on daemon.interval, and serves /healthz and /metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotavault/rotavault/internal/config"
	"github.com/rotavault/rotavault/internal/daemon"
	"github.com/rotavault/rotavault/internal/janitor"
	"github.com/rotavault/rotavault/internal/logging"
	"github.com/rotavault/rotavault/internal/mirror"
	"github.com/rotavault/rotavault/internal/snapshot"
)

// Exit codes. A partial mirror still exits 0; the report carries the
// detail.
const (
	exitOK            = 0
	exitConfiguration = 1
	exitPrecondition  = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file (overrides ROTAVAULT_CONFIG)")
	list := flag.Bool("list", false, "list retained generations and exit")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logging.Err(err).Msg("configuration rejected")
		return exitConfiguration
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	store := snapshot.NewStore(cfg.StoreDir)
	tiers := toTiers(cfg.Tiers)

	if *list {
		return listGenerations(store, tiers)
	}

	collector := janitor.New(cfg.Janitor.QueueSize, cfg.Janitor.DeletesPerMinute)
	engine := snapshot.NewEngine(store, tiers, snapshot.EngineConfig{
		Source:        cfg.SourceDir,
		Excludes:      cfg.Excludes,
		CreateStore:   cfg.CreateStore,
		RecoveryGrace: cfg.RecoveryGrace,
	},
		mirror.NewRsync(cfg.Mirror.Command, cfg.Mirror.ExtraArgs, cfg.Mirror.Timeout),
		mirror.NewLinkCloner(),
		collector,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Daemon.Enabled {
		logging.Info().
			Dur("interval", cfg.Daemon.Interval).
			Str("listen_addr", cfg.Daemon.ListenAddr).
			Msg("starting in daemon mode")
		d := daemon.New(cfg.Daemon.Interval, cfg.Daemon.ListenAddr, engine, collector)
		if err := d.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Err(err).Msg("supervisor tree failed")
			return exitConfiguration
		}
		return exitOK
	}

	report, err := engine.Run(ctx)
	if err != nil {
		logging.Err(err).Msg("run aborted")
		if errors.Is(err, snapshot.ErrPrecondition) {
			return exitPrecondition
		}
		return exitConfiguration
	}

	// Reclaim whatever this run evicted before exiting.
	if err := collector.Drain(ctx); err != nil {
		logging.Warn().Err(err).Msg("trash drain interrupted")
	}

	logging.Info().
		Str("run_id", report.RunID).
		Str("outcome", report.Outcome).
		Msg("done")
	return exitOK
}

// toTiers converts validated tier configuration into engine tiers.
func toTiers(tcs []config.TierConfig) []snapshot.Tier {
	tiers := make([]snapshot.Tier, len(tcs))
	for i, tc := range tcs {
		tiers[i] = snapshot.Tier{Name: tc.Name, Interval: tc.Interval, Retain: tc.Retain}
	}
	return tiers
}

// listGenerations prints the store inventory, newest first per tier.
func listGenerations(store *snapshot.Store, tiers []snapshot.Tier) int {
	generations, err := store.ListGenerations(tiers)
	if err != nil {
		logging.Err(err).Msg("store scan failed")
		return exitPrecondition
	}
	for _, g := range generations {
		fmt.Println(g.DirName())
	}
	return exitOK
}
