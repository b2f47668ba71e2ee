// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

// Package snapshot implements the tiered snapshot store and its rotation
// engine. The filesystem is the database: every state transition is a
// rename, a hardlink, or a small marker file write.
//
// # Store layout
//
// All state lives directly under the store root:
//
//	<store>/day.0         continuously updated mirror (fastest tier)
//	<store>/day.1..day.N  sealed generations, higher index = older
//	<store>/week.1..      promoted generations of slower tiers
//	<store>/day.stamp     per-tier rotation timestamp (ASCII epoch seconds)
//	<store>/.inprogress   crash-detection marker around mirroring
//	<store>/*.del         trash awaiting background deletion
//	<store>/day.reuse.tmp evicted generation reserved for reuse
//	<store>/report.json   last run summary
//	<store>/backup.log    human-readable run log
//
// # Rotation
//
// The engine walks tiers slowest to fastest. For each gated tier the
// timestamp gate decides whether the tier's interval has elapsed; if so
// the shifter renumbers generations (evicting the oldest to trash) and the
// promoter renames the oldest surviving generation of the tier below into
// slot 1. The fastest tier is then synchronized: the previous mirror is
// sealed (hardlink clone, or a single rename when an evicted generation
// can be reused) and the mirror tool brings index 0 back into
// correspondence with the source.
//
// # Crash safety
//
// Renames are atomic and never span tiers in one step, so the store is
// always browsable. The in-progress marker brackets the only long
// mutation (mirroring); a marker found at startup routes the run through
// recovery, which skips the already-completed tier loop and re-mirrors,
// converging to the same final state as an uninterrupted run.
package snapshot
