// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// Run outcomes recorded in the report and metrics.
const (
	OutcomeCompleted = "completed"
	OutcomePartial   = "partial"
	OutcomeRecovered = "recovered"
)

// TierReport records what happened to one tier during a run.
type TierReport struct {
	Name     string `json:"name"`
	Rotated  bool   `json:"rotated"`
	Promoted bool   `json:"promoted"`
}

// Report is the machine-readable summary of one engine run, written to
// report.json in the store root after every run. It always describes the
// most recent run only.
type Report struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Outcome    string       `json:"outcome"`
	Recovered  bool         `json:"recovered,omitempty"`
	Tiers      []TierReport `json:"tiers,omitempty"`
	Sync       SyncResult   `json:"sync"`
}

// ReportPath returns the run report location in the store.
func (s *Store) ReportPath() string {
	return filepath.Join(s.root, "report.json")
}

// LogPath returns the append-only run log location in the store.
func (s *Store) LogPath() string {
	return filepath.Join(s.root, "backup.log")
}

// WriteReport replaces report.json with the given run summary. The file
// is written via a temporary name so readers never see a torn report.
func (s *Store) WriteReport(r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	tmp := s.ReportPath() + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, s.ReportPath()); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}

// AppendLog appends one timestamped line to backup.log. The log is for
// humans; it grows without bound and is never read by the engine.
func (s *Store) AppendLog(at time.Time, line string) error {
	f, err := os.OpenFile(s.LogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s %s\n", at.UTC().Format(time.RFC3339), line); err != nil {
		return fmt.Errorf("append run log: %w", err)
	}
	return nil
}
