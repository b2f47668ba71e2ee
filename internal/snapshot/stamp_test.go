// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

package snapshot

import (
	"testing"
	"time"
)

// TestGateSeedsAbsentStamp tests that a first evaluation establishes a
// baseline without reporting due
func TestGateSeedsAbsentStamp(t *testing.T) {
	s := newTestStore(t)
	now := time.Unix(1756450800, 0)
	g := NewGate(s, now)

	due, err := g.CheckAndAdvance(tierDay)
	if err != nil {
		t.Fatal(err)
	}
	if due {
		t.Error("first evaluation must not be due")
	}
	stamp, err := s.ReadStamp(tierDay)
	if err != nil {
		t.Fatal(err)
	}
	if !stamp.Equal(now) {
		t.Errorf("seeded stamp = %v, want %v", stamp, now)
	}
}

// TestGateCheckAndAdvance tests due decisions and grid-aligned advancing
func TestGateCheckAndAdvance(t *testing.T) {
	base := time.Unix(1756450800, 0)

	tests := []struct {
		name      string
		elapsed   time.Duration
		wantDue   bool
		wantStamp time.Duration // offset from base after the call
	}{
		{"just written", 0, false, 0},
		{"under one interval", 23 * time.Hour, false, 0},
		{"exactly one interval", 24 * time.Hour, true, 24 * time.Hour},
		{"partway into second", 30 * time.Hour, true, 24 * time.Hour},
		{"exactly two intervals", 48 * time.Hour, true, 48 * time.Hour},
		{"long outage", 100 * time.Hour, true, 96 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			if err := s.WriteStamp(tierDay, base); err != nil {
				t.Fatal(err)
			}

			g := NewGate(s, base.Add(tt.elapsed))
			due, err := g.CheckAndAdvance(tierDay)
			if err != nil {
				t.Fatal(err)
			}
			if due != tt.wantDue {
				t.Errorf("due = %v, want %v", due, tt.wantDue)
			}
			stamp, err := s.ReadStamp(tierDay)
			if err != nil {
				t.Fatal(err)
			}
			if want := base.Add(tt.wantStamp); !stamp.Equal(want) {
				t.Errorf("stamp = %v, want %v", stamp, want)
			}
		})
	}
}

// TestGateDriftBound tests that repeated late runs keep the stamp on the
// grid anchored at the original baseline
func TestGateDriftBound(t *testing.T) {
	s := newTestStore(t)
	base := time.Unix(1756450800, 0)
	if err := s.WriteStamp(tierDay, base); err != nil {
		t.Fatal(err)
	}

	// Each run arrives 90 minutes late; the stamp must stay on exact
	// 24h multiples of the original baseline regardless.
	for i := 1; i <= 4; i++ {
		now := base.Add(time.Duration(i)*24*time.Hour + 90*time.Minute)
		due, err := NewGate(s, now).CheckAndAdvance(tierDay)
		if err != nil {
			t.Fatal(err)
		}
		if !due {
			t.Fatalf("run %d not due", i)
		}
		stamp, _ := s.ReadStamp(tierDay)
		if want := base.Add(time.Duration(i) * 24 * time.Hour); !stamp.Equal(want) {
			t.Fatalf("run %d stamp = %v, want %v", i, stamp, want)
		}
	}
}

// TestGateContinuousTier tests that a zero-interval tier is due on every
// run once seeded
func TestGateContinuousTier(t *testing.T) {
	s := newTestStore(t)
	continuous := Tier{Name: "live", Interval: 0, Retain: 2}
	now := time.Unix(1756450800, 0)

	if due, _ := NewGate(s, now).CheckAndAdvance(continuous); due {
		t.Error("unseeded continuous tier must not be due")
	}

	later := now.Add(time.Second)
	due, err := NewGate(s, later).CheckAndAdvance(continuous)
	if err != nil {
		t.Fatal(err)
	}
	if !due {
		t.Error("seeded continuous tier must be due")
	}
	stamp, _ := s.ReadStamp(continuous)
	if !stamp.Equal(later) {
		t.Errorf("stamp = %v, want %v", stamp, later)
	}
}

// TestGateResetStamp tests the recovery reset
func TestGateResetStamp(t *testing.T) {
	s := newTestStore(t)
	base := time.Unix(1756450800, 0)
	if err := s.WriteStamp(tierDay, base.Add(-72*time.Hour)); err != nil {
		t.Fatal(err)
	}

	g := NewGate(s, base)
	if err := g.ResetStamp(tierDay); err != nil {
		t.Fatal(err)
	}
	stamp, _ := s.ReadStamp(tierDay)
	if !stamp.Equal(base) {
		t.Errorf("stamp = %v, want %v", stamp, base)
	}
}
