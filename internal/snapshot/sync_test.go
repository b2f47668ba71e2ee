// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rotavault/rotavault/internal/mirror"
)

// fakeMirror records requests and simulates the tool creating the
// destination directory
type fakeMirror struct {
	exit int
	err  error
	reqs []mirror.Request
}

func (f *fakeMirror) Mirror(_ context.Context, req mirror.Request) (int, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return -1, f.err
	}
	if err := os.MkdirAll(req.DestRoot, 0o755); err != nil {
		return -1, err
	}
	return f.exit, nil
}

// fakeCloner simulates hardlink cloning by creating the destination;
// partial makes it leave a half-made destination behind on failure
type fakeCloner struct {
	err     error
	partial bool
	calls   int
	dsts    []string
}

func (f *fakeCloner) CloneTree(_ context.Context, src, dst string) error {
	f.calls++
	f.dsts = append(f.dsts, dst)
	if f.err != nil {
		if f.partial {
			_ = os.MkdirAll(dst, 0o755)
		}
		return f.err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			if err := os.Link(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func newTestSync(s *Store, source string, fm *fakeMirror, fc *fakeCloner, trash TrashCollector) *Synchronizer {
	return NewSynchronizer(s, tierDay, source, nil, fm, fc, trash)
}

// TestSyncFirstRun tests mirroring into an empty store
func TestSyncFirstRun(t *testing.T) {
	s := newTestStore(t)
	source := t.TempDir()
	fm := &fakeMirror{}
	fc := &fakeCloner{}

	res, err := newTestSync(s, source, fm, fc, &captureTrash{}).Run(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if res.Sealed {
		t.Error("nothing to seal on first run")
	}
	if !s.HasGeneration(tierDay, 0) {
		t.Error("live generation missing after mirror")
	}
	if len(fm.reqs) != 1 {
		t.Fatalf("mirror invoked %d times, want 1", len(fm.reqs))
	}
	req := fm.reqs[0]
	if req.DestRoot != s.GenerationPath(tierDay, 0) {
		t.Errorf("mirror dest = %s, want %s", req.DestRoot, s.GenerationPath(tierDay, 0))
	}
	// Both temp dirs share a filesystem, so the mirror links straight
	// against the source.
	if req.LinkBaseline != source {
		t.Errorf("baseline = %q, want source %q", req.LinkBaseline, source)
	}
	if _, exists, _ := s.ReadMarker(); exists {
		t.Error("marker left behind after a clean run")
	}
}

// TestSyncSealsByClone tests sealing the live generation without a
// reuse directory available
func TestSyncSealsByClone(t *testing.T) {
	s := newTestStore(t)
	source := t.TempDir()
	mkGeneration(t, s, tierDay, 0)
	fm := &fakeMirror{}
	fc := &fakeCloner{}

	res, err := newTestSync(s, source, fm, fc, &captureTrash{}).Run(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if !res.Sealed || res.SealMethod != SealClone {
		t.Errorf("sealed=%v method=%q, want true, %q", res.Sealed, res.SealMethod, SealClone)
	}
	if fc.calls != 1 {
		t.Errorf("cloner invoked %d times, want 1", fc.calls)
	}
	if !s.HasGeneration(tierDay, 1) {
		t.Error("sealed generation missing")
	}
}

// TestSyncSealCloneStaging tests that the clone is staged under a
// trash name and published into slot 1 only by the final rename
func TestSyncSealCloneStaging(t *testing.T) {
	s := newTestStore(t)
	source := t.TempDir()
	mkGeneration(t, s, tierDay, 0)
	fm := &fakeMirror{}
	fc := &fakeCloner{}

	if _, err := newTestSync(s, source, fm, fc, &captureTrash{}).Run(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}

	if len(fc.dsts) != 1 {
		t.Fatalf("cloner invoked %d times, want 1", len(fc.dsts))
	}
	if fc.dsts[0] == s.GenerationPath(tierDay, 1) {
		t.Error("clone must never write into the sealed slot directly")
	}
	if !strings.HasSuffix(fc.dsts[0], trashSuffix) {
		t.Errorf("clone staging %q is not a sweepable trash name", fc.dsts[0])
	}
	if !s.HasGeneration(tierDay, 1) {
		t.Error("sealed generation missing after publish")
	}
}

// TestSyncSealAfterInterruptedClone tests that a clone killed mid-walk
// leaves only trash and the next run seals a complete generation
func TestSyncSealAfterInterruptedClone(t *testing.T) {
	s := newTestStore(t)
	source := t.TempDir()
	mkGeneration(t, s, tierDay, 0)
	// A killed clone leaves its half-built staging directory behind
	// under a trash name; slot 1 itself is untouched.
	if err := os.MkdirAll(filepath.Join(s.Root(), "day.1-99"+trashSuffix), 0o755); err != nil {
		t.Fatal(err)
	}
	fm := &fakeMirror{}
	fc := &fakeCloner{}

	res, err := newTestSync(s, source, fm, fc, &captureTrash{}).Run(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if !res.Sealed || res.SealMethod != SealClone {
		t.Fatalf("sealed=%v method=%q, want a fresh clone seal", res.Sealed, res.SealMethod)
	}
	data, err := os.ReadFile(filepath.Join(s.GenerationPath(tierDay, 1), "payload"))
	if err != nil {
		t.Fatalf("sealed generation incomplete: %v", err)
	}
	if want := s.GenerationPath(tierDay, 0); string(data) != want {
		t.Errorf("day.1 payload = %q, want %q", data, want)
	}
}

// TestSyncSealIdempotent tests that an already-sealed store is not
// sealed again
func TestSyncSealIdempotent(t *testing.T) {
	s := newTestStore(t)
	source := t.TempDir()
	mkGeneration(t, s, tierDay, 0)
	mkGeneration(t, s, tierDay, 1)
	fm := &fakeMirror{}
	fc := &fakeCloner{}

	res, err := newTestSync(s, source, fm, fc, &captureTrash{}).Run(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if res.Sealed || fc.calls != 0 {
		t.Errorf("sealed=%v clones=%d, want no re-seal", res.Sealed, fc.calls)
	}
}

// TestSyncSealsByReuse tests the two-rename seal through the recycled
// directory
func TestSyncSealsByReuse(t *testing.T) {
	s := newTestStore(t)
	source := t.TempDir()
	mkGeneration(t, s, tierDay, 0)
	livePayload := s.GenerationPath(tierDay, 0)
	if err := os.MkdirAll(s.ReusePath(tierDay), 0o755); err != nil {
		t.Fatal(err)
	}
	fm := &fakeMirror{}
	fc := &fakeCloner{}

	res, err := newTestSync(s, source, fm, fc, &captureTrash{}).Run(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if !res.Sealed || res.SealMethod != SealReuse {
		t.Errorf("sealed=%v method=%q, want true, %q", res.Sealed, res.SealMethod, SealReuse)
	}
	if fc.calls != 0 {
		t.Error("cloner must not run when the reuse slot is available")
	}
	// The old live content now sits in slot 1, and the recycled
	// directory became the new live generation.
	data, err := os.ReadFile(filepath.Join(s.GenerationPath(tierDay, 1), "payload"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != livePayload {
		t.Errorf("day.1 payload = %q, want %q", data, livePayload)
	}
	if s.HasReuse(tierDay) {
		t.Error("reuse slot still occupied after seal")
	}
}

// TestSyncAdoptsRecycledLive tests that an interrupted reuse seal
// converges: the recycled directory becomes the live generation
func TestSyncAdoptsRecycledLive(t *testing.T) {
	s := newTestStore(t)
	source := t.TempDir()
	mkGeneration(t, s, tierDay, 1)
	if err := os.MkdirAll(s.ReusePath(tierDay), 0o755); err != nil {
		t.Fatal(err)
	}
	fm := &fakeMirror{}
	fc := &fakeCloner{}

	res, err := newTestSync(s, source, fm, fc, &captureTrash{}).Run(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if res.Sealed {
		t.Error("slot 1 already populated, nothing to seal")
	}
	if !s.HasGeneration(tierDay, 0) || s.HasReuse(tierDay) {
		t.Error("recycled directory was not adopted as live")
	}
}

// TestSyncCrossDeviceBaseline tests that a store on another filesystem
// links against the sealed previous generation
func TestSyncCrossDeviceBaseline(t *testing.T) {
	s := newTestStore(t)
	source := t.TempDir()
	mkGeneration(t, s, tierDay, 0)
	mkGeneration(t, s, tierDay, 1)
	fm := &fakeMirror{}

	sy := newTestSync(s, source, fm, &fakeCloner{}, &captureTrash{})
	sy.sameFS = func(string, string) bool { return false }

	res, err := sy.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	want := s.GenerationPath(tierDay, 1)
	if res.Baseline != want {
		t.Errorf("baseline = %q, want sealed generation %q", res.Baseline, want)
	}
	if got := fm.reqs[0].LinkBaseline; got != want {
		t.Errorf("mirror LinkBaseline = %q, want %q", got, want)
	}
}

// TestSyncCrossDeviceNoBaseline tests that with no sealed generation a
// cross-device mirror runs without a link baseline
func TestSyncCrossDeviceNoBaseline(t *testing.T) {
	s := newTestStore(t)
	source := t.TempDir()
	fm := &fakeMirror{}

	sy := newTestSync(s, source, fm, &fakeCloner{}, &captureTrash{})
	sy.sameFS = func(string, string) bool { return false }

	if _, err := sy.Run(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}
	if got := fm.reqs[0].LinkBaseline; got != "" {
		t.Errorf("mirror LinkBaseline = %q, want empty", got)
	}
}

// TestSyncCloneFailure tests that a partial clone is moved to trash and
// the run fails
func TestSyncCloneFailure(t *testing.T) {
	s := newTestStore(t)
	source := t.TempDir()
	mkGeneration(t, s, tierDay, 0)
	trash := &captureTrash{}
	fm := &fakeMirror{}
	fc := &fakeCloner{err: errors.New("disk full"), partial: true}

	_, err := newTestSync(s, source, fm, fc, trash).Run(context.Background(), time.Now())
	if err == nil {
		t.Fatal("expected seal failure")
	}

	if s.HasGeneration(tierDay, 1) {
		t.Error("partial clone left in the sealed slot")
	}
	if len(trash.collected()) != 1 {
		t.Errorf("partial clone not trashed, got %v", trash.collected())
	}
	if len(fm.reqs) != 0 {
		t.Error("mirror must not run after a failed seal")
	}
}

// TestSyncMirrorFailureKeepsMarker tests that cancellation or launch
// failure leaves the in-progress marker for the next run
func TestSyncMirrorFailureKeepsMarker(t *testing.T) {
	s := newTestStore(t)
	source := t.TempDir()
	fm := &fakeMirror{err: errors.New("killed")}
	fc := &fakeCloner{}

	_, err := newTestSync(s, source, fm, fc, &captureTrash{}).Run(context.Background(), time.Now())
	if err == nil {
		t.Fatal("expected mirror failure")
	}
	if _, exists, _ := s.ReadMarker(); !exists {
		t.Error("marker must stay in place after an interrupted mirror")
	}
}

// TestSyncMirrorExitIsWarning tests that a non-zero tool exit completes
// the run
func TestSyncMirrorExitIsWarning(t *testing.T) {
	s := newTestStore(t)
	source := t.TempDir()
	fm := &fakeMirror{exit: 23}
	fc := &fakeCloner{}

	res, err := newTestSync(s, source, fm, fc, &captureTrash{}).Run(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if res.MirrorExit != 23 {
		t.Errorf("MirrorExit = %d, want 23", res.MirrorExit)
	}
	if _, exists, _ := s.ReadMarker(); exists {
		t.Error("marker left behind after a completed mirror")
	}
}

// TestSyncExcludesOwnStore tests that a store nested inside the source
// excludes itself from the mirror
func TestSyncExcludesOwnStore(t *testing.T) {
	source := t.TempDir()
	storeRoot := filepath.Join(source, "backup")
	if err := os.MkdirAll(storeRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	s := NewStore(storeRoot)
	fm := &fakeMirror{}

	sy := NewSynchronizer(s, tierDay, source, []string{"tmp"}, fm, &fakeCloner{}, &captureTrash{})
	if _, err := sy.Run(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}

	if len(fm.reqs) != 1 {
		t.Fatal("mirror not invoked")
	}
	got := fm.reqs[0].Excludes
	if !slices.Contains(got, "tmp") || !slices.Contains(got, "backup") {
		t.Errorf("excludes = %v, want both tmp and backup", got)
	}
}
