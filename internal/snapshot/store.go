// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// markerName is the process-wide in-progress sentinel, written before the
// mirror mutates generation 0 and removed only after it completes.
const markerName = ".inprogress"

// trashSuffix and reuseSuffix mark transient directories. Anything
// carrying either suffix is reclaimable after a crash.
const (
	trashSuffix = ".del"
	reuseSuffix = ".reuse.tmp"
)

// Store is the on-disk snapshot store. All methods address state directly
// under the root; none of them mutate generation content.
type Store struct {
	root string
}

// NewStore creates a Store rooted at root. The directory is not created
// or checked here; the engine validates preconditions before mutating.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the store root path.
func (s *Store) Root() string {
	return s.root
}

// generationDirName formats a generation directory name.
func generationDirName(t Tier, index int) string {
	return fmt.Sprintf("%s.%d", t.Name, index)
}

// GenerationPath returns the absolute path of a generation slot.
func (s *Store) GenerationPath(t Tier, index int) string {
	return filepath.Join(s.root, generationDirName(t, index))
}

// HasGeneration reports whether a generation slot is populated.
func (s *Store) HasGeneration(t Tier, index int) bool {
	info, err := os.Lstat(s.GenerationPath(t, index))
	return err == nil && info.IsDir()
}

// Generations lists the populated indices of a tier in ascending order
// with a single directory scan. Trash, reuse, and stamp entries are not
// generations and are never returned.
func (s *Store) Generations(t Tier) ([]int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("scan store: %w", err)
	}

	prefix := t.Name + "."
	var indices []int
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		index, err := strconv.Atoi(strings.TrimPrefix(e.Name(), prefix))
		if err != nil || index < 0 {
			continue
		}
		indices = append(indices, index)
	}
	sort.Ints(indices)
	return indices, nil
}

// ListGenerations enumerates every populated generation across the given
// tiers, ordered fastest tier first and newest index first within a
// tier. This is the read-only inventory view used by the list command.
func (s *Store) ListGenerations(tiers []Tier) ([]Generation, error) {
	var out []Generation
	for _, t := range tiers {
		indices, err := s.Generations(t)
		if err != nil {
			return nil, err
		}
		for _, index := range indices {
			out = append(out, Generation{Tier: t, Index: index})
		}
	}
	return out, nil
}

// OldestGeneration returns the highest populated index of a tier, or
// ok=false when the tier is empty.
func (s *Store) OldestGeneration(t Tier) (index int, ok bool, err error) {
	indices, err := s.Generations(t)
	if err != nil || len(indices) == 0 {
		return 0, false, err
	}
	return indices[len(indices)-1], true, nil
}

// Rename atomically renames oldPath to newPath within the store.
func (s *Store) Rename(oldPath, newPath string) error {
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("rename %s -> %s: %w",
			filepath.Base(oldPath), filepath.Base(newPath), err)
	}
	return nil
}

// StampPath returns the tier's timestamp marker path. Stamps live outside
// the generation directories so they survive generation renames.
func (s *Store) StampPath(t Tier) string {
	return filepath.Join(s.root, t.Name+".stamp")
}

// ReadStamp reads a tier's last-rotated time. Any read or parse failure
// is returned; callers treat it as "never rotated".
func (s *Store) ReadStamp(t Tier) (time.Time, error) {
	data, err := os.ReadFile(s.StampPath(t))
	if err != nil {
		return time.Time{}, err
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("stamp %s: %w", t.Name, err)
	}
	return time.Unix(secs, 0), nil
}

// WriteStamp persists a tier's last-rotated time as ASCII epoch seconds.
func (s *Store) WriteStamp(t Tier, at time.Time) error {
	data := strconv.FormatInt(at.Unix(), 10) + "\n"
	if err := os.WriteFile(s.StampPath(t), []byte(data), 0o644); err != nil {
		return fmt.Errorf("write stamp %s: %w", t.Name, err)
	}
	return nil
}

// MarkerPath returns the in-progress marker path.
func (s *Store) MarkerPath() string {
	return filepath.Join(s.root, markerName)
}

// ReadMarker returns the marker's creation time and whether it exists.
func (s *Store) ReadMarker() (at time.Time, exists bool, err error) {
	data, err := os.ReadFile(s.MarkerPath())
	if os.IsNotExist(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		// Unparseable marker still signals a crashed run; age unknown.
		return time.Time{}, true, nil
	}
	return time.Unix(secs, 0), true, nil
}

// CreateMarker writes the in-progress marker with the given time.
func (s *Store) CreateMarker(at time.Time) error {
	data := strconv.FormatInt(at.Unix(), 10) + "\n"
	if err := os.WriteFile(s.MarkerPath(), []byte(data), 0o644); err != nil {
		return fmt.Errorf("write in-progress marker: %w", err)
	}
	return nil
}

// RemoveMarker deletes the in-progress marker.
func (s *Store) RemoveMarker() error {
	if err := os.Remove(s.MarkerPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove in-progress marker: %w", err)
	}
	return nil
}

// NewTrashPath returns a fresh disposable name for an evicted generation.
// Names are unique per eviction so a stale trash directory from an
// unfinished background delete never conflicts.
func (s *Store) NewTrashPath(t Tier, index int) string {
	name := fmt.Sprintf("%s.%d-%d%s", t.Name, index, time.Now().UnixNano(), trashSuffix)
	return filepath.Join(s.root, name)
}

// ReusePath returns the tier's reserved trash-reuse directory, used to
// turn an evict-and-recreate into a single rename.
func (s *Store) ReusePath(t Tier) string {
	return filepath.Join(s.root, t.Name+reuseSuffix)
}

// HasReuse reports whether a reuse directory is available for the tier.
func (s *Store) HasReuse(t Tier) bool {
	info, err := os.Lstat(s.ReusePath(t))
	return err == nil && info.IsDir()
}

// SweepTransients collects every transient directory for the recovery
// pass. Reuse directories are renamed to unique trash names first so a
// directory queued for deletion can never be adopted as a live
// generation afterwards. Returns the trash paths ready for deletion.
func (s *Store) SweepTransients() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("scan store: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, trashSuffix):
			paths = append(paths, filepath.Join(s.root, name))
		case strings.HasSuffix(name, reuseSuffix):
			trashName := fmt.Sprintf("%s-%d%s",
				strings.TrimSuffix(name, reuseSuffix), time.Now().UnixNano(), trashSuffix)
			trashPath := filepath.Join(s.root, trashName)
			if err := s.Rename(filepath.Join(s.root, name), trashPath); err != nil {
				return nil, err
			}
			paths = append(paths, trashPath)
		}
	}
	return paths, nil
}
