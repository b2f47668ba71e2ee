// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

// Package mirror wraps the external tree-mirroring tool and the in-process
// filesystem primitives the rotation engine depends on: the rsync contract,
// a hardlink tree cloner, and the same-filesystem probe.
//
// The engine only depends on the documented contract: the mirror must
// delete destination entries absent from the source, copy new or changed
// entries, hardlink unchanged entries from the given baseline, and support
// path exclusion. A non-zero exit status is non-fatal to the engine.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rotavault/rotavault/internal/logging"
)

// Request describes one invocation of the tree-mirroring contract.
type Request struct {
	// SourceRoot is the tree to mirror from.
	SourceRoot string

	// DestRoot is brought into full correspondence with SourceRoot.
	DestRoot string

	// Excludes are paths relative to SourceRoot that are skipped and left
	// untouched in the destination.
	Excludes []string

	// LinkBaseline, when set, is the path whose unchanged files are
	// hardlinked instead of copied: a sealed prior generation, or the
	// source tree itself when same-filesystem linking was confirmed.
	// Empty means plain copying with no link baseline.
	LinkBaseline string
}

// Mirrorer is the tree-mirroring collaborator.
type Mirrorer interface {
	// Mirror executes the contract and returns the tool's exit status.
	// err is non-nil only when the tool could not run at all or the
	// context was canceled; a non-zero exit status with nil err is the
	// tool's own report and is non-fatal to callers.
	Mirror(ctx context.Context, req Request) (exitStatus int, err error)
}

// Rsync runs an rsync-compatible binary to fulfill the mirror contract.
type Rsync struct {
	// Command is the binary to execute.
	Command string

	// ExtraArgs are appended after the computed arguments.
	ExtraArgs []string

	// Timeout bounds one invocation. 0 means unbounded.
	Timeout time.Duration
}

// NewRsync creates an Rsync mirrorer.
func NewRsync(command string, extraArgs []string, timeout time.Duration) *Rsync {
	if command == "" {
		command = "rsync"
	}
	return &Rsync{Command: command, ExtraArgs: extraArgs, Timeout: timeout}
}

// Args computes the rsync argument list for a request.
func (r *Rsync) Args(req Request) []string {
	args := []string{"--archive", "--delete"}
	for _, e := range req.Excludes {
		// Leading slash anchors the pattern to the transfer root.
		args = append(args, "--exclude=/"+e)
	}
	if req.LinkBaseline != "" {
		args = append(args, "--link-dest="+req.LinkBaseline)
	}
	args = append(args, r.ExtraArgs...)
	// Trailing slash mirrors the source's contents, not the directory.
	args = append(args, req.SourceRoot+"/", req.DestRoot)
	return args
}

// Mirror runs the tool. The subprocess is killed when ctx is canceled or
// the timeout elapses, and the cancellation is reported as an error so the
// caller can leave crash-recovery state in place.
func (r *Rsync) Mirror(ctx context.Context, req Request) (int, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := r.Args(req)
	logging.Debug().Str("command", r.Command).Strs("args", args).Msg("invoking mirror tool")

	cmd := exec.CommandContext(ctx, r.Command, args...)
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	if ctx.Err() != nil {
		return -1, fmt.Errorf("mirror canceled: %w", ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// The tool ran and reported a problem; per contract this is the
		// caller's warning, not our error.
		return exitErr.ExitCode(), nil
	}

	return -1, fmt.Errorf("mirror tool %s failed to run: %w", r.Command, err)
}
