// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

// Package janitor deletes evicted snapshot directories in the background.
//
// Deleting a large hardlink tree touches millions of inodes and must
// never sit on the rotation path: renames keep the store consistent in
// microseconds while the janitor reclaims the space later, paced to keep
// disk pressure bounded.
package janitor

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/rotavault/rotavault/internal/logging"
	"github.com/rotavault/rotavault/internal/metrics"
)

// Collector queues trash directories and removes them asynchronously.
// It implements snapshot.TrashCollector and suture.Service.
type Collector struct {
	queue   chan string
	limiter *rate.Limiter

	// overflow counts enqueues that moved to a background goroutine
	// because the queue was full; Drain must not return while one is
	// still in flight.
	overflow atomic.Int64
}

// New creates a collector. queueSize bounds the number of pending
// deletions accepted without spawning an overflow goroutine.
// deletesPerMinute paces removals; 0 disables pacing.
func New(queueSize, deletesPerMinute int) *Collector {
	if queueSize <= 0 {
		queueSize = 64
	}
	limit := rate.Inf
	if deletesPerMinute > 0 {
		limit = rate.Limit(float64(deletesPerMinute) / 60)
	}
	return &Collector{
		queue:   make(chan string, queueSize),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Collect schedules a directory for deletion. It never blocks the
// caller: when the queue is full the enqueue moves to a goroutine, so
// rotation latency stays independent of deletion backlog.
func (c *Collector) Collect(path string) {
	select {
	case c.queue <- path:
		metrics.TrashQueueDepth.Set(float64(len(c.queue)))
	default:
		logging.Warn().Str("path", path).Msg("trash queue full, enqueueing in background")
		c.overflow.Add(1)
		go func() {
			c.queue <- path
			metrics.TrashQueueDepth.Set(float64(len(c.queue)))
			c.overflow.Add(-1)
		}()
	}
}

// Serve consumes the queue until ctx is canceled. Run under a suture
// supervisor in daemon mode.
func (c *Collector) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path := <-c.queue:
			metrics.TrashQueueDepth.Set(float64(len(c.queue)))
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			c.remove(path)
		}
	}
}

// Drain deletes everything queued so far and returns. One-shot runs call
// this before exit; pacing is skipped because nothing else is competing
// for the disk at that point. Drain also waits out in-flight overflow
// enqueues so a directory handed to Collect can never survive it.
func (c *Collector) Drain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path := <-c.queue:
			metrics.TrashQueueDepth.Set(float64(len(c.queue)))
			c.remove(path)
		default:
			if c.overflow.Load() == 0 {
				return nil
			}
			// A background enqueue is in flight; give it a moment
			// to land on the queue.
			time.Sleep(time.Millisecond)
		}
	}
}

// remove deletes one trash directory.
func (c *Collector) remove(path string) {
	start := time.Now()
	if err := os.RemoveAll(path); err != nil {
		metrics.TrashDeletes.WithLabelValues("error").Inc()
		logging.Err(err).Str("path", path).Msg("trash deletion failed")
		return
	}
	metrics.TrashDeletes.WithLabelValues("ok").Inc()
	logging.Debug().Str("path", path).Dur("elapsed", time.Since(start)).Msg("trash deleted")
}

// String names the service for supervisor logs.
func (c *Collector) String() string {
	return "janitor"
}
