// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package machinery

import (
	"context"
	"iter"
	"sync/atomic"
	"time"

	"cloudeng.io/sync/errgroup"

	"github.com/medwards/condow/client"
	"github.com/medwards/condow/internal/rangeplanner"
	"github.com/medwards/condow/internal/retry"
	"github.com/medwards/condow/probe"
	"github.com/medwards/condow/streams"
)

// Run plans parts from resolved at partSize, dispatches them round-robin
// across concurrency Workers, and returns a ChunkStream the caller can
// start reading immediately; the workers and the dispatcher goroutine
// that feeds them continue to run in the background. Grounded on the
// teacher's CachingDownloader.runOnce (errgroup-managed generator plus
// fetchers) and the original's ConcurrentDownloader.download
// (round-robin dispatch with an attempt%n==0 queue-full sleep).
func Run[L any](ctx context.Context, cl client.Client[L], loc L, resolved client.ByteRange, partSize uint64, concurrency, bufferSize int, policy retry.Policy, buffersFullDelay time.Duration, p probe.Probe) (*streams.ChunkStream, error) {
	out := make(chan streams.Item, concurrency*bufferSize)
	done := make(chan struct{})
	kill := &KillSwitch{}

	workers := make([]*Worker[L], concurrency)
	for i := range workers {
		workers[i] = NewWorker(cl, loc, policy, p, bufferSize)
	}

	liveCounter := &atomic.Int64{}
	anyFail := &atomic.Bool{}
	start := time.Now()
	p.DownloadStarted()

	g, gctx := errgroup.WithContext(ctx)
	g = errgroup.WithConcurrency(g, concurrency+1)

	g.Go(func() error {
		return dispatch(gctx, workers, rangeplanner.Plan(resolved, partSize), kill, buffersFullDelay, p)
	})

	for _, w := range workers {
		w := w
		dctx := NewDownloaderContext(out, done, liveCounter, anyFail, kill, p, start)
		g.Go(func() error {
			return w.Run(gctx, dctx, kill)
		})
	}

	// Run is non-blocking from the caller's point of view: the
	// ChunkStream is handed back immediately and the errgroup drains in
	// the background. Per-part errors already reach the stream via
	// DownloaderContext.SendErr; the group's aggregate error is only
	// used to decide whether to arm the switch if something escaped
	// that path (e.g. the dispatcher itself failing to plan). The result
	// channel is closed only once the dispatcher and every worker have
	// returned, so no worker can send on a closed channel.
	go func() {
		if err := g.Wait(); err != nil {
			kill.Arm()
		}
		close(out)
	}()

	return streams.NewChunkStream(out, done, initialHint(resolved)), nil
}

func dispatch[L any](ctx context.Context, workers []*Worker[L], parts iter.Seq[rangeplanner.PartRequest], kill *KillSwitch, buffersFullDelay time.Duration, p probe.Probe) error {
	n := len(workers)
	next := 0
	var stopErr error
	parts(func(part rangeplanner.PartRequest) bool {
		attempt := 0
		for {
			if kill.IsArmed() {
				return false
			}
			idx := (next + attempt) % n
			ok, _, dead := workers[idx].Enqueue(part)
			if ok {
				next = idx + 1
				break
			}
			if dead {
				kill.Arm()
				stopErr = ctx.Err()
				return false
			}
			attempt++
			if attempt%n == 0 {
				p.QueueFull(attempt)
				select {
				case <-time.After(buffersFullDelay):
				case <-ctx.Done():
					stopErr = ctx.Err()
					return false
				}
			}
		}
		return true
	})
	for _, w := range workers {
		w.Close()
	}
	return stopErr
}

func initialHint(resolved client.ByteRange) streams.BytesHint {
	return streams.NewBytesHint(uint64(resolved.Len()))
}
