// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package machinery

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	cerrors "github.com/medwards/condow/errors"
	"github.com/medwards/condow/probe"
	"github.com/medwards/condow/streams"
)

// DownloaderContext is the per-worker handle into one download's shared
// state: the channel chunks and errors flow out on, the live-worker
// counter every worker decrements when it exits, the KillSwitch, and the
// Probe events are reported to.
//
// Close implements the completion accounting the original implementation
// gets for free from Rust's Drop: every worker must `defer` a call to
// Close in its outermost frame. A worker that exits without having
// called MarkSuccessful is treated as failed: the switch is armed and a
// terminal error is pushed downstream. Whichever worker's Close
// observes the live-worker counter reach zero emits exactly one of
// Probe.DownloadCompleted / Probe.DownloadFailed.
type DownloaderContext struct {
	out     chan<- streams.Item
	done    <-chan struct{}
	counter *atomic.Int64
	anyFail *atomic.Bool
	kill    *KillSwitch
	probe   probe.Probe
	start   time.Time

	completed bool
}

// NewDownloaderContext constructs one worker's handle into a shared
// download. counter and anyFail are shared across every worker of the
// same download and must be the same pointers passed to each.
func NewDownloaderContext(out chan<- streams.Item, done <-chan struct{}, counter *atomic.Int64, anyFail *atomic.Bool, kill *KillSwitch, p probe.Probe, start time.Time) *DownloaderContext {
	counter.Add(1)
	return &DownloaderContext{out: out, done: done, counter: counter, anyFail: anyFail, kill: kill, probe: p, start: start}
}

// SendChunk delivers chunk downstream, or arms the switch and drops it
// if the consumer has already gone away (done closed) or ctx is
// cancelled.
func (c *DownloaderContext) SendChunk(ctx context.Context, chunk streams.Chunk) {
	select {
	case c.out <- streams.Item{Chunk: chunk}:
	case <-c.done:
		c.kill.Arm()
	case <-ctx.Done():
		c.kill.Arm()
	}
}

// SendErr arms the switch and delivers a terminal error downstream. It
// marks the context completed so the deferred Close does not also
// report this worker as having exited without completing its work,
// which would push a second error item (see §8 invariant 5).
func (c *DownloaderContext) SendErr(ctx context.Context, err error) {
	c.anyFail.Store(true)
	c.kill.Arm()
	c.completed = true
	select {
	case c.out <- streams.Item{Err: err}:
	case <-c.done:
	case <-ctx.Done():
	}
}

// MarkSuccessful records that this worker finished its assigned work
// without error, so Close does not treat the exit as a failure.
func (c *DownloaderContext) MarkSuccessful() {
	c.completed = true
}

// Close must be deferred by the worker goroutine that owns this
// context, as the outermost deferred call, so that a recovered panic
// (see Worker.Run) is visible here via recovered != nil. When the last
// live worker of the download calls Close, exactly one terminal Probe
// event is emitted.
func (c *DownloaderContext) Close(ctx context.Context, recovered any) {
	switch {
	case recovered != nil:
		c.probe.PanicDetected(recovered)
		c.SendErr(ctx, &cerrors.Error{Kind: cerrors.Other, Msg: "download ended unexpectedly due to a panic", Cause: fmt.Errorf("%v", recovered)})
	case !c.completed:
		c.kill.Arm()
		c.anyFail.Store(true)
		select {
		case c.out <- streams.Item{Err: cerrors.New(cerrors.Other, "worker exited before completing its assigned work")}:
		default:
		}
	}
	if c.counter.Add(-1) == 0 {
		elapsed := time.Since(c.start)
		if c.anyFail.Load() {
			c.probe.DownloadFailed(elapsed, cerrors.New(cerrors.Other, "download did not complete successfully"))
		} else {
			c.probe.DownloadCompleted(elapsed)
		}
	}
}
