// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package machinery

import (
	"context"
	"fmt"
	"io"

	"github.com/medwards/condow/client"
	cerrors "github.com/medwards/condow/errors"
	"github.com/medwards/condow/internal/rangeplanner"
	"github.com/medwards/condow/internal/retry"
	"github.com/medwards/condow/probe"
	"github.com/medwards/condow/streams"
)

const chunkReadSize = 256 * 1024

// Worker is one concurrency slot: a goroutine that drains its own
// buffered queue of planned parts, fetches each one (retrying whole
// requests via retry.Policy and resuming broken mid-streams via
// retry.ResumableStream), and emits Chunks onto the shared
// DownloaderContext. Grounded on the teacher's SequentialDownloader /
// downloader.fetcher, generalized from a single-capability Reader to a
// two-capability client.Client.
type Worker[L any] struct {
	cl      client.Client[L]
	loc     L
	policy  retry.Policy
	probe   probe.Probe
	reqCh   chan rangeplanner.PartRequest
	stopped chan struct{}
}

// NewWorker constructs a Worker with the given inbound queue capacity.
func NewWorker[L any](cl client.Client[L], loc L, policy retry.Policy, p probe.Probe, bufferSize int) *Worker[L] {
	return &Worker[L]{
		cl:      cl,
		loc:     loc,
		policy:  policy,
		probe:   p,
		reqCh:   make(chan rangeplanner.PartRequest, bufferSize),
		stopped: make(chan struct{}),
	}
}

// Enqueue attempts a non-blocking send of req onto the worker's queue.
// ok is true if the send succeeded. If it did not, full reports whether
// the queue was simply at capacity (try again later), and dead reports
// whether the worker has already exited (never retry; the dispatcher
// should route elsewhere or fail).
func (w *Worker[L]) Enqueue(req rangeplanner.PartRequest) (ok, full, dead bool) {
	select {
	case w.reqCh <- req:
		return true, false, false
	default:
	}
	select {
	case <-w.stopped:
		return false, false, true
	default:
		return false, true, false
	}
}

// Close signals the worker that no further parts will be enqueued; it
// will exit once its queue drains.
func (w *Worker[L]) Close() {
	close(w.reqCh)
}

// Run drains the worker's queue until it is closed and empty, the
// KillSwitch is armed, or ctx is cancelled. It always calls
// dctx.Close exactly once, as the outermost deferred operation, so
// that a recovered panic is reported before the counter decrements.
func (w *Worker[L]) Run(ctx context.Context, dctx *DownloaderContext, kill *KillSwitch) (err error) {
	defer close(w.stopped)
	var recovered any
	defer func() { dctx.Close(ctx, recovered) }()
	defer func() {
		if r := recover(); r != nil {
			recovered = r
		}
	}()

	for {
		if kill.IsArmed() {
			// A dequeued-but-unprocessed request is abandoned with the
			// specific message §4.3 prescribes; a worker with nothing
			// left queued returns without sending an error itself, and
			// its deferred DownloaderContext.Close then reports the exit
			// as incomplete (a non-blocking error push).
			select {
			case req, ok := <-w.reqCh:
				if !ok {
					dctx.MarkSuccessful()
					return nil
				}
				err := cerrors.New(cerrors.Other, "another download task already failed")
				w.probe.PartFailed(req.PartIndex, req.Blob, err)
				dctx.SendErr(ctx, err)
				return err
			default:
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-w.reqCh:
			if !ok {
				dctx.MarkSuccessful()
				return nil
			}
			if err := w.process(ctx, dctx, kill, req); err != nil {
				w.probe.PartFailed(req.PartIndex, req.Blob, err)
				dctx.SendErr(ctx, err)
				return err
			}
		}
	}
}

func (w *Worker[L]) process(ctx context.Context, dctx *DownloaderContext, kill *KillSwitch, req rangeplanner.PartRequest) error {
	w.probe.PartStarted(req.PartIndex, req.Blob)

	spec := client.DownloadSpec{Range: req.Blob}
	fetch := func(ctx context.Context, loc L, spec client.DownloadSpec) (io.ReadCloser, client.BytesHint, error) {
		return w.cl.Fetch(ctx, loc, spec)
	}

	onRetry := func(attempt int, err error) {
		w.probe.RetryAttempt(req.PartIndex, attempt, err)
	}

	rs, err := retry.Do(ctx, w.policy, onRetry, func(ctx context.Context) (*retry.ResumableStream[L], error) {
		rs, _, ferr := retry.NewResumableStream(ctx, w.policy, fetch, w.loc, spec, onRetry)
		return rs, ferr
	})
	if err != nil {
		return cerrors.WrapAs(cerrors.Remote, fmt.Sprintf("fetching part %d (%v)", req.PartIndex, req.Blob), err)
	}
	defer rs.Close()

	expected := uint64(req.Blob.Len())
	var received uint64
	chunkIndex := 0
	buf := make([]byte, chunkReadSize)

	for {
		if kill.IsArmed() {
			return nil
		}
		n, rerr := rs.Read(buf)
		if n > 0 {
			received += uint64(n)
			if received > expected {
				return cerrors.New(cerrors.Io, fmt.Sprintf("part %d: received more bytes than expected (%d > %d)", req.PartIndex, received, expected))
			}
			last := rerr == io.EOF || received == expected
			chunkStart := received - uint64(n)
			chunk := streams.Chunk{
				PartIndex:   req.PartIndex,
				ChunkIndex:  chunkIndex,
				BlobOffset:  uint64(req.Blob.From) + chunkStart,
				RangeOffset: req.RangeOffset + chunkStart,
				Bytes:       append([]byte(nil), buf[:n]...),
			}
			if last {
				chunk.BytesLeft = 0
			} else {
				chunk.BytesLeft = expected - received
			}
			dctx.SendChunk(ctx, chunk)
			w.probe.ChunkCompleted(req.PartIndex, chunkIndex, n)
			chunkIndex++
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return cerrors.Wrap(cerrors.Io, fmt.Sprintf("reading part %d", req.PartIndex), rerr)
		}
	}

	if received != expected {
		return cerrors.New(cerrors.Io, fmt.Sprintf("part %d: received wrong number of bytes: got %d, expected %d", req.PartIndex, received, expected))
	}
	if received == 0 {
		// Zero-length part: emit a single empty, last chunk so the
		// consumer still observes exactly one completion signal.
		dctx.SendChunk(ctx, streams.Chunk{PartIndex: req.PartIndex, ChunkIndex: 0, BlobOffset: uint64(req.Blob.From), RangeOffset: req.RangeOffset, BytesLeft: 0})
	}
	w.probe.PartCompleted(req.PartIndex, req.Blob, 0)
	return nil
}
