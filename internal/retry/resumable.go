// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package retry

import (
	"context"
	"io"

	"github.com/medwards/condow/client"
	cerrors "github.com/medwards/condow/errors"
)

// Fetcher issues one DownloadSpec fetch, the shape a ResumableStream
// reissues against when a stream breaks partway through.
type Fetcher[L any] func(ctx context.Context, loc L, spec client.DownloadSpec) (io.ReadCloser, client.BytesHint, error)

// ResumableStream wraps a part's reader so that a read error partway
// through the part is transparently retried by reissuing a fetch for
// only the unconsumed tail and resuming the copy, instead of surfacing
// the error to the part's consumer. This generalizes the teacher's
// whole-download reissue-outstanding-ranges loop
// (streaming_downloader.go's reissue/retryTracker) down to a single
// part's remaining bytes.
type ResumableStream[L any] struct {
	ctx     context.Context
	policy  Policy
	fetch   Fetcher[L]
	loc     L
	spec    client.DownloadSpec
	onRetry func(attempt int, err error)

	cur      io.ReadCloser
	consumed int64
	resumed  int
}

// NewResumableStream constructs a ResumableStream that will (re)issue
// fetch as needed to deliver spec's full byte range.
func NewResumableStream[L any](ctx context.Context, policy Policy, fetch Fetcher[L], loc L, spec client.DownloadSpec, onRetry func(attempt int, err error)) (*ResumableStream[L], client.BytesHint, error) {
	rs := &ResumableStream[L]{ctx: ctx, policy: policy, fetch: fetch, loc: loc, spec: spec, onRetry: onRetry}
	rd, hint, err := fetch(ctx, loc, spec)
	if err != nil {
		return nil, client.BytesHint{}, err
	}
	rs.cur = rd
	return rs, hint, nil
}

// Read implements io.Reader, reissuing the remaining byte range on a
// transient mid-stream error instead of surfacing it.
func (rs *ResumableStream[L]) Read(buf []byte) (int, error) {
	for {
		n, err := rs.cur.Read(buf)
		rs.consumed += int64(n)
		if err == nil || err == io.EOF {
			return n, err
		}
		// Resumption attempts are counted separately from the attempt
		// that established this stream in the first place (that one
		// already succeeded), and across every Read call on the stream:
		// MaxAttempts here bounds how many times a broken stream may be
		// reissued, so MaxAttempts==1 still allows exactly one
		// resumption, matching the request-retry layer's shared attempt
		// budget for the part (§4.2b).
		if rs.resumed >= rs.policy.MaxAttempts || !cerrors.IsTransient(cerrors.Wrap(cerrors.Io, "stream read failed", err)) {
			return n, err
		}
		rs.resumed++
		if rs.onRetry != nil {
			rs.onRetry(rs.resumed, err)
		}
		_ = rs.cur.Close()
		remaining := rs.remainingSpec()
		rd, rerr := rs.reissue(remaining)
		if rerr != nil {
			return n, rerr
		}
		rs.cur = rd
		if n > 0 {
			return n, nil
		}
	}
}

// reissue calls fetch for the given spec, recovering a panic inside the
// retried call the same way the request-retry layer does (policy.Do's
// callRecovered) but classified as an Io-kind stream error per §4.2(a):
// a panic during resumption terminates the surrounding stream rather
// than the whole worker.
func (rs *ResumableStream[L]) reissue(spec client.DownloadSpec) (rd io.ReadCloser, err error) {
	defer func() {
		if r := recover(); r != nil {
			rd = nil
			err = cerrors.New(cerrors.Io, "panicked while retrying")
		}
	}()
	rd, _, err = rs.fetch(rs.ctx, rs.loc, spec)
	return rd, err
}

// Close closes the current underlying reader.
func (rs *ResumableStream[L]) Close() error {
	if rs.cur == nil {
		return nil
	}
	return rs.cur.Close()
}

func (rs *ResumableStream[L]) remainingSpec() client.DownloadSpec {
	if rs.spec.Full {
		return rs.spec
	}
	br := rs.spec.Range
	return client.DownloadSpec{Range: client.ByteRange{From: br.From + rs.consumed, To: br.To}}
}
