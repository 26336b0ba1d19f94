// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package retry implements condow's two retry layers: Policy retries a
// whole request (Client.Size or Client.Fetch) on a transient failure,
// and ResumableStream retries the unconsumed tail of an in-flight part
// when the stream reading it breaks partway through.
//
// Policy is grounded on the teacher's ratecontrol.ExponentialBackoff,
// but that type's plain doubling has no jitter or ceiling. condow's
// retry budget is shared across many concurrent parts hitting the same
// remote store, so thundering-herd retries are a real failure mode the
// teacher's single-reader downloader doesn't need to guard against;
// Policy layers full jitter and a MaxDelay cap on top of the same
// doubling step instead of reusing ratecontrol.Backoff directly (see
// DESIGN.md).
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	cerrors "github.com/medwards/condow/errors"
)

// Policy retries a unary operation according to a bounded exponential
// backoff with full jitter.
type Policy struct {
	MaxAttempts int
	Initial     time.Duration
	Factor      float64
	MaxDelay    time.Duration
}

// New constructs a Policy from the given tunables.
func New(maxAttempts int, initial time.Duration, factor float64, maxDelay time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, Initial: initial, Factor: factor, MaxDelay: maxDelay}
}

// Do invokes fn, retrying while the returned error is transient per
// errors.IsTransient, up to MaxAttempts total attempts. A panic inside
// fn is recovered and converted into an Io-kind "panicked while
// retrying" error that is returned at once, without further attempts.
func Do[T any](ctx context.Context, p Policy, onRetry func(attempt int, err error), fn func(context.Context) (T, error)) (result T, err error) {
	delay := p.Initial
	for attempt := 1; ; attempt++ {
		var panicked bool
		result, panicked, err = callRecovered(ctx, fn)
		if err == nil {
			return result, nil
		}
		if panicked || attempt >= p.MaxAttempts || !cerrors.IsTransient(err) {
			return result, err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		wait := fullJitter(delay)
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(wait):
		}
		delay = nextDelay(delay, p.Factor, p.MaxDelay)
	}
}

func callRecovered[T any](ctx context.Context, fn func(context.Context) (T, error)) (result T, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			// §4.2(a): a panic while retrying terminates the surrounding
			// stream with Io kind, the same classification
			// ResumableStream.reissue uses for a panic during stream
			// resumption.
			panicked = true
			err = cerrors.New(cerrors.Io, "panicked while retrying")
		}
	}()
	result, err = fn(ctx)
	return result, false, err
}

func nextDelay(cur time.Duration, factor float64, max time.Duration) time.Duration {
	next := time.Duration(float64(cur) * factor)
	if max > 0 && next > max {
		return max
	}
	return next
}

// fullJitter picks a uniformly random duration in [0, d), the standard
// "full jitter" strategy for spreading out retries across many
// concurrently-retrying callers.
func fullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d)))
}
