// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package condow downloads large blobs from a remote object store by
// issuing many concurrent range requests against a single logical
// object and reassembling the results on the consumer side. The public
// surface is intentionally small: Size, DownloadChunks, Download, and a
// positioned Reader built on top of them.
package condow

import (
	"context"
	"fmt"
	"time"

	"github.com/medwards/condow/client"
	"github.com/medwards/condow/config"
	cerrors "github.com/medwards/condow/errors"
	"github.com/medwards/condow/internal/machinery"
	"github.com/medwards/condow/internal/retry"
	"github.com/medwards/condow/probe"
	"github.com/medwards/condow/reader"
	"github.com/medwards/condow/streams"
)

// Option configures a Condow instance. It is an alias of config.Option
// so callers configure a download the same way they would build a
// config.Config directly.
type Option = config.Option

// Condow drives downloads of objects located by values of type L against
// a single client.Client[L].
type Condow[L any] struct {
	client  client.Client[L]
	cfg     config.Config
	factory probe.Factory
}

// New constructs a Condow bound to cl, applying opts on top of the
// default configuration (itself overridable via CONDOW_-prefixed
// environment variables; see config.New).
func New[L any](cl client.Client[L], opts ...Option) (*Condow[L], error) {
	cfg, err := config.New(opts...)
	if err != nil {
		return nil, err
	}
	return &Condow[L]{
		client:  cl,
		cfg:     cfg,
		factory: probe.SlogFactory{Logger: cfg.Logger},
	}, nil
}

// WithProbeFactory overrides the Probe.Factory used to observe
// downloads; by default every download logs through the Config's
// Logger via probe.SlogFactory.
func (d *Condow[L]) WithProbeFactory(f probe.Factory) *Condow[L] {
	d.factory = f
	return d
}

// Size returns the total size in bytes of the object at loc, retried
// per the configured retry policy.
func (d *Condow[L]) Size(ctx context.Context, loc L) (int64, error) {
	policy := d.retryPolicy()
	size, err := retry.Do(ctx, policy, nil, func(ctx context.Context) (int64, error) {
		return d.client.Size(ctx, loc)
	})
	if err != nil {
		return 0, cerrors.WrapAs(cerrors.Remote, "fetching object size", err)
	}
	return size, nil
}

// DownloadChunks downloads r of the object at loc, returning the raw
// interleaved ChunkStream: chunks from different parts may arrive in
// any order relative to one another.
func (d *Condow[L]) DownloadChunks(ctx context.Context, loc L, r client.Range) (*streams.ChunkStream, error) {
	resolved, err := d.resolve(ctx, loc, r)
	if err != nil {
		return nil, err
	}
	if resolved.Len() == 0 {
		return streams.Empty(), nil
	}
	p := d.factory.New(fmt.Sprint(loc))
	return machinery.Run(ctx, d.client, loc, resolved, d.cfg.PartSizeBytes, d.cfg.MaxConcurrency, d.cfg.BufferSize, d.retryPolicy(), time.Duration(d.cfg.BuffersFullDelayMS)*time.Millisecond, p)
}

// Download downloads r of the object at loc, returning a PartStream:
// parts are delivered in order, each part's own chunks always in
// ChunkIndex order.
func (d *Condow[L]) Download(ctx context.Context, loc L, r client.Range) (*streams.PartStream, error) {
	cs, err := d.DownloadChunks(ctx, loc, r)
	if err != nil {
		return nil, err
	}
	return streams.NewPartStream(cs)
}

// Reader returns a positioned io.ReaderAt over the object at loc: each
// ReadAt call drives its own bounded download of exactly the requested
// span. ctx governs every ReadAt issued through the returned Reader.
func (d *Condow[L]) Reader(ctx context.Context, loc L) (*reader.Reader[L], error) {
	return reader.New(ctx, d, loc), nil
}

func (d *Condow[L]) resolve(ctx context.Context, loc L, r client.Range) (client.ByteRange, error) {
	needSize := r.NeedsSize()
	switch d.cfg.SizeMode {
	case config.SizeAlways:
		needSize = true
	case config.SizeOnlyIfRequired:
		// leave as r.NeedsSize()
	default:
		if d.cfg.AlwaysGetSize {
			needSize = true
		}
	}
	var size int64
	if needSize {
		s, err := d.Size(ctx, loc)
		if err != nil {
			return client.ByteRange{}, err
		}
		size = s
	}
	return r.Resolve(size)
}

func (d *Condow[L]) retryPolicy() retry.Policy {
	rc := d.cfg.Retry
	return retry.New(rc.MaxAttempts, time.Duration(rc.InitialDelayMS)*time.Millisecond, rc.DelayFactor, time.Duration(rc.MaxDelayMS)*time.Millisecond)
}
