// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package reader adapts a condow download into a positioned, random
// access io.ReaderAt, the fourth operation of the public surface
// alongside Size, DownloadChunks and Download: every ReadAt call issues
// its own bounded download of exactly the requested span and blocks
// until that span is fully assembled into the caller's buffer, the same
// "one request per read" shape io.SectionReader gives a plain io.Reader.
package reader

import (
	"context"
	"io"
	"sync"

	"github.com/medwards/condow/client"
	"github.com/medwards/condow/streams"
)

// Downloader is the subset of Condow's surface a Reader needs.
// condow.Condow[L] satisfies it directly; tests can supply a narrower
// fake. Size is required, not just DownloadChunks: ReadAt must clamp
// its requested span to the object's actual length before issuing a
// range request, since under the default SizeMode an over-long
// ClosedRange reaches the workers unclamped, and a part that yields
// fewer bytes than its range covers fails with "received wrong number
// of bytes" instead of producing the short read io.ReaderAt callers
// expect.
type Downloader[L any] interface {
	Size(ctx context.Context, loc L) (int64, error)
	DownloadChunks(ctx context.Context, loc L, r client.Range) (*streams.ChunkStream, error)
}

// Reader is an io.ReaderAt over a single object located by loc. Each
// ReadAt drives its own independent download and shares no mutable
// state with any other call beyond the lazily-fetched, once-cached
// object size, which is safe for concurrent use via sync.Once.
type Reader[L any] struct {
	ctx context.Context
	d   Downloader[L]
	loc L

	sizeOnce sync.Once
	size     int64
	sizeErr  error
}

// New wraps d's downloads of loc as an io.ReaderAt. ctx governs every
// ReadAt call made through the returned Reader.
func New[L any](ctx context.Context, d Downloader[L], loc L) *Reader[L] {
	return &Reader[L]{ctx: ctx, d: d, loc: loc}
}

// ReadAt implements io.ReaderAt: it downloads exactly len(p) bytes
// starting at off and copies them into p. Per the io.ReaderAt contract,
// a short read (the object ends before p is filled) is reported as
// io.EOF alongside however many bytes were actually available. The
// requested span is clamped to the object's size (fetched once and
// cached) before the range is issued, so a read that runs past EOF
// never reaches the download machinery as an invalid, unsatisfiable
// range.
func (r *Reader[L]) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	r.sizeOnce.Do(func() {
		r.size, r.sizeErr = r.d.Size(r.ctx, r.loc)
	})
	if r.sizeErr != nil {
		return 0, r.sizeErr
	}
	if off >= r.size {
		return 0, io.EOF
	}
	end := off + int64(len(p)) - 1
	if end > r.size-1 {
		end = r.size - 1
	}
	cs, err := r.d.DownloadChunks(r.ctx, r.loc, client.ClosedRange{From: off, To: end})
	if err != nil {
		return 0, err
	}
	n, err := cs.WriteBuffer(r.ctx, p[:end-off+1])
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// SectionReader returns an io.Reader (and io.Seeker, via
// io.NewSectionReader) over exactly [off, off+n) of the object,
// mirroring io.SectionReader's role of presenting a positioned span of
// a larger resource as a plain sequential stream.
func (r *Reader[L]) SectionReader(off, n int64) *io.SectionReader {
	return io.NewSectionReader(r, off, n)
}
