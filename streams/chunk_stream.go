// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package streams

import (
	"context"
	"fmt"

	cerrors "github.com/medwards/condow/errors"
)

// Item is one slot on the channel that feeds a ChunkStream: either a
// successfully read Chunk, or a terminal error. Producers (the
// machinery package) construct Item values directly; consumers only
// ever see them through ChunkStream.Next.
type Item struct {
	Chunk Chunk
	Err   error
}

// ChunkStream is a single-consumer pull stream of Chunk values as they
// arrive from however many sequential workers a download is using.
// Chunks from different parts may interleave in any order; within one
// part they always arrive in ChunkIndex order.
//
// A ChunkStream must be closed by its consumer once it is no longer
// being read, which is how the download machinery learns the consumer
// has gone away (see internal/machinery.KillSwitch).
type ChunkStream struct {
	ch     <-chan Item
	done   chan struct{}
	hint   BytesHint
	closed bool
	fresh  bool
}

// NewChunkStream constructs a stream fed by ch, reporting hint as the
// initial bytes hint. done is closed by Close to signal upstream workers
// that the consumer has gone away.
func NewChunkStream(ch <-chan Item, done chan struct{}, hint BytesHint) *ChunkStream {
	return &ChunkStream{ch: ch, done: done, hint: hint, fresh: true}
}

// Empty returns a stream that yields no chunks and reports a zero hint,
// used for zero-length downloads.
func Empty() *ChunkStream {
	ch := make(chan Item)
	close(ch)
	return &ChunkStream{ch: ch, done: make(chan struct{}), hint: NewBytesHint(0), fresh: true}
}

// BytesHint returns the stream's current bytes hint. It is reduced as
// chunks are consumed and forced to exactly zero once an error has been
// observed.
func (s *ChunkStream) BytesHint() BytesHint {
	return s.hint
}

// Next blocks until the next chunk is available, the stream ends, an
// error occurs, or ctx is cancelled. ok is false once the stream is
// exhausted (with err nil) or permanently failed (with err non-nil).
func (s *ChunkStream) Next(ctx context.Context) (chunk Chunk, ok bool, err error) {
	if s.closed {
		return Chunk{}, false, cerrors.New(cerrors.Io, "read from a closed ChunkStream")
	}
	s.fresh = false
	select {
	case <-ctx.Done():
		return Chunk{}, false, ctx.Err()
	case item, more := <-s.ch:
		if !more {
			return Chunk{}, false, nil
		}
		if item.Err != nil {
			s.hint = NewBytesHint(0)
			s.closed = true
			return Chunk{}, false, item.Err
		}
		s.hint = s.hint.ReduceBy(uint64(item.Chunk.Len()))
		return item.Chunk, true, nil
	}
}

// Close signals upstream workers that this stream's consumer is done
// reading, regardless of whether the stream was fully drained. It is
// safe to call multiple times.
func (s *ChunkStream) Close() {
	s.closed = true
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// WriteBuffer drains the stream into buf, placing each chunk's bytes at
// its RangeOffset. buf must be at least as long as the stream's known
// lower bound; chunks landing beyond len(buf) are an error, mirroring
// the original implementation's bounds check rather than silently
// truncating a caller-supplied buffer.
func (s *ChunkStream) WriteBuffer(ctx context.Context, buf []byte) (int, error) {
	if !s.fresh {
		return 0, cerrors.New(cerrors.Io, "WriteBuffer requires a fresh ChunkStream")
	}
	if uint64(len(buf)) < s.hint.Lower {
		return 0, cerrors.New(cerrors.Io, fmt.Sprintf("buffer too small: %d bytes, need at least %d", len(buf), s.hint.Lower))
	}
	written := 0
	for {
		chunk, ok, err := s.Next(ctx)
		if err != nil {
			return written, err
		}
		if !ok {
			return written, nil
		}
		end := int(chunk.RangeOffset) + chunk.Len()
		if end > len(buf) {
			return written, cerrors.New(cerrors.Io, fmt.Sprintf("chunk at offset %d length %d exceeds buffer of size %d", chunk.RangeOffset, chunk.Len(), len(buf)))
		}
		n := copy(buf[chunk.RangeOffset:end], chunk.Bytes)
		written += n
	}
}

// IntoSlice drains the entire stream into a freshly allocated slice. When
// the stream's hint is exact, the slice is preallocated to that size;
// otherwise it grows as chunks arrive and any unwritten gaps (possible
// only when the hint underestimated the true size) are left zero-filled.
func (s *ChunkStream) IntoSlice(ctx context.Context) ([]byte, error) {
	if !s.fresh {
		return nil, cerrors.New(cerrors.Io, "IntoSlice requires a fresh ChunkStream")
	}
	if exact, ok := s.hint.Exact(); ok {
		buf := make([]byte, exact)
		n, err := s.WriteBuffer(ctx, buf)
		if err != nil {
			return nil, err
		}
		return buf[:n], nil
	}
	return s.intoSliceUnknownSize(ctx)
}

func (s *ChunkStream) intoSliceUnknownSize(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 0, s.hint.Lower)
	for {
		chunk, ok, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return buf, nil
		}
		end := int(chunk.RangeOffset) + chunk.Len()
		if end > len(buf) {
			grown := make([]byte, end)
			copy(grown, buf)
			buf = grown
		}
		copy(buf[chunk.RangeOffset:end], chunk.Bytes)
	}
}
