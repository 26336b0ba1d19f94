// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package streams

import (
	"context"
	"sync"

	"cloudeng.io/algo/container/heap"

	cerrors "github.com/medwards/condow/errors"
)

// bufferedChunk orders chunks first by the part they belong to, then by
// their position within that part, so the heap always pops whichever
// buffered chunk should be emitted next.
type bufferedChunk struct {
	Chunk
}

func (a bufferedChunk) Less(b bufferedChunk) bool {
	if a.PartIndex != b.PartIndex {
		return a.PartIndex < b.PartIndex
	}
	return a.ChunkIndex < b.ChunkIndex
}

// Part is one planned part's chunk sequence, always delivered to the
// consumer in increasing ChunkIndex order. Only one Part is open for
// reading at a time; call Next until ok is false (the part is
// exhausted) before asking PartStream for the next Part.
type Part struct {
	Index  uint64
	stream *PartStream
}

// Next returns the part's next chunk, or ok=false once the part's last
// chunk has already been returned.
func (p *Part) Next(ctx context.Context) (chunk Chunk, ok bool, err error) {
	return p.stream.nextChunkForPart(ctx, p.Index)
}

// PartStream demultiplexes a ChunkStream, whose chunks may arrive with
// parts interleaved in any order, into a sequence of Parts delivered in
// PartIndex order. Chunks belonging to a part not yet due are buffered
// in a min-heap keyed by (PartIndex, ChunkIndex) and drained once the
// stream's cursor reaches them.
type PartStream struct {
	src *ChunkStream

	mu        sync.Mutex
	buffered  heap.Heap[bufferedChunk]
	nextIndex uint64 // next (PartIndex, ChunkIndex) expected
	nextChunk int
	srcErr    error
	srcDone   bool
}

// NewPartStream constructs a PartStream over src. src must not have been
// read from yet; a PartStream built over a stream some other consumer
// has already begun draining would silently skip whatever that
// consumer already took.
func NewPartStream(src *ChunkStream) (*PartStream, error) {
	if !src.fresh {
		return nil, cerrors.New(cerrors.Io, "NewPartStream requires a fresh ChunkStream")
	}
	return &PartStream{src: src}, nil
}

// NextPart blocks until the next part (in PartIndex order) has started
// arriving, returning a Part handle to read its chunks, or ok=false once
// every part has been delivered.
func (ps *PartStream) NextPart(ctx context.Context) (part *Part, ok bool, err error) {
	c, has, err := ps.peekOrFill(ctx, ps.nextIndex, ps.nextChunk)
	if err != nil {
		return nil, false, err
	}
	if !has {
		return nil, false, nil
	}
	return &Part{Index: c.PartIndex, stream: ps}, true, nil
}

func (ps *PartStream) nextChunkForPart(ctx context.Context, partIndex uint64) (Chunk, bool, error) {
	c, has, err := ps.peekOrFill(ctx, partIndex, ps.nextChunk)
	if err != nil {
		return Chunk{}, false, err
	}
	if !has || c.PartIndex != partIndex {
		return Chunk{}, false, nil
	}
	ps.consume(c)
	return c.Chunk, true, nil
}

// peekOrFill returns the next buffered chunk once it matches
// (wantPart, wantChunk), pulling from the source stream and buffering
// out-of-order arrivals until it does.
func (ps *PartStream) peekOrFill(ctx context.Context, wantPart uint64, wantChunk int) (bufferedChunk, bool, error) {
	for {
		ps.mu.Lock()
		if ps.buffered.Len() > 0 {
			head := ps.buffered[0]
			if head.PartIndex == wantPart && head.ChunkIndex == wantChunk {
				ps.mu.Unlock()
				return head, true, nil
			}
		}
		if ps.srcErr != nil {
			err := ps.srcErr
			ps.mu.Unlock()
			return bufferedChunk{}, false, err
		}
		if ps.srcDone {
			ps.mu.Unlock()
			return bufferedChunk{}, false, nil
		}
		ps.mu.Unlock()

		chunk, more, err := ps.src.Next(ctx)
		ps.mu.Lock()
		switch {
		case err != nil:
			ps.srcErr = err
		case !more:
			ps.srcDone = true
		default:
			ps.buffered.Push(bufferedChunk{Chunk: chunk})
		}
		ps.mu.Unlock()
	}
}

func (ps *PartStream) consume(c bufferedChunk) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.buffered.Pop()
	if c.IsLast() {
		ps.nextIndex = c.PartIndex + 1
		ps.nextChunk = 0
	} else {
		ps.nextChunk = c.ChunkIndex + 1
	}
}
