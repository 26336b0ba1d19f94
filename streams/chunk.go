// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package streams provides the two consumer-facing stream types a
// download produces: ChunkStream, the raw interleaved byte chunks as
// they arrive from however many sequential workers are in flight, and
// PartStream, the same data demultiplexed and reordered into contiguous,
// per-part order.
package streams

// Chunk is one piece of bytes read from a single part's underlying
// reader. Chunks belonging to different parts may be interleaved in
// arbitrary order on a ChunkStream; chunks within one part always arrive
// with consecutive ChunkIndex values starting at zero.
type Chunk struct {
	// PartIndex identifies which planned part this chunk belongs to.
	PartIndex uint64
	// ChunkIndex is this chunk's position within its part, starting at 0.
	ChunkIndex int
	// BlobOffset is this chunk's absolute offset within the whole
	// object, regardless of which sub-range was requested.
	BlobOffset uint64
	// RangeOffset is this chunk's offset within the requested range
	// (BlobOffset minus the range's starting offset), the coordinate
	// space output buffers (WriteBuffer, IntoSlice) are addressed in.
	RangeOffset uint64
	// Bytes is the chunk's payload.
	Bytes []byte
	// BytesLeft is the number of bytes still to be delivered for this
	// part after this chunk. It is zero exactly on the last chunk of a
	// part.
	BytesLeft uint64
}

// IsLast reports whether this is the final chunk of its part.
func (c Chunk) IsLast() bool {
	return c.BytesLeft == 0
}

// Len returns the number of bytes carried by this chunk.
func (c Chunk) Len() int {
	return len(c.Bytes)
}

// IsEmpty reports whether this chunk carries no bytes. An empty,
// IsLast chunk is used to signal a zero-length part.
func (c Chunk) IsEmpty() bool {
	return len(c.Bytes) == 0
}
