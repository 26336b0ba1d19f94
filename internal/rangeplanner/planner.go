// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package rangeplanner splits a resolved byte range into the fixed-size
// parts the concurrent dispatcher fans out across its worker pool.
package rangeplanner

import (
	"iter"

	"github.com/medwards/condow/client"
)

// PartRequest is one planned sub-range of a download, addressed by a
// dense, zero-based PartIndex.
type PartRequest struct {
	PartIndex   uint64
	Blob        client.ByteRange
	RangeOffset uint64
}

// NumParts returns the number of parts a resolved range splits into at
// the given part size. A zero-length range yields exactly one
// (zero-length) part, so a caller always receives at least one
// completion signal.
func NumParts(resolved client.ByteRange, partSize uint64) uint64 {
	length := uint64(resolved.Len())
	if partSize == 0 {
		partSize = 1
	}
	if length == 0 {
		return 1
	}
	n := length / partSize
	if length%partSize != 0 {
		n++
	}
	return n
}

// Plan lazily enumerates the parts resolved splits into at partSize
// bytes each. Every part but possibly the last has length exactly
// partSize; parts are contiguous, non-overlapping, and densely indexed
// from zero.
func Plan(resolved client.ByteRange, partSize uint64) iter.Seq[PartRequest] {
	return func(yield func(PartRequest) bool) {
		length := uint64(resolved.Len())
		if partSize == 0 {
			partSize = 1
		}
		if length == 0 {
			yield(PartRequest{PartIndex: 0, Blob: resolved, RangeOffset: 0})
			return
		}
		var idx uint64
		var offset uint64
		for offset < length {
			end := offset + partSize
			if end > length {
				end = length
			}
			part := PartRequest{
				PartIndex: idx,
				Blob: client.ByteRange{
					From: resolved.From + int64(offset),
					To:   resolved.From + int64(end) - 1,
				},
				RangeOffset: offset,
			}
			if !yield(part) {
				return
			}
			offset = end
			idx++
		}
	}
}
