// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package client defines the contract a remote object store adapter must
// satisfy to be driven by the condow download machinery.
package client

import (
	"context"
	"fmt"
	"io"

	cerrors "github.com/medwards/condow/errors"
)

// ByteRange is an inclusive byte range, both ends included, matching the
// HTTP Range header convention condow is built around.
type ByteRange struct {
	From int64
	To   int64
}

// Len returns the number of bytes covered by br. A range with To < From
// has length 0.
func (br ByteRange) Len() int64 {
	if br.To < br.From {
		return 0
	}
	return br.To - br.From + 1
}

func (br ByteRange) String() string {
	return fmt.Sprintf("[%d,%d]", br.From, br.To)
}

// Range is the range expression a caller passes to a download operation.
// Exactly one of the concrete kinds below should be used; FullRange asks
// for the whole object.
type Range interface {
	// Resolve turns the range expression into a concrete ByteRange given
	// the object's total size. FullRange, OpenRange and SuffixRange need
	// the real size to resolve their end; a ClosedRange uses it only to
	// clamp, and is left unclamped when size is 0 (not fetched).
	Resolve(size int64) (ByteRange, error)
	// NeedsSize reports whether this range cannot be resolved without
	// first knowing the object's size.
	NeedsSize() bool
}

// FullRange requests the entire object.
type FullRange struct{}

func (FullRange) Resolve(size int64) (ByteRange, error) {
	if size <= 0 {
		return ByteRange{}, cerrors.New(cerrors.InvalidRange, "object is empty")
	}
	return ByteRange{From: 0, To: size - 1}, nil
}

func (FullRange) NeedsSize() bool { return true }

// ClosedRange requests the inclusive range [From, To].
type ClosedRange struct {
	From, To int64
}

func (r ClosedRange) Resolve(size int64) (ByteRange, error) {
	if r.From < 0 || r.To < r.From {
		return ByteRange{}, cerrors.New(cerrors.InvalidRange, fmt.Sprintf("invalid range %d-%d", r.From, r.To))
	}
	to := r.To
	if size > 0 && to > size-1 {
		to = size - 1
	}
	if size > 0 && r.From > size-1 {
		// A closed range lying entirely past the object's end resolves
		// to an empty range rather than an error, per spec.md §4.1.
		return ByteRange{From: size, To: size - 1}, nil
	}
	return ByteRange{From: r.From, To: to}, nil
}

func (r ClosedRange) NeedsSize() bool { return false }

// OpenRange requests everything from From to the end of the object.
type OpenRange struct {
	From int64
}

func (r OpenRange) Resolve(size int64) (ByteRange, error) {
	if r.From < 0 {
		return ByteRange{}, cerrors.New(cerrors.InvalidRange, fmt.Sprintf("negative range start %d", r.From))
	}
	if size > 0 && r.From > size-1 {
		return ByteRange{}, cerrors.New(cerrors.InvalidRange, fmt.Sprintf("range start %d beyond object size %d", r.From, size))
	}
	return ByteRange{From: r.From, To: size - 1}, nil
}

func (r OpenRange) NeedsSize() bool { return true }

// SuffixRange requests the last Last bytes of the object. It can never be
// resolved without knowing the object's size.
type SuffixRange struct {
	Last int64
}

func (r SuffixRange) Resolve(size int64) (ByteRange, error) {
	if r.Last <= 0 {
		return ByteRange{}, cerrors.New(cerrors.InvalidRange, fmt.Sprintf("invalid suffix length %d", r.Last))
	}
	from := size - r.Last
	if from < 0 {
		from = 0
	}
	return ByteRange{From: from, To: size - 1}, nil
}

func (r SuffixRange) NeedsSize() bool { return true }

// DownloadSpec describes a single fetch issued by the Sequential Worker:
// a byte range within the object, or the entire object when Full is set.
type DownloadSpec struct {
	Range ByteRange
	Full  bool
}

// Client is the contract a remote object store adapter implements.
// Implementations are driven concurrently: Size and Fetch may both be
// called from multiple goroutines for the same location at once.
type Client[L any] interface {
	// Size returns the total size, in bytes, of the object at loc.
	Size(ctx context.Context, loc L) (int64, error)

	// Fetch opens a reader over the given DownloadSpec of loc. The
	// returned BytesHint describes how many bytes the reader is
	// expected to yield; callers must Close the reader.
	Fetch(ctx context.Context, loc L, spec DownloadSpec) (io.ReadCloser, BytesHint, error)
}

// BytesHint describes a lower bound, and optionally an exact upper bound,
// on the number of bytes remaining to be read from a Fetch result. It
// lives in this package (rather than streams, which depends on it) so
// that Client implementations need not import the streams package.
//
// A nil Upper means the exact count is not known; Lower is always a
// valid (possibly conservative) floor.
type BytesHint struct {
	Lower uint64
	Upper *uint64
}

// NewBytesHint constructs a hint with the same known lower and upper
// bound, i.e. an exact byte count.
func NewBytesHint(exact uint64) BytesHint {
	u := exact
	return BytesHint{Lower: exact, Upper: &u}
}

// NewBytesHintAtMost constructs a hint whose lower bound is zero and
// whose upper bound is the given ceiling.
func NewBytesHintAtMost(upper uint64) BytesHint {
	u := upper
	return BytesHint{Lower: 0, Upper: &u}
}

// NewBytesHintUnknown constructs a hint with no usable bound at all.
func NewBytesHintUnknown() BytesHint {
	return BytesHint{}
}

// IsExact reports whether the hint pins down the exact remaining byte
// count (Lower == *Upper).
func (h BytesHint) IsExact() bool {
	return h.Upper != nil && *h.Upper == h.Lower
}

// Exact returns the exact remaining byte count and true if IsExact,
// otherwise 0 and false.
func (h BytesHint) Exact() (uint64, bool) {
	if h.IsExact() {
		return h.Lower, true
	}
	return 0, false
}

// ReduceBy returns a new hint reflecting that n further bytes have been
// consumed. Lower saturates at zero. If n exceeds Upper, Upper degrades
// to unknown (nil) rather than going negative — preserved exactly as an
// open design question: callers must not assume the hint survives a
// consumption that outpaces it (see DESIGN.md).
func (h BytesHint) ReduceBy(n uint64) BytesHint {
	nh := h
	if n >= nh.Lower {
		nh.Lower = 0
	} else {
		nh.Lower -= n
	}
	if nh.Upper != nil {
		if n > *nh.Upper {
			nh.Upper = nil
		} else {
			u := *nh.Upper - n
			nh.Upper = &u
		}
	}
	return nh
}

// Combine merges two hints describing back-to-back spans, summing lower
// bounds and summing upper bounds only when both are known.
func (h BytesHint) Combine(o BytesHint) BytesHint {
	c := BytesHint{Lower: h.Lower + o.Lower}
	if h.Upper != nil && o.Upper != nil {
		u := *h.Upper + *o.Upper
		c.Upper = &u
	}
	return c
}

// ZeroUpper returns a copy of h with Upper forced to exactly zero,
// irrespective of Lower.
func (h BytesHint) ZeroUpper() BytesHint {
	var z uint64
	return BytesHint{Lower: h.Lower, Upper: &z}
}
