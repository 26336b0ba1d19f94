// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package streams

import (
	"context"
	"testing"

	cerrors "github.com/medwards/condow/errors"
)

func TestPartStreamReordersInterleavedParts(t *testing.T) {
	ch := make(chan Item, 8)
	// Fed out of order: part 1's chunk arrives before part 0's.
	ch <- Item{Chunk: Chunk{PartIndex: 1, ChunkIndex: 0, Bytes: []byte("b0"), BytesLeft: 0}}
	ch <- Item{Chunk: Chunk{PartIndex: 0, ChunkIndex: 0, Bytes: []byte("a0"), BytesLeft: 2}}
	ch <- Item{Chunk: Chunk{PartIndex: 0, ChunkIndex: 1, Bytes: []byte("a1"), BytesLeft: 0}}
	close(ch)

	cs := NewChunkStream(ch, make(chan struct{}), NewBytesHintUnknown())
	ps, err := NewPartStream(cs)
	if err != nil {
		t.Fatalf("NewPartStream: %v", err)
	}

	part, ok, err := ps.NextPart(context.Background())
	if err != nil || !ok {
		t.Fatalf("NextPart: ok=%v err=%v", ok, err)
	}
	if part.Index != 0 {
		t.Fatalf("got part %d first, want part 0", part.Index)
	}
	var got []byte
	for {
		c, ok, err := part.Next(context.Background())
		if err != nil {
			t.Fatalf("part.Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, c.Bytes...)
	}
	if string(got) != "a0a1" {
		t.Fatalf("got %q, want %q", got, "a0a1")
	}

	part, ok, err = ps.NextPart(context.Background())
	if err != nil || !ok {
		t.Fatalf("NextPart (second): ok=%v err=%v", ok, err)
	}
	if part.Index != 1 {
		t.Fatalf("got part %d second, want part 1", part.Index)
	}
}

func TestPartStreamExhaustedReturnsFalse(t *testing.T) {
	ch := make(chan Item)
	close(ch)
	cs := NewChunkStream(ch, make(chan struct{}), NewBytesHintUnknown())
	ps, err := NewPartStream(cs)
	if err != nil {
		t.Fatalf("NewPartStream: %v", err)
	}
	_, ok, err := ps.NextPart(context.Background())
	if ok || err != nil {
		t.Fatalf("got ok=%v err=%v, want an immediately exhausted stream", ok, err)
	}
}

func TestPartStreamPropagatesSourceError(t *testing.T) {
	ch := make(chan Item, 1)
	wantErr := cerrors.New(cerrors.Remote, "boom")
	ch <- Item{Err: wantErr}
	close(ch)
	cs := NewChunkStream(ch, make(chan struct{}), NewBytesHintUnknown())
	ps, err := NewPartStream(cs)
	if err != nil {
		t.Fatalf("NewPartStream: %v", err)
	}
	_, _, err = ps.NextPart(context.Background())
	if err != wantErr {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}

func TestNewPartStreamRejectsNonFreshChunkStream(t *testing.T) {
	ch := make(chan Item)
	close(ch)
	cs := NewChunkStream(ch, make(chan struct{}), NewBytesHintUnknown())
	if _, _, err := cs.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := NewPartStream(cs); err == nil {
		t.Fatalf("expected NewPartStream to reject a stream already read from")
	}
}
