// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package streams

import (
	"bytes"
	"context"
	"testing"

	cerrors "github.com/medwards/condow/errors"
)

func feedChunks(chunks ...Chunk) (*ChunkStream, chan<- Item) {
	ch := make(chan Item, len(chunks)+1)
	for _, c := range chunks {
		ch <- Item{Chunk: c}
	}
	return NewChunkStream(ch, make(chan struct{}), NewBytesHint(uint64(totalLen(chunks)))), ch
}

func totalLen(chunks []Chunk) int {
	n := 0
	for _, c := range chunks {
		n += c.Len()
	}
	return n
}

func TestChunkStreamIntoSliceOrdersByRangeOffset(t *testing.T) {
	cs, ch := feedChunks(
		Chunk{RangeOffset: 5, Bytes: []byte("world"), BytesLeft: 0},
		Chunk{RangeOffset: 0, Bytes: []byte("hello"), BytesLeft: 5},
	)
	close(ch)

	got, err := cs.IntoSlice(context.Background())
	if err != nil {
		t.Fatalf("IntoSlice: %v", err)
	}
	if !bytes.Equal(got, []byte("helloworld")) {
		t.Fatalf("got %q, want %q", got, "helloworld")
	}
}

func TestChunkStreamIntoSlicePropagatesError(t *testing.T) {
	ch := make(chan Item, 2)
	ch <- Item{Chunk: Chunk{RangeOffset: 0, Bytes: []byte("ok"), BytesLeft: 1}}
	wantErr := cerrors.New(cerrors.Remote, "connection reset")
	ch <- Item{Err: wantErr}
	close(ch)
	cs := NewChunkStream(ch, make(chan struct{}), NewBytesHint(10))

	_, err := cs.IntoSlice(context.Background())
	if err != wantErr {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}

func TestChunkStreamNextRejectsReuseAfterClose(t *testing.T) {
	ch := make(chan Item)
	close(ch)
	cs := NewChunkStream(ch, make(chan struct{}), NewBytesHint(0))
	cs.Close()

	_, _, err := cs.Next(context.Background())
	if err == nil {
		t.Fatalf("expected an error reading a closed stream")
	}
	if cerrors.KindOf(err) != cerrors.Io {
		t.Fatalf("got kind %v, want Io", cerrors.KindOf(err))
	}
}

func TestChunkStreamWriteBufferRejectsTooSmallBuffer(t *testing.T) {
	cs, ch := feedChunks(Chunk{RangeOffset: 0, Bytes: []byte("0123456789"), BytesLeft: 0})
	close(ch)

	_, err := cs.WriteBuffer(context.Background(), make([]byte, 5))
	if err == nil {
		t.Fatalf("expected an error writing into an undersized buffer")
	}
}

func TestChunkStreamWriteBufferRejectsNonFreshStream(t *testing.T) {
	cs, ch := feedChunks(Chunk{RangeOffset: 0, Bytes: []byte("x"), BytesLeft: 0})
	close(ch)

	if _, _, err := cs.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := cs.WriteBuffer(context.Background(), make([]byte, 10)); err == nil {
		t.Fatalf("expected WriteBuffer to reject a stream already read from")
	}
}

func TestEmptyStreamYieldsNoChunks(t *testing.T) {
	cs := Empty()
	_, ok, err := cs.Next(context.Background())
	if ok || err != nil {
		t.Fatalf("got ok=%v err=%v, want an immediately exhausted stream", ok, err)
	}
	got, err := Empty().IntoSlice(context.Background())
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v, want empty slice and no error", got, err)
	}
}

func TestChunkStreamBytesHintReducesAsConsumed(t *testing.T) {
	cs, ch := feedChunks(
		Chunk{RangeOffset: 0, Bytes: []byte("01234"), BytesLeft: 5},
		Chunk{RangeOffset: 5, Bytes: []byte("56789"), BytesLeft: 0},
	)
	close(ch)

	before := cs.BytesHint()
	if exact, ok := before.Exact(); !ok || exact != 10 {
		t.Fatalf("initial hint = %+v, want exact 10", before)
	}
	if _, _, err := cs.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	after := cs.BytesHint()
	if exact, ok := after.Exact(); !ok || exact != 5 {
		t.Fatalf("hint after one chunk = %+v, want exact 5", after)
	}
}

func TestChunkStreamBytesHintZeroesUpperOnError(t *testing.T) {
	ch := make(chan Item, 1)
	ch <- Item{Err: cerrors.New(cerrors.Io, "broken")}
	close(ch)
	cs := NewChunkStream(ch, make(chan struct{}), NewBytesHint(100))

	if _, _, err := cs.Next(context.Background()); err == nil {
		t.Fatalf("expected an error")
	}
	hint := cs.BytesHint()
	if exact, ok := hint.Exact(); !ok || exact != 0 {
		t.Fatalf("hint after error = %+v, want exact 0", hint)
	}
}
