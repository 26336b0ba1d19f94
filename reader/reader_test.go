// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package reader

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/medwards/condow/client"
	"github.com/medwards/condow/streams"
)

// fakeDownloader serves ReadAt requests directly out of an in-memory
// object, letting these tests exercise Reader's offset arithmetic
// without a real Condow instance.
type fakeDownloader struct {
	data  []byte
	calls []client.ByteRange
}

func (f *fakeDownloader) Size(_ context.Context, _ string) (int64, error) {
	return int64(len(f.data)), nil
}

func (f *fakeDownloader) DownloadChunks(_ context.Context, _ string, r client.Range) (*streams.ChunkStream, error) {
	resolved, err := r.Resolve(int64(len(f.data)))
	if err != nil {
		return nil, err
	}
	f.calls = append(f.calls, resolved)
	ch := make(chan streams.Item, 1)
	n := resolved.Len()
	if n > 0 {
		ch <- streams.Item{Chunk: streams.Chunk{
			RangeOffset: 0,
			Bytes:       append([]byte(nil), f.data[resolved.From:resolved.To+1]...),
			BytesLeft:   0,
		}}
	}
	close(ch)
	return streams.NewChunkStream(ch, make(chan struct{}), streams.NewBytesHint(uint64(n))), nil
}

func TestReaderReadAtReturnsRequestedSpan(t *testing.T) {
	d := &fakeDownloader{data: []byte("0123456789")}
	r := New(context.Background(), d, "obj")

	buf := make([]byte, 4)
	n, err := r.ReadAt(buf, 3)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 4 || !bytes.Equal(buf, []byte("3456")) {
		t.Fatalf("got %q (n=%d), want %q (n=4)", buf, n, "3456")
	}
	if len(d.calls) != 1 || d.calls[0] != (client.ByteRange{From: 3, To: 6}) {
		t.Fatalf("DownloadChunks called with %v, want exactly one call for [3,6]", d.calls)
	}
}

func TestReaderReadAtShortReadReportsEOF(t *testing.T) {
	d := &fakeDownloader{data: []byte("0123456789")}
	r := New(context.Background(), d, "obj")

	buf := make([]byte, 10)
	n, err := r.ReadAt(buf, 5)
	if err != io.EOF {
		t.Fatalf("got err=%v, want io.EOF", err)
	}
	if n != 5 || !bytes.Equal(buf[:n], []byte("56789")) {
		t.Fatalf("got %q (n=%d), want %q (n=5)", buf[:n], n, "56789")
	}
	// The requested range must be clamped to the object's size before
	// being issued, not passed through as the unsatisfiable [5,14].
	if len(d.calls) != 1 || d.calls[0] != (client.ByteRange{From: 5, To: 9}) {
		t.Fatalf("DownloadChunks called with %v, want exactly one clamped call for [5,9]", d.calls)
	}
}

func TestReaderReadAtOffsetAtOrPastEOFReturnsEOFWithoutDownloading(t *testing.T) {
	d := &fakeDownloader{data: []byte("0123456789")}
	r := New(context.Background(), d, "obj")

	buf := make([]byte, 4)
	n, err := r.ReadAt(buf, 10)
	if n != 0 || err != io.EOF {
		t.Fatalf("got n=%d err=%v, want 0,io.EOF", n, err)
	}
	if len(d.calls) != 0 {
		t.Fatalf("a ReadAt at or past EOF should not invoke DownloadChunks")
	}
}

func TestReaderReadAtZeroLengthBufferIsANoop(t *testing.T) {
	d := &fakeDownloader{data: []byte("hello")}
	r := New(context.Background(), d, "obj")
	n, err := r.ReadAt(nil, 0)
	if n != 0 || err != nil {
		t.Fatalf("got n=%d err=%v, want 0,nil", n, err)
	}
	if len(d.calls) != 0 {
		t.Fatalf("a zero-length ReadAt should not invoke the downloader")
	}
}

func TestReaderSectionReaderReadsSequentially(t *testing.T) {
	d := &fakeDownloader{data: []byte("abcdefghij")}
	r := New(context.Background(), d, "obj")
	sr := r.SectionReader(2, 5)

	got, err := io.ReadAll(sr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, []byte("cdefg")) {
		t.Fatalf("got %q, want %q", got, "cdefg")
	}
}
