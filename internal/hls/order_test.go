package hls

import (
	"context"
	"testing"
	"time"

	"github.com/valyala/bytebufferpool"
)

func bufOf(s string) *bytebufferpool.ByteBuffer {
	b := bytebufferpool.Get()
	b.WriteString(s)
	return b
}

func TestReorderEmitsInAscendingIndexOrder(t *testing.T) {
	d := &Downloader{
		raw: make(chan indexedFragment, 8),
		out: make(chan []byte),
	}

	go d.reorder(context.Background())

	// Feed fragments out of arrival order: 2, 0, 1.
	d.raw <- indexedFragment{index: 2, data: bufOf("c")}
	d.raw <- indexedFragment{index: 0, data: bufOf("a")}
	d.raw <- indexedFragment{index: 1, data: bufOf("b")}
	close(d.raw)

	want := []string{"a", "b", "c"}
	for i, w := range want {
		select {
		case got, ok := <-d.out:
			if !ok {
				t.Fatalf("out closed early at index %d", i)
			}
			if string(got) != w {
				t.Errorf("fragment %d = %q, want %q", i, got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for fragment %d", i)
		}
	}

	if _, ok := <-d.out; ok {
		t.Fatal("expected out to be closed once every fragment was emitted")
	}
}

func TestReorderDrainsLeftoverHeapWhenUpstreamCloses(t *testing.T) {
	d := &Downloader{
		raw: make(chan indexedFragment, 8),
		out: make(chan []byte),
	}

	done := make(chan struct{})
	go func() {
		d.reorder(context.Background())
		close(done)
	}()

	// Index 1 arrives but its predecessor 0 never does (simulating a
	// fragment that was permanently lost); raw closing, as the upstream
	// pipeline does once a cancelled context stops all producers, must
	// still let reorder return instead of leaking the goroutine.
	d.raw <- indexedFragment{index: 1, data: bufOf("b")}
	close(d.raw)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reorder did not return once raw closed with a pending gap")
	}

	if _, ok := <-d.out; ok {
		t.Fatal("expected out to be closed with no fragments emitted")
	}
}

func TestReorderCancellationUnblocksPendingEmit(t *testing.T) {
	d := &Downloader{
		raw: make(chan indexedFragment, 8),
		out: make(chan []byte), // unbuffered: nobody reads it in this test
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.reorder(ctx)
		close(done)
	}()

	// index 0 is immediately ready to emit; with no reader on d.out the
	// send blocks until ctx is cancelled.
	d.raw <- indexedFragment{index: 0, data: bufOf("a")}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reorder did not return after cancellation while blocked on a send")
	}
}
