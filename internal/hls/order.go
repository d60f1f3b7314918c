package hls

import (
	"bufio"
	"container/heap"
	"context"
	"io"
	"strings"

	"github.com/valyala/bytebufferpool"
)

// pendingHeap holds out-of-order fragment results until their turn to
// be emitted. This is the Go-idiomatic substitute for the original's
// asyncio.PriorityQueue-based reassembly: a min-heap keyed by fragment
// index plus a cursor of the next index due.
type pendingHeap []indexedFragment

func (h pendingHeap) Len() int            { return len(h) }
func (h pendingHeap) Less(i, j int) bool  { return h[i].index < h[j].index }
func (h pendingHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *pendingHeap) Push(x any)         { *h = append(*h, x.(indexedFragment)) }
func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// reorder drains d.raw (arbitrary completion order) and emits fragments
// on d.out strictly in ascending index order, buffering early arrivals
// in a heap until the cursor catches up to them.
func (d *Downloader) reorder(ctx context.Context) {
	defer close(d.out)

	h := &pendingHeap{}
	heap.Init(h)
	cursor := 0

	for frag := range d.raw {
		heap.Push(h, frag)

		for h.Len() > 0 && (*h)[0].index == cursor {
			next := heap.Pop(h).(indexedFragment)
			payload := append([]byte(nil), next.data.B...)
			bytebufferpool.Put(next.data)
			select {
			case d.out <- payload:
			case <-ctx.Done():
				drainHeap(h)
				return
			}
			cursor++
		}
	}

	drainHeap(h)
}

func drainHeap(h *pendingHeap) {
	for h.Len() > 0 {
		item := heap.Pop(h).(indexedFragment)
		bytebufferpool.Put(item.data)
	}
}

// parsePlaylistURLs extracts fragment URLs from a media playlist body:
// every non-empty, non-comment line.
func parsePlaylistURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}
