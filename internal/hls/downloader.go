// Package hls polls a media playlist for new fragments and downloads
// them with a worker pool, re-assembling the result into the original
// fragment order regardless of which worker finished first. Grounded on
// fc2_live_dl/hls.py's HLSDownloader.
package hls

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autofc2/internal/fc2err"
	"autofc2/internal/fc2log"
	"autofc2/internal/transport"

	"github.com/valyala/bytebufferpool"
)

const (
	queueCapacity   = 100
	maxFragmentTries = 5
	stallTimeout    = 30 * time.Second
	pollInterval    = time.Second
)

type fragmentJob struct {
	index int
	url   string
	tries int
}

type indexedFragment struct {
	index int
	data  *bytebufferpool.ByteBuffer
}

// Downloader streams the fragments of one running broadcast in order,
// polling the media playlist for newly appended segments and fetching
// them concurrently across a worker pool.
type Downloader struct {
	transport *transport.Client
	url       string
	threads   int
	logger    fc2log.Logger

	jobs chan fragmentJob
	raw  chan indexedFragment
	out  chan []byte

	pending sync.WaitGroup
	workers sync.WaitGroup

	startOnce sync.Once
	err       error
	errMu     sync.Mutex
}

// Open constructs a downloader for the given media playlist URL. Start
// must be called before reading fragments.
func Open(t *transport.Client, playlistURL string, threads int, logger fc2log.Logger) *Downloader {
	if threads < 1 {
		threads = 1
	}
	return &Downloader{
		transport: t,
		url:       playlistURL,
		threads:   threads,
		logger:    logger.With("hls"),
		jobs:      make(chan fragmentJob, queueCapacity),
		raw:       make(chan indexedFragment, queueCapacity),
		out:       make(chan []byte),
	}
}

// Start begins polling and downloading. It is safe to call only once;
// subsequent calls are no-ops.
func (d *Downloader) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		if d.threads > 1 {
			d.logger.Logf("downloading with %d threads", d.threads)
		}
		if d.threads > 8 {
			d.logger.Warn("using more than 8 threads is not recommended")
		}

		stop := make(chan struct{})

		for i := 0; i < d.threads; i++ {
			d.workers.Add(1)
			go d.downloadWorker(ctx, i, stop)
		}

		var fillWG sync.WaitGroup
		fillWG.Add(1)
		go func() {
			defer fillWG.Done()
			d.fillQueue(ctx)
		}()

		go d.reorder(ctx)

		go func() {
			fillWG.Wait()
			d.pending.Wait()
			close(stop)
			d.workers.Wait()
			close(d.raw)
		}()
	})
}

// Fragments returns the channel of reassembled, in-order fragment
// payloads. It is closed once the broadcast ends and every in-flight
// fragment has been resolved.
func (d *Downloader) Fragments() <-chan []byte {
	return d.out
}

// Close drains Fragments until it is closed, then returns Err. The
// caller is expected to have already cancelled the context passed to
// Start. On a normal end Fragments closes only after the poller and
// every worker have returned; after cancellation it can close as soon
// as the reorder goroutine stops, before the poller and workers have
// finished unwinding, so Close does not wait for them.
func (d *Downloader) Close() error {
	for range d.out {
	}
	return d.Err()
}

// Err returns the terminal error observed while polling the playlist,
// if any (StreamEnded is the normal end-of-broadcast signal).
func (d *Downloader) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.err
}

func (d *Downloader) setErr(err error) {
	d.errMu.Lock()
	if d.err == nil {
		d.err = err
	}
	d.errMu.Unlock()
}

func (d *Downloader) fetchFragmentURLs(ctx context.Context) ([]string, error) {
	resp, err := d.transport.Get(ctx, d.url)
	if err != nil {
		return nil, fmt.Errorf("hls: fetching playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 403 {
		return nil, &fc2err.StreamEnded{}
	}
	if resp.StatusCode == 404 {
		return nil, nil
	}

	return parsePlaylistURLs(resp.Body)
}

func (d *Downloader) fillQueue(ctx context.Context) {
	lastFragmentAt := time.Now()
	lastFragment := ""
	fragIdx := 0

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		frags, err := d.fetchFragmentURLs(ctx)
		if err != nil {
			d.setErr(err)
			return
		}

		newIdx := 0
		if lastFragment != "" {
			for i, f := range frags {
				if f == lastFragment {
					newIdx = i + 1
					break
				}
			}
		}

		if n := len(frags) - newIdx; n > 0 {
			lastFragmentAt = time.Now()
			d.logger.Debugf("found %d new fragments", n)
		}

		for _, frag := range frags[newIdx:] {
			lastFragment = frag
			d.pending.Add(1)
			d.jobs <- fragmentJob{index: fragIdx, url: frag}
			fragIdx++
		}

		if time.Since(lastFragmentAt) > stallTimeout {
			d.logger.Debug("timeout receiving new segments")
			return
		}

		select {
		case <-ctx.Done():
			d.setErr(ctx.Err())
			return
		case <-ticker.C:
		}
	}
}

func (d *Downloader) downloadWorker(ctx context.Context, id int, stop <-chan struct{}) {
	defer d.workers.Done()
	for {
		select {
		case <-stop:
			return
		case job := <-d.jobs:
			d.handleJob(ctx, id, job)
		}
	}
}

func (d *Downloader) handleJob(ctx context.Context, workerID int, job fragmentJob) {
	d.logger.Debugf("worker %d downloading fragment %d", workerID, job.index)

	resp, err := d.transport.Get(ctx, job.url)
	if err != nil {
		d.logger.Errorf("worker %d: fragment %d unhandled error: %v", workerID, job.index, err)
		d.retryOrGiveUp(workerID, job)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode > 299 {
		d.logger.Errorf("worker %d: fragment %d errored: %d", workerID, job.index, resp.StatusCode)
		d.retryOrGiveUp(workerID, job)
		return
	}

	buf := bytebufferpool.Get()
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		d.logger.Errorf("worker %d: fragment %d read error: %v", workerID, job.index, err)
		bytebufferpool.Put(buf)
		d.retryOrGiveUp(workerID, job)
		return
	}

	d.raw <- indexedFragment{index: job.index, data: buf}
	d.pending.Done()
}

func (d *Downloader) retryOrGiveUp(workerID int, job fragmentJob) {
	job.tries++
	if job.tries < maxFragmentTries {
		d.logger.Debugf("worker %d: retrying fragment %d", workerID, job.index)
		d.jobs <- job
		return
	}
	d.logger.Errorf("worker %d: gave up on fragment %d after %d tries", workerID, job.index, job.tries)
	d.raw <- indexedFragment{index: job.index, data: bytebufferpool.Get()}
	d.pending.Done()
}
