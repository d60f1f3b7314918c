// Package metrics tracks a one-hot lifecycle-event gauge plus two
// counters per recording channel, and serializes them to Prometheus
// text exposition format. Hand-rolled rather than built on
// prometheus/client_golang: see DESIGN.md for why that client's
// Collector/Desc model doesn't fit a label set (channel_id) that is
// created and torn down at runtime and must be fully regenerated every
// scrape. Grounded on autofc2.py's Metrics class.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"autofc2/internal/events"
)

const prefix = "autofc2_"

type channelState struct {
	hasEvent            bool
	eventType           events.Type
	fragmentsDownloaded int
	bytesDownloaded     int64
}

// Registry holds the live per-channel metric state, guarded by a single
// mutex held only for the duration of an update or a snapshot render.
type Registry struct {
	mu       sync.Mutex
	channels map[string]*channelState
}

// NewRegistry constructs an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*channelState)}
}

// Reset (re)initializes the counters for a channel, used when a new
// recording session starts for it.
func (r *Registry) Reset(channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[channelID] = &channelState{}
}

// Update applies one lifecycle event to its channel's state, creating
// the entry if it does not yet exist.
func (r *Registry) Update(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.channels[ev.ChannelID]
	if !ok {
		st = &channelState{}
		r.channels[ev.ChannelID] = st
	}
	st.hasEvent = true
	st.eventType = ev.Type

	if ev.Type == events.FragmentProgress {
		if data, ok := ev.Data.(events.FragmentProgressData); ok {
			st.fragmentsDownloaded = data.FragmentsDownloaded
			st.bytesDownloaded = data.TotalSize
		}
	}
}

// Render serializes the current state as Prometheus text exposition
// format, one set of series per channel, prefixed autofc2_.
func (r *Registry) Render() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		st := r.channels[id]
		label := fmt.Sprintf(`channel_id="%s"`, id)

		for _, typ := range events.All {
			val := 0
			if st.hasEvent && st.eventType == typ {
				val = 1
			}
			fmt.Fprintf(&b, "%sevent{%s,type=\"%s\"} %d\n", prefix, label, typ, val)
		}

		fmt.Fprintf(&b, "%sfragments_downloaded{%s} %d\n", prefix, label, st.fragmentsDownloaded)
		fmt.Fprintf(&b, "%sbytes_downloaded{%s} %d\n", prefix, label, st.bytesDownloaded)
	}
	return b.String()
}
