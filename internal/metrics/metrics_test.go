package metrics

import (
	"strings"
	"testing"

	"autofc2/internal/events"
)

func TestRenderIsOneHotPerChannel(t *testing.T) {
	r := NewRegistry()
	r.Reset("123")
	r.Update(events.Event{ChannelID: "123", Type: events.StreamOnline})

	out := r.Render()

	onLine := `autofc2_event{channel_id="123",type="stream_online"} 1`
	if !strings.Contains(out, onLine) {
		t.Errorf("Render missing %q in:\n%s", onLine, out)
	}
	offLine := `autofc2_event{channel_id="123",type="waiting_for_online"} 0`
	if !strings.Contains(out, offLine) {
		t.Errorf("Render missing %q in:\n%s", offLine, out)
	}
}

func TestResetIsAllZeroUntilFirstEvent(t *testing.T) {
	r := NewRegistry()
	r.Reset("123")

	out := r.Render()
	for _, typ := range events.All {
		line := `autofc2_event{channel_id="123",type="` + typ.String() + `"} 0`
		if !strings.Contains(out, line) {
			t.Errorf("Render missing %q in:\n%s", line, out)
		}
	}
}

func TestUpdateTracksFragmentCounters(t *testing.T) {
	r := NewRegistry()
	r.Update(events.Event{
		ChannelID: "abc",
		Type:      events.FragmentProgress,
		Data:      events.FragmentProgressData{FragmentsDownloaded: 42, TotalSize: 1024},
	})

	out := r.Render()
	if !strings.Contains(out, `autofc2_fragments_downloaded{channel_id="abc"} 42`) {
		t.Errorf("Render missing fragment counter in:\n%s", out)
	}
	if !strings.Contains(out, `autofc2_bytes_downloaded{channel_id="abc"} 1024`) {
		t.Errorf("Render missing byte counter in:\n%s", out)
	}
}

func TestRenderOrdersChannelsDeterministically(t *testing.T) {
	r := NewRegistry()
	r.Reset("zebra")
	r.Reset("apple")

	out := r.Render()
	if strings.Index(out, `channel_id="apple"`) > strings.Index(out, `channel_id="zebra"`) {
		t.Errorf("Render did not sort channels ascending:\n%s", out)
	}
}
