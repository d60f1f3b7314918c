package recorder

import (
	"testing"

	"autofc2/internal/fc2err"
	"autofc2/internal/fc2ws"
)

func TestModeDecomposition(t *testing.T) {
	cases := []struct {
		quality, latency string
		want             int
	}{
		{"3Mbps", "mid", 52},
		{"150Kbps", "low", 10},
		{"sound", "high", 91},
	}
	for _, c := range cases {
		p := Params{Quality: c.quality, Latency: c.latency}
		if got := p.Mode(); got != c.want {
			t.Errorf("Mode(%s, %s) = %d, want %d", c.quality, c.latency, got, c.want)
		}
		quality, latency := FormatMode(c.want)
		if quality != c.quality || latency != c.latency {
			t.Errorf("FormatMode(%d) = (%s, %s), want (%s, %s)", c.want, quality, latency, c.quality, c.latency)
		}
	}
}

func TestSortPlaylistsSoundSortsAsLowestVideoTier(t *testing.T) {
	variants := []fc2ws.PlaylistEntry{
		{Mode: 90, URL: "sound"},
		{Mode: 52, URL: "3mbps-mid"},
		{Mode: 10, URL: "150kbps-low"},
	}
	sorted := sortPlaylists(variants)
	want := []string{"3mbps-mid", "150kbps-low", "sound"}
	for i, w := range want {
		if sorted[i].URL != w {
			t.Errorf("sorted[%d] = %s, want %s", i, sorted[i].URL, w)
		}
	}
}

func TestSelectPlaylistExactMatch(t *testing.T) {
	sorted := sortPlaylists([]fc2ws.PlaylistEntry{{Mode: 52}, {Mode: 42}})
	got, err := selectPlaylist(sorted, 42)
	if err != nil || got.Mode != 42 {
		t.Fatalf("selectPlaylist exact match: got %+v, err %v", got, err)
	}
}

func TestSelectPlaylistFallsBackToLatency(t *testing.T) {
	// Requested 2Mbps/mid (42) is unavailable; 3Mbps/mid (52) shares the
	// latency component and should win over the first-of-sorted rule.
	sorted := sortPlaylists([]fc2ws.PlaylistEntry{{Mode: 10}, {Mode: 52}})
	got, err := selectPlaylist(sorted, 42)
	if err != nil || got.Mode != 52 {
		t.Fatalf("selectPlaylist latency fallback: got %+v, err %v", got, err)
	}
}

func TestSelectPlaylistEmptyIsEmptyPlaylistError(t *testing.T) {
	_, err := selectPlaylist(nil, 52)
	if _, ok := err.(*fc2err.EmptyPlaylist); !ok {
		t.Fatalf("expected *fc2err.EmptyPlaylist, got %T (%v)", err, err)
	}
}

func TestGetHLSURLMergesAllThreeKeys(t *testing.T) {
	info := &fc2ws.HLSInformation{
		Playlists:     []fc2ws.PlaylistEntry{{Mode: 52, URL: "mid"}},
		HighLatency:   []fc2ws.PlaylistEntry{{Mode: 51, URL: "high"}},
		MiddleLatency: []fc2ws.PlaylistEntry{{Mode: 50, URL: "low"}},
	}
	url, mode, err := getHLSURL(info, 51)
	if err != nil {
		t.Fatalf("getHLSURL: %v", err)
	}
	if url != "high" || mode != 51 {
		t.Fatalf("getHLSURL = (%s, %d), want (high, 51)", url, mode)
	}
}
