package fc2ws

import "testing"

func TestHLSInformationMergedCombinesAllThreeKeys(t *testing.T) {
	info := HLSInformation{
		Playlists:     []PlaylistEntry{{Mode: 52}},
		HighLatency:   []PlaylistEntry{{Mode: 51}},
		MiddleLatency: []PlaylistEntry{{Mode: 50}},
	}
	merged := info.Merged()
	if len(merged) != 3 {
		t.Fatalf("Merged() returned %d entries, want 3", len(merged))
	}
}

func TestHLSInformationMergedEmpty(t *testing.T) {
	if got := (HLSInformation{}).Merged(); len(got) != 0 {
		t.Fatalf("Merged() on zero value = %v, want empty", got)
	}
}
