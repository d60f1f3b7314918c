package recorder

import (
	"sort"

	"autofc2/internal/fc2err"
	"autofc2/internal/fc2ws"
)

func sortKey(mode int) int {
	if mode >= 90 {
		return mode - 90
	}
	return mode
}

// sortPlaylists orders variants by descending quality/sound-adjusted
// key, matching FC2LiveDL._sort_playlists.
func sortPlaylists(variants []fc2ws.PlaylistEntry) []fc2ws.PlaylistEntry {
	sorted := append([]fc2ws.PlaylistEntry(nil), variants...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sortKey(sorted[i].Mode) > sortKey(sorted[j].Mode)
	})
	return sorted
}

// selectPlaylist implements the precedence FC2LiveDL._get_playlist_or_best
// uses: exact mode match, then best match of the latency component, then
// the first of the sorted set.
func selectPlaylist(sorted []fc2ws.PlaylistEntry, mode int) (fc2ws.PlaylistEntry, error) {
	if len(sorted) == 0 {
		return fc2ws.PlaylistEntry{}, &fc2err.EmptyPlaylist{}
	}

	for _, p := range sorted {
		if p.Mode == mode {
			return p, nil
		}
	}

	_, wantLatency := FormatMode(mode)
	for _, p := range sorted {
		_, latency := FormatMode(p.Mode)
		if latency == wantLatency {
			return p, nil
		}
	}

	return sorted[0], nil
}

// getHLSURL merges hls_info's three playlist keys, sorts them, and
// selects the variant for mode, returning its URL and actual mode.
func getHLSURL(info *fc2ws.HLSInformation, mode int) (url string, gotMode int, err error) {
	sorted := sortPlaylists(info.Merged())
	playlist, err := selectPlaylist(sorted, mode)
	if err != nil {
		return "", 0, err
	}
	return playlist.URL, playlist.Mode, nil
}
