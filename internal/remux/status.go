package remux

import "strings"

// ParseStatus tokenizes one ffmpeg stderr status line into its
// key=value fields, grounded on fc2_live_dl/ffmpeg.py's get_status: a
// dangling "key=" token (ffmpeg sometimes pads a value with a leading
// space) is joined with whatever follows it.
func ParseStatus(line string) map[string]string {
	stats := map[string]string{
		"frame":   "0",
		"fps":     "0",
		"q":       "0",
		"size":    "0kB",
		"time":    "00:00:00.00",
		"bitrate": "N/A",
		"speed":   "N/A",
	}

	fields := strings.Fields(line)
	lastItem := "-"
	for _, item := range fields {
		switch {
		case strings.HasSuffix(lastItem, "="):
			stats[strings.TrimSuffix(lastItem, "=")] = item
		case strings.Contains(item, "="):
			parts := strings.SplitN(item, "=", 2)
			stats[parts[0]] = parts[1]
		}
		lastItem = item
	}
	return stats
}
