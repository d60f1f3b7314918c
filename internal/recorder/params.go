// Package recorder composes metadata resolution, the control channel,
// the HLS downloader, chat persistence, and post-run remuxing into one
// per-channel recording session. Grounded on FC2LiveDL.py's FC2LiveDL
// class.
package recorder

import "time"

// Params is the per-channel parameter set, deep-merged from a
// supervisor config's default_params and channels[id] override, or
// filled directly from CLI flags for single-channel mode.
type Params struct {
	Quality string
	Latency string
	Threads int

	OutputTemplate string

	WriteChat       bool
	WriteInfoJSON   bool
	WriteThumbnail  bool
	WaitForLive     bool
	WaitPollInterval int

	// CookiesFile and TrustEnvProxy configure the process-wide
	// transport.Client, not anything per-session: cmd/fc2-live-dl loads
	// them directly at startup, and the supervisor applies them from
	// default_params to the one shared client every channel's session
	// uses (see Supervisor.applyTransportConfig). They still round-trip
	// through Params so a channel override can name a different cookies
	// file in config documents carried over from the original tool.
	CookiesFile string

	Remux             bool
	KeepIntermediates bool
	ExtractAudio      bool
	TrustEnvProxy     bool

	DumpWebsocket bool

	WaitForQualityTimeout time.Duration
}

// DefaultParams mirrors FC2LiveDL.DEFAULT_PARAMS.
func DefaultParams() Params {
	return Params{
		Quality:               "3Mbps",
		Latency:               "mid",
		Threads:               1,
		OutputTemplate:        "%(date)s %(title)s (%(channel_name)s).%(ext)s",
		WaitPollInterval:      5,
		Remux:                 true,
		WaitForQualityTimeout: 15 * time.Second,
	}
}

var qualityModes = map[string]int{
	"150Kbps": 10,
	"400Kbps": 20,
	"1.2Mbps": 30,
	"2Mbps":   40,
	"3Mbps":   50,
	"sound":   90,
}

var latencyModes = map[string]int{
	"low": 0,
	"high": 1,
	"mid": 2,
}

// Mode computes the requested mode from Quality+Latency.
func (p Params) Mode() int {
	return qualityModes[p.Quality] + latencyModes[p.Latency]
}

// FormatMode renders a mode integer back to its quality/latency names,
// the inverse of Mode, used for logging and event payloads.
func FormatMode(mode int) (quality, latency string) {
	for name, code := range latencyModes {
		if code == mode%10 {
			latency = name
			break
		}
	}
	for name, code := range qualityModes {
		if code == (mode/10)*10 {
			quality = name
			break
		}
	}
	return quality, latency
}
