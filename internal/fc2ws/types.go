// Package fc2ws implements the control-channel WebSocket protocol: a
// JSON message envelope with id-correlated request/response pairs, a
// co-located heartbeat, and a handful of push notifications
// (control_disconnection, publish_stop, comment). Grounded on
// fc2_live_dl/fc2.py's FC2WebSocket.
package fc2ws

import "encoding/json"

// Message names recognised on the control channel.
const (
	nameConnectComplete     = "connect_complete"
	nameResponse            = "_response_"
	nameControlDisconnect   = "control_disconnection"
	namePublishStop         = "publish_stop"
	nameComment             = "comment"
	nameHeartbeat           = "heartbeat"
	nameGetHLSInformation   = "get_hls_information"
)

// ControlMessage is the wire envelope for every frame exchanged on the
// control channel, in both directions.
type ControlMessage struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	ID        int             `json:"id,omitempty"`
}

// outboundMessage is what gets marshalled when sending; arguments
// defaults to an empty object rather than null, matching the Python
// client's `arguments={}` default.
type outboundMessage struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
	ID        int    `json:"id"`
}

// disconnectionArguments is the payload of a control_disconnection push.
type disconnectionArguments struct {
	Code int `json:"code"`
}

// commentArguments is the payload of a comment push.
type commentArguments struct {
	Comments []Comment `json:"comments"`
}

// Comment is one chat/comment entry relayed over the control channel.
type Comment map[string]any

// HLSInformation is the arguments object of a get_hls_information
// response: playlist variants arrive under three sibling keys that must
// be merged before sorting.
type HLSInformation struct {
	Playlists       []PlaylistEntry `json:"playlists"`
	HighLatency     []PlaylistEntry `json:"playlists_high_latency"`
	MiddleLatency   []PlaylistEntry `json:"playlists_middle_latency"`
}

// PlaylistEntry is one element of an HLSInformation playlist list.
type PlaylistEntry struct {
	Mode int    `json:"mode"`
	URL  string `json:"url"`
}

// Merged returns every variant across all three sibling keys, unsorted.
func (h HLSInformation) Merged() []PlaylistEntry {
	all := make([]PlaylistEntry, 0, len(h.Playlists)+len(h.HighLatency)+len(h.MiddleLatency))
	all = append(all, h.Playlists...)
	all = append(all, h.HighLatency...)
	all = append(all, h.MiddleLatency...)
	return all
}
