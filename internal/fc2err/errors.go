// Package fc2err defines the tagged error taxonomy used across the
// recorder: callers type-switch or errors.As on these to decide whether a
// failure is session-terminal, supervisor-restartable, or a clean end.
package fc2err

import "fmt"

// NotOnline is returned when a channel is not broadcasting and waiting
// for live was not requested.
type NotOnline struct {
	ChannelID string
}

func (e *NotOnline) Error() string {
	return fmt.Sprintf("live stream %s is currently not online", e.ChannelID)
}

// ServerDisconnection is raised when the control channel receives a
// control_disconnection frame. Code carries the raw disconnection code;
// Reason is set for the recognised specialisations below.
type ServerDisconnection struct {
	Code   int
	Reason string
}

func (e *ServerDisconnection) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("server disconnected: %d (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("server disconnected: %d", e.Code)
}

// NewServerDisconnection maps a raw disconnection code to its tagged
// specialisation per the control protocol.
func NewServerDisconnection(code int) *ServerDisconnection {
	switch code {
	case 4101:
		return &ServerDisconnection{Code: code, Reason: "Paid program"}
	case 4507:
		return &ServerDisconnection{Code: code, Reason: "Login required"}
	case 4512:
		return &ServerDisconnection{Code: code, Reason: "Multiple connections"}
	default:
		return &ServerDisconnection{Code: code}
	}
}

// IsPaidProgram reports whether err is the 4101 disconnection variant.
func IsPaidProgram(err error) bool {
	var sd *ServerDisconnection
	return asServerDisconnection(err, &sd) && sd.Code == 4101
}

// IsLoginRequired reports whether err is the 4507 disconnection variant.
func IsLoginRequired(err error) bool {
	var sd *ServerDisconnection
	return asServerDisconnection(err, &sd) && sd.Code == 4507
}

// IsMultipleConnection reports whether err is the 4512 disconnection variant.
func IsMultipleConnection(err error) bool {
	var sd *ServerDisconnection
	return asServerDisconnection(err, &sd) && sd.Code == 4512
}

func asServerDisconnection(err error, target **ServerDisconnection) bool {
	for err != nil {
		if sd, ok := err.(*ServerDisconnection); ok {
			*target = sd
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// StreamEnded is a clean termination: the broadcaster stopped publishing.
type StreamEnded struct{}

func (e *StreamEnded) Error() string { return "stream has ended" }

// EmptyPlaylist is returned after get_hls_information retry exhaustion.
type EmptyPlaylist struct{}

func (e *EmptyPlaylist) Error() string { return "server did not return a valid playlist" }

// MetaFetchError wraps a transport-level failure while fetching stream
// metadata.
type MetaFetchError struct {
	Err error
}

func (e *MetaFetchError) Error() string { return fmt.Sprintf("fetching stream metadata: %v", e.Err) }
func (e *MetaFetchError) Unwrap() error { return e.Err }

// TransportError wraps any other network-level failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ToolUnavailable is returned when the external remux tool (ffmpeg) could
// not be located on PATH.
type ToolUnavailable struct {
	Tool string
}

func (e *ToolUnavailable) Error() string {
	return fmt.Sprintf("%s not found in PATH", e.Tool)
}
