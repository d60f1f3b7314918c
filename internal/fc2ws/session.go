package fc2ws

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"autofc2/internal/fc2err"
	"autofc2/internal/fc2log"
	"autofc2/internal/transport"
)

// heartbeatInterval is both the client's send cadence and the read
// deadline applied to every frame: 30 seconds of silence from the
// server is treated the same as a protocol error, matching
// FC2WebSocket.heartbeat_interval.
const heartbeatInterval = 30 * time.Second

const commentQueueCapacity = 100

// Session is one open control-channel connection for a single
// broadcast. It must be closed exactly once.
type Session struct {
	id     string
	conn   *websocket.Conn
	logger fc2log.Logger
	dump   *os.File

	writeMu sync.Mutex

	idMu  sync.Mutex
	msgID int

	waitMu  sync.Mutex
	waiters map[int]chan *ControlMessage

	comments chan Comment

	loopDone chan struct{}
	loopErr  error

	lastHeartbeat time.Time

	closeOnce sync.Once
}

// Open dials the control-server URL and starts the background reader.
// If dumpPath is non-empty, every frame sent and received is appended
// to it, matching the --dump-websocket diagnostic flag.
func Open(ctx context.Context, t *transport.Client, wsURL string, dumpPath string, logger fc2log.Logger) (*Session, error) {
	conn, err := t.DialWebSocket(ctx, wsURL)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New().String()
	s := &Session{
		id:       sessionID,
		conn:     conn,
		logger:   logger.With("ws " + sessionID[:8]),
		waiters:  make(map[int]chan *ControlMessage),
		comments: make(chan Comment, commentQueueCapacity),
		loopDone: make(chan struct{}),
	}

	if dumpPath != "" {
		f, err := os.Create(dumpPath)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("fc2ws: opening dump file: %w", err)
		}
		s.dump = f
		fmt.Fprintf(s.dump, "# session %s\n", sessionID)
		s.logger.Logf("writing websocket to %s", dumpPath)
	}

	s.logger.Debug("connected")
	go s.readLoop()
	return s, nil
}

// Close tears down the connection and waits for the reader to exit.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.conn.Close()
		<-s.loopDone
		if s.dump != nil {
			s.dump.Close()
		}
		s.logger.Debug("closed")
	})
	return nil
}

// Comments is the stream of chat comments relayed over the control
// channel. It is closed when the session's read loop exits.
func (s *Session) Comments() <-chan Comment {
	return s.comments
}

// WaitDisconnection blocks until the control channel ends, returning the
// terminal error (a ServerDisconnection, StreamEnded, or transport
// failure), or ctx.Err() if ctx is cancelled first.
func (s *Session) WaitDisconnection(ctx context.Context) error {
	select {
	case <-s.loopDone:
		return s.loopErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetHLSInformation requests the set of available playlist variants,
// retrying up to five times with exponential backoff when the request
// times out or the response has no "playlists" key. A response whose
// "playlists" key is present but empty is returned as is.
func (s *Session) GetHLSInformation(ctx context.Context) (*HLSInformation, error) {
	const maxTries = 5

	var info *HLSInformation
	tries := 0

	for info == nil && tries < maxTries {
		msg, err := s.sendAndWait(ctx, nameGetHLSInformation, nil, 5*time.Second)
		backoff := time.Duration(1<<uint(tries)) * time.Second
		tries++

		if err != nil {
			return nil, err
		}

		if msg == nil {
			s.logger.Warnf("timeout reached waiting for HLS information, retrying in %s", backoff)
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
			continue
		}

		var raw map[string]json.RawMessage
		if err := json.Unmarshal(msg.Arguments, &raw); err != nil {
			return nil, fmt.Errorf("fc2ws: decoding get_hls_information response: %w", err)
		}

		if _, hasPlaylists := raw["playlists"]; !hasPlaylists {
			s.logger.Warnf("received empty playlist, retrying in %s", backoff)
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
			continue
		}

		var candidate HLSInformation
		if err := json.Unmarshal(msg.Arguments, &candidate); err != nil {
			return nil, fmt.Errorf("fc2ws: decoding get_hls_information response: %w", err)
		}
		info = &candidate
	}

	if info == nil {
		s.logger.Errorf("gave up after %d tries", tries)
		return nil, &fc2err.EmptyPlaylist{}
	}
	return info, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) readLoop() {
	defer close(s.loopDone)
	defer close(s.comments)

	for {
		s.conn.SetReadDeadline(time.Now().Add(heartbeatInterval))
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.loopErr = fmt.Errorf("fc2ws: connection lost: %w", err)
			return
		}

		s.logger.Tracef("< %s", truncate(string(data), 100))
		if s.dump != nil {
			s.dump.WriteString("< ")
			s.dump.Write(data)
			s.dump.WriteString("\n")
		}

		var msg ControlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debugf("malformed frame: %v", err)
			continue
		}

		if done := s.handle(&msg); done {
			return
		}

		s.tryHeartbeat()
	}
}

// handle processes one inbound frame, returning true if it terminated
// the session.
func (s *Session) handle(msg *ControlMessage) bool {
	switch msg.Name {
	case nameResponse:
		s.deliver(msg.ID, msg)
	case nameControlDisconnect:
		var args disconnectionArguments
		json.Unmarshal(msg.Arguments, &args)
		s.loopErr = fc2err.NewServerDisconnection(args.Code)
		return true
	case namePublishStop:
		s.loopErr = &fc2err.StreamEnded{}
		return true
	case nameComment:
		var args commentArguments
		if err := json.Unmarshal(msg.Arguments, &args); err == nil {
			for _, c := range args.Comments {
				select {
				case s.comments <- c:
				default:
					s.logger.Debug("comment queue full, dropping")
				}
			}
		}
	}
	return false
}

func (s *Session) deliver(id int, msg *ControlMessage) {
	s.waitMu.Lock()
	ch, ok := s.waiters[id]
	if ok {
		delete(s.waiters, id)
	}
	s.waitMu.Unlock()
	if ok {
		ch <- msg
	}
}

func (s *Session) tryHeartbeat() {
	if time.Since(s.lastHeartbeat) < heartbeatInterval {
		return
	}
	s.logger.Debug("heartbeat")
	if _, err := s.send(nameHeartbeat, nil); err != nil {
		s.logger.Debugf("heartbeat send failed: %v", err)
	}
	s.lastHeartbeat = time.Now()
}

func (s *Session) nextID() int {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.msgID++
	return s.msgID
}

func (s *Session) send(name string, arguments any) (int, error) {
	if arguments == nil {
		arguments = map[string]any{}
	}
	id := s.nextID()
	out := outboundMessage{Name: name, Arguments: arguments, ID: id}

	data, err := json.Marshal(out)
	if err != nil {
		return 0, fmt.Errorf("fc2ws: encoding message: %w", err)
	}

	s.logger.Tracef("> %s %v", name, arguments)
	if s.dump != nil {
		s.dump.WriteString("> ")
		s.dump.Write(data)
		s.dump.WriteString("\n")
	}

	s.writeMu.Lock()
	err = s.conn.WriteMessage(websocket.TextMessage, data)
	s.writeMu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("fc2ws: writing message: %w", err)
	}
	return id, nil
}

// sendAndWait sends a request and waits for either its correlated
// response, the session ending, or timeout elapsing, whichever happens
// first. A nil, nil return means the timeout fired with no response.
func (s *Session) sendAndWait(ctx context.Context, name string, arguments any, timeout time.Duration) (*ControlMessage, error) {
	id, err := s.send(name, arguments)
	if err != nil {
		return nil, err
	}

	ch := make(chan *ControlMessage, 1)
	s.waitMu.Lock()
	s.waiters[id] = ch
	s.waitMu.Unlock()

	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case msg := <-ch:
		return msg, nil
	case <-s.loopDone:
		s.waitMu.Lock()
		delete(s.waiters, id)
		s.waitMu.Unlock()
		return nil, s.loopErr
	case <-timeoutC:
		s.waitMu.Lock()
		delete(s.waiters, id)
		s.waitMu.Unlock()
		return nil, nil
	case <-ctx.Done():
		s.waitMu.Lock()
		delete(s.waiters, id)
		s.waitMu.Unlock()
		return nil, ctx.Err()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
