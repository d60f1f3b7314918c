package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"autofc2/internal/events"
	"autofc2/internal/fc2err"
	"autofc2/internal/fc2log"
	"autofc2/internal/fc2meta"
	"autofc2/internal/fc2ws"
	"autofc2/internal/fnametemplate"
	"autofc2/internal/hls"
	"autofc2/internal/remux"
	"autofc2/internal/transport"
)

const thumbnailChunkSize = 1024

// Session runs one complete recording attempt for a single channel:
// metadata resolution, file naming, control session, quality
// selection, concurrent download/chat, and post-run remux.
type Session struct {
	transport *transport.Client
	channelID string
	params    Params
	logger    fc2log.Logger
	onEvent   events.Handler
}

// New constructs a recording session for one channel.
func New(t *transport.Client, channelID string, params Params, logger fc2log.Logger, onEvent events.Handler) *Session {
	if onEvent == nil {
		onEvent = events.Noop
	}
	return &Session{
		transport: t,
		channelID: channelID,
		params:    params,
		logger:    logger.With("fc2 " + channelID),
		onEvent:   onEvent,
	}
}

func (s *Session) emit(typ events.Type, data any) {
	s.onEvent(events.Event{ChannelID: s.channelID, Type: typ, Data: data})
}

// Run performs a single end-to-end recording attempt, returning when
// the broadcast ends, the session is cancelled, or an unrecoverable
// error occurs.
func (s *Session) Run(ctx context.Context) error {
	if s.params.Remux && !remux.IsAvailable() {
		s.logger.Error("ffmpeg not found in PATH, remuxing is not available")
		s.logger.Error("please install ffmpeg or disable remuxing with --no-remux")
		return &fc2err.ToolUnavailable{Tool: "ffmpeg"}
	}

	live := fc2meta.New(s.transport, s.channelID, s.logger)

	s.logger.Log("fetching stream info")
	online, err := live.IsOnline(ctx, true)
	if err != nil {
		return err
	}
	if !online {
		if !s.params.WaitForLive {
			return &fc2err.NotOnline{ChannelID: s.channelID}
		}
		s.emit(events.WaitingForOnline, nil)
		if err := live.WaitForOnline(ctx, s.params.WaitPollInterval); err != nil {
			return err
		}
	}

	meta, err := live.GetMeta(ctx, false)
	if err != nil {
		return err
	}
	s.emit(events.StreamOnline, meta)

	fnames, err := s.resolveFilenames(meta)
	if err != nil {
		return err
	}

	if s.params.WriteInfoJSON {
		s.logger.Logf("writing info json to %s", fnames.info)
		if err := writeInfoJSON(fnames.info, meta); err != nil {
			s.logger.Errorf("failed to write info json: %v", err)
		}
	}

	if s.params.WriteThumbnail {
		s.logger.Logf("writing thumbnail to %s", fnames.thumb)
		if err := s.downloadThumbnail(ctx, meta.ChannelData.Image, fnames.thumb); err != nil {
			s.logger.Errorf("failed to download thumbnail: %v", err)
		}
	}

	wsURL, err := live.GetWebsocketURL(ctx)
	if err != nil {
		return err
	}
	s.logger.Log("found websocket url")

	ws, err := fc2ws.Open(ctx, s.transport, wsURL, fnames.ws, s.logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	hlsURL, gotMode, err := s.waitForQuality(ctx, ws)
	if err != nil {
		return err
	}

	mode := s.params.Mode()
	requested, _ := FormatMode(mode)
	available, _ := FormatMode(gotMode)
	s.emit(events.GotHLSURL, events.HLSURLData{
		Requested:   requested,
		Available:   available,
		HLSURL:      hlsURL,
		ChannelID:   meta.ChannelData.ChannelID,
		ChannelName: meta.ProfileData.Name,
		Title:       meta.ChannelData.Title,
	})
	s.logger.Log("received HLS info")

	if err := s.runConcurrentTasks(ctx, ws, hlsURL, fnames); err != nil {
		return err
	}

	if s.params.Remux && fileExists(fnames.stream) {
		if err := s.remuxAll(ctx, fnames); err != nil {
			s.logger.Errorf("remux failed: %v", err)
		}
	} else {
		s.logger.Debug("not remuxing stream")
	}

	s.logger.Log("done")
	return nil
}

func (s *Session) waitForQuality(ctx context.Context, ws *fc2ws.Session) (string, int, error) {
	mode := s.params.Mode()
	started := time.Now()
	gotMode := -1
	var hlsURL string

	for time.Since(started) < s.params.WaitForQualityTimeout && gotMode != mode {
		info, err := ws.GetHLSInformation(ctx)
		if err != nil {
			return "", 0, err
		}

		url, actual, err := getHLSURL(info, mode)
		if err != nil {
			return "", 0, err
		}
		hlsURL, gotMode = url, actual

		if gotMode != mode {
			requested, _ := FormatMode(mode)
			available, _ := FormatMode(gotMode)
			elapsed := int(time.Since(started).Seconds())
			s.logger.Warnf("requested quality %s is not available, waiting (%d/%ds)",
				requested, elapsed, int(s.params.WaitForQualityTimeout.Seconds()))
			s.emit(events.WaitingForTargetQuality, events.QualityWaitData{Requested: requested, Available: available})

			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return "", 0, ctx.Err()
			}
		}
	}

	if gotMode != mode {
		available, _ := FormatMode(gotMode)
		s.logger.Warnf("timeout reached, falling back to next best quality %s", available)
	}
	return hlsURL, gotMode, nil
}

type taskResult struct {
	name string
	err  error
}

func (s *Session) runConcurrentTasks(ctx context.Context, ws *fc2ws.Session, hlsURL string, fnames filenames) error {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan taskResult, 3)
	running := 1
	go func() { results <- taskResult{"control", ws.WaitDisconnection(subCtx)} }()

	s.logger.Logf("writing stream to %s", fnames.stream)
	running++
	go func() { results <- taskResult{"download", s.downloadStream(subCtx, hlsURL, fnames.stream)} }()

	if s.params.WriteChat {
		s.logger.Logf("writing chat to %s", fnames.chat)
		running++
		go func() { results <- taskResult{"chat", s.downloadChat(subCtx, ws, fnames.chat)} }()
	}

	first := <-results
	cancel()
	for i := 1; i < running; i++ {
		<-results
	}

	return classifyTerminal(first.err)
}

func classifyTerminal(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	var streamEnded *fc2err.StreamEnded
	if errors.As(err, &streamEnded) {
		return nil
	}
	return err
}

func (s *Session) downloadStream(ctx context.Context, hlsURL string, outPath string) error {
	downloader := hls.Open(s.transport, hlsURL, s.params.Threads, s.logger)
	downloader.Start(ctx)
	defer downloader.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("recorder: creating stream file: %w", err)
	}
	defer out.Close()

	nFrags := 0
	var totalSize int64

	for {
		select {
		case frag, ok := <-downloader.Fragments():
			if !ok {
				return downloader.Err()
			}
			if _, err := out.Write(frag); err != nil {
				return fmt.Errorf("recorder: writing fragment: %w", err)
			}
			nFrags++
			totalSize += int64(len(frag))
			s.logger.Progress("downloaded %d fragments, %s", nFrags, humanBytes(totalSize))
			s.emit(events.FragmentProgress, events.FragmentProgressData{FragmentsDownloaded: nFrags, TotalSize: totalSize})
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) downloadChat(ctx context.Context, ws *fc2ws.Session, outPath string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("recorder: creating chat file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for {
		select {
		case comment, ok := <-ws.Comments():
			if !ok {
				return nil
			}
			if err := enc.Encode(comment); err != nil {
				return fmt.Errorf("recorder: writing chat line: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) downloadThumbnail(ctx context.Context, url string, outPath string) error {
	body, resp, err := s.transport.GetBody(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("recorder: thumbnail fetch returned status %d", resp.StatusCode)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, thumbnailChunkSize)
	_, err = io.CopyBuffer(f, body, buf)
	return err
}

func (s *Session) remuxAll(ctx context.Context, fnames filenames) error {
	s.emit(events.Muxing, nil)
	s.logger.Progress("remuxing stream")
	onStatus := func(status map[string]string) {
		s.logger.Progress("[q] to stop %s %s", status["time"], status["size"])
	}

	s.logger.Logf("remuxing stream to %s", fnames.muxed)
	if err := remux.Run(ctx, fnames.stream, fnames.muxed, nil, s.logger, onStatus); err != nil {
		return err
	}

	if s.params.ExtractAudio {
		s.logger.Logf("extracting audio to %s", fnames.audio)
		if err := remux.Run(ctx, fnames.stream, fnames.audio, []string{"-vn"}, s.logger, onStatus); err != nil {
			return err
		}
	}

	if !s.params.KeepIntermediates && fileExists(fnames.muxed) {
		s.logger.Log("removing intermediate files")
		os.Remove(fnames.stream)
	} else {
		s.logger.Debug("not removing intermediates")
	}
	return nil
}

func writeInfoJSON(path string, meta fc2meta.StreamMeta) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(meta)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	units := "KMGTPEZ"
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), units[exp])
}

type filenames struct {
	info, thumb, stream, chat, muxed, audio, ws string
}

func (s *Session) resolveFilenames(meta fc2meta.StreamMeta) (filenames, error) {
	fields := fnametemplate.NewFields(time.Now())
	fields.ChannelID = meta.ChannelData.ChannelID
	fields.ChannelName = meta.ProfileData.Name
	fields.Title = meta.ChannelData.Title

	var fn filenames
	var err error

	if fn.info, err = fnametemplate.Resolve(s.params.OutputTemplate, fields, "info.json"); err != nil {
		return fn, err
	}
	if fn.thumb, err = fnametemplate.Resolve(s.params.OutputTemplate, fields, "png"); err != nil {
		return fn, err
	}
	if fn.stream, err = fnametemplate.Resolve(s.params.OutputTemplate, fields, "ts"); err != nil {
		return fn, err
	}
	if fn.chat, err = fnametemplate.Resolve(s.params.OutputTemplate, fields, "fc2chat.json"); err != nil {
		return fn, err
	}

	muxExt := "mp4"
	if s.params.Quality == "sound" {
		muxExt = "m4a"
	}
	if fn.muxed, err = fnametemplate.Resolve(s.params.OutputTemplate, fields, muxExt); err != nil {
		return fn, err
	}
	if fn.audio, err = fnametemplate.Resolve(s.params.OutputTemplate, fields, "m4a"); err != nil {
		return fn, err
	}

	if s.params.DumpWebsocket {
		if fn.ws, err = fnametemplate.Resolve(s.params.OutputTemplate, fields, "ws"); err != nil {
			return fn, err
		}
	}

	return fn, nil
}
