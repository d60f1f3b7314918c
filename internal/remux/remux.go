// Package remux shells out to an external ffmpeg binary to
// containerize a recorded transport-stream file into MP4/M4A without
// re-encoding. Grounded on the teacher's handlers/ffmpeg_handler.go
// (exec.Command, context-driven shutdown) and fc2_live_dl/ffmpeg.py's
// exact flag set and status-line protocol.
package remux

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"autofc2/internal/fc2log"
)

const ffmpegBin = "ffmpeg"

const killGrace = 5 * time.Second

// IsAvailable reports whether the ffmpeg binary can be found on PATH.
func IsAvailable() bool {
	_, err := exec.LookPath(ffmpegBin)
	return err == nil
}

// Run invokes ffmpeg to remux inputPath into outputPath, applying
// extraFlags (e.g. "-vn" for audio-only extraction) between the input
// and the copy/faststart flags. onStatus, if non-nil, is invoked once
// per parsed stderr status line. ctx cancellation sends SIGINT and
// falls back to killing the process after a grace period.
func Run(ctx context.Context, inputPath, outputPath string, extraFlags []string, logger fc2log.Logger, onStatus func(map[string]string)) error {
	logger = logger.With("ffmpeg")

	flags := []string{"-y", "-hide_banner", "-loglevel", "fatal", "-stats", "-i", inputPath}
	flags = append(flags, extraFlags...)
	flags = append(flags, "-c", "copy", "-movflags", "faststart", outputPath)

	cmd := exec.Command(ffmpegBin, flags...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("remux: attaching stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("remux: starting ffmpeg: %w", err)
	}

	statusDone := make(chan struct{})
	go func() {
		defer close(statusDone)
		readStatusLines(stderr, logger, onStatus)
	}()

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	select {
	case err := <-waitDone:
		<-statusDone
		return err
	case <-ctx.Done():
		if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
			logger.Errorf("unable to stop ffmpeg: %v", err)
		}
		select {
		case err := <-waitDone:
			<-statusDone
			return err
		case <-time.After(killGrace):
			cmd.Process.Kill()
			err := <-waitDone
			<-statusDone
			return err
		}
	}
}

func readStatusLines(r io.Reader, logger fc2log.Logger, onStatus func(map[string]string)) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\r')
		if line != "" {
			trimmed := strings.TrimRight(line, "\r\n")
			if trimmed != "" {
				logger.Tracef("%s", trimmed)
				if onStatus != nil {
					onStatus(ParseStatus(trimmed))
				}
			}
		}
		if err != nil {
			return
		}
	}
}
