// Command fc2-live-dl records a single FC2 live broadcast to disk.
// Grounded on fc2_live_dl/__init__.py's argument parser and _main.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"autofc2/internal/fc2log"
	"autofc2/internal/recorder"
	"autofc2/internal/transport"

	"github.com/spf13/cobra"
)

const versionString = "autofc2 1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		quality               string
		latency               string
		threads               int
		output                string
		noRemux               bool
		keepIntermediates     bool
		extractAudio          bool
		cookies               string
		writeChat             bool
		writeInfoJSON         bool
		writeThumbnail        bool
		wait                  bool
		pollInterval          float64
		logLevel              string
		dumpWebsocket         bool
		waitForQualityTimeout float64
		showVersion           bool
	)

	cmd := &cobra.Command{
		Use:     "fc2-live-dl [url]",
		Short:   "Download an FC2 live broadcast",
		Version: versionString,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Println(versionString)
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("a live.fc2.com URL is required")
			}

			channelID, err := parseChannelID(args[0])
			if err != nil {
				return err
			}

			lvl, ok := fc2log.Levels[logLevel]
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}
			logger := fc2log.NewDefault("main", lvl)

			params := recorder.DefaultParams()
			params.Quality = quality
			params.Latency = latency
			params.Threads = threads
			if output != "" {
				params.OutputTemplate = output
			}
			params.Remux = !noRemux
			params.KeepIntermediates = keepIntermediates
			params.ExtractAudio = extractAudio
			params.CookiesFile = cookies
			params.WriteChat = writeChat
			params.WriteInfoJSON = writeInfoJSON
			params.WriteThumbnail = writeThumbnail
			params.WaitForLive = wait
			params.WaitPollInterval = int(pollInterval)
			params.DumpWebsocket = dumpWebsocket
			params.WaitForQualityTimeout = time.Duration(waitForQualityTimeout * float64(time.Second))

			t, err := transport.New(transport.Options{TrustEnvProxy: params.TrustEnvProxy})
			if err != nil {
				return err
			}
			if cookies != "" {
				if err := t.LoadCookiesFile(cookies); err != nil {
					return fmt.Errorf("loading cookies file: %w", err)
				}
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logger.Log(versionString)
			sess := recorder.New(t, channelID, params, logger, nil)
			if err := sess.Run(ctx); err != nil {
				logger.Errorf("%v", err)
				return err
			}
			logger.Debug("done")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&quality, "quality", "3Mbps", "quality of the stream to download (150Kbps, 400Kbps, 1.2Mbps, 2Mbps, 3Mbps, sound)")
	flags.StringVar(&latency, "latency", "mid", "stream latency (low, high, mid)")
	flags.IntVar(&threads, "threads", 1, "size of the thread pool used to download segments")
	flags.StringVarP(&output, "output", "o", "", "output filename template")
	flags.BoolVar(&noRemux, "no-remux", false, "do not remux recordings into mp4/m4a after download")
	flags.BoolVarP(&keepIntermediates, "keep-intermediates", "k", false, "keep the raw .ts recording after remuxing")
	flags.BoolVarP(&extractAudio, "extract-audio", "x", false, "also extract audio into a separate file")
	flags.StringVar(&cookies, "cookies", "", "path to a cookies file")
	flags.BoolVar(&writeChat, "write-chat", false, "save live chat into a json lines file")
	flags.BoolVar(&writeInfoJSON, "write-info-json", false, "dump metadata json")
	flags.BoolVar(&writeThumbnail, "write-thumbnail", false, "download thumbnail into a file")
	flags.BoolVar(&wait, "wait", false, "wait until the broadcast goes live, then start recording")
	flags.Float64Var(&pollInterval, "poll-interval", 5, "seconds between checks when --wait is used")
	flags.Float64Var(&waitForQualityTimeout, "wait-for-quality-timeout", 15, "seconds to wait for the requested quality before falling back")
	flags.StringVar(&logLevel, "log-level", "info", "log level (silent, error, warn, info, debug, trace)")
	flags.BoolVar(&dumpWebsocket, "dump-websocket", false, "dump all websocket communication for debugging")
	flags.BoolVarP(&showVersion, "version", "v", false, "print version and exit")

	return cmd
}

// parseChannelID extracts the numeric channel ID from a live.fc2.com URL,
// matching __init__.py's url.split("https://live.fc2.com")[1].split("/")[1].
func parseChannelID(rawURL string) (string, error) {
	normalized := strings.Replace(rawURL, "http:", "https:", 1)
	parts := strings.SplitN(normalized, "https://live.fc2.com", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("parsing URL: please provide a https://live.fc2.com/ URL")
	}
	segments := strings.Split(strings.TrimPrefix(parts[1], "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "", fmt.Errorf("parsing URL: please provide a https://live.fc2.com/ URL")
	}
	return segments[0], nil
}
