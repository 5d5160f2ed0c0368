package feedsim

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/coinboard/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging initialises the logger to write to stdout and, when logFile
// is set, to that file as well. It returns a func that closes the file.
func SetupLogging(logFile string, verbose bool) (func(), error) {
	var out io.Writer = os.Stdout
	closeFn := func() {}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
		closeFn = func() { _ = file.Close() }
	}

	if err := logger.Init(logger.WithWriter(out), logger.WithService("feed-sim")); err != nil {
		closeFn()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	}
	return closeFn, nil
}

// ShowHelp prints usage information for the feed simulator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Coinboard Feed Simulator
========================

Serves a synthetic live feed over websocket for the demo chapters. Point the
leaderboard's feedURL at ws://<addr>/feed.

Usage:
  go run ./cmd/feed-sim [options]

Options:
  -addr string
        Listen address (default ":9090")
  -interval duration
        Time between frames (default 2s)
  -malformed-rate float
        Share of frames that are deliberately broken, 0..1 (default 0.05)
  -log string
        Log file, in addition to stdout
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Fast feed with no broken frames
  go run ./cmd/feed-sim -interval 200ms -malformed-rate 0

  # Leaderboard pointed at the simulator
  COINBOARD_FEED_URL=ws://localhost:9090/feed go run ./cmd
`)
}
