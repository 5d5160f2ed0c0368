package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/coinboard/internal/feedsim"
)

func main() {
	var (
		addr          = flag.String("addr", feedsim.DefaultAddr, "Listen address")
		interval      = flag.Duration("interval", feedsim.DefaultInterval, "Time between frames")
		malformedRate = flag.Float64("malformed-rate", feedsim.DefaultMalformedRate, "Share of frames that are deliberately broken, 0..1")
		logFile       = flag.String("log", "", "Log file, in addition to stdout")
		verbose       = flag.Bool("verbose", false, "Enable verbose logging")
		help          = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		feedsim.ShowHelp()
		return
	}

	closeLog, err := feedsim.SetupLogging(*logFile, *verbose)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := feedsim.Config{
		Addr:          *addr,
		Interval:      *interval,
		MalformedRate: *malformedRate,
		LogFile:       *logFile,
		Verbose:       *verbose,
	}
	if err := feedsim.Run(ctx, cfg); err != nil {
		_, _ = os.Stderr.WriteString("Feed simulator failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
