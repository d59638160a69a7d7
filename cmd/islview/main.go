// Command islview is a passive viewer: it attaches to a running
// co-simulation session in read-only mode and prints the samples flowing
// across every bus-facing variable, without writing any data of its own.
//
// Exit codes follow the FMI master convention: 0 normal completion,
// -1..-4 command-line/model-load failures, -5 killed by a stop request,
// 100 a runtime failure to start the session stop listener.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	openisl "github.com/esimstech/openisl-go"
	"github.com/esimstech/openisl-go/internal/logging"
)

const (
	exitOK             = 0
	exitBadArgs        = -1
	exitLoadFailed     = -2
	exitCheckFailed    = -3
	exitCreateFailed   = -4
	exitKilledByStop   = -5
	exitRuntimeStartup = 100
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		file     = flag.String("file", "", "path to the persisted model XML to load")
		session  = flag.String("session", "", "override the session id stored in the model file")
		interval = flag.Duration("interval", 200*time.Millisecond, "polling interval between samples")
		history  = flag.Int("history", 1, "number of past samples to print per variable, per poll")
		verbose  = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	if *file == "" {
		logger.Errorf("islview: -file is required")
		return exitBadArgs
	}

	conn, err := openisl.Load(*file)
	if err != nil {
		logger.Errorf("islview: failed to load %q: %v", *file, err)
		return exitLoadFailed
	}
	logger.Infof("loaded %s", *file)

	if *session != "" {
		if err := conn.SetSessionID(*session); err != nil {
			logger.Errorf("islview: %v", err)
			return exitBadArgs
		}
	}
	if err := conn.SetViewer(true); err != nil {
		logger.Errorf("islview: %v", err)
		return exitBadArgs
	}

	if err := conn.Check(); err != nil {
		logger.Errorf("islview: check failed: %v", err)
		return exitCheckFailed
	}
	logger.Infof("session %s checked", conn.SessionID())

	if err := conn.Create(""); err != nil {
		logger.Errorf("islview: create failed: %v", err)
		return exitCreateFailed
	}
	defer conn.Disconnect()

	if err := conn.Connect(0); err != nil {
		logger.Errorf("islview: connect failed: %v", err)
		return exitCreateFailed
	}
	logger.Infof("connected, watching %d variable(s)", len(conn.All()))

	if err := conn.ListenToExitSession(); err != nil {
		logger.Errorf("islview: failed to start stop listener: %v", err)
		return exitRuntimeStartup
	}
	defer conn.StopListening()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			logger.Infof("islview: shutdown requested")
			return exitOK
		case <-ticker.C:
			if conn.IsTerminated() {
				logger.Infof("islview: session terminated")
				return exitKilledByStop
			}
			printSamples(conn, *history)
		}
	}
}

func printSamples(conn *openisl.Connector, n int) {
	for id := range conn.All() {
		samples := conn.History(id, n)
		for _, s := range samples {
			fmt.Printf("%s@%g(step %g): % x\n", id, s.Time, s.Step, s.Value)
		}
	}
}
