package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/okian/tapscore/internal/tapsim"
	"github.com/okian/tapscore/pkg/logger"
)

const defaultRunTimeout = 2 * time.Minute

func main() {
	var (
		baseURL   = flag.String("url", tapsim.DefaultBaseURL, "Base URL of the service")
		uids      = flag.String("uids", strings.Join(tapsim.DefaultUIDs, ","), "Two comma separated uids")
		wait      = flag.Duration("wait", tapsim.DefaultWait, "Pause used to let the cooldown expire")
		burst     = flag.Int("burst", 0, "Concurrent taps fired after the scenario")
		timeout   = flag.Duration("timeout", tapsim.DefaultTimeout, "HTTP request timeout")
		output    = flag.String("output", "", "Write a JSON report to this file")
		logFormat = flag.String("log-format", "text", "Log format: text or json")
		verbose   = flag.Bool("verbose", false, "Log response bodies")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		tapsim.ShowHelp()
		return
	}

	if err := tapsim.SetupLogging(*logFormat, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &tapsim.Config{
		BaseURL:    strings.TrimRight(*baseURL, "/"),
		Timeout:    *timeout,
		Wait:       *wait,
		UIDs:       strings.Split(*uids, ","),
		Burst:      *burst,
		OutputFile: *output,
		Verbose:    *verbose,
	}

	if _, err := tapsim.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "scenario failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}
