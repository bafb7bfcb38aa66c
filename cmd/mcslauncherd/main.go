package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jg-phare/mcslauncherd/internal/app"
)

// logLevelEnv selects the global log verbosity; it never changes behavior
// beyond what gets written to stderr.
const logLevelEnv = "MCSLD_LOG_LEVEL"

func main() {
	root := flag.String("root", "daemon", "workspace root directory")
	flag.Parse()

	level := zerolog.InfoLevel
	if v := os.Getenv(logLevelEnv); v != "" {
		if parsed, err := zerolog.ParseLevel(v); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	a, err := app.New(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
