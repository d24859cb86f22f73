// Package main is the entry point for the crewsettings command.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/crewsettings/internal/app"
	"github.com/dshills/crewsettings/internal/settings"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitRejected = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

// exitCode separates refused changes from operational failures.
func exitCode(err error) int {
	switch {
	case errors.Is(err, settings.ErrTypeMismatch),
		errors.Is(err, settings.ErrUnknownKey),
		errors.Is(err, settings.ErrInvalidServerURL),
		errors.Is(err, settings.ErrObserver),
		errors.Is(err, app.ErrResetNotAllowed),
		errors.Is(err, app.ErrUnsupportedValue):
		return exitRejected
	default:
		return exitError
	}
}
