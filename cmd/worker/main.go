// Command worker is the process entry point the runtime execs for an
// application instance: it wires the worker session to the local
// socket endpoint the runtime hands it and blocks for the session's
// lifetime.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"cocaine/worker"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	app := fs.String("app", "", "application name the runtime registered this worker under (required)")
	uuid := fs.String("uuid", "", "worker instance identifier the runtime assigned (required)")
	endpoint := fs.String("endpoint", "", "local socket endpoint to connect back to the runtime on (required)")
	locator := fs.String("locator", "", "comma-separated locator endpoints, host:port (bare port defaults host to localhost)")
	showVersion := fs.Bool("version", false, "print the worker binary version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *showVersion {
		fmt.Println(version)
		return 0
	}
	if *app == "" || *uuid == "" || *endpoint == "" {
		fmt.Fprintln(os.Stderr, "worker: --app, --uuid and --endpoint are required")
		fs.Usage()
		return 2
	}
	locatorEndpoints := parseLocators(*locator)

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: logger: %v\n", err)
		return 1
	}
	defer logger.Sync()
	logger = logger.With(zap.String("app", *app), zap.String("uuid", *uuid))
	if len(locatorEndpoints) > 0 {
		logger = logger.With(zap.Strings("locators", locatorEndpoints))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := worker.NewSession(*app, *uuid, worker.WithLogger(logger))
	if err := sess.Run(ctx, *endpoint); err != nil {
		logger.Warn("worker exited", zap.Error(err))
		if ctx.Err() != nil {
			return 0
		}
		return 1
	}
	return 0
}

// parseLocators splits a comma-separated --locator flag into individual
// host:port endpoints, defaulting a bare port's host to localhost.
func parseLocators(flagValue string) []string {
	if flagValue == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(flagValue); i++ {
		if i == len(flagValue) || flagValue[i] == ',' {
			if tok := flagValue[start:i]; tok != "" {
				out = append(out, normalizeLocator(tok))
			}
			start = i + 1
		}
	}
	return out
}

func normalizeLocator(tok string) string {
	for i := 0; i < len(tok); i++ {
		if tok[i] == ':' {
			return tok
		}
	}
	return "localhost:" + tok
}
