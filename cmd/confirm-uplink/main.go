package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"uplinkhub/internal/config"
	"uplinkhub/internal/logging"
	"uplinkhub/internal/smoketest"
)

// confirm-uplink connects, calls test_uplink_connection once and disconnects.
// Exit status is 0 only when the call succeeded.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to load config: %v\n", err)
		os.Exit(smoketest.ExitFailure)
	}
	// library chatter stays out of the operator's way unless asked for
	if _, set := os.LookupEnv("LOG_LEVEL"); !set {
		cfg.LogLevel = "warn"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(smoketest.ExitFailure)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &smoketest.Runner{
		Key:       cfg.UplinkKey,
		Connector: smoketest.NewConnector(cfg, logger),
		Logger:    logger,
	}
	code := runner.Run(ctx, smoketest.ConfirmProfile)
	stop()
	os.Exit(code)
}
