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

// uplink-connect holds an uplink open until Enter is pressed (or SIGINT/SIGTERM)
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(smoketest.ExitFailure)
	}
	if _, set := os.LookupEnv("LOG_LEVEL"); !set {
		cfg.LogLevel = "warn"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(smoketest.ExitFailure)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name, _ := os.Hostname()
	if name == "" {
		name = "uplink-connect"
	}

	runner := &smoketest.Runner{
		Key:       cfg.UplinkKey,
		Connector: smoketest.NewConnector(cfg, logger),
		Logger:    logger,
	}
	if err := runner.Hold(ctx, name, smoketest.WaitForEnter(os.Stdin)); err != nil {
		stop()
		os.Exit(smoketest.ExitFailure)
	}
}
