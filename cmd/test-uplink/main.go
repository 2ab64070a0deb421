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

	runner := &smoketest.Runner{
		Key:       cfg.UplinkKey,
		Connector: smoketest.NewConnector(cfg, logger),
		Logger:    logger,
	}
	code := runner.Run(ctx, smoketest.TestProfile)
	stop()
	os.Exit(code)
}
