package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"uplinkhub/internal/config"
	"uplinkhub/internal/logging"
	"uplinkhub/internal/microservices/bridge"
)

func main() {
	// Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Setup structured logging
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger = logger.With("service", "uplink-bridge")

	// UPLINK_SERVER_KEY may hold the bcrypt hash so the plain key never sits in the environment
	keys, err := bridge.KeyAuthenticatorFor(cfg.ServerKey, bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to prepare uplink key: %v", err)
	}

	registry := bridge.NewRegistry()
	if err := bridge.RegisterDiagnostics(registry, time.Now); err != nil {
		log.Fatalf("Failed to register diagnostics: %v", err)
	}

	// Session presence: Redis when configured, in-memory otherwise
	var store bridge.SessionStore = bridge.NewMemorySessionStore()
	if cfg.RedisURL != "" {
		redisOpts, err := cfg.RedisOptions()
		if err != nil {
			log.Fatalf("Invalid config: %v", err)
		}
		redisStore, err := bridge.NewRedisSessionStore(redisOpts, 2*cfg.TicketTTL)
		if err != nil {
			log.Fatalf("Failed to connect session store: %v", err)
		}
		defer redisStore.Close()
		store = redisStore
		logger.Info("session_store_redis", "redis_addr", redisOpts.Addr, "redis_db", redisOpts.DB)
	}

	server := bridge.NewServer(bridge.Options{
		Addr:     cfg.ServerAddr(),
		Keys:     keys,
		Tickets:  bridge.NewTicketService(cfg.TicketSecret, cfg.TicketTTL),
		Registry: registry,
		Store:    store,
		Logger:   logger,
	})

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		logger.Info("received_shutdown_signal")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			logger.Error("server_shutdown_failed", "error", err)
			return
		}
		logger.Info("server_stopped_gracefully")
	case err := <-errChan:
		logger.Error("server_error", "error", err.Error())
		os.Exit(1)
	}
}
