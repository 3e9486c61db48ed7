package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/driftboard/driftboard/internal/config"
	"github.com/driftboard/driftboard/internal/orchestrator"
	"github.com/driftboard/driftboard/internal/relay"
	"github.com/driftboard/driftboard/pkg/board"
)

func main() {
	// 1. Locate and load driftboard.yml
	configPath := os.Getenv("DRIFTBOARD_CONFIG")
	if configPath == "" {
		configPath = "driftboard.yml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load %s: %v\n", configPath, err)
		os.Exit(1)
	}

	log := zerolog.New(os.Stderr).With().Timestamp().Str("instance", cfg.Instance).Logger()

	// 2. Create store client and verify Redis connectivity
	store, err := board.NewClient(cfg.RedisOptions(), cfg.Instance)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create store client: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	// 3. Wire the relay: hub, bridge and websocket server. Each server
	// process gets a unique origin so bridges can skip their own envelopes.
	serverOrigin := cfg.Instance + "/" + uuid.New().String()[:8]
	hub := relay.NewHub(log)
	verifier := config.NewTokenVerifier(cfg.Auth)

	// The orchestrator announces under a distinct origin so its events reach
	// local rooms through the bridge like everyone else's.
	orch := orchestrator.New(store, store, serverOrigin+"/api", log)
	relaySrv := relay.NewServer(hub, verifier, orch, store, serverOrigin, log)
	bridge := relay.NewBridge(store, hub, serverOrigin, log)

	// 4. Setup graceful shutdown
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// 5. Start the bridge
	bridgeErrCh := make(chan error, 1)
	go func() {
		bridgeErrCh <- bridge.Run(runCtx)
		close(bridgeErrCh)
	}()

	// 6. Start the health endpoint
	health := orchestrator.NewHealthServer(store, cfg.Server.HealthListen, log)
	if err := health.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to start health server: %v\n", err)
		os.Exit(1)
	}

	// 7. Start the websocket endpoint
	mux := http.NewServeMux()
	mux.Handle("/ws", relaySrv)
	httpSrv := &http.Server{
		Addr:        cfg.Server.Listen,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	httpErrCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", cfg.Server.Listen).Msg("relay listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			httpErrCh <- err
		}
	}()

	// 8. Wait for shutdown signal or a fatal error
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case err := <-httpErrCh:
		log.Error().Err(err).Msg("relay server error")
	case err := <-bridgeErrCh:
		if err != nil {
			log.Error().Err(err).Msg("bridge error")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = health.Shutdown(shutdownCtx)
	for range bridgeErrCh {
		// Drain until the bridge goroutine exits.
	}

	log.Info().Msg("daemon stopped")
}
