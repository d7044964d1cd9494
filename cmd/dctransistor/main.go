package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/LArkema/dctransistor-project/internal/api"
	"github.com/LArkema/dctransistor-project/internal/board"
	"github.com/LArkema/dctransistor-project/internal/config"
	"github.com/LArkema/dctransistor-project/internal/db"
	"github.com/LArkema/dctransistor-project/internal/metrics"
	"github.com/LArkema/dctransistor-project/internal/poller"
	"github.com/LArkema/dctransistor-project/internal/telemetry"
	"github.com/LArkema/dctransistor-project/internal/topology"
)

func main() {
	// Load base .env first, then .env.local (which overrides for local development)
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("Starting DC Transistor service...")

	cfg := config.Load()
	log.Printf("Config loaded: source=%s, poll_interval=%v, retention=%v", cfg.TelemetrySource, cfg.PollInterval, cfg.RetentionDuration)

	// ═══════════════════════════════════════════════════════
	// PHASE 1: Load Network Topology
	// ═══════════════════════════════════════════════════════
	network, err := topology.LoadNetwork(cfg.LinesFile)
	if err != nil {
		log.Fatalf("Failed to load network: %v", err)
	}
	if cfg.LinesFile == "" {
		log.Printf("Loaded embedded WMATA network: %d lines, %d indicators", len(network.Lines), network.Indicators)
	} else {
		log.Printf("Loaded network from %s: %d lines, %d indicators", cfg.LinesFile, len(network.Lines), network.Indicators)
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 2: Initialize Database
	// ═══════════════════════════════════════════════════════
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := db.Open(ctx, cfg.DatabasePath, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()
	log.Println("Database initialized")

	// ═══════════════════════════════════════════════════════
	// PHASE 3: Initialize Telemetry and Poller
	// ═══════════════════════════════════════════════════════
	source, err := newSource(cfg)
	if err != nil {
		log.Fatalf("Failed to configure telemetry: %v", err)
	}

	stream := api.NewStream()

	p := poller.New(board.New(network), source, poller.Options{
		Recorder:  store,
		Learner:   metrics.NewBaselineLearner(store),
		Publisher: stream,
	})

	// ═══════════════════════════════════════════════════════
	// PHASE 4: Start Polling Loop
	// ═══════════════════════════════════════════════════════
	log.Println("Running initial poll...")
	pollOnce(ctx, p, store, cfg)

	go func() {
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				pollOnce(ctx, p, store, cfg)
			case <-ctx.Done():
				log.Println("Polling loop stopped")
				return
			}
		}
	}()

	// ═══════════════════════════════════════════════════════
	// PHASE 5: Start HTTP API
	// ═══════════════════════════════════════════════════════
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(api.NewHandler(p, store), stream, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		api.LogRoutes(cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	log.Printf("Service running (poll every %v, retain %v)", cfg.PollInterval, cfg.RetentionDuration)

	// ═══════════════════════════════════════════════════════
	// PHASE 6: Graceful Shutdown
	// ═══════════════════════════════════════════════════════
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	// SSE clients hold their connections open; close the stream first.
	stream.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	log.Println("Goodbye!")
}

func newSource(cfg *config.Config) (telemetry.Source, error) {
	switch cfg.TelemetrySource {
	case config.SourcePositions:
		if cfg.WMATAAPIKey == "" {
			log.Println("Warning: WMATA_API_KEY is not set; train positions requests will be rejected")
		}
		return telemetry.NewPositionsClient(cfg.WMATAPositionsURL, cfg.WMATAAPIKey), nil
	case config.SourceGIS:
		return telemetry.NewGISClient(cfg.WMATAGISURL), nil
	case config.SourceGTFSRT:
		if cfg.GTFSVehiclePositionsURL == "" {
			return nil, errors.New("GTFS_VEHICLE_POSITIONS_URL is required for the gtfsrt source")
		}
		return telemetry.NewGTFSRTClient(cfg.GTFSVehiclePositionsURL, cfg.WMATAAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown TELEMETRY_SOURCE %q (expected %s, %s or %s)",
			cfg.TelemetrySource, config.SourcePositions, config.SourceGIS, config.SourceGTFSRT)
	}
}

func pollOnce(ctx context.Context, p *poller.Poller, store db.Store, cfg *config.Config) {
	if err := p.Poll(ctx); err != nil {
		log.Printf("Poll error: %v", err)
	}

	// Cleanup old data
	if err := store.Cleanup(ctx, cfg.RetentionDuration); err != nil {
		log.Printf("Cleanup error: %v", err)
	}
}
