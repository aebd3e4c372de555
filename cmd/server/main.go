package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/praneethkukunuru/omi-all/internal/catalog"
	"github.com/praneethkukunuru/omi-all/internal/config"
	"github.com/praneethkukunuru/omi-all/internal/events"
	"github.com/praneethkukunuru/omi-all/internal/metrics"
	"github.com/praneethkukunuru/omi-all/internal/playback"
	"github.com/praneethkukunuru/omi-all/internal/server"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "omi-audio-receiver"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration; a missing file means built-in defaults
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg = config.Default()
		} else {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary
	logger.Info("Configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("bind_address", cfg.Server.Address),
		slog.String("storage_dir", cfg.Storage.Dir),
		slog.Int("default_sample_rate", cfg.Audio.DefaultSampleRate),
		slog.Bool("playback_enabled", cfg.Playback.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()

	// Initialize the recording catalog from disk
	cat := catalog.New(cfg.Storage.Dir, cfg.Storage.FilePrefix, logger)
	if err := cat.Scan(); err != nil {
		logger.Error("Failed to scan recordings directory", slog.String("error", err.Error()))
		os.Exit(1)
	}
	appMetrics.SetCatalogSize(cat.Len())
	logger.Info("Recording catalog initialized",
		slog.String("directory", cat.Dir()),
		slog.Int("recordings", cat.Len()),
	)

	// Notification bus for presentation layers
	bus := events.NewBus()

	// Playback device: PortAudio when enabled, a rejecting stub otherwise
	deviceFactory := playback.DisabledFactory
	if cfg.Playback.Enabled {
		if err := playback.Initialize(); err != nil {
			logger.Warn("Audio output unavailable, playback disabled",
				slog.String("error", err.Error()),
			)
		} else {
			defer func() {
				if err := playback.Terminate(); err != nil {
					logger.Warn("Failed to terminate audio output", slog.String("error", err.Error()))
				}
			}()
			deviceFactory = playback.PortAudioFactory(cfg.Playback.FramesPerBuffer)
			logger.Info("Audio output initialized",
				slog.Int("frames_per_buffer", cfg.Playback.FramesPerBuffer),
			)
		}
	}
	player := playback.NewController(logger, deviceFactory, cfg.Playback.FramesPerBuffer)

	// Socket.io gateway for presentation clients
	gateway := server.NewGateway(bus, logger)
	gateway.Start()
	logger.Info("Presentation gateway initialized")

	// HTTP server carries ingestion, monitoring, and the gateway mount
	httpServer := server.NewHTTPServer(cfg, logger, cat, player, bus, appMetrics, gateway)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	// Stop the HTTP server first (stop accepting new requests)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Detach the gateway from the bus and close client connections
	gateway.Stop()

	// Halt any playback still in flight
	player.Stop()

	logger.Info("Final catalog statistics",
		slog.Int("recordings", cat.Len()),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
