package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/praneethkukunuru/omi-all/internal/audio"
	"github.com/praneethkukunuru/omi-all/internal/catalog"
	"github.com/praneethkukunuru/omi-all/internal/config"
	"github.com/praneethkukunuru/omi-all/internal/events"
	"github.com/praneethkukunuru/omi-all/internal/metrics"
	"github.com/praneethkukunuru/omi-all/internal/playback"
)

const (
	serviceName    = "omi-audio-receiver"
	serviceVersion = "1.0.0"
)

// HTTPServer is the ingestion listener plus the monitoring and playback
// control surface.
type HTTPServer struct {
	server  *http.Server
	handler http.Handler
	logger  *slog.Logger
	config  *config.Config
	catalog *catalog.Catalog
	player  *playback.Controller
	bus     *events.Bus
	metrics *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates the HTTP server with all routes configured.
// gateway may be nil when no presentation bridge is attached.
func NewHTTPServer(cfg *config.Config, logger *slog.Logger, cat *catalog.Catalog,
	player *playback.Controller, bus *events.Bus, m *metrics.Metrics, gateway *Gateway) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    cfg,
		catalog:   cat,
		player:    player,
		bus:       bus,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	if gateway != nil {
		gateway.Attach(mux)
	}

	h.handler = mux
	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.GetRequestTimeout(),
		WriteTimeout: cfg.Server.GetRequestTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Device-facing ingestion endpoint
	mux.HandleFunc("/audio", h.withMetrics("/audio", h.handleAudio))

	// Liveness probe; must answer regardless of ingestion health
	mux.HandleFunc("/ping", h.withMetrics("/ping", h.handlePing))

	// Catalog listing
	mux.HandleFunc("/recordings", h.withMetrics("/recordings", h.handleRecordings))

	// Playback control
	mux.HandleFunc("/playback/play", h.withMetrics("/playback/play", h.handlePlaybackPlay))
	mux.HandleFunc("/playback/stop", h.withMetrics("/playback/stop", h.handlePlaybackStop))
	mux.HandleFunc("/playback/status", h.withMetrics("/playback/status", h.handlePlaybackStatus))

	// Monitoring endpoints
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := strconv.Itoa(ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler exposes the route tree for tests.
func (h *HTTPServer) Handler() http.Handler {
	return h.handler
}

// Start begins accepting requests and announces the listener on the
// notification channel once the port is bound.
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server",
		slog.String("address", h.server.Addr),
	)

	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.server.Addr, err)
	}

	go func() {
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	h.publish(events.Event{
		Type:    events.TypeServerStarted,
		Payload: events.ServerStarted{Port: h.config.Server.Port},
	})

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")

	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) publish(ev events.Event) {
	h.bus.Publish(ev)
	h.metrics.RecordEventPublished(string(ev.Type))
}

// handleAudio implements the device-facing POST /audio webhook. The
// payload is raw PCM16 mono; sample_rate and uid arrive as query
// parameters. Success is only acknowledged after the container file is
// durably on disk and cataloged.
func (h *HTTPServer) handleAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.metrics.IngestRequests.Inc()

	maxBody := h.config.Server.MaxBodyBytes
	if r.ContentLength > maxBody {
		h.metrics.RecordIngestFailure()
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("body exceeds limit of %d bytes", maxBody))
		return
	}

	// Declared-empty bodies fail fast; chunked bodies are caught after
	// the copy below.
	if r.ContentLength == 0 {
		h.metrics.RecordIngestFailure()
		writeError(w, http.StatusBadRequest, "empty audio payload")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	sampleRate := parsePositiveInt(r.URL.Query().Get("sample_rate"), h.config.Audio.DefaultSampleRate)
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		uid = catalog.DefaultUID
	}

	receivedAt := time.Now()
	filename := h.catalog.NextFilename(receivedAt)
	path := filepath.Join(h.catalog.Dir(), filename)

	encodeStart := time.Now()

	fw, err := audio.NewFileWriter(path, sampleRate)
	if err != nil {
		h.ingestFailed(w, r, filename, http.StatusInternalServerError, "failed to create recording file", err)
		return
	}

	n, err := io.Copy(fw, r.Body)
	if err != nil {
		fw.Abort()

		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.ingestFailed(w, r, filename, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("body exceeds limit of %d bytes", maxBody), err)
			return
		}

		h.ingestFailed(w, r, filename, http.StatusInternalServerError, "failed to store audio payload", err)
		return
	}

	if n == 0 {
		fw.Abort()
		h.metrics.RecordIngestFailure()
		writeError(w, http.StatusBadRequest, "empty audio payload")
		return
	}

	if err := fw.Close(); err != nil {
		h.ingestFailed(w, r, filename, http.StatusInternalServerError, "failed to finalize recording", err)
		return
	}

	duration := float64(n) / float64(sampleRate*audio.BytesPerSample*audio.NumChannels)

	rec := catalog.Recording{
		Filename:   filename,
		Path:       path,
		ReceivedAt: receivedAt,
		SampleRate: sampleRate,
		BitDepth:   audio.BitsPerSample,
		Channels:   audio.NumChannels,
		UID:        uid,
		SizeBytes:  audio.HeaderSize + n,
		Duration:   duration,
	}

	h.catalog.Append(rec)
	h.metrics.RecordIngestSuccess(n, duration, time.Since(encodeStart).Seconds())
	h.metrics.SetCatalogSize(h.catalog.Len())

	h.publish(events.Event{
		Type: events.TypeNewAudioFile,
		Payload: events.NewAudioFile{
			Filename:     rec.Filename,
			Path:         rec.Path,
			ReceivedDate: rec.ReceivedAt,
			SampleRate:   rec.SampleRate,
			UID:          rec.UID,
		},
	})

	h.logger.Info("Recording ingested",
		slog.String("filename", filename),
		slog.String("uid", uid),
		slog.Int("sample_rate", sampleRate),
		slog.Int64("payload_bytes", n),
		slog.Float64("duration_seconds", duration),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"filename": filename,
	})
}

func (h *HTTPServer) ingestFailed(w http.ResponseWriter, r *http.Request, filename string, status int, msg string, err error) {
	h.metrics.RecordIngestFailure()
	h.logger.Error("Ingestion failed",
		slog.String("filename", filename),
		slog.String("remote", r.RemoteAddr),
		slog.String("error", err.Error()),
	)
	writeError(w, status, msg)
}

// handlePing implements the liveness probe. It must answer regardless
// of ingestion health or playback activity.
func (h *HTTPServer) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

// handleRecordings implements the GET /recordings listing
func (h *HTTPServer) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	recordings := h.catalog.List()

	writeJSON(w, http.StatusOK, map[string]any{
		"total":      len(recordings),
		"recordings": recordings,
	})
}

// handlePlaybackPlay starts playback of a cataloged recording, stopping
// any session already in flight first.
func (h *HTTPServer) handlePlaybackPlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filename := r.URL.Query().Get("file")
	if filename == "" {
		writeError(w, http.StatusBadRequest, "missing file parameter")
		return
	}

	rec, ok := h.catalog.Get(filename)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("recording %s not found", filename))
		return
	}

	sessionID, err := h.player.Play(rec)
	if err != nil {
		h.metrics.PlaybackFailures.Inc()
		h.logger.Error("Playback failed",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "playback failed: "+err.Error())
		return
	}

	h.metrics.PlaybacksStarted.Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"session_id": sessionID,
		"filename":   filename,
	})
}

func (h *HTTPServer) handlePlaybackStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.player.Stop()

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *HTTPServer) handlePlaybackStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, h.player.Status())
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	uptime := time.Since(h.startTime)

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]any{
			"name":    serviceName,
			"version": serviceVersion,
		},
		"components": map[string]any{
			"catalog": map[string]any{
				"status":     "running",
				"recordings": h.catalog.Len(),
				"directory":  h.catalog.Dir(),
			},
			"playback": map[string]any{
				"status": "running",
				"state":  h.player.State().String(),
			},
			"notifications": map[string]any{
				"status":      "running",
				"subscribers": h.bus.SubscriberCount(),
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats := map[string]any{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"catalog": map[string]any{
			"recordings": h.catalog.Len(),
		},
		"playback": h.player.Status(),
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sanitizedConfig := map[string]any{
		"server": map[string]any{
			"port":            h.config.Server.Port,
			"address":         h.config.Server.Address,
			"max_body_bytes":  h.config.Server.MaxBodyBytes,
			"request_timeout": h.config.Server.RequestTimeout,
		},
		"storage": map[string]any{
			"dir":         h.config.Storage.Dir,
			"file_prefix": h.config.Storage.FilePrefix,
		},
		"audio": map[string]any{
			"default_sample_rate": h.config.Audio.DefaultSampleRate,
			"channels":            h.config.Audio.Channels,
			"bit_depth":           h.config.Audio.BitDepth,
		},
		"playback": map[string]any{
			"enabled":           h.config.Playback.Enabled,
			"frames_per_buffer": h.config.Playback.FramesPerBuffer,
		},
		"logging": map[string]any{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, sanitizedConfig)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]any{
		"service": serviceName,
		"version": serviceVersion,
		"endpoints": map[string]any{
			"POST /audio":          "Ingest raw PCM16 mono audio (query: sample_rate, uid)",
			"GET /ping":            "Liveness probe",
			"GET /recordings":      "List cataloged recordings, newest first",
			"POST /playback/play":  "Play a cataloged recording (query: file)",
			"POST /playback/stop":  "Stop the active playback session",
			"GET /playback/status": "Playback state and progress",
			"GET /health":          "Service health check",
			"GET /stats":           "Service statistics",
			"GET /config":          "Service configuration",
			"GET /metrics":         "Prometheus metrics",
			"WS /socket.io/":       "Presentation layer event stream",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, apiDoc)
}

// parsePositiveInt returns the parsed value, or fallback when the raw
// string is missing, unparsable, or non-positive.
func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}

	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"status":  "error",
		"message": msg,
	})
}
