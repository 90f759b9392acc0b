package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/exphon/speech-recording-app/internal/audio"
	"github.com/exphon/speech-recording-app/internal/bundle"
	"github.com/exphon/speech-recording-app/internal/config"
	"github.com/exphon/speech-recording-app/internal/download"
	"github.com/exphon/speech-recording-app/internal/metrics"
	"github.com/exphon/speech-recording-app/internal/recording"
	"github.com/exphon/speech-recording-app/internal/script"
	"github.com/exphon/speech-recording-app/internal/session"
)

// maxMultipartMemory is the part of a multipart upload kept in memory
const maxMultipartMemory = 8 << 20

// HTTPServer provides the local recording API
type HTTPServer struct {
	server   *http.Server
	handler  http.Handler
	logger   *slog.Logger
	config   *config.Config
	sessions *session.Manager
	saver    download.Saver
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	// Server state
	startTime  time.Time
	recordings atomic.Uint64
	fallbacks  atomic.Uint64
	archives   atomic.Uint64
}

// NewHTTPServer creates the API server. Archives requested with ?save=1
// go through saver; gatherer backs /metrics.
func NewHTTPServer(cfg *config.Config, logger *slog.Logger, sessions *session.Manager,
	saver download.Saver, m *metrics.Metrics, gatherer prometheus.Gatherer) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    cfg,
		sessions:  sessions,
		saver:     saver,
		metrics:   m,
		gatherer:  gatherer,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)
	h.handler = mux

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.GetReadTimeoutDuration(),
		WriteTimeout: cfg.HTTP.GetWriteTimeoutDuration(),
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Handler returns the routed handler, for embedding or tests
func (h *HTTPServer) Handler() http.Handler {
	return h.handler
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	route := func(pattern string, handler http.HandlerFunc) {
		endpoint := pattern[strings.Index(pattern, " ")+1:]
		mux.HandleFunc(pattern, h.withMetrics(endpoint, handler))
	}

	// Session lifecycle
	route("POST /sessions", h.handleCreateSession)
	route("GET /sessions", h.handleListSessions)
	route("GET /sessions/{id}", h.handleGetSession)
	route("DELETE /sessions/{id}", h.handleDeleteSession)
	route("POST /sessions/{id}/reset", h.handleResetSession)

	// Participant input
	route("PUT /sessions/{id}/metadata", h.handleSetMetadata)
	route("GET /sessions/{id}/metadata", h.handleGetMetadata)
	route("PUT /sessions/{id}/script", h.handleSetScript)
	route("GET /sessions/{id}/prompts", h.handlePrompts)

	// Recordings
	route("POST /sessions/{id}/recordings/{category}", h.handleRecord)
	route("POST /sessions/{id}/recordings/sentence/{ordinal}", h.handleRecord)
	route("GET /sessions/{id}/recordings", h.handleListRecordings)
	route("GET /sessions/{id}/recordings/{category}/{kind}", h.handleDownload)
	route("GET /sessions/{id}/recordings/sentence/{ordinal}/{kind}", h.handleDownload)

	// Archive
	route("POST /sessions/{id}/archive", h.handleArchive)

	// Service endpoints
	route("GET /health", h.handleHealth)
	route("GET /config", h.handleConfig)
	route("GET /stats", h.handleStats)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	route("GET /{$}", h.handleRoot)
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
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

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// session resolves the {id} path value or writes a 404
func (h *HTTPServer) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func (h *HTTPServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Create()
	if errors.Is(err, session.ErrTooManySessions) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, s.Info())
}

func (h *HTTPServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.List()
	infos := make([]session.Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_sessions": len(infos),
		"timestamp":      time.Now().UTC(),
		"sessions":       infos,
	})
}

func (h *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Info())
}

func (h *HTTPServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Remove(r.PathValue("id")) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPServer) handleResetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Reset()
	h.logger.Info("Session reset", slog.String("session_id", s.ID))
	writeJSON(w, http.StatusOK, s.Info())
}

func (h *HTTPServer) handleSetMetadata(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var meta recording.Metadata
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.UseNumber()
	if err := dec.Decode(&meta); err != nil {
		http.Error(w, "Metadata must be a JSON object: "+err.Error(), http.StatusBadRequest)
		return
	}
	if meta == nil {
		meta = recording.Metadata{}
	}
	if meta.Text(recording.KeyParticipantID) == "" {
		meta[recording.KeyParticipantID] = recording.NewParticipantID()
	}

	stored, err := s.SetMetadata(meta)
	var verr *recording.ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, recording.ErrMetadataSubmitted):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stored)
}

func (h *HTTPServer) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	meta := s.Metadata()
	if meta == nil {
		http.Error(w, "Metadata not submitted", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// handleSetScript accepts a custom script as the request body, or picks a
// built-in set with ?set=<id>
func (h *HTTPServer) handleSetScript(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var sc *script.Script
	if id := r.URL.Query().Get("set"); id != "" {
		set, found := script.SetByID(id)
		if !found {
			http.Error(w, fmt.Sprintf("Unknown script set %q", id), http.StatusBadRequest)
			return
		}
		sc = &set
	} else {
		data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "Failed to read script", http.StatusBadRequest)
			return
		}
		sc, err = script.Parse(data)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := s.SetScript(sc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.Prompts())
}

func (h *HTTPServer) handlePrompts(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Prompts())
}

// itemFromPath resolves {category} or the sentence {ordinal} route
func itemFromPath(r *http.Request) (recording.Category, int, error) {
	if ord := r.PathValue("ordinal"); ord != "" {
		n, err := strconv.Atoi(ord)
		if err != nil || n < 0 {
			return 0, 0, &recording.ValidationError{Field: "ordinal", Message: fmt.Sprintf("invalid sentence ordinal %q", ord)}
		}
		return recording.CategorySentence, n, nil
	}

	category, err := recording.ParseCategory(r.PathValue("category"))
	if err != nil {
		return 0, 0, err
	}
	if category == recording.CategorySentence {
		return 0, 0, &recording.ValidationError{Field: "ordinal", Message: "sentence recordings need an ordinal"}
	}
	return category, 0, nil
}

// readClip reads the capture from a multipart "audio" part or the raw body
func (h *HTTPServer) readClip(w http.ResponseWriter, r *http.Request) (audio.Clip, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.HTTP.MaxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return audio.Clip{}, "", err
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			return audio.Clip{}, "", fmt.Errorf("missing audio part: %w", err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return audio.Clip{}, "", err
		}
		return audio.Clip{Data: data, MediaType: header.Header.Get("Content-Type")}, r.FormValue("text"), nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return audio.Clip{}, "", err
	}

	text := r.Header.Get("X-Prompt-Text")
	if unescaped, err := url.PathUnescape(text); err == nil {
		text = unescaped
	}
	return audio.Clip{Data: data, MediaType: r.Header.Get("Content-Type")}, text, nil
}

func (h *HTTPServer) handleRecord(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	category, ordinal, err := itemFromPath(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	clip, text, err := h.readClip(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Recording too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read recording: "+err.Error(), http.StatusBadRequest)
		return
	}

	artifact, err := s.Record(r.Context(), category, ordinal, text, clip)
	if err != nil {
		var verr *recording.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.recordings.Add(1)
	if artifact.Fallback {
		h.fallbacks.Add(1)
	}
	h.metrics.RecordRecording(category.String())

	writeJSON(w, http.StatusCreated, artifact.Info())
}

func (h *HTTPServer) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	all := s.Store().Snapshot().All()
	infos := make([]recording.ArtifactInfo, 0, len(all))
	for _, a := range all {
		infos = append(infos, a.Info())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_recordings": len(infos),
		"recordings":       infos,
	})
}

// handleDownload sends one artifact's audio or prompt text
func (h *HTTPServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	category, ordinal, err := itemFromPath(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	artifact, found := s.Store().Get(category, ordinal)
	if !found {
		http.Error(w, recording.ErrNotRecorded.Error(), http.StatusNotFound)
		return
	}

	switch r.PathValue("kind") {
	case "audio":
		err = download.WriteAttachment(w, artifact.Audio, artifact.Filename, artifact.MediaType)
	case "text":
		err = download.WriteAttachment(w, []byte(artifact.Text), artifact.TextFilename(), "text/plain; charset=utf-8")
	default:
		http.Error(w, "Download kind must be audio or text", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Warn("Download failed",
			slog.String("session_id", s.ID),
			slog.String("filename", artifact.Filename),
			slog.String("error", err.Error()),
		)
	}
}

// handleArchive assembles the session archive and sends it, or saves it
// into the output directory when ?save=1 is given
func (h *HTTPServer) handleArchive(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	archive, err := s.Archive(r.Context())
	if err != nil {
		var aerr *bundle.AssemblyError
		switch {
		case errors.Is(err, bundle.ErrNothingToArchive), errors.Is(err, bundle.ErrAssemblyInProgress):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.As(err, &aerr):
			h.logger.Error("Archive assembly failed",
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()),
			)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	h.archives.Add(1)

	if save, _ := strconv.ParseBool(r.URL.Query().Get("save")); save {
		path, err := h.saver.Save(r.Context(), archive.Data, archive.Name)
		if err != nil {
			http.Error(w, "Failed to save archive: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"name":       archive.Name,
			"path":       path,
			"size_bytes": archive.Size(),
			"entries":    archive.Entries,
		})
		return
	}

	if err := download.WriteAttachment(w, archive.Data, archive.Name, "application/zip"); err != nil {
		h.logger.Warn("Archive download failed",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
	}
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]any{
			"name":    "speech-recording-app",
			"version": "1.0.0",
		},
		"components": map[string]any{
			"session_manager": map[string]any{
				"status":          "running",
				"active_sessions": h.sessions.Count(),
			},
			"ffmpeg_decoder": map[string]any{
				"enabled": h.config.Audio.FFmpegPath != "",
			},
		},
	})
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"http": map[string]any{
			"address":          h.config.HTTP.Address,
			"port":             h.config.HTTP.Port,
			"max_upload_bytes": h.config.HTTP.MaxUploadBytes,
		},
		"audio": map[string]any{
			"decode_timeout":         h.config.Audio.DecodeTimeout,
			"max_concurrent_decodes": h.config.Audio.MaxConcurrentDecodes,
			"ffmpeg_path":            h.config.Audio.FFmpegPath,
			"speech_threshold":       h.config.Audio.SpeechThreshold,
			"min_speech_duration":    h.config.Audio.MinSpeechDuration,
		},
		"session": map[string]any{
			"timeout":      h.config.Session.Timeout,
			"max_sessions": h.config.Session.MaxSessions,
		},
		"archive": map[string]any{
			"root_folder": h.config.Archive.RootFolder,
			"compression": h.config.Archive.Compression,
			"level":       h.config.Archive.Level,
			"output_dir":  h.config.Archive.OutputDir,
		},
		"logging": map[string]any{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	})
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"sessions": map[string]any{
			"active_count": h.sessions.Count(),
		},
		"recordings": map[string]any{
			"stored":    h.recordings.Load(),
			"fallbacks": h.fallbacks.Load(),
		},
		"archives": map[string]any{
			"assembled": h.archives.Load(),
		},
	})
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "Speech Recording Engine",
		"version": "1.0.0",
		"endpoints": []string{
			"GET / - API documentation",
			"POST /sessions - start a session",
			"GET /sessions - list sessions",
			"GET /sessions/{id} - session details",
			"DELETE /sessions/{id} - remove a session",
			"POST /sessions/{id}/reset - discard recordings and metadata",
			"PUT /sessions/{id}/metadata - submit participant metadata once (JSON object)",
			"GET /sessions/{id}/metadata - submitted metadata",
			"PUT /sessions/{id}/script - upload a custom script, or ?set=A..E",
			"GET /sessions/{id}/prompts - prompts to read",
			"POST /sessions/{id}/recordings/words - record the word list",
			"POST /sessions/{id}/recordings/sentence/{ordinal} - record a sentence (0-based ordinal)",
			"POST /sessions/{id}/recordings/paragraph - record the paragraph",
			"GET /sessions/{id}/recordings - list recordings",
			"GET /sessions/{id}/recordings/{category}[/{ordinal}]/{audio|text} - download one file",
			"POST /sessions/{id}/archive - download everything as zip, ?save=1 writes to output_dir",
			"GET /health - service health check",
			"GET /config - service configuration",
			"GET /stats - service statistics",
			"GET /metrics - Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	})
}
