package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/monstercameron/zerver-probe/internal/core"
	"github.com/monstercameron/zerver-probe/internal/history"
	"github.com/monstercameron/zerver-probe/internal/probe"
	"github.com/monstercameron/zerver-probe/internal/watch"
)

// Constants for route prefixing. Versioning is explicit to allow non-breaking additions.
const (
	APIVersion     = "v1"
	DefaultAddress = "127.0.0.1:8787"
)

// ProbeRunner is the slice of the watcher the handlers need. Tests provide
// fakes; production passes *watch.Watcher.
type ProbeRunner interface {
	Probe(ctx context.Context, cfg probe.Config) (core.Report, error)
	Start(ctx context.Context) error
	Stop() error
	Watching() bool
	Target() string
	Config() probe.Config
}

// ServerOptions configures the HTTP server.
// Timeouts are conservative defaults suitable for a local control-plane server.
type ServerOptions struct {
	Addr              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration

	// BaseContext is the lifecycle context for work that outlives a single
	// request, such as the watch loop started via /v1/start. Defaults to
	// context.Background().
	BaseContext context.Context

	Logger *slog.Logger
}

// Server hosts the HTTP API for the agent.
type Server struct {
	http   *http.Server
	state  *core.State
	runner ProbeRunner
	repo   history.Repository
	stream *Broadcaster
	logger *slog.Logger
	base   context.Context
	opts   ServerOptions
}

// NewServer constructs an API server bound to the shared state and watcher.
// repo may be nil (the reports endpoint then reports persistence as
// disabled) and stream may be nil (no live endpoint is registered).
// The server does not start listening until Start is called.
func NewServer(state *core.State, runner ProbeRunner, repo history.Repository, stream *Broadcaster, opts ServerOptions) *Server {
	if state == nil {
		panic("api.NewServer: state is nil")
	}
	if runner == nil {
		panic("api.NewServer: runner is nil")
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddress
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 2 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}

	mux := http.NewServeMux()
	s := &Server{
		state:  state,
		runner: runner,
		repo:   repo,
		stream: stream,
		logger: opts.Logger,
		base:   opts.BaseContext,
		opts:   opts,
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           withBasicMiddleware(mux, opts.Logger),
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       opts.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(opts.Logger.Handler(), slog.LevelError),
			BaseContext: func(l net.Listener) context.Context {
				return opts.BaseContext
			},
		},
	}

	// Routes
	mux.HandleFunc("/"+APIVersion+"/healthz", s.handleHealthz)
	mux.HandleFunc("/"+APIVersion+"/status", s.handleStatus)
	mux.HandleFunc("/"+APIVersion+"/probe", s.handleProbe)
	mux.HandleFunc("/"+APIVersion+"/reports", s.handleReports)
	mux.HandleFunc("/"+APIVersion+"/start", s.handleStart)
	mux.HandleFunc("/"+APIVersion+"/stop", s.handleStop)
	if stream != nil {
		mux.HandleFunc("/"+APIVersion+"/watch", stream.Handler())
	}

	return s
}

// Start begins serving HTTP in a background goroutine.
// It returns immediately; use Stop for graceful shutdown.
func (s *Server) Start() {
	go func() {
		s.logger.Info("api listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api serve failed", "error", err)
		}
	}()
}

// Stop gracefully shuts down the server, waiting up to ShutdownTimeout.
// Live stream connections are hijacked from the HTTP server, so they are
// dropped explicitly after the shutdown.
func (s *Server) Stop(ctx context.Context) error {
	timeout := s.opts.ShutdownTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := s.http.Shutdown(ctx)
	if s.stream != nil {
		s.stream.Close()
	}
	return err
}

// handleHealthz is a simple readiness/liveness endpoint.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, APIError{
			Error:     "method not allowed",
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": TimeNow().UTC().Format(time.RFC3339),
	})
}

// handleStatus returns the current agent snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, APIError{
			Error:     "method not allowed",
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}
	snap := s.state.GetSnapshot()
	resp := FromSnapshot(snap)
	writeJSON(w, http.StatusOK, resp)
}

// handleProbe runs one probe and returns its report.
// Method: POST
// Request: optional ProbeRequest JSON overriding the configured target
// Response (200): ReportView JSON (same shape as "last_report" in /v1/status)
// Errors:
//   - 400 for invalid inputs (port out of range, negative delays, bad JSON)
//   - 502 when the probe verdict is failure; state still updates
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, APIError{
			Error:     "method not allowed",
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}

	// Strict JSON decode with unknown-field rejection; an empty body keeps
	// the configured settings.
	var req ProbeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, APIError{
			Error:     "invalid JSON: " + err.Error(),
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}

	// Basic input validation (deeper checks happen inside the probe package).
	if req.Port < 0 || req.Port > 65535 {
		writeJSON(w, http.StatusBadRequest, APIError{
			Error:     "port must be between 0 and 65535",
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}
	if req.SettleMs < 0 {
		writeJSON(w, http.StatusBadRequest, APIError{
			Error:     "settle_ms must be >= 0",
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}
	if req.ReadTimeoutMs < 0 {
		writeJSON(w, http.StatusBadRequest, APIError{
			Error:     "read_timeout_ms must be >= 0",
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}

	// Request -> probe.Config mapping over the agent's configured base.
	cfg := s.runner.Config()
	if req.Host != "" {
		cfg.Host = req.Host
	}
	if req.Port != 0 {
		cfg.Port = req.Port
	}
	if req.SettleMs > 0 {
		cfg.SettleDelay = time.Duration(req.SettleMs) * time.Millisecond
	}
	if req.ReadTimeoutMs > 0 {
		cfg.ReadTimeout = time.Duration(req.ReadTimeoutMs) * time.Millisecond
	}
	if req.RequireResponse != nil {
		cfg.RequireResponse = *req.RequireResponse
	}
	if req.Request != "" {
		cfg.Request = []byte(req.Request)
	}

	// Run through the watcher so deduplication, state updates, history, and
	// live fan-out all apply; the probe enforces its own deadlines.
	report, err := s.runner.Probe(r.Context(), cfg)
	if err != nil {
		// Return a stable error; details are on the report via /v1/status.
		writeJSON(w, http.StatusBadGateway, APIError{
			Error:     "probe failed: " + err.Error(),
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}

	writeJSON(w, http.StatusOK, FromReport(report))
}

// handleReports lists persisted reports, newest first.
// Method: GET
// Query: limit (optional; defaults to the history package's limit)
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, APIError{
			Error:     "method not allowed",
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}
	if s.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, APIError{
			Error:     "history persistence is disabled",
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, APIError{
				Error:     "limit must be a non-negative integer",
				Timestamp: TimeNow().UTC().Format(time.RFC3339),
			})
			return
		}
		limit = n
	}

	recs, err := s.repo.Recent(limit)
	if err != nil {
		s.logger.Error("history read failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, APIError{
			Error:     "history read failed",
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}
	views := make([]RecordView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, FromRecord(rec))
	}
	writeJSON(w, http.StatusOK, ReportsResponse{
		Reports:     views,
		Count:       len(views),
		GeneratedAt: TimeNow().UTC().Format(time.RFC3339),
	})
}

// handleStart launches the periodic watch loop.
// Method: POST
// Response (200): WatchResponse
// Errors: 409 when the loop is already running
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, APIError{
			Error:     "method not allowed",
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}

	// The loop must outlive this request, so it runs on the server's
	// lifecycle context rather than r.Context().
	if err := s.runner.Start(s.base); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, watch.ErrAlreadyWatching) {
			status = http.StatusConflict
		}
		writeJSON(w, status, APIError{
			Error:     err.Error(),
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}

	snap := s.state.GetSnapshot()
	writeJSON(w, http.StatusOK, WatchResponse{
		Watching:   true,
		Target:     snap.Watch.Target,
		IntervalMs: snap.Watch.Interval.Milliseconds(),
	})
}

// handleStop halts the periodic watch loop.
// Method: POST
// Response (200): WatchResponse
// Errors: 409 when the loop is not running
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, APIError{
			Error:     "method not allowed",
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}

	if err := s.runner.Stop(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, watch.ErrNotWatching) {
			status = http.StatusConflict
		}
		writeJSON(w, status, APIError{
			Error:     err.Error(),
			Timestamp: TimeNow().UTC().Format(time.RFC3339),
		})
		return
	}

	writeJSON(w, http.StatusOK, WatchResponse{
		Watching: false,
		Target:   s.runner.Target(),
	})
}

// Basic middleware: sets JSON content type and very lightweight logging.
// No CORS or auth because this is a local control-plane service.
func withBasicMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := TimeNow()
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
		dur := time.Since(start)
		logger.Info("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", dur.Milliseconds(),
			"ua", r.UserAgent())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}
