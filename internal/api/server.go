// Package api implements the planner HTTP API.
package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/buildinfo"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/events"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/planner"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/session"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/store"
	"github.com/BzlZavLed/clubAdmin-sub000/internal/usage"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// MessageHandler runs one conversational turn.
type MessageHandler interface {
	HandleMessage(ctx context.Context, req planner.Request) (*planner.Reply, error)
}

// Records is the read side of the record store used by the views.
type Records interface {
	GetEvent(ctx context.Context, id string) (*store.Event, error)
	LoadSession(ctx context.Context, eventID string) (*session.Session, error)
}

// Ledger is the read side of the usage ledger.
type Ledger interface {
	Today(ctx context.Context, organizationID string) (usage.DailyUsage, error)
	ListRequests(ctx context.Context, eventID string, limit int) ([]usage.RequestLog, error)
}

// Config wires a Server.
type Config struct {
	Address  string
	Port     int
	Planner  MessageHandler
	Records  Records
	Ledger   Ledger
	Bus      *events.Bus
	Logger   *slog.Logger
	Markdown goldmark.Markdown
}

// Server is the HTTP API server.
type Server struct {
	address  string
	port     int
	planner  MessageHandler
	records  Records
	ledger   Ledger
	bus      *events.Bus
	markdown goldmark.Markdown
	logger   *slog.Logger
	server   *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	md := cfg.Markdown
	if md == nil {
		md = goldmark.New()
	}
	return &Server{
		address:  cfg.Address,
		port:     cfg.Port,
		planner:  cfg.Planner,
		records:  cfg.Records,
		ledger:   cfg.Ledger,
		bus:      cfg.Bus,
		markdown: md,
		logger:   logger.With("component", "api"),
	}
}

// Handler returns the routed handler with access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/events/{id}/messages", s.handleMessage)
	mux.HandleFunc("GET /v1/events/{id}/session", s.handleSession)
	mux.HandleFunc("GET /v1/events/{id}/requests", s.handleRequests)
	mux.HandleFunc("GET /v1/organizations/{id}/usage", s.handleUsage)
	mux.HandleFunc("GET /v1/events/stream", s.handleStream)

	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Turns may run three model rounds plus place lookups.
		WriteTimeout: 5 * time.Minute,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack passes the connection through for websocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "clubplanner",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

// MessageRequest is the body of POST /v1/events/{id}/messages.
type MessageRequest struct {
	User             string `json:"user"`
	Message          string `json:"message"`
	CreateBudgetItem *bool  `json:"create_budget_item,omitempty"`
	Debug            bool   `json:"debug,omitempty"`
}

// MessageResponse is the handled turn plus the assistant message
// rendered as HTML.
type MessageResponse struct {
	*planner.Reply
	AssistantHTML string `json:"assistant_html"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")

	var req MessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := s.planner.HandleMessage(r.Context(), planner.Request{
		EventID:          eventID,
		User:             req.User,
		Message:          req.Message,
		CreateBudgetItem: req.CreateBudgetItem,
		Debug:            req.Debug,
	})
	if err != nil {
		s.turnError(w, eventID, err)
		return
	}

	resp := MessageResponse{Reply: reply}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(reply.AssistantMessage), &buf); err != nil {
		s.logger.Warn("assistant markdown not rendered", "event_id", eventID, "error", err)
	} else {
		resp.AssistantHTML = buf.String()
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}

// turnError maps a failed turn to a status code.
func (s *Server) turnError(w http.ResponseWriter, eventID string, err error) {
	var le *usage.LimitError
	switch {
	case errors.As(err, &le):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		writeJSON(w, map[string]any{
			"error": map[string]any{
				"message": le.Error(),
				"type":    "limit_exceeded",
				"scope":   le.Scope,
				"limit":   le.Limit,
				"current": le.Current,
				"code":    http.StatusTooManyRequests,
			},
		}, s.logger)
	case errors.Is(err, store.ErrNotFound):
		s.errorResponse(w, http.StatusNotFound, "event not found")
	case errors.Is(err, planner.ErrRemote):
		s.logger.Error("planning turn failed", "event_id", eventID, "error", err)
		s.errorResponse(w, http.StatusBadGateway, "the planning assistant is unavailable, try again shortly")
	default:
		s.logger.Error("planning turn failed", "event_id", eventID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "planning turn failed")
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	sess, err := s.records.LoadSession(r.Context(), eventID)
	if errors.Is(err, store.ErrNotFound) {
		// An event nobody has talked about yet has an empty session.
		ev, evErr := s.records.GetEvent(r.Context(), eventID)
		if evErr != nil {
			s.lookupError(w, evErr)
			return
		}
		sess = session.New(ev.ID)
		sess.SeedMissingItems(ev.EventType)
		err = nil
	}
	if err != nil {
		s.lookupError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, sess, s.logger)
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	rows, err := s.ledger.ListRequests(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.lookupError(w, err)
		return
	}
	if rows == nil {
		rows = []usage.RequestLog{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"requests": rows, "count": len(rows)}, s.logger)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	day, err := s.ledger.Today(r.Context(), r.PathValue("id"))
	if err != nil {
		s.lookupError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, day, s.logger)
}

func (s *Server) lookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "not found")
		return
	}
	s.logger.Error("lookup failed", "error", err)
	s.errorResponse(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	typ := "invalid_request_error"
	if code >= 500 {
		typ = "server_error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    typ,
			"code":    code,
		},
	}, s.logger)
}
