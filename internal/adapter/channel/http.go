package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/sessionstore"
	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/infra/config"
	"github.com/saurav-sabu/RepoScribe/internal/infra/middleware"
	"github.com/saurav-sabu/RepoScribe/internal/usecase/multiagent"
)

const maxRequestBody = 1 << 20

// HTTPChannel serves the team over a JSON API.
type HTTPChannel struct {
	team   Team
	cfg    config.HTTPConfig
	logger *slog.Logger

	server    *http.Server
	boundAddr string
	cancel    context.CancelFunc
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

type chatResponse struct {
	SessionID            string                `json:"session_id"`
	Content              string                `json:"content"`
	State                domain.TeamState      `json:"state"`
	AwaitingConfirmation bool                  `json:"awaiting_confirmation"`
	Pending              []multiagent.Proposal `json:"pending,omitempty"`
	Failures             []multiagent.Failure  `json:"failures,omitempty"`
	Workers              []string              `json:"workers,omitempty"`
	Code                 domain.ErrorCode      `json:"code,omitempty"`
	// Warning is set when the reply was produced but the turn was not saved.
	Warning string `json:"warning,omitempty"`
}

type sessionResponse struct {
	Snapshot multiagent.Snapshot `json:"snapshot"`
	History  []domain.Turn       `json:"history"`
}

type errorResponse struct {
	Error     string           `json:"error"`
	Code      domain.ErrorCode `json:"code"`
	SessionID string           `json:"session_id,omitempty"`
}

// NewHTTPChannel creates the HTTP front end. Start binds it.
func NewHTTPChannel(team Team, cfg config.HTTPConfig, logger *slog.Logger) *HTTPChannel {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HTTPChannel{team: team, cfg: cfg, logger: logger}
}

// Handler returns the routed API wrapped in the middleware chain. The rate
// limiter's sweeper stops when ctx is done.
func (h *HTTPChannel) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", h.handleChat)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.handleSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.handleReset)
	mux.HandleFunc("GET /api/v1/health", h.handleHealth)

	return middleware.Chain(mux,
		middleware.Recover(h.logger),
		middleware.RequestLogger(h.logger),
		middleware.SecurityHeaders,
		middleware.RateLimit(ctx, middleware.RateLimitConfig{
			RequestsPerMin: h.cfg.RateLimit,
			BurstSize:      h.cfg.Burst,
			TrustedProxies: h.cfg.TrustedProxies,
		}),
		middleware.MaxBody(maxRequestBody),
	)
}

// Start begins serving in the background.
func (h *HTTPChannel) Start(ctx context.Context) error {
	ctx, h.cancel = context.WithCancel(ctx)

	ln, err := net.Listen("tcp", h.cfg.Addr)
	if err != nil {
		h.cancel()
		return fmt.Errorf("listen %s: %w", h.cfg.Addr, err)
	}
	h.boundAddr = ln.Addr().String()

	writeTimeout := h.cfg.RequestTimeout + 10*time.Second
	h.server = &http.Server{
		Handler:           h.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		h.logger.Info("http channel started", "addr", h.boundAddr)
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("http server error", "error", err)
		}
	}()
	return nil
}

// Addr is the bound address once Start has returned.
func (h *HTTPChannel) Addr() string { return h.boundAddr }

// Stop gracefully shuts the server down.
func (h *HTTPChannel) Stop(ctx context.Context) error {
	if h.cancel != nil {
		h.cancel()
	}
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *HTTPChannel) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		msg := "invalid JSON: " + err.Error()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "request body too large (max 1MB)"
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Code: domain.CodeInvalidInput})
		return
	}
	if req.SessionID == "" {
		req.SessionID = "http-" + uuid.NewString()
	}
	if err := sessionstore.ValidateSessionID(req.SessionID); err != nil {
		h.writeError(w, req.SessionID, err)
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "content is required", Code: domain.CodeInvalidInput, SessionID: req.SessionID,
		})
		return
	}

	ctx := r.Context()
	if h.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.RequestTimeout)
		defer cancel()
	}

	reply, err := h.team.Handle(ctx, req.SessionID, req.Content)
	if reply == nil {
		h.writeError(w, req.SessionID, err)
		return
	}
	var warning string
	if err != nil {
		h.logger.Warn("turn not persisted", "session", req.SessionID, "error", err,
			"request_id", middleware.RequestID(r.Context()))
		warning = "turn not persisted: " + err.Error()
	}
	writeJSON(w, http.StatusOK, chatResponse{
		SessionID:            reply.SessionID,
		Content:              reply.Markdown(),
		State:                reply.State,
		AwaitingConfirmation: reply.AwaitingConfirmation(),
		Pending:              reply.Pending,
		Failures:             reply.Failures,
		Workers:              reply.Workers,
		Code:                 reply.Code,
		Warning:              warning,
	})
}

func (h *HTTPChannel) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := sessionstore.ValidateSessionID(id); err != nil {
		h.writeError(w, id, err)
		return
	}
	snap, err := h.team.Snapshot(r.Context(), id)
	if err != nil {
		h.writeError(w, id, err)
		return
	}
	history, err := h.team.History(r.Context(), id)
	if err != nil {
		h.writeError(w, id, err)
		return
	}
	if history == nil {
		history = []domain.Turn{}
	}
	writeJSON(w, http.StatusOK, sessionResponse{Snapshot: snap, History: history})
}

func (h *HTTPChannel) handleReset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := sessionstore.ValidateSessionID(id); err != nil {
		h.writeError(w, id, err)
		return
	}
	if err := h.team.Reset(r.Context(), id); err != nil {
		h.writeError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPChannel) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPChannel) writeError(w http.ResponseWriter, sessionID string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("http request failed", "session", sessionID, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: domain.ErrorCodeOf(err), SessionID: sessionID})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
