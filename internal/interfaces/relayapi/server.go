package relayapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	validator "github.com/go-playground/validator/v10"

	"github.com/mrreviews/mrr/internal/auth/telegram"
	"github.com/mrreviews/mrr/internal/domain/user"
	"github.com/mrreviews/mrr/internal/platform/logging"
)

const maxAuthBodyBytes = 64 << 10

var (
	errBadRequest   = errors.New("bad request")
	errUnauthorized = errors.New("unknown or expired token")
)

// Handler verifies Telegram login payloads and mints bearer tokens for the
// CLI. Tokens live in memory; restarting the relay logs everyone out, which
// is acceptable for a login broker.
type Handler struct {
	botToken string
	maxAge   time.Duration
	logger   *logging.Logger
	validate *validator.Validate
	now      func() time.Time

	mu     sync.RWMutex
	tokens map[string]user.User
}

func NewHandler(botToken string, maxAge time.Duration, logger *logging.Logger) (*Handler, error) {
	if botToken == "" {
		return nil, errors.New("bot token is required")
	}
	if maxAge <= 0 {
		maxAge = telegram.DefaultMaxAge
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		botToken: botToken,
		maxAge:   maxAge,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
		tokens:   make(map[string]user.User),
	}, nil
}

// NewRouter wires the relay endpoints with the usual middleware stack.
func NewRouter(handler *Handler, logger *logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogging(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", handler.Health)
	r.Post("/api/auth/telegram", handler.AuthTelegram)
	r.Get("/api/auth/session", handler.Session)

	return r
}

type authResponse struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

// AuthTelegram validates the login widget payload and exchanges it for a
// relay token.
func (h *Handler) AuthTelegram(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBodyBytes))
	if err != nil {
		writeError(ctx, w, fmt.Errorf("%w: read body: %v", errBadRequest, err))
		return
	}

	var data telegram.AuthData
	if err := sonic.Unmarshal(raw, &data); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid json", errBadRequest))
		return
	}
	if err := h.validate.StructCtx(ctx, data); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	if err := telegram.Verify(data, h.botToken, h.now(), h.maxAge); err != nil {
		h.logger.WarnContext(ctx, "telegram auth rejected", "telegram_id", data.ID, "error", err)
		writeError(ctx, w, err)
		return
	}

	identity := data.User()
	token := uuid.NewString()

	h.mu.Lock()
	h.tokens[token] = identity
	h.mu.Unlock()

	h.logger.InfoContext(ctx, "telegram auth accepted", "telegram_id", identity.TelegramID)
	writeJSON(ctx, w, http.StatusOK, authResponse{Token: token, User: identity})
}

// Session resolves a previously minted token back to its user.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(ctx, w, fmt.Errorf("%w: token is required", errBadRequest))
		return
	}

	h.mu.RLock()
	identity, ok := h.tokens[token]
	h.mu.RUnlock()
	if !ok {
		writeError(ctx, w, errUnauthorized)
		return
	}

	writeJSON(ctx, w, http.StatusOK, authResponse{Token: token, User: identity})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogging(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if r.URL.Path == "/health" {
				return
			}
			logger.InfoContext(r.Context(), "http_request",
				"http_method", r.Method,
				"http_path", r.URL.Path,
				"http_status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
