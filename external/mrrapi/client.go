package mrrapi

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mrreviews/mrr/internal/platform/cache"
	"github.com/mrreviews/mrr/internal/platform/logging"
	"github.com/mrreviews/mrr/internal/platform/resilience"
)

const (
	defaultBaseURL = "http://localhost:8080"
	headerUserID   = "X-Mrr-User-Id"
	maxBodyBytes   = 4 << 20

	defaultPlayerTTL = 5 * time.Minute
	defaultReviewTTL = 2 * time.Minute
	defaultUserTTL   = 5 * time.Minute
	defaultCacheCap  = 512
)

// AuthScheme selects how the identity reaches the backend. The API accepted
// both variants across its history, so the client keeps both.
type AuthScheme string

const (
	AuthSchemeHeader AuthScheme = "header" // X-Mrr-User-Id: <telegram id>
	AuthSchemeBearer AuthScheme = "bearer" // Authorization: Bearer <token>
)

// Session is the identity attached to outgoing requests once a user has
// logged in through the Telegram relay.
type Session struct {
	TelegramID int64
	Token      string
}

type ClientConfig struct {
	HTTPClient      *http.Client
	BaseURL         string
	AuthScheme      AuthScheme
	Timeout         time.Duration
	MaxRetries      int
	Logger          *logging.Logger
	CircuitBreaker  resilience.CircuitBreakerConfig
	TraceEnabled    bool
	PlayerCacheTTL  time.Duration
	ReviewCacheTTL  time.Duration
	UserCacheTTL    time.Duration
	CacheMaxEntries int
}

// Client talks to the Marvel Rivals Reviews backend. Lookups for players,
// reviews and the current user's linked player are cached with per-resource
// TTLs; GET requests are deduplicated via singleflight and guarded by a
// circuit breaker.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	scheme         AuthScheme
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
	validate       *validator.Validate

	sessionMu sync.RWMutex
	session   *Session

	players *cache.Store
	reviews *cache.Store
	users   *cache.Store
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 10 * time.Second
	}
	if cfg.TraceEnabled {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		httpClient.Transport = otelhttp.NewTransport(base)
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	scheme := cfg.AuthScheme
	if scheme != AuthSchemeBearer {
		scheme = AuthSchemeHeader
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	playerTTL := cfg.PlayerCacheTTL
	if playerTTL <= 0 {
		playerTTL = defaultPlayerTTL
	}
	reviewTTL := cfg.ReviewCacheTTL
	if reviewTTL <= 0 {
		reviewTTL = defaultReviewTTL
	}
	userTTL := cfg.UserCacheTTL
	if userTTL <= 0 {
		userTTL = defaultUserTTL
	}
	cacheCap := cfg.CacheMaxEntries
	if cacheCap <= 0 {
		cacheCap = defaultCacheCap
	}

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		scheme:         scheme,
		maxRetries:     maxRetries,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(cfg.CircuitBreaker),
		circuitEnabled: cfg.CircuitBreaker.Enabled,
		validate:       validator.New(),
		players:        cache.NewStore(playerTTL, cacheCap),
		reviews:        cache.NewStore(reviewTTL, cacheCap),
		users:          cache.NewStore(userTTL, cacheCap),
	}
}

func (c *Client) SetSession(s Session) {
	c.sessionMu.Lock()
	c.session = &s
	c.sessionMu.Unlock()
}

// ClearSession drops the identity and all user-scoped cache entries.
func (c *Client) ClearSession() {
	c.sessionMu.Lock()
	c.session = nil
	c.sessionMu.Unlock()
	c.users.DeletePrefix(context.Background(), "user:")
}

func (c *Client) Session() (Session, bool) {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// getJSON performs a deduplicated GET. Concurrent identical lookups share one
// network call. The raw body is returned alongside the decode so callers can
// apply shape-tolerant decoding themselves by passing a nil target.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, target any) ([]byte, error) {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "circuit breaker rejected request", "path", path, "state", c.breaker.State().String())
			return nil, fmt.Errorf("reviews backend temporarily unavailable: %w", err)
		}
	}

	fullURL := c.buildURL(path, query)
	out, err, _ := c.flight.Do(http.MethodGet+" "+fullURL, func() (any, error) {
		raw, reqErr := c.executeWithRetry(ctx, http.MethodGet, fullURL, nil)
		c.recordOutcome(reqErr)
		return raw, reqErr
	})
	if err != nil {
		return nil, err
	}

	raw, ok := out.([]byte)
	if !ok {
		return nil, crerr.Newf("unexpected response payload type %T", out)
	}

	return raw, c.decodeSoft(ctx, raw, target)
}

// sendJSON performs a write. Writes are never retried; a timed-out POST may
// have landed server-side.
func (c *Client) sendJSON(ctx context.Context, method, path string, query url.Values, body any, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "circuit breaker rejected request", "path", path, "state", c.breaker.State().String())
			return fmt.Errorf("reviews backend temporarily unavailable: %w", err)
		}
	}

	var encoded []byte
	if body != nil {
		buf := bytebufferpool.Get()
		defer bytebufferpool.Put(buf)
		if err := sonic.ConfigDefault.NewEncoder(buf).Encode(body); err != nil {
			return crerr.Wrap(err, "encode request body")
		}
		encoded = append([]byte(nil), buf.Bytes()...)
	}

	raw, err := c.roundTrip(ctx, method, c.buildURL(path, query), encoded)
	c.recordOutcome(err)
	if err != nil {
		return err
	}

	return c.decodeSoft(ctx, raw, target)
}

func (c *Client) executeWithRetry(ctx context.Context, method, fullURL string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		raw, err := c.roundTrip(ctx, method, fullURL, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !stderrors.Is(err, errTransient) {
			return nil, err
		}
		if attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	c.logger.WarnContext(ctx, "backend request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func (c *Client) roundTrip(ctx context.Context, method, fullURL string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, crerr.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyIdentity(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", errTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", errTransient, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: extractServerMessage(raw)}
	if isRetryableStatus(resp.StatusCode) {
		return nil, fmt.Errorf("%w: %w", errTransient, apiErr)
	}
	return nil, apiErr
}

func (c *Client) applyIdentity(req *http.Request) {
	session, ok := c.Session()
	if !ok {
		return
	}

	switch c.scheme {
	case AuthSchemeBearer:
		if session.Token != "" {
			req.Header.Set("Authorization", "Bearer "+session.Token)
		}
	default:
		if session.TelegramID > 0 {
			req.Header.Set(headerUserID, fmt.Sprintf("%d", session.TelegramID))
		}
	}
}

// decodeSoft parses a 2xx body into target. An empty body or a body that
// fails to parse is treated as "no content" rather than an error; the zero
// target tells the caller nothing came back.
func (c *Client) decodeSoft(ctx context.Context, raw []byte, target any) error {
	if target == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(raw, target); err != nil {
		c.logger.WarnContext(ctx, "discarding unparseable response body", "error", err, "body", abbreviate(raw))
		return nil
	}
	return nil
}

func (c *Client) recordOutcome(err error) {
	if !c.circuitEnabled {
		return
	}
	if err != nil && stderrors.Is(err, errTransient) {
		c.breaker.RecordFailure()
		return
	}
	c.breaker.RecordSuccess()
}

func (c *Client) buildURL(path string, query url.Values) string {
	fullURL := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}
	return fullURL
}

func extractServerMessage(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}

	var probe struct {
		Message string `json:"message"`
	}
	if err := sonic.Unmarshal(trimmed, &probe); err == nil && strings.TrimSpace(probe.Message) != "" {
		return strings.TrimSpace(probe.Message)
	}

	return abbreviate(trimmed)
}

func abbreviate(body []byte) string {
	const limit = 256
	text := strings.TrimSpace(string(body))
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
