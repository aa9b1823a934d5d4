package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrreviews/mrr/internal/platform/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Config stores runtime configuration for the CLI and the login relay.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	LogLevel       logging.Level

	APIBaseURL            string
	AuthScheme            string
	HTTPTimeout           time.Duration
	MaxRetries            int
	TraceEnabled          bool
	CircuitEnabled        bool
	CircuitFailureCount   int
	CircuitOpenTimeout    time.Duration
	CircuitHalfOpenMaxReq int

	PlayerCacheTTL  time.Duration
	ReviewCacheTTL  time.Duration
	UserCacheTTL    time.Duration
	CacheMaxEntries int

	DebounceDelay        time.Duration
	SearchLimit          int
	SessionFile          string
	SessionWatchInterval time.Duration
	AdminTelegramIDs     []int64

	RelayAddr       string
	RelayBotToken   string
	RelayAuthMaxAge time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration

	UptraceEnabled         bool
	UptraceDSN             string
	PyroscopeEnabled       bool
	PyroscopeServerAddress string
	PyroscopeAppName       string
	PyroscopeAuthToken     string
	PyroscopeUploadRate    time.Duration
	PprofEnabled           bool
	PprofAddr              string
}

// Load reads configuration from the environment, with an optional YAML file
// (MRR_CONFIG_FILE) supplying defaults for unset variables. The file is a
// flat mapping keyed by the same names as the environment variables.
func Load() (Config, error) {
	overlay, err := loadOverlay(strings.TrimSpace(os.Getenv("MRR_CONFIG_FILE")))
	if err != nil {
		return Config{}, err
	}
	get := func(key, fallback string) string {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
		if value, ok := overlay[key]; ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
		return fallback
	}

	appEnv, err := parseAppEnv(get("MRR_APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	authScheme := strings.ToLower(get("MRR_AUTH_SCHEME", "header"))
	if authScheme != "header" && authScheme != "bearer" {
		return Config{}, fmt.Errorf("invalid MRR_AUTH_SCHEME %q: valid values are header, bearer", authScheme)
	}

	httpTimeout, err := parseDuration(get, "MRR_HTTP_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}
	maxRetries, err := parseInt(get, "MRR_MAX_RETRIES", 1)
	if err != nil {
		return Config{}, err
	}
	if maxRetries < 0 {
		return Config{}, fmt.Errorf("MRR_MAX_RETRIES must be >= 0")
	}

	traceEnabled, err := parseBool(get, "MRR_TRACE_ENABLED", false)
	if err != nil {
		return Config{}, err
	}
	circuitEnabled, err := parseBool(get, "MRR_CIRCUIT_ENABLED", true)
	if err != nil {
		return Config{}, err
	}
	circuitFailureCount, err := parseInt(get, "MRR_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, err
	}
	if circuitFailureCount < 1 {
		return Config{}, fmt.Errorf("MRR_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	circuitOpenTimeout, err := parseDuration(get, "MRR_CIRCUIT_OPEN_TIMEOUT", "15s")
	if err != nil {
		return Config{}, err
	}
	circuitHalfOpenMaxReq, err := parseInt(get, "MRR_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, err
	}
	if circuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("MRR_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	playerCacheTTL, err := parseDuration(get, "MRR_PLAYER_CACHE_TTL", "5m")
	if err != nil {
		return Config{}, err
	}
	reviewCacheTTL, err := parseDuration(get, "MRR_REVIEW_CACHE_TTL", "2m")
	if err != nil {
		return Config{}, err
	}
	userCacheTTL, err := parseDuration(get, "MRR_USER_CACHE_TTL", "5m")
	if err != nil {
		return Config{}, err
	}
	cacheMaxEntries, err := parseInt(get, "MRR_CACHE_MAX_ENTRIES", 512)
	if err != nil {
		return Config{}, err
	}
	if cacheMaxEntries < 1 {
		return Config{}, fmt.Errorf("MRR_CACHE_MAX_ENTRIES must be >= 1")
	}

	debounceDelay, err := parseDuration(get, "MRR_DEBOUNCE_DELAY", "400ms")
	if err != nil {
		return Config{}, err
	}
	searchLimit, err := parseInt(get, "MRR_SEARCH_LIMIT", 12)
	if err != nil {
		return Config{}, err
	}
	if searchLimit < 1 {
		return Config{}, fmt.Errorf("MRR_SEARCH_LIMIT must be >= 1")
	}

	sessionFile := get("MRR_SESSION_FILE", "")
	if sessionFile == "" {
		sessionFile = defaultSessionFile()
	}
	sessionWatchInterval, err := parseDuration(get, "MRR_SESSION_WATCH_INTERVAL", "2s")
	if err != nil {
		return Config{}, err
	}

	adminIDs, err := parseIDList(get("MRR_ADMIN_TELEGRAM_IDS", ""))
	if err != nil {
		return Config{}, fmt.Errorf("parse MRR_ADMIN_TELEGRAM_IDS: %w", err)
	}

	relayAuthMaxAge, err := parseDuration(get, "MRR_RELAY_AUTH_MAX_AGE", "24h")
	if err != nil {
		return Config{}, err
	}
	readTimeout, err := parseDuration(get, "MRR_READ_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}
	writeTimeout, err := parseDuration(get, "MRR_WRITE_TIMEOUT", "15s")
	if err != nil {
		return Config{}, err
	}

	uptraceEnabled, err := parseBool(get, "MRR_UPTRACE_ENABLED", false)
	if err != nil {
		return Config{}, err
	}
	uptraceDSN := get("MRR_UPTRACE_DSN", "")
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("MRR_UPTRACE_DSN is required when MRR_UPTRACE_ENABLED=true")
	}

	pyroscopeEnabled, err := parseBool(get, "MRR_PYROSCOPE_ENABLED", false)
	if err != nil {
		return Config{}, err
	}
	pyroscopeServer := get("MRR_PYROSCOPE_SERVER_ADDRESS", "")
	if pyroscopeEnabled && pyroscopeServer == "" {
		return Config{}, fmt.Errorf("MRR_PYROSCOPE_SERVER_ADDRESS is required when MRR_PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := parseDuration(get, "MRR_PYROSCOPE_UPLOAD_RATE", "15s")
	if err != nil {
		return Config{}, err
	}

	pprofEnabled, err := parseBool(get, "MRR_PPROF_ENABLED", false)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:                 appEnv,
		ServiceName:            get("MRR_SERVICE_NAME", "mrr-client"),
		ServiceVersion:         get("MRR_SERVICE_VERSION", "dev"),
		LogLevel:               parseLogLevel(get("MRR_LOG_LEVEL", "info")),
		APIBaseURL:             get("MRR_API_BASE", "http://localhost:8080"),
		AuthScheme:             authScheme,
		HTTPTimeout:            httpTimeout,
		MaxRetries:             maxRetries,
		TraceEnabled:           traceEnabled,
		CircuitEnabled:         circuitEnabled,
		CircuitFailureCount:    circuitFailureCount,
		CircuitOpenTimeout:     circuitOpenTimeout,
		CircuitHalfOpenMaxReq:  circuitHalfOpenMaxReq,
		PlayerCacheTTL:         playerCacheTTL,
		ReviewCacheTTL:         reviewCacheTTL,
		UserCacheTTL:           userCacheTTL,
		CacheMaxEntries:        cacheMaxEntries,
		DebounceDelay:          debounceDelay,
		SearchLimit:            searchLimit,
		SessionFile:            sessionFile,
		SessionWatchInterval:   sessionWatchInterval,
		AdminTelegramIDs:       adminIDs,
		RelayAddr:              get("MRR_RELAY_ADDR", ":8090"),
		RelayBotToken:          get("MRR_RELAY_BOT_TOKEN", ""),
		RelayAuthMaxAge:        relayAuthMaxAge,
		ReadTimeout:            readTimeout,
		WriteTimeout:           writeTimeout,
		UptraceEnabled:         uptraceEnabled,
		UptraceDSN:             uptraceDSN,
		PyroscopeEnabled:       pyroscopeEnabled,
		PyroscopeServerAddress: pyroscopeServer,
		PyroscopeAuthToken:     get("MRR_PYROSCOPE_AUTH_TOKEN", ""),
		PyroscopeUploadRate:    pyroscopeUploadRate,
		PprofEnabled:           pprofEnabled,
		PprofAddr:              get("MRR_PPROF_ADDR", ":6060"),
	}
	cfg.PyroscopeAppName = get("MRR_PYROSCOPE_APP_NAME", cfg.ServiceName)

	return cfg, nil
}

// IsAdmin reports whether a Telegram id is on the configured allowlist.
func (c Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminTelegramIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func loadOverlay(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	overlay := make(map[string]string)
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return overlay, nil
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mrr-session.json"
	}
	return filepath.Join(home, ".config", "mrr", "session.json")
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid MRR_APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func parseDuration(get func(string, string) string, key, fallback string) (time.Duration, error) {
	out, err := time.ParseDuration(get(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if out <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return out, nil
}

func parseInt(get func(string, string) string, key string, fallback int) (int, error) {
	out, err := strconv.Atoi(get(key, strconv.Itoa(fallback)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return out, nil
}

func parseBool(get func(string, string) string, key string, fallback bool) (bool, error) {
	out, err := strconv.ParseBool(get(key, strconv.FormatBool(fallback)))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return out, nil
}

func parseIDList(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", item, err)
		}
		if id <= 0 {
			return nil, fmt.Errorf("id must be > 0, got %q", item)
		}
		out = append(out, id)
	}
	return out, nil
}
