// Package config loads the gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/evermem/linekeeper/pkg/core/call"
	"github.com/evermem/linekeeper/pkg/core/voice"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

// StoreDriver selects the conversation store backend.
type StoreDriver string

const (
	StoreMemory   StoreDriver = "memory"
	StoreSQLite   StoreDriver = "sqlite"
	StorePostgres StoreDriver = "postgres"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// If true, client identity may be derived from proxy headers like X-Forwarded-For.
	// This should only be enabled when the gateway is deployed behind a trusted proxy/LB.
	TrustProxyHeaders bool

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Live WebSocket call transport (/v1/live).
	LiveMaxJSONMessageBytes int64
	LiveWSPingInterval      time.Duration
	LiveWSWriteTimeout      time.Duration
	LiveWSReadTimeout       time.Duration
	LiveHandshakeTimeout    time.Duration

	// Call handling.
	MaxCallDuration   time.Duration
	AutoAnswer        bool
	GreetingMessage   string
	EndingMessage     string
	EmergencyContacts []string
	AllowedCallers    []string
	VoiceName         string
	VoiceSpeed        float64
	VoiceLanguage     string

	// Conversation store backend.
	StoreDriver StoreDriver
	StoreDSN    string

	// Optional rego policy file overriding the built-in disclosure policy.
	PolicyFile string

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	HandlerTimeout      time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                    envOr("LINEKEEPER_ADDR", ":8080"),
		AuthMode:                AuthMode(envOr("LINEKEEPER_AUTH_MODE", string(AuthModeRequired))),
		APIKeys:                 make(map[string]struct{}),
		TrustProxyHeaders:       envBoolOr("LINEKEEPER_TRUST_PROXY_HEADERS", false),
		CORSAllowedOrigins:      make(map[string]struct{}),
		LiveMaxJSONMessageBytes: envInt64Or("LINEKEEPER_LIVE_MAX_JSON_MESSAGE_BYTES", 64*1024),
		LiveWSPingInterval:      envDurationOr("LINEKEEPER_LIVE_WS_PING_INTERVAL", 20*time.Second),
		LiveWSWriteTimeout:      envDurationOr("LINEKEEPER_LIVE_WS_WRITE_TIMEOUT", 5*time.Second),
		LiveWSReadTimeout:       envDurationOr("LINEKEEPER_LIVE_WS_READ_TIMEOUT", 0),
		LiveHandshakeTimeout:    envDurationOr("LINEKEEPER_LIVE_HANDSHAKE_TIMEOUT", 5*time.Second),
		MaxCallDuration:         envDurationOr("LINEKEEPER_MAX_CALL_DURATION", 5*time.Minute),
		AutoAnswer:              envBoolOr("LINEKEEPER_AUTO_ANSWER", true),
		GreetingMessage:         envOr("LINEKEEPER_GREETING_MESSAGE", ""),
		EndingMessage:           envOr("LINEKEEPER_ENDING_MESSAGE", ""),
		EmergencyContacts:       splitCSV(os.Getenv("LINEKEEPER_EMERGENCY_CONTACTS")),
		AllowedCallers:          splitCSV(os.Getenv("LINEKEEPER_ALLOWED_CALLERS")),
		VoiceName:               envOr("LINEKEEPER_VOICE", "default"),
		VoiceSpeed:              envFloat64Or("LINEKEEPER_VOICE_SPEED", 1.0),
		VoiceLanguage:           envOr("LINEKEEPER_VOICE_LANGUAGE", "en"),
		StoreDriver:             StoreDriver(envOr("LINEKEEPER_STORE_DRIVER", string(StoreMemory))),
		StoreDSN:                envOr("LINEKEEPER_STORE_DSN", ""),
		PolicyFile:              envOr("LINEKEEPER_POLICY_FILE", ""),
		ReadHeaderTimeout:       envDurationOr("LINEKEEPER_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:             envDurationOr("LINEKEEPER_READ_TIMEOUT", 30*time.Second),
		HandlerTimeout:          envDurationOr("LINEKEEPER_TOTAL_REQUEST_TIMEOUT", 2*time.Minute),
		ShutdownGracePeriod:     envDurationOr("LINEKEEPER_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("LINEKEEPER_AUTH_MODE must be one of required|optional|disabled")
	}

	for _, key := range splitCSV(os.Getenv("LINEKEEPER_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}

	for _, origin := range splitCSV(os.Getenv("LINEKEEPER_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.LiveMaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("LINEKEEPER_LIVE_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("LINEKEEPER_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("LINEKEEPER_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveWSReadTimeout < 0 {
		return Config{}, fmt.Errorf("LINEKEEPER_LIVE_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.LiveHandshakeTimeout <= 0 {
		return Config{}, fmt.Errorf("LINEKEEPER_LIVE_HANDSHAKE_TIMEOUT must be > 0")
	}
	if cfg.MaxCallDuration <= 0 {
		return Config{}, fmt.Errorf("LINEKEEPER_MAX_CALL_DURATION must be > 0")
	}
	if cfg.VoiceSpeed < 0.6 || cfg.VoiceSpeed > 1.5 {
		return Config{}, fmt.Errorf("LINEKEEPER_VOICE_SPEED must be between 0.6 and 1.5")
	}

	switch cfg.StoreDriver {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if strings.TrimSpace(cfg.StoreDSN) == "" {
			return Config{}, fmt.Errorf("LINEKEEPER_STORE_DSN must be set when LINEKEEPER_STORE_DRIVER=%s", cfg.StoreDriver)
		}
	default:
		return Config{}, fmt.Errorf("LINEKEEPER_STORE_DRIVER must be one of memory|sqlite|postgres")
	}

	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("LINEKEEPER_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("LINEKEEPER_READ_TIMEOUT must be > 0")
	}
	if cfg.HandlerTimeout <= 0 {
		return Config{}, fmt.Errorf("LINEKEEPER_TOTAL_REQUEST_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("LINEKEEPER_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("LINEKEEPER_API_KEYS must be set when LINEKEEPER_AUTH_MODE=required")
	}

	return cfg, nil
}

// CallConfig converts the gateway configuration into the call handling
// configuration consumed by the orchestrator.
func (c Config) CallConfig() call.Config {
	out := call.Config{
		MaxCallDuration:   c.MaxCallDuration,
		AutoAnswer:        c.AutoAnswer,
		GreetingMessage:   c.GreetingMessage,
		EndingMessage:     c.EndingMessage,
		EmergencyContacts: make(map[string]struct{}, len(c.EmergencyContacts)),
		AllowedCallers:    make(map[string]struct{}, len(c.AllowedCallers)),
		Voice: voice.Settings{
			Voice:    c.VoiceName,
			Speed:    c.VoiceSpeed,
			Language: c.VoiceLanguage,
		},
	}
	for _, id := range c.EmergencyContacts {
		out.EmergencyContacts[id] = struct{}{}
	}
	for _, id := range c.AllowedCallers {
		out.AllowedCallers[id] = struct{}{}
	}
	return out
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
