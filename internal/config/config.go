// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr   string
	BaseURL      string
	GateURL      string
	GateAPIKey   string
	GateTimeout  time.Duration
	Store        string // "sqlite" or "file"
	DBPath       string
	StorePath    string
	RedisAddr    string
	NoticePath   string
	SecretKey    []byte // 32-byte AES-256 key; nil when the cipher is disabled.
	SessionKey   []byte // HMAC key for the session cookie; nil when binding is disabled.
	KeyTTL       time.Duration
	Cooldown     time.Duration
	GateTokenTTL time.Duration

	FingerprintEnabled    bool
	SessionBindingEnabled bool
	CipherEnabled         bool
}

// Load reads configuration from environment variables and returns a validated Config.
// KEYGATE_BASE_URL and KEYGATE_GATE_API_KEY are required. KEYGATE_SECRET_KEY
// (64 hex chars) is required unless KEYGATE_CIPHER=false, and
// KEYGATE_SESSION_KEY unless KEYGATE_SESSION_BINDING=false. Optional variables
// with defaults: KEYGATE_LISTEN_ADDR (127.0.0.1:8080), KEYGATE_GATE_URL
// (https://linkjust.com/api), KEYGATE_GATE_TIMEOUT (10s), KEYGATE_STORE
// (sqlite), KEYGATE_DB_PATH (keygate.db), KEYGATE_STORE_PATH (keygate.json),
// KEYGATE_KEY_TTL (24h), KEYGATE_COOLDOWN (6h), KEYGATE_GATE_TOKEN_TTL (10m).
func Load() (*Config, error) {
	baseURL := os.Getenv("KEYGATE_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("KEYGATE_BASE_URL is required")
	}

	gateAPIKey := os.Getenv("KEYGATE_GATE_API_KEY")
	if gateAPIKey == "" {
		return nil, fmt.Errorf("KEYGATE_GATE_API_KEY is required")
	}

	cfg := &Config{
		ListenAddr:   "127.0.0.1:8080",
		BaseURL:      baseURL,
		GateURL:      "https://linkjust.com/api",
		GateAPIKey:   gateAPIKey,
		GateTimeout:  10 * time.Second,
		Store:        "sqlite",
		DBPath:       "keygate.db",
		StorePath:    "keygate.json",
		KeyTTL:       24 * time.Hour,
		Cooldown:     6 * time.Hour,
		GateTokenTTL: 10 * time.Minute,

		FingerprintEnabled:    true,
		SessionBindingEnabled: true,
		CipherEnabled:         true,
	}

	if v, ok := os.LookupEnv("KEYGATE_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("KEYGATE_GATE_URL"); ok {
		cfg.GateURL = v
	}
	if v, ok := os.LookupEnv("KEYGATE_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("KEYGATE_STORE_PATH"); ok {
		cfg.StorePath = v
	}
	cfg.RedisAddr = os.Getenv("KEYGATE_REDIS_ADDR")
	cfg.NoticePath = os.Getenv("KEYGATE_NOTICE_PATH")

	if v, ok := os.LookupEnv("KEYGATE_STORE"); ok {
		if v != "sqlite" && v != "file" {
			return nil, fmt.Errorf("KEYGATE_STORE has invalid value %q: expected sqlite or file", v)
		}
		cfg.Store = v
	}

	for _, d := range []struct {
		env string
		dst *time.Duration
	}{
		{"KEYGATE_GATE_TIMEOUT", &cfg.GateTimeout},
		{"KEYGATE_KEY_TTL", &cfg.KeyTTL},
		{"KEYGATE_COOLDOWN", &cfg.Cooldown},
		{"KEYGATE_GATE_TOKEN_TTL", &cfg.GateTokenTTL},
	} {
		if v, ok := os.LookupEnv(d.env); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("%s has invalid duration %q: %w", d.env, v, err)
			}
			*d.dst = parsed
		}
	}

	for _, b := range []struct {
		env string
		dst *bool
	}{
		{"KEYGATE_FINGERPRINT", &cfg.FingerprintEnabled},
		{"KEYGATE_SESSION_BINDING", &cfg.SessionBindingEnabled},
		{"KEYGATE_CIPHER", &cfg.CipherEnabled},
	} {
		if v, ok := os.LookupEnv(b.env); ok {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("%s has invalid boolean %q: %w", b.env, v, err)
			}
			*b.dst = parsed
		}
	}

	if cfg.CipherEnabled {
		key, err := loadHexKey("KEYGATE_SECRET_KEY", 32)
		if err != nil {
			return nil, err
		}
		cfg.SecretKey = key
	}

	if cfg.SessionBindingEnabled {
		v := os.Getenv("KEYGATE_SESSION_KEY")
		if len(v) < 32 {
			return nil, fmt.Errorf("KEYGATE_SESSION_KEY must be at least 32 characters when session binding is enabled")
		}
		cfg.SessionKey = []byte(v)
	}

	return cfg, nil
}

// loadHexKey reads a hex-encoded key of exactly size bytes from the
// environment. Keys are external configuration, never literals in code.
func loadHexKey(env string, size int) ([]byte, error) {
	v := os.Getenv(env)
	if v == "" {
		return nil, fmt.Errorf("%s is required when the key cipher is enabled", env)
	}
	key, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid hex: %w", env, err)
	}
	if len(key) != size {
		return nil, fmt.Errorf("%s must decode to %d bytes, got %d", env, size, len(key))
	}
	return key, nil
}
