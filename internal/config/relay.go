package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	DefaultPort           = "9489"
	DefaultMaxMessageSize = 64 * 1024
	DefaultRateLimit      = 50.0
	DefaultRateBurst      = 100
)

// RelayConfig holds the signaling relay process configuration
type RelayConfig struct {
	Addr           string
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      float64
	RateBurst      int
}

// RelayOptions carries flag overrides. Zero values fall through to the
// environment and then to defaults; a negative RateLimit disables limiting.
type RelayOptions struct {
	Addr           string
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      float64
	RateBurst      int
}

// LoadRelay resolves relay settings: flag > env > default.
func LoadRelay(opts RelayOptions) (*RelayConfig, error) {
	addr := first(opts.Addr, os.Getenv("ADDR"))
	if addr == "" {
		addr = ":" + first(opts.Port, os.Getenv("PORT"), DefaultPort)
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = splitList(os.Getenv("ALLOWED_ORIGINS"))
	}

	maxSize := opts.MaxMessageSize
	if maxSize == 0 {
		v, err := envInt("MAX_MESSAGE_SIZE", DefaultMaxMessageSize)
		if err != nil {
			return nil, err
		}
		maxSize = int64(v)
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("max message size must be positive, got %d", maxSize)
	}

	rateLimit := opts.RateLimit
	if rateLimit == 0 {
		v, err := envFloat("RATE_LIMIT", DefaultRateLimit)
		if err != nil {
			return nil, err
		}
		rateLimit = v
	}

	burst := opts.RateBurst
	if burst == 0 {
		v, err := envInt("RATE_BURST", DefaultRateBurst)
		if err != nil {
			return nil, err
		}
		burst = v
	}

	return &RelayConfig{
		Addr:           addr,
		AllowedOrigins: origins,
		MaxMessageSize: maxSize,
		RateLimit:      rateLimit,
		RateBurst:      burst,
	}, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: %w", key, raw, err)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: %w", key, raw, err)
	}
	return v, nil
}
