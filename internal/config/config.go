package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default configuration values
const (
	DefaultRelayURL           = "ws://localhost:9489"
	DefaultSTUN               = "stun:stun.l.google.com:19302"
	DefaultNegotiationTimeout = 30 * time.Second
	DefaultOfferRetryInterval = 2 * time.Second
)

// Config holds the negotiation client configuration
type Config struct {
	// RelayURL is the base URL of the signaling relay, without the /ws/<room> suffix
	RelayURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN candidates
	ForceRelay bool

	NegotiationTimeout time.Duration
	OfferRetryInterval time.Duration
}

// Options for loading config with CLI flag overrides
type Options struct {
	RelayURL           string
	Domain             string
	STUNServer         string
	TURNServer         string
	TURNUser           string
	TURNPass           string
	ForceRelay         bool
	NegotiationTimeout time.Duration
	OfferRetryInterval time.Duration
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	// Relay URL: explicit URL wins over a bare domain
	relayURL := first(opts.RelayURL, os.Getenv("RELAY_URL"))
	if relayURL == "" {
		if domain := first(opts.Domain, os.Getenv("DOMAIN")); domain != "" {
			relayURL = fmt.Sprintf("wss://%s", domain)
		}
	}
	if relayURL == "" {
		relayURL = DefaultRelayURL
	}
	relayURL = strings.TrimSuffix(relayURL, "/")
	if !strings.HasPrefix(relayURL, "ws://") && !strings.HasPrefix(relayURL, "wss://") {
		return nil, fmt.Errorf("relay url %q: scheme must be ws or wss", relayURL)
	}

	forceRelay := opts.ForceRelay
	if !forceRelay {
		v, err := envBool("FORCE_RELAY")
		if err != nil {
			return nil, err
		}
		forceRelay = v
	}

	timeout, err := duration(opts.NegotiationTimeout, "NEGOTIATION_TIMEOUT", DefaultNegotiationTimeout)
	if err != nil {
		return nil, err
	}
	retry, err := duration(opts.OfferRetryInterval, "OFFER_RETRY_INTERVAL", DefaultOfferRetryInterval)
	if err != nil {
		return nil, err
	}

	return &Config{
		RelayURL:           relayURL,
		STUNServer:         first(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN),
		TURNServer:         first(opts.TURNServer, os.Getenv("TURN_SERVER")),
		TURNUser:           first(opts.TURNUser, os.Getenv("TURN_USERNAME")),
		TURNPass:           first(opts.TURNPass, os.Getenv("TURN_PASSWORD")),
		ForceRelay:         forceRelay,
		NegotiationTimeout: timeout,
		OfferRetryInterval: retry,
	}, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	// Fully qualified URLs are used as given.
	if strings.Contains(c.TURNServer, "?transport=") {
		return []string{c.TURNServer}
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turns:"), "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

// first returns the first non-empty value.
func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string) (bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s=%q: %w", key, raw, err)
	}
	return v, nil
}

func duration(flag time.Duration, key string, def time.Duration) (time.Duration, error) {
	if flag > 0 {
		return flag, nil
	}
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s=%q: must be positive", key, raw)
	}
	return d, nil
}
