package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailscale/hujson"
)

type Config struct {
	Relay  RelayConfig  `json:"relay"`
	Bus    BusConfig    `json:"bus"`
	Engine EngineConfig `json:"engine"`
	Client ClientConfig `json:"client"`
	Log    LogConfig    `json:"log"`
}

type RelayConfig struct {
	ListenAddr      string `json:"listen_addr"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	PlayerPath      string `json:"player_path"`
	CreativePath    string `json:"creative_path"`
	AuthToken       string `json:"auth_token"`
	ClaimTTLSeconds int    `json:"claim_ttl_seconds"`
}

type BusConfig struct {
	RedisAddr     string `json:"redis_addr"`
	ChannelPrefix string `json:"channel_prefix"`
}

type EngineConfig struct {
	Namespace    string   `json:"namespace"`
	RequestTypes []string `json:"request_types"`
	ResetPolicy  string   `json:"reset_policy"`
}

type ClientConfig struct {
	RelayURL                 string `json:"relay_url"`
	Room                     string `json:"room"`
	AuthToken                string `json:"auth_token,omitempty"`
	HandshakeTimeoutSeconds  int    `json:"handshake_timeout_seconds"`
	RequestTimeoutSeconds    int    `json:"request_timeout_seconds"`
	ReconnectIntervalSeconds int    `json:"reconnect_interval_seconds"`
}

type LogConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

func (c RelayConfig) ClaimTTL() time.Duration {
	return time.Duration(c.ClaimTTLSeconds) * time.Second
}

func (c ClientConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutSeconds) * time.Second
}

func (c ClientConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c ClientConfig) ReconnectInterval() time.Duration {
	return time.Duration(c.ReconnectIntervalSeconds) * time.Second
}

func Default() Config {
	return Config{
		Relay: RelayConfig{
			PlayerPath:      "/ws/player",
			CreativePath:    "/ws/creative",
			AuthToken:       os.Getenv("SIMID_RELAY_TOKEN"),
			ClaimTTLSeconds: 30,
		},
		Bus: BusConfig{
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			ChannelPrefix: "simid:",
		},
		Engine: EngineConfig{
			Namespace:   "SIMID:",
			ResetPolicy: "abandon",
		},
		Client: ClientConfig{
			RelayURL:                 envOrDefault("SIMID_RELAY_URL", "ws://127.0.0.1:8080"),
			Room:                     "default",
			AuthToken:                os.Getenv("SIMID_RELAY_TOKEN"),
			HandshakeTimeoutSeconds:  10,
			RequestTimeoutSeconds:    10,
			ReconnectIntervalSeconds: 5,
		},
		Log: LogConfig{
			Level: envOrDefault("SIMID_LOG_LEVEL", "info"),
		},
	}
}

// Load reads a HuJSON file (comments and trailing commas allowed) over the
// defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		cfg.applyDefaults()
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config failed: %w", err)
	}
	cfg, err := Parse(content)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Parse(content []byte) (Config, error) {
	cfg := Default()
	std, err := hujson.Standardize(content)
	if err != nil {
		return Config{}, fmt.Errorf("parse config failed: %w", err)
	}
	if err := json.Unmarshal(std, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Relay.PlayerPath == "" {
		c.Relay.PlayerPath = "/ws/player"
	}
	if c.Relay.CreativePath == "" {
		c.Relay.CreativePath = "/ws/creative"
	}
	if c.Relay.ListenAddr == "" {
		if c.Relay.Host != "" && c.Relay.Port > 0 {
			c.Relay.ListenAddr = fmt.Sprintf("%s:%d", c.Relay.Host, c.Relay.Port)
		} else {
			c.Relay.ListenAddr = ":8080"
		}
	}
	if c.Relay.ClaimTTLSeconds <= 0 {
		c.Relay.ClaimTTLSeconds = 30
	}
	if c.Engine.Namespace == "" {
		c.Engine.Namespace = "SIMID:"
	}
	if c.Client.HandshakeTimeoutSeconds <= 0 {
		c.Client.HandshakeTimeoutSeconds = 10
	}
	if c.Client.RequestTimeoutSeconds <= 0 {
		c.Client.RequestTimeoutSeconds = 10
	}
	if c.Client.ReconnectIntervalSeconds <= 0 {
		c.Client.ReconnectIntervalSeconds = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c Config) Validate() error {
	switch c.Engine.ResetPolicy {
	case "", "abandon", "reject":
	default:
		return fmt.Errorf("invalid engine.reset_policy %q", c.Engine.ResetPolicy)
	}
	if c.Relay.PlayerPath == c.Relay.CreativePath {
		return fmt.Errorf("relay.player_path and relay.creative_path must differ")
	}
	for _, t := range c.Engine.RequestTypes {
		if t == "" {
			return fmt.Errorf("engine.request_types must not contain empty types")
		}
	}
	return nil
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
