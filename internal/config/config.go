// Package config loads and validates the daemon's driftboard.yml file.
package config

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/driftboard/driftboard/pkg/board"
)

// DriftboardConfig represents the top-level driftboard.yml configuration.
type DriftboardConfig struct {
	Version  string       `yaml:"version"`
	Instance string       `yaml:"instance"` // Namespace for Redis keys and channels
	Redis    RedisConfig  `yaml:"redis,omitempty"`
	Server   ServerConfig `yaml:"server,omitempty"`
	Auth     AuthConfig   `yaml:"auth"`
}

// RedisConfig specifies how to reach the Redis server backing the instance.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"` // Default: localhost:6379
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// ServerConfig specifies the daemon's listen addresses.
type ServerConfig struct {
	Listen       string `yaml:"listen,omitempty"`        // Websocket endpoint, default :8720
	HealthListen string `yaml:"health_listen,omitempty"` // Health endpoint, default :8721
}

// AuthConfig maps opaque credential tokens to identities. Static token auth
// keeps the daemon self-contained; an external identity provider would slot in
// behind the same verifier interface.
type AuthConfig struct {
	Tokens map[string]TokenIdentity `yaml:"tokens"`
}

// TokenIdentity is the identity a credential token resolves to.
type TokenIdentity struct {
	UserID string `yaml:"user_id"`
	Name   string `yaml:"name,omitempty"`
}

// Validate performs strict validation on the configuration and fills defaults.
func (c *DriftboardConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Instance == "" {
		return fmt.Errorf("instance is required")
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8720"
	}
	if c.Server.HealthListen == "" {
		c.Server.HealthListen = ":8721"
	}
	if c.Server.Listen == c.Server.HealthListen {
		return fmt.Errorf("server.listen and server.health_listen cannot share address %s", c.Server.Listen)
	}

	if len(c.Auth.Tokens) == 0 {
		return fmt.Errorf("no auth tokens defined")
	}
	for token, id := range c.Auth.Tokens {
		if token == "" {
			return fmt.Errorf("auth token cannot be empty")
		}
		if id.UserID == "" {
			return fmt.Errorf("auth token %q: user_id is required", abbreviate(token))
		}
	}

	return nil
}

// RedisOptions returns go-redis connection options for the configured server.
func (c *DriftboardConfig) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}

// Load reads and validates driftboard.yml from the specified path.
func Load(path string) (*DriftboardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config DriftboardConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// TokenVerifier resolves static credential tokens to identities, per the
// auth section of driftboard.yml.
type TokenVerifier struct {
	tokens map[string]TokenIdentity
}

// NewTokenVerifier creates a verifier over the configured token map.
func NewTokenVerifier(auth AuthConfig) *TokenVerifier {
	return &TokenVerifier{tokens: auth.Tokens}
}

// VerifyCredential resolves a token to its identity, or fails for unknown
// tokens. The error never echoes the credential itself.
func (v *TokenVerifier) VerifyCredential(_ context.Context, token string) (*board.Identity, error) {
	id, ok := v.tokens[token]
	if !ok {
		return nil, fmt.Errorf("unknown credential")
	}
	name := id.Name
	if name == "" {
		name = id.UserID
	}
	return &board.Identity{UserID: id.UserID, Name: name}, nil
}

// abbreviate shortens a token for error messages without leaking it whole.
func abbreviate(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
