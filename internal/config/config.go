// Package config loads the orchestrator's YAML configuration: one
// LoadXConfig(path) function per config document, unmarshaled with
// gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/listingfeed/internal/listing"
)

// MarketplaceConfig configures one marketplace's default policy and
// optional fallback-chain override.
type MarketplaceConfig struct {
	Marketplace        string   `yaml:"marketplace"`
	FallbackChain      []string `yaml:"fallback_chain,omitempty"`
	RequiredConfidence float64  `yaml:"required_confidence"`
	TimeoutSeconds     int      `yaml:"timeout_seconds"`
}

// ChannelConfig configures per-channel behavior: rate limits and whether
// a circuit breaker wraps the channel's adapters.
type ChannelConfig struct {
	Channel           string  `yaml:"channel"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	CircuitBreaker    bool    `yaml:"circuit_breaker"`
}

// OrchestratorConfig is the top-level configuration document.
type OrchestratorConfig struct {
	Marketplaces []MarketplaceConfig `yaml:"marketplaces"`
	Channels     []ChannelConfig     `yaml:"channels"`
}

// LoadOrchestratorConfig reads and parses an orchestrator config document.
func LoadOrchestratorConfig(path string) (*OrchestratorConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c OrchestratorConfig
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &c, nil
}

// Timeout returns the configured per-marketplace timeout, defaulting to
// 30s when unset.
func (m MarketplaceConfig) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// Chain converts the configured fallback chain strings into typed
// channels, silently skipping any value that isn't a recognized channel
// rather than failing the whole load.
func (m MarketplaceConfig) Chain() []listing.Channel {
	out := make([]listing.Channel, 0, len(m.FallbackChain))
	for _, s := range m.FallbackChain {
		c := listing.Channel(s)
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}
