// Package llm provides clients for the external reasoning service used to
// confirm ambiguous routing decisions.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Client is a synchronous chat exchange with the reasoning service: one
// system instruction, one user payload, one free-text response.
type Client interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// Config holds configuration for reasoning-service clients.
type Config struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// NewClient creates a provider client wrapped in a circuit breaker.
func NewClient(cfg Config, logger *slog.Logger) (Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var client Client
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		client, err = newOllamaClient(cfg)
	case "openai":
		client, err = newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported reasoning provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create reasoning client: %w", err)
	}

	client = newBreakerClient(client, cfg.Provider, logger)
	if cfg.MaxRetries > 1 {
		client = newRetryClient(client, cfg)
	}
	return client, nil
}
