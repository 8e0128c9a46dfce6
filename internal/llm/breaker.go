package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// breakerClient wraps a provider client in a circuit breaker so a flapping
// reasoning service stops receiving traffic instead of stalling every
// document on a timeout.
type breakerClient struct {
	inner Client
	cb    *gobreaker.CircuitBreaker
}

func newBreakerClient(inner Client, name string, logger *slog.Logger) Client {
	if name == "" {
		name = "reasoning-service"
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("reasoning service circuit state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &breakerClient{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

// Chat forwards the exchange through the circuit breaker.
func (c *breakerClient) Chat(ctx context.Context, system, user string) (string, error) {
	result, err := c.cb.Execute(func() (any, error) {
		return c.inner.Chat(ctx, system, user)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
