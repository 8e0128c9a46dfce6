package llm

import (
	"context"

	"github.com/vsh-labs/chancery/internal/common"
)

// retryClient retries transport-level failures with backoff. It wraps the
// circuit breaker, so an open circuit fails fast instead of burning the
// retry budget.
type retryClient struct {
	inner Client
	opts  common.RetryOptions
}

func newRetryClient(inner Client, cfg Config) Client {
	return &retryClient{
		inner: inner,
		opts: common.RetryOptions{
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: cfg.RetryDelay,
		},
	}
}

// Chat retries the exchange until it succeeds, exhausts the attempt budget,
// or hits a non-retryable error.
func (c *retryClient) Chat(ctx context.Context, system, user string) (string, error) {
	var content string
	err := common.WithRetry(ctx, func() error {
		result, chatErr := c.inner.Chat(ctx, system, user)
		if chatErr != nil {
			if !common.IsRetryable(chatErr) {
				return &common.RetryableError{Err: chatErr, Retryable: false}
			}
			return chatErr
		}
		content = result
		return nil
	}, c.opts)
	return content, err
}
