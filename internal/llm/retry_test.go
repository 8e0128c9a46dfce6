package llm

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsh-labs/chancery/internal/common"
)

type scriptedClient struct {
	errs  []error
	reply string
	calls int
}

func (c *scriptedClient) Chat(_ context.Context, _, _ string) (string, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	return c.reply, nil
}

func TestRetryClient(t *testing.T) {
	ctx := context.Background()
	cfg := Config{MaxRetries: 3, RetryDelay: time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		transient := fmt.Errorf("%w: connection refused", common.ErrLLMUnavailable)
		inner := &scriptedClient{errs: []error{transient, transient}, reply: "ok"}
		client := newRetryClient(inner, cfg)

		reply, err := client.Chat(ctx, "system", "user")
		require.NoError(t, err)
		assert.Equal(t, "ok", reply)
		assert.Equal(t, 3, inner.calls)
	})

	t.Run("exhausts the attempt budget", func(t *testing.T) {
		transient := fmt.Errorf("%w: timeout", common.ErrLLMUnavailable)
		inner := &scriptedClient{errs: []error{transient, transient, transient}}
		client := newRetryClient(inner, cfg)

		_, err := client.Chat(ctx, "system", "user")
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrMaxRetries)
		assert.Equal(t, 3, inner.calls)
	})

	t.Run("does not retry non-retryable errors", func(t *testing.T) {
		inner := &scriptedClient{errs: []error{fmt.Errorf("bad request")}}
		client := newRetryClient(inner, cfg)

		_, err := client.Chat(ctx, "system", "user")
		require.Error(t, err)
		assert.Equal(t, 1, inner.calls)
	})
}
