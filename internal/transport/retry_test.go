package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadforge/loadforge/internal/core/errs"
)

func TestIsConnectionError(t *testing.T) {
	assert.True(t, IsConnectionError(errors.New("dial tcp 127.0.0.1:9: connection refused")))
	assert.True(t, IsConnectionError(&net.OpError{Op: "dial", Err: errors.New("boom")}))
	assert.False(t, IsConnectionError(nil))
	assert.False(t, IsConnectionError(errors.New("status 500")))
}

func TestExecuteWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxRetries: 3, RetryDelay: time.Millisecond}

	result, err := ExecuteWithRetry(context.Background(), cfg, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errs.New(errs.KindTransport, errors.New("dial tcp: connection refused"))
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestExecuteWithRetry_NonConnectionErrorFailsFast(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxRetries: 3, RetryDelay: time.Millisecond}

	_, err := ExecuteWithRetry(context.Background(), cfg, func() (string, error) {
		attempts++
		return "", errs.New(errs.KindProtocol, errors.New("status 500"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestExecuteWithRetry_ExhaustsRetries(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxRetries: 2, RetryDelay: time.Millisecond}

	_, err := ExecuteWithRetry(context.Background(), cfg, func() (string, error) {
		attempts++
		return "", errs.New(errs.KindTransport, errors.New("connection reset"))
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts) // initial + 2 retries
}

func TestExecuteWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxRetries: 5, RetryDelay: 50 * time.Millisecond}

	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := ExecuteWithRetry(ctx, cfg, func() (string, error) {
		attempts++
		return "", errs.New(errs.KindTransport, errors.New("connection refused"))
	})

	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindCancelled, kind)
}
