package transport

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/loadforge/loadforge/internal/core/errs"
)

// RetryConfig governs Client's fixed linear backoff between attempts.
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// connectionErrors mirrors the teacher's string-matching fallback for
// classifying transient network failures that didn't arrive as a typed
// net.Error or syscall.Errno.
var connectionErrors = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"no route to host",
	"connection timed out",
	"i/o timeout",
	"dial tcp",
	"broken pipe",
}

// IsConnectionError identifies transport failures worth a retry: a typed
// net.Error, a handful of connection-related syscall errnos, or an error
// string matching a known connection-failure pattern.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED, syscall.EPIPE:
			return true
		default:
		}
	}

	return hasConnectionErrorString(err)
}

func hasConnectionErrorString(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range connectionErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// ExecuteWithRetry runs attempt up to cfg.MaxRetries+1 times, waiting a
// fixed cfg.RetryDelay between attempts (not exponential, per the rate
// model this harness measures against). Only transient errors are
// retried — connect failures, read timeouts, 5xx and 429 responses — per
// §7; any other failure returns immediately.
func ExecuteWithRetry[T any](ctx context.Context, cfg RetryConfig, attempt func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for i := 0; i <= cfg.MaxRetries; i++ {
		result, err := attempt()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return zero, err
		}
		if i == cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return zero, errs.New(errs.KindCancelled, ctx.Err())
		case <-time.After(cfg.RetryDelay):
		}
	}

	return zero, lastErr
}

// isRetryable classifies a dispatch failure per §7's retry policy: transient
// transport/timeout errors and bad-status responses of 5xx or 429 are
// retryable; cancellation, config, pool, data and other 4xx errors are not.
func isRetryable(err error) bool {
	var ae *errs.Error
	if !errors.As(err, &ae) {
		return IsConnectionError(err)
	}

	switch ae.Kind {
	case errs.KindTransport, errs.KindTimeout:
		return true
	case errs.KindProtocol:
		return ae.StatusCode >= 500 || ae.StatusCode == 429
	default:
		return false
	}
}

