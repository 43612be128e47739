package llm

import (
	"context"
	"strings"
	"time"

	"github.com/voxchat/dialoguekit/errors"
)

// Retry defaults.
const (
	defaultMaxRetries  = 5
	defaultInitBackoff = 1 * time.Second
	defaultMaxBackoff  = 60 * time.Second
	backoffFactor      = 2.0
)

func (r RetryConfig) withDefaults() RetryConfig {
	if r.MaxRetries <= 0 {
		r.MaxRetries = defaultMaxRetries
	}
	if r.InitBackoff <= 0 {
		r.InitBackoff = defaultInitBackoff
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = defaultMaxBackoff
	}
	return r
}

// withRetry runs fn with exponential backoff on retryable errors. Billing
// and validation errors fail immediately; context cancellation aborts the
// wait between attempts.
func withRetry(ctx context.Context, provider string, retry RetryConfig, fn func() error) error {
	retry = retry.withDefaults()
	backoff := retry.InitBackoff

	var err error
	for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if isBillingError(err) {
			return errors.WrapWithCode(err, errors.ErrCodeUnavailable,
				provider+" billing/payment error (fatal)", errors.WithRetryable(false))
		}
		if !isRetryableError(err) {
			return errors.WrapWithCode(err, errors.ErrCodeGeneratorFailure, provider+" request failed")
		}
		if attempt == retry.MaxRetries {
			return errors.WrapWithCode(err, errors.ErrCodeRateLimit,
				provider+" request failed after retries",
				errors.WithMetadata("attempts", itoa(attempt+1)))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * backoffFactor)
		if backoff > retry.MaxBackoff {
			backoff = retry.MaxBackoff
		}
	}
	return err
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// isRateLimitError checks if the error is a rate limit error.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "capacity")
}

// isServerError checks if the error is a transient server error (5xx).
func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout") ||
		strings.Contains(errStr, "temporarily unavailable")
}

// isRetryableError checks if the error is retryable (rate limit or server error).
func isRetryableError(err error) bool {
	return isRateLimitError(err) || isServerError(err)
}

// isBillingError checks if the error is a billing/payment/quota error (fatal, no retry).
func isBillingError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "billing") ||
		strings.Contains(errStr, "payment") ||
		strings.Contains(errStr, "credits") ||
		strings.Contains(errStr, "quota exceeded") ||
		strings.Contains(errStr, "insufficient") ||
		strings.Contains(errStr, "402") ||
		strings.Contains(errStr, "subscription") ||
		strings.Contains(errStr, "expired")
}
