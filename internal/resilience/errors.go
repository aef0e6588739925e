// Package resilience provides retry with exponential backoff and the error
// classification used by the search and LLM layers.
package resilience

import (
	"errors"
	"strings"
)

// RateLimitError wraps an upstream 429 or equivalent throttling signal.
// These are the only search errors retried automatically.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return e.Err.Error()
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError marks err as a rate-limit signal.
func NewRateLimitError(err error) *RateLimitError {
	return &RateLimitError{Err: err}
}

// QuotaExhaustedError marks a provider billing/quota failure. Distinct from
// generic provider errors so callers can surface an actionable message.
type QuotaExhaustedError struct {
	Provider string
	Err      error
}

func (e *QuotaExhaustedError) Error() string {
	return e.Err.Error()
}

func (e *QuotaExhaustedError) Unwrap() error {
	return e.Err
}

// NewQuotaExhaustedError marks err as provider quota exhaustion.
func NewQuotaExhaustedError(provider string, err error) *QuotaExhaustedError {
	return &QuotaExhaustedError{Provider: provider, Err: err}
}

// IsRateLimit reports whether the error chain carries a rate-limit signal,
// either an explicit RateLimitError or a recognizable upstream message.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"rate limit",
		"rate_limit",
		"too many requests",
		"status 429",
		"429:",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsQuotaExhausted reports whether the error chain indicates a billing or
// quota problem. Providers encode this in message text, so this check is
// partly string-based by necessity.
func IsQuotaExhausted(err error) bool {
	if err == nil {
		return false
	}
	var qe *QuotaExhaustedError
	if errors.As(err, &qe) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"credit balance is too low",
		"purchase credits",
		"insufficient_quota",
		"billing",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTemperatureUnsupported reports whether a provider rejected the request
// because the chosen model does not accept a temperature parameter. The
// caller retries once without it.
func IsTemperatureUnsupported(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "temperature") &&
		(strings.Contains(msg, "unsupported") ||
			strings.Contains(msg, "not supported") ||
			strings.Contains(msg, "does not support"))
}
