/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package genai

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// RetryOptions configures the retry behavior
type RetryOptions struct {
	MaxAttempts       int           // Maximum number of retry attempts
	InitialBackoff    time.Duration // Initial backoff duration
	MaxBackoff        time.Duration // Maximum backoff duration
	BackoffMultiplier float64       // Multiplier for exponential backoff
}

// DefaultRetryOptions provides sensible default retry settings
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:       3,
	InitialBackoff:    500 * time.Millisecond,
	MaxBackoff:        5 * time.Second,
	BackoffMultiplier: 2.0,
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	switch e := err.(type) {
	case *ErrAPICall:
		return e.Retryable
	case *ErrTimeout:
		return true
	default:
		return false
	}
}

// withRetry executes op until it succeeds, fails permanently, or runs out of attempts.
func withRetry[T any](ctx context.Context, opts RetryOptions, log *zap.SugaredLogger, op func(context.Context) (T, error)) (T, error) {
	var lastErr error
	var result T

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = &ErrCancelled{Msg: "operation cancelled by context", Err: err}
			}
			return result, lastErr
		}

		result, lastErr = op(ctx)
		if lastErr == nil {
			return result, nil
		}
		if !isRetryableError(lastErr) || attempt == opts.MaxAttempts-1 {
			return result, lastErr
		}

		backoff := time.Duration(float64(opts.InitialBackoff) * math.Pow(opts.BackoffMultiplier, float64(attempt)))
		if backoff > opts.MaxBackoff {
			backoff = opts.MaxBackoff
		}
		log.Warnw("Operation failed, retrying", "attempt", attempt+1, "error", lastErr, "backoff", backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, &ErrCancelled{Msg: "operation cancelled during backoff", Err: ctx.Err()}
		case <-timer.C:
		}
	}

	return result, lastErr
}
