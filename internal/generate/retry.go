package generate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// retryableStatus lists the HTTP statuses treated as transient.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// classify converts SDK errors carrying a transient status into
// *RetryableError and returns everything else unchanged.
func classify(err error) error {
	if err == nil || IsRetryable(err) {
		return err
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) && retryableStatus(gErr.Code) {
		return &RetryableError{StatusCode: gErr.Code, Message: gErr.Message, Err: err}
	}
	var aErr *anthropic.Error
	if errors.As(err, &aErr) && retryableStatus(aErr.StatusCode) {
		return &RetryableError{StatusCode: aErr.StatusCode, Message: aErr.Error(), Err: err}
	}
	var oErr *openai.Error
	if errors.As(err, &oErr) && retryableStatus(oErr.StatusCode) {
		return &RetryableError{StatusCode: oErr.StatusCode, Message: oErr.Error(), Err: err}
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return &RetryableError{StatusCode: http.StatusTooManyRequests, Message: st.Message(), Err: err}
		case codes.Internal:
			return &RetryableError{StatusCode: http.StatusInternalServerError, Message: st.Message(), Err: err}
		case codes.Unavailable:
			return &RetryableError{StatusCode: http.StatusServiceUnavailable, Message: st.Message(), Err: err}
		}
	}
	return err
}

// RetryPolicy is exponential backoff with jitter.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Factor       float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy allows five attempts starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		Factor:       2,
		MaxDelay:     30 * time.Second,
	}
}

// Backoff returns the wait before retry n (0-indexed): the capped exponential
// delay scaled by a random factor in [0.5, 1.0).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := float64(p.InitialDelay) * math.Pow(p.Factor, float64(attempt))
	if ceiling := float64(p.MaxDelay); p.MaxDelay > 0 && base > ceiling {
		base = ceiling
	}
	return time.Duration(base * (0.5 + rand.Float64()/2))
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done. onRetry, if set, runs before each wait.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error, onRetry func(attempt int, wait time.Duration, err error)) error {
	attempts := max(p.MaxAttempts, 1)

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt == attempts-1 {
			return err
		}

		wait := p.Backoff(attempt)
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), err)
		case <-timer.C:
		}
	}
	return err
}
