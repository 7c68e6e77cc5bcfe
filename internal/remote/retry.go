package remote

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/minio/minio-go/v7"
)

const (
	defaultMaxAttempts = 4

	// baseDelay is the first backoff interval before jitter.
	baseDelay = 250 * time.Millisecond

	maxDelay = 4 * time.Second
)

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so that Retry returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a [Permanent] error, or
// maxAttempts calls have failed. Between attempts it sleeps with exponential
// backoff and jitter, honouring ctx cancellation.
func Retry(ctx context.Context, maxAttempts int, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := range maxAttempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}

		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(backoffDelay(attempt)):
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", maxAttempts, lastErr)
}

// backoffDelay returns a value in [d/2, d) where d doubles per attempt up to
// maxDelay.
func backoffDelay(attempt int) time.Duration {
	d := min(baseDelay<<attempt, maxDelay)
	return d/2 + time.Duration(rand.Int63n(int64(d)/2)) //nolint:gosec // jitter does not need crypto/rand
}

// classify turns client errors that will never succeed on retry into
// permanent ones.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "NoSuchBucket":
			return Permanent(err)
		}
	}
	return err
}
