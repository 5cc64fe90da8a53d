package exchange

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// The error taxonomy of spec.md §7. ErrTransient and ErrRateLimited are
// retried forever with distinct fixed backoffs; ErrUnexpectedResponse is
// fatal. Grounded on the _TryAgain/_TryAgain429 exception hierarchy in
// trade/broker/httpclient/__init__.py, rendered here as sentinel errors
// consumed by a retry wrapper instead of exceptions caught by a decorator.
var (
	ErrTransient          = errors.New("exchange: transient condition, retrying")
	ErrRateLimited        = errors.New("exchange: rate limited, retrying")
	ErrUnexpectedResponse = errors.New("exchange: unexpected response")
)

// classifyHTTPStatus maps an HTTP status code to the retry taxonomy.
// Anything 2xx is not classified as an error at this layer (the caller
// still checks its own confirmation logic, e.g. "does the order still
// exist").
func classifyHTTPStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return ErrTransient
	default:
		return nil
	}
}

// RetryForever retries fn until it returns a nil error or an error that is
// not ErrTransient/ErrRateLimited, sleeping the taxonomy-appropriate fixed
// wait between attempts, honoring ctx cancellation. Grounded on
// HTTPClient.Wait.__call__'s dispatch in trade/broker/httpclient/__init__.py.
// Used both by confirmation-polling steps in internal/broker and available
// to the HTTP client layer for the same 5xx/429 taxonomy.
func RetryForever(ctx context.Context, waitTransient, wait429 time.Duration, fn func() error) error {
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTransient) && !errors.Is(err, ErrRateLimited) {
			return err
		}

		wait := waitTransient
		if errors.Is(err, ErrRateLimited) {
			wait = wait429
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
