package sonos

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// WithRetry executes operation, retrying on transient SOAP errors with fixed
// exponential backoff (200ms, 500ms, 1000ms). action names the call for
// logging. Non-transient errors return immediately.
func WithRetry(ctx context.Context, action string, operation func() (string, error)) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= len(withRetryDelays); attempt++ {
		if attempt > 0 {
			delay := withRetryDelays[attempt-1]
			slog.Info("sonos: retrying", "action", action, "attempt", attempt+1, "of", len(withRetryDelays)+1, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		result, err := operation()
		if err == nil {
			return result, nil
		}

		var soapErr *SoapError
		if !errors.As(err, &soapErr) || !soapErr.IsTransient() {
			return "", err
		}

		slog.Warn("sonos: transient error", "action", action, "error", err)
		lastErr = err
	}

	return "", lastErr
}
