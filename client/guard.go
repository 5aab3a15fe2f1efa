package client

import (
	"context"
	"time"

	"github.com/jrsteele09/deepsight-client/metrics"
)

// IsAuthenticated calls exactly one of the callbacks depending on whether a
// usable access token can be obtained. It is a single check; use Watch to
// repeat it. Nil callbacks are skipped.
func (c *SessionClient) IsAuthenticated(ctx context.Context, onAuthenticated, onUnauthenticated func()) {
	if _, ok := c.GetAccessToken(ctx); ok {
		metrics.AuthChecks.WithLabelValues(metrics.OutcomeAuthenticated).Inc()
		if onAuthenticated != nil {
			onAuthenticated()
		}
		return
	}

	metrics.AuthChecks.WithLabelValues(metrics.OutcomeUnauthenticated).Inc()
	if onUnauthenticated != nil {
		onUnauthenticated()
	}
}

// Watch runs IsAuthenticated immediately and then every interval until ctx is
// done or the returned stop function is called. A non-positive interval uses
// the configured revalidation interval. stop may be called more than once,
// including from inside a callback.
func (c *SessionClient) Watch(ctx context.Context, interval time.Duration, onAuthenticated, onUnauthenticated func()) (stop func()) {
	if interval <= 0 {
		interval = c.config.GetRevalidateInterval()
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		c.IsAuthenticated(ctx, onAuthenticated, onUnauthenticated)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				c.IsAuthenticated(ctx, onAuthenticated, onUnauthenticated)
			}
		}
	}()

	return cancel
}
