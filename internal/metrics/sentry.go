package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	// HTTP status code threshold for considering a request successful
	successStatusCodeThreshold = http.StatusBadRequest
)

// SentryMetrics records spans for requests, fits and generations
type SentryMetrics struct {
	enabled bool
}

// NewSentryMetrics creates a new Sentry metrics client
func NewSentryMetrics() *SentryMetrics {
	return &SentryMetrics{
		enabled: true, // spans are dropped by the SDK when Sentry is not initialised
	}
}

// RecordAPIRequest records API request metrics
func (m *SentryMetrics) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "api.request")
	defer span.Finish()

	span.SetTag("endpoint", endpoint)
	span.SetTag("status_code", fmt.Sprintf("%d", statusCode))
	span.SetTag("success", fmt.Sprintf("%t", statusCode < successStatusCodeThreshold))

	span.SetData("duration_ms", duration.Milliseconds())
	span.SetData("status_code", statusCode)

	if statusCode < successStatusCodeThreshold {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}
	span.Description = fmt.Sprintf("API Request: %s", endpoint)
}

// RecordFit records a fit or update of a chain
func (m *SentryMetrics) RecordFit(ctx context.Context, kind string, order int, duration time.Duration, success bool) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "markov.fit")
	defer span.Finish()

	span.SetTag("kind", kind)
	span.SetTag("order", fmt.Sprintf("%d", order))
	span.SetData("duration_ms", duration.Milliseconds())
	span.Status = spanStatus(success)
	span.Description = fmt.Sprintf("Fit: %s order %d", kind, order)
}

// RecordGeneration records a generation request
func (m *SentryMetrics) RecordGeneration(ctx context.Context, kind string, order, length int, duration time.Duration, success bool) {
	if !m.enabled {
		return
	}

	if transaction := sentry.TransactionFromContext(ctx); transaction != nil {
		transaction.SetTag("markov.kind", kind)
		transaction.SetData("markov.length", length)
	}

	span := sentry.StartSpan(ctx, "markov.generate")
	defer span.Finish()

	span.SetTag("kind", kind)
	span.SetTag("order", fmt.Sprintf("%d", order))
	span.SetTag("success", fmt.Sprintf("%t", success))
	span.SetData("length", length)
	span.SetData("duration_ms", duration.Milliseconds())
	span.Status = spanStatus(success)
	span.Description = fmt.Sprintf("Generate: %s order %d", kind, order)
}

func spanStatus(success bool) sentry.SpanStatus {
	if success {
		return sentry.SpanStatusOK
	}
	return sentry.SpanStatusInternalError
}
