package metrics

import (
	"context"
	"time"
)

// Recorder receives chain operation metrics
type Recorder interface {
	RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration)
	RecordFit(ctx context.Context, kind string, order int, duration time.Duration, success bool)
	RecordGeneration(ctx context.Context, kind string, order, length int, duration time.Duration, success bool)
}

// Multi fans every call out to each recorder
type Multi []Recorder

func (m Multi) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	for _, r := range m {
		r.RecordAPIRequest(ctx, endpoint, statusCode, duration)
	}
}

func (m Multi) RecordFit(ctx context.Context, kind string, order int, duration time.Duration, success bool) {
	for _, r := range m {
		r.RecordFit(ctx, kind, order, duration, success)
	}
}

func (m Multi) RecordGeneration(ctx context.Context, kind string, order, length int, duration time.Duration, success bool) {
	for _, r := range m {
		r.RecordGeneration(ctx, kind, order, length, duration, success)
	}
}

// Nop discards everything
type Nop struct{}

func (Nop) RecordAPIRequest(context.Context, string, int, time.Duration)            {}
func (Nop) RecordFit(context.Context, string, int, time.Duration, bool)             {}
func (Nop) RecordGeneration(context.Context, string, int, int, time.Duration, bool) {}
