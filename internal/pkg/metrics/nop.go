package metrics

import (
	"context"
	"time"
)

// NopCollector — no-op реализация Collector.
type NopCollector struct{}

// NewNopCollector создаёт NopCollector.
func NewNopCollector() *NopCollector {
	return &NopCollector{}
}

// RecordCall — no-op.
func (c *NopCollector) RecordCall(function, sysID string, duration time.Duration, outcome string) {}

// RecordAcquire — no-op.
func (c *NopCollector) RecordAcquire(wait time.Duration, outcome string) {}

// RecordPoolSize — no-op.
func (c *NopCollector) RecordPoolSize(inUse, idle int) {}

// RecordDiscard — no-op.
func (c *NopCollector) RecordDiscard(reason string) {}

// Push — no-op, всегда возвращает nil.
func (c *NopCollector) Push(ctx context.Context) error {
	return nil
}
