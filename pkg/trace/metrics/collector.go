package metrics

import (
	"context"
	"strconv"

	"github.com/lonestarx1/purchasesaga/pkg/trace"
)

// Collector wraps a trace.Tracer and automatically populates metrics
// from saga stage spans. Use it as a drop-in replacement for any
// tracer to gain automatic metrics collection.
type Collector struct {
	inner trace.Tracer
	reg   *Registry

	stageRuns     *Counter
	stageDuration *Histogram
	tokensCharged *Counter
	costUSD       *Counter
}

// NewCollector creates a Collector that delegates span management to
// inner and records metrics in reg.
func NewCollector(inner trace.Tracer, reg *Registry) *Collector {
	return &Collector{
		inner:         inner,
		reg:           reg,
		stageRuns:     reg.Counter("saga_stage_runs_total", "Total number of saga stage runs"),
		stageDuration: reg.Histogram("saga_stage_duration_seconds", "Saga stage duration in seconds"),
		tokensCharged: reg.Counter("saga_stage_tokens_total", "Total tokens charged per stage"),
		costUSD:       reg.Counter("saga_cost_usd_total", "Total cost in USD"),
	}
}

// StartSpan delegates to the inner tracer.
func (c *Collector) StartSpan(ctx context.Context, name string) (context.Context, *trace.Span) {
	return c.inner.StartSpan(ctx, name)
}

// EndSpan delegates to the inner tracer and records metrics.
func (c *Collector) EndSpan(span *trace.Span) {
	c.inner.EndSpan(span)
	c.record(span)
}

func (c *Collector) record(span *trace.Span) {
	if span.Name != "saga.stage" {
		return
	}

	duration := span.EndTime.Sub(span.StartTime).Seconds()
	status := "ok"
	if span.Status == trace.StatusError {
		status = "error"
	}

	stage := span.Attributes["stage.name"]
	c.stageRuns.Inc(map[string]string{"stage": stage, "status": status})
	c.stageDuration.Observe(duration, map[string]string{"stage": stage})

	if tokens, err := strconv.Atoi(span.Attributes["stage.tokens"]); err == nil && tokens > 0 {
		c.tokensCharged.Add(float64(tokens), map[string]string{"stage": stage})
	}
	if costStr, ok := span.Attributes["stage.cost_usd"]; ok {
		if cost, err := strconv.ParseFloat(costStr, 64); err == nil && cost > 0 {
			c.costUSD.Add(cost, map[string]string{"stage": stage})
		}
	}
}
