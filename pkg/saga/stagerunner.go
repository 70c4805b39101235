package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lonestarx1/purchasesaga/pkg/trace"
)

// DefaultStageTimeouts are the design defaults from the Stage Runner
// component (S1=12s, S2=10s, S3=18s, S4=12s, S5=16s).
func DefaultStageTimeouts() map[string]time.Duration {
	return map[string]time.Duration{
		StageCapture:  12 * time.Second,
		StageIntent:   10 * time.Second,
		StageSourcing: 18 * time.Second,
		StageTrust:    12 * time.Second,
		StageCheckout: 16 * time.Second,
	}
}

// StageFunc performs one stage's work against the run context,
// returning the annotations to attach to its success event. Updates to
// rc (Hypothesis, Intent, Offers, ...) are the function's
// responsibility; the Stage Runner only owns timing and event
// recording.
type StageFunc func(ctx context.Context, rc *RunContext) (annotations map[string]string, err error)

// RunStage wraps fn with the Stage Runner's contract: a monotonic
// timer, per-stage timeout enforcement, a trace span, and a StageEvent
// appended to rc on both success and failure.
func RunStage(ctx context.Context, rc *RunContext, tracer trace.Tracer, stage string, timeout time.Duration, fn StageFunc) error {
	if tracer == nil {
		tracer = trace.Noop{}
	}
	ctx, span := tracer.StartSpan(ctx, "saga.stage")
	span.SetAttribute("stage.name", stage)
	defer tracer.EndSpan(span)

	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	annotations, err := fn(stageCtx, rc)
	dt := time.Since(start).Seconds()

	if err == nil && stageCtx.Err() != nil {
		err = stageCtx.Err()
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%s: %w", stage, ErrStageTimeout)
		}
		if annotations == nil {
			annotations = map[string]string{}
		}
		if _, ok := annotations["reason"]; !ok {
			annotations["reason"] = err.Error()
		}
		rc.AppendEvent(StageEvent{Stage: stage, DtSeconds: dt, OK: false, Annotations: annotations})
		span.SetError(err)
		return err
	}

	rc.AppendEvent(StageEvent{Stage: stage, DtSeconds: dt, OK: true, Annotations: annotations})
	return nil
}
