package saga

import (
	"context"
	"errors"
	"time"

	"github.com/lonestarx1/purchasesaga/pkg/budget"
	"github.com/lonestarx1/purchasesaga/pkg/trace"
)

// NewBudgeter builds the Token Budgeter for a run from its inputs,
// falling back to budget.DefaultBudgets and budget.PolicyTruncate when
// unset.
func NewBudgeter(rc *RunContext) *budget.Budgeter {
	return budget.New(rc.RunID, rc.Inputs.TokenBudgets, rc.Inputs.TokenPolicy)
}

type stageSpec struct {
	timeoutKey string
	eventName  string
	fn         StageFunc
}

func buildStages(providers Providers, budgeter *budget.Budgeter) []stageSpec {
	return []stageSpec{
		{StageCapture, "S1_CAPTURE", func(ctx context.Context, rc *RunContext) (map[string]string, error) {
			return RunCapture(ctx, rc, providers, budgeter)
		}},
		{StageIntent, "S2", func(ctx context.Context, rc *RunContext) (map[string]string, error) {
			return RunIntent(ctx, rc, providers, budgeter)
		}},
		{StageSourcing, "S3_SOURCING", func(ctx context.Context, rc *RunContext) (map[string]string, error) {
			return RunSourcing(ctx, rc, providers, budgeter)
		}},
		{StageTrust, "S4_TRUST", func(ctx context.Context, rc *RunContext) (map[string]string, error) {
			return RunTrust(ctx, rc, providers, budgeter)
		}},
	}
}

func checkoutStage(providers Providers) stageSpec {
	return stageSpec{StageCheckout, "S5_CHECKOUT", func(ctx context.Context, rc *RunContext) (map[string]string, error) {
		return RunCheckout(ctx, rc, providers)
	}}
}

// RunPreview drives S1 through S4: capture, intent confirmation,
// sourcing, and trust/compensation. It never runs checkout.
func RunPreview(ctx context.Context, rc *RunContext, providers Providers, budgeter *budget.Budgeter, tracer trace.Tracer) error {
	return runStages(ctx, rc, tracer, buildStages(providers, budgeter))
}

// RunFull drives the complete pipeline, S1 through S5.
func RunFull(ctx context.Context, rc *RunContext, providers Providers, budgeter *budget.Budgeter, tracer trace.Tracer) error {
	stages := append(buildStages(providers, budgeter), checkoutStage(providers))
	return runStages(ctx, rc, tracer, stages)
}

// runStages executes each stage through the Stage Runner in order,
// stopping without error on a soft failure (the run ends gracefully,
// its cause already recorded as that stage's event) and propagating
// any other error as fatal.
func runStages(ctx context.Context, rc *RunContext, tracer trace.Tracer, stages []stageSpec) error {
	for _, s := range stages {
		timeout := resolveTimeout(rc, s.timeoutKey)
		if err := RunStage(ctx, rc, tracer, s.eventName, timeout, s.fn); err != nil {
			if errors.Is(err, ErrSoftFailure) {
				return nil
			}
			return err
		}
	}
	return nil
}

func resolveTimeout(rc *RunContext, key string) time.Duration {
	if rc.Inputs.StageTimeouts != nil {
		if t, ok := rc.Inputs.StageTimeouts[key]; ok && t > 0 {
			return t
		}
	}
	return DefaultStageTimeouts()[key]
}
