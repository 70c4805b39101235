package saga

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lonestarx1/purchasesaga/pkg/budget"
)

// RunCapture executes S1: delegate to the vision provider, optionally
// refine the result under an LLM pass, and record the resulting
// ProductHypothesis on rc.
func RunCapture(ctx context.Context, rc *RunContext, providers Providers, budgeter *budget.Budgeter) (map[string]string, error) {
	if providers.Vision == nil {
		return nil, fmt.Errorf("%w: no vision provider configured", ErrInvalidInput)
	}

	hyp, err := providers.Vision.Detect(ctx, rc.Inputs.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: vision.detect: %v", ErrProviderError, err)
	}

	if rc.Inputs.Flags.LLMRefineS1 && providers.VisionRefine != nil {
		hyp = refineHypothesis(ctx, rc, providers.VisionRefine, hyp, budgeter)
	}

	rc.Hypothesis = &hyp

	return Annotation(
		"label", hyp.Label,
		"brand", hyp.Brand,
		"color", hyp.Color,
		"confidence", strconv.FormatFloat(hyp.Confidence, 'f', 2, 64),
	), nil
}

// refineHypothesis applies the optional LLM refinement pass, falling
// back to the original hypothesis on any error or token-budget block.
func refineHypothesis(ctx context.Context, rc *RunContext, refiner VisionRefineProvider, hyp ProductHypothesis, budgeter *budget.Budgeter) ProductHypothesis {
	if budgeter != nil {
		planned := budget.CountTokens("refine", hyp.Label+hyp.Brand+hyp.Category)
		decision := budgeter.EnforceBeforeCall(StageCapture, planned)
		if decision == budget.DecisionBlock || decision == budget.DecisionFallback {
			budgeter.RecordSkipped(StageCapture, "vision-refine", "refine", "prompt")
			return hyp
		}
		budgeter.Charge(StageCapture, "vision-refine", "refine", "prompt", planned)
	}

	refined, err := refiner.Refine(ctx, rc.Inputs.Image, hyp)
	if err != nil {
		return hyp
	}
	return refined
}
