package llmbacked

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/lonestarx1/purchasesaga/pkg/cost"
	"github.com/lonestarx1/purchasesaga/pkg/llm"
	"github.com/lonestarx1/purchasesaga/pkg/saga"
)

const visionRefineSystemPrompt = `You refine a rough product vision hypothesis using a base64-encoded image descriptor.
Respond with JSON only, no prose, matching exactly:
{"label":"","brand":"","color":"","confidence":0,"category":"","display_name":""}
confidence is in [0,1]. Keep any field you cannot improve on unchanged from the input hypothesis.`

// VisionRefine is a saga.VisionRefineProvider backed by a single
// llm.Provider completion, applied after the deterministic or
// primary vision pass.
type VisionRefine struct {
	Provider llm.Provider
	Model    string
	Tracker  *cost.Tracker
}

// NewVisionRefine constructs an LLM-backed vision refiner. tracker may
// be nil, in which case completions are not charged.
func NewVisionRefine(provider llm.Provider, model string, tracker *cost.Tracker) VisionRefine {
	return VisionRefine{Provider: provider, Model: model, Tracker: tracker}
}

// Refine implements saga.VisionRefineProvider.
func (v VisionRefine) Refine(ctx context.Context, image []byte, hyp saga.ProductHypothesis) (saga.ProductHypothesis, error) {
	user := fmt.Sprintf(
		"current hypothesis: label=%q brand=%q color=%q confidence=%.2f category=%q display_name=%q\nimage (base64, truncated ok): %s",
		hyp.Label, hyp.Brand, hyp.Color, hyp.Confidence, hyp.Category, hyp.DisplayName, base64.StdEncoding.EncodeToString(image),
	)

	content, err := complete(ctx, v.Provider, v.Model, visionRefineSystemPrompt, user, v.Tracker, "vision-refine")
	if err != nil {
		return hyp, err
	}

	var out saga.ProductHypothesis
	if err := decodeJSON(content, &out); err != nil {
		return hyp, fmt.Errorf("llmbacked: vision refine: %w", err)
	}
	if out.Label == "" {
		out.Label = hyp.Label
	}
	out.BoundingBox = hyp.BoundingBox
	return out, nil
}

var _ saga.VisionRefineProvider = VisionRefine{}
