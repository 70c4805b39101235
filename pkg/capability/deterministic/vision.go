// Package deterministic provides the non-LLM default for every
// required saga capability, so a deployment can run the full pipeline
// with zero LLM credentials configured. Outputs are deliberately
// conservative — a vision detector that cannot actually see the image
// returns a low-confidence generic hypothesis rather than guessing.
package deterministic

import (
	"context"
	"fmt"

	"github.com/lonestarx1/purchasesaga/pkg/saga"
)

// lowConfidence is the detector's fixed confidence for every capture,
// since it never inspects image bytes beyond presence.
const lowConfidence = 0.2

// Vision is the fallback saga.VisionProvider: it reports a generic
// "object" hypothesis with no brand or color guess, deferring
// specificity entirely to S2's user-text grammar or an LLM refinement
// pass.
type Vision struct{}

// NewVision constructs the deterministic vision stub.
func NewVision() Vision {
	return Vision{}
}

// Detect implements saga.VisionProvider, erroring only when no image
// bytes were captured at all.
func (Vision) Detect(ctx context.Context, image []byte) (saga.ProductHypothesis, error) {
	if len(image) == 0 {
		return saga.ProductHypothesis{}, fmt.Errorf("%w: no image captured", saga.ErrProviderError)
	}
	return saga.ProductHypothesis{
		Label:      "object",
		Confidence: lowConfidence,
	}, nil
}

var _ saga.VisionProvider = Vision{}
