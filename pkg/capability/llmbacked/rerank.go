package llmbacked

import (
	"context"
	"fmt"
	"strings"

	"github.com/lonestarx1/purchasesaga/pkg/cost"
	"github.com/lonestarx1/purchasesaga/pkg/llm"
	"github.com/lonestarx1/purchasesaga/pkg/saga"
)

const rerankSystemPrompt = `You rerank a list of shopping offers against a buyer's purchase intent.
You will be given a numbered list of offers, index 0 first.
Respond with JSON only, no prose: a single array of those indices in your preferred order,
e.g. [2,0,1]. Every index must appear exactly once.`

// Rerank is a saga.RerankProvider backed by a single llm.Provider
// completion.
type Rerank struct {
	Provider llm.Provider
	Model    string
	Tracker  *cost.Tracker
}

// NewRerank constructs an LLM-backed reranker. tracker may be nil, in
// which case completions are not charged.
func NewRerank(provider llm.Provider, model string, tracker *cost.Tracker) Rerank {
	return Rerank{Provider: provider, Model: model, Tracker: tracker}
}

// Rerank implements saga.RerankProvider. The caller (the Sourcing
// Merger) is responsible for resolving missing or duplicate indices in
// the returned permutation.
func (r Rerank) Rerank(ctx context.Context, intent saga.PurchaseIntent, offers []saga.Offer) ([]int, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "intent: item=%q brand=%q color=%q budget=%.2f\n", intent.ItemName, intent.Brand, intent.Color, intent.Budget)
	for idx, o := range offers {
		fmt.Fprintf(&b, "%d: vendor=%q title=%q price=%.2f shipping_days=%.1f eta_days=%.1f score=%.4f\n",
			idx, o.Vendor, o.Title, o.PriceUSD, o.ShippingDays, o.ETADays, o.Score)
	}

	content, err := complete(ctx, r.Provider, r.Model, rerankSystemPrompt, b.String(), r.Tracker, "rerank")
	if err != nil {
		return nil, err
	}

	var indices []int
	if err := decodeJSON(content, &indices); err != nil {
		return nil, fmt.Errorf("llmbacked: rerank: %w", err)
	}
	return indices, nil
}

var _ saga.RerankProvider = Rerank{}
