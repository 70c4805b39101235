package llmbacked

import (
	"context"
	"fmt"

	"github.com/lonestarx1/purchasesaga/pkg/cost"
	"github.com/lonestarx1/purchasesaga/pkg/llm"
	"github.com/lonestarx1/purchasesaga/pkg/saga"
)

const intentSystemPrompt = `You confirm a shopper's purchase intent from a vision hypothesis and their own words.
Respond with JSON only, no prose, matching exactly:
{"item_name":"","quantity":1,"color":"","size":"","budget":0,"brand":"","category":""}
quantity defaults to 1 if not stated. budget is a positive USD amount, or 0 if not stated.`

// Intent is a saga.IntentProvider backed by a single llm.Provider
// completion.
type Intent struct {
	Provider llm.Provider
	Model    string
	Tracker  *cost.Tracker
}

// NewIntent constructs an LLM-backed intent extractor. tracker may be
// nil, in which case completions are not charged.
func NewIntent(provider llm.Provider, model string, tracker *cost.Tracker) Intent {
	return Intent{Provider: provider, Model: model, Tracker: tracker}
}

// Extract implements saga.IntentProvider.
func (i Intent) Extract(ctx context.Context, hyp saga.ProductHypothesis, userText string) (saga.PurchaseIntent, error) {
	user := fmt.Sprintf("hypothesis: label=%q brand=%q color=%q category=%q display_name=%q\nuser text: %q",
		hyp.Label, hyp.Brand, hyp.Color, hyp.Category, hyp.DisplayName, userText)

	content, err := complete(ctx, i.Provider, i.Model, intentSystemPrompt, user, i.Tracker, "intent")
	if err != nil {
		return saga.PurchaseIntent{}, err
	}

	var out saga.PurchaseIntent
	if err := decodeJSON(content, &out); err != nil {
		return saga.PurchaseIntent{}, fmt.Errorf("llmbacked: intent: %w", err)
	}
	if out.ItemName == "" {
		out.ItemName = hyp.DisplayName
		if out.ItemName == "" {
			out.ItemName = hyp.Label
		}
	}
	if out.Quantity <= 0 {
		out.Quantity = 1
	}
	return out, nil
}

var _ saga.IntentProvider = Intent{}
