package saga

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lonestarx1/purchasesaga/pkg/budget"
)

var (
	reQtyKeywordAfter  = regexp.MustCompile(`(\d+)\s*(qty|quantity|units?)`)
	reQtyKeywordBefore = regexp.MustCompile(`(?:qty|quantity)\s*[:\-]?\s*(\d+)`)
	reBareInt          = regexp.MustCompile(`\d+`)

	reBudgetKeyword = regexp.MustCompile(`(?:budget|under|below|less than)\s*[:\-]?\s*\$?\s*(\d+(?:\.\d+)?)`)
	reBudgetDollar  = regexp.MustCompile(`\$\s*(\d+(?:\.\d+)?)`)
	reBudgetUSD     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*usd`)

	reColor = regexp.MustCompile(`\b(black|white|blue|red|green|yellow|pink|purple|grey|gray|orange|silver|gold)\b`)
	reSize  = regexp.MustCompile(`\b(s|m|l|xl)\b`)

	reSame             = regexp.MustCompile(`\bsame\s+(item|product|one|\w+)\b`)
	reDifferentColor   = regexp.MustCompile(`\bdifferent color\b`)
	reDifferentSameBr  = regexp.MustCompile(`\bdifferent\s+(\w+)\s+same brand\b`)
	reDifferentBrand   = regexp.MustCompile(`\bdifferent brand\b`)
)

// ParseIntentDeterministic applies the fixed grammar described in the
// S2 component design to user_text, seeded by the S1 hypothesis.
func ParseIntentDeterministic(hyp ProductHypothesis, userText string) PurchaseIntent {
	lower := strings.ToLower(userText)

	intent := PurchaseIntent{
		ItemName: firstNonEmpty(hyp.DisplayName, hyp.Label),
		Quantity: parseQuantity(lower),
		Category: hyp.Category,
	}

	if budgetUSD, ok := parseBudget(lower); ok {
		intent.Budget = budgetUSD
	}

	colorHint := reColor.FindString(lower)
	if m := reSize.FindString(lower); m != "" {
		intent.Size = strings.ToUpper(m)
	}

	// Unknown-object fallback: skip choice inference entirely, return
	// parsed fields only.
	if hyp.Label == "object" && hyp.Category == "" {
		intent.Color = colorHint
		return intent
	}

	if reSame.MatchString(lower) {
		intent.Color = hyp.Color
		intent.Brand = hyp.Brand
	}

	if reDifferentColor.MatchString(lower) {
		intent.Color = colorHint
	} else if intent.Color == "" && colorHint != "" {
		intent.Color = colorHint
	}

	if m := reDifferentSameBr.FindStringSubmatch(lower); m != nil {
		intent.ItemName = strings.TrimSpace(hyp.Brand + " " + m[1])
		intent.Brand = hyp.Brand
	} else if reDifferentBrand.MatchString(lower) {
		intent.Brand = ""
	}

	return intent
}

func parseQuantity(lower string) int {
	if m := reQtyKeywordAfter.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	if m := reQtyKeywordBefore.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	if m := reBareInt.FindString(lower); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n
		}
	}
	return 1
}

func parseBudget(lower string) (float64, bool) {
	for _, re := range []*regexp.Regexp{reBudgetKeyword, reBudgetDollar, reBudgetUSD} {
		if m := re.FindStringSubmatch(lower); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// RunIntent executes S2: prefer the LLM path when enabled, falling
// back to the deterministic grammar on any provider error or
// token-budget denial.
func RunIntent(ctx context.Context, rc *RunContext, providers Providers, budgeter *budget.Budgeter) (map[string]string, error) {
	var hyp ProductHypothesis
	if rc.Hypothesis != nil {
		hyp = *rc.Hypothesis
	}

	intent, usedLLM := tryLLMIntent(ctx, rc, hyp, providers, budgeter)
	if !usedLLM {
		intent = ParseIntentDeterministic(hyp, rc.Inputs.UserText)
	}
	if intent.Quantity <= 0 {
		intent.Quantity = 1
	}

	rc.Intent = &intent
	rc.AppendMessage(InterAgentMessage{
		Stage:     StageIntent,
		Sender:    "vision",
		Recipient: "intent",
		Content:   fmt.Sprintf("hypothesis: %s (%s)", hyp.Label, hyp.Brand),
	})

	return Annotation(
		"item_name", intent.ItemName,
		"quantity", strconv.Itoa(intent.Quantity),
		"used_llm", strconv.FormatBool(usedLLM),
		"recognition_hit", strconv.FormatBool(RecognitionHit(hyp, intent)),
	), nil
}

func tryLLMIntent(ctx context.Context, rc *RunContext, hyp ProductHypothesis, providers Providers, budgeter *budget.Budgeter) (PurchaseIntent, bool) {
	if !rc.Inputs.Flags.LLMIntent || providers.Intent == nil {
		return PurchaseIntent{}, false
	}

	planned := budget.CountTokens("intent", rc.Inputs.UserText)
	decision := budgeter.EnforceBeforeCall(StageIntent, planned)
	if decision == budget.DecisionBlock || decision == budget.DecisionFallback {
		budgeter.RecordSkipped(StageIntent, "intent-llm", "llm", "prompt")
		return PurchaseIntent{}, false
	}

	budgeter.Charge(StageIntent, "intent-llm", "llm", "prompt", planned)
	intent, err := providers.Intent.Extract(ctx, hyp, rc.Inputs.UserText)
	if err != nil {
		return PurchaseIntent{}, false
	}
	return intent, true
}
