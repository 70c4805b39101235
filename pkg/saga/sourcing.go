package saga

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/lonestarx1/purchasesaga/pkg/budget"
)

// sourcingTopK bounds how many candidates each strategy contributes
// before merge, rerank, and the final emitted list.
const sourcingTopK = 5

// RunSourcing executes S3: fan out the strict and fuzzy strategies
// concurrently, merge their top-k candidates, optionally rerank under
// the LLM flag, and select the best offer.
func RunSourcing(ctx context.Context, rc *RunContext, providers Providers, budgeter *budget.Budgeter) (map[string]string, error) {
	if providers.Catalog == nil {
		return nil, fmt.Errorf("%w: no catalog provider configured", ErrInvalidInput)
	}
	var intent PurchaseIntent
	if rc.Intent != nil {
		intent = *rc.Intent
	}

	catalog, err := providers.Catalog.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog.load: %v", ErrProviderError, err)
	}

	type branchResult struct {
		items []Offer
		err   error
	}
	var wg sync.WaitGroup
	var strictRes, fuzzyRes branchResult
	wg.Add(2)
	go func() {
		defer wg.Done()
		strictRes.items, strictRes.err = runStrictStrategy(catalog, intent)
	}()
	go func() {
		defer wg.Done()
		fuzzyRes.items, fuzzyRes.err = runFuzzyStrategy(catalog, intent)
	}()
	wg.Wait()

	var merged []Offer
	var strictCount, fuzzyCount int

	if strictRes.err != nil || fuzzyRes.err != nil {
		// Either branch threw: discard both and fall back to the legacy
		// single-path execution.
		merged = scoreOffers(filterFuzzy(catalog, intent), intent)
		merged = applyBudgetFallback(merged, catalog, intent)
		merged = topOffers(merged, sourcingTopK)
	} else {
		strictTop := applyBudgetFallback(topOffers(strictRes.items, sourcingTopK), catalog, intent)
		fuzzyTop := applyBudgetFallback(topOffers(fuzzyRes.items, sourcingTopK), catalog, intent)
		strictCount = len(strictTop)
		fuzzyCount = len(fuzzyTop)
		merged = mergeByNormalizedURL(strictTop, fuzzyTop)
	}

	rc.AppendEvent(StageEvent{
		Stage: "S3_BRANCH",
		OK:    true,
		Annotations: Annotation(
			"strict_count", strconv.Itoa(strictCount),
			"fuzzy_count", strconv.Itoa(fuzzyCount),
		),
	})

	// Rerank applies once to the final merged candidate list, after
	// dedup — never per-branch — so a token-budget denial charges (or
	// skips) exactly one TokenEvent for the stage.
	if rc.Inputs.Flags.LLMSourcing && providers.Rerank != nil {
		merged = rerankTop(ctx, rc, "merged", intent, merged, providers.Rerank, budgeter)
	}

	if len(merged) == 0 {
		return Annotation("reason", "no_offers"), fmt.Errorf("%w: %w", ErrSoftFailure, ErrNoOffers)
	}

	best := selectBestOffer(merged, rc.Inputs.PreferredOfferURL)
	rc.Offers = merged
	rc.BestOffer = &best

	return Annotation(
		"offer_count", strconv.Itoa(len(merged)),
		"best_vendor", best.Vendor,
		"best_price", strconv.FormatFloat(best.PriceUSD, 'f', 2, 64),
		"ranking_hit", strconv.FormatBool(RankingHit(merged)),
	), nil
}

func itemTokens(itemName string) []string {
	var toks []string
	for _, t := range strings.Fields(strings.ToLower(itemName)) {
		if len(t) > 2 {
			toks = append(toks, t)
		}
	}
	return toks
}

func containsToken(haystack string, token string) bool {
	return strings.Contains(strings.ToLower(haystack), token)
}

func haystackFor(o Offer) string {
	return o.Title + " " + strings.Join(o.Keywords, " ")
}

func runStrictStrategy(catalog []Offer, intent PurchaseIntent) ([]Offer, error) {
	var out []Offer
	tokens := itemTokens(intent.ItemName)
	for _, item := range catalog {
		if intent.Category != "" && !strings.EqualFold(item.Category, intent.Category) {
			continue
		}
		hay := haystackFor(item)
		if intent.Brand != "" && !containsToken(hay, strings.ToLower(intent.Brand)) {
			continue
		}
		if !anyTokenPresent(hay, tokens) {
			continue
		}
		out = append(out, item)
	}
	return scoreOffers(out, intent), nil
}

func runFuzzyStrategy(catalog []Offer, intent PurchaseIntent) ([]Offer, error) {
	return scoreOffers(filterFuzzy(catalog, intent), intent), nil
}

func filterFuzzy(catalog []Offer, intent PurchaseIntent) []Offer {
	var categoryFiltered []Offer
	for _, item := range catalog {
		if intent.Category != "" && !strings.EqualFold(item.Category, intent.Category) {
			continue
		}
		categoryFiltered = append(categoryFiltered, item)
	}

	itemLower := strings.ToLower(intent.ItemName)
	tokens := itemTokens(intent.ItemName)

	var substringMatches []Offer
	for _, item := range categoryFiltered {
		hay := strings.ToLower(haystackFor(item))
		if itemLower != "" && strings.Contains(hay, itemLower) {
			substringMatches = append(substringMatches, item)
		}
	}
	if len(substringMatches) > 0 {
		return substringMatches
	}

	var tokenMatches []Offer
	for _, item := range categoryFiltered {
		if anyTokenPresent(haystackFor(item), tokens) {
			tokenMatches = append(tokenMatches, item)
		}
	}
	if len(tokenMatches) > 0 {
		return tokenMatches
	}

	if len(categoryFiltered) > 0 {
		return categoryFiltered
	}
	return catalog
}

func anyTokenPresent(haystack string, tokens []string) bool {
	for _, t := range tokens {
		if containsToken(haystack, t) {
			return true
		}
	}
	return false
}

// scoreOffers computes the 0.6/0.2/0.2 price/ship/eta base score plus
// bonuses, rounds to 4 decimals, and returns offers sorted descending
// by score.
func scoreOffers(offers []Offer, intent PurchaseIntent) []Offer {
	if len(offers) == 0 {
		return nil
	}
	priceNorm := minMaxNorm(offers, func(o Offer) float64 { return o.PriceUSD })
	shipNorm := minMaxNorm(offers, func(o Offer) float64 { return o.ShippingDays })
	etaNorm := minMaxNorm(offers, func(o Offer) float64 { return o.ETADays })

	scored := make([]Offer, len(offers))
	for i, o := range offers {
		base := 0.6*(1-priceNorm[i]) + 0.2*(1-shipNorm[i]) + 0.2*(1-etaNorm[i])

		hay := strings.ToLower(haystackFor(o))
		if intent.Brand != "" && containsToken(hay, strings.ToLower(intent.Brand)) {
			base += 0.25
		}
		if intent.Color != "" && containsToken(hay, strings.ToLower(intent.Color)) {
			base += 0.15
		}
		if intent.ItemName != "" && strings.Contains(hay, strings.ToLower(intent.ItemName)) {
			base += 0.20
		}
		if intent.Budget > 0 && o.PriceUSD <= intent.Budget {
			base += 0.10
		}

		o.Score = roundTo4(base)
		scored[i] = o
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}

func minMaxNorm(offers []Offer, get func(Offer) float64) []float64 {
	min, max := get(offers[0]), get(offers[0])
	for _, o := range offers[1:] {
		v := get(o)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	norms := make([]float64, len(offers))
	for i, o := range offers {
		if max == min {
			norms[i] = 0.5
			continue
		}
		norms[i] = (get(o) - min) / (max - min)
	}
	return norms
}

func roundTo4(v float64) float64 {
	return float64(int(v*10000+0.5)) / 10000
}

// applyBudgetFallback emits up to top-k cheapest in-budget items with a
// fixed score of 0.5 when the strategy's top-k was empty and a budget
// is set.
func applyBudgetFallback(top []Offer, catalog []Offer, intent PurchaseIntent) []Offer {
	if len(top) > 0 || intent.Budget <= 0 {
		return top
	}
	var inBudget []Offer
	for _, item := range catalog {
		if item.PriceUSD <= intent.Budget {
			inBudget = append(inBudget, item)
		}
	}
	sort.SliceStable(inBudget, func(i, j int) bool { return inBudget[i].PriceUSD < inBudget[j].PriceUSD })
	if len(inBudget) > sourcingTopK {
		inBudget = inBudget[:sourcingTopK]
	}
	for i := range inBudget {
		inBudget[i].Score = 0.5
	}
	return inBudget
}

func topOffers(offers []Offer, k int) []Offer {
	if len(offers) <= k {
		return offers
	}
	return offers[:k]
}

// mergeByNormalizedURL dedupes the union of two offer lists by
// normalized URL, keeping the higher score on collision, then sorts
// descending by score.
func mergeByNormalizedURL(a, b []Offer) []Offer {
	byURL := make(map[string]Offer)
	order := make([]string, 0, len(a)+len(b))
	add := func(offers []Offer) {
		for _, o := range offers {
			key := o.NormalizedURL()
			if existing, ok := byURL[key]; ok {
				if o.Score > existing.Score {
					byURL[key] = o
				}
				continue
			}
			byURL[key] = o
			order = append(order, key)
		}
	}
	add(a)
	add(b)

	merged := make([]Offer, 0, len(order))
	for _, key := range order {
		merged = append(merged, byURL[key])
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > sourcingTopK {
		merged = merged[:sourcingTopK]
	}
	return merged
}

func selectBestOffer(offers []Offer, preferredURL string) Offer {
	if preferredURL != "" {
		want := NormalizeURL(preferredURL)
		for _, o := range offers {
			if o.NormalizedURL() == want {
				return o
			}
		}
	}
	return offers[0]
}

// rerankTop invokes the rerank provider under the Token Budgeter,
// falling back to the existing deterministic ordering on any error,
// token-budget denial, or malformed index list.
func rerankTop(ctx context.Context, rc *RunContext, branch string, intent PurchaseIntent, offers []Offer, rerank RerankProvider, budgeter *budget.Budgeter) []Offer {
	if len(offers) == 0 {
		return offers
	}

	// The planned prompt covers the intent and every candidate offer.
	prompt := intent.ItemName
	for _, o := range offers {
		prompt += " " + o.Vendor + " " + o.Title
	}
	planned := budget.CountTokens("rerank", prompt)
	decision := budgeter.EnforceBeforeCall(StageSourcing, planned)
	if decision == budget.DecisionBlock || decision == budget.DecisionFallback {
		budgeter.RecordSkipped(StageSourcing, "sourcing-rerank-"+branch, "llm", "prompt")
		return offers
	}
	budgeter.Charge(StageSourcing, "sourcing-rerank-"+branch, "llm", "prompt", planned)

	indices, err := rerank.Rerank(ctx, intent, offers)
	if err != nil {
		return offers
	}
	return applyRerankIndices(offers, indices)
}

// applyRerankIndices reorders offers per the rerank provider's index
// list. Missing indices are appended in original order; duplicate
// indices resolve to their first occurrence (see DESIGN.md's Open
// Question decisions).
func applyRerankIndices(offers []Offer, indices []int) []Offer {
	seen := make(map[int]bool, len(offers))
	out := make([]Offer, 0, len(offers))
	for _, idx := range indices {
		if idx < 0 || idx >= len(offers) || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, offers[idx])
	}
	for i, o := range offers {
		if !seen[i] {
			out = append(out, o)
		}
	}
	return out
}
