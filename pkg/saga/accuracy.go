package saga

import "strings"

// RecognitionHit reports whether a confirmed intent agrees with the
// vision hypothesis it was confirmed from: a match on item name, or on
// brand, or on color. This is a self-consistency check against the
// run's own S1 output, not a held-out ground truth label — the same
// heuristic the reference coordinator scores immediately after intent
// confirmation succeeds.
func RecognitionHit(hyp ProductHypothesis, intent PurchaseIntent) bool {
	if hyp.Label == "" && hyp.Brand == "" && hyp.Color == "" {
		return false
	}
	if hyp.Label != "" && intent.ItemName != "" &&
		strings.Contains(strings.ToLower(intent.ItemName), strings.ToLower(hyp.Label)) {
		return true
	}
	if hyp.Brand != "" && strings.EqualFold(hyp.Brand, intent.Brand) {
		return true
	}
	if hyp.Color != "" && strings.EqualFold(hyp.Color, intent.Color) {
		return true
	}
	return false
}

// RankingHit reports whether the first offer in a sourced list carries
// the maximum score among all of them, within a small epsilon — a
// sanity check that the Sourcing Merger's chosen order (deterministic
// scoring or rerank) actually surfaced the top candidate first.
func RankingHit(offers []Offer) bool {
	if len(offers) == 0 {
		return false
	}
	max := offers[0].Score
	for _, o := range offers[1:] {
		if o.Score > max {
			max = o.Score
		}
	}
	const epsilon = 1e-6
	return max-offers[0].Score <= epsilon
}
