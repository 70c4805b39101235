package saga

import (
	"context"
	"strconv"
	"time"
)

const (
	defaultCompensationTopK      = 3
	defaultCompensationLatency   = 500 * time.Millisecond
	defaultCompensationWindowPct = 10.0
)

// runCompensation runs the bounded compensation search over rc.Offers
// when the trust assessment landed at medium or high risk: it tries up
// to K alternatives (skipping the current best), under a wall-clock
// cap and a price window relative to the current best's price, and
// switches on the first candidate that is both strictly safer and
// within the price window. It reports whether a switch occurred.
func runCompensation(ctx context.Context, rc *RunContext, providers Providers, current TrustAssessment) bool {
	if current.Risk == RiskLow {
		return false
	}
	if len(rc.Offers) < 2 || rc.BestOffer == nil {
		return false
	}

	k := rc.Inputs.Compensation.TopK
	if k <= 0 {
		k = defaultCompensationTopK
	}
	latencyCap := defaultCompensationLatency
	if rc.Inputs.Compensation.ExtraLatencyMs > 0 {
		latencyCap = time.Duration(rc.Inputs.Compensation.ExtraLatencyMs) * time.Millisecond
	}
	windowPct := defaultCompensationWindowPct
	if rc.Inputs.Compensation.PriceWindowPct > 0 {
		windowPct = rc.Inputs.Compensation.PriceWindowPct
	}

	baseline := rc.BestOffer.PriceUSD
	currentKey := rc.BestOffer.NormalizedURL()
	start := time.Now()
	tried := 0

	for _, cand := range rc.Offers {
		if tried >= k {
			break
		}
		if cand.NormalizedURL() == currentKey {
			continue
		}
		if time.Since(start) > latencyCap {
			break
		}
		tried++

		profile := lookupVendorProfile(ctx, providers, cand.Vendor)
		candAssessment := evaluateTrust(ctx, cand, rc.Hypothesis, profile, providers, rc.Inputs.MarketplaceDomainPrefix)

		priceDeltaPct := 0.0
		if baseline > 0 {
			priceDeltaPct = (cand.PriceUSD - baseline) / baseline * 100
		}
		priceOK := cand.PriceUSD <= baseline*(1+windowPct/100)
		switched := candAssessment.Risk < current.Risk && priceOK

		rc.AppendEvent(StageEvent{
			Stage: "S4_COMPENSATE",
			OK:    true,
			Annotations: Annotation(
				"candidate_vendor", cand.Vendor,
				"candidate_risk", candAssessment.Risk.String(),
				"price_delta_pct", strconv.FormatFloat(priceDeltaPct, 'f', 2, 64),
				"switched", strconv.FormatBool(switched),
			),
		})

		if switched {
			winner := cand
			rc.BestOffer = &winner
			rc.Trust = &candAssessment
			reorderOffersTo(rc, winner.NormalizedURL())
			return true
		}
	}
	return false
}

// reorderOffersTo moves the offer matching key to index 0 of
// rc.Offers, preserving the relative order of the rest.
func reorderOffersTo(rc *RunContext, key string) {
	idx := -1
	for i, o := range rc.Offers {
		if o.NormalizedURL() == key {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return
	}
	winner := rc.Offers[idx]
	reordered := make([]Offer, 0, len(rc.Offers))
	reordered = append(reordered, winner)
	for i, o := range rc.Offers {
		if i == idx {
			continue
		}
		reordered = append(reordered, o)
	}
	rc.Offers = reordered
}
