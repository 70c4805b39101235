package saga

import (
	"context"
	"strconv"
	"strings"

	"github.com/lonestarx1/purchasesaga/pkg/budget"
)

var vendorNameRedFlags = []string{"scam", "fraud", "unknown", "dealz", "click"}
var urlRedFlags = []string{"scam", "click", "malware", "unknown"}
var replicaTerms = []string{
	"replica", "knockoff", "fake", "dupe", "inspired", "lookalike",
	"mirror quality", "aaa", "copy", "compatible with", "style",
}

// RunTrust executes S4: rule-based vendor scoring, anomaly enrichment,
// vision cross-checks, and bounded compensation over the remaining
// offers.
func RunTrust(ctx context.Context, rc *RunContext, providers Providers, budgeter *budget.Budgeter) (map[string]string, error) {
	if rc.BestOffer == nil {
		return Annotation("reason", "missing_offer"), ErrSoftFailure
	}

	profile := lookupVendorProfile(ctx, providers, rc.BestOffer.Vendor)
	assessment := evaluateTrust(ctx, *rc.BestOffer, rc.Hypothesis, profile, providers, rc.Inputs.MarketplaceDomainPrefix)

	if rc.Inputs.Flags.LLMTrust && providers.TrustAdjust != nil {
		assessment = tryAdjustTrust(ctx, rc, providers, budgeter, assessment, profile)
	}
	rc.Trust = &assessment

	switched := runCompensation(ctx, rc, providers, assessment)

	return Annotation(
		"vendor", assessment.Vendor,
		"risk", assessment.Risk.String(),
		"switched", strconv.FormatBool(switched),
	), nil
}

// tryAdjustTrust invokes the LLM trust-adjust pass under the Token
// Budgeter, falling back to the unmodified rule-based assessment on
// any error or token-budget denial.
func tryAdjustTrust(ctx context.Context, rc *RunContext, providers Providers, budgeter *budget.Budgeter, assessment TrustAssessment, profile VendorProfile) TrustAssessment {
	planned := budget.CountTokens("trust-adjust", assessment.Vendor)
	decision := budgeter.EnforceBeforeCall(StageTrust, planned)
	if decision == budget.DecisionBlock || decision == budget.DecisionFallback {
		budgeter.RecordSkipped(StageTrust, "trust-adjust", "llm", "prompt")
		return assessment
	}
	budgeter.Charge(StageTrust, "trust-adjust", "llm", "prompt", planned)

	adjusted, err := providers.TrustAdjust.Adjust(ctx, *rc.BestOffer, assessment, profile)
	if err != nil {
		return assessment
	}
	return adjusted
}

func lookupVendorProfile(ctx context.Context, providers Providers, vendor string) VendorProfile {
	if providers.VendorProfiles == nil {
		return DefaultVendorProfile
	}
	if profile, ok := providers.VendorProfiles.Profile(ctx, vendor); ok {
		return profile
	}
	return DefaultVendorProfile
}

// evaluateTrust runs the additive rule-based score, the optional
// anomaly enrichment, and the vision cross-checks for a single
// candidate offer.
func evaluateTrust(ctx context.Context, offer Offer, hyp *ProductHypothesis, profile VendorProfile, providers Providers, marketplacePrefix string) TrustAssessment {
	var reasons []string
	score := 0.0

	if !profile.TLS {
		score += 2
		reasons = append(reasons, "tls_absent")
	}
	if !profile.HasPolicyPages {
		score += 1
		reasons = append(reasons, "no_policy_pages")
	}
	if profile.DomainAgeDays < 365 {
		score += 1
		reasons = append(reasons, "domain_age_lt_365")
	}
	if profile.DomainAgeDays < 90 {
		score += 1
		reasons = append(reasons, "domain_age_lt_90")
	}
	if profile.HistoricalIssues {
		score += 2
		reasons = append(reasons, "historical_issues")
	}
	if profile.HappyReviews < 0.75 {
		score += 1
		reasons = append(reasons, "happy_reviews_lt_75")
	}
	if profile.HappyReviews < 0.60 {
		score += 1
		reasons = append(reasons, "happy_reviews_lt_60")
	}
	if !profile.ReturnsAccepted {
		score += 2
		reasons = append(reasons, "no_returns")
	} else if profile.RefundDays > 14 {
		score += 1
		reasons = append(reasons, "refund_days_gt_14")
	} else if profile.RefundDays > 10 {
		score += 0.5
		reasons = append(reasons, "refund_days_gt_10")
	}

	vendorLower := strings.ToLower(offer.Vendor)
	for _, w := range vendorNameRedFlags {
		if strings.Contains(vendorLower, w) {
			score += 2
			reasons = append(reasons, "vendor_name_red_flag")
			break
		}
	}
	urlLower := strings.ToLower(offer.URL)
	for _, w := range urlRedFlags {
		if strings.Contains(urlLower, w) {
			score += 2
			reasons = append(reasons, "url_red_flag")
			break
		}
	}

	assessment := TrustAssessment{
		Vendor:         offer.Vendor,
		TLS:            profile.TLS,
		DomainAgeDays:  profile.DomainAgeDays,
		HasPolicyPages: profile.HasPolicyPages,
		Risk:           bandFromScore(score),
	}

	applyAnomalyEnrichment(ctx, &assessment, &reasons, offer, hyp, providers)
	applyVisionCrossChecks(&assessment, &reasons, offer, hyp, marketplacePrefix)

	assessment.AuthReasons = reasons
	return assessment
}

// bandFromScore maps the additive score to a risk band: ≤1 low, ≤3.5
// medium, else high.
func bandFromScore(score float64) Risk {
	switch {
	case score <= 1:
		return RiskLow
	case score <= 3.5:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// applyAnomalyEnrichment computes robust z-scores against the
// price-reference store, most-specific (brand, category) bucket
// first. Weight and linear-dimension values are read from the offer's
// Attributes map since the saga's catalog schema carries them there
// rather than as first-class Offer fields.
func applyAnomalyEnrichment(ctx context.Context, assessment *TrustAssessment, reasons *[]string, offer Offer, hyp *ProductHypothesis, providers Providers) {
	if providers.PriceRefs == nil {
		return
	}
	brand := ""
	if hyp != nil {
		brand = hyp.Brand
	}
	stats, err := providers.PriceRefs.Lookup(ctx, brand, offer.Category)
	if err != nil || len(stats) == 0 {
		return
	}

	if ps, ok := stats["price"]; ok && ps.Spread > 0 {
		z := (offer.PriceUSD - ps.Median) / ps.Spread
		assessment.PriceZScore = &z
		if z <= -2 {
			assessment.Risk = RaiseRisk(assessment.Risk, RiskHigh)
			*reasons = append(*reasons, "price_anomaly_low")
		}
	}

	for key, ps := range stats {
		if key == "price" || ps.Spread <= 0 {
			continue
		}
		raw, ok := offer.Attributes[key]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		z := (v - ps.Median) / ps.Spread
		if key == "weight" {
			assessment.WeightZScore = &z
			if abs(z) >= 3 {
				assessment.Risk = RaiseRisk(assessment.Risk, RiskHigh)
				*reasons = append(*reasons, "weight_anomaly")
			}
			continue
		}
		if assessment.DimensionZ == nil {
			assessment.DimensionZ = make(map[string]float64)
		}
		assessment.DimensionZ[key] = z
		if abs(z) >= 3 {
			assessment.Risk = RaiseRisk(assessment.Risk, RiskMedium)
			*reasons = append(*reasons, "dimension_anomaly")
		}
	}
}

func applyVisionCrossChecks(assessment *TrustAssessment, reasons *[]string, offer Offer, hyp *ProductHypothesis, marketplacePrefix string) {
	if marketplacePrefix != "" && !strings.HasPrefix(strings.ToLower(offer.URL), strings.ToLower(marketplacePrefix)) {
		assessment.DomainMismatch = true
		assessment.Risk = RaiseRisk(assessment.Risk, RiskMedium)
		*reasons = append(*reasons, "domain_mismatch")
	}

	if hyp != nil && hyp.Brand != "" {
		if !strings.Contains(strings.ToLower(offer.Vendor), strings.ToLower(hyp.Brand)) {
			assessment.BrandMismatch = true
			assessment.Risk = RaiseRisk(assessment.Risk, RiskMedium)
			*reasons = append(*reasons, "brand_mismatch")
		}
	}

	if hyp != nil && hyp.Color != "" {
		hay := strings.ToLower(offer.Title + " " + offer.Description)
		if !strings.Contains(hay, strings.ToLower(hyp.Color)) {
			assessment.VisionMismatch = true
			assessment.Risk = RaiseRisk(assessment.Risk, RiskMedium)
			*reasons = append(*reasons, "vision_mismatch")
		}
	}

	hayFull := strings.ToLower(offer.Title + " " + offer.Description + " " + strings.Join(offer.Keywords, " "))
	var hits []string
	for _, term := range replicaTerms {
		if strings.Contains(hayFull, term) {
			hits = append(hits, term)
		}
	}
	if len(hits) > 0 {
		assessment.ReplicaTerms = hits
		assessment.Risk = RaiseRisk(assessment.Risk, RiskHigh)
		*reasons = append(*reasons, "replica_terms")
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
