package llmbacked

import (
	"context"
	"fmt"

	"github.com/lonestarx1/purchasesaga/pkg/cost"
	"github.com/lonestarx1/purchasesaga/pkg/llm"
	"github.com/lonestarx1/purchasesaga/pkg/saga"
)

const trustSystemPrompt = `You review a rule-based vendor trust assessment and may adjust its risk band.
Respond with JSON only, no prose, matching exactly:
{"risk":"low|medium|high","auth_reasons":[""]}
Only raise the risk band above what the rules already found, or leave it unchanged; never lower it.
auth_reasons should be the rule-based reasons plus any you add, never fewer.`

// TrustAdjust is a saga.TrustAdjustProvider backed by a single
// llm.Provider completion. It can only raise an assessment's risk band,
// never lower it — RaiseRisk enforces the same monotonic rule the
// rest of S4 depends on.
type TrustAdjust struct {
	Provider llm.Provider
	Model    string
	Tracker  *cost.Tracker
}

// NewTrustAdjust constructs an LLM-backed trust adjuster. tracker may
// be nil, in which case completions are not charged.
func NewTrustAdjust(provider llm.Provider, model string, tracker *cost.Tracker) TrustAdjust {
	return TrustAdjust{Provider: provider, Model: model, Tracker: tracker}
}

// Adjust implements saga.TrustAdjustProvider.
func (t TrustAdjust) Adjust(ctx context.Context, offer saga.Offer, assessment saga.TrustAssessment, profile saga.VendorProfile) (saga.TrustAssessment, error) {
	user := fmt.Sprintf(
		"vendor=%q risk=%s tls=%v policy_pages=%v domain_age_days=%d happy_reviews=%.2f returns_accepted=%v refund_days=%d auth_reasons=%v",
		assessment.Vendor, assessment.Risk, profile.TLS, profile.HasPolicyPages, profile.DomainAgeDays,
		profile.HappyReviews, profile.ReturnsAccepted, profile.RefundDays, assessment.AuthReasons,
	)

	content, err := complete(ctx, t.Provider, t.Model, trustSystemPrompt, user, t.Tracker, "trust-adjust")
	if err != nil {
		return assessment, err
	}

	var out struct {
		Risk        string   `json:"risk"`
		AuthReasons []string `json:"auth_reasons"`
	}
	if err := decodeJSON(content, &out); err != nil {
		return assessment, fmt.Errorf("llmbacked: trust adjust: %w", err)
	}

	adjusted := assessment
	if reported, ok := parseRisk(out.Risk); ok {
		adjusted.Risk = saga.RaiseRisk(assessment.Risk, reported)
	}
	if len(out.AuthReasons) > 0 {
		adjusted.AuthReasons = out.AuthReasons
	}
	return adjusted, nil
}

func parseRisk(s string) (saga.Risk, bool) {
	switch s {
	case "low":
		return saga.RiskLow, true
	case "medium":
		return saga.RiskMedium, true
	case "high":
		return saga.RiskHigh, true
	default:
		return saga.RiskLow, false
	}
}

var _ saga.TrustAdjustProvider = TrustAdjust{}
