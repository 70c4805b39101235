// Package saga implements the purchase saga orchestration engine: a
// linear five-stage pipeline (capture, intent, sourcing, trust,
// checkout) driven by a RunContext and recorded as a structured,
// causally ordered event log.
package saga

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lonestarx1/purchasesaga/internal/id"
	"github.com/lonestarx1/purchasesaga/pkg/budget"
)

// Stage names, in pipeline order.
const (
	StageCapture  = "S1"
	StageIntent   = "S2"
	StageSourcing = "S3"
	StageTrust    = "S4"
	StageCheckout = "S5"
)

// Risk is a totally ordered risk band: low < medium < high.
type Risk int

const (
	RiskLow Risk = iota
	RiskMedium
	RiskHigh
)

// String renders the risk band the way it appears in events and payloads.
func (r Risk) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// RaiseRisk is the monotonic combinator over the risk band order:
// raise_risk(current, target) = max(current, target). It never lowers
// the current band.
func RaiseRisk(current, target Risk) Risk {
	if target > current {
		return target
	}
	return current
}

// MarshalJSON renders the risk band as its string form ("low",
// "medium", "high"), matching the data model's enum rather than its
// internal int ordering.
func (r Risk) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// UnmarshalJSON parses the risk band from its string form.
func (r *Risk) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"low"`:
		*r = RiskLow
	case `"medium"`:
		*r = RiskMedium
	case `"high"`:
		*r = RiskHigh
	default:
		return fmt.Errorf("saga: invalid risk band %s", data)
	}
	return nil
}

// ProductHypothesis is S1's output: what the vision provider believes
// the captured image depicts.
type ProductHypothesis struct {
	Label      string  `json:"label"`
	Brand      string  `json:"brand,omitempty"`
	Color      string  `json:"color,omitempty"`
	BoundingBox [4]float64 `json:"bounding_box,omitempty"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// PurchaseIntent is S2's output: the confirmed item the buyer wants.
type PurchaseIntent struct {
	ItemName string  `json:"item_name"`
	Quantity int     `json:"quantity"`
	Color    string  `json:"color,omitempty"`
	Size     string  `json:"size,omitempty"`
	Budget   float64 `json:"budget,omitempty"`
	Brand    string  `json:"brand,omitempty"`
	Category string  `json:"category,omitempty"`
}

// Offer is a single sourced candidate, produced by S3.
type Offer struct {
	Vendor       string            `json:"vendor"`
	Title        string            `json:"title"`
	PriceUSD     float64           `json:"price_usd"`
	ShippingDays float64           `json:"shipping_days"`
	ETADays      float64           `json:"eta_days"`
	URL          string            `json:"url"`
	Score        float64           `json:"score"`
	Category     string            `json:"category,omitempty"`
	Keywords     []string          `json:"keywords,omitempty"`
	Description  string            `json:"description,omitempty"`
	Image        string            `json:"image,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// NormalizedURL returns the offer's URL lowercased with any trailing
// slash stripped, used as the dedup identity in the Sourcing Merger.
func (o Offer) NormalizedURL() string {
	return NormalizeURL(o.URL)
}

// NormalizeURL applies the dedup-key normalization (lowercase,
// trailing-slash-stripped) used throughout S3.
func NormalizeURL(url string) string {
	u := strings.ToLower(strings.TrimSpace(url))
	return strings.TrimSuffix(u, "/")
}

// TrustAssessment is S4's output: the vendor risk verdict plus any
// anomaly signals that contributed to it.
type TrustAssessment struct {
	Vendor         string             `json:"vendor"`
	TLS            bool               `json:"tls"`
	DomainAgeDays  int                `json:"domain_age_days"`
	HasPolicyPages bool               `json:"has_policy_pages"`
	Risk           Risk               `json:"risk"`
	PriceZScore    *float64           `json:"price_zscore,omitempty"`
	WeightZScore   *float64           `json:"weight_zscore,omitempty"`
	DimensionZ     map[string]float64 `json:"dimension_zscores,omitempty"`
	BrandMismatch  bool               `json:"brand_mismatch,omitempty"`
	DomainMismatch bool               `json:"domain_mismatch,omitempty"`
	VisionMismatch bool               `json:"vision_mismatch,omitempty"`
	ReplicaTerms   []string           `json:"replica_terms,omitempty"`
	AuthReasons    []string           `json:"auth_reasons,omitempty"`
}

// Receipt is S5's output: the record of a successfully admitted
// checkout.
type Receipt struct {
	OrderID        string  `json:"order_id"`
	IdempotencyKey string  `json:"idempotency_key"`
	AmountUSD      float64 `json:"amount_usd"`
	Vendor         string  `json:"vendor"`
	CardBrand      string  `json:"card_brand"`
	MaskedCard     string  `json:"masked_card"`
}

// StageEvent is one append-only entry in a run's event log.
type StageEvent struct {
	Stage       string            `json:"stage"`
	DtSeconds   float64           `json:"dt_seconds"`
	OK          bool              `json:"ok"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// InterAgentMessage is one append-only narration entry, independent of
// the event log and never gating control flow.
type InterAgentMessage struct {
	Stage       string            `json:"stage"`
	Sender      string            `json:"sender"`
	Recipient   string            `json:"recipient"`
	Content     string            `json:"content"`
	Timestamp   time.Time         `json:"timestamp"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// PaymentInput is the client-supplied card data for checkout.
type PaymentInput struct {
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"` // MM/YY
	CVV        string `json:"cvv"`
}

// CompensationOverrides carries the per-request overrides RunInputs
// may supply for the Compensation Controller (marked † in the external
// config table).
type CompensationOverrides struct {
	TopK             int
	PriceWindowPct   float64
	ExtraLatencyMs   int64
}

// RunInputs is everything a single saga invocation needs; it is
// consumed once to build a RunContext and never mutated afterward.
type RunInputs struct {
	Image              []byte
	UserText           string
	PreferredOfferURL  string
	IdempotencyKey     string
	Payment            *PaymentInput
	TokenBudgets       map[string]budget.Budget
	TokenPolicy        budget.Policy
	StageTimeouts      map[string]time.Duration
	Compensation       CompensationOverrides
	Flags              FeatureFlags

	// VendorBlacklist names vendors S5 admission step 2 rejects outright.
	VendorBlacklist []string
	// CheckoutMaxAmount overrides the default 5000 USD admission ceiling
	// when positive.
	CheckoutMaxAmount float64
	// MarketplaceDomainPrefix is the configured marketplace URL prefix
	// S4's domain cross-check expects every legitimate offer to carry;
	// empty disables the check.
	MarketplaceDomainPrefix string
}

// FeatureFlags gates the optional LLM paths.
type FeatureFlags struct {
	LLMIntent    bool // S2 LLM path
	LLMSourcing  bool // S3 rerank
	LLMTrust     bool // S4 trust.adjust
	LLMRefineS1  bool // S1 refinement
}

// RunContext is created once per saga invocation. Inputs are immutable;
// the event log, message log, and outputs set are mutable accumulators
// appended to as the saga progresses. A RunContext is never shared
// across concurrent saga runs, so its mutex only guards against
// concurrent appends from a single stage's internal fan-out (e.g. S3's
// two sourcing strategies).
type RunContext struct {
	RunID string
	Inputs RunInputs

	mu       sync.Mutex
	events   []StageEvent
	messages []InterAgentMessage

	Hypothesis *ProductHypothesis
	Intent     *PurchaseIntent
	Offers     []Offer
	BestOffer  *Offer
	Trust      *TrustAssessment
	Receipt    *Receipt
}

// NewRunContext constructs a fresh RunContext from RunInputs.
func NewRunContext(inputs RunInputs) *RunContext {
	return &RunContext{
		RunID:  id.New(),
		Inputs: inputs,
	}
}

// AppendEvent appends a StageEvent to the run's append-only event log.
// Safe for concurrent use by a single stage's internal fan-out.
func (rc *RunContext) AppendEvent(ev StageEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	rc.mu.Lock()
	rc.events = append(rc.events, ev)
	rc.mu.Unlock()
}

// AppendMessage appends an InterAgentMessage to the run's narration log.
func (rc *RunContext) AppendMessage(msg InterAgentMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	rc.mu.Lock()
	rc.messages = append(rc.messages, msg)
	rc.mu.Unlock()
}

// Events returns a copy of the event log in append order.
func (rc *RunContext) Events() []StageEvent {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	cp := make([]StageEvent, len(rc.events))
	copy(cp, rc.events)
	return cp
}

// Messages returns a copy of the narration log in append order.
func (rc *RunContext) Messages() []InterAgentMessage {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	cp := make([]InterAgentMessage, len(rc.messages))
	copy(cp, rc.messages)
	return cp
}

// Annotation builds an annotation map from alternating key, value
// arguments for a StageEvent. It panics on an odd number of arguments.
func Annotation(kvs ...string) map[string]string {
	if len(kvs)%2 != 0 {
		panic(fmt.Sprintf("saga: Annotation called with odd number of args: %d", len(kvs)))
	}
	m := make(map[string]string, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		m[kvs[i]] = kvs[i+1]
	}
	return m
}
