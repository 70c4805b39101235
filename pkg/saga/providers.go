package saga

import "context"

// CatalogItem is what the catalog provider returns: an unscored
// candidate the Sourcing Merger filters, scores, and ranks into an
// Offer. It shares Offer's shape since a catalog item only gains a
// Score once S3 evaluates it against an intent.
type CatalogItem = Offer

// VendorProfile is the rule-based input to the Trust Evaluator's
// additive scoring table (spec §4.6). Unknown vendors receive
// DefaultVendorProfile, which is deliberately pessimistic.
type VendorProfile struct {
	TLS              bool
	HasPolicyPages   bool
	DomainAgeDays    int
	HistoricalIssues bool
	HappyReviews     float64 // fraction in [0,1]
	ReturnsAccepted  bool
	RefundDays       int
}

// DefaultVendorProfile is used when no profile is on file for a
// vendor; every condition in the additive scoring table is assumed
// against the vendor.
var DefaultVendorProfile = VendorProfile{
	TLS:              false,
	HasPolicyPages:   false,
	DomainAgeDays:    0,
	HistoricalIssues: true,
	HappyReviews:     0,
	ReturnsAccepted:  false,
	RefundDays:       999,
}

// PriceStat is one bucket's robust statistics, as returned by the
// price-reference provider for a single metric (price, weight, or a
// dimension).
type PriceStat struct {
	Median float64
	Spread float64
}

// VisionProvider detects a ProductHypothesis from a captured image.
// S1 always delegates to this provider; it fails the saga hard only if
// the provider itself errors (a low-confidence default hypothesis is a
// valid, non-error response).
type VisionProvider interface {
	Detect(ctx context.Context, image []byte) (ProductHypothesis, error)
}

// VisionRefineProvider optionally refines an initial hypothesis with a
// second, LLM-backed pass, gated by FeatureFlags.LLMRefineS1.
type VisionRefineProvider interface {
	Refine(ctx context.Context, image []byte, hyp ProductHypothesis) (ProductHypothesis, error)
}

// IntentProvider is S2's optional LLM path; on any error S2 falls back
// to the deterministic grammar.
type IntentProvider interface {
	Extract(ctx context.Context, hyp ProductHypothesis, userText string) (PurchaseIntent, error)
}

// CatalogProvider loads the pool of items S3's strict and fuzzy
// strategies filter and score.
type CatalogProvider interface {
	Load(ctx context.Context) ([]CatalogItem, error)
}

// RerankProvider is S3's optional LLM rerank path. It returns a
// permutation of indices into the offers slice it was given; missing
// indices are appended in original order by the caller, and duplicate
// indices resolve to their first occurrence (see DESIGN.md's Open
// Question decisions).
type RerankProvider interface {
	Rerank(ctx context.Context, intent PurchaseIntent, offers []Offer) ([]int, error)
}

// TrustAdjustProvider is S4's optional LLM path, applied after the
// rule-based and anomaly scoring to further adjust an assessment.
type TrustAdjustProvider interface {
	Adjust(ctx context.Context, offer Offer, assessment TrustAssessment, profile VendorProfile) (TrustAssessment, error)
}

// PriceRefProvider looks up robust per-metric statistics for a
// (brand, category) bucket, used by S4's anomaly enrichment.
type PriceRefProvider interface {
	Lookup(ctx context.Context, brand, category string) (map[string]PriceStat, error)
}

// VendorProfileProvider looks up the rule-based profile for a vendor,
// returning DefaultVendorProfile (and ok=false) for unknown vendors.
type VendorProfileProvider interface {
	Profile(ctx context.Context, vendor string) (profile VendorProfile, ok bool)
}

// ReceiptStore backs S5's idempotency guarantee: a second checkout
// call carrying the same idempotency key returns the first call's
// Receipt unchanged instead of charging again.
type ReceiptStore interface {
	Get(ctx context.Context, idempotencyKey string) (Receipt, bool, error)
	Put(ctx context.Context, idempotencyKey string, r Receipt) error
}

// VelocityStore tracks failed admission attempts per card fingerprint
// for S5's velocity gate.
type VelocityStore interface {
	Attempts(ctx context.Context, cardFingerprint string) (int, error)
	IncrementFailure(ctx context.Context, cardFingerprint string) error
	Reset(ctx context.Context, cardFingerprint string) error
}

// Providers bundles every capability the orchestrator depends on. Only
// Vision, Catalog, and VendorProfiles are required; the rest may be
// nil and are gated by FeatureFlags or degrade to permissive defaults.
type Providers struct {
	Vision         VisionProvider
	VisionRefine   VisionRefineProvider
	Intent         IntentProvider
	Catalog        CatalogProvider
	Rerank         RerankProvider
	TrustAdjust    TrustAdjustProvider
	PriceRefs      PriceRefProvider
	VendorProfiles VendorProfileProvider
	Receipts       ReceiptStore
	Velocity       VelocityStore
}
