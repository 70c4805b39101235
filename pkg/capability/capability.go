// Package capability assembles a saga.Providers bundle from whatever
// concrete implementations a deployment wants: the deterministic
// defaults in pkg/capability/deterministic, the LLM-backed variants in
// pkg/capability/llmbacked, and the storage/catalog collaborators in
// pkg/store and pkg/catalog. It is the single place that decides which
// capability backs which saga interface, so the orchestrator itself
// never imports a concrete provider package.
package capability

import "github.com/lonestarx1/purchasesaga/pkg/saga"

// Build returns a saga.Providers with every field from base applied
// first, then overridden field-by-field by any non-nil field in
// overrides. This lets a deployment start from a full deterministic
// bundle and layer in LLM-backed providers only for the stages its
// feature flags enable.
func Build(base, overrides saga.Providers) saga.Providers {
	out := base
	if overrides.Vision != nil {
		out.Vision = overrides.Vision
	}
	if overrides.VisionRefine != nil {
		out.VisionRefine = overrides.VisionRefine
	}
	if overrides.Intent != nil {
		out.Intent = overrides.Intent
	}
	if overrides.Catalog != nil {
		out.Catalog = overrides.Catalog
	}
	if overrides.Rerank != nil {
		out.Rerank = overrides.Rerank
	}
	if overrides.TrustAdjust != nil {
		out.TrustAdjust = overrides.TrustAdjust
	}
	if overrides.PriceRefs != nil {
		out.PriceRefs = overrides.PriceRefs
	}
	if overrides.VendorProfiles != nil {
		out.VendorProfiles = overrides.VendorProfiles
	}
	if overrides.Receipts != nil {
		out.Receipts = overrides.Receipts
	}
	if overrides.Velocity != nil {
		out.Velocity = overrides.Velocity
	}
	return out
}
