package catalog

import (
	"context"

	cache "github.com/patrickmn/go-cache"
	"github.com/lonestarx1/purchasesaga/pkg/saga"
)

// VendorProfiles is a saga.VendorProfileProvider over a fixed table of
// known vendors. Unknown vendors resolve to saga.DefaultVendorProfile
// at the Trust Evaluator, per its pessimistic-default rule; this
// provider only reports whether it has one on file.
type VendorProfiles struct {
	profiles map[string]saga.VendorProfile
	cache    *cache.Cache
}

// NewVendorProfiles builds a VendorProfiles from a vendor-name-keyed
// table.
func NewVendorProfiles(profiles map[string]saga.VendorProfile) *VendorProfiles {
	return &VendorProfiles{
		profiles: profiles,
		cache:    cache.New(DefaultTTL, 2*DefaultTTL),
	}
}

// Profile implements saga.VendorProfileProvider.
func (v *VendorProfiles) Profile(ctx context.Context, vendor string) (saga.VendorProfile, bool) {
	if cached, ok := v.cache.Get(vendor); ok {
		if p, ok := cached.(saga.VendorProfile); ok {
			return p, true
		}
	}
	p, ok := v.profiles[vendor]
	if !ok {
		return saga.VendorProfile{}, false
	}
	v.cache.SetDefault(vendor, p)
	return p, true
}

var _ saga.VendorProfileProvider = (*VendorProfiles)(nil)
