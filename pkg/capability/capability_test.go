package capability

import (
	"context"
	"testing"

	"github.com/lonestarx1/purchasesaga/pkg/saga"
)

type stubVision struct{ name string }

func (s stubVision) Detect(ctx context.Context, image []byte) (saga.ProductHypothesis, error) {
	return saga.ProductHypothesis{Label: s.name}, nil
}

type stubIntent struct{}

func (stubIntent) Extract(ctx context.Context, hyp saga.ProductHypothesis, userText string) (saga.PurchaseIntent, error) {
	return saga.PurchaseIntent{}, nil
}

func TestBuild_OverrideReplacesBaseField(t *testing.T) {
	base := saga.Providers{Vision: stubVision{name: "base"}}
	overrides := saga.Providers{Vision: stubVision{name: "override"}}

	out := Build(base, overrides)
	got, err := out.Vision.Detect(context.Background(), []byte("x"))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got.Label != "override" {
		t.Errorf("Label = %q, want override", got.Label)
	}
}

func TestBuild_NilOverrideFieldKeepsBase(t *testing.T) {
	base := saga.Providers{Vision: stubVision{name: "base"}, Intent: stubIntent{}}
	overrides := saga.Providers{} // every field nil

	out := Build(base, overrides)
	if out.Vision == nil {
		t.Fatal("expected base Vision to survive an empty override")
	}
	got, _ := out.Vision.Detect(context.Background(), []byte("x"))
	if got.Label != "base" {
		t.Errorf("Label = %q, want base", got.Label)
	}
	if out.Intent == nil {
		t.Error("expected base Intent to survive an empty override")
	}
}

func TestBuild_PartialOverrideOnlyTouchesSetFields(t *testing.T) {
	base := saga.Providers{Vision: stubVision{name: "base"}, Intent: stubIntent{}}
	overrides := saga.Providers{Intent: stubIntent{}}

	out := Build(base, overrides)
	if out.Vision == nil {
		t.Error("Vision should be untouched by an override that only sets Intent")
	}
	if out.Intent == nil {
		t.Error("Intent should reflect the override")
	}
}
