package deterministic

import (
	"context"
	"errors"
	"testing"

	"github.com/lonestarx1/purchasesaga/pkg/saga"
)

func TestVision_Detect_NoImageErrors(t *testing.T) {
	v := NewVision()
	_, err := v.Detect(context.Background(), nil)
	if !errors.Is(err, saga.ErrProviderError) {
		t.Fatalf("err = %v, want ErrProviderError", err)
	}
}

func TestVision_Detect_ReturnsLowConfidenceGenericHypothesis(t *testing.T) {
	v := NewVision()
	hyp, err := v.Detect(context.Background(), []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if hyp.Label != "object" {
		t.Errorf("Label = %q, want object", hyp.Label)
	}
	if hyp.Confidence != lowConfidence {
		t.Errorf("Confidence = %v, want %v", hyp.Confidence, lowConfidence)
	}
	if hyp.Brand != "" || hyp.Color != "" {
		t.Errorf("expected no brand/color guess, got %+v", hyp)
	}
}
