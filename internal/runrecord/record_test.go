package runrecord

import (
	"testing"
	"time"

	"github.com/lonestarx1/purchasesaga/pkg/cost"
	"github.com/lonestarx1/purchasesaga/pkg/llm"
	"github.com/lonestarx1/purchasesaga/pkg/saga"
)

func TestAppendAndLoad(t *testing.T) {
	dir := t.TempDir()

	hyp := saga.ProductHypothesis{Label: "sneaker", Confidence: 0.9}
	intent := saga.PurchaseIntent{ItemName: "sneaker", Quantity: 1}
	offer := saga.Offer{Vendor: "shopfast", PriceUSD: 79.99, URL: "https://shopfast.test/sneaker"}

	rec := &Record{
		RunID:      "019479a3c4e80001",
		Hypothesis: &hyp,
		Intent:     &intent,
		Offers:     []saga.Offer{offer},
		Offer:      &offer,
		Log: []saga.StageEvent{
			{Stage: "S1_CAPTURE", DtSeconds: 0.1, OK: true},
		},
		CostUSD: 0.001,
		CostRecords: []cost.Record{
			{Model: "claude-sonnet-4-5-20250929", Usage: llm.Usage{PromptTokens: 100}, Cost: 0.001},
		},
		StartTime: time.Now().Truncate(time.Millisecond),
		Duration:  2 * time.Second,
	}

	if err := Append(dir, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := Load(dir, rec.RunID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.RunID != rec.RunID {
		t.Errorf("RunID = %q, want %q", loaded.RunID, rec.RunID)
	}
	if loaded.Hypothesis == nil || loaded.Hypothesis.Label != hyp.Label {
		t.Errorf("Hypothesis = %+v, want %+v", loaded.Hypothesis, hyp)
	}
	if loaded.Offer == nil || loaded.Offer.Vendor != offer.Vendor {
		t.Errorf("Offer = %+v, want %+v", loaded.Offer, offer)
	}
	if len(loaded.Log) != 1 {
		t.Errorf("Log len = %d, want 1", len(loaded.Log))
	}
	if loaded.CostUSD != rec.CostUSD {
		t.Errorf("CostUSD = %f, want %f", loaded.CostUSD, rec.CostUSD)
	}
	if len(loaded.CostRecords) != 1 {
		t.Errorf("CostRecords len = %d, want 1", len(loaded.CostRecords))
	}
}

func TestAppend_MissingID(t *testing.T) {
	dir := t.TempDir()
	rec := &Record{}

	err := Append(dir, rec)
	if err == nil {
		t.Fatal("expected error for missing run ID")
	}
}

func TestLoad_NotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir, "nonexistent")
	if err == nil {
		t.Fatal("expected error for missing record")
	}
}

func TestAppend_AutoCreateDir(t *testing.T) {
	dir := t.TempDir()
	rec := &Record{RunID: "test-run-001"}

	if err := Append(dir, rec); err != nil {
		t.Fatalf("Append should auto-create .purchasesaga/runs: %v", err)
	}

	loaded, err := Load(dir, "test-run-001")
	if err != nil {
		t.Fatalf("Load after auto-create: %v", err)
	}
	if loaded.RunID != "test-run-001" {
		t.Errorf("RunID = %q, want %q", loaded.RunID, "test-run-001")
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()

	ids, err := List(dir)
	if err != nil {
		t.Fatalf("List empty: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty list, got %d items", len(ids))
	}

	records := []*Record{
		{RunID: "aaa"},
		{RunID: "ccc"},
		{RunID: "bbb"},
	}
	for _, rec := range records {
		if err := Append(dir, rec); err != nil {
			t.Fatalf("Append %s: %v", rec.RunID, err)
		}
	}

	ids, err = List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}
	if ids[0] != "ccc" || ids[1] != "bbb" || ids[2] != "aaa" {
		t.Errorf("expected [ccc bbb aaa], got %v", ids)
	}
}

func TestAppendAndLoad_WithError(t *testing.T) {
	dir := t.TempDir()
	rec := &Record{
		RunID: "error-run",
		Error: "something went wrong",
	}

	if err := Append(dir, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := Load(dir, "error-run")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Error != "something went wrong" {
		t.Errorf("Error = %q, want %q", loaded.Error, "something went wrong")
	}
}

func TestQuery(t *testing.T) {
	dir := t.TempDir()
	hyp := saga.ProductHypothesis{Label: "sneaker"}
	trust := saga.TrustAssessment{Vendor: "shopfast", Risk: saga.RiskMedium}
	rec := &Record{RunID: "query-run", Hypothesis: &hyp, Trust: &trust}
	if err := Append(dir, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	result, err := Query(dir, "query-run", "trust.risk")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.String() != "medium" {
		t.Errorf("trust.risk = %q, want %q", result.String(), "medium")
	}
}
