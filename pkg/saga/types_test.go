package saga

import (
	"encoding/json"
	"testing"
)

func TestRaiseRisk(t *testing.T) {
	tests := []struct {
		current, target, want Risk
	}{
		{RiskLow, RiskLow, RiskLow},
		{RiskLow, RiskMedium, RiskMedium},
		{RiskMedium, RiskLow, RiskMedium},
		{RiskMedium, RiskHigh, RiskHigh},
		{RiskHigh, RiskLow, RiskHigh},
	}
	for _, tt := range tests {
		if got := RaiseRisk(tt.current, tt.target); got != tt.want {
			t.Errorf("RaiseRisk(%v, %v) = %v, want %v", tt.current, tt.target, got, tt.want)
		}
	}
}

func TestRiskJSONRoundTrip(t *testing.T) {
	for _, r := range []Risk{RiskLow, RiskMedium, RiskHigh} {
		data, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", r, err)
		}
		want := `"` + r.String() + `"`
		if string(data) != want {
			t.Errorf("Marshal(%v) = %s, want %s", r, data, want)
		}

		var got Risk
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if got != r {
			t.Errorf("round-trip %v produced %v", r, got)
		}
	}
}

func TestRiskUnmarshal_Invalid(t *testing.T) {
	var r Risk
	if err := json.Unmarshal([]byte(`"catastrophic"`), &r); err == nil {
		t.Error("expected error for invalid risk band")
	}
}

func TestRiskJSON_EmbeddedInStruct(t *testing.T) {
	ta := TrustAssessment{Vendor: "acme", Risk: RiskMedium}
	data, err := json.Marshal(ta)
	if err != nil {
		t.Fatal(err)
	}
	if !containsSubstring(string(data), `"risk":"medium"`) {
		t.Errorf("expected risk field as string, got: %s", data)
	}

	var back TrustAssessment
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Risk != RiskMedium {
		t.Errorf("Risk = %v, want medium", back.Risk)
	}
}

func containsSubstring(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"HTTPS://Example.com/Item/", "https://example.com/item"},
		{"  https://example.com/item  ", "https://example.com/item"},
		{"https://example.com/item", "https://example.com/item"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOffer_NormalizedURL(t *testing.T) {
	o := Offer{URL: "HTTPS://Vendor.example/Widget/"}
	if got, want := o.NormalizedURL(), "https://vendor.example/widget"; got != want {
		t.Errorf("NormalizedURL() = %q, want %q", got, want)
	}
}

func TestRunContext_AppendAndReadEvents(t *testing.T) {
	rc := NewRunContext(RunInputs{})
	if rc.RunID == "" {
		t.Fatal("expected non-empty RunID")
	}

	rc.AppendEvent(StageEvent{Stage: StageCapture, OK: true})
	rc.AppendEvent(StageEvent{Stage: StageIntent, OK: false, Annotations: Annotation("reason", "no_match")})

	events := rc.Events()
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Stage != StageCapture || !events[0].OK {
		t.Errorf("events[0] = %+v, want ok capture event", events[0])
	}
	if events[1].Annotations["reason"] != "no_match" {
		t.Errorf("events[1] annotations = %+v", events[1].Annotations)
	}
	for _, ev := range events {
		if ev.Timestamp.IsZero() {
			t.Error("expected timestamp to be auto-populated")
		}
	}

	// Events() must return a copy, not a live slice.
	events[0].OK = false
	if rc.Events()[0].OK != true {
		t.Error("Events() leaked internal slice")
	}
}

func TestRunContext_AppendAndReadMessages(t *testing.T) {
	rc := NewRunContext(RunInputs{})
	rc.AppendMessage(InterAgentMessage{Stage: StageSourcing, Sender: "strict", Recipient: "merger", Content: "3 offers found"})

	msgs := rc.Messages()
	if len(msgs) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(msgs))
	}
	if msgs[0].Content != "3 offers found" {
		t.Errorf("Content = %q", msgs[0].Content)
	}
	if msgs[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be auto-populated")
	}
}

func TestAnnotation(t *testing.T) {
	m := Annotation("a", "1", "b", "2")
	if m["a"] != "1" || m["b"] != "2" {
		t.Errorf("Annotation = %+v", m)
	}
	if len(m) != 2 {
		t.Errorf("len(m) = %d, want 2", len(m))
	}
}

func TestAnnotation_OddArgsPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for odd number of args")
		}
	}()
	Annotation("a", "1", "b")
}
