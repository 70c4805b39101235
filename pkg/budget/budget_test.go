package budget

import "testing"

func TestEnforceBeforeCall(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		used   int
		cap    int
		plan   int
		want   Decision
	}{
		{"fits", PolicyTruncate, 0, 100, 50, DecisionOK},
		{"exact fit", PolicyTruncate, 50, 100, 50, DecisionOK},
		{"over truncate", PolicyTruncate, 90, 100, 50, DecisionTruncate},
		{"over fallback", PolicyFallback, 90, 100, 50, DecisionFallback},
		{"over block", PolicyBlock, 90, 100, 50, DecisionBlock},
		{"over warn", PolicyWarn, 90, 100, 50, DecisionOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("run1", map[string]Budget{"S3": {Cap: tt.cap}}, tt.policy)
			b.used["S3"] = tt.used
			got := b.EnforceBeforeCall("S3", tt.plan)
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestChargeNeverExceedsCap(t *testing.T) {
	b := New("run1", map[string]Budget{"S3": {Cap: 100}}, PolicyTruncate)
	b.Charge("S3", "openai", "gpt-4o", "prompt", 40)
	b.Charge("S3", "openai", "gpt-4o", "completion", 40)
	ev := b.Charge("S3", "openai", "gpt-4o", "completion", 40)

	if !ev.OverBudget {
		t.Fatal("expected third charge to be flagged over budget")
	}
	if b.used["S3"] != 100 {
		t.Fatalf("used = %d, want capped at 100", b.used["S3"])
	}
}

func TestRemaining(t *testing.T) {
	b := New("run1", map[string]Budget{"S1": {Cap: 800}}, PolicyTruncate)
	if r := b.Remaining("S1"); r != 800 {
		t.Fatalf("remaining = %d, want 800", r)
	}
	b.Charge("S1", "anthropic", "claude", "prompt", 300)
	if r := b.Remaining("S1"); r != 500 {
		t.Fatalf("remaining = %d, want 500", r)
	}
}

func TestTruncatedMaxTokens(t *testing.T) {
	b := New("run1", map[string]Budget{"S2": {Cap: 1000}}, PolicyTruncate)
	b.Charge("S2", "openai", "gpt-4o", "prompt", 700)
	got := b.TruncatedMaxTokens("S2", 200)
	want := 1000 - 700 - 200 - DefaultSafetyMargin
	if got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestEventsOrderedByChargeSequence(t *testing.T) {
	b := New("run1", map[string]Budget{"S4": {Cap: 1200}}, PolicyTruncate)
	b.Charge("S4", "anthropic", "claude", "prompt", 100)
	b.Charge("S4", "anthropic", "claude", "completion", 50)
	evs := b.Events()
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if evs[0].Role != "prompt" || evs[1].Role != "completion" {
		t.Fatalf("events out of order: %+v", evs)
	}
}

func TestCountTokens(t *testing.T) {
	if n := CountTokens("gpt-4o", ""); n != 1 {
		t.Fatalf("empty text should floor to 1 (max(1, len/4)), got %d", n)
	}
	if n := CountTokens("gpt-4o", "hi"); n != 1 {
		t.Fatalf("short text should floor to 1, got %d", n)
	}
	if n := CountTokens("claude-sonnet-4-5", "a very much longer piece of text indeed"); n != len("a very much longer piece of text indeed")/4 {
		t.Fatalf("unexpected token count %d", n)
	}
}
