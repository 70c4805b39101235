package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lonestarx1/purchasesaga/internal/runrecord"
	"github.com/lonestarx1/purchasesaga/pkg/saga"
)

func TestRunList_NoRuns(t *testing.T) {
	dir := t.TempDir()
	orig, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(orig) }()

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runList(nil)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "No runs found") {
		t.Error("expected no-runs message")
	}
}

func TestRunList_ShowsPersistedRuns(t *testing.T) {
	dir := t.TempDir()
	orig, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(orig) }()

	rec := &runrecord.Record{
		Type:      "run",
		RunID:     "run-0001",
		StartTime: time.Now(),
		Offer:     &saga.Offer{Vendor: "acme-store", Title: "Widget"},
		Trust:     &saga.TrustAssessment{Vendor: "acme-store", Risk: saga.RiskLow},
		Receipt:   &saga.Receipt{OrderID: "ord-123"},
	}
	if err := runrecord.Append(".", rec); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runList(nil)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{"RUN ID", "run-0001", "acme-store", "low", "ord-123"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got: %s", want, out)
		}
	}
}

func TestRunList_RespectsLimit(t *testing.T) {
	dir := t.TempDir()
	orig, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(orig) }()

	for i := 0; i < 3; i++ {
		rec := &runrecord.Record{
			Type:      "run",
			RunID:     fmt.Sprintf("run-%04d", i+1),
			StartTime: time.Now(),
		}
		if err := runrecord.Append(".", rec); err != nil {
			t.Fatal(err)
		}
	}

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runList([]string{"-limit", "1"})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr.String())
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	// Header line + exactly one data row.
	if len(lines) != 2 {
		t.Errorf("expected 2 lines (header + 1 row), got %d: %q", len(lines), stdout.String())
	}
}
