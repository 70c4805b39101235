package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lonestarx1/purchasesaga/pkg/llm"
)

// mockProvider returns a canned response for testing.
type mockProvider struct {
	response string
}

func (m *mockProvider) Complete(_ context.Context, params llm.Params) (*llm.Response, error) {
	return &llm.Response{
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: m.response,
		},
		Usage: llm.Usage{
			PromptTokens:     10,
			CompletionTokens: 5,
			TotalTokens:      15,
		},
		Model: params.Model,
	}, nil
}

func newMockFactory(resp string) ProviderFactory {
	return func(_ context.Context, _ string) (llm.Provider, error) {
		return &mockProvider{response: resp}, nil
	}
}

func newFailingFactory(msg string) ProviderFactory {
	return func(_ context.Context, _ string) (llm.Provider, error) {
		return nil, fmt.Errorf("%s", msg)
	}
}

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	yaml := `version: "1"
run:
  flags:
    llm_intent: false
    llm_sourcing: false
    llm_trust: false
    llm_refine_s1: false
`
	path := filepath.Join(dir, "saga.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeTestImage(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "product.jpg")
	if err := os.WriteFile(path, []byte("fake-jpeg-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunRun_PreviewSoftFailsWithEmptyCatalog(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)
	imagePath := writeTestImage(t, dir)

	orig, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(orig) }()

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runRun([]string{"-config", configPath, "-image", imagePath, "-text", "buy a widget"}, false)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "Run ID:") {
		t.Errorf("expected run ID in stderr, got: %s", stderr.String())
	}

	entries, err := os.ReadDir(filepath.Join(dir, ".purchasesaga", "runs"))
	if err != nil {
		t.Fatalf("failed to read runs dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 runs file, got %d", len(entries))
	}
}

func TestRunRun_MetricsFlagPrintsExport(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)
	imagePath := writeTestImage(t, dir)

	orig, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(orig) }()

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runRun([]string{"-config", configPath, "-image", imagePath, "-text", "buy a widget", "-metrics"}, false)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "saga_stage_runs_total") {
		t.Errorf("expected Prometheus metrics export in stderr, got: %s", stderr.String())
	}
}

func TestRunRun_MissingImage(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runRun([]string{"-config", configPath}, false)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "-image is required") {
		t.Errorf("expected image required error, got: %s", stderr.String())
	}
}

func TestRunRun_FullRequiresPayment(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)
	imagePath := writeTestImage(t, dir)

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runRun([]string{"-config", configPath, "-image", imagePath}, true)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "card-number") {
		t.Errorf("expected card fields required error, got: %s", stderr.String())
	}
}

func TestRunRun_BadConfigPath(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeTestImage(t, dir)

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runRun([]string{"-config", filepath.Join(dir, "missing.yaml"), "-image", imagePath}, false)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestRunRun_PreviewWithLLMIntent(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeTestImage(t, dir)
	yaml := `version: "1"
provider: openai
model: test-model
run:
  flags:
    llm_intent: true
`
	configPath := filepath.Join(dir, "saga.yaml")
	if err := os.WriteFile(configPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	orig, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(orig) }()

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)
	app.SetProviderFactory(newMockFactory(`{"item_name":"red sneakers","quantity":1}`))

	code := app.runRun([]string{"-config", configPath, "-image", imagePath, "-text", "buy red sneakers"}, false)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "red sneakers") {
		t.Errorf("expected intent item name in stdout, got: %s", stdout.String())
	}
}

func TestRunRun_LLMProviderFailureIsReported(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeTestImage(t, dir)
	yaml := `version: "1"
provider: openai
model: test-model
run:
  flags:
    llm_intent: true
`
	configPath := filepath.Join(dir, "saga.yaml")
	if err := os.WriteFile(configPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)
	app.SetProviderFactory(newFailingFactory("OPENAI_API_KEY is not set"))

	code := app.runRun([]string{"-config", configPath, "-image", imagePath}, false)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "API_KEY") {
		t.Errorf("expected API key error, got: %s", stderr.String())
	}
}
