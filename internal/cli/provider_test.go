package cli

import (
	"context"
	"os"
	"testing"
)

func TestDefaultProviderFactory_UnknownProviderErrors(t *testing.T) {
	_, err := defaultProviderFactory(context.Background(), "does-not-exist")
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestDefaultProviderFactory_MissingAPIKeyErrors(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("OPENAI_API_KEY")

	_, err := defaultProviderFactory(context.Background(), "openai")
	if err == nil {
		t.Fatal("expected error when API key env var is unset")
	}
}

func TestDefaultProviderFactory_OpenAIConstructsWithAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	provider, err := defaultProviderFactory(context.Background(), "openai")
	if err != nil {
		t.Fatalf("defaultProviderFactory: %v", err)
	}
	if provider == nil {
		t.Fatal("expected non-nil provider")
	}
}

func TestDefaultProviderFactory_AnthropicConstructsWithAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	provider, err := defaultProviderFactory(context.Background(), "anthropic")
	if err != nil {
		t.Fatalf("defaultProviderFactory: %v", err)
	}
	if provider == nil {
		t.Fatal("expected non-nil provider")
	}
}
