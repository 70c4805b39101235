// Package llmbacked provides the optional LLM-backed capability
// variants, each wrapping an llm.Provider with a single structured
// completion call — the same single-turn system+user pattern used for
// a non-tool-calling turn, minus any tool dispatch since none of these
// calls offer tools.
package llmbacked

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lonestarx1/purchasesaga/pkg/cost"
	"github.com/lonestarx1/purchasesaga/pkg/llm"
)

// defaultMaxTokens bounds every completion's response length; callers
// that need more should configure a larger model-specific provider.
const defaultMaxTokens = 512

// complete sends a single system+user turn and returns the raw
// response content, the caller's responsibility to parse. When tracker
// is non-nil, the completion's token usage is charged against it under
// entity, so a run's final cost report reflects every real LLM call
// the capability layer made.
func complete(ctx context.Context, provider llm.Provider, model, system, user string, tracker *cost.Tracker, entity string) (string, error) {
	if provider == nil {
		return "", fmt.Errorf("llmbacked: no provider configured")
	}
	resp, err := provider.Complete(ctx, llm.Params{
		Model: model,
		Messages: []llm.Message{
			llm.NewSystemMessage(system),
			llm.NewUserMessage(user),
		},
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llmbacked: complete: %w", err)
	}
	if tracker != nil {
		tracker.AddForEntity(model, entity, resp.Usage)
	}
	return resp.Message.Content, nil
}

// decodeJSON unmarshals an LLM completion's content into v, trying the
// raw content first and falling back to the first `{...}` or `[...]`
// span found, since providers occasionally wrap JSON in prose or code
// fences despite instructions not to.
func decodeJSON(content string, v interface{}) error {
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}
	start := -1
	for i, c := range content {
		if c == '{' || c == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return fmt.Errorf("llmbacked: no JSON found in response")
	}
	end := len(content)
	for i := len(content) - 1; i > start; i-- {
		if content[i] == '}' || content[i] == ']' {
			end = i + 1
			break
		}
	}
	return json.Unmarshal([]byte(content[start:end]), v)
}
