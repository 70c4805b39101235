package cli

import (
	"flag"
	"os"
	"path/filepath"
	"text/template"
)

// sagaYAMLTemplate is the starter config rendered by "pursue init". It
// carries every RunConfig field so a new project shows the full shape
// of what can be tuned, with the component defaults left in effect via
// zero values and comments.
const sagaYAMLTemplate = `version: "1"

# Provider/model back the optional LLM capability paths gated by
# run.flags below. Leave unset if no llm_* flag is enabled.
provider: ""
model: ""

run:
  # token_budgets maps stage name (S1..S5) to its estimated and capped
  # token allowance. Omit a stage to take the component default.
  token_budgets: {}

  # token_policy controls what happens when a stage's estimate exceeds
  # its cap: warn, truncate, fallback, or block. Empty means truncate.
  token_policy: ""

  # stage_timeouts overrides the per-stage wall-clock cap, e.g. "30s".
  stage_timeouts: {}

  compensation_top_k: 0
  compensation_price_window_pct: 0
  compensation_extra_latency_ms: 0

  # checkout_max_amount overrides the default 5000 USD admission
  # ceiling when positive.
  checkout_max_amount: 0

  vendor_blacklist: []

  # marketplace_domain_prefix is the URL prefix every legitimate offer
  # is expected to carry. Empty disables the cross-check.
  marketplace_domain_prefix: ""

  flags:
    llm_intent: false
    llm_sourcing: false
    llm_trust: false
    llm_refine_s1: false
`

func (a *App) runInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(a.stderr)

	if err := fs.Parse(args); err != nil {
		return 1
	}

	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			a.errf("Error: %v\n", err)
			return 1
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}
	// Allow if only hidden files exist.
	for _, e := range entries {
		if e.Name()[0] != '.' {
			a.errf("Error: directory %q is not empty\n", dir)
			return 1
		}
	}

	t, err := template.New("saga.yaml").Parse(sagaYAMLTemplate)
	if err != nil {
		a.errf("Error: parsing template: %v\n", err)
		return 1
	}

	path := filepath.Join(dir, "saga.yaml")
	out, err := os.Create(path)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}
	if err := t.Execute(out, nil); err != nil {
		_ = out.Close()
		a.errf("Error: rendering saga.yaml: %v\n", err)
		return 1
	}
	_ = out.Close()

	a.outf("Created saga.yaml in %s\n", dir)
	a.outf("\nNext steps:\n")
	a.outf("  edit %s to set a catalog source and, if you want LLM-backed\n", path)
	a.outf("  sourcing/trust/intent passes, a provider, model, and flags\n")
	a.outf("  export OPENAI_API_KEY=sk-...  # or ANTHROPIC_API_KEY / GEMINI_API_KEY\n")
	a.outf("  pursue preview -image product.jpg -text \"buy this\"\n")

	return 0
}
