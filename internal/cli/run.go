package cli

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/lonestarx1/purchasesaga/internal/config"
	"github.com/lonestarx1/purchasesaga/internal/runrecord"
	"github.com/lonestarx1/purchasesaga/pkg/budget"
	"github.com/lonestarx1/purchasesaga/pkg/capability"
	"github.com/lonestarx1/purchasesaga/pkg/capability/deterministic"
	"github.com/lonestarx1/purchasesaga/pkg/capability/llmbacked"
	"github.com/lonestarx1/purchasesaga/pkg/catalog"
	"github.com/lonestarx1/purchasesaga/pkg/cost"
	"github.com/lonestarx1/purchasesaga/pkg/saga"
	"github.com/lonestarx1/purchasesaga/pkg/store"
	"github.com/lonestarx1/purchasesaga/pkg/trace"
	"github.com/lonestarx1/purchasesaga/pkg/trace/metrics"
)

// runRun drives the saga orchestrator end to end. full=true runs S1-S5
// (including checkout); full=false stops after S4 (the "preview"
// command), matching RunPreview/RunFull's split.
func (a *App) runRun(args []string, full bool) int {
	name := "run"
	if !full {
		name = "preview"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "saga.yaml", "path to saga.yaml")
	imagePath := fs.String("image", "", "path to the captured product image")
	userText := fs.String("text", "", "free-text purchase instruction")
	preferredURL := fs.String("preferred-url", "", "preferred offer URL, if re-confirming a prior choice")
	idempotencyKey := fs.String("idempotency-key", "", "idempotency key for checkout (run only)")
	cardNumber := fs.String("card-number", "", "payment card number (run only)")
	cardExpiry := fs.String("card-expiry", "", "payment card expiry, MM/YY (run only)")
	cardCVV := fs.String("card-cvv", "", "payment card CVV (run only)")
	timeout := fs.Duration("timeout", 0, "override the run's overall wall-clock budget")
	metricsOut := fs.Bool("metrics", false, "print Prometheus-format stage metrics to stderr after the run")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *imagePath == "" {
		a.errf("Error: -image is required\n")
		return 1
	}

	image, err := os.ReadFile(*imagePath)
	if err != nil {
		a.errf("Error: reading image: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	providers, tracker, err := a.buildProviders(ctx, cfg)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	inputs := saga.RunInputs{
		Image:                   image,
		UserText:                *userText,
		PreferredOfferURL:       *preferredURL,
		IdempotencyKey:          *idempotencyKey,
		TokenBudgets:            cfg.Run.TokenBudgets,
		TokenPolicy:             cfg.Run.TokenPolicy,
		StageTimeouts:           cfg.StageTimeoutsMap(),
		VendorBlacklist:         cfg.Run.VendorBlacklist,
		CheckoutMaxAmount:       cfg.Run.CheckoutMaxAmount,
		MarketplaceDomainPrefix: cfg.Run.MarketplaceDomainPrefix,
		Compensation: saga.CompensationOverrides{
			TopK:           cfg.Run.CompensationTopK,
			PriceWindowPct: cfg.Run.CompensationPriceWindowPct,
			ExtraLatencyMs: cfg.Run.CompensationExtraLatencyMs,
		},
		Flags: saga.FeatureFlags{
			LLMIntent:   cfg.Run.Flags.LLMIntent,
			LLMSourcing: cfg.Run.Flags.LLMSourcing,
			LLMTrust:    cfg.Run.Flags.LLMTrust,
			LLMRefineS1: cfg.Run.Flags.LLMRefineS1,
		},
	}
	if full {
		if *cardNumber == "" || *cardExpiry == "" || *cardCVV == "" {
			a.errf("Error: -card-number, -card-expiry, and -card-cvv are required for 'run' (use 'preview' to stop before checkout)\n")
			return 1
		}
		inputs.Payment = &saga.PaymentInput{
			CardNumber: *cardNumber,
			Expiry:     *cardExpiry,
			CVV:        *cardCVV,
		}
	}

	rc := saga.NewRunContext(inputs)
	budgeter := saga.NewBudgeter(rc)
	tracer := trace.NewInMemory()

	var reg *metrics.Registry
	var runTracer trace.Tracer = tracer
	if *metricsOut {
		reg = metrics.NewRegistry()
		runTracer = metrics.NewCollector(tracer, reg)
	}

	start := time.Now()
	var runErr error
	if full {
		runErr = saga.RunFull(ctx, rc, providers, budgeter, runTracer)
	} else {
		runErr = saga.RunPreview(ctx, rc, providers, budgeter, runTracer)
	}

	if reg != nil {
		a.errf("%s", reg.Export())
	}

	rec := runrecord.FromRunContext(rc, start, runErr, budgeter.Events(), tracker, tracer.Spans())
	if err := runrecord.Append(".", rec); err != nil {
		a.errf("Warning: failed to persist run record: %v\n", err)
	}

	if runErr != nil {
		a.errf("Error: %v\n", runErr)
		return 1
	}

	a.printRunSummary(rc)
	a.errf("\nRun ID: %s\n", rc.RunID)
	return 0
}

func (a *App) printRunSummary(rc *saga.RunContext) {
	if rc.Hypothesis != nil {
		a.outf("hypothesis: %s (brand=%q confidence=%.2f)\n", rc.Hypothesis.Label, rc.Hypothesis.Brand, rc.Hypothesis.Confidence)
	}
	if rc.Intent != nil {
		a.outf("intent: %s x%d\n", rc.Intent.ItemName, rc.Intent.Quantity)
	}
	if rc.BestOffer != nil {
		a.outf("offer: %s — %s — $%.2f\n", rc.BestOffer.Vendor, rc.BestOffer.Title, rc.BestOffer.PriceUSD)
	}
	if rc.Trust != nil {
		a.outf("trust: %s (%s)\n", rc.Trust.Vendor, rc.Trust.Risk)
	}
	if rc.Receipt != nil {
		a.outf("receipt: order %s, $%.2f on %s\n", rc.Receipt.OrderID, rc.Receipt.AmountUSD, rc.Receipt.MaskedCard)
	}
}

// buildProviders assembles a saga.Providers from the deterministic
// defaults, layering in LLM-backed variants for whichever feature
// flags cfg enables.
func (a *App) buildProviders(ctx context.Context, cfg *config.ProjectConfig) (saga.Providers, *cost.Tracker, error) {
	base := saga.Providers{
		Vision:         deterministic.NewVision(),
		Catalog:        catalog.New(catalog.StaticLoader(nil), catalog.DefaultTTL),
		PriceRefs:      catalog.NewPriceRefs(nil),
		VendorProfiles: catalog.NewVendorProfiles(nil),
		Receipts:       store.NewMemoryReceiptStore(),
		Velocity:       store.NewMemoryVelocityStore(),
	}

	anyLLM := cfg.Run.Flags.LLMIntent || cfg.Run.Flags.LLMSourcing || cfg.Run.Flags.LLMTrust || cfg.Run.Flags.LLMRefineS1
	tracker := cost.NewTracker()
	if !anyLLM {
		return base, tracker, nil
	}

	provider, err := a.providerFactory(ctx, cfg.Provider)
	if err != nil {
		return saga.Providers{}, nil, err
	}

	overrides := saga.Providers{}
	if cfg.Run.Flags.LLMIntent {
		overrides.Intent = llmbacked.NewIntent(provider, cfg.Model, tracker)
	}
	if cfg.Run.Flags.LLMSourcing {
		overrides.Rerank = llmbacked.NewRerank(provider, cfg.Model, tracker)
	}
	if cfg.Run.Flags.LLMTrust {
		overrides.TrustAdjust = llmbacked.NewTrustAdjust(provider, cfg.Model, tracker)
	}
	if cfg.Run.Flags.LLMRefineS1 {
		overrides.VisionRefine = llmbacked.NewVisionRefine(provider, cfg.Model, tracker)
	}

	return capability.Build(base, overrides), tracker, nil
}
