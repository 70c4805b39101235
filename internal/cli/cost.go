package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/lonestarx1/purchasesaga/internal/runrecord"
	"github.com/lonestarx1/purchasesaga/pkg/llm"
)

func (a *App) runCost(args []string) int {
	fs := flag.NewFlagSet("cost", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	jsonOutput := fs.Bool("json", false, "output as JSON")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	// No run-id: list all runs with cost.
	if fs.NArg() == 0 {
		return a.listRunCosts(*jsonOutput)
	}

	runID := fs.Arg(0)
	rec, err := runrecord.Load(".", runID)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	if *jsonOutput {
		return a.costJSON(rec)
	}

	a.renderCostTable(rec)
	return 0
}

func (a *App) listRunCosts(jsonOut bool) int {
	ids, err := runrecord.List(".")
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}
	if len(ids) == 0 {
		a.outf("No runs found. Run 'pursue run' first.\n")
		return 0
	}

	type runSummary struct {
		RunID string  `json:"run_id"`
		Cost  float64 `json:"cost_usd"`
	}

	var summaries []runSummary
	for _, id := range ids {
		rec, err := runrecord.Load(".", id)
		if err != nil {
			continue
		}
		summaries = append(summaries, runSummary{RunID: rec.RunID, Cost: rec.CostUSD})
	}

	if jsonOut {
		data, _ := json.MarshalIndent(summaries, "", "  ")
		a.outf("%s\n", data)
		return 0
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN ID\tCOST")
	for _, s := range summaries {
		_, _ = fmt.Fprintf(w, "%s\t$%.6f\n", s.RunID, s.Cost)
	}
	_ = w.Flush()
	return 0
}

type modelCost struct {
	Model string    `json:"model"`
	Calls int       `json:"calls"`
	Usage llm.Usage `json:"usage"`
	Cost  float64   `json:"cost"`
}

// stageTokens summarizes one stage's token spend from the budget
// event log, independent of the dollar-cost breakdown above — the two
// trackers the engine runs side by side.
type stageTokens struct {
	Stage      string `json:"stage"`
	Charges    int    `json:"charges"`
	Tokens     int    `json:"tokens"`
	OverBudget int    `json:"over_budget_count"`
}

func (a *App) costJSON(rec *runrecord.Record) int {
	out := struct {
		Models []modelCost   `json:"models"`
		Stages []stageTokens `json:"stages"`
	}{
		Models: aggregateByModel(rec),
		Stages: aggregateByStage(rec),
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}
	a.outf("%s\n", data)
	return 0
}

func (a *App) renderCostTable(rec *runrecord.Record) {
	a.outf("Run: %s\n\n", rec.RunID)

	models := aggregateByModel(rec)

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MODEL\tCALLS\tPROMPT\tCOMPLETION\tCOST")

	var totalCalls int
	var totalPrompt, totalCompletion int
	var totalCost float64
	for _, m := range models {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t$%.6f\n",
			m.Model, m.Calls, m.Usage.PromptTokens, m.Usage.CompletionTokens, m.Cost)
		totalCalls += m.Calls
		totalPrompt += m.Usage.PromptTokens
		totalCompletion += m.Usage.CompletionTokens
		totalCost += m.Cost
	}

	_, _ = fmt.Fprintln(w, strings.Repeat("─", 60)+"\t\t\t\t")
	_, _ = fmt.Fprintf(w, "TOTAL\t%d\t%d\t%d\t$%.6f\n",
		totalCalls, totalPrompt, totalCompletion, totalCost)
	_ = w.Flush()

	stages := aggregateByStage(rec)
	if len(stages) == 0 {
		return
	}
	a.outf("\nToken budget by stage:\n")
	sw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(sw, "STAGE\tCHARGES\tTOKENS\tOVER BUDGET")
	for _, s := range stages {
		_, _ = fmt.Fprintf(sw, "%s\t%d\t%d\t%d\n", s.Stage, s.Charges, s.Tokens, s.OverBudget)
	}
	_ = sw.Flush()
}

func aggregateByModel(rec *runrecord.Record) []modelCost {
	byModel := make(map[string]*modelCost)

	for _, cr := range rec.CostRecords {
		mc, ok := byModel[cr.Model]
		if !ok {
			mc = &modelCost{Model: cr.Model}
			byModel[cr.Model] = mc
		}
		mc.Calls++
		mc.Usage.PromptTokens += cr.Usage.PromptTokens
		mc.Usage.CompletionTokens += cr.Usage.CompletionTokens
		mc.Usage.TotalTokens += cr.Usage.TotalTokens
		mc.Cost += cr.Cost
	}

	names := make([]string, 0, len(byModel))
	for name := range byModel {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]modelCost, 0, len(names))
	for _, name := range names {
		result = append(result, *byModel[name])
	}
	return result
}

func aggregateByStage(rec *runrecord.Record) []stageTokens {
	byStage := make(map[string]*stageTokens)
	for _, ev := range rec.Tokens {
		st, ok := byStage[ev.Stage]
		if !ok {
			st = &stageTokens{Stage: ev.Stage}
			byStage[ev.Stage] = st
		}
		st.Charges++
		st.Tokens += ev.NTokens
		if ev.OverBudget {
			st.OverBudget++
		}
	}

	names := make([]string, 0, len(byStage))
	for name := range byStage {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]stageTokens, 0, len(names))
	for _, name := range names {
		result = append(result, *byStage[name])
	}
	return result
}
