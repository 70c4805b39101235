package cli

import (
	"encoding/json"
	"flag"
	"fmt"

	"github.com/lonestarx1/purchasesaga/internal/runrecord"
)

// runEval prints the recognition/ranking accuracy summary across every
// persisted run, the same two self-consistency metrics the reference
// coordinator's evaluation report aggregates from its own run log —
// scoped here to the counters themselves, not the CSV/bootstrap
// confidence-interval reporting that script also produces (see
// DESIGN.md).
func (a *App) runEval(args []string) int {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	jsonOutput := fs.Bool("json", false, "output as JSON")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	summary, err := runrecord.Accuracy(".")
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	if *jsonOutput {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			a.errf("Error: %v\n", err)
			return 1
		}
		a.outf("%s\n", data)
		return 0
	}

	a.outf("Recognition accuracy: %s (%d/%d)\n",
		formatRatio(summary.RecognitionAccuracy()), summary.RecognitionHits, summary.RecognitionTotal)
	a.outf("Ranking accuracy:     %s (%d/%d)\n",
		formatRatio(summary.RankingAccuracy()), summary.RankingHits, summary.RankingTotal)
	return 0
}

func formatRatio(r *float64) string {
	if r == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *r*100)
}
