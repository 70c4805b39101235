package cli

import (
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/lonestarx1/purchasesaga/internal/runrecord"
)

func (a *App) runList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	limit := fs.Int("limit", 20, "maximum number of runs to show")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	ids, err := runrecord.List(".")
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}
	if len(ids) == 0 {
		a.outf("No runs found. Run 'pursue run' first.\n")
		return 0
	}
	if *limit > 0 && len(ids) > *limit {
		ids = ids[:*limit]
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN ID\tDURATION\tVENDOR\tRISK\tRECEIPT\tSTATUS")
	for _, id := range ids {
		rec, err := runrecord.Load(".", id)
		if err != nil {
			_, _ = fmt.Fprintf(w, "%s\t-\t-\t-\t-\terror loading\n", id)
			continue
		}
		vendor, risk, receipt, status := "-", "-", "-", "ok"
		if rec.Offer != nil {
			vendor = rec.Offer.Vendor
		}
		if rec.Trust != nil {
			risk = rec.Trust.Risk.String()
		}
		if rec.Receipt != nil {
			receipt = rec.Receipt.OrderID
		}
		if rec.Error != "" {
			status = "error"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			id, formatDuration(rec.Duration), vendor, risk, receipt, status)
	}
	_ = w.Flush()

	return 0
}
