// Package runrecord handles persistence of completed purchase-saga
// runs. Records are stored as append-only JSON-lines files under
// .purchasesaga/runs/, one line per completed run, matching the
// persisted state layout the orchestration engine specifies.
package runrecord

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lonestarx1/purchasesaga/pkg/budget"
	"github.com/lonestarx1/purchasesaga/pkg/cost"
	"github.com/lonestarx1/purchasesaga/pkg/saga"
	"github.com/lonestarx1/purchasesaga/pkg/trace"
)

const runsDir = ".purchasesaga/runs"
const runsFile = "runs.jsonl"

// Record captures the complete result of a single saga run: every
// field the output payload specifies, plus the cost/trace bookkeeping
// the CLI's inspection commands read.
type Record struct {
	Type string `json:"type"` // discriminator, always "run"

	RunID     string        `json:"run_id"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`

	Hypothesis *saga.ProductHypothesis  `json:"hypothesis,omitempty"`
	Intent     *saga.PurchaseIntent     `json:"intent,omitempty"`
	Offers     []saga.Offer             `json:"offers,omitempty"`
	Offer      *saga.Offer              `json:"offer,omitempty"`
	Trust      *saga.TrustAssessment    `json:"trust,omitempty"`
	Receipt    *saga.Receipt            `json:"receipt,omitempty"`
	Log        []saga.StageEvent        `json:"log,omitempty"`
	Messages   []saga.InterAgentMessage `json:"messages,omitempty"`
	Tokens     []budget.Event           `json:"tokens,omitempty"`
	Spans      []*trace.Span            `json:"spans,omitempty"`

	CostUSD     float64       `json:"cost_usd"`
	CostRecords []cost.Record `json:"cost_records,omitempty"`
}

// FromRunContext assembles a Record from a completed run, matching the
// output payload shape: {hypothesis, intent, offers[], offer, trust,
// receipt?, log[], messages[]}, plus the trace spans the Stage Runner
// opened for the same run (an independent, cross-checkable
// observability channel alongside the StageEvent log).
func FromRunContext(rc *saga.RunContext, startTime time.Time, runErr error, tokens []budget.Event, tracker *cost.Tracker, spans []*trace.Span) *Record {
	rec := &Record{
		Type:       "run",
		RunID:      rc.RunID,
		StartTime:  startTime,
		Duration:   time.Since(startTime),
		Hypothesis: rc.Hypothesis,
		Intent:     rc.Intent,
		Offers:     rc.Offers,
		Offer:      rc.BestOffer,
		Trust:      rc.Trust,
		Receipt:    rc.Receipt,
		Log:        rc.Events(),
		Messages:   rc.Messages(),
		Tokens:     tokens,
		Spans:      spans,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if tracker != nil {
		rec.CostUSD = tracker.TotalCost()
		rec.CostRecords = tracker.Records()
	}
	return rec
}

// Append writes a record as one line of .purchasesaga/runs/runs.jsonl
// relative to baseDir.
func Append(baseDir string, rec *Record) error {
	if rec.RunID == "" {
		return fmt.Errorf("runrecord: run ID is required")
	}

	dir := filepath.Join(baseDir, runsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("runrecord: create dir: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("runrecord: marshal: %w", err)
	}

	path := filepath.Join(dir, runsFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("runrecord: open: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("runrecord: write: %w", err)
	}

	return nil
}

// Load reads a single run's Record by run ID from the JSON-lines log.
func Load(baseDir, runID string) (*Record, error) {
	recs, err := loadAll(baseDir)
	if err != nil {
		return nil, err
	}
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].RunID == runID {
			return recs[i], nil
		}
	}
	return nil, fmt.Errorf("runrecord: run %q not found", runID)
}

// List returns all run IDs in descending order (newest first). IDs are
// time-sortable, so lexicographic descending order gives newest first.
func List(baseDir string) ([]string, error) {
	recs, err := loadAll(baseDir)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.RunID)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

func loadAll(baseDir string) ([]*Record, error) {
	path := filepath.Join(baseDir, runsDir, runsFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("runrecord: open %s: %w", path, err)
	}
	defer f.Close()

	var recs []*Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("runrecord: unmarshal line: %w", err)
		}
		cp := rec
		recs = append(recs, &cp)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("runrecord: scan: %w", err)
	}
	return recs, nil
}
