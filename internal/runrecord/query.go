package runrecord

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// Query extracts a single field from a persisted run by gjson path
// (e.g. "trust.risk", "log.#(stage==\"S3_SOURCING\").dt_seconds")
// without unmarshaling the full Record — the same lightweight
// extraction the CLI's trace/cost inspection commands use against
// large run logs.
func Query(baseDir, runID, path string) (gjson.Result, error) {
	raw, err := rawLine(baseDir, runID)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.GetBytes(raw, path), nil
}

func rawLine(baseDir, runID string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runsDir, runsFile))
	if err != nil {
		return nil, fmt.Errorf("runrecord: read: %w", err)
	}

	var match []byte
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		if gjson.GetBytes(line, "run_id").String() == runID {
			match = line
		}
	}
	if match == nil {
		return nil, fmt.Errorf("runrecord: run %q not found", runID)
	}
	return match, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
