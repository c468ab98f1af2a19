package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Gate verdicts written to scan reports.
const (
	gatePass          = "PASS"
	gatePassWithNotes = "PASS_WITH_NOTES"
	gateFail          = "FAIL"
)

// GateReport is the file written by scan -report. CI keeps it as an artifact
// next to the exit code.
type GateReport struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Files       []string      `json:"files"`
	Gate        GateVerdict   `json:"gate"`
	Results     []StoreResult `json:"results"`
}

// GateVerdict summarizes a scan.
type GateVerdict struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Summary GateSummary `json:"summary"`
}

// GateSummary counts stores by outcome.
type GateSummary struct {
	Stores      int     `json:"stores"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	Violations  int     `json:"violations"`
	Notes       int     `json:"notes"`
	SuccessRate float64 `json:"success_rate"`
}

func buildGateReport(files []string, results []StoreResult, now time.Time) GateReport {
	summary := GateSummary{Stores: len(results)}
	for _, result := range results {
		if result.Failed() {
			summary.Failed++
		} else {
			summary.Passed++
		}
		summary.Violations += len(result.Violations)
		summary.Notes += len(result.Diagnostics)
	}
	if summary.Stores > 0 {
		summary.SuccessRate = float64(summary.Passed) / float64(summary.Stores) * 100
	}

	verdict := GateVerdict{Summary: summary}
	switch {
	case summary.Failed > 0:
		verdict.Status = gateFail
		verdict.Message = fmt.Sprintf("%d of %d store(s) failed", summary.Failed, summary.Stores)
	case summary.Notes > 0:
		verdict.Status = gatePassWithNotes
		verdict.Message = fmt.Sprintf("all stores passed with %d note(s)", summary.Notes)
	default:
		verdict.Status = gatePass
		verdict.Message = "all stores passed"
	}

	if results == nil {
		results = []StoreResult{}
	}
	return GateReport{
		GeneratedAt: now.UTC(),
		Files:       append([]string(nil), files...),
		Gate:        verdict,
		Results:     results,
	}
}

// writeGateReport replaces path atomically so a watcher never reads a
// half-written report.
func writeGateReport(path string, report GateReport) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".statecheck-report-*")
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := writeJSON(tmp, report); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
