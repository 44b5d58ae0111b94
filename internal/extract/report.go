package extract

import (
	"sort"
	"time"

	"esparse/internal/conflict"
	"esparse/internal/diag"
)

// FileReport is the outcome of reading one plugin. Salvaged counts the
// records kept from a file whose read stopped early.
type FileReport struct {
	Plugin    string `json:"plugin"`
	Path      string `json:"path"`
	Digest    string `json:"digest,omitempty"`
	LoadOrder int    `json:"load_order"`
	IsESL     bool   `json:"is_esl"`
	Records   int    `json:"records"`
	Groups    int    `json:"groups"`
	Salvaged  int    `json:"salvaged,omitempty"`
	Error     string `json:"error,omitempty"`
	Err       error  `json:"-"`
}

// Failed reports whether the file could not be read to the end.
func (f FileReport) Failed() bool {
	return f.Err != nil
}

// Report is the outcome of a whole run.
type Report struct {
	RunID       string                     `json:"run_id"`
	StartedAt   time.Time                  `json:"started_at"`
	FinishedAt  time.Time                  `json:"finished_at"`
	Files       []FileReport               `json:"files"`
	Types       map[string]conflict.Report `json:"types"`
	Diagnostics []diag.Diagnostic          `json:"diagnostics,omitempty"`
	Records     []conflict.ResolvedRecord  `json:"-"`
}

// RecordTypes returns the record types seen in the run, sorted.
func (r *Report) RecordTypes() []string {
	types := make([]string, 0, len(r.Types))
	for t := range r.Types {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// FailedFiles returns the files whose read stopped early.
func (r *Report) FailedFiles() []FileReport {
	var out []FileReport
	for _, f := range r.Files {
		if f.Failed() {
			out = append(out, f)
		}
	}
	return out
}

// Totals summarizes record and winner counts across all types.
func (r *Report) Totals() (records, winners, unresolved int) {
	for _, t := range r.Types {
		records += t.Records
		winners += t.Winners
		unresolved += len(t.Unresolved)
	}
	return records, winners, unresolved
}

// Warnings returns the number of warning diagnostics.
func (r *Report) Warnings() int {
	return diag.Count(r.Diagnostics, diag.SeverityWarning)
}

// Errors returns the number of error diagnostics.
func (r *Report) Errors() int {
	return diag.Count(r.Diagnostics, diag.SeverityError)
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
