package convert

import (
	"time"

	"cdconv/internal/numbers"
)

// Summary describes a finished (or analysed) run.
type Summary struct {
	RunID       string         `json:"runId" yaml:"runId"`
	StartedAt   time.Time      `json:"startedAt" yaml:"startedAt"`
	Duration    time.Duration  `json:"duration" yaml:"duration"`
	ReleaseDate string         `json:"releaseDate" yaml:"releaseDate"`
	OutputDir   string         `json:"outputDir" yaml:"outputDir"`
	Layers      []LayerSummary `json:"layers" yaml:"layers"`
	Attributes  int            `json:"attributes" yaml:"attributes"`

	NumberConcepts int            `json:"numberConcepts" yaml:"numberConcepts"`
	NumericValues  int            `json:"numericValues" yaml:"numericValues"`
	Report         numbers.Report `json:"report" yaml:"report"`

	Passes []PassSummary `json:"passes" yaml:"passes"`

	RowsWritten           int `json:"rowsWritten" yaml:"rowsWritten"`
	WrittenImmediately    int `json:"writtenImmediately" yaml:"writtenImmediately"`
	PendingDrained        int `json:"pendingDrained" yaml:"pendingDrained"`
	PendingDiscarded      int `json:"pendingDiscarded" yaml:"pendingDiscarded"`
	UnresolvedExpressions int `json:"unresolvedExpressions" yaml:"unresolvedExpressions"`
	// Remodelled counts emitted rows whose OWL expression was rewritten.
	Remodelled int      `json:"remodelled" yaml:"remodelled"`
	Files      []string `json:"files" yaml:"files"`
}

// LayerSummary names one input archive.
type LayerSummary struct {
	Kind string `json:"kind" yaml:"kind"`
	Path string `json:"path" yaml:"path"`
}

// PassSummary counts the work of one pass.
type PassSummary struct {
	Pass     int           `json:"pass" yaml:"pass"`
	Entries  int           `json:"entries" yaml:"entries"`
	Rows     int           `json:"rows" yaml:"rows"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// RowsRead returns the rows read by pass n, or 0 if it has not run.
func (s *Summary) RowsRead(n int) int {
	for _, p := range s.Passes {
		if p.Pass == n {
			return p.Rows
		}
	}
	return 0
}
