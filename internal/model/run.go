package model

import (
	"time"

	"github.com/google/uuid"
)

// KindStats counts what happened to one record kind during a run.
type KindStats struct {
	Pages        int `json:"pages"`
	Listed       int `json:"listed"`
	WithoutGUID  int `json:"without_guid"`
	Enriched     int `json:"enriched"`
	FailedSteps  int `json:"failed_steps"`
	Added        int `json:"added"`
	Skipped      int `json:"skipped"`
	LedgerNew    int `json:"ledger_new"`
	LedgerChange int `json:"ledger_changed"`
}

// Run is one collection run from listing to persisted workbook.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Output     string    `json:"output"`

	Legal       []*LegalEntityRecord `json:"-"`
	Individuals []*IndividualRecord  `json:"-"`

	Stats map[Kind]*KindStats `json:"stats"`

	// Interrupted is set when the run was stopped before reaching its target.
	Interrupted bool `json:"interrupted"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	Error        error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`
}

// NewRun starts a run writing to output.
func NewRun(output string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Output:    output,
		Stats: map[Kind]*KindStats{
			KindLegal:      {},
			KindIndividual: {},
		},
	}
}

// StatsFor returns the stats of kind, creating them if needed.
func (r *Run) StatsFor(kind Kind) *KindStats {
	s, ok := r.Stats[kind]
	if !ok {
		s = &KindStats{}
		r.Stats[kind] = s
	}
	return s
}

// Records returns the collected records of kind.
func (r *Run) Records(kind Kind) []Record {
	if kind == KindIndividual {
		return IndividualRecords(r.Individuals)
	}
	return LegalRecords(r.Legal)
}

// Fail records err as the run error.
func (r *Run) Fail(err error) {
	if err == nil {
		return
	}
	r.Error = err
	r.ErrorMessage = err.Error()
}

// Finish stamps the finish time.
func (r *Run) Finish() {
	r.FinishedAt = time.Now()
}

// Duration is the run's wall time so far.
func (r *Run) Duration() time.Duration {
	end := r.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(r.StartedAt)
}

// Status is a one-word summary: complete, interrupted or failed.
func (r *Run) Status() string {
	switch {
	case r.ErrorMessage != "":
		return "failed"
	case r.Interrupted:
		return "interrupted"
	default:
		return "complete"
	}
}

// Totals sums added and skipped rows across kinds.
func (r *Run) Totals() (added, skipped int) {
	for _, s := range r.Stats {
		added += s.Added
		skipped += s.Skipped
	}
	return added, skipped
}
