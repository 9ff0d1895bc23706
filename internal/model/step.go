package model

// Outcome classifies one enrichment step.
type Outcome int

const (
	// OutcomeFilled means the fetch succeeded and produced field values.
	OutcomeFilled Outcome = iota
	// OutcomeEmpty means the fetch succeeded but there was nothing to take.
	OutcomeEmpty
	// OutcomeFailed means the fetch failed and the step was skipped.
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeFilled:
		return "filled"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StepResult is the outcome of one enrichment step for one record.
type StepResult struct {
	Step    string
	Outcome Outcome
	Err     error
}

// Filled builds a successful StepResult.
func Filled(step string) StepResult {
	return StepResult{Step: step, Outcome: OutcomeFilled}
}

// Empty builds a StepResult for a successful fetch without data.
func Empty(step string) StepResult {
	return StepResult{Step: step, Outcome: OutcomeEmpty}
}

// Failed builds a StepResult for a skipped step.
func Failed(step string, err error) StepResult {
	return StepResult{Step: step, Outcome: OutcomeFailed, Err: err}
}

// CountFailed returns how many steps failed.
func CountFailed(steps []StepResult) int {
	n := 0
	for _, s := range steps {
		if s.Outcome == OutcomeFailed {
			n++
		}
	}
	return n
}
