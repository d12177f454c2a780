package shared

import "fmt"

// RunSummary accumulates per-record outcomes for batch runs such as late fee
// assessment or violation escalation. A single bad record never aborts the run.
type RunSummary struct {
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Success records one processed record that succeeded.
func (s *RunSummary) Success() {
	s.Processed++
	s.Succeeded++
}

// Failure records one processed record that failed.
func (s *RunSummary) Failure(ref string, err error) {
	s.Processed++
	s.Failed++
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", ref, err))
}

// String renders the mixed-success summary for logs and CLI output.
func (s RunSummary) String() string {
	return fmt.Sprintf("processed=%d succeeded=%d failed=%d", s.Processed, s.Succeeded, s.Failed)
}
