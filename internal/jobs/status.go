// Package jobs runs the single-flight reindex job and tracks its state.
package jobs

import (
	"slices"
	"time"
)

// Phase is the last observed stage of an indexing run
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseReset       Phase = "reset"
	PhaseCollecting  Phase = "collecting"
	PhaseBulkLoading Phase = "bulk-loading"
	PhaseDone        Phase = "done"
	PhaseError       Phase = "error"
)

// Terminal reports whether p ends a run
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseError
}

// Result summarizes a completed run
type Result struct {
	Indexed    int      `json:"indexed"`
	Considered int      `json:"considered"`
	Scanned    int      `json:"scanned"`
	Errors     bool     `json:"errors"`
	ErrorItems []string `json:"error_items"`
	Note       string   `json:"note,omitempty"`
}

// Status is a snapshot of the job record.
// Indexing is the authoritative busy flag; Phase keeps its terminal value
// after a run ends.
type Status struct {
	RunID      string     `json:"run_id,omitempty"`
	Phase      Phase      `json:"phase"`
	Indexing   bool       `json:"indexing"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	LastResult *Result    `json:"last_result"`
	LastError  string     `json:"last_error,omitempty"`
}

// clone returns a deep copy that shares nothing with s
func (s Status) clone() Status {
	out := s
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		out.FinishedAt = &t
	}
	if s.LastResult != nil {
		r := *s.LastResult
		r.ErrorItems = slices.Clone(s.LastResult.ErrorItems)
		out.LastResult = &r
	}
	return out
}

// Event is a phase transition published by the worker
type Event struct {
	RunID  string
	Phase  Phase
	At     time.Time
	Result *Result
	Err    string
}

// StartResult is returned when a run is accepted
type StartResult struct {
	Started bool   `json:"started"`
	Reset   bool   `json:"reset"`
	RunID   string `json:"run_id"`
}
