package models

import (
	"fmt"
	"strings"
	"sync"
)

// JobState is a ReportJob lifecycle state.
type JobState string

const (
	StatePending    JobState = "pending"
	StateCollecting JobState = "collecting"
	StateRendering  JobState = "rendering"
	StateSplicing   JobState = "splicing"
	StateCleaning   JobState = "cleaning"
	StateDone       JobState = "done"
	StateFailed     JobState = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s JobState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// transitions lists the allowed next states. Collecting may jump straight to
// Cleaning when a required source failed; every non-terminal state may jump
// to Cleaning so scratch files are always removed.
var transitions = map[JobState][]JobState{
	StatePending:    {StateCollecting, StateCleaning},
	StateCollecting: {StateRendering, StateCleaning},
	StateRendering:  {StateSplicing, StateCleaning},
	StateSplicing:   {StateCleaning},
	StateCleaning:   {StateDone, StateFailed},
}

// ReportJob is the unit of work producing one document for one client.
// Once the job reaches Done or Failed its artifacts and errors are frozen.
type ReportJob struct {
	ClientID string
	RunID    string

	mu        sync.Mutex
	state     JobState
	artifacts map[string]string
	errors    []string
}

// NewJob creates a Pending job.
func NewJob(clientID, runID string) *ReportJob {
	return &ReportJob{
		ClientID:  clientID,
		RunID:     runID,
		state:     StatePending,
		artifacts: make(map[string]string),
	}
}

// State returns the current state.
func (j *ReportJob) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Transition moves the job to the next state.
func (j *ReportJob) Transition(to JobState) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, allowed := range transitions[j.state] {
		if allowed == to {
			j.state = to
			return nil
		}
	}
	return fmt.Errorf("invalid job transition %s -> %s", j.state, to)
}

// AddArtifact records a named artifact path. Returns false if the job is frozen.
func (j *ReportJob) AddArtifact(name, path string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return false
	}
	j.artifacts[name] = path
	return true
}

// AddError appends an error message. Returns false if the job is frozen.
func (j *ReportJob) AddError(msg string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return false
	}
	j.errors = append(j.errors, msg)
	return true
}

// Artifacts returns a copy of the artifact map.
func (j *ReportJob) Artifacts() map[string]string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[string]string, len(j.artifacts))
	for k, v := range j.artifacts {
		out[k] = v
	}
	return out
}

// Errors returns a copy of the error list in insertion order.
func (j *ReportJob) Errors() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.errors))
	copy(out, j.errors)
	return out
}

// Outcome is the per-client result surfaced to the caller.
type Outcome struct {
	ClientID string   `json:"client_id"`
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	Document string   `json:"document,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Failure is one failed client in a batch.
type Failure struct {
	ClientID string `json:"client"`
	Reason   string `json:"message"`
}

// BatchResult aggregates a batch run. It is not mutated after construction.
type BatchResult struct {
	Succeeded int       `json:"succeeded"`
	Failed    []Failure `json:"failures"`
}

// Total returns the number of processed clients.
func (b BatchResult) Total() int {
	return b.Succeeded + len(b.Failed)
}

// Summary renders a human-readable batch summary.
func (b BatchResult) Summary() string {
	total := b.Total()
	if len(b.Failed) == 0 {
		return fmt.Sprintf("All %d reports generated successfully", total)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d reports generated successfully, %d failed:", b.Succeeded, total, len(b.Failed))
	for _, f := range b.Failed {
		fmt.Fprintf(&sb, "\n  - %s: %s", f.ClientID, f.Reason)
	}
	return sb.String()
}
