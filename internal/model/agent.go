// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// STEP STATUS TYPE
// =============================================================================

// StepStatus is the lifecycle state of one agent search step.
type StepStatus string

const (
	// StepDefault marks a step that has not started yet.
	StepDefault StepStatus = "default"
	// StepCurrent marks the step the agent is working on right now.
	// Invariant: at most one step is current at any time while streaming.
	StepCurrent StepStatus = "current"
	// StepDone marks a completed step.
	StepDone StepStatus = "done"
)

// =============================================================================
// AGENT SEARCH TRACE
// =============================================================================

// AgentSearchStep is one entry of the agent search (pro search) trace.
type AgentSearchStep struct {
	Step       string         `json:"step"`
	Queries    []string       `json:"queries"`
	Results    []SearchResult `json:"results"`
	Status     StepStatus     `json:"status"`
	StepNumber int            `json:"step_number"`
}

// AgentSearchResponse is the full agent search trace for one assistant turn.
//
// Steps is a denormalized view of StepsDetails kept index-aligned with it;
// every mutation rebuilds it so the two can never drift apart.
type AgentSearchResponse struct {
	Steps        []string          `json:"steps"`
	StepsDetails []AgentSearchStep `json:"steps_details"`
}

// NewAgentSearchResponse builds a trace from a query plan: one step per name,
// the first step current, everything else default.
func NewAgentSearchResponse(steps []string) *AgentSearchResponse {
	details := make([]AgentSearchStep, len(steps))
	for i, name := range steps {
		status := StepDefault
		if i == 0 {
			status = StepCurrent
		}
		details[i] = AgentSearchStep{
			Step:       name,
			Queries:    []string{},
			Results:    []SearchResult{},
			Status:     status,
			StepNumber: i,
		}
	}
	r := &AgentSearchResponse{StepsDetails: details}
	r.rebuildSteps()
	return r
}

// SetQueries records the search queries for a step and moves the current
// marker to it. Every earlier step is forced to done, not just the immediate
// predecessor, so a skipped step number can never leave two current steps.
func (r *AgentSearchResponse) SetQueries(stepNumber int, queries []string) {
	if stepNumber < 0 || stepNumber >= len(r.StepsDetails) {
		return
	}
	r.StepsDetails[stepNumber].Queries = append([]string(nil), queries...)
	r.StepsDetails[stepNumber].Status = StepCurrent
	for i := 0; i < stepNumber; i++ {
		r.StepsDetails[i].Status = StepDone
	}
	r.rebuildSteps()
}

// SetResults records the read results for a step.
func (r *AgentSearchResponse) SetResults(stepNumber int, results []SearchResult) {
	if stepNumber < 0 || stepNumber >= len(r.StepsDetails) {
		return
	}
	r.StepsDetails[stepNumber].Results = append([]SearchResult(nil), results...)
	r.rebuildSteps()
}

// FinishAll marks every step done. Called on agent-finish and on finalize.
func (r *AgentSearchResponse) FinishAll() {
	for i := range r.StepsDetails {
		r.StepsDetails[i].Status = StepDone
	}
	r.rebuildSteps()
}

// CurrentStep returns the index of the current step, or -1 if none.
func (r *AgentSearchResponse) CurrentStep() int {
	for i := range r.StepsDetails {
		if r.StepsDetails[i].Status == StepCurrent {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the trace.
func (r *AgentSearchResponse) Clone() *AgentSearchResponse {
	clone := &AgentSearchResponse{
		Steps:        append([]string(nil), r.Steps...),
		StepsDetails: make([]AgentSearchStep, len(r.StepsDetails)),
	}
	for i, step := range r.StepsDetails {
		stepCopy := step
		stepCopy.Queries = append([]string(nil), step.Queries...)
		stepCopy.Results = append([]SearchResult(nil), step.Results...)
		clone.StepsDetails[i] = stepCopy
	}
	return clone
}

// rebuildSteps refreshes the denormalized step-name view.
func (r *AgentSearchResponse) rebuildSteps() {
	names := make([]string, len(r.StepsDetails))
	for i := range r.StepsDetails {
		names[i] = r.StepsDetails[i].Step
	}
	r.Steps = names
}
