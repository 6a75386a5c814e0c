package operations

import (
	"sync"
	"time"

	"stockpipe/internal/aggregation"
	"stockpipe/internal/dataprocessing"
	"stockpipe/internal/exporter"
	"stockpipe/pkg/contracts/domain"
)

// RunStatus represents the overall run status
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunState is the complete state of one pipeline run. Steps hand their
// outputs to later steps through the table fields.
type RunState struct {
	mu sync.RWMutex

	ID        string
	Request   RunRequest
	Status    RunStatus
	StartTime time.Time
	EndTime   *time.Time
	Error     error

	Steps map[string]*StepState
	order []string

	// ResolvedSource is the file actually read, set by the ingest step
	ResolvedSource string

	Raw        *domain.RawTable
	Normalized *dataprocessing.NormalizedTable
	Clean      *domain.CleanTable
	Report     *dataprocessing.CleanReport
	Aggregates *aggregation.Result
	Persisted  *exporter.Report

	warnings []domain.Warning
}

// NewRunState creates a new run state
func NewRunState(id string, req RunRequest) *RunState {
	return &RunState{
		ID:        id,
		Request:   req,
		Status:    RunStatusPending,
		StartTime: time.Now(),
		Steps:     make(map[string]*StepState),
	}
}

// Start marks the run as running
func (r *RunState) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunStatusRunning
	r.StartTime = time.Now()
}

// Complete marks the run as completed
func (r *RunState) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusCompleted
}

// Fail marks the run as failed
func (r *RunState) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusFailed
	r.Error = err
}

// Cancel marks the run as cancelled
func (r *RunState) Cancel(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusCancelled
	r.Error = err
}

// GetStatus returns the run status
func (r *RunState) GetStatus() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// AddStep registers the state of a Step, preserving execution order
func (r *RunState) AddStep(s *StepState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Steps[s.ID]; !ok {
		r.order = append(r.order, s.ID)
	}
	r.Steps[s.ID] = s
}

// GetStep returns the state of a specific Step
func (r *RunState) GetStep(id string) *StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Steps[id]
}

// StepResults returns the Step states in execution order
func (r *RunState) StepResults() []StepResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StepResult, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.Steps[id].Result())
	}
	return out
}

// AddWarnings appends warnings to the run report
func (r *RunState) AddWarnings(ws ...domain.Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, ws...)
}

// Warnings returns a copy of the collected warnings
func (r *RunState) Warnings() []domain.Warning {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Warning, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// Duration returns the duration of the run
func (r *RunState) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	return time.Since(r.StartTime)
}
