package operations

import (
	"context"
	"sync"
	"time"
)

// Step is a single unit of a pipeline run
type Step interface {
	// ID returns the unique identifier for this Step
	ID() string

	// Name returns the human-readable name for this Step
	Name() string

	// Execute runs the Step against the run state
	Execute(ctx context.Context, state *RunState) error

	// Validate checks that the inputs the Step needs are present
	Validate(state *RunState) error

	// Dependencies returns the IDs of steps that must complete first
	Dependencies() []string
}

// StepStatus represents the current status of a Step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepState represents the runtime state of a Step
type StepState struct {
	mu        sync.RWMutex
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    StepStatus     `json:"status"`
	StartTime *time.Time     `json:"start_time,omitempty"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewStepState creates a new Step state with default values
func NewStepState(id, name string) *StepState {
	return &StepState{
		ID:       id,
		Name:     name,
		Status:   StepStatusPending,
		Metadata: make(map[string]any),
	}
}

// Start marks the Step as active and sets the start time
func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StepStatusActive
}

// Complete marks the Step as completed and sets the end time
func (s *StepState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusCompleted
}

// Fail marks the Step as failed with the given error
func (s *StepState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusFailed
	if err != nil {
		s.Error = err.Error()
	}
}

// Skip marks the Step as skipped with the given reason
func (s *StepState) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Status = StepStatusSkipped
	s.Message = reason
}

// SetMetadata records a value describing the Step's output
func (s *StepState) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metadata[key] = value
}

// GetStatus returns the current status
func (s *StepState) GetStatus() StepStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// Duration returns the duration of the Step execution
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// Result returns a copy suitable for the run manifest
func (s *StepState) Result() StepResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta := make(map[string]any, len(s.Metadata))
	for k, v := range s.Metadata {
		meta[k] = v
	}
	r := StepResult{
		ID:       s.ID,
		Name:     s.Name,
		Status:   s.Status,
		Message:  s.Message,
		Error:    s.Error,
		Metadata: meta,
	}
	if s.StartTime != nil {
		r.StartedAt = s.StartTime
		end := time.Now()
		if s.EndTime != nil {
			end = *s.EndTime
		}
		r.DurationMS = end.Sub(*s.StartTime).Milliseconds()
	}
	return r
}

// BaseStep provides common functionality for Step implementations
type BaseStep struct {
	id           string
	name         string
	dependencies []string
}

// NewBaseStep creates a new base Step
func NewBaseStep(id, name string, dependencies ...string) BaseStep {
	if dependencies == nil {
		dependencies = []string{}
	}
	return BaseStep{
		id:           id,
		name:         name,
		dependencies: dependencies,
	}
}

// ID returns the Step ID
func (b *BaseStep) ID() string { return b.id }

// Name returns the Step name
func (b *BaseStep) Name() string { return b.name }

// Dependencies returns the Step dependencies
func (b *BaseStep) Dependencies() []string { return b.dependencies }

// Validate provides a default validation that always passes
func (b *BaseStep) Validate(*RunState) error { return nil }
