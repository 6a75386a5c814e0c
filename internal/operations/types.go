package operations

import (
	"time"

	"stockpipe/internal/dataprocessing"
)

// Pipeline step identifiers
const (
	StepIDIngest       = "ingest"
	StepIDNormalize    = "normalize"
	StepIDCanonicalize = "canonicalize"
	StepIDDerive       = "derive"
	StepIDAggregate    = "aggregate"
	StepIDPersist      = "persist"
)

// Pipeline step names
const (
	StepNameIngest       = "Read Source"
	StepNameNormalize    = "Normalize Schema"
	StepNameCanonicalize = "Canonicalize Values"
	StepNameDerive       = "Derive Fields"
	StepNameAggregate    = "Compute Views"
	StepNamePersist      = "Persist Tables"
)

// WebSocket event types
const (
	EventTypeRunSnapshot = "run:snapshot"
)

// Run triggers
const (
	TriggerCLI      = "cli"
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
)

// SnapshotRetention is how long finished run snapshots stay queryable
const SnapshotRetention = time.Hour

// DefaultStepTimeout applies when no per-step timeout is configured
const DefaultStepTimeout = 10 * time.Minute

// RunRequest describes one pipeline run
type RunRequest struct {
	ID      string                       `json:"id,omitempty"`
	Source  string                       `json:"source"`
	Options dataprocessing.SourceOptions `json:"-"`
	Trigger string                       `json:"trigger,omitempty"`
}

// RetryConfig defines retry behavior for steps
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration: a single attempt
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  1,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}
