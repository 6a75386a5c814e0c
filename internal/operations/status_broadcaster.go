package operations

import (
	"log/slog"
	"sync"
	"time"
)

// Hub receives run snapshots for delivery to connected clients
type Hub interface {
	BroadcastUpdate(eventType, runID, status string, payload any)
}

// RunSnapshot is the complete state of a run at a point in time.
// It is the only structure pushed to clients.
type RunSnapshot struct {
	RunID       string         `json:"run_id"`
	Status      RunStatus      `json:"status"`
	Progress    int            `json:"progress"` // 0-100
	CurrentStep string         `json:"current_step,omitempty"`
	Steps       []StepSnapshot `json:"steps"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// StepSnapshot is the state of a single step within a RunSnapshot
type StepSnapshot struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Status   StepStatus     `json:"status"`
	Message  string         `json:"message,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type updateRequest struct {
	runID      string
	updateFunc func(*RunSnapshot)
	done       chan struct{}
}

// StatusBroadcaster is the single authority for run status. Updates are
// applied one at a time by a processing goroutine and every change is
// broadcast as a full snapshot.
type StatusBroadcaster struct {
	mu     sync.RWMutex
	runs   map[string]*RunSnapshot
	latest string
	hub    Hub
	logger *slog.Logger

	updates  chan updateRequest
	stop     chan struct{}
	stopOnce sync.Once
}

// NewStatusBroadcaster creates a broadcaster. hub may be nil.
func NewStatusBroadcaster(hub Hub, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	sb := &StatusBroadcaster{
		runs:    make(map[string]*RunSnapshot),
		hub:     hub,
		logger:  logger.With(slog.String("component", "status_broadcaster")),
		updates: make(chan updateRequest, 100),
		stop:    make(chan struct{}),
	}
	go sb.processUpdates()
	return sb
}

func (sb *StatusBroadcaster) processUpdates() {
	for {
		select {
		case <-sb.stop:
			return
		case req := <-sb.updates:
			sb.handleUpdate(req)
		}
	}
}

func (sb *StatusBroadcaster) handleUpdate(req updateRequest) {
	defer close(req.done)

	sb.mu.Lock()
	snapshot, exists := sb.runs[req.runID]
	if !exists {
		snapshot = &RunSnapshot{
			RunID:     req.runID,
			Status:    RunStatusPending,
			StartedAt: time.Now(),
			Steps:     []StepSnapshot{},
		}
		sb.runs[req.runID] = snapshot
		sb.latest = req.runID
	}

	req.updateFunc(snapshot)
	snapshot.UpdatedAt = time.Now()

	if n := len(snapshot.Steps); n > 0 {
		done := 0
		for _, s := range snapshot.Steps {
			if s.Status == StepStatusCompleted || s.Status == StepStatusSkipped {
				done++
			}
		}
		snapshot.Progress = done * 100 / n
	}

	switch snapshot.Status {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		if snapshot.CompletedAt == nil {
			now := time.Now()
			snapshot.CompletedAt = &now
		}
	}

	out := snapshot.clone()
	sb.mu.Unlock()

	sb.broadcast(out)
}

func (sb *StatusBroadcaster) broadcast(snapshot *RunSnapshot) {
	if sb.hub == nil {
		return
	}

	sb.logger.Debug("broadcasting run snapshot",
		slog.String("run_id", snapshot.RunID),
		slog.String("status", string(snapshot.Status)),
		slog.Int("progress", snapshot.Progress),
		slog.String("current_step", snapshot.CurrentStep),
	)
	sb.hub.BroadcastUpdate(EventTypeRunSnapshot, snapshot.RunID, string(snapshot.Status), snapshot)
}

// UpdateStatus applies updateFunc to the run's snapshot and waits for the
// resulting broadcast. It is a no-op after Stop.
func (sb *StatusBroadcaster) UpdateStatus(runID string, updateFunc func(*RunSnapshot)) {
	req := updateRequest{runID: runID, updateFunc: updateFunc, done: make(chan struct{})}

	select {
	case sb.updates <- req:
	case <-sb.stop:
		return
	}
	select {
	case <-req.done:
	case <-sb.stop:
	}
}

// CreateRun initializes a run with its ordered steps
func (sb *StatusBroadcaster) CreateRun(runID string, steps []Step) {
	sb.UpdateStatus(runID, func(s *RunSnapshot) {
		s.Status = RunStatusPending
		s.Steps = make([]StepSnapshot, len(steps))
		for i, step := range steps {
			s.Steps[i] = StepSnapshot{ID: step.ID(), Name: step.Name(), Status: StepStatusPending}
		}
		s.Message = "run created"
	})
}

// StartRun marks a run as running
func (sb *StatusBroadcaster) StartRun(runID string) {
	sb.UpdateStatus(runID, func(s *RunSnapshot) {
		s.Status = RunStatusRunning
		s.Message = "run started"
	})
}

// StartStep marks a step as active
func (sb *StatusBroadcaster) StartStep(runID, stepID string) {
	sb.updateStep(runID, stepID, func(s *RunSnapshot, st *StepSnapshot) {
		st.Status = StepStatusActive
		s.CurrentStep = st.Name
	})
}

// CompleteStep marks a step as completed, attaching its output metadata
func (sb *StatusBroadcaster) CompleteStep(runID, stepID, message string, metadata map[string]any) {
	sb.updateStep(runID, stepID, func(_ *RunSnapshot, st *StepSnapshot) {
		st.Status = StepStatusCompleted
		st.Message = message
		st.Metadata = metadata
	})
}

// FailStep marks a step as failed
func (sb *StatusBroadcaster) FailStep(runID, stepID string, err error) {
	sb.updateStep(runID, stepID, func(_ *RunSnapshot, st *StepSnapshot) {
		st.Status = StepStatusFailed
		st.Error = err.Error()
	})
}

// SkipStep marks a step as skipped
func (sb *StatusBroadcaster) SkipStep(runID, stepID, reason string) {
	sb.updateStep(runID, stepID, func(_ *RunSnapshot, st *StepSnapshot) {
		st.Status = StepStatusSkipped
		st.Message = reason
	})
}

func (sb *StatusBroadcaster) updateStep(runID, stepID string, fn func(*RunSnapshot, *StepSnapshot)) {
	sb.UpdateStatus(runID, func(s *RunSnapshot) {
		for i := range s.Steps {
			if s.Steps[i].ID == stepID {
				fn(s, &s.Steps[i])
				return
			}
		}
	})
}

// CompleteRun marks a run as completed
func (sb *StatusBroadcaster) CompleteRun(runID, message string) {
	sb.UpdateStatus(runID, func(s *RunSnapshot) {
		s.Status = RunStatusCompleted
		s.CurrentStep = ""
		s.Message = message
	})
}

// FailRun marks a run as failed
func (sb *StatusBroadcaster) FailRun(runID string, err error) {
	sb.UpdateStatus(runID, func(s *RunSnapshot) {
		s.Status = RunStatusFailed
		s.CurrentStep = ""
		s.Error = err.Error()
	})
}

// CancelRun marks a run as cancelled
func (sb *StatusBroadcaster) CancelRun(runID string) {
	sb.UpdateStatus(runID, func(s *RunSnapshot) {
		s.Status = RunStatusCancelled
		s.CurrentStep = ""
		s.Message = "run cancelled"
	})
}

// GetSnapshot returns a copy of a run's snapshot
func (sb *StatusBroadcaster) GetSnapshot(runID string) (*RunSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	s, ok := sb.runs[runID]
	if !ok {
		return nil, false
	}
	return s.clone(), true
}

// Latest returns a copy of the most recently created run's snapshot
func (sb *StatusBroadcaster) Latest() (*RunSnapshot, bool) {
	sb.mu.RLock()
	id := sb.latest
	sb.mu.RUnlock()
	if id == "" {
		return nil, false
	}
	return sb.GetSnapshot(id)
}

// CleanupOldRuns forgets finished runs older than maxAge, except the latest
func (sb *StatusBroadcaster) CleanupOldRuns(maxAge time.Duration) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	now := time.Now()
	for id, s := range sb.runs {
		if id == sb.latest || s.CompletedAt == nil {
			continue
		}
		if now.Sub(*s.CompletedAt) > maxAge {
			delete(sb.runs, id)
		}
	}
}

// Stop shuts down the processing goroutine
func (sb *StatusBroadcaster) Stop() {
	sb.stopOnce.Do(func() { close(sb.stop) })
}

func (s *RunSnapshot) clone() *RunSnapshot {
	c := *s
	c.Steps = make([]StepSnapshot, len(s.Steps))
	for i, st := range s.Steps {
		c.Steps[i] = st
		if st.Metadata != nil {
			c.Steps[i].Metadata = make(map[string]any, len(st.Metadata))
			for k, v := range st.Metadata {
				c.Steps[i].Metadata[k] = v
			}
		}
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
