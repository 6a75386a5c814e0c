package operations

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"stockpipe/internal/exporter"
	"stockpipe/pkg/contracts"
	"stockpipe/pkg/contracts/domain"
)

// StepResult is the manifest record of one step
type StepResult struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Status     StepStatus     `json:"status"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	Message    string         `json:"message,omitempty"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RowCounts summarizes the volume of a run
type RowCounts struct {
	Ingested         int            `json:"ingested"`
	Clean            int            `json:"clean"`
	CoercionFailures int            `json:"coercion_failures"`
	Views            map[string]int `json:"views,omitempty"`
}

// Manifest is the run report written next to the output tables
type Manifest struct {
	RunID             string              `json:"run_id"`
	Trigger           string              `json:"trigger,omitempty"`
	Status            RunStatus           `json:"status"`
	Source            string              `json:"source"`
	ResolvedSource    string              `json:"resolved_source,omitempty"`
	OutputDir         string              `json:"output_dir"`
	StartedAt         time.Time           `json:"started_at"`
	FinishedAt        time.Time           `json:"finished_at"`
	DurationMS        int64               `json:"duration_ms"`
	DataFormatVersion string              `json:"data_format_version"`
	Steps             []StepResult        `json:"steps"`
	Rows              RowCounts           `json:"rows"`
	Artifacts         []exporter.Artifact `json:"artifacts"`
	Removed           []string            `json:"removed,omitempty"`
	ViewsSkipped      []string            `json:"views_skipped,omitempty"`
	MissingColumns    []string            `json:"missing_columns,omitempty"`
	ExtraColumns      []string            `json:"extra_columns,omitempty"`
	Warnings          []domain.Warning    `json:"warnings"`
	Error             string              `json:"error,omitempty"`
}

// BuildManifest assembles the run report from a finished run state
func BuildManifest(state *RunState, outputDir string) *Manifest {
	state.mu.RLock()
	m := &Manifest{
		RunID:             state.ID,
		Trigger:           state.Request.Trigger,
		Status:            state.Status,
		Source:            state.Request.Source,
		ResolvedSource:    state.ResolvedSource,
		OutputDir:         outputDir,
		StartedAt:         state.StartTime,
		DataFormatVersion: contracts.DataFormatVersion,
		Artifacts:         []exporter.Artifact{},
	}
	if state.EndTime != nil {
		m.FinishedAt = *state.EndTime
	}
	if state.Error != nil {
		m.Error = state.Error.Error()
	}
	raw, clean, report, aggs, persisted := state.Raw, state.Clean, state.Report, state.Aggregates, state.Persisted
	state.mu.RUnlock()

	m.DurationMS = state.Duration().Milliseconds()
	m.Steps = state.StepResults()
	m.Warnings = state.Warnings()

	if raw != nil {
		m.Rows.Ingested = len(raw.Rows)
	}
	if clean != nil {
		m.Rows.Clean = len(clean.Records)
		m.MissingColumns = clean.Missing()
	}
	if report != nil {
		m.Rows.CoercionFailures = report.CoercionFailures()
		m.ExtraColumns = report.Extra
	}
	if aggs != nil {
		m.ViewsSkipped = aggs.SkippedNames()
		m.Rows.Views = make(map[string]int)
		for _, ds := range aggs.Views.Datasets() {
			m.Rows.Views[ds.TableName()] = ds.Len()
		}
	}
	if persisted != nil {
		m.Artifacts = persisted.Written
		m.Removed = persisted.Removed
	}
	return m
}

// WriteManifest atomically writes the manifest as indented JSON
func WriteManifest(path string, m *Manifest) error {
	return exporter.WriteAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	})
}

// ReadManifest loads a manifest written by WriteManifest
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}
