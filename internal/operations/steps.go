package operations

import (
	"context"
	"fmt"
	"log/slog"

	"stockpipe/internal/aggregation"
	"stockpipe/internal/dataprocessing"
	"stockpipe/internal/exporter"
	"stockpipe/internal/validation"
	"stockpipe/pkg/contracts/domain"
)

// IngestStep reads the raw source table
type IngestStep struct {
	BaseStep
	files  *validation.FileValidator
	tracer *RunTracer
}

// NewIngestStep creates the ingest step
func NewIngestStep(files *validation.FileValidator, tracer *RunTracer) *IngestStep {
	return &IngestStep{BaseStep: NewBaseStep(StepIDIngest, StepNameIngest), files: files, tracer: tracer}
}

// Validate requires a source path
func (s *IngestStep) Validate(state *RunState) error {
	if state.Request.Source == "" {
		return fmt.Errorf("no source configured")
	}
	return nil
}

// Execute implements Step
func (s *IngestStep) Execute(ctx context.Context, state *RunState) error {
	source, err := s.files.ResolveSource(state.Request.Source)
	if err != nil {
		return err
	}

	raw, err := dataprocessing.ReadSource(ctx, source, state.Request.Options)
	if err != nil {
		return err
	}

	state.ResolvedSource = source
	state.Raw = raw
	s.tracer.Count(ctx, s.tracer.Metrics().RowsIngested, len(raw.Rows), "")
	state.GetStep(s.ID()).SetMetadata("rows", len(raw.Rows))
	state.GetStep(s.ID()).SetMetadata("columns", raw.Width())
	return nil
}

// NormalizeStep normalizes the header and trims cells
type NormalizeStep struct {
	BaseStep
}

// NewNormalizeStep creates the normalize step
func NewNormalizeStep() *NormalizeStep {
	return &NormalizeStep{BaseStep: NewBaseStep(StepIDNormalize, StepNameNormalize, StepIDIngest)}
}

// Validate requires the raw table
func (s *NormalizeStep) Validate(state *RunState) error {
	if state.Raw == nil {
		return fmt.Errorf("raw table not available")
	}
	return nil
}

// Execute implements Step
func (s *NormalizeStep) Execute(_ context.Context, state *RunState) error {
	t, err := dataprocessing.Normalize(state.Raw)
	if err != nil {
		return err
	}
	state.Normalized = t
	state.AddWarnings(t.Warnings...)
	state.GetStep(s.ID()).SetMetadata("columns", t.Columns)
	return nil
}

// CanonicalizeStep maps missing tokens to null and coerces types
type CanonicalizeStep struct {
	BaseStep
	tracer *RunTracer
	logger *slog.Logger
}

// NewCanonicalizeStep creates the canonicalize step
func NewCanonicalizeStep(tracer *RunTracer, logger *slog.Logger) *CanonicalizeStep {
	return &CanonicalizeStep{
		BaseStep: NewBaseStep(StepIDCanonicalize, StepNameCanonicalize, StepIDNormalize),
		tracer:   tracer,
		logger:   logger,
	}
}

// Validate requires the normalized table
func (s *CanonicalizeStep) Validate(state *RunState) error {
	if state.Normalized == nil {
		return fmt.Errorf("normalized table not available")
	}
	return nil
}

// Execute implements Step
func (s *CanonicalizeStep) Execute(ctx context.Context, state *RunState) error {
	clean, report := dataprocessing.Canonicalize(state.Normalized)
	state.Clean = clean
	state.Report = report
	state.AddWarnings(report.Warnings...)

	for col, n := range report.Coercion {
		s.tracer.Count(ctx, s.tracer.Metrics().CoercionFailures, n, col)
	}
	for _, w := range report.Warnings {
		s.logger.WarnContext(ctx, "cleaning warning",
			slog.String("type", w.Type),
			slog.String("column", w.Column),
			slog.String("message", w.Message))
	}

	st := state.GetStep(s.ID())
	st.SetMetadata("rows", len(clean.Records))
	st.SetMetadata("coercion_failures", report.CoercionFailures())
	st.SetMetadata("synthesized", report.Synthesized)
	return nil
}

// DeriveStep computes the flags, country and price change
type DeriveStep struct {
	BaseStep
}

// NewDeriveStep creates the derive step
func NewDeriveStep() *DeriveStep {
	return &DeriveStep{BaseStep: NewBaseStep(StepIDDerive, StepNameDerive, StepIDCanonicalize)}
}

// Validate requires the clean table
func (s *DeriveStep) Validate(state *RunState) error {
	if state.Clean == nil {
		return fmt.Errorf("clean table not available")
	}
	return nil
}

// Execute implements Step
func (s *DeriveStep) Execute(_ context.Context, state *RunState) error {
	state.Clean = dataprocessing.Derive(state.Clean)
	return nil
}

// AggregateStep computes the aggregate views
type AggregateStep struct {
	BaseStep
	engine *aggregation.Engine
	tracer *RunTracer
}

// NewAggregateStep creates the aggregate step
func NewAggregateStep(engine *aggregation.Engine, tracer *RunTracer) *AggregateStep {
	return &AggregateStep{
		BaseStep: NewBaseStep(StepIDAggregate, StepNameAggregate, StepIDDerive),
		engine:   engine,
		tracer:   tracer,
	}
}

// Validate requires the derived table
func (s *AggregateStep) Validate(state *RunState) error {
	if state.Clean == nil {
		return fmt.Errorf("clean table not available")
	}
	return nil
}

// Execute implements Step
func (s *AggregateStep) Execute(ctx context.Context, state *RunState) error {
	res, err := s.engine.Compute(ctx, state.Clean)
	if err != nil {
		return err
	}
	state.Aggregates = res
	state.AddWarnings(res.Skipped...)
	for _, w := range res.Skipped {
		s.tracer.Count(ctx, s.tracer.Metrics().ViewsSkipped, 1, w.View)
	}

	st := state.GetStep(s.ID())
	st.SetMetadata("views", len(res.Views.Datasets()))
	st.SetMetadata("skipped", res.SkippedNames())
	return nil
}

// PersistStep writes the clean table and the views
type PersistStep struct {
	BaseStep
	store  *exporter.Store
	tracer *RunTracer
}

// NewPersistStep creates the persist step
func NewPersistStep(store *exporter.Store, tracer *RunTracer) *PersistStep {
	return &PersistStep{
		BaseStep: NewBaseStep(StepIDPersist, StepNamePersist, StepIDAggregate),
		store:    store,
		tracer:   tracer,
	}
}

// Validate requires the aggregates
func (s *PersistStep) Validate(state *RunState) error {
	if state.Clean == nil || state.Aggregates == nil {
		return fmt.Errorf("tables not available")
	}
	return nil
}

// Execute implements Step
func (s *PersistStep) Execute(ctx context.Context, state *RunState) error {
	tables := append([]domain.Dataset{state.Clean.Table()}, state.Aggregates.Views.Datasets()...)

	report, err := s.store.Persist(ctx, tables, state.Aggregates.SkippedNames())
	if report != nil {
		state.Persisted = report
		state.AddWarnings(report.Failures...)
		for _, a := range report.Written {
			s.tracer.Count(ctx, s.tracer.Metrics().ViewsWritten, 1, a.Name)
		}
		for _, f := range report.Failures {
			s.tracer.Count(ctx, s.tracer.Metrics().WriteFailures, 1, f.View)
		}
		st := state.GetStep(s.ID())
		st.SetMetadata("written", len(report.Written))
		st.SetMetadata("failed", len(report.Failures))
	}
	return err
}

// Deps are the collaborators of the standard pipeline
type Deps struct {
	Engine *aggregation.Engine
	Store  *exporter.Store
	Tracer *RunTracer
	Logger *slog.Logger
}

// NewPipelineRegistry registers the six pipeline steps
func NewPipelineRegistry(d Deps) (*Registry, error) {
	if d.Tracer == nil {
		d.Tracer = NoopRunTracer()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	reg := NewRegistry()
	steps := []Step{
		NewIngestStep(validation.NewFileValidator(d.Logger), d.Tracer),
		NewNormalizeStep(),
		NewCanonicalizeStep(d.Tracer, d.Logger),
		NewDeriveStep(),
		NewAggregateStep(d.Engine, d.Tracer),
		NewPersistStep(d.Store, d.Tracer),
	}
	for _, s := range steps {
		if err := reg.Register(s); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
