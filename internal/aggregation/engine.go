package aggregation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "stockpipe/internal/errors"
	"stockpipe/pkg/contracts/domain"
)

// requiredColumns lists the source columns each view cannot do without
var requiredColumns = map[string][]string{
	domain.ViewDaily:    {domain.FieldTradeDate, domain.FieldTicker},
	domain.ViewWeekly:   {domain.FieldTradeDate, domain.FieldTicker},
	domain.ViewTicker:   {domain.FieldTicker},
	domain.ViewSector:   {domain.FieldSector},
	domain.ViewExchange: {domain.FieldExchange},
	domain.ViewNotes:    {domain.FieldNotes},
}

// RequiredColumns returns the source columns a view depends on
func RequiredColumns(view string) []string {
	return requiredColumns[view]
}

// Views holds the aggregate tables of one run. A nil field is a skipped view.
type Views struct {
	Daily    *domain.Table[domain.DailyRow]
	Weekly   *domain.Table[domain.WeeklyRow]
	Ticker   *domain.Table[domain.TickerRow]
	Sector   *domain.Table[domain.SectorRow]
	Exchange *domain.Table[domain.ExchangeRow]
	Notes    *domain.Table[domain.NotesRow]
}

// Get returns the named view, or nil when it was skipped or is unknown
func (v *Views) Get(name string) domain.Dataset {
	switch {
	case name == domain.ViewDaily && v.Daily != nil:
		return v.Daily
	case name == domain.ViewWeekly && v.Weekly != nil:
		return v.Weekly
	case name == domain.ViewTicker && v.Ticker != nil:
		return v.Ticker
	case name == domain.ViewSector && v.Sector != nil:
		return v.Sector
	case name == domain.ViewExchange && v.Exchange != nil:
		return v.Exchange
	case name == domain.ViewNotes && v.Notes != nil:
		return v.Notes
	}
	return nil
}

// Datasets returns the computed views in ViewNames order
func (v *Views) Datasets() []domain.Dataset {
	out := make([]domain.Dataset, 0, len(domain.ViewNames))
	for _, name := range domain.ViewNames {
		if ds := v.Get(name); ds != nil {
			out = append(out, ds)
		}
	}
	return out
}

// Result is the output of one aggregation pass
type Result struct {
	Views   *Views
	Skipped []domain.Warning
}

// SkippedNames returns the names of the skipped views
func (r *Result) SkippedNames() []string {
	names := make([]string, len(r.Skipped))
	for i, w := range r.Skipped {
		names[i] = w.View
	}
	return names
}

// Options parameterizes the engine
type Options struct {
	WeekStart time.Weekday
}

// Engine computes the aggregate views from a clean table
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// NewEngine creates an aggregation engine
func NewEngine(opts Options, logger *slog.Logger) *Engine {
	return &Engine{
		opts:   opts,
		logger: logger.With(slog.String("component", "aggregation")),
	}
}

// Compute builds every view whose required columns were present in the
// source. Views are computed concurrently, one worker each.
func (e *Engine) Compute(ctx context.Context, ct *domain.CleanTable) (*Result, error) {
	res := &Result{Views: &Views{}}
	records := ct.Records

	build := map[string]func(){
		domain.ViewDaily: func() {
			res.Views.Daily = domain.NewTable(domain.ViewDaily, domain.DailyColumns, Daily(records))
		},
		domain.ViewWeekly: func() {
			res.Views.Weekly = domain.NewTable(domain.ViewWeekly, domain.WeeklyColumns, Weekly(records, e.opts.WeekStart))
		},
		domain.ViewTicker: func() {
			res.Views.Ticker = domain.NewTable(domain.ViewTicker, domain.TickerColumns, Ticker(records))
		},
		domain.ViewSector: func() {
			res.Views.Sector = domain.NewTable(domain.ViewSector, domain.SectorColumns, Sector(records))
		},
		domain.ViewExchange: func() {
			res.Views.Exchange = domain.NewTable(domain.ViewExchange, domain.ExchangeColumns, Exchange(records))
		},
		domain.ViewNotes: func() {
			res.Views.Notes = domain.NewTable(domain.ViewNotes, domain.NotesColumns, Notes(records))
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range domain.ViewNames {
		if missing := missingColumns(ct, name); len(missing) > 0 {
			w := domain.Warning{
				Type:    domain.WarnAggregationSkipped,
				Message: fmt.Sprintf("skipping %s: source lacks %s", name, strings.Join(missing, ", ")),
				View:    name,
			}
			res.Skipped = append(res.Skipped, w)
			e.logger.WarnContext(ctx, "skipping view",
				slog.String("view", name),
				slog.Any("missing", missing),
				slog.String("error", apperrors.NewAggregationSkippedError(name, missing).Error()))
			continue
		}

		fn := build[name]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, ds := range res.Views.Datasets() {
		e.logger.DebugContext(ctx, "view computed", slog.String("view", ds.TableName()), slog.Int("rows", ds.Len()))
	}
	return res, nil
}

func missingColumns(ct *domain.CleanTable, view string) []string {
	var missing []string
	for _, c := range requiredColumns[view] {
		if !ct.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}
