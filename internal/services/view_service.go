package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"stockpipe/internal/aggregation"
	"stockpipe/internal/config"
	apperrors "stockpipe/internal/errors"
	"stockpipe/internal/exporter"
	"stockpipe/internal/infrastructure"
	"stockpipe/pkg/contracts/domain"
)

// ViewInfo describes one persisted table
type ViewInfo struct {
	Name       string          `json:"name"`
	Columns    []domain.Column `json:"columns"`
	Rows       int             `json:"rows"`
	ModifiedAt *time.Time      `json:"modified_at,omitempty"`
	SizeBytes  int64           `json:"size_bytes,omitempty"`
	Missing    bool            `json:"missing"`
}

// ViewData is a table's schema and rows, possibly filtered by ticker
type ViewData struct {
	Name       string          `json:"name"`
	Columns    []domain.Column `json:"columns"`
	Rows       [][]any         `json:"rows"`
	RowCount   int             `json:"row_count"`
	Tickers    []string        `json:"tickers,omitempty"`
	ModifiedAt time.Time       `json:"modified_at"`
}

type cacheKey struct {
	path    string
	modTime int64
	size    int64
}

// ViewService reads the persisted tables for the HTTP API. Decoded tables
// are cached by path and file version, so a rewrite by a later run is
// picked up on the next request.
type ViewService struct {
	paths   *config.Paths
	cache   *lru.Cache[cacheKey, domain.Dataset]
	metrics *infrastructure.PipelineMetrics
	logger  *slog.Logger
}

// NewViewService creates a view service holding up to cacheSize decoded tables
func NewViewService(paths *config.Paths, cacheSize int, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) (*ViewService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = infrastructure.NoopMetrics()
	}
	if cacheSize <= 0 {
		cacheSize = 16
	}

	cache, err := lru.New[cacheKey, domain.Dataset](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create view cache: %w", err)
	}

	return &ViewService{
		paths:   paths,
		cache:   cache,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "view_service")),
	}, nil
}

// tableNames lists the clean table followed by every view
func tableNames() []string {
	return append([]string{domain.CleanedTableName}, domain.ViewNames...)
}

// ListViews describes every table, flagging the ones not on disk
func (s *ViewService) ListViews(ctx context.Context) ([]ViewInfo, error) {
	out := make([]ViewInfo, 0, len(domain.ViewNames)+1)

	for _, name := range tableNames() {
		cols, _ := domain.ColumnsFor(name)
		info := ViewInfo{Name: name, Columns: cols}

		ds, st, err := s.load(ctx, name)
		switch {
		case apperrors.IsType(err, apperrors.ErrTypeNotFound):
			info.Missing = true
		case err != nil:
			return nil, err
		default:
			mod := st.ModTime()
			info.Rows = ds.Len()
			info.ModifiedAt = &mod
			info.SizeBytes = st.Size()
		}
		out = append(out, info)
	}
	return out, nil
}

// GetView returns a table's rows. A non-empty tickers selection applies the
// two-step filter: ticker-keyed views by ticker, the others by the sector,
// exchange or notes values co-occurring with the tickers in the clean table.
func (s *ViewService) GetView(ctx context.Context, name string, tickers []string) (*ViewData, error) {
	if _, ok := domain.ColumnsFor(name); !ok {
		return nil, apperrors.NewNotFoundError("view " + name)
	}

	ds, st, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}

	var filter *aggregation.Filter
	if len(tickers) > 0 {
		clean, err := s.cleanRecords(ctx)
		if err != nil {
			return nil, err
		}
		filter = aggregation.ResolveFilter(clean, tickers)
		if name == domain.CleanedTableName {
			ds = ds.(*domain.Table[domain.CleanRecord]).Filter(func(r domain.CleanRecord) bool {
				return filter.KeepTicker(r.Ticker)
			})
		} else {
			ds = aggregation.FilterDataset(ds, filter)
		}
	}

	data := &ViewData{
		Name:       name,
		Columns:    ds.Schema(),
		Rows:       make([][]any, ds.Len()),
		RowCount:   ds.Len(),
		ModifiedAt: st.ModTime(),
	}
	if filter != nil {
		data.Tickers = filter.Tickers
	}
	for i := 0; i < ds.Len(); i++ {
		data.Rows[i] = ds.Cells(i)
	}

	s.logger.DebugContext(ctx, "view served",
		slog.String("view", name),
		slog.Int("rows", data.RowCount),
		slog.Any("tickers", data.Tickers))
	return data, nil
}

// Tickers returns the distinct non-null tickers of the clean table, sorted
func (s *ViewService) Tickers(ctx context.Context) ([]string, error) {
	records, err := s.cleanRecords(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	out := []string{}
	for _, r := range records {
		if r.Ticker == nil || seen[*r.Ticker] {
			continue
		}
		seen[*r.Ticker] = true
		out = append(out, *r.Ticker)
	}
	sort.Strings(out)
	return out, nil
}

func (s *ViewService) cleanRecords(ctx context.Context) ([]domain.CleanRecord, error) {
	ds, _, err := s.load(ctx, domain.CleanedTableName)
	if err != nil {
		return nil, err
	}
	return ds.(*domain.Table[domain.CleanRecord]).Rows, nil
}

// load returns the decoded table and its file info, from cache when the
// file is unchanged
func (s *ViewService) load(ctx context.Context, name string) (domain.Dataset, os.FileInfo, error) {
	path := s.paths.TableFile(name)
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, apperrors.NewNotFoundError("view " + name)
		}
		return nil, nil, fmt.Errorf("stat %s: %w", path, err)
	}

	key := cacheKey{path: path, modTime: st.ModTime().UnixNano(), size: st.Size()}
	attrs := metric.WithAttributes(attribute.String("view", name))
	if ds, ok := s.cache.Get(key); ok {
		s.metrics.ViewCacheHits.Add(ctx, 1, attrs)
		return ds, st, nil
	}
	s.metrics.ViewCacheMisses.Add(ctx, 1, attrs)

	ds, err := exporter.ReadDataset(path, name)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read view",
			slog.String("view", name),
			slog.String("file_path", path),
			slog.String("error", err.Error()))
		return nil, nil, fmt.Errorf("read %s: %w", name, err)
	}
	s.cache.Add(key, ds)
	return ds, st, nil
}
