package http

import (
	"context"

	"stockpipe/internal/operations"
	"stockpipe/internal/services"
)

// ViewReader serves the persisted tables
type ViewReader interface {
	ListViews(ctx context.Context) ([]services.ViewInfo, error)
	GetView(ctx context.Context, name string, tickers []string) (*services.ViewData, error)
	Tickers(ctx context.Context) ([]string, error)
}

// RunController starts, inspects and cancels pipeline runs
type RunController interface {
	Start(ctx context.Context, source, trigger string) (string, error)
	Cancel(ctx context.Context) (string, error)
	Latest() (*operations.Manifest, error)
	Snapshot() (*operations.RunSnapshot, bool)
}
