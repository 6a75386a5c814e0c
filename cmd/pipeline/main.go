// Command pipeline cleans one market data file and writes the clean table,
// the aggregate views, the run manifest and any configured mirrors.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"stockpipe/internal/aggregation"
	"stockpipe/internal/app"
	"stockpipe/internal/config"
	"stockpipe/internal/dataprocessing"
	"stockpipe/internal/infrastructure"
	"stockpipe/internal/operations"
	"stockpipe/pkg/contracts"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout))
}

// run executes one batch run and returns the process exit code
func run(ctx context.Context, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("pipeline", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "path to a YAML config file")
	in := fs.String("in", "", "source file (CSV or XLSX); overrides pipeline.source")
	out := fs.String("out", "", "output directory; overrides pipeline.output_dir")
	format := fs.String("format", "", "source format: csv or xlsx (default from the file extension)")
	mirrors := fs.String("mirrors", "", "comma-separated mirrors to write: csv,sqlite,xlsx")
	version := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return 0
	}

	cfg, err := loadConfig(*configPath, *in, *out, *format, *mirrors)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		return 1
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("failed to initialize logger, using default", slog.String("error", err.Error()))
		logger = slog.Default()
	}

	if cfg.Pipeline.Source == "" {
		logger.Error("no source file given, use -in or pipeline.source")
		return 1
	}

	paths, err := config.NewPaths(cfg)
	if err != nil {
		logger.Error("failed to resolve paths", slog.String("error", err.Error()))
		return 1
	}
	if err := paths.EnsureDirectories(cfg); err != nil {
		logger.Error("failed to create output directories", slog.String("error", err.Error()))
		return 1
	}

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		logger.Error("failed to initialize OpenTelemetry", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			logger.Warn("failed to shut down OpenTelemetry", slog.String("error", err.Error()))
		}
	}()

	manager, err := app.NewManager(cfg, paths, nil, providers, logger)
	if err != nil {
		logger.Error("failed to build pipeline", slog.String("error", err.Error()))
		return 1
	}
	defer manager.Broadcaster().Stop()

	logger.Info("starting pipeline", slog.String("config", cfg.String()))

	manifest, runErr := manager.Execute(ctx, operations.RunRequest{
		Source:  cfg.Pipeline.Source,
		Trigger: operations.TriggerCLI,
		Options: dataprocessing.SourceOptions{
			Format:    cfg.Pipeline.Format,
			Delimiter: cfg.Pipeline.DelimiterRune(),
			Sheet:     cfg.Pipeline.Sheet,
		},
	})
	if manifest != nil {
		printSummary(stdout, manifest)
	}
	if runErr != nil {
		logger.Error("pipeline failed", slog.String("error", runErr.Error()))
		return 1
	}
	return 0
}

// loadConfig loads the configuration and applies the command-line overrides
func loadConfig(path, in, out, format, mirrors string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if in != "" {
		cfg.Pipeline.Source = in
	}
	if out != "" {
		cfg.Pipeline.OutputDir = out
	}
	if format != "" {
		cfg.Pipeline.Format = strings.ToLower(format)
	}
	if mirrors != "" {
		cfg.Pipeline.Mirrors = nil
		for _, m := range strings.Split(mirrors, ",") {
			if m = strings.TrimSpace(m); m != "" {
				cfg.Pipeline.Mirrors = append(cfg.Pipeline.Mirrors, m)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// printSummary reports each table as saved or skipped
func printSummary(w io.Writer, m *operations.Manifest) {
	fmt.Fprintf(w, "run %s %s in %dms\n", m.RunID, m.Status, m.DurationMS)
	fmt.Fprintf(w, "rows: ingested=%d clean=%d coercion_failures=%d\n", m.Rows.Ingested, m.Rows.Clean, m.Rows.CoercionFailures)

	for _, a := range m.Artifacts {
		fmt.Fprintf(w, "saved %s (%s, %d rows) -> %s\n", a.Name, a.Format, a.Rows, a.Path)
	}
	for _, v := range m.ViewsSkipped {
		fmt.Fprintf(w, "skipping %s: required columns missing (%s)\n", v, strings.Join(aggregation.RequiredColumns(v), ", "))
	}
	if len(m.MissingColumns) > 0 {
		fmt.Fprintf(w, "missing columns: %s\n", strings.Join(m.MissingColumns, ", "))
	}
	if m.Error != "" {
		fmt.Fprintf(w, "error: %s\n", m.Error)
	}
}
