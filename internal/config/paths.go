package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths is the single source of truth for file locations of a run
type Paths struct {
	OutputDir    string
	ManifestFile string
	CSVDir       string
	SQLiteFile   string
	WorkbookFile string
	LogsDir      string
}

// NewPaths resolves the output layout for the given configuration
func NewPaths(cfg *Config) (*Paths, error) {
	out, err := filepath.Abs(cfg.Pipeline.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}

	logsDir := ""
	if cfg.Logging.FilePath != "" {
		logsDir = filepath.Dir(cfg.Logging.FilePath)
	}

	return &Paths{
		OutputDir:    out,
		ManifestFile: filepath.Join(out, ManifestFileName),
		CSVDir:       filepath.Join(out, CSVMirrorDir),
		SQLiteFile:   filepath.Join(out, SQLiteFileName),
		WorkbookFile: filepath.Join(out, WorkbookFileName),
		LogsDir:      logsDir,
	}, nil
}

// TableFile returns the Parquet file of a named table
func (p *Paths) TableFile(name string) string {
	return filepath.Join(p.OutputDir, name+ParquetExt)
}

// CSVFile returns the CSV mirror of a named table
func (p *Paths) CSVFile(name string) string {
	return filepath.Join(p.CSVDir, name+".csv")
}

// EnsureDirectories creates the output directory, and the CSV mirror
// directory when that mirror is enabled.
func (p *Paths) EnsureDirectories(cfg *Config) error {
	dirs := []string{p.OutputDir}
	if cfg.Pipeline.HasMirror(MirrorCSV) {
		dirs = append(dirs, p.CSVDir)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
