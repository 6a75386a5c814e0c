package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stockpipe/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stockpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Monday, cfg.Pipeline.WeekStartDay())
	assert.Equal(t, ',', cfg.Pipeline.DelimiterRune())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  source: raw/market.csv
  output_dir: out
  week_start: Sunday
  mirrors: [csv, SQLite]
  step_timeout: 2m
server:
  port: 9090
`)
	t.Setenv("STOCKPIPE_SERVER_PORT", "7070")
	t.Setenv("STOCKPIPE_PIPELINE_DELIMITER", ";")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "raw/market.csv", cfg.Pipeline.Source)
	assert.Equal(t, "out", cfg.Pipeline.OutputDir)
	assert.Equal(t, time.Sunday, cfg.Pipeline.WeekStartDay())
	assert.Equal(t, []string{"csv", "sqlite"}, cfg.Pipeline.Mirrors)
	assert.True(t, cfg.Pipeline.HasMirror(MirrorSQLite))
	assert.False(t, cfg.Pipeline.HasMirror(MirrorXLSX))
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.StepTimeout)
	assert.Equal(t, 7070, cfg.Server.Port, "env wins over file")
	assert.Equal(t, ';', cfg.Pipeline.DelimiterRune())
	assert.Equal(t, 64, cfg.Server.CacheSize, "defaults survive")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown mirror", "pipeline:\n  mirrors: [parquet2]\n"},
		{"bad weekday", "pipeline:\n  week_start: someday\n"},
		{"bad format", "pipeline:\n  format: json\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"unknown key", "pipeline:\n  sourc: x\n"},
		{"file output without path", "logging:\n  output: file\n  file_path: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in   string
		want time.Weekday
		ok   bool
	}{
		{"monday", time.Monday, true},
		{" Sunday ", time.Sunday, true},
		{"sat", time.Saturday, true},
		{"mo", time.Sunday, false},
		{"", time.Sunday, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseWeekday(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.OutputDir = t.TempDir()
	cfg.Pipeline.Mirrors = []string{MirrorCSV}

	p, err := NewPaths(cfg)
	require.NoError(t, err)
	require.NoError(t, p.EnsureDirectories(cfg))

	assert.Equal(t, filepath.Join(cfg.Pipeline.OutputDir, "agg_daily.parquet"), p.TableFile("agg_daily"))
	assert.Equal(t, filepath.Join(cfg.Pipeline.OutputDir, "manifest.json"), p.ManifestFile)
	assert.DirExists(t, p.CSVDir)
	assert.Equal(t, filepath.Join(p.CSVDir, "cleaned.csv"), p.CSVFile("cleaned"))
}
