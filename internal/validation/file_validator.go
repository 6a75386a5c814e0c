package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "stockpipe/internal/errors"
)

// sourceExtensions are the file types a directory source is scanned for
var sourceExtensions = map[string]bool{
	".csv":  true,
	".txt":  true,
	".xlsx": true,
	".xlsm": true,
}

// FileValidator checks pipeline inputs and outputs on disk before a run
// touches them
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With(slog.String("component", "file_validator")),
	}
}

// ResolveSource returns the file a run should read. A directory resolves to
// the most recently modified market file inside it. Every failure is a
// SOURCE_UNAVAILABLE error.
func (v *FileValidator) ResolveSource(path string) (string, error) {
	if path == "" {
		return "", apperrors.NewSourceUnavailableError(path, errors.New("no source configured"))
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			v.logger.Error("source does not exist", slog.String("source", path))
		}
		return "", apperrors.NewSourceUnavailableError(path, err)
	}

	if info.IsDir() {
		latest, err := v.latestSourceFile(path)
		if err != nil {
			return "", err
		}
		v.logger.Info("source directory resolved",
			slog.String("directory", path),
			slog.String("source", latest))
		path = latest
	}

	if err := v.ValidateFile(path); err != nil {
		return "", apperrors.NewSourceUnavailableError(path, err)
	}
	return path, nil
}

// ValidateFile checks that path is a readable regular file that is not an
// office lock file
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if isLockFile(filepath.Base(path)) {
		v.logger.Warn("refusing temporary lock file", slog.String("file", path))
		return fmt.Errorf("%s is a temporary lock file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputDirectory checks that dir exists and accepts new files
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("output directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path %s is not a directory", dir)
	}

	probe, err := os.CreateTemp(dir, ".write_test-*")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}

func (v *FileValidator) latestSourceFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", apperrors.NewSourceUnavailableError(dir, err)
	}

	type candidate struct {
		path string
		info fs.FileInfo
	}
	var found []candidate
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || isLockFile(name) || !sourceExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{path: filepath.Join(dir, name), info: info})
	}

	if len(found) == 0 {
		v.logger.Warn("no market files in source directory", slog.String("directory", dir))
		return "", apperrors.NewSourceUnavailableError(dir, errors.New("no csv or xlsx files found"))
	}

	// newest first, name breaks ties so the choice is stable
	sort.Slice(found, func(i, j int) bool {
		ti, tj := found[i].info.ModTime(), found[j].info.ModTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return found[i].path > found[j].path
	})
	return found[0].path, nil
}

func isLockFile(name string) bool {
	return strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".~lock.")
}
