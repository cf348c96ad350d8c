package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReportArchive writes batch reports as JSON files into a directory.
type ReportArchive struct {
	Dir    string
	logger *zap.Logger
}

func NewReportArchive(dir string, logger *zap.Logger) *ReportArchive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportArchive{Dir: dir, logger: logger}
}

// SaveJSON saves the provided data as JSON to a file with a random UUID filename
// and returns the file name.
func (a *ReportArchive) SaveJSON(data any) (string, error) {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	filename := uuid.NewString() + ".json"
	path := filepath.Join(a.Dir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	a.logger.Debug("saved report", zap.String("path", path))
	return filename, nil
}
