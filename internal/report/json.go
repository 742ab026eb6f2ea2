package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AElnamaki/simulate/internal/sim"
)

// WriteResult persists the full run result as pretty JSON and returns the
// file path. The write goes through a temp file so a crash never leaves a
// truncated result behind.
func WriteResult(dir string, result *sim.Result) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %v", err)
	}

	filename := fmt.Sprintf("%s_result_%s.json",
		result.Summary.RunID, time.Now().Format("20060102_150405"))
	filePath := filepath.Join(dir, filename)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".result-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp result: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write temp result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close temp result: %w", err)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename result: %w", err)
	}

	return filePath, nil
}
