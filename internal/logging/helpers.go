package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/graceinfra/ibmisteps/internal/models"
)

// BaseDir holds every run's log directory.
var BaseDir = filepath.Join(".ibmisteps", "logs")

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// LogDirName returns the directory name of a run, like
// "20250423T213245_run_3c43e9f4-9026-4d04-ba06-054e8903e80a".
func LogDirName(runID uuid.UUID, startTime time.Time, cmdName string) string {
	return fmt.Sprintf("%s_%s_%s", startTime.Format("20060102T150405"), cmdName, runID)
}

// CreateLogDir creates and returns BaseDir/LogDirName(...).
func CreateLogDir(runID uuid.UUID, startTime time.Time, cmdName string) (string, error) {
	fullPath := filepath.Join(BaseDir, LogDirName(runID, startTime, cmdName))
	if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create log directory '%s': %w", fullPath, err)
	}
	return fullPath, nil
}

// StepRecordFile is the file name of a step record, e.g. 03_COMPILE.json.
func StepRecordFile(index int, stepName string) string {
	name := unsafeFileChars.ReplaceAllString(strings.ToUpper(stepName), "_")
	return fmt.Sprintf("%02d_%s.json", index+1, name)
}

// SaveStepRecord stores the detailed record of a single step.
func SaveStepRecord(logDir string, record *models.StepExecutionRecord) (string, error) {
	filePath := filepath.Join(logDir, StepRecordFile(record.Index, record.StepName))
	if err := writeJSON(filePath, record); err != nil {
		return "", fmt.Errorf("failed to save record of step %q: %w", record.StepName, err)
	}
	return filePath, nil
}

// SaveSummary writes summary.json into logDir.
func SaveSummary(logDir string, summary *models.ExecutionSummary) error {
	if err := writeJSON(filepath.Join(logDir, "summary.json"), summary); err != nil {
		return fmt.Errorf("failed to save execution summary: %w", err)
	}
	return nil
}

func writeJSON(filePath string, v any) error {
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
