package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Step statuses recorded for each pipeline step.
const (
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusSkipped   = "SKIPPED"
)

// ExecutionSummary holds the overall results of a pipeline run.
type ExecutionSummary struct {
	RunID           uuid.UUID     `json:"run_id"`
	RunStartTime    string        `json:"run_start_time"`
	Command         string        `json:"command"`
	Server          string        `json:"server"`
	Host            string        `json:"host"`
	StoragePool     string        `json:"storage_pool"`
	Initiator       Initiator     `json:"initiator"`
	Steps           []StepSummary `json:"steps"`
	OverallStatus   string        `json:"overall_status"` // "Success", "Failed", "Skipped"
	TotalDurationMs int64         `json:"total_duration_ms"`
	StepsSucceeded  int           `json:"steps_succeeded"`
	StepsFailed     int           `json:"steps_failed"`
	StepsSkipped    int           `json:"steps_skipped"`
	FirstFailure    *StepSummary  `json:"first_failure,omitempty"`
}

// StepSummary provides a concise overview of a single step for the summary file.
type StepSummary struct {
	StepName   string `json:"step_name"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	StartTime  string `json:"start_time"`  // RFC3339
	FinishTime string `json:"finish_time"` // RFC3339
	DurationMs int64  `json:"duration_ms"`
	LogFile    string `json:"log_file"`
}

// StepExecutionRecord contains everything about one step's execution.
// It is saved to the step's own log file (e.g., 03_BUILD.json).
type StepExecutionRecord struct {
	Index    int       `json:"index"`
	StepName string    `json:"step_name"`
	Type     string    `json:"type"`
	Status   string    `json:"status"`
	RunID    uuid.UUID `json:"run_id"`
	Server   string    `json:"server"`

	StartTime  string `json:"start_time"`
	FinishTime string `json:"finish_time"`
	DurationMs int64  `json:"duration_ms"`

	Error string `json:"error,omitempty"`

	// Exactly one of these is set depending on the step type
	CommandResult *CommandResult   `json:"command_result,omitempty"`
	SQLResult     *SQLResult       `json:"sql_result,omitempty"`
	SpooledFiles  SpooledFiles     `json:"spooled_files,omitempty"`
	SaveFile      *SaveFileContent `json:"save_file,omitempty"`
	Shell         *ShellExec       `json:"shell,omitempty"`
	JobWait       string           `json:"job_wait,omitempty"`
	BytesMoved    int64            `json:"bytes_moved,omitempty"`
}

// Initiator stores who started a run: a user, a service account or a CI pipeline.
type Initiator struct {
	Type string `json:"type"` // "user", "ci"
	Id   string `json:"id"`
}

// ShellExec is the outcome of a PASE shell command.
type ShellExec struct {
	Code   int    `json:"code"`
	Output string `json:"output"`
}

func (s ShellExec) String() string {
	return fmt.Sprintf("Code %d; Output: %s", s.Code, s.Output)
}
