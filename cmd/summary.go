package cmd

import (
	"os"
	"path/filepath"
	"time"

	execctx "github.com/graceinfra/ibmisteps/internal/context"
	"github.com/graceinfra/ibmisteps/internal/logging"
	"github.com/graceinfra/ibmisteps/internal/models"
)

const (
	overallSuccess = "Success"
	overallFailed  = "Failed"
	overallSkipped = "Skipped"
)

// generateExecutionSummary condenses the step records of a run. pool is the
// storage pool the session ended in, empty when no session was opened.
func generateExecutionSummary(records []*models.StepExecutionRecord, ec *execctx.ExecutionContext, pool string) models.ExecutionSummary {
	logDirBaseName := logging.LogDirName(ec.RunID, ec.RunStartTime, ec.Command)

	stepSummaries := make([]models.StepSummary, 0, len(records))
	succeeded, failed, skipped := 0, 0, 0
	firstFailure := -1

	for _, record := range records {
		stepSummaries = append(stepSummaries, models.StepSummary{
			StepName:   record.StepName,
			Type:       record.Type,
			Status:     record.Status,
			StartTime:  record.StartTime,
			FinishTime: record.FinishTime,
			DurationMs: record.DurationMs,
			LogFile:    filepath.Join(logDirBaseName, logging.StepRecordFile(record.Index, record.StepName)),
		})

		switch record.Status {
		case models.StatusSucceeded:
			succeeded++
		case models.StatusFailed:
			failed++
			if firstFailure < 0 {
				firstFailure = len(stepSummaries) - 1
			}
		case models.StatusSkipped:
			skipped++
		}
	}

	overallStatus := overallSuccess
	switch {
	case failed > 0:
		overallStatus = overallFailed
	case len(records) > 0 && skipped == len(records):
		overallStatus = overallSkipped
	}

	host := ec.Options.Host
	if host == "" {
		host, _ = os.Hostname()
	}

	summary := models.ExecutionSummary{
		RunID:           ec.RunID,
		RunStartTime:    ec.RunStartTime.Format(time.RFC3339),
		Command:         ec.Command,
		Server:          ec.ServerName(),
		Host:            host,
		StoragePool:     pool,
		Initiator:       initiator(os.Getenv),
		Steps:           stepSummaries,
		OverallStatus:   overallStatus,
		TotalDurationMs: time.Since(ec.RunStartTime).Milliseconds(),
		StepsSucceeded:  succeeded,
		StepsFailed:     failed,
		StepsSkipped:    skipped,
	}
	if firstFailure >= 0 {
		summary.FirstFailure = &stepSummaries[firstFailure]
	}
	return summary
}

// initiator reports a CI pipeline when the usual CI variable is set, the
// local user otherwise.
func initiator(getenv func(string) string) models.Initiator {
	if getenv("CI") != "" {
		id := getenv("GITHUB_RUN_ID")
		if id == "" {
			id = getenv("CI_JOB_ID")
		}
		return models.Initiator{Type: "ci", Id: id}
	}
	return models.Initiator{Type: "user", Id: getenv("USER")}
}
