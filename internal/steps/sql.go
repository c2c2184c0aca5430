package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	execctx "github.com/graceinfra/ibmisteps/internal/context"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/types"
	"github.com/rs/zerolog"
)

// SQLHandler runs one SQL statement. With 'to', a row set is also written to
// a local file: JSON when the name ends in .json, CSV otherwise.
type SQLHandler struct{}

func (h *SQLHandler) Type() string {
	return "sql"
}

func (h *SQLHandler) Validate(step *types.Step) []string {
	return required(step, "sql")
}

func (h *SQLHandler) Execute(ctx context.Context, ec *execctx.ExecutionContext, step *types.Step, record *models.StepExecutionRecord, logger zerolog.Logger) error {
	statement := step.String("sql")

	s, err := ec.Session(ctx)
	if err != nil {
		return err
	}

	logger.Info().Msgf("Running SQL %s", statement)
	result, err := s.Execute(ctx, statement)
	if err != nil {
		logger.Error().Err(err).Msg("SQL statement failed")
		return err
	}
	record.SQLResult = result

	if !result.IsQuery() {
		logger.Debug().Msgf("%d row(s) updated", result.UpdateCount)
		return nil
	}
	logger.Debug().Msgf("%d row(s) returned", result.RowCount())

	if to := step.String("to"); to != "" {
		target := localPath(ec, to)
		if err := writeResult(result, target); err != nil {
			return err
		}
		logger.Info().Msgf("Wrote %d row(s) to %s", result.RowCount(), target)
	}
	return nil
}

func writeResult(result *models.SQLResult, target string) error {
	var content string
	var err error
	if strings.EqualFold(filepath.Ext(target), ".json") {
		content, err = result.JSON()
	} else {
		content, err = result.CSV()
	}
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}
	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}
