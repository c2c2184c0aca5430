package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/graceinfra/ibmisteps/internal/config"
	execctx "github.com/graceinfra/ibmisteps/internal/context"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/internal/savf"
	"github.com/graceinfra/ibmisteps/types"
	"github.com/rs/zerolog"
)

// GetSAVFHandler downloads a save file to 'toFile'.
type GetSAVFHandler struct{}

func (h *GetSAVFHandler) Type() string {
	return "getsavf"
}

func (h *GetSAVFHandler) Validate(step *types.Step) []string {
	return append(validateSaveFile(step), required(step, "toFile")...)
}

func (h *GetSAVFHandler) Execute(ctx context.Context, ec *execctx.ExecutionContext, step *types.Step, record *models.StepExecutionRecord, logger zerolog.Logger) error {
	library, name := saveFileName(step)
	toFile := localPath(ec, step.String("toFile"))

	s, err := ec.Session(ctx)
	if err != nil {
		return err
	}

	content, err := savf.Get(ctx, s, library, name, toFile)
	if err != nil {
		return err
	}
	record.SaveFile = content
	record.BytesMoved = content.Size()
	logger.Info().Msgf("✓ Saved %s/%s to %s (%d object(s))", library, name, toFile, len(content.Entries()))
	return nil
}

// PutSAVFHandler uploads 'fromFile' into a save file, creating or replacing it.
type PutSAVFHandler struct{}

func (h *PutSAVFHandler) Type() string {
	return "putsavf"
}

func (h *PutSAVFHandler) Validate(step *types.Step) []string {
	return append(validateSaveFile(step), required(step, "fromFile")...)
}

func (h *PutSAVFHandler) Execute(ctx context.Context, ec *execctx.ExecutionContext, step *types.Step, record *models.StepExecutionRecord, logger zerolog.Logger) error {
	library, name := saveFileName(step)
	fromFile := localPath(ec, step.String("fromFile"))

	s, err := ec.Session(ctx)
	if err != nil {
		return err
	}

	content, err := savf.Put(ctx, s, fromFile, library, name)
	if err != nil {
		return err
	}
	record.SaveFile = content
	record.BytesMoved = content.Size()
	logger.Info().Msgf("✓ Restored %s into %s/%s", fromFile, library, name)
	return nil
}

func validateSaveFile(step *types.Step) []string {
	errs := required(step, "library", "name")
	for _, key := range []string{"library", "name"} {
		if v := step.String(key); v != "" && !config.ValidObjectName(strings.TrimSpace(v)) {
			errs = append(errs, fmt.Sprintf("parameter '%s': %q is not a valid object name", key, v))
		}
	}
	return errs
}

func saveFileName(step *types.Step) (string, string) {
	return strings.ToUpper(strings.TrimSpace(step.String("library"))),
		strings.ToUpper(strings.TrimSpace(step.String("name")))
}
