package steps

import (
	"context"
	"fmt"

	"github.com/graceinfra/ibmisteps/internal/charset"
	execctx "github.com/graceinfra/ibmisteps/internal/context"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/internal/transfer"
	"github.com/graceinfra/ibmisteps/types"
	"github.com/rs/zerolog"
)

// defaultUploadCCSID tags new stream files as UTF-8.
const defaultUploadCCSID = 1208

// GetIFSHandler copies a host file or folder into a local folder.
type GetIFSHandler struct{}

func (h *GetIFSHandler) Type() string {
	return "getifs"
}

func (h *GetIFSHandler) Validate(step *types.Step) []string {
	return required(step, "from", "to")
}

func (h *GetIFSHandler) Execute(ctx context.Context, ec *execctx.ExecutionContext, step *types.Step, record *models.StepExecutionRecord, logger zerolog.Logger) error {
	from := step.String("from")
	to := localPath(ec, step.String("to"))

	s, err := ec.Session(ctx)
	if err != nil {
		return err
	}

	logger.Info().Msgf("Copying %s into %s", from, to)
	n, err := transfer.GetTree(ctx, s.FileSystem(), from, to)
	record.BytesMoved = n
	if err != nil {
		return err
	}
	logger.Info().Msgf("✓ Copied %d bytes", n)
	return nil
}

// PutIFSHandler copies a local file or folder into a host folder. New files
// are tagged with 'ccsid', 1208 by default.
type PutIFSHandler struct{}

func (h *PutIFSHandler) Type() string {
	return "putifs"
}

func (h *PutIFSHandler) Validate(step *types.Step) []string {
	errs := required(step, "from", "to")
	_, ccsidErrs := ccsidParam(step, "ccsid", defaultUploadCCSID)
	return append(errs, ccsidErrs...)
}

func (h *PutIFSHandler) Execute(ctx context.Context, ec *execctx.ExecutionContext, step *types.Step, record *models.StepExecutionRecord, logger zerolog.Logger) error {
	from := localPath(ec, step.String("from"))
	to := step.String("to")
	ccsid, _ := ccsidParam(step, "ccsid", defaultUploadCCSID)

	s, err := ec.Session(ctx)
	if err != nil {
		return err
	}

	logger.Info().Msgf("Copying %s into %s (CCSID %d)", from, to, ccsid)
	n, err := transfer.PutTree(ctx, s.FileSystem(), from, to, ccsid)
	record.BytesMoved = n
	if err != nil {
		return err
	}
	logger.Info().Msgf("✓ Copied %d bytes", n)
	return nil
}

// ccsidParam reads an optional CCSID parameter.
func ccsidParam(step *types.Step, key string, def int) (int, []string) {
	ccsid, err := step.Int(key, def)
	if err != nil {
		return 0, []string{err.Error()}
	}
	switch {
	case !charset.Valid(ccsid):
		return 0, []string{fmt.Sprintf("parameter '%s': %d is outside %d-%d", key, ccsid, charset.MinCCSID, charset.MaxCCSID)}
	case ccsid == charset.Problematic:
		return 0, []string{fmt.Sprintf("parameter '%s': CCSID %d is not supported", key, ccsid)}
	}
	return ccsid, nil
}
