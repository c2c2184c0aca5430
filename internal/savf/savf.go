// Package savf moves save files between the host and the local workspace.
//
// Save files are copied through a temporary stream file: CPYTOSTMF on the way
// out, CPYFRMSTMF on the way in.
package savf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/rs/zerolog"
)

// binaryCCSID tags the temporary stream file as untranslated data.
const binaryCCSID = 65535

// Host is the part of a session save file transfers use.
type Host interface {
	ExecuteCommand(ctx context.Context, command string) (*models.CommandResult, error)
	WithTempFile(ctx context.Context, fn func(tempPath string) error) error
	Download(ctx context.Context, remote, local string) (int64, error)
	Upload(ctx context.Context, local, remote string, ccsid int) (int64, error)
	SaveFiles() host.SaveFileService
	Release() models.SystemRelease
	SystemName() string
	Logger() zerolog.Logger
}

// Path returns the integrated file system path of a save file.
func Path(library, name string) string {
	library, name = strings.ToUpper(library), strings.ToUpper(name)
	if library == "QSYS" {
		return fmt.Sprintf("/QSYS.LIB/%s.FILE", name)
	}
	return fmt.Sprintf("/QSYS.LIB/%s.LIB/%s.FILE", library, name)
}

// Get downloads library/name to localFile and returns its content.
func Get(ctx context.Context, h Host, library, name, localFile string) (*models.SaveFileContent, error) {
	logger := h.Logger()
	desc, err := h.SaveFiles().Describe(ctx, library, name)
	if err != nil {
		if errors.Is(err, models.ErrNotExist) {
			return nil, &models.TransferError{Op: "download", Path: library + "/" + name, Reason: models.ErrNotExist, Err: err}
		}
		return nil, &models.TransferError{Op: "download", Path: library + "/" + name, Err: err}
	}

	logger.Info().Msgf("Downloading save file %s/%s to %s (%d bytes)", library, name, localFile, desc.Size)
	err = h.WithTempFile(ctx, func(temp string) error {
		command := fmt.Sprintf("CPYTOSTMF FROMMBR('%s') TOSTMF('%s') STMFOPT(*REPLACE)", Path(library, name), temp)
		logger.Debug().Msgf("Running %s", command)
		if err := runChecked(ctx, h, command); err != nil {
			return err
		}

		logger.Debug().Msgf("Downloading %s to %s", temp, localFile)
		_, err := h.Download(ctx, temp, localFile)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snapshot(ctx, h, library, name)
}

// Put uploads localFile into library/name, replacing its content.
func Put(ctx context.Context, h Host, localFile, library, name string) (*models.SaveFileContent, error) {
	logger := h.Logger()
	info, err := os.Stat(localFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &models.TransferError{Op: "upload", Path: localFile, Reason: models.ErrNotExist, Err: err}
		}
		return nil, &models.TransferError{Op: "upload", Path: localFile, Err: err}
	}

	logger.Info().Msgf("Uploading %s to save file %s/%s (%d bytes)", localFile, library, name, info.Size())
	err = h.WithTempFile(ctx, func(temp string) error {
		logger.Debug().Msgf("Uploading %s to %s", localFile, temp)
		if _, err := h.Upload(ctx, localFile, temp, binaryCCSID); err != nil {
			return err
		}

		command := fmt.Sprintf("CPYFRMSTMF FROMSTMF('%s') TOMBR('%s') MBROPT(*REPLACE)", temp, Path(library, name))
		logger.Debug().Msgf("Running %s", command)
		return runChecked(ctx, h, command)
	})
	if err != nil {
		return nil, err
	}
	return snapshot(ctx, h, library, name)
}

func runChecked(ctx context.Context, h Host, command string) error {
	result, err := h.ExecuteCommand(ctx, command)
	if err != nil {
		return err
	}
	if !result.Successful {
		return &models.CommandError{Command: command, Result: result}
	}
	return nil
}

func snapshot(ctx context.Context, h Host, library, name string) (*models.SaveFileContent, error) {
	savf := h.SaveFiles()
	desc, err := savf.Describe(ctx, library, name)
	if err != nil {
		return nil, fmt.Errorf("failed to describe save file %s/%s: %w", library, name, err)
	}
	entries, err := savf.Entries(ctx, library, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list save file %s/%s: %w", library, name, err)
	}
	return models.NewSaveFileContent(desc, h.Release(), h.SystemName(), entries), nil
}
