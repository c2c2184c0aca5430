package spool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/rs/zerolog"
)

// CommandService copies spooled files to stream files with CL commands. It
// works on every release but leaves a scratch folder on the host while running.
type CommandService struct {
	host   Host
	logger zerolog.Logger
}

func (s *CommandService) Name() string { return "command" }

func (s *CommandService) List(ctx context.Context, job models.JobIdentifier) (files models.SpooledFiles, err error) {
	list, err := s.host.SpooledFileLister().Open(ctx, job)
	if err != nil {
		return nil, &models.SpooledFileError{Job: job, Err: err}
	}
	defer func() {
		if closeErr := list.Close(); closeErr != nil && err == nil {
			err = &models.SpooledFileError{Job: job, Err: closeErr}
		}
	}()

	for {
		f, nextErr := list.Next(ctx)
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			return nil, &models.SpooledFileError{Job: job, Err: nextErr}
		}
		files = append(files, f)
	}
	return existing(files), nil
}

func (s *CommandService) Write(ctx context.Context, file models.SpooledFile, destination string) error {
	workFolder := path.Join("/tmp", uuid.NewString()+".ibmisteps.temp")
	defer s.cleanup(context.WithoutCancel(ctx), workFolder)

	fail := func(err error) error {
		return &models.SpooledFileError{Job: file.Job, File: file.FileName(), Err: err}
	}

	if err := s.host.FileSystem().MkdirAll(ctx, workFolder); err != nil {
		return fail(fmt.Errorf("failed to create work folder %s: %w", workFolder, err))
	}
	targetFile := path.Join(workFolder, file.FileName())
	workFile := targetFile + ".work"

	cpysplf := fmt.Sprintf("CPYSPLF FILE(%s) SPLNBR(%d) TOFILE(*TOSTMF) JOB(%s) TOSTMF('%s')",
		file.Name, file.Number, file.Job, workFile)
	if err := s.run(ctx, cpysplf); err != nil {
		return fail(err)
	}

	cpy := fmt.Sprintf("CPY OBJ('%s') TOOBJ('%s') TOCCSID(1208) DTAFMT(*TEXT)", workFile, targetFile)
	if err := s.run(ctx, cpy); err != nil {
		return fail(err)
	}

	s.logger.Debug().Msgf("Downloading %s into %s", targetFile, destination)
	if _, err := s.host.Download(ctx, targetFile, destination); err != nil {
		return fail(err)
	}
	return nil
}

func (s *CommandService) run(ctx context.Context, command string) error {
	result, err := s.host.ExecuteCommand(ctx, command)
	if err != nil {
		return err
	}
	if !result.Successful {
		return &models.CommandError{Command: result.Command, Result: result}
	}
	return nil
}

func (s *CommandService) cleanup(ctx context.Context, workFolder string) {
	rmdir := fmt.Sprintf("RMDIR DIR('%s') SUBTREE(*ALL) RMVLNK(*YES)", workFolder)
	result, err := s.host.ExecuteCommand(ctx, rmdir)
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Msgf("Failed to clear temporary directory %s", workFolder)
	case !result.Successful:
		s.logger.Warn().Msgf("Failed to clear temporary directory %s: %s", workFolder, result.PrettyMessages(""))
	}
}
