// Package spool lists and retrieves a job's spooled files, using the SQL
// services when the host has them and CL commands otherwise.
package spool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/rs/zerolog"
)

// Host is what a strategy needs from a session.
type Host interface {
	ExecuteCommand(ctx context.Context, command string) (*models.CommandResult, error)
	RunQuery(ctx context.Context, query string, fn func(models.SQLRow) error) (bool, error)
	Download(ctx context.Context, remote, local string) (int64, error)
	FileSystem() host.FileSystem
	SpooledFileLister() host.SpooledFileLister
}

// Service is one retrieval strategy.
type Service interface {
	Name() string
	// List returns the job's ready spooled files that have content.
	List(ctx context.Context, job models.JobIdentifier) (models.SpooledFiles, error)
	// Write stores the entry's text, UTF-8 encoded, at destination.
	Write(ctx context.Context, file models.SpooledFile, destination string) error
}

const probeQuery = "SELECT COUNT(*) AS ROUTINES FROM QSYS2.SYSROUTINES WHERE ROUTINE_NAME IN ('SPOOLED_FILE_DATA', 'SPOOLED_FILE_INFO')"

// Select probes the host for the SQL spooled file services and returns the SQL
// strategy when both exist. A failing probe falls back to commands.
func Select(ctx context.Context, h Host, logger zerolog.Logger) Service {
	var count int64
	_, err := h.RunQuery(ctx, probeQuery, func(row models.SQLRow) error {
		count, _ = row.Int64("ROUTINES")
		return nil
	})
	if err != nil {
		logger.Info().Err(err).Msg("Failed to check for SQL spooled file services")
	}

	if count == 2 {
		logger.Debug().Msg("Using SQL spooled files handler")
		return &SQLService{host: h, logger: logger}
	}
	logger.Debug().Msg("Using CL spooled files handler")
	return &CommandService{host: h, logger: logger}
}

// WriteAll writes every file into dir, optionally clearing dir first.
func WriteAll(ctx context.Context, svc Service, files models.SpooledFiles, dir string, clear bool) (int, error) {
	if clear {
		if err := os.RemoveAll(dir); err != nil {
			return 0, fmt.Errorf("failed to clear %s: %w", dir, err)
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	written := 0
	for _, f := range files {
		if err := svc.Write(ctx, f, filepath.Join(dir, f.FileName())); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func existing(files models.SpooledFiles) models.SpooledFiles {
	out := models.SpooledFiles{}
	for _, f := range files {
		if f.Exists() {
			out = append(out, f)
		}
	}
	return out
}

func writeUTF8(destination, content string) error {
	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return err
	}
	return os.WriteFile(destination, []byte(content), 0644)
}

// quote renders a SQL string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
