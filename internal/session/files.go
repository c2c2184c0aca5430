package session

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/internal/transfer"
)

// TempDir is where host-side scratch files are created.
const TempDir = "/tmp"

// TempPath returns a fresh, unique path under TempDir.
func TempPath() string {
	return path.Join(TempDir, uuid.NewString()+".ibmisteps.temp")
}

// WithTempFile runs fn with a unique host path that is removed before and after.
// Removal failures are logged only.
func (s *Session) WithTempFile(ctx context.Context, fn func(tempPath string) error) error {
	fs := s.conn.FileSystem()
	temp := TempPath()
	s.removeQuietly(ctx, fs, temp)
	defer s.removeQuietly(context.WithoutCancel(ctx), fs, temp)
	return fn(temp)
}

func (s *Session) removeQuietly(ctx context.Context, fs host.FileSystem, p string) {
	if _, err := fs.Stat(ctx, p); errors.Is(err, models.ErrNotExist) {
		return
	}
	if err := fs.RemoveAll(ctx, p); err != nil {
		s.logger.Warn().Err(err).Msgf("Failed to remove temporary file %s", p)
	}
}

func (s *Session) FileSystem() host.FileSystem {
	return s.conn.FileSystem()
}

func (s *Session) SpooledFileLister() host.SpooledFileLister {
	return s.conn.SpooledFiles()
}

func (s *Session) Jobs() host.JobService {
	return s.conn.Jobs()
}

// Download copies a single host file to a local path.
func (s *Session) Download(ctx context.Context, remote, local string) (int64, error) {
	return transfer.Download(ctx, s.conn.FileSystem(), remote, local)
}

// Upload copies a local file to the host, tagging a new file with ccsid.
func (s *Session) Upload(ctx context.Context, local, remote string, ccsid int) (int64, error) {
	return transfer.Upload(ctx, s.conn.FileSystem(), local, remote, ccsid)
}

// ExecuteShell runs a PASE shell command.
func (s *Session) ExecuteShell(ctx context.Context, command string) (models.ShellExec, error) {
	if s.isClosed() {
		return models.ShellExec{}, fmt.Errorf("session is disconnected")
	}
	s.logger.Debug().Str("command", command).Msg("Running shell command")
	return s.conn.Shell().Exec(ctx, command)
}

func (s *Session) SaveFiles() host.SaveFileService {
	return s.conn.SaveFiles()
}
