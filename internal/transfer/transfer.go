// Package transfer streams files between the host IFS and the local workspace.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/graceinfra/ibmisteps/internal/charset"
	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/rs/zerolog/log"
)

const bufferSize = 1 << 20

// Download copies one remote file to local, replacing it. Returns bytes moved.
func Download(ctx context.Context, fs host.FileSystem, remote, local string) (int64, error) {
	in, err := fs.Open(ctx, remote)
	if err != nil {
		return 0, transferErr("download", remote, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(local), 0755); err != nil {
		return 0, &models.TransferError{Op: "download", Path: local, Err: err}
	}
	out, err := os.Create(local)
	if err != nil {
		return 0, &models.TransferError{Op: "download", Path: local, Err: err}
	}

	n, err := copyBuffer(ctx, out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, &models.TransferError{Op: "download", Path: remote, Err: fmt.Errorf("partial copy after %d bytes: %w", n, err)}
	}

	log.Debug().Str("from", remote).Str("to", local).Int64("bytes", n).Msg("Downloaded file")
	return n, nil
}

// Upload copies one local file to remote, creating parent directories. ccsid
// tags the file when it is created; 0 means UTF-8.
func Upload(ctx context.Context, fs host.FileSystem, local, remote string, ccsid int) (int64, error) {
	if ccsid <= 0 {
		ccsid = charset.UTF8
	}

	in, err := os.Open(local)
	if err != nil {
		return 0, transferErr("upload", local, err)
	}
	defer in.Close()

	if parent := path.Dir(remote); parent != "." && parent != "/" {
		if err := fs.MkdirAll(ctx, parent); err != nil {
			return 0, &models.TransferError{Op: "upload", Path: parent, Err: err}
		}
	}

	out, err := fs.Create(ctx, remote, ccsid)
	if err != nil {
		return 0, &models.TransferError{Op: "upload", Path: remote, Err: err}
	}

	n, err := copyBuffer(ctx, out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, &models.TransferError{Op: "upload", Path: remote, Err: fmt.Errorf("partial copy after %d bytes: %w", n, err)}
	}

	log.Debug().Str("from", local).Str("to", remote).Int("ccsid", ccsid).Int64("bytes", n).Msg("Uploaded file")
	return n, nil
}

// GetTree copies a remote file or folder into the local folder toDir.
func GetTree(ctx context.Context, fs host.FileSystem, from, toDir string) (int64, error) {
	info, err := fs.Stat(ctx, from)
	if err != nil {
		return 0, transferErr("download", from, err)
	}
	if err := ensureLocalDir(toDir); err != nil {
		return 0, err
	}
	if !info.IsDir {
		return Download(ctx, fs, info.Path, filepath.Join(toDir, info.Name))
	}
	return getFolder(ctx, fs, info.Path, toDir)
}

func getFolder(ctx context.Context, fs host.FileSystem, folder, toDir string) (int64, error) {
	items, err := fs.ReadDir(ctx, folder)
	if err != nil {
		return 0, transferErr("download", folder, err)
	}
	if err := os.MkdirAll(toDir, 0755); err != nil {
		return 0, &models.TransferError{Op: "download", Path: toDir, Err: err}
	}

	var total int64
	for _, item := range items {
		var n int64
		if item.IsDir {
			n, err = getFolder(ctx, fs, item.Path, filepath.Join(toDir, item.Name))
		} else {
			n, err = Download(ctx, fs, item.Path, filepath.Join(toDir, item.Name))
		}
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// PutTree copies a local file or folder into the remote folder toDir.
func PutTree(ctx context.Context, fs host.FileSystem, from, toDir string, ccsid int) (int64, error) {
	info, err := os.Stat(from)
	if err != nil {
		return 0, transferErr("upload", from, err)
	}

	target, err := fs.Stat(ctx, toDir)
	switch {
	case errors.Is(err, models.ErrNotExist):
		if err := fs.MkdirAll(ctx, toDir); err != nil {
			return 0, &models.TransferError{Op: "upload", Path: toDir, Err: err}
		}
	case err != nil:
		return 0, &models.TransferError{Op: "upload", Path: toDir, Err: err}
	case !target.IsDir:
		return 0, &models.TransferError{Op: "upload", Path: toDir, Reason: models.ErrNotDirectory}
	}

	if !info.IsDir() {
		return Upload(ctx, fs, from, path.Join(toDir, info.Name()), ccsid)
	}
	return putFolder(ctx, fs, from, toDir, ccsid)
}

func putFolder(ctx context.Context, fs host.FileSystem, folder, toDir string, ccsid int) (int64, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return 0, &models.TransferError{Op: "upload", Path: folder, Err: err}
	}
	if err := fs.MkdirAll(ctx, toDir); err != nil {
		return 0, &models.TransferError{Op: "upload", Path: toDir, Err: err}
	}

	var total int64
	for _, entry := range entries {
		var n int64
		local := filepath.Join(folder, entry.Name())
		remote := path.Join(toDir, entry.Name())
		if entry.IsDir() {
			n, err = putFolder(ctx, fs, local, remote, ccsid)
		} else {
			n, err = Upload(ctx, fs, local, remote, ccsid)
		}
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func ensureLocalDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &models.TransferError{Op: "download", Path: dir, Err: err}
		}
		return nil
	case err != nil:
		return &models.TransferError{Op: "download", Path: dir, Err: err}
	case !info.IsDir():
		return &models.TransferError{Op: "download", Path: dir, Reason: models.ErrNotDirectory}
	}
	return nil
}

func copyBuffer(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, bufferSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			written, werr := dst.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				return total, werr
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

func transferErr(op, p string, err error) error {
	if errors.Is(err, models.ErrNotExist) || os.IsNotExist(err) {
		return &models.TransferError{Op: op, Path: p, Reason: models.ErrNotExist}
	}
	return &models.TransferError{Op: op, Path: p, Err: err}
}
