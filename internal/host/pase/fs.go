package pase

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/graceinfra/ibmisteps/internal/models"
)

const statScript = `p=%s
if [ -d "$p" ]; then echo "d 0"
elif [ -e "$p" ]; then echo "f $(wc -c < "$p")"
else echo "missing"; fi`

const listScript = `cd %s || exit 2
for f in * .[!.]* ..?*; do
  [ -e "$f" ] || continue
  if [ -d "$f" ]; then echo "d 0 $f"; else echo "f $(wc -c < "$f") $f"; fi
done`

// fileSystem drives the integrated file system with plain shell utilities.
type fileSystem struct {
	t   transport
	run runner
	// tag marks new files with a CCSID using the PASE touch extension.
	tag bool
}

func (f *fileSystem) Stat(ctx context.Context, p string) (host.FileInfo, error) {
	lines, code, err := f.run(ctx, fmt.Sprintf(statScript, quote(p)))
	if err != nil {
		return host.FileInfo{}, err
	}
	if code != 0 || len(lines) == 0 {
		return host.FileInfo{}, fmt.Errorf("stat %s failed: %s", p, strings.Join(lines, " "))
	}
	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) == 0 || fields[0] == "missing" {
		return host.FileInfo{}, fmt.Errorf("%s: %w", p, models.ErrNotExist)
	}
	info, err := fileInfo(path.Dir(p), append(fields, path.Base(p)))
	if err != nil {
		return host.FileInfo{}, err
	}
	info.Path = p
	return info, nil
}

func (f *fileSystem) MkdirAll(ctx context.Context, p string) error {
	lines, code, err := f.run(ctx, "mkdir -p "+quote(p))
	if err != nil {
		return err
	}
	if code != 0 {
		out := strings.Join(lines, " ")
		if strings.Contains(out, "Not a directory") || strings.Contains(out, "File exists") {
			return fmt.Errorf("%s: %w", p, models.ErrNotDirectory)
		}
		return fmt.Errorf("mkdir %s failed: %s", p, out)
	}
	return nil
}

func (f *fileSystem) ReadDir(ctx context.Context, p string) ([]host.FileInfo, error) {
	info, err := f.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if !info.IsDir {
		return nil, fmt.Errorf("%s: %w", p, models.ErrNotDirectory)
	}

	lines, code, err := f.run(ctx, fmt.Sprintf(listScript, quote(p)))
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("listing %s failed: %s", p, strings.Join(lines, " "))
	}

	infos := make([]host.FileInfo, 0, len(lines))
	for _, line := range lines {
		entry, err := fileInfo(p, entryFields(line))
		if err != nil {
			return nil, err
		}
		infos = append(infos, entry)
	}
	return infos, nil
}

// entryFields splits a listing line, tolerating padded wc output.
func entryFields(line string) []string {
	kind, rest, _ := strings.Cut(line, " ")
	size, name, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")
	return []string{kind, size, name}
}

// fileInfo parses "<d|f> <size> <name>".
func fileInfo(dir string, fields []string) (host.FileInfo, error) {
	if len(fields) != 3 {
		return host.FileInfo{}, fmt.Errorf("unexpected listing entry %q", strings.Join(fields, " "))
	}
	size, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return host.FileInfo{}, fmt.Errorf("unexpected size in listing entry %q", strings.Join(fields, " "))
	}
	return host.FileInfo{
		Name:  fields[2],
		Path:  path.Join(dir, fields[2]),
		IsDir: fields[0] == "d",
		Size:  size,
	}, nil
}

func (f *fileSystem) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if _, err := f.Stat(ctx, p); err != nil {
		return nil, err
	}

	r, w := io.Pipe()
	go func() {
		code, stderr, err := f.t.Exec(ctx, "cat "+quote(p), nil, w)
		if err == nil && code != 0 {
			err = fmt.Errorf("reading %s failed: %s", p, strings.TrimSpace(stderr))
		}
		w.CloseWithError(err)
	}()
	return r, nil
}

func (f *fileSystem) Create(ctx context.Context, p string, ccsid int) (io.WriteCloser, error) {
	script := ": > " + quote(p)
	if f.tag {
		script = fmt.Sprintf("[ -e %[1]s ] || touch -C %[2]d %[1]s; %[3]s", quote(p), ccsid, script)
	}
	lines, code, err := f.run(ctx, script)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("creating %s failed: %s", p, strings.Join(lines, " "))
	}

	r, w := io.Pipe()
	done := make(chan error, 1)
	go func() {
		code, stderr, err := f.t.Exec(ctx, "cat >> "+quote(p), r, io.Discard)
		if err == nil && code != 0 {
			err = fmt.Errorf("writing %s failed: %s", p, strings.TrimSpace(stderr))
		}
		r.CloseWithError(err)
		done <- err
	}()
	return &remoteWriter{w: w, done: done}, nil
}

func (f *fileSystem) RemoveAll(ctx context.Context, p string) error {
	lines, code, err := f.run(ctx, "rm -rf "+quote(p))
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("removing %s failed: %s", p, strings.Join(lines, " "))
	}
	return nil
}

// remoteWriter streams into a running cat; Close waits for it to finish.
type remoteWriter struct {
	w    *io.PipeWriter
	done chan error
}

func (w *remoteWriter) Write(p []byte) (int, error) { return w.w.Write(p) }

func (w *remoteWriter) Close() error {
	_ = w.w.Close()
	return <-w.done
}
