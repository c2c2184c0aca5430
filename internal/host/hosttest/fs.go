package hosttest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/graceinfra/ibmisteps/internal/models"
)

type node struct {
	dir   bool
	data  []byte
	ccsid int
}

// FileSystem is an in-memory IFS rooted at "/".
type FileSystem struct {
	mu    sync.Mutex
	nodes map[string]*node

	// FailCreate makes Create fail for paths with this prefix.
	FailCreate string
}

func NewFileSystem() *FileSystem {
	return &FileSystem{nodes: map[string]*node{"/": {dir: true}}}
}

func clean(p string) string {
	return path.Clean("/" + p)
}

// WriteFile seeds a file, creating parent directories.
func (f *FileSystem) WriteFile(p string, data []byte, ccsid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = clean(p)
	f.mkdirAll(path.Dir(p))
	f.nodes[p] = &node{data: append([]byte(nil), data...), ccsid: ccsid}
}

// ReadFile returns a file's content and CCSID.
func (f *FileSystem) ReadFile(p string) ([]byte, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[clean(p)]
	if !ok || n.dir {
		return nil, 0, false
	}
	return append([]byte(nil), n.data...), n.ccsid, true
}

// Exists reports whether p is present.
func (f *FileSystem) Exists(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[clean(p)]
	return ok
}

func (f *FileSystem) mkdirAll(p string) {
	for cur := clean(p); ; cur = path.Dir(cur) {
		if _, ok := f.nodes[cur]; !ok {
			f.nodes[cur] = &node{dir: true}
		}
		if cur == "/" {
			return
		}
	}
}

func (f *FileSystem) Stat(ctx context.Context, p string) (host.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = clean(p)
	n, ok := f.nodes[p]
	if !ok {
		return host.FileInfo{}, fmt.Errorf("%s: %w", p, models.ErrNotExist)
	}
	return host.FileInfo{Name: path.Base(p), Path: p, IsDir: n.dir, Size: int64(len(n.data))}, nil
}

func (f *FileSystem) MkdirAll(ctx context.Context, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for cur := clean(p); cur != "/"; cur = path.Dir(cur) {
		if n, ok := f.nodes[cur]; ok && !n.dir {
			return fmt.Errorf("%s: %w", cur, models.ErrNotDirectory)
		}
	}
	f.mkdirAll(p)
	return nil
}

func (f *FileSystem) ReadDir(ctx context.Context, p string) ([]host.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = clean(p)
	n, ok := f.nodes[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, models.ErrNotExist)
	}
	if !n.dir {
		return nil, fmt.Errorf("%s: %w", p, models.ErrNotDirectory)
	}
	var infos []host.FileInfo
	for name, child := range f.nodes {
		if name != "/" && path.Dir(name) == p {
			infos = append(infos, host.FileInfo{Name: path.Base(name), Path: name, IsDir: child.dir, Size: int64(len(child.data))})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (f *FileSystem) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = clean(p)
	n, ok := f.nodes[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, models.ErrNotExist)
	}
	if n.dir {
		return nil, fmt.Errorf("%s is a directory", p)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), n.data...))), nil
}

func (f *FileSystem) Create(ctx context.Context, p string, ccsid int) (io.WriteCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = clean(p)
	if f.FailCreate != "" && strings.HasPrefix(p, f.FailCreate) {
		return nil, fmt.Errorf("%s: permission denied", p)
	}
	parent, ok := f.nodes[path.Dir(p)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path.Dir(p), models.ErrNotExist)
	}
	if !parent.dir {
		return nil, fmt.Errorf("%s: %w", path.Dir(p), models.ErrNotDirectory)
	}
	if existing, ok := f.nodes[p]; ok {
		if existing.dir {
			return nil, fmt.Errorf("%s is a directory", p)
		}
		ccsid = existing.ccsid
	}
	f.nodes[p] = &node{ccsid: ccsid}
	return &writer{fs: f, path: p, ccsid: ccsid}, nil
}

func (f *FileSystem) RemoveAll(ctx context.Context, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = clean(p)
	for name := range f.nodes {
		if name == p || strings.HasPrefix(name, p+"/") {
			delete(f.nodes, name)
		}
	}
	return nil
}

type writer struct {
	fs    *FileSystem
	path  string
	ccsid int
	buf   bytes.Buffer
}

func (w *writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	w.fs.nodes[w.path] = &node{data: w.buf.Bytes(), ccsid: w.ccsid}
	return nil
}
