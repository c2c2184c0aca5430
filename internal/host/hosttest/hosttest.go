// Package hosttest provides a scriptable in-memory host for tests.
package hosttest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/jmoiron/sqlx"
)

// CommandFunc scripts the reply to a CL command.
type CommandFunc func(command string) (bool, []models.Message, error)

// Host is a fake host.Connection. Zero values are usable; set the exported
// fields to script behaviour before dialing.
type Host struct {
	mu sync.Mutex

	ProfileCCSIDValue int
	ProfileCCSIDErr   error
	Info              host.SystemInfo
	CommandJob        models.JobIdentifier
	OnCommand         CommandFunc

	// PoolResponse maps a requested pool (upper case) to the pool the host reports back.
	// Missing entries echo the request, with "*NONE" reported as "".
	PoolResponse map[string]string

	SQLOpener func(ctx context.Context, props host.SQLProperties) (*sqlx.DB, error)
	ShellFunc func(command string) (models.ShellExec, error)

	FS     *FileSystem
	JobsFS *Jobs
	Spool  map[string][]models.SpooledFile // keyed by job String()
	Savf   map[string]SaveFile             // keyed by LIBRARY/NAME

	// Recorded activity
	Commands       []string
	PoolRequests   []string
	SQLProps       []host.SQLProperties
	CommandOpened  int
	CommandClosed  int
	Closed         bool
	SpoolListsOpen int

	disconnect []func()
}

type SaveFile struct {
	Description models.SaveFileDescription
	Entries     []models.SaveFileEntry
}

// New returns a host with an empty file system and job table.
func New() *Host {
	return &Host{
		ProfileCCSIDValue: 37,
		Info:              host.SystemInfo{Name: "TESTSYS", Release: models.SystemRelease{Version: 7, Release: 5}},
		CommandJob:        models.JobIdentifier{Number: "000001", User: "QUSER", Name: "QZRCSRVS"},
		FS:                NewFileSystem(),
		JobsFS:            NewJobs(),
		Spool:             map[string][]models.SpooledFile{},
		Savf:              map[string]SaveFile{},
	}
}

// Dialer always hands out the same Host.
type Dialer struct {
	Host    *Host
	Err     error
	Targets []host.Target
}

func (d *Dialer) Dial(ctx context.Context, target host.Target) (host.Connection, error) {
	d.Targets = append(d.Targets, target)
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Host, nil
}

func (h *Host) ProfileCCSID(ctx context.Context) (int, error) {
	return h.ProfileCCSIDValue, h.ProfileCCSIDErr
}

func (h *Host) SystemInfo(ctx context.Context) (host.SystemInfo, error) {
	return h.Info, nil
}

func (h *Host) OpenCommandService(ctx context.Context) (host.CommandService, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.CommandOpened++
	return &commandService{h: h}, nil
}

// RecordedCommands returns a copy of the commands run so far.
func (h *Host) RecordedCommands() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.Commands...)
}

func (h *Host) SetStoragePool(ctx context.Context, name string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.PoolRequests = append(h.PoolRequests, name)
	if reported, ok := h.PoolResponse[strings.ToUpper(name)]; ok {
		return reported, nil
	}
	if strings.EqualFold(name, "*NONE") {
		return "", nil
	}
	return strings.ToUpper(name), nil
}

func (h *Host) SQL() host.SQLOpener { return sqlOpener{h} }

func (h *Host) Jobs() host.JobService { return h.JobsFS }

func (h *Host) FileSystem() host.FileSystem { return h.FS }

func (h *Host) SpooledFiles() host.SpooledFileLister { return spoolLister{h} }

func (h *Host) SaveFiles() host.SaveFileService { return savfService{h} }

func (h *Host) Shell() host.Shell { return shell{h} }

func (h *Host) OnDisconnect(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnect = append(h.disconnect, fn)
}

// Drop simulates the remote side closing the connection.
func (h *Host) Drop() {
	h.mu.Lock()
	fns := h.disconnect
	h.disconnect = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (h *Host) Close() error {
	h.mu.Lock()
	h.Closed = true
	h.mu.Unlock()
	h.Drop()
	return nil
}

// --- Command service ---

type commandService struct {
	h *Host
}

func (c *commandService) Job(ctx context.Context) (models.JobIdentifier, error) {
	return c.h.CommandJob, nil
}

func (c *commandService) Run(ctx context.Context, command string) (bool, []models.Message, error) {
	c.h.mu.Lock()
	c.h.Commands = append(c.h.Commands, command)
	fn := c.h.OnCommand
	c.h.mu.Unlock()
	if fn == nil {
		return true, nil, nil
	}
	return fn(command)
}

func (c *commandService) Close() error {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	c.h.CommandClosed++
	return nil
}

// --- SQL ---

type sqlOpener struct{ h *Host }

func (o sqlOpener) OpenSQL(ctx context.Context, props host.SQLProperties) (*sqlx.DB, error) {
	o.h.mu.Lock()
	o.h.SQLProps = append(o.h.SQLProps, props)
	open := o.h.SQLOpener
	o.h.mu.Unlock()
	if open == nil {
		return nil, fmt.Errorf("no SQL database scripted")
	}
	return open(ctx, props)
}

// --- Spool ---

type spoolLister struct{ h *Host }

func (s spoolLister) Open(ctx context.Context, job models.JobIdentifier) (host.SpooledFileList, error) {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	s.h.SpoolListsOpen++
	return &spoolList{h: s.h, files: append([]models.SpooledFile(nil), s.h.Spool[job.String()]...)}, nil
}

type spoolList struct {
	h     *Host
	files []models.SpooledFile
	pos   int
}

func (l *spoolList) Next(ctx context.Context) (models.SpooledFile, error) {
	if l.pos >= len(l.files) {
		return models.SpooledFile{}, io.EOF
	}
	f := l.files[l.pos]
	l.pos++
	return f, nil
}

func (l *spoolList) Close() error {
	l.h.mu.Lock()
	defer l.h.mu.Unlock()
	l.h.SpoolListsOpen--
	return nil
}

// --- Save files ---

type savfService struct{ h *Host }

func (s savfService) lookup(library, name string) (SaveFile, error) {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	savf, ok := s.h.Savf[strings.ToUpper(library+"/"+name)]
	if !ok {
		return SaveFile{}, fmt.Errorf("save file %s/%s: %w", library, name, models.ErrNotExist)
	}
	return savf, nil
}

func (s savfService) Describe(ctx context.Context, library, name string) (models.SaveFileDescription, error) {
	savf, err := s.lookup(library, name)
	return savf.Description, err
}

func (s savfService) Entries(ctx context.Context, library, name string) ([]models.SaveFileEntry, error) {
	savf, err := s.lookup(library, name)
	return savf.Entries, err
}

// --- Shell ---

type shell struct{ h *Host }

func (s shell) Exec(ctx context.Context, command string) (models.ShellExec, error) {
	if s.h.ShellFunc == nil {
		return models.ShellExec{}, nil
	}
	return s.h.ShellFunc(command)
}
