// Package host defines the capabilities a session needs from an IBM i system.
// Implementations live in subpackages; pase drives a real host, hosttest fakes one.
package host

import (
	"context"
	"io"

	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/jmoiron/sqlx"
)

// DefaultPool is the system ASP group sentinel.
const DefaultPool = "*SYSBAS"

// Target is everything needed to reach and authenticate to a host.
type Target struct {
	Host       string // empty means the local system
	Port       int
	User       string
	Password   string
	Secure     bool
	KnownHosts string
	SQLDriver  string
}

type Dialer interface {
	Dial(ctx context.Context, target Target) (Connection, error)
}

// Connection is one authenticated connection and its sub-services.
type Connection interface {
	// ProfileCCSID returns the CCSID configured on the signed-on user profile.
	ProfileCCSID(ctx context.Context) (int, error)
	SystemInfo(ctx context.Context) (SystemInfo, error)

	OpenCommandService(ctx context.Context) (CommandService, error)

	// SetStoragePool makes name the job's ASP group ("*NONE" resets it) and
	// returns the group the host reports as active afterwards.
	SetStoragePool(ctx context.Context, name string) (string, error)

	SQL() SQLOpener
	Jobs() JobService
	FileSystem() FileSystem
	SpooledFiles() SpooledFileLister
	SaveFiles() SaveFileService
	Shell() Shell

	// OnDisconnect registers fn to run once when the connection drops.
	OnDisconnect(fn func())
	Close() error
}

type SystemInfo struct {
	Name    string
	Release models.SystemRelease
}

// CommandService runs CL commands inside one dedicated host job.
type CommandService interface {
	Job(ctx context.Context) (models.JobIdentifier, error)
	// Run returns every message the command produced, whatever its severity.
	Run(ctx context.Context, command string) (bool, []models.Message, error)
	Close() error
}

// --- SQL ---

type SQLOpener interface {
	OpenSQL(ctx context.Context, props SQLProperties) (*sqlx.DB, error)
}

// SQLProperties are the session properties of a database connection.
type SQLProperties struct {
	Naming          string
	Prompt          bool
	BigDecimal      bool
	TranslateBinary bool
	KeepAlive       bool
	BlockSize       int
	PackageCCSID    int
	Secure          bool
	DatabaseName    string
	Isolation       string
}

// DefaultSQLProperties returns the fixed properties every SQL session uses.
func DefaultSQLProperties(secure bool, ccsid int) SQLProperties {
	props := SQLProperties{
		Naming:          "system",
		Prompt:          false,
		BigDecimal:      false,
		TranslateBinary: true,
		KeepAlive:       true,
		BlockSize:       512,
		Secure:          secure,
		Isolation:       "none",
	}
	if ccsid == 1200 {
		props.PackageCCSID = ccsid
	}
	return props
}

// --- Jobs ---

const (
	JobStatusActive         = "*ACTIVE"
	ActiveStatusMessageWait = "MSGW"
)

type JobStatus struct {
	Status       string
	ActiveStatus string
}

func (s JobStatus) Active() bool          { return s.Status == JobStatusActive }
func (s JobStatus) WaitingOnMessage() bool { return s.Active() && s.ActiveStatus == ActiveStatusMessageWait }

type JobService interface {
	// Status fails with a *models.HostError carrying models.StaleJobMessageID
	// when the job no longer exists.
	Status(ctx context.Context, job models.JobIdentifier) (JobStatus, error)
	End(ctx context.Context, job models.JobIdentifier) error
}

// --- Integrated file system ---

type FileInfo struct {
	Name  string
	Path  string
	IsDir bool
	Size  int64
}

type FileSystem interface {
	// Stat fails with an error wrapping models.ErrNotExist for missing paths.
	Stat(ctx context.Context, path string) (FileInfo, error)
	MkdirAll(ctx context.Context, path string) error
	ReadDir(ctx context.Context, path string) ([]FileInfo, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Create truncates or creates path, tagging a new file with ccsid.
	Create(ctx context.Context, path string, ccsid int) (io.WriteCloser, error)
	RemoveAll(ctx context.Context, path string) error
}

// --- Spooled files ---

type SpooledFileLister interface {
	Open(ctx context.Context, job models.JobIdentifier) (SpooledFileList, error)
}

// SpooledFileList iterates a job's spooled files; Next returns io.EOF when done.
type SpooledFileList interface {
	Next(ctx context.Context) (models.SpooledFile, error)
	Close() error
}

// --- Save files ---

type SaveFileService interface {
	Describe(ctx context.Context, library, name string) (models.SaveFileDescription, error)
	Entries(ctx context.Context, library, name string) ([]models.SaveFileEntry, error)
}

// --- PASE shell ---

type Shell interface {
	Exec(ctx context.Context, command string) (models.ShellExec, error)
}
