package context

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/graceinfra/ibmisteps/internal/console"
	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/internal/session"
	"github.com/graceinfra/ibmisteps/types"
	"github.com/rs/zerolog/log"
)

// ExecutionContext carries one pipeline run: its configuration, where its logs
// go, and the session to the target server.
type ExecutionContext struct {
	RunID        uuid.UUID
	RunStartTime time.Time
	Command      string // "run", "command", "sql", ...
	Pipeline     *types.Pipeline
	Server       *types.Server
	LogDir       string
	WorkDir      string   // local directory step paths are relative to
	Only         []string // selective step runs

	Dialer  host.Dialer
	Options session.Options
	Console *console.Console

	mu      sync.Mutex
	session *session.Session
	records map[string]*models.StepExecutionRecord
}

// Session returns the connected session, connecting and switching to the
// pipeline's IASP on first use or after the previous session was dropped.
func (c *ExecutionContext) Session(ctx context.Context) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session, nil
	}

	opts := c.Options
	if c.Pipeline != nil {
		opts.Trace = opts.Trace || c.Pipeline.Trace
	}
	s, err := session.Connect(ctx, c.Dialer, opts)
	if err != nil {
		return nil, err
	}

	if c.Pipeline != nil && c.Pipeline.IASP != "" {
		if err := s.ChangeStoragePool(ctx, c.Pipeline.IASP); err != nil {
			s.Disconnect()
			return nil, err
		}
	}

	s.OnDisconnect(func() { c.drop(s) })
	c.session = s
	return s, nil
}

// drop forgets s if it is still the current session.
func (c *ExecutionContext) drop(s *session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == s {
		log.Debug().Str("run_id", c.RunID.String()).Msg("Session ended, it will be reopened on next use")
		c.session = nil
	}
}

// Current returns the open session without connecting.
func (c *ExecutionContext) Current() (*session.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, c.session != nil
}

// Close disconnects the current session, if any.
func (c *ExecutionContext) Close() {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s != nil {
		s.Disconnect()
	}
}

// ServerName is the configured name of the target server.
func (c *ExecutionContext) ServerName() string {
	if c.Server == nil {
		return ""
	}
	return c.Server.Name
}

// Record keeps a finished step's record so later steps can refer to it.
func (c *ExecutionContext) Record(record *models.StepExecutionRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.records == nil {
		c.records = map[string]*models.StepExecutionRecord{}
	}
	c.records[record.StepName] = record
}

// StepRecord returns the record of an earlier step of this run.
func (c *ExecutionContext) StepRecord(name string) (*models.StepExecutionRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.records[name]
	return record, ok
}
