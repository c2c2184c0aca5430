// Package session owns one authenticated IBM i connection: the command job,
// the lazily opened SQL connection, the active storage pool and the spooled
// file strategy chosen for it.
package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/graceinfra/ibmisteps/internal/charset"
	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/internal/spool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options describe where and how to connect.
type Options struct {
	Host       string // empty connects to the local system
	Port       int
	User       string
	Password   string
	CCSID      int // 0 negotiates from the user profile
	Secure     bool
	Trace      bool
	KnownHosts string
	SQLDriver  string
}

type Session struct {
	conn   host.Connection
	cmd    host.CommandService
	logger zerolog.Logger

	host       string
	user       string
	ccsid      int
	secure     bool
	trace      bool
	info       host.SystemInfo
	commandJob models.JobIdentifier

	cmdLock fifoLock

	sqlMu sync.Mutex
	sql   *sqlSession

	mu           sync.Mutex
	pool         string
	spool        spool.Service
	closed       bool
	tornDown     bool
	onDisconnect func()
}

// Connect dials the host, negotiates the CCSID and prepares the command job.
// On failure nothing is left open.
func Connect(ctx context.Context, dialer host.Dialer, opts Options) (*Session, error) {
	logger := log.With().Str("component", "session").Str("host", displayHost(opts.Host)).Logger()
	if !opts.Trace {
		logger = logger.Level(zerolog.InfoLevel)
	}

	if opts.Host == "" {
		logger.Debug().Msg("Connecting to local system")
	} else {
		logger.Debug().Msgf("Connecting to %s as %s", opts.Host, opts.User)
	}

	conn, err := dialer.Dial(ctx, host.Target{
		Host:       opts.Host,
		Port:       opts.Port,
		User:       opts.User,
		Password:   opts.Password,
		Secure:     opts.Secure,
		KnownHosts: opts.KnownHosts,
		SQLDriver:  opts.SQLDriver,
	})
	if err != nil {
		return nil, &models.ConnectionError{Host: opts.Host, Err: err}
	}

	s := &Session{
		conn:   conn,
		logger: logger,
		host:   opts.Host,
		user:   strings.ToUpper(opts.User),
		secure: opts.Secure,
		trace:  opts.Trace,
		pool:   host.DefaultPool,
	}

	if err := s.setup(ctx, opts.CCSID); err != nil {
		if s.cmd != nil {
			_ = s.cmd.Close()
		}
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("Failed to close connection after setup failure")
		}
		return nil, err
	}

	conn.OnDisconnect(s.disconnected)

	ssl := ""
	if s.secure {
		ssl = " using SSL"
	}
	logger.Info().Msgf("Connected to %s (%s) as %s with CCSID %d%s", s.info.Name, s.OSVersion(), s.user, s.ccsid, ssl)
	return s, nil
}

func (s *Session) setup(ctx context.Context, explicitCCSID int) error {
	ccsid, err := s.negotiate(ctx, explicitCCSID)
	if err != nil {
		return err
	}
	s.ccsid = ccsid

	if s.info, err = s.conn.SystemInfo(ctx); err != nil {
		return &models.ConnectionError{Host: s.host, Err: fmt.Errorf("failed to read system information: %w", err)}
	}
	if s.cmd, err = s.conn.OpenCommandService(ctx); err != nil {
		return &models.ConnectionError{Host: s.host, Err: fmt.Errorf("failed to open command service: %w", err)}
	}
	if s.commandJob, err = s.cmd.Job(ctx); err != nil {
		return &models.ConnectionError{Host: s.host, Err: fmt.Errorf("failed to identify command job: %w", err)}
	}
	s.logger.Debug().Msgf("Command job is %s", s.commandJob)

	// Both defaults land before any caller command can run.
	if err := s.cmdLock.Lock(ctx); err != nil {
		return &models.ConnectionError{Host: s.host, Err: err}
	}
	defer s.cmdLock.Unlock()

	chgjob := fmt.Sprintf("CHGJOB CCSID(%d) INQMSGRPY(*DFT)", s.ccsid)
	ok, messages, err := s.cmd.Run(ctx, chgjob)
	if err != nil || !ok {
		return &models.ConnectionError{Host: s.host, Err: &models.CommandError{
			Command: chgjob,
			Result:  models.NewCommandResult(chgjob, ok, messages),
			Err:     err,
		}}
	}
	return nil
}

func (s *Session) negotiate(ctx context.Context, explicit int) (int, error) {
	profile := 0
	if explicit <= 0 {
		var err error
		if profile, err = s.conn.ProfileCCSID(ctx); err != nil {
			return 0, &models.ConnectionError{Host: s.host, Err: fmt.Errorf("failed to read profile CCSID: %w", err)}
		}
		s.logger.Debug().Msgf("Profile CCSID is %d", profile)
	}

	ccsid, substituted := charset.Negotiate(explicit, profile)
	if substituted {
		s.logger.Info().Msgf("CCSID %d is not supported, using %d instead", charset.Problematic, charset.Replacement)
	}
	if !charset.Valid(ccsid) {
		return 0, &models.ConnectionError{Host: s.host, Reason: models.ErrInvalidCharset, Err: fmt.Errorf("CCSID %d is outside %d-%d", ccsid, charset.MinCCSID, charset.MaxCCSID)}
	}
	return ccsid, nil
}

// ExecuteCommand runs a CL command and returns all of its messages. Commands
// run one at a time; concurrent callers are served in arrival order.
func (s *Session) ExecuteCommand(ctx context.Context, command string) (*models.CommandResult, error) {
	command = strings.TrimSpace(command)

	if err := s.cmdLock.Lock(ctx); err != nil {
		return nil, &models.CommandError{Command: command, Err: err}
	}
	defer s.cmdLock.Unlock()

	if s.isClosed() {
		return nil, &models.CommandError{Command: command, Err: fmt.Errorf("session is disconnected")}
	}

	s.logger.Debug().Str("command", command).Msg("Running command")
	ok, messages, err := s.cmd.Run(ctx, command)
	if err != nil {
		return nil, &models.CommandError{Command: command, Err: err}
	}
	for i := range messages {
		messages[i] = messages[i].WithCCSID(s.ccsid)
	}
	return models.NewCommandResult(command, ok, messages), nil
}

// ChangeStoragePool scopes the session to the given ASP group. Empty, "1" and
// "*SYSBAS" all name the system pool.
func (s *Session) ChangeStoragePool(ctx context.Context, target string) error {
	s.mu.Lock()
	current := s.pool
	s.mu.Unlock()

	target = strings.TrimSpace(target)
	if samePool(current, target) {
		return nil
	}

	s.logger.Debug().Msgf("Changing storage pool from %s to %s", current, displayPool(target))

	request := target
	if isSystemPool(target) {
		request = "*NONE"
	}
	active, err := s.conn.SetStoragePool(ctx, request)
	if err != nil {
		return &models.ConnectionError{Host: s.host, Reason: models.ErrPoolSwitchFailed, Err: err}
	}
	if !isSystemPool(target) && !strings.EqualFold(strings.TrimSpace(active), target) {
		// Track where the job actually is so a later switch is not skipped.
		s.mu.Lock()
		s.pool = displayPool(active)
		s.mu.Unlock()
		s.CloseSQL()
		return &models.ConnectionError{Host: s.host, Reason: models.ErrPoolSwitchFailed,
			Err: fmt.Errorf("requested %s but host reports %q", target, active)}
	}

	s.mu.Lock()
	s.pool = displayPool(target)
	s.mu.Unlock()

	// The SQL catalog depends on the pool.
	s.CloseSQL()
	return nil
}

// OnDisconnect registers fn to run once when the session ends, whether by
// Disconnect or because the host dropped the connection.
func (s *Session) OnDisconnect(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = fn
}

// Disconnect closes the SQL connection, then everything else. Safe to call twice.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.CloseSQL()

	s.logger.Debug().Msg("Disconnecting")
	s.teardown()
	s.notify()
}

// disconnected runs when the host drops the connection. The command service
// and the transport are still closed so no host process outlives the session.
func (s *Session) disconnected() {
	s.logger.Debug().Msg("Received disconnect notification")
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.CloseSQL()
	s.teardown()
	s.notify()
}

// teardown closes the command service and the connection exactly once.
func (s *Session) teardown() {
	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		return
	}
	s.tornDown = true
	s.mu.Unlock()

	if err := s.cmd.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to close command service")
	}
	if err := s.conn.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to close connection")
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	fn := s.onDisconnect
	s.onDisconnect = nil
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SpooledFiles returns the spooled file strategy, probing the host on first use.
func (s *Session) SpooledFiles(ctx context.Context) spool.Service {
	s.mu.Lock()
	cached := s.spool
	s.mu.Unlock()
	if cached != nil {
		return cached
	}

	svc := spool.Select(ctx, s, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spool == nil {
		s.spool = svc
	}
	return s.spool
}

// --- Accessors ---

func (s *Session) Host() string                     { return s.host }
func (s *Session) User() string                     { return s.user }
func (s *Session) CCSID() int                       { return s.ccsid }
func (s *Session) Secure() bool                     { return s.secure }
func (s *Session) SystemName() string               { return s.info.Name }
func (s *Session) Release() models.SystemRelease    { return s.info.Release }
func (s *Session) CommandJob() models.JobIdentifier { return s.commandJob }
func (s *Session) Logger() zerolog.Logger           { return s.logger }
func (s *Session) Connection() host.Connection      { return s.conn }

func (s *Session) OSVersion() string {
	return fmt.Sprintf("%d.%d", s.info.Release.Version, s.info.Release.Release)
}

func (s *Session) StoragePool() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool
}

// Env returns the variables exposed to steps running against this session.
func (s *Session) Env() map[string]string {
	return map[string]string{
		"IBMI_HOST":        s.info.Name,
		"IBMI_PROFILE":     s.user,
		"IBMI_CCSID":       strconv.Itoa(s.ccsid),
		"IBMI_COMMAND_JOB": s.commandJob.String(),
		"IBMI_VERSION":     s.OSVersion(),
	}
}

// --- Pool helpers ---

func isSystemPool(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || name == "1" || strings.EqualFold(name, host.DefaultPool)
}

func samePool(a, b string) bool {
	if isSystemPool(a) || isSystemPool(b) {
		return isSystemPool(a) && isSystemPool(b)
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func displayPool(name string) string {
	if isSystemPool(name) {
		return host.DefaultPool
	}
	return strings.ToUpper(strings.TrimSpace(name))
}

func displayHost(h string) string {
	if h == "" {
		return "localhost"
	}
	return h
}
