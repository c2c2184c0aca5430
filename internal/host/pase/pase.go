// Package pase connects to IBM i through its PASE environment, either over SSH
// or directly when running on the system itself. CL commands go through the
// system utility and catalog queries through the db2 utility.
package pase

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/graceinfra/ibmisteps/internal/host"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPort  = 22
	DefaultShell = "/QOpenSys/usr/bin/sh"

	// ODBCDriver is the IBM i Access ODBC driver name used in connection strings.
	ODBCDriver = "IBM i Access ODBC Driver"
)

// Dialer opens PASE connections. The zero value is ready to use.
type Dialer struct {
	// Shell overrides the shell started on the host.
	Shell string
}

func (d Dialer) Dial(ctx context.Context, target host.Target) (host.Connection, error) {
	logger := log.With().Str("component", "pase").Str("host", displayHost(target.Host)).Logger()

	var t transport
	var tag bool
	if target.Host == "" {
		shell := d.Shell
		if shell == "" {
			shell = "sh"
		}
		t = newLocal(shell)
		tag = runtime.GOOS == "aix"
	} else {
		port := target.Port
		if port == 0 {
			port = DefaultPort
		}
		shell := d.Shell
		if shell == "" {
			shell = DefaultShell
		}
		addr := net.JoinHostPort(target.Host, strconv.Itoa(port))
		logger.Debug().Msgf("Opening SSH connection to %s as %s", addr, target.User)
		ssh, err := dialSSH(ctx, addr, target.User, target.Password, target.KnownHosts, shell)
		if err != nil {
			if strings.Contains(err.Error(), "unable to authenticate") {
				return nil, fmt.Errorf("%w: %v", models.ErrAuthentication, err)
			}
			return nil, err
		}
		t = ssh
		tag = true
	}

	c := &connection{
		target: target,
		t:      t,
		run:    oneShot(t),
		logger: logger,
	}
	c.fs = &fileSystem{t: t, run: c.run, tag: tag}
	go c.watch()
	return c, nil
}

type connection struct {
	target host.Target
	t      transport
	run    runner
	fs     *fileSystem
	logger zerolog.Logger

	mu        sync.Mutex
	cmd       *commandService
	callbacks []func()
	closed    bool
	fired     sync.Once
}

func (c *connection) watch() {
	<-c.t.Done()
	c.fired.Do(func() {
		c.mu.Lock()
		callbacks := append([]func(){}, c.callbacks...)
		closed := c.closed
		c.mu.Unlock()
		if !closed {
			c.logger.Warn().Msg("Connection to host lost")
		}
		for _, fn := range callbacks {
			fn()
		}
	})
}

func (c *connection) ProfileCCSID(ctx context.Context) (int, error) {
	t, err := query(ctx, c.run, "SELECT CCSID FROM QSYS2.USER_INFO_BASIC WHERE AUTHORIZATION_NAME = USER")
	if err != nil {
		return 0, err
	}
	ccsid, err := strconv.Atoi(t.Get(0, "CCSID"))
	if err != nil {
		return 0, fmt.Errorf("failed to read profile CCSID: %w", err)
	}
	return ccsid, nil
}

func (c *connection) SystemInfo(ctx context.Context) (host.SystemInfo, error) {
	t, err := query(ctx, c.run, "SELECT HOST_NAME, OS_VERSION, OS_RELEASE FROM SYSIBMADM.ENV_SYS_INFO")
	if err != nil {
		return host.SystemInfo{}, err
	}
	version, err := strconv.Atoi(t.Get(0, "OS_VERSION"))
	if err != nil {
		return host.SystemInfo{}, fmt.Errorf("failed to read OS version: %w", err)
	}
	release, err := strconv.Atoi(t.Get(0, "OS_RELEASE"))
	if err != nil {
		return host.SystemInfo{}, fmt.Errorf("failed to read OS release: %w", err)
	}
	return host.SystemInfo{
		Name:    t.Get(0, "HOST_NAME"),
		Release: models.SystemRelease{Version: version, Release: release},
	}, nil
}

func (c *connection) OpenCommandService(ctx context.Context) (host.CommandService, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil {
		return c.cmd, nil
	}
	shell, err := startShell(c.t)
	if err != nil {
		return nil, err
	}
	c.cmd = &commandService{shell: shell}
	return c.cmd, nil
}

func (c *connection) commandShell() (*persistentShell, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil {
		return nil, fmt.Errorf("command service is not open")
	}
	return c.cmd.shell, nil
}

func (c *connection) SetStoragePool(ctx context.Context, name string) (string, error) {
	shell, err := c.commandShell()
	if err != nil {
		return "", err
	}

	command := fmt.Sprintf("SETASPGRP ASPGRP(%s)", name)
	lines, code, err := shell.Run(ctx, systemScript(command))
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", hostError(command, lines)
	}

	t, err := query(ctx, shell.Run, "SELECT IASP_NAME FROM QSYS2.ASP_JOB_INFO WHERE JOB_NAME = QSYS2.JOB_NAME")
	if err != nil {
		return "", err
	}
	return t.Get(0, "IASP_NAME"), nil
}

func (c *connection) SQL() host.SQLOpener {
	return sqlOpener{target: c.target}
}

func (c *connection) Jobs() host.JobService                { return jobService{run: c.run} }
func (c *connection) FileSystem() host.FileSystem          { return c.fs }
func (c *connection) SpooledFiles() host.SpooledFileLister { return spoolLister{run: c.run} }
func (c *connection) SaveFiles() host.SaveFileService      { return saveFiles{run: c.run} }
func (c *connection) Shell() host.Shell                    { return shellService{run: c.run} }

func (c *connection) OnDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

func (c *connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cmd := c.cmd
	c.mu.Unlock()

	if cmd != nil {
		if err := cmd.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Command shell did not exit cleanly")
		}
	}
	return c.t.Close()
}

// --- SQL ---

type sqlOpener struct {
	target host.Target
}

func (o sqlOpener) OpenSQL(ctx context.Context, props host.SQLProperties) (*sqlx.DB, error) {
	if o.target.SQLDriver == "" {
		return nil, fmt.Errorf("no SQL driver configured for %s", displayHost(o.target.Host))
	}
	db, err := sqlx.Open(o.target.SQLDriver, ConnectionString(o.target, props))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ConnectionString renders props as IBM i Access ODBC keywords, sorted by name.
func ConnectionString(target host.Target, props host.SQLProperties) string {
	system := target.Host
	if system == "" {
		system = "localhost"
	}
	kv := map[string]string{
		"SYSTEM":          system,
		"UID":             target.User,
		"PWD":             target.Password,
		"NAM":             boolKeyword(props.Naming == "system"),
		"PROMPT":          "0",
		"TRANSLATE":       boolKeyword(props.TranslateBinary),
		"KEEPALIVE":       boolKeyword(props.KeepAlive),
		"BLOCKSIZE":       strconv.Itoa(props.BlockSize),
		"SSL":             boolKeyword(props.Secure),
		"MAXDECPREC":      "31",
		"CONVERTDATETIME": "1",
	}
	if props.Isolation == "none" {
		kv["CMT"] = "0"
	}
	if props.DatabaseName != "" {
		kv["DATABASE"] = props.DatabaseName
	}
	if props.PackageCCSID != 0 {
		kv["UNICODESQL"] = "1"
	}

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := []string{"DRIVER={" + ODBCDriver + "}"}
	for _, k := range keys {
		parts = append(parts, k+"="+odbcValue(kv[k]))
	}
	return strings.Join(parts, ";")
}

func boolKeyword(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// odbcValue braces values that would otherwise break the keyword list.
func odbcValue(v string) string {
	if strings.ContainsAny(v, ";{}=") {
		return "{" + strings.ReplaceAll(v, "}", "}}") + "}"
	}
	return v
}

func displayHost(h string) string {
	if h == "" {
		return "localhost"
	}
	return h
}
