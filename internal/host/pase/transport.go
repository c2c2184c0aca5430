package pase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// transport starts processes on the host, either through SSH or locally when
// running inside PASE itself.
type transport interface {
	// Exec runs script through the shell to completion and returns its exit code.
	Exec(ctx context.Context, script string, stdin io.Reader, stdout io.Writer) (int, string, error)
	// Start launches a long-lived shell reading commands from stdin.
	Start() (*process, error)
	// Done is closed when the transport is gone.
	Done() <-chan struct{}
	Close() error
}

type process struct {
	stdin  io.WriteCloser
	stdout io.Reader
	stop   func() error
}

// --- SSH ---

type sshTransport struct {
	client *ssh.Client
	shell  string
	done   chan struct{}
}

func dialSSH(ctx context.Context, addr, user, password, knownHostsFile, shell string) (*sshTransport, error) {
	hostKeys, err := hostKeyCallback(knownHostsFile)
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKeys,
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}

	t := &sshTransport{client: ssh.NewClient(c, chans, reqs), shell: shell, done: make(chan struct{})}
	go func() {
		_ = t.client.Wait()
		close(t.done)
	}()
	return t, nil
}

func hostKeyCallback(file string) (ssh.HostKeyCallback, error) {
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate known_hosts: %w", err)
		}
		file = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read known hosts from %s: %w", file, err)
	}
	return cb, nil
}

func (t *sshTransport) Exec(ctx context.Context, script string, stdin io.Reader, stdout io.Writer) (int, string, error) {
	s, err := t.client.NewSession()
	if err != nil {
		return -1, "", err
	}
	defer s.Close()

	var stderr bytes.Buffer
	s.Stdin = stdin
	s.Stdout = stdout
	s.Stderr = &stderr

	if err := s.Start(t.shell + " -c " + quote(script)); err != nil {
		return -1, "", err
	}

	waited := make(chan error, 1)
	go func() { waited <- s.Wait() }()
	select {
	case <-ctx.Done():
		_ = s.Signal(ssh.SIGKILL)
		_ = s.Close()
		return -1, stderr.String(), ctx.Err()
	case err := <-waited:
		return exitCode(err), stderr.String(), exitError(err)
	}
}

func (t *sshTransport) Start() (*process, error) {
	s, err := t.client.NewSession()
	if err != nil {
		return nil, err
	}
	stdin, err := s.StdinPipe()
	if err != nil {
		s.Close()
		return nil, err
	}
	stdout, err := s.StdoutPipe()
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Start(t.shell); err != nil {
		s.Close()
		return nil, err
	}
	return &process{stdin: stdin, stdout: stdout, stop: s.Close}, nil
}

func (t *sshTransport) Done() <-chan struct{} { return t.done }

func (t *sshTransport) Close() error { return t.client.Close() }

// --- Local ---

type localTransport struct {
	shell string
	done  chan struct{}
	once  sync.Once
}

func newLocal(shell string) *localTransport {
	return &localTransport{shell: shell, done: make(chan struct{})}
}

func (t *localTransport) Exec(ctx context.Context, script string, stdin io.Reader, stdout io.Writer) (int, string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.shell, "-c", script)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return -1, stderr.String(), ctx.Err()
	}
	return exitCode(err), stderr.String(), exitError(err)
}

func (t *localTransport) Start() (*process, error) {
	cmd := exec.Command(t.shell)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &process{
		stdin:  stdin,
		stdout: stdout,
		stop: func() error {
			_ = stdin.Close()
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return nil
		},
	}, nil
}

func (t *localTransport) Done() <-chan struct{} { return t.done }

func (t *localTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}

// exitCode maps a finished process error to its exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var sshExit *ssh.ExitError
	if errors.As(err, &sshExit) {
		return sshExit.ExitStatus()
	}
	var localExit *exec.ExitError
	if errors.As(err, &localExit) {
		return localExit.ExitCode()
	}
	return -1
}

// exitError drops the error of a process that ran and exited non-zero.
func exitError(err error) error {
	if exitCode(err) >= 0 {
		return nil
	}
	return err
}

// quote makes s a single shell word.
func quote(s string) string {
	out := []byte{'\''}
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, `'\''`...)
			continue
		}
		out = append(out, s[i])
	}
	return string(append(out, '\''))
}
