package pase

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// persistentShell keeps one shell process, and so one host job, alive across
// commands. Output of each script is framed by an end marker carrying its
// exit status.
type persistentShell struct {
	mu     sync.Mutex
	proc   *process
	lines  *bufio.Scanner
	marker string
	broken error
	closed bool
}

func startShell(t transport) (*persistentShell, error) {
	proc, err := t.Start()
	if err != nil {
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}
	lines := bufio.NewScanner(proc.stdout)
	lines.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &persistentShell{
		proc:   proc,
		lines:  lines,
		marker: "__ibmisteps_" + strings.ReplaceAll(uuid.NewString(), "-", "") + "__",
	}, nil
}

type shellResult struct {
	lines []string
	code  int
	err   error
}

// Run executes script and returns its combined output lines and exit status.
// A cancelled ctx kills the shell; it cannot be used afterwards.
func (s *persistentShell) Run(ctx context.Context, script string) ([]string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken != nil {
		return nil, -1, s.broken
	}

	framed := fmt.Sprintf("{ %s\n} 2>&1 </dev/null; echo \"%s $?\"\n", script, s.marker)
	if _, err := s.proc.stdin.Write([]byte(framed)); err != nil {
		s.broken = fmt.Errorf("shell is gone: %w", err)
		return nil, -1, s.broken
	}

	done := make(chan shellResult, 1)
	go func() { done <- s.read() }()

	select {
	case <-ctx.Done():
		s.broken = fmt.Errorf("shell was interrupted: %w", ctx.Err())
		_ = s.proc.stop()
		return nil, -1, ctx.Err()
	case res := <-done:
		if res.err != nil {
			s.broken = res.err
		}
		return res.lines, res.code, res.err
	}
}

func (s *persistentShell) read() shellResult {
	var out []string
	for s.lines.Scan() {
		line := s.lines.Text()
		if rest, ok := strings.CutPrefix(line, s.marker+" "); ok {
			code, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return shellResult{lines: out, code: -1, err: fmt.Errorf("bad exit status %q", rest)}
			}
			return shellResult{lines: out, code: code}
		}
		out = append(out, line)
	}
	err := s.lines.Err()
	if err == nil {
		err = fmt.Errorf("shell exited unexpectedly")
	}
	return shellResult{lines: out, code: -1, err: err}
}

func (s *persistentShell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.broken == nil {
		s.broken = fmt.Errorf("shell is closed")
	}
	_, _ = s.proc.stdin.Write([]byte("exit\n"))
	return s.proc.stop()
}
