package pase

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/graceinfra/ibmisteps/internal/models"
)

const db2Utility = "/QOpenSys/usr/bin/db2"

var (
	recordsSelected = regexp.MustCompile(`^\s*\d+\s+RECORD\(S\) SELECTED\.?\s*$`)
	nativeErrorCode = regexp.MustCompile(`NATIVE ERROR CODE:\s*(-?\d+)`)
)

// runner executes a shell script and returns its output lines and exit status.
type runner func(ctx context.Context, script string) ([]string, int, error)

// table is the parsed output of one db2 utility query. NULL cells are empty.
type table struct {
	Columns []string
	Rows    [][]string
}

// Get returns the cell of row i named column, or "" when absent.
func (t *table) Get(i int, column string) string {
	for c, name := range t.Columns {
		if strings.EqualFold(name, column) && i < len(t.Rows) && c < len(t.Rows[i]) {
			return t.Rows[i][c]
		}
	}
	return ""
}

func query(ctx context.Context, run runner, sql string) (*table, error) {
	lines, _, err := run(ctx, db2Utility+" "+quote(sql))
	if err != nil {
		return nil, err
	}
	return parseDB2(lines)
}

// oneShot adapts a transport so each script runs in its own process.
func oneShot(t transport) runner {
	return func(ctx context.Context, script string) ([]string, int, error) {
		var out bytes.Buffer
		code, stderr, err := t.Exec(ctx, script, nil, &out)
		if err != nil {
			return nil, code, err
		}
		text := strings.TrimRight(out.String()+stderr, "\n")
		if text == "" {
			return nil, code, nil
		}
		return strings.Split(text, "\n"), code, nil
	}
}

// parseDB2 reads the fixed-width report printed by the db2 utility. Column
// boundaries come from the dashed underline below the header.
func parseDB2(lines []string) (*table, error) {
	if err := db2Error(lines); err != nil {
		return nil, err
	}

	underline := -1
	for i, line := range lines {
		if isUnderline(line) {
			underline = i
			break
		}
	}
	if underline < 1 {
		return &table{}, nil
	}

	spans := columnSpans(lines[underline])
	t := &table{}
	for _, s := range spans {
		t.Columns = append(t.Columns, strings.TrimSpace(cut(lines[underline-1], s)))
	}

	for _, line := range lines[underline+1:] {
		if strings.TrimSpace(line) == "" || recordsSelected.MatchString(line) {
			break
		}
		row := make([]string, len(spans))
		for i, s := range spans {
			cell := strings.TrimSpace(cut(line, s))
			if cell == "-" {
				cell = ""
			}
			row[i] = cell
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func db2Error(lines []string) error {
	for i, line := range lines {
		if !strings.Contains(line, "SQLSTATE") {
			continue
		}
		id := "SQL9999"
		var text []string
		for _, rest := range lines[i+1:] {
			if m := nativeErrorCode.FindStringSubmatch(rest); m != nil {
				code, _ := strconv.Atoi(m[1])
				if code < 0 {
					code = -code
				}
				id = fmt.Sprintf("SQL%04d", code)
				continue
			}
			if s := strings.TrimSpace(rest); s != "" {
				text = append(text, s)
			}
		}
		return &models.HostError{MessageID: id, Text: strings.Join(text, " ")}
	}
	return nil
}

type span struct{ start, end int }

func isUnderline(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && strings.Trim(trimmed, "- ") == ""
}

func columnSpans(underline string) []span {
	var spans []span
	start := -1
	for i, r := range underline {
		switch {
		case r == '-' && start < 0:
			start = i
		case r != '-' && start >= 0:
			spans = append(spans, span{start, i})
			start = -1
		}
	}
	if start >= 0 {
		spans = append(spans, span{start, len(underline)})
	}
	// The last column may run past its underline.
	if n := len(spans); n > 0 {
		spans[n-1].end = -1
	}
	return spans
}

func cut(line string, s span) string {
	if s.start >= len(line) {
		return ""
	}
	if s.end < 0 || s.end > len(line) {
		return line[s.start:]
	}
	return line[s.start:s.end]
}

// literal quotes s as an SQL string constant.
func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
