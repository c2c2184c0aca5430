package models

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SQLColumn describes one column of a query result.
type SQLColumn struct {
	Name      string `json:"name"`
	TypeName  string `json:"type_name"`
	Precision int64  `json:"precision"`
	Scale     int64  `json:"scale"`
}

// SQLRow keeps its cells in column order.
type SQLRow struct {
	names  []string
	values []any
}

func NewSQLRow(names []string, values []any) SQLRow {
	return SQLRow{names: names, values: values}
}

func (r SQLRow) Columns() []string { return r.names }
func (r SQLRow) Values() []any     { return r.values }

// Get returns the raw cell value for column (case-insensitive).
func (r SQLRow) Get(column string) (any, bool) {
	for i, n := range r.names {
		if strings.EqualFold(n, column) {
			return r.values[i], true
		}
	}
	return nil, false
}

// String renders a cell the same way CSV output does; missing or NULL cells give "null".
func (r SQLRow) String(column string) string {
	v, _ := r.Get(column)
	return cellText(v)
}

func (r SQLRow) Int64(column string) (int64, bool) {
	v, _ := r.Get(column)
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	case []byte:
		i, err := strconv.ParseInt(strings.TrimSpace(string(n)), 10, 64)
		return i, err == nil
	}
	return 0, false
}

// Float64 also parses DECIMAL cells, which drivers hand back as text.
func (r SQLRow) Float64(column string) (float64, bool) {
	v, _ := r.Get(column)
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
		return f, err == nil
	}
	return 0, false
}

func (r SQLRow) Time(column string) (time.Time, bool) {
	v, _ := r.Get(column)
	t, ok := v.(time.Time)
	return t, ok
}

func (r SQLRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SQLResult is either an update count or a described row set.
type SQLResult struct {
	UpdateCount int64       `json:"update_count"`
	Columns     []SQLColumn `json:"columns"`
	Rows        []SQLRow    `json:"rows"`
}

func NewUpdateResult(count int64) *SQLResult {
	return &SQLResult{UpdateCount: count}
}

func NewQueryResult(columns []SQLColumn, rows []SQLRow) *SQLResult {
	return &SQLResult{Columns: columns, Rows: rows}
}

func (r *SQLResult) IsQuery() bool    { return len(r.Columns) > 0 }
func (r *SQLResult) RowCount() int    { return len(r.Rows) }
func (r *SQLResult) ColumnCount() int { return len(r.Columns) }

// CSV writes a header row followed by one record per row.
func (r *SQLResult) CSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, 0, len(r.Columns))
	for _, c := range r.Columns {
		header = append(header, c.Name)
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i, row := range r.Rows {
		record := make([]string, 0, len(row.values))
		for _, v := range row.values {
			record = append(record, cellText(v))
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.String(), nil
}

// JSON renders the rows as an array of objects in column order.
func (r *SQLResult) JSON() (string, error) {
	rows := r.Rows
	if rows == nil {
		rows = []SQLRow{}
	}
	out, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode SQL result: %w", err)
	}
	return string(out), nil
}

func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}
