package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Pipeline is a sequence of steps run against one server.
type Pipeline struct {
	Server string  `yaml:"server"`
	IASP   string  `yaml:"iasp,omitempty"`
	Trace  bool    `yaml:"trace,omitempty"`
	Steps  []*Step `yaml:"steps"`
}

type Step struct {
	Name string         `yaml:"name"`
	Type string         `yaml:"type"`
	With map[string]any `yaml:"with,omitempty"`
}

func (s *Step) Has(key string) bool {
	_, ok := s.With[key]
	return ok
}

// String returns a parameter as text, or "" when it is missing.
func (s *Step) String(key string) string {
	v, ok := s.With[key]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

// Int returns a parameter as an integer, or def when it is missing.
func (s *Step) Int(key string, def int) (int, error) {
	v, ok := s.With[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("parameter %q: %q is not a number", key, n)
		}
		return i, nil
	}
	return 0, fmt.Errorf("parameter %q: %v is not a number", key, v)
}

// Bool returns a parameter as a boolean, or def when it is missing.
func (s *Step) Bool(key string, def bool) (bool, error) {
	v, ok := s.With[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("parameter %q: %q is not a boolean", key, b)
		}
		return parsed, nil
	}
	return false, fmt.Errorf("parameter %q: %v is not a boolean", key, v)
}
