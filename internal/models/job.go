package models

import (
	"fmt"
	"strings"
)

// JobIdentifier names a host job by its qualified triple.
type JobIdentifier struct {
	Number string `json:"number"`
	User   string `json:"user"`
	Name   string `json:"name"`
}

// String renders the canonical number/user/name form.
func (j JobIdentifier) String() string {
	return fmt.Sprintf("%s/%s/%s", j.Number, j.User, j.Name)
}

func (j JobIdentifier) IsZero() bool {
	return j.Number == "" && j.User == "" && j.Name == ""
}

// ParseJobIdentifier parses "number/user/name".
func ParseJobIdentifier(s string) (JobIdentifier, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return JobIdentifier{}, fmt.Errorf("invalid job identifier %q: expected number/user/name", s)
	}
	for i, p := range parts {
		if p == "" {
			return JobIdentifier{}, fmt.Errorf("invalid job identifier %q: segment %d is empty", s, i+1)
		}
	}
	return JobIdentifier{Number: parts[0], User: parts[1], Name: parts[2]}, nil
}
