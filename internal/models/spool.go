package models

import (
	"encoding/json"
	"fmt"
)

// SpooledFile is one entry of a job's print output.
type SpooledFile struct {
	Name     string        `json:"name"`
	Number   int           `json:"number"`
	Size     int64         `json:"size"`
	UserData string        `json:"user_data"`
	Job      JobIdentifier `json:"job"`
}

// FileName is the local file name the entry is written to.
func (s SpooledFile) FileName() string {
	return fmt.Sprintf("%s_%d.txt", s.Name, s.Number)
}

// Exists reports whether the entry has materialized content.
func (s SpooledFile) Exists() bool {
	return s.Size > 0
}

type SpooledFiles []SpooledFile

func (s SpooledFiles) JSON() (string, error) {
	type entry struct {
		SpooledFile
		FileName string `json:"file_name"`
	}
	entries := make([]entry, 0, len(s))
	for _, f := range s {
		entries = append(entries, entry{SpooledFile: f, FileName: f.FileName()})
	}
	out, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to encode spooled files: %w", err)
	}
	return string(out), nil
}
