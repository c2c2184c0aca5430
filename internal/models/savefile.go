package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ReleaseCurrent  = "*CURRENT"
	ReleasePrevious = "*PRV"
)

// SystemRelease is the host OS level as version/release/modification.
type SystemRelease struct {
	Version      int `json:"version"`
	Release      int `json:"release"`
	Modification int `json:"modification"`
}

func (r SystemRelease) String() string {
	return fmt.Sprintf("V%dR%dM%d", r.Version, r.Release, r.Modification)
}

// Previous returns the release *PRV resolves to on this system.
func (r SystemRelease) Previous() SystemRelease {
	prev := r
	switch {
	case r.Version == 7 && r.Release == 1:
		prev.Version = 6
	case r.Version == 6:
		prev.Version = 5
		prev.Release = 4
	default:
		prev.Release--
	}
	return prev
}

// SaveFileDescription is the raw save file object description.
type SaveFileDescription struct {
	Name          string
	Library       string
	Description   string
	Size          int64
	TargetRelease string
}

type SaveFileEntry struct {
	Name                    string `json:"name"`
	Description             string `json:"description"`
	Library                 string `json:"library"`
	ExtendedObjectAttribute string `json:"extended_object_attribute"`
	DataSaved               bool   `json:"data_saved"`
	Owner                   string `json:"owner"`
	Size                    int64  `json:"size"`
	Type                    string `json:"type"`
}

// SaveFileContent is a read-only snapshot of a save file's metadata and entries.
type SaveFileContent struct {
	name          string
	library       string
	description   string
	size          int64
	creationLPAR  string
	savedLibrary  string
	targetRelease string
	entries       []SaveFileEntry
}

// NewSaveFileContent resolves the target release against the running system and
// lifts the *LIB entry out of the entry list.
func NewSaveFileContent(desc SaveFileDescription, system SystemRelease, systemName string, entries []SaveFileEntry) *SaveFileContent {
	content := &SaveFileContent{
		name:         desc.Name,
		library:      desc.Library,
		description:  desc.Description,
		size:         desc.Size,
		creationLPAR: systemName,
		entries:      []SaveFileEntry{},
	}

	switch strings.ToUpper(desc.TargetRelease) {
	case ReleaseCurrent:
		content.targetRelease = system.String()
	case ReleasePrevious:
		content.targetRelease = system.Previous().String()
	default:
		content.targetRelease = desc.TargetRelease
	}

	for _, e := range entries {
		if strings.EqualFold(e.Type, "*LIB") {
			content.savedLibrary = e.Library
			continue
		}
		content.entries = append(content.entries, e)
	}
	return content
}

func (c *SaveFileContent) Name() string          { return c.name }
func (c *SaveFileContent) Library() string       { return c.library }
func (c *SaveFileContent) Description() string   { return c.description }
func (c *SaveFileContent) Size() int64           { return c.size }
func (c *SaveFileContent) CreationLPAR() string  { return c.creationLPAR }
func (c *SaveFileContent) SavedLibrary() string  { return c.savedLibrary }
func (c *SaveFileContent) TargetRelease() string { return c.targetRelease }

// Entries returns a copy of the saved objects.
func (c *SaveFileContent) Entries() []SaveFileEntry {
	return append([]SaveFileEntry(nil), c.entries...)
}

func (c *SaveFileContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name          string          `json:"name"`
		Library       string          `json:"library"`
		Description   string          `json:"description"`
		Size          int64           `json:"size"`
		CreationLPAR  string          `json:"creation_lpar"`
		SavedLibrary  string          `json:"saved_library,omitempty"`
		TargetRelease string          `json:"target_release"`
		Entries       []SaveFileEntry `json:"entries"`
	}{c.name, c.library, c.description, c.size, c.creationLPAR, c.savedLibrary, c.targetRelease, c.entries})
}

func (c *SaveFileContent) JSON() (string, error) {
	out, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode save file content: %w", err)
	}
	return string(out), nil
}
