package models

import (
	"bytes"
	"fmt"
	"time"

	"github.com/graceinfra/ibmisteps/internal/charset"
)

// MessageType mirrors the host message type codes.
type MessageType int

const (
	TypeCompletion    MessageType = 1
	TypeDiagnostic    MessageType = 2
	TypeInformational MessageType = 4
	TypeInquiry       MessageType = 5
	TypeEscape        MessageType = 15
)

func (t MessageType) String() string {
	switch t {
	case TypeCompletion:
		return "COMPLETION"
	case TypeDiagnostic:
		return "DIAGNOSTIC"
	case TypeInformational:
		return "INFORMATIONAL"
	case TypeInquiry:
		return "INQUIRY"
	case TypeEscape:
		return "ESCAPE"
	default:
		return fmt.Sprintf("TYPE_%d", int(t))
	}
}

// Message is a single host message as returned by a command invocation.
// SubstitutionData holds the raw bytes; SubstitutionText decodes them on demand
// using the CCSID the message was received under.
type Message struct {
	ID               string      `json:"id"`
	Text             string      `json:"text"`
	Severity         int         `json:"severity"`
	Type             MessageType `json:"type"`
	FileName         string      `json:"file_name,omitempty"`
	Library          string      `json:"library,omitempty"`
	DefaultReply     string      `json:"default_reply,omitempty"`
	Help             string      `json:"help,omitempty"`
	SubstitutionData []byte      `json:"substitution_data,omitempty"`
	Created          time.Time   `json:"created"`

	ccsid int
}

// WithCCSID returns a copy of m that decodes its substitution data with ccsid.
func (m Message) WithCCSID(ccsid int) Message {
	m.ccsid = ccsid
	return m
}

// SubstitutionText decodes the raw substitution data. Undecodable data is
// rendered as hex.
func (m Message) SubstitutionText() string {
	if len(m.SubstitutionData) == 0 {
		return ""
	}
	text, err := charset.Decode(m.ccsid, m.SubstitutionData)
	if err != nil {
		return fmt.Sprintf("%X", m.SubstitutionData)
	}
	return text
}

// Equal compares every field except the decoding CCSID.
func (m Message) Equal(o Message) bool {
	return m.ID == o.ID &&
		m.Text == o.Text &&
		m.Severity == o.Severity &&
		m.Type == o.Type &&
		m.FileName == o.FileName &&
		m.Library == o.Library &&
		m.DefaultReply == o.DefaultReply &&
		m.Help == o.Help &&
		bytes.Equal(m.SubstitutionData, o.SubstitutionData) &&
		m.Created.Equal(o.Created)
}

// Key returns a comparable value usable as a map key; two messages have the
// same key exactly when Equal reports true.
func (m Message) Key() string {
	return fmt.Sprintf("%s\x00%s\x00%d\x00%d\x00%s\x00%s\x00%s\x00%s\x00%X\x00%d",
		m.ID, m.Text, m.Severity, int(m.Type), m.FileName, m.Library,
		m.DefaultReply, m.Help, m.SubstitutionData, m.Created.UnixNano())
}

func (m Message) String() string {
	return fmt.Sprintf("[%s][%d] %s", m.ID, m.Severity, m.Text)
}
