// Package charset maps host CCSIDs to text encodings.
package charset

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const (
	MinCCSID = 1
	MaxCCSID = 65535

	// UTF8 is the CCSID used for files written by the pipeline.
	UTF8 = 1208
	// UTF16 is the Unicode CCSID that needs a package CCSID on SQL sessions.
	UTF16 = 1200

	// Problematic is the Japanese mixed CCSID that misbehaves as a job CCSID.
	Problematic = 5026
	// Replacement is the compatible substitute for Problematic.
	Replacement = 5035
)

var ErrUnsupported = errors.New("unsupported CCSID")

var encodings = map[int]encoding.Encoding{
	37:    charmap.CodePage037,
	1047:  charmap.CodePage1047,
	1140:  charmap.CodePage1140,
	437:   charmap.CodePage437,
	850:   charmap.CodePage850,
	819:   charmap.ISO8859_1,
	1252:  charmap.Windows1252,
	UTF8:  unicode.UTF8,
	UTF16: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
	13488: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
}

// Valid reports whether ccsid is in the range the host accepts.
func Valid(ccsid int) bool {
	return ccsid >= MinCCSID && ccsid <= MaxCCSID
}

// Negotiate picks the session CCSID: an explicit value wins, otherwise the
// profile default with Problematic swapped for Replacement. The boolean is true
// when the swap happened.
func Negotiate(explicit, profileDefault int) (int, bool) {
	if explicit > 0 {
		return explicit, false
	}
	if profileDefault == Problematic {
		return Replacement, true
	}
	return profileDefault, false
}

// Lookup returns the encoding for ccsid.
func Lookup(ccsid int) (encoding.Encoding, error) {
	enc, ok := encodings[ccsid]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupported, ccsid)
	}
	return enc, nil
}

// Decode converts host bytes in ccsid to a Go string. A zero ccsid is treated as 37.
func Decode(ccsid int, data []byte) (string, error) {
	if ccsid == 0 {
		ccsid = 37
	}
	enc, err := Lookup(ccsid)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode CCSID %d data: %w", ccsid, err)
	}
	return string(out), nil
}
