package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindsUnwrap(t *testing.T) {
	connErr := fmt.Errorf("connect: %w", &ConnectionError{Host: "dev", Reason: ErrInvalidCharset})
	assert.ErrorIs(t, connErr, ErrInvalidCharset)
	var ce *ConnectionError
	assert.True(t, errors.As(connErr, &ce))
	assert.Equal(t, "connection to dev failed: invalid CCSID", ce.Error())

	hostErr := &HostError{MessageID: StaleJobMessageID, Text: "Job not found"}
	waitErr := &JobWaitError{Job: JobIdentifier{"1", "U", "J"}, Err: hostErr}
	id, ok := HostMessageID(waitErr)
	assert.True(t, ok)
	assert.Equal(t, StaleJobMessageID, id)

	_, ok = HostMessageID(errors.New("plain"))
	assert.False(t, ok)

	result := NewCommandResult("CRTLIB X", false, []Message{{ID: "CPF2111", Severity: 40, Text: "Library X already exists."}})
	cmdErr := &CommandError{Command: "CRTLIB X", Result: result}
	assert.Contains(t, cmdErr.Error(), "[CPF2111][40] Library X already exists.")

	transferErr := &TransferError{Op: "download", Path: "/home/x", Reason: ErrNotExist}
	assert.ErrorIs(t, transferErr, ErrNotExist)
	assert.Equal(t, "download of /home/x failed: does not exist", transferErr.Error())
}
