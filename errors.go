package datalake

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error is a constant error type so sentinels can be declared as consts.
type Error string

func (e Error) Error() string { return string(e) }

// ErrConfiguration is the cause of every error produced while validating
// configuration or wiring up collaborators before a run starts.
const ErrConfiguration = Error("invalid configuration")

// ErrTableExists is returned by sinks asked not to overwrite an existing table.
const ErrTableExists = Error("table already exists")

// MalformedRecordError describes a record which could not be used because a
// required field is missing or a value could not be parsed. Records failing
// this way are skipped and counted, they never fail a run.
type MalformedRecordError struct {
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Field == "" {
		return "malformed record: " + e.Reason
	}
	return fmt.Sprintf("malformed record: field '%s' %s", e.Field, e.Reason)
}

func malformed(field, format string, args ...interface{}) error {
	return &MalformedRecordError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NewMalformedRecordError returns a MalformedRecordError for use by Source
// implementations which can skip past an undecodable record.
func NewMalformedRecordError(reason string, args ...interface{}) error {
	return malformed("", reason, args...)
}

// IsMalformed reports whether the cause of err is a MalformedRecordError.
func IsMalformed(err error) bool {
	_, ok := errors.Cause(err).(*MalformedRecordError)
	return ok
}

// SinkWriteError wraps a failure to persist a table. It is fatal for the run
// but tables written before it are left in place.
type SinkWriteError struct {
	Table string
	Err   error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("writing table '%s': %v", e.Table, e.Err)
}

// Cause lets errors.Cause see through to the sink's own error.
func (e *SinkWriteError) Cause() error { return e.Err }

// ConfigErrorf returns an error whose cause is ErrConfiguration.
func ConfigErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}
