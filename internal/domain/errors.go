package domain

import (
	"errors"
	"fmt"
)

// TransientFetchError indicates a retryable fetch failure: the network hiccuped
// or the index API answered with a server-side error. The retrieval engine
// retries these within its backoff budget.
type TransientFetchError struct {
	Err error
}

func NewTransientFetchErrorf(msg string, args ...interface{}) error {
	return TransientFetchError{Err: fmt.Errorf(msg, args...)}
}

func (e TransientFetchError) Error() string { return "transient fetch error: " + e.Err.Error() }
func (e TransientFetchError) Unwrap() error { return e.Err }

// IsTransientFetchError returns whether err is a TransientFetchError.
func IsTransientFetchError(err error) bool {
	var e TransientFetchError
	return errors.As(err, &e)
}

// FatalFetchError indicates a fetch failure that retrying cannot cure: the
// request was rejected or the response could not be understood.
type FatalFetchError struct {
	Err error
}

func NewFatalFetchErrorf(msg string, args ...interface{}) error {
	return FatalFetchError{Err: fmt.Errorf(msg, args...)}
}

func (e FatalFetchError) Error() string { return "fatal fetch error: " + e.Err.Error() }
func (e FatalFetchError) Unwrap() error { return e.Err }

// IsFatalFetchError returns whether err is a FatalFetchError.
func IsFatalFetchError(err error) bool {
	var e FatalFetchError
	return errors.As(err, &e)
}

// RetrievalFailedError aborts the run: at least one account's history could not
// be fetched completely, so exporting would silently produce a partial tax
// history. It aggregates the per-account failures for diagnostics.
type RetrievalFailedError struct {
	Err error
}

func NewRetrievalFailedError(err error) error {
	return RetrievalFailedError{Err: err}
}

func (e RetrievalFailedError) Error() string { return "retrieval failed: " + e.Err.Error() }
func (e RetrievalFailedError) Unwrap() error { return e.Err }

// IsRetrievalFailedError returns whether err is a RetrievalFailedError.
func IsRetrievalFailedError(err error) bool {
	var e RetrievalFailedError
	return errors.As(err, &e)
}

// ExportFailedError aborts the run: rows could not be serialized or written.
// The output path is left as it was before the run.
type ExportFailedError struct {
	Err error
}

func NewExportFailedError(err error) error {
	return ExportFailedError{Err: err}
}

func (e ExportFailedError) Error() string { return "export failed: " + e.Err.Error() }
func (e ExportFailedError) Unwrap() error { return e.Err }

// IsExportFailedError returns whether err is an ExportFailedError.
func IsExportFailedError(err error) bool {
	var e ExportFailedError
	return errors.As(err, &e)
}

// InvariantViolationError describes a structurally inconsistent transaction
// record (for example an entry without a participant). Classification recovers
// from these by routing the record to the Other category; the violation is
// reported as a warning, never as a run failure.
type InvariantViolationError struct {
	Hash string
	Msg  string
}

func NewInvariantViolationErrorf(hash string, msg string, args ...interface{}) error {
	return InvariantViolationError{Hash: hash, Msg: fmt.Sprintf(msg, args...)}
}

func (e InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation in transaction %s: %s", e.Hash, e.Msg)
}

// IsInvariantViolationError returns whether err is an InvariantViolationError.
func IsInvariantViolationError(err error) bool {
	var e InvariantViolationError
	return errors.As(err, &e)
}
