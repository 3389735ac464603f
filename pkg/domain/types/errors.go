package types

import "github.com/m-mizutani/goerr/v2"

var (
	ErrInvalidOption    = goerr.New("invalid option")
	ErrValidationFailed = goerr.New("validation failed")

	// ErrRecordNotFound is returned by repositories when a lookup finds no
	// matching record.
	ErrRecordNotFound = goerr.New("record not found")

	// ErrBatchActive is returned when a scan is requested while another
	// batch is still running. Only one batch may run per scheduler instance.
	ErrBatchActive = goerr.New("another batch is already active")

	// ErrTransientExternal covers network failures, 5xx responses and
	// timeouts. Retryable with backoff.
	ErrTransientExternal = goerr.New("transient external failure")

	// ErrPermanentExternal covers 4xx-style rejections. Never retried.
	ErrPermanentExternal = goerr.New("permanent external rejection")

	// ErrMalformedResponse marks a success response whose payload could not
	// be parsed. Treated as a permanent failure for the attempt, never a crash.
	ErrMalformedResponse = goerr.New("malformed response payload")

	// ErrBudgetExceeded marks a credit or hourly cost ceiling. Always fatal
	// to the batch.
	ErrBudgetExceeded = goerr.New("credit budget exceeded")

	// ErrScanTimeout marks a per-entity timeout. Retryable up to the
	// entity's retry ceiling.
	ErrScanTimeout = goerr.New("entity scan timed out")
)
