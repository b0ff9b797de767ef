package utils

import "errors"

var (
	ErrorRecordNotFound = errors.New("record not found")

	// ErrorUnauthorized means the caller lacks the admin capability. No state
	// has been changed when it is returned.
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrorInvalidInput covers malformed periods, negative rates/thresholds
	// and the like, rejected before any write.
	ErrorInvalidInput = errors.New("invalid input")

	// ErrorPersistence wraps repository failures. For the initial payroll run
	// insert it aborts the whole operation; per-worker timesheet failures are
	// recorded in the run summary instead.
	ErrorPersistence = errors.New("persistence failure")
)
