package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a sync is already running for the instance
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrConnectorNotRegistered indicates no connector is registered for the type.
	// This is a configuration error: fatal and never retried.
	ErrConnectorNotRegistered = errors.New("no connector registered")

	// ErrJobNotFound indicates the sync job does not exist
	ErrJobNotFound = errors.New("sync job not found")

	// ErrJobNotResumable indicates the job is not in a resumable state
	ErrJobNotResumable = errors.New("job is not in a resumable state")

	// ErrJobTimeout indicates a caller-side wait for a job exceeded its deadline.
	// The underlying job keeps running; only the wait is abandoned.
	ErrJobTimeout = errors.New("timed out waiting for sync job")

	// ErrInstanceNotFound indicates the connector instance does not exist
	ErrInstanceNotFound = errors.New("connector instance not found")

	// ErrBufferClosed indicates the ingestion buffer has been shut down
	ErrBufferClosed = errors.New("ingestion buffer is closed")

	// ErrNotMonitored indicates the connector is not registered with the monitor
	ErrNotMonitored = errors.New("connector is not monitored")
)
