package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidTarget is returned when the per-kind record target is not positive.
	ErrInvalidTarget = errors.New("invalid target: must be positive")

	// ErrInvalidPageSize is returned when the list page size is not positive.
	ErrInvalidPageSize = errors.New("invalid page size: must be positive")

	// ErrInvalidPace is returned when the pacing delay is negative.
	// Use 0 to disable pacing.
	ErrInvalidPace = errors.New("invalid pace: must be non-negative")

	// ErrNoOutput is returned when no workbook path is configured.
	ErrNoOutput = errors.New("no output workbook specified")

	// ErrNoKinds is returned when no record kind is selected.
	ErrNoKinds = errors.New("no record kinds selected: use legal, individual or both")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidAttempts is returned when fewer than one fetch attempt is allowed.
	ErrInvalidAttempts = errors.New("invalid attempts: must be at least 1")

	// ErrInvalidBackoff is returned when the backoff or jitter is negative.
	ErrInvalidBackoff = errors.New("invalid backoff: base and jitter must be non-negative")

	// ErrInvalidKindConcurrency is returned when kind concurrency is not positive.
	ErrInvalidKindConcurrency = errors.New("invalid kind concurrency: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidEndpoint is returned when a registry endpoint is not an
	// absolute http(s) URL.
	ErrInvalidEndpoint = errors.New("invalid endpoint: must be an absolute http or https URL")

	// ErrInvalidEnv is returned when a BANKROTSCAN_* variable cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment variable")
)
