package domain

import "errors"

var (
	// ErrInvalidURL is returned when a submitted URL fails to parse or uses
	// a scheme outside {http, https}.
	ErrInvalidURL = errors.New("url must be a valid http or https URL")

	// ErrEmptyRoutingKey is returned when routing_key is blank.
	ErrEmptyRoutingKey = errors.New("routing_key must not be empty")

	// ErrFileTooSmall is returned when the target's Content-Length is under
	// the 100 MiB measurement window.
	ErrFileTooSmall = errors.New("file size is less than 100 MB")

	// ErrUpstreamUnreachable is returned when the HEAD probe against the
	// target URL fails outright.
	ErrUpstreamUnreachable = errors.New("target url is unreachable")

	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrPublishFailed is returned when the message broker publish fails.
	ErrPublishFailed = errors.New("failed to publish job to message broker")

	// ErrRateLimitExceeded is returned when the API rate limit is hit.
	ErrRateLimitExceeded = errors.New("rate limit exceeded, try again later")

	// ErrDuplicateRun is returned when a ResultRecord insert collides with
	// an existing run_id — the expected shape of a safe broker redelivery.
	ErrDuplicateRun = errors.New("result already recorded for this run_id")

	// ErrSubJobNotFound is returned when a SubJob referenced by a result
	// cannot be found; the caller should treat the delivery as stale.
	ErrSubJobNotFound = errors.New("sub_job not found")

	// ErrWorkerNotFound is returned when a worker is looked up by name and
	// no registry row exists for it.
	ErrWorkerNotFound = errors.New("worker not found")
)
