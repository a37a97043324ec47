package scan

import "errors"

var (
	// ErrJobNotFound is returned when a job id has no stored record.
	ErrJobNotFound = errors.New("job not found")
	// ErrMissingTarget is returned when a job is created without a target string.
	ErrMissingTarget = errors.New("missing target")
	// ErrNoValidURLs is returned when ingestion leaves no http(s) URLs.
	ErrNoValidURLs = errors.New("no valid URLs found")
)
