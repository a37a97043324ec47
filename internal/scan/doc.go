// Package scan implements the string-finder batch job engine: the job
// model and its state machine, the concurrent fetch-and-match batch
// runner, the body matcher and URL list ingestion.
package scan
