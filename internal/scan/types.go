package scan

import (
	"net/http"
	"time"
)

// JobStatus represents the lifecycle state of a scan job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusFinished JobStatus = "finished"
	JobStatusStopped  JobStatus = "stopped"
)

// Terminal reports whether no further batch processing is accepted.
func (s JobStatus) Terminal() bool {
	return s == JobStatusFinished || s == JobStatusStopped
}

// Job is one scan run over a fixed URL list.
type Job struct {
	ID              string        `json:"id"`
	Created         time.Time     `json:"created"`
	Updated         time.Time     `json:"updated"`
	Started         *time.Time    `json:"started_at,omitempty"`
	Finished        *time.Time    `json:"finished_at,omitempty"`
	Target          string        `json:"target"`
	URLs            []string      `json:"urls"`
	Position        int           `json:"position"`
	Total           int           `json:"total"`
	Results         []FetchResult `json:"results,omitempty"`
	Matched         int           `json:"matched"`
	Retries         int           `json:"retries"`
	Status          JobStatus     `json:"status"`
	ShowMatchedOnly bool          `json:"show_matched"`
	ResultsFile     string        `json:"results_file,omitempty"`
}

// Summary returns a copy of the job without the URL list and accumulated
// results, suitable for status responses.
func (j Job) Summary() Job {
	out := j
	out.URLs = nil
	out.Results = nil
	return out
}

// FetchResult is the outcome recorded for one URL.
type FetchResult struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Found      bool   `json:"found"`
	Error      string `json:"error"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	JobID   string
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// CreateJobRequest carries the driver's input for a new job.
type CreateJobRequest struct {
	Target          string
	URLs            []string
	ShowMatchedOnly bool
}

// AdvanceResponse reports the outcome of one Advance call. BatchResults
// holds only the results of the slice processed by this call.
type AdvanceResponse struct {
	JobID        string        `json:"job_id"`
	Status       JobStatus     `json:"status"`
	Position     int           `json:"position"`
	Total        int           `json:"total"`
	Finished     bool          `json:"finished"`
	Stopped      bool          `json:"stopped"`
	ResultsFile  string        `json:"results_file"`
	BatchResults []FetchResult `json:"batch_results"`
}
