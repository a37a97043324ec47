package scan

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/stringfinder/internal/metrics"
)

// BatchRunner fetches a slice of URLs concurrently, matches each body
// against the target and grants transient failures one retry round.
type BatchRunner struct {
	fetcher Fetcher
	logger  *zap.Logger
}

// NewBatchRunner constructs a BatchRunner.
func NewBatchRunner(fetcher Fetcher, logger *zap.Logger) *BatchRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchRunner{fetcher: fetcher, logger: logger}
}

// RetryEligible reports whether a fetch outcome looks transient: the
// request failed outright, the server answered 500, or the body was empty.
func RetryEligible(statusCode int, body []byte, fetchErr error) bool {
	return fetchErr != nil || statusCode == http.StatusInternalServerError || len(body) == 0
}

// Run returns exactly one result per input URL, in input order, along with
// the number of URLs that were fetched a second time. It blocks until every
// fetch, including the retry round, has finished.
func (r *BatchRunner) Run(
	ctx context.Context,
	jobID string,
	urls []string,
	target string,
	concurrency int,
) ([]FetchResult, int) {
	results := make([]FetchResult, len(urls))
	all := make([]int, len(urls))
	for i := range urls {
		all[i] = i
	}

	retry := r.fetchAll(ctx, jobID, urls, all, target, concurrency, results)
	if len(retry) == 0 {
		return results, 0
	}
	r.logger.Debug("retrying transient failures",
		zap.String("job_id", jobID),
		zap.Int("count", len(retry)),
	)
	metrics.ObserveRetries(len(retry))
	// The retry outcome replaces the first one whatever it is.
	r.fetchAll(ctx, jobID, urls, retry, target, concurrency, results)
	return results, len(retry)
}

// fetchAll fetches urls[i] for every i in indexes, writes each outcome to
// results[i] and returns the indexes that qualify for a retry.
func (r *BatchRunner) fetchAll(
	ctx context.Context,
	jobID string,
	urls []string,
	indexes []int,
	target string,
	concurrency int,
	results []FetchResult,
) []int {
	if concurrency <= 0 || concurrency > len(indexes) {
		concurrency = len(indexes)
	}
	eligible := make([]bool, len(indexes))

	var g errgroup.Group
	g.SetLimit(max(concurrency, 1))
	for n, idx := range indexes {
		g.Go(func() error {
			results[idx], eligible[n] = r.fetchOne(ctx, jobID, urls[idx], target)
			return nil
		})
	}
	_ = g.Wait() // fetchOne never fails; errors are recorded per URL

	var retry []int
	for n, idx := range indexes {
		if eligible[n] {
			retry = append(retry, idx)
		}
	}
	return retry
}

func (r *BatchRunner) fetchOne(ctx context.Context, jobID, url, target string) (FetchResult, bool) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "scan.Fetch")
	span.SetAttributes(attribute.String("url", url))
	defer span.End()

	resp, err := r.fetcher.Fetch(ctx, FetchRequest{JobID: jobID, URL: url})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		r.logger.Debug("fetch failed",
			zap.String("job_id", jobID),
			zap.String("url", url),
			zap.Error(err),
		)
		metrics.ObserveFetch(metrics.OutcomeError)
		return FetchResult{URL: url, Error: err.Error()}, true
	}

	found := Matches(string(resp.Body), target)
	span.SetAttributes(attribute.Int("status_code", resp.StatusCode), attribute.Bool("found", found))
	if found {
		metrics.ObserveFetch(metrics.OutcomeMatched)
	} else {
		metrics.ObserveFetch(metrics.OutcomeUnmatched)
	}
	return FetchResult{
		URL:        url,
		StatusCode: resp.StatusCode,
		Found:      found,
	}, RetryEligible(resp.StatusCode, resp.Body, nil)
}
