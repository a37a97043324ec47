package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveFetch(t *testing.T) {
	before := testutil.ToFloat64(fetchesTotal.WithLabelValues(OutcomeMatched))
	ObserveFetch(OutcomeMatched)
	ObserveFetch(OutcomeMatched)
	if got := testutil.ToFloat64(fetchesTotal.WithLabelValues(OutcomeMatched)) - before; got != 2 {
		t.Errorf("expected 2 matched fetches, got %f", got)
	}
}

func TestObserveRetriesIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(retriesTotal)
	ObserveRetries(0)
	ObserveRetries(3)
	if got := testutil.ToFloat64(retriesTotal) - before; got != 3 {
		t.Errorf("expected retries to grow by 3, got %f", got)
	}
}

func TestObserveJobAndBatch(t *testing.T) {
	before := testutil.ToFloat64(jobsTotal.WithLabelValues(JobFinished))
	ObserveJob(JobFinished)
	if got := testutil.ToFloat64(jobsTotal.WithLabelValues(JobFinished)) - before; got != 1 {
		t.Errorf("expected one finished job, got %f", got)
	}

	urlsBefore := testutil.ToFloat64(batchURLs)
	ObserveBatch(5, 250*time.Millisecond)
	if got := testutil.ToFloat64(batchURLs) - urlsBefore; got != 5 {
		t.Errorf("expected 5 batch urls, got %f", got)
	}
	if n := testutil.CollectAndCount(batchDurationSeconds); n != 1 {
		t.Errorf("expected batch histogram to be collected, got %d", n)
	}
}

func TestObserveRateLimitWait(t *testing.T) {
	ObserveRateLimitWait(150 * time.Millisecond)
	if n := testutil.CollectAndCount(rateLimitWaitSeconds); n != 1 {
		t.Errorf("expected rate limit histogram to be collected, got %d", n)
	}
}
