package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/stringfinder/internal/metrics"
)

const tracerName = "github.com/JakeFAU/stringfinder/internal/scan"

// Default batch bounds, matching the admin form limits.
const (
	DefaultBatchSize = 10
	MaxBatchSize     = 100
)

// EngineConfig controls Engine behavior.
type EngineConfig struct {
	DefaultBatchSize int
	MaxBatchSize     int
	// Topic receives one notification per finished job. Empty disables it.
	Topic string
}

// Engine owns the job state machine. All job state lives in the JobStore;
// an Engine only serializes Advance and Stop calls for the same job id.
type Engine struct {
	store     JobStore
	runner    *BatchRunner
	sink      ResultSink
	publisher Publisher
	clock     Clock
	ids       IDGenerator
	locks     *keyedMutex
	cfg       EngineConfig
	logger    *zap.Logger
}

// NewEngine constructs an Engine. publisher may be nil.
func NewEngine(
	store JobStore,
	runner *BatchRunner,
	sink ResultSink,
	publisher Publisher,
	clock Clock,
	ids IDGenerator,
	cfg EngineConfig,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = MaxBatchSize
	}
	if cfg.DefaultBatchSize <= 0 {
		cfg.DefaultBatchSize = DefaultBatchSize
	}
	cfg.DefaultBatchSize = min(cfg.DefaultBatchSize, cfg.MaxBatchSize)
	return &Engine{
		store:     store,
		runner:    runner,
		sink:      sink,
		publisher: publisher,
		clock:     clock,
		ids:       ids,
		locks:     newKeyedMutex(),
		cfg:       cfg,
		logger:    logger,
	}
}

// CreateJob validates the input and stores a queued job.
func (e *Engine) CreateJob(ctx context.Context, req CreateJobRequest) (Job, error) {
	target := strings.TrimSpace(req.Target)
	if target == "" {
		return Job{}, ErrMissingTarget
	}
	urls := FilterURLs(req.URLs)
	if len(urls) == 0 {
		return Job{}, ErrNoValidURLs
	}
	jobID, err := e.ids.NewID()
	if err != nil {
		return Job{}, fmt.Errorf("generate job id: %w", err)
	}
	now := e.clock.Now()
	job := Job{
		ID:              jobID,
		Created:         now,
		Updated:         now,
		Target:          target,
		URLs:            urls,
		Total:           len(urls),
		Status:          JobStatusQueued,
		ShowMatchedOnly: req.ShowMatchedOnly,
	}
	if err := e.store.Put(ctx, job); err != nil {
		return Job{}, fmt.Errorf("store job: %w", err)
	}
	metrics.ObserveJob(metrics.JobCreated)
	e.logger.Info("job created",
		zap.String("job_id", job.ID),
		zap.Int("total", job.Total),
		zap.Bool("show_matched_only", job.ShowMatchedOnly),
	)
	return job, nil
}

// GetJob returns the stored job.
func (e *Engine) GetJob(ctx context.Context, jobID string) (Job, error) {
	job, err := e.store.Get(ctx, jobID)
	if err != nil {
		return Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}

// Advance processes the next slice of at most batchSize URLs. Finished and
// stopped jobs are reported as such without any fetching.
func (e *Engine) Advance(ctx context.Context, jobID string, batchSize int) (resp AdvanceResponse, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "scan.Advance")
	span.SetAttributes(attribute.String("job_id", jobID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Int("position", resp.Position),
				attribute.Int("total", resp.Total),
				attribute.String("status", string(resp.Status)),
			)
		}
		span.End()
	}()

	unlock := e.locks.Lock(jobID)
	defer unlock()

	job, err := e.store.Get(ctx, jobID)
	if err != nil {
		return AdvanceResponse{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if job.Status.Terminal() {
		return respond(job, nil), nil
	}

	start := time.Now()
	next, batch, err := e.step(ctx, job, e.batchSize(batchSize))
	if err != nil {
		return AdvanceResponse{}, err
	}
	metrics.ObserveBatch(len(batch), time.Since(start))

	if err := e.finishIfDone(ctx, &next); err != nil {
		// Keep the advanced cursor and the buffered results; the next
		// Advance call sees an empty slice and retries the flush.
		if putErr := e.store.Put(ctx, next); putErr != nil {
			e.logger.Error("persist job after flush failure",
				zap.String("job_id", jobID),
				zap.Error(putErr),
			)
		}
		return AdvanceResponse{}, err
	}
	if err := e.store.Put(ctx, next); err != nil {
		return AdvanceResponse{}, fmt.Errorf("store job %s: %w", jobID, err)
	}

	e.logger.Info("batch processed",
		zap.String("job_id", jobID),
		zap.Int("batch", len(batch)),
		zap.Int("position", next.Position),
		zap.Int("total", next.Total),
		zap.String("status", string(next.Status)),
	)
	return respond(next, batch), nil
}

// Stop marks the job stopped whatever its current state. It waits for an
// in-flight Advance on the same job to complete first.
func (e *Engine) Stop(ctx context.Context, jobID string) (Job, error) {
	unlock := e.locks.Lock(jobID)
	defer unlock()

	job, err := e.store.Get(ctx, jobID)
	if err != nil {
		return Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	wasStopped := job.Status == JobStatusStopped
	job.Status = JobStatusStopped
	job.Updated = e.clock.Now()
	if err := e.store.Put(ctx, job); err != nil {
		return Job{}, fmt.Errorf("store job %s: %w", jobID, err)
	}
	if !wasStopped {
		metrics.ObserveJob(metrics.JobStopped)
		e.logger.Info("job stopped",
			zap.String("job_id", jobID),
			zap.Int("position", job.Position),
			zap.Int("total", job.Total),
		)
	}
	return job, nil
}

// step runs the slice [position, position+size) through the batch runner
// and returns the advanced job along with the slice's own results. A
// canceled context discards the slice so the cursor does not move past
// URLs that never got a real answer.
func (e *Engine) step(ctx context.Context, job Job, size int) (Job, []FetchResult, error) {
	now := e.clock.Now()
	if job.Started == nil {
		job.Started = &now
	}
	job.Status = JobStatusRunning
	job.Updated = now

	begin := job.Position
	end := min(job.Total, begin+size)
	if end <= begin {
		return job, nil, nil
	}

	batch, retried := e.runner.Run(ctx, job.ID, job.URLs[begin:end], job.Target, end-begin)
	if err := ctx.Err(); err != nil {
		return Job{}, nil, fmt.Errorf("process batch for job %s: %w", job.ID, err)
	}

	job.Results = append(job.Results, batch...)
	job.Position = end
	job.Retries += retried
	for _, r := range batch {
		if r.Found {
			job.Matched++
		}
	}
	return job, batch, nil
}

// finishIfDone flushes the results once the cursor reaches the end.
func (e *Engine) finishIfDone(ctx context.Context, job *Job) error {
	if job.Position < job.Total {
		return nil
	}
	ref, err := e.sink.Write(ctx, job.ID, job.Results, job.ShowMatchedOnly)
	if err != nil {
		return fmt.Errorf("write results for job %s: %w", job.ID, err)
	}
	now := e.clock.Now()
	job.ResultsFile = ref
	job.Status = JobStatusFinished
	job.Finished = &now
	job.Updated = now
	job.Results = nil

	metrics.ObserveJob(metrics.JobFinished)
	e.publishFinished(ctx, *job)
	e.logger.Info("job finished",
		zap.String("job_id", job.ID),
		zap.Int("total", job.Total),
		zap.Int("matched", job.Matched),
		zap.String("results_file", ref),
	)
	return nil
}

func (e *Engine) publishFinished(ctx context.Context, job Job) {
	if e.cfg.Topic == "" || e.publisher == nil {
		return
	}
	payload := map[string]any{
		"event":        "job.finished",
		"job_id":       job.ID,
		"target":       job.Target,
		"total":        job.Total,
		"matched":      job.Matched,
		"results_file": job.ResultsFile,
		"timestamp":    job.Updated.Format(time.RFC3339),
	}
	if _, err := e.publisher.Publish(ctx, e.cfg.Topic, payload); err != nil {
		e.logger.Warn("publish job finished failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
}

func (e *Engine) batchSize(requested int) int {
	if requested <= 0 {
		return e.cfg.DefaultBatchSize
	}
	return min(requested, e.cfg.MaxBatchSize)
}

func respond(job Job, batch []FetchResult) AdvanceResponse {
	if batch == nil {
		batch = []FetchResult{}
	}
	return AdvanceResponse{
		JobID:        job.ID,
		Status:       job.Status,
		Position:     job.Position,
		Total:        job.Total,
		Finished:     job.Status == JobStatusFinished,
		Stopped:      job.Status == JobStatusStopped,
		ResultsFile:  job.ResultsFile,
		BatchResults: batch,
	}
}
