package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/stringfinder/internal/scan"
)

type scanOptions struct {
	csvPath     string
	target      string
	batchSize   int
	delay       time.Duration
	matchedOnly bool
}

// jobDriver is the part of the engine the poll loop needs.
type jobDriver interface {
	Advance(ctx context.Context, jobID string, batchSize int) (scan.AdvanceResponse, error)
	Stop(ctx context.Context, jobID string) (scan.Job, error)
}

func newScanCmd() *cobra.Command {
	var opts scanOptions
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a CSV of URLs for a target string",
		Long: `Creates a job from a CSV file (one URL per row, first column) and
advances it batch by batch until every URL is checked. Ctrl-C stops the job
after the batch in flight completes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScanCommand(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "CSV file with one URL per row")
	cmd.Flags().StringVar(&opts.target, "target", "", "string to search for")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "URLs per batch (0 uses scan.default_batch_size)")
	cmd.Flags().DurationVar(&opts.delay, "delay", -1, "pause between batches (negative uses scan.delay_ms)")
	cmd.Flags().BoolVar(&opts.matchedOnly, "matched-only", false, "write only matching rows to the results file")
	_ = cmd.MarkFlagRequired("csv")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func runScanCommand(cmd *cobra.Command, opts scanOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger().Named("scan")
	engine := appInstance.Engine()
	out := cmd.OutOrStdout()

	f, err := os.Open(opts.csvPath)
	if err != nil {
		return fmt.Errorf("open url list: %w", err)
	}
	urls, err := scan.ParseURLList(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	job, err := engine.CreateJob(cmd.Context(), scan.CreateJobRequest{
		Target:          opts.target,
		URLs:            urls,
		ShowMatchedOnly: opts.matchedOnly,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Job %s: scanning %d URLs for %q\n", job.ID, job.Total, job.Target)

	delay := opts.delay
	if delay < 0 {
		delay = appInstance.Config().Delay()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp, err := pollJob(ctx, engine, job.ID, opts.batchSize, delay, out, logger)
	if err != nil {
		return err
	}
	switch {
	case resp.Finished:
		fmt.Fprintf(out, "Finished %d/%d URLs. Results: %s\n", resp.Position, resp.Total, resp.ResultsFile)
	case resp.Stopped:
		fmt.Fprintf(out, "Stopped at %d/%d URLs.\n", resp.Position, resp.Total)
	}
	return nil
}

// pollJob advances the job until it finishes or stops. Advance runs on a
// context detached from ctx so a signal never cuts a batch short; once ctx
// is done the job is stopped at the next batch boundary.
func pollJob(
	ctx context.Context,
	jobs jobDriver,
	jobID string,
	batchSize int,
	delay time.Duration,
	out io.Writer,
	logger *zap.Logger,
) (scan.AdvanceResponse, error) {
	work := context.WithoutCancel(ctx)
	for ctx.Err() == nil {
		resp, err := jobs.Advance(work, jobID, batchSize)
		if err != nil {
			return scan.AdvanceResponse{}, fmt.Errorf("advance job: %w", err)
		}
		for _, r := range resp.BatchResults {
			printRow(out, r)
		}
		logger.Info("batch done",
			zap.String("job_id", jobID),
			zap.Int("position", resp.Position),
			zap.Int("total", resp.Total),
		)
		if resp.Finished || resp.Stopped {
			return resp, nil
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
			timer.Stop()
		}
	}

	logger.Info("interrupt received, stopping job", zap.String("job_id", jobID))
	job, err := jobs.Stop(work, jobID)
	if err != nil {
		return scan.AdvanceResponse{}, fmt.Errorf("stop job: %w", errors.Join(err, context.Cause(ctx)))
	}
	return scan.AdvanceResponse{
		JobID:    job.ID,
		Status:   job.Status,
		Position: job.Position,
		Total:    job.Total,
		Stopped:  true,
	}, nil
}

func printRow(out io.Writer, r scan.FetchResult) {
	mark := "✘"
	if r.Found {
		mark = "✔"
	}
	if r.Error != "" {
		fmt.Fprintf(out, "%s %s [Status:%d Error:%s]\n", mark, r.URL, r.StatusCode, r.Error)
		return
	}
	fmt.Fprintf(out, "%s %s [Status:%d]\n", mark, r.URL, r.StatusCode)
}
