// Package results writes scan results as the downloadable CSV artifact.
package results

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/stringfinder/internal/scan"
)

// ContentType is the MIME type stored with result files.
const ContentType = "text/csv; charset=utf-8"

// Header is the first row of every results file.
var Header = []string{"URL", "Status Code", "Match Found"}

// CSVSink renders results as CSV and stores them through a BlobStore.
type CSVSink struct {
	blobs  scan.BlobStore
	clock  scan.Clock
	prefix string
	logger *zap.Logger
}

// NewCSVSink returns a sink writing under prefix (default "results").
func NewCSVSink(blobs scan.BlobStore, clock scan.Clock, prefix string, logger *zap.Logger) *CSVSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "results"
	}
	return &CSVSink{
		blobs:  blobs,
		clock:  clock,
		prefix: prefix,
		logger: logger,
	}
}

// Write stores the CSV for jobID and returns its reference. With
// matchedOnly set, rows whose URL did not match are left out.
func (s *CSVSink) Write(ctx context.Context, jobID string, rows []scan.FetchResult, matchedOnly bool) (string, error) {
	data, written, err := Encode(rows, matchedOnly)
	if err != nil {
		return "", err
	}
	path := s.Path(jobID)
	ref, err := s.blobs.PutObject(ctx, path, ContentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("put results %s: %w", path, err)
	}
	s.logger.Info("results written",
		zap.String("job_id", jobID),
		zap.String("path", path),
		zap.Int("rows", written),
		zap.Bool("matched_only", matchedOnly),
	)
	return ref, nil
}

// Path returns the time-stamped object path for a job's results file.
func (s *CSVSink) Path(jobID string) string {
	stamp := s.clock.Now().Format("20060102_150405")
	return fmt.Sprintf("%s/results_%s_%s.csv", s.prefix, jobID, stamp)
}

// Encode renders rows as CSV with the standard header and returns the
// number of data rows written.
func Encode(rows []scan.FetchResult, matchedOnly bool) ([]byte, int, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, 0, fmt.Errorf("write csv header: %w", err)
	}
	written := 0
	for _, r := range rows {
		if matchedOnly && !r.Found {
			continue
		}
		if err := w.Write([]string{r.URL, strconv.Itoa(r.StatusCode), yesNo(r.Found)}); err != nil {
			return nil, 0, fmt.Errorf("write csv row: %w", err)
		}
		written++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, 0, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), written, nil
}

func yesNo(found bool) string {
	if found {
		return "Yes"
	}
	return "No"
}
