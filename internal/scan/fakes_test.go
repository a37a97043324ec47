package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// scriptedFetcher answers each URL from a per-URL script; the last entry
// repeats once the script runs out.
type scriptedFetcher struct {
	mu      sync.Mutex
	scripts map[string][]fakeReply
	calls   map[string]int
	delay   time.Duration
	active  int
	peak    int
}

type fakeReply struct {
	status int
	body   string
	err    error
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		scripts: make(map[string][]fakeReply),
		calls:   make(map[string]int),
	}
}

func (f *scriptedFetcher) on(url string, replies ...fakeReply) *scriptedFetcher {
	f.scripts[url] = replies
	return f
}

func (f *scriptedFetcher) Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	f.mu.Lock()
	n := f.calls[req.URL]
	f.calls[req.URL] = n + 1
	f.active++
	f.peak = max(f.peak, f.active)
	script := f.scripts[req.URL]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return FetchResponse{}, ctx.Err()
		}
	}

	if len(script) == 0 {
		return FetchResponse{URL: req.URL, StatusCode: 200, Body: []byte("<html>default</html>")}, nil
	}
	reply := script[min(n, len(script)-1)]
	if reply.err != nil {
		return FetchResponse{}, reply.err
	}
	return FetchResponse{URL: req.URL, StatusCode: reply.status, Body: []byte(reply.body)}, nil
}

func (f *scriptedFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *scriptedFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]Job
	puts int
	err  error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]Job)}
}

func (s *fakeJobStore) Get(_ context.Context, jobID string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return cloneJob(job), nil
}

func (s *fakeJobStore) Put(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.puts++
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *fakeJobStore) stored(jobID string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneJob(s.jobs[jobID])
}

func cloneJob(job Job) Job {
	job.URLs = append([]string(nil), job.URLs...)
	job.Results = append([]FetchResult(nil), job.Results...)
	return job
}

// recordingSink renders rows the way the CSV sink does and keeps them.
type recordingSink struct {
	mu     sync.Mutex
	writes int
	rows   [][]string
	fail   error
}

func (s *recordingSink) Write(_ context.Context, jobID string, results []FetchResult, matchedOnly bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.writes++
	s.rows = [][]string{{"URL", "Status Code", "Match Found"}}
	for _, r := range results {
		if matchedOnly && !r.Found {
			continue
		}
		found := "No"
		if r.Found {
			found = "Yes"
		}
		s.rows = append(s.rows, []string{r.URL, fmt.Sprint(r.StatusCode), found})
	}
	return fmt.Sprintf("https://files.test/results_%s_%d.csv", jobID, s.writes), nil
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeIDGen struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (g *fakeIDGen) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	if len(g.ids) == 0 {
		return "", errors.New("no ids left")
	}
	id := g.ids[0]
	g.ids = g.ids[1:]
	return id, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads []any
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return fmt.Sprintf("msg-%d", len(p.topics)), nil
}

func urlsFor(hosts ...string) []string {
	out := make([]string, len(hosts))
	for i, h := range hosts {
		out[i] = "http://" + strings.TrimPrefix(h, "http://")
	}
	return out
}
