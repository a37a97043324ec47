package collyfetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/stringfinder/internal/scan"
)

func TestFetchReturnsBodyAndBrowserHeaders(t *testing.T) {
	t.Parallel()

	var gotUA, gotAccept, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		gotAccept = r.Header.Get("Accept")
		gotLang = r.Header.Get("Accept-Language")
		_, _ = w.Write([]byte("<p>hello needle</p>"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{}, nil)
	resp, err := f.Fetch(context.Background(), scan.FetchRequest{URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "<p>hello needle</p>", string(resp.Body))
	require.Contains(t, gotUA, "Mozilla/5.0")
	require.Contains(t, gotAccept, "text/html")
	require.Equal(t, defaultAcceptLanguage, gotLang)
}

func TestFetchKeepsErrorStatusAndBody(t *testing.T) {
	t.Parallel()

	for _, code := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(code)
			_, _ = w.Write([]byte("oops"))
		}))

		f := New(Config{}, nil)
		resp, err := f.Fetch(context.Background(), scan.FetchRequest{URL: srv.URL})
		srv.Close()

		require.NoError(t, err, "status %d", code)
		require.Equal(t, code, resp.StatusCode)
		require.Equal(t, "oops", string(resp.Body))
	}
}

func TestFetchFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("moved here"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := New(Config{}, nil)
	resp, err := f.Fetch(context.Background(), scan.FetchRequest{URL: srv.URL + "/old"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "moved here", string(resp.Body))
}

func TestFetchDecompressesGzip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "text/html")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte("compressed needle"))
		_ = gz.Close()
	}))
	t.Cleanup(srv.Close)

	f := New(Config{}, nil)
	resp, err := f.Fetch(context.Background(), scan.FetchRequest{URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, "compressed needle", string(resp.Body))
}

func TestFetchSelfSignedTLS(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("secure"))
	}))
	t.Cleanup(srv.Close)

	insecure := New(Config{InsecureSkipVerify: true}, nil)
	resp, err := insecure.Fetch(context.Background(), scan.FetchRequest{URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, "secure", string(resp.Body))

	strict := New(Config{}, nil)
	_, err = strict.Fetch(context.Background(), scan.FetchRequest{URL: srv.URL})
	require.Error(t, err)
}

func TestFetchConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := New(Config{ConnectTimeout: time.Second, Timeout: 2 * time.Second}, nil)
	resp, err := f.Fetch(context.Background(), scan.FetchRequest{URL: addr})
	require.Error(t, err)
	require.Zero(t, resp.StatusCode)
}

func TestFetchHonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte("late"))
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := New(Config{Timeout: 5 * time.Second}, nil)
	_, err := f.Fetch(ctx, scan.FetchRequest{URL: srv.URL})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	req := scan.FetchRequest{
		URL:     "https://example.com",
		Headers: http.Header{"X-Trace": {"yes"}, "Accept": {"text/plain"}},
	}
	start := time.Unix(0, 0)
	var result scan.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, start, &result, &fetchErr)
	if hooks.onRequest == nil || hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	if collyReq.Headers.Get("X-Trace") != "yes" {
		t.Fatalf("expected header propagation, got %+v", collyReq.Headers)
	}
	if collyReq.Headers.Get("Accept") != "text/plain" {
		t.Fatalf("expected request headers to override defaults, got %q", collyReq.Headers.Get("Accept"))
	}

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com"),
		},
	})
	if result.StatusCode != http.StatusCreated || string(result.Body) != "body" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Headers.Get("X-Resp") != "ok" {
		t.Fatalf("expected headers copied, got %+v", result.Headers)
	}

	hooks.onError(nil, errors.New("boom"))
	if fetchErr == nil || fetchErr.Error() != "boom" {
		t.Fatalf("expected fetchErr set, got %v", fetchErr)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	f := New(Config{MaxBodyBytes: 1024}, nil)
	if !strings.HasPrefix(f.baseCollector.UserAgent, "Mozilla/5.0") {
		t.Fatalf("expected browser user agent, got %q", f.baseCollector.UserAgent)
	}
	if f.cfg.Timeout != defaultTimeout || f.cfg.ConnectTimeout != defaultConnectTimeout {
		t.Fatalf("unexpected timeouts: %+v", f.cfg)
	}
	if f.baseCollector.MaxBodySize != 1024 {
		t.Fatalf("expected body cap, got %d", f.baseCollector.MaxBodySize)
	}
	if !f.baseCollector.AllowURLRevisit || !f.baseCollector.IgnoreRobotsTxt {
		t.Fatal("expected revisits allowed and robots ignored")
	}
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
