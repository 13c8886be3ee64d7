package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozon/parser/internal/config"
	"ozon/parser/internal/domain"
	"ozon/parser/internal/useragent"
)

func testConfig() config.FetcherConfig {
	return config.FetcherConfig{
		MaxConnections:          3,
		MaxKeepaliveConnections: 2,
		Timeout:                 2 * time.Second,
	}
}

func collect(ch <-chan domain.PageResult) map[string]domain.PageResult {
	results := make(map[string]domain.PageResult)
	for r := range ch {
		results[r.URL] = r
	}
	return results
}

func TestFetcher_YieldsEveryURLExactlyOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Later paths answer first so arrival order differs from submission order.
		if r.URL.Path == "/0" {
			time.Sleep(50 * time.Millisecond)
		}
		fmt.Fprintf(w, "<html>%s</html>", r.URL.Path)
	}))
	defer server.Close()

	f := New(testConfig(), useragent.NewPool([]string{"ua-test"}), nil)
	defer f.Close()

	urls := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		urls = append(urls, fmt.Sprintf("%s/%d", server.URL, i))
	}

	count := 0
	seen := make(map[string]int)
	for r := range f.Fetch(context.Background(), urls) {
		count++
		seen[r.URL]++
		require.NoError(t, r.Err)
		assert.Contains(t, r.Content, "<html>")
	}

	assert.Equal(t, len(urls), count)
	for _, u := range urls {
		assert.Equal(t, 1, seen[u], "url %s", u)
	}
}

func TestFetcher_FailuresStillYieldURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte("ok"))
		}
	}))
	defer server.Close()

	f := New(testConfig(), useragent.NewPool(nil), nil)
	defer f.Close()

	refused := "http://127.0.0.1:1/refused"
	urls := []string{server.URL + "/fine", server.URL + "/missing", server.URL + "/broken", refused}

	results := collect(f.Fetch(context.Background(), urls))
	require.Len(t, results, len(urls))

	assert.True(t, results[server.URL+"/fine"].OK())
	assert.Equal(t, "ok", results[server.URL+"/fine"].Content)

	missing := results[server.URL+"/missing"]
	assert.False(t, missing.OK())
	assert.Empty(t, missing.Content)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	assert.True(t, errors.Is(missing.Err, ErrStatus))

	var statusErr *StatusError
	require.True(t, errors.As(results[server.URL+"/broken"].Err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)

	assert.Error(t, results[refused].Err)
	assert.False(t, errors.Is(results[refused].Err, ErrStatus))
}

func TestFetcher_RespectsConnectionCap(t *testing.T) {
	var inFlight, peak int64
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&inFlight, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
	}))
	defer server.Close()

	cfg := testConfig()
	f := New(cfg, useragent.NewPool(nil), nil)
	defer f.Close()

	urls := make([]string, 0, 15)
	for i := 0; i < 15; i++ {
		urls = append(urls, fmt.Sprintf("%s/p%d", server.URL, i))
	}

	results := collect(f.Fetch(context.Background(), urls))
	assert.Len(t, results, len(urls))
	assert.LessOrEqual(t, peak, int64(cfg.MaxConnections))
}

func TestFetcher_RotatesUserAgent(t *testing.T) {
	var mu sync.Mutex
	agents := make(map[string]bool)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents[r.Header.Get("User-Agent")] = true
		mu.Unlock()
	}))
	defer server.Close()

	pool := []string{"agent-1", "agent-2", "agent-3"}
	f := New(testConfig(), useragent.NewPool(pool), nil)
	defer f.Close()

	urls := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		urls = append(urls, fmt.Sprintf("%s/%d", server.URL, i))
	}
	collect(f.Fetch(context.Background(), urls))

	assert.Greater(t, len(agents), 1)
	for ua := range agents {
		assert.Contains(t, pool, ua)
	}
}

func TestFetcher_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	f := New(testConfig(), useragent.NewPool(nil), nil)
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := collect(f.Fetch(ctx, []string{server.URL + "/a", server.URL + "/b"}))
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}
