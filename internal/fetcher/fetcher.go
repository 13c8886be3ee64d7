package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"

	"ozon/parser/internal/config"
	"ozon/parser/internal/domain"
	"ozon/parser/internal/proxy"
	"ozon/parser/internal/useragent"
)

// Fetcher issues concurrent GET requests and yields results as they complete.
type Fetcher interface {
	Fetch(ctx context.Context, urls []string) <-chan domain.PageResult
	Close() error
}

type fetcher struct {
	rl         ratelimit.Limiter
	httpClient *resty.Client
	agents     useragent.Pool
	semaphore  chan struct{}
	timeout    time.Duration
}

// New builds a fetcher that keeps at most cfg.MaxConnections requests in flight
// and at most cfg.MaxKeepaliveConnections idle connections for reuse.
func New(cfg config.FetcherConfig, agents useragent.Pool, proxies proxy.Supplier) Fetcher {
	transport := &http.Transport{
		Proxy: proxy.TransportProxy(proxies),
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxConnsPerHost:     cfg.MaxConnections,
		MaxIdleConns:        cfg.MaxKeepaliveConnections,
		MaxIdleConnsPerHost: cfg.MaxKeepaliveConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: cfg.Timeout,
		ForceAttemptHTTP2:   true,
	}

	client := resty.NewWithClient(&http.Client{Transport: transport}).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.5")

	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	return &fetcher{
		rl:         rl,
		httpClient: client,
		agents:     agents,
		semaphore:  make(chan struct{}, cfg.MaxConnections),
		timeout:    cfg.Timeout,
	}
}

// Fetch requests every url once. The returned channel receives exactly one result per
// url, in completion order, and is closed after the last one.
func (f *fetcher) Fetch(ctx context.Context, urls []string) <-chan domain.PageResult {
	results := make(chan domain.PageResult, len(urls))

	wg := &sync.WaitGroup{}
	for _, url := range urls {
		wg.Add(1)

		go func(url string) {
			defer wg.Done()

			select {
			case f.semaphore <- struct{}{}:
			case <-ctx.Done():
				results <- f.failed(url, 0, fmt.Errorf("request cancelled: %w", ctx.Err()))
				return
			}
			defer func() { <-f.semaphore }()

			results <- f.fetchOne(ctx, url)
		}(url)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (f *fetcher) fetchOne(ctx context.Context, url string) domain.PageResult {
	f.rl.Take()

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.httpClient.R().
		SetContext(reqCtx).
		SetHeader("User-Agent", f.agents.Random()).
		Get(url)

	if err != nil {
		if ctx.Err() != nil {
			return f.failed(url, 0, fmt.Errorf("request cancelled: %w", ctx.Err()))
		}
		return f.failed(url, 0, fmt.Errorf("failed to fetch URL: %w", err))
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return f.failed(url, resp.StatusCode(), &StatusError{Code: resp.StatusCode(), Status: resp.Status()})
	}

	log.WithField("url", url).Debugf("Fetched %d bytes", len(resp.String()))

	return domain.PageResult{
		URL:        url,
		StatusCode: resp.StatusCode(),
		Content:    resp.String(),
	}
}

func (f *fetcher) failed(url string, status int, err error) domain.PageResult {
	log.WithFields(log.Fields{
		"url":   url,
		"error": err,
	}).Warn("Failed while fetching page")

	return domain.PageResult{URL: url, StatusCode: status, Err: err}
}

func (f *fetcher) Close() error {
	return f.httpClient.Close()
}
