package proxy

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"
)

// Supplier manages a pool of proxies with round-robin selection
type Supplier interface {
	Get() string
	Len() int
}

type supplier struct {
	proxies []string
	current int
	mutex   sync.Mutex
}

// NewSupplier checks every proxy against testURL in parallel and keeps the working ones.
func NewSupplier(ctx context.Context, proxies []string, testURL string) Supplier {
	if len(proxies) == 0 {
		return &supplier{}
	}

	log.Infof("🔄 Testing %d proxies in parallel...", len(proxies))

	valid := make([]bool, len(proxies))

	g := new(errgroup.Group)
	g.SetLimit(50)

	for i, proxyURL := range proxies {
		g.Go(func() error {
			if isProxyValid(ctx, proxyURL, testURL) {
				valid[i] = true
				log.Infof("✅ Proxy %s is working", proxyURL)
			} else {
				log.Infof("❌ Proxy %s is not working, skipping", proxyURL)
			}
			return nil
		})
	}
	_ = g.Wait()

	working := make([]string, 0, len(proxies))
	for i, ok := range valid {
		if ok {
			working = append(working, proxies[i])
		}
	}

	log.Infof("✅ Proxy supplier initialized with %d working proxies out of %d tested", len(working), len(proxies))

	return &supplier{proxies: working}
}

// Get returns the next proxy URL in round-robin fashion, or "" when the pool is empty.
func (s *supplier) Get() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.proxies) == 0 {
		return ""
	}

	proxy := s.proxies[s.current]
	s.current = (s.current + 1) % len(s.proxies)

	return proxy
}

func (s *supplier) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.proxies)
}

// TransportProxy adapts a Supplier to http.Transport.Proxy, rotating per request.
// A nil supplier or an empty pool means a direct connection.
func TransportProxy(s Supplier) func(*http.Request) (*url.URL, error) {
	return func(*http.Request) (*url.URL, error) {
		if s == nil {
			return nil, nil
		}
		raw := s.Get()
		if raw == "" {
			return nil, nil
		}
		return url.Parse(raw)
	}
}

func isProxyValid(ctx context.Context, proxyURL, testURL string) bool {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(0).
		SetProxy(proxyURL)
	defer client.Close()

	resp, err := client.R().
		SetContext(ctx).
		Get(testURL)

	if err != nil {
		log.Debugf("Proxy test failed for %s: %v", proxyURL, err)
		return false
	}

	if resp.IsError() {
		log.Debugf("Proxy test failed for %s with status: %s", proxyURL, resp.Status())
		return false
	}

	return true
}
