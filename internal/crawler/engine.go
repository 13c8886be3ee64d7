package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ozon/parser/internal/config"
	"ozon/parser/internal/domain"
	"ozon/parser/internal/extract"
)

var ErrNoRenderers = errors.New("no page renderer could be started")

// Renderer loads a page the way a browser would and returns the resulting markup.
// A Renderer is used by a single consumer at a time.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
	Close() error
}

type RendererFactory func() (Renderer, error)

// PageHandler receives the items of one listing page as soon as it is parsed.
type PageHandler func(ctx context.Context, page domain.WorkItem, items []domain.ItemRecord) error

// PaginatedCrawlEngine walks the listing pages of one category. The number of
// pages is learned while crawling: every rendered page may raise it.
type PaginatedCrawlEngine struct {
	workers      int
	pollInterval time.Duration
	lazyMaxPage  int
	newRenderer  RendererFactory
}

func NewPaginatedCrawlEngine(cfg config.CrawlerConfig, newRenderer RendererFactory) *PaginatedCrawlEngine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &PaginatedCrawlEngine{
		workers:      max(workers, 1),
		pollInterval: pollInterval,
		lazyMaxPage:  cfg.LazyMaxPage,
		newRenderer:  newRenderer,
	}
}

type crawl struct {
	engine      *PaginatedCrawlEngine
	categoryURL string
	onPage      PageHandler
	state       *CrawlState
	queue       *workQueue
	start       chan struct{}
	terminate   atomic.Bool
	rendered    atomic.Int64
}

type worker struct {
	id       int
	renderer Renderer
}

// Crawl collects the items of every listing page of categoryURL. Item order is
// not defined. onPage, when set, is called by consumers after each parsed page.
// On cancellation the items gathered so far are returned with the context error.
func (e *PaginatedCrawlEngine) Crawl(ctx context.Context, categoryURL string, onPage PageHandler) ([]domain.ItemRecord, error) {
	workers := e.startWorkers()
	if len(workers) == 0 {
		return nil, ErrNoRenderers
	}
	defer closeWorkers(workers)

	c := &crawl{
		engine:      e,
		categoryURL: categoryURL,
		onPage:      onPage,
		state:       NewCrawlState(),
		queue:       newWorkQueue(),
		start:       make(chan struct{}),
	}

	c.state.SetCurrentPage(0)
	c.state.UpdateMaxPage(1, true)

	log.WithFields(log.Fields{
		"url":     categoryURL,
		"workers": len(workers),
	}).Info("🚀 Starting paginated crawl")

	producerDone := make(chan error, 1)
	go func() {
		producerDone <- c.produce(ctx)
	}()

	var consumers errgroup.Group
	for _, w := range workers {
		consumers.Go(func() error {
			c.consume(ctx, w)
			return nil
		})
	}

	close(c.start)

	err := <-producerDone
	c.terminate.Store(true)
	_ = consumers.Wait()

	items := c.state.Items()
	log.WithFields(log.Fields{
		"url":   categoryURL,
		"pages": c.rendered.Load(),
		"items": len(items),
	}).Info("✅ Paginated crawl finished")

	return items, err
}

func (e *PaginatedCrawlEngine) startWorkers() []worker {
	workers := make([]worker, 0, e.workers)
	for i := 0; i < e.workers; i++ {
		renderer, err := e.newRenderer()
		if err != nil {
			log.Errorf("❌ Failed to start renderer for consumer %d: %v", i, err)
			continue
		}
		workers = append(workers, worker{id: i, renderer: renderer})
	}
	return workers
}

func closeWorkers(workers []worker) {
	for _, w := range workers {
		if err := w.renderer.Close(); err != nil {
			log.Warnf("⚠️ Failed to close renderer of consumer %d: %v", w.id, err)
		}
	}
}

// produce enqueues every page known to exist and waits for consumers to finish
// them, repeating until a round reveals no new pages.
func (c *crawl) produce(ctx context.Context) error {
	select {
	case <-c.start:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		current := c.state.CurrentPage()
		maxPage := c.state.MaxPage()
		if current >= maxPage {
			return nil
		}

		for page := current + 1; page <= maxPage; page++ {
			c.queue.Push(domain.WorkItem{
				PageNumber: page,
				URL:        PageURL(c.categoryURL, page),
			})
		}
		c.state.SetCurrentPage(maxPage)

		log.Debugf("Enqueued pages %d..%d of %s", current+1, maxPage, c.categoryURL)

		if err := c.queue.Wait(ctx); err != nil {
			return err
		}
	}
}

func (c *crawl) consume(ctx context.Context, w worker) {
	for !c.terminate.Load() {
		item, ok := c.queue.TryPop()
		if !ok {
			select {
			case <-time.After(c.engine.pollInterval):
			case <-ctx.Done():
			}
			continue
		}

		func() {
			defer c.queue.Done()
			c.process(ctx, w, item)
		}()
	}
}

// process handles one page. Failures only lose this page.
func (c *crawl) process(ctx context.Context, w worker, item domain.WorkItem) {
	logger := log.WithFields(log.Fields{
		"consumer": w.id,
		"page":     item.PageNumber,
		"url":      item.URL,
	})

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("💥 Page processing panicked: %v", r)
		}
	}()

	if ctx.Err() != nil {
		return
	}

	html, err := w.renderer.Render(ctx, item.URL)
	c.rendered.Add(1)
	if err != nil {
		logger.Warnf("⚠️ Failed to render page: %v", err)
		return
	}

	items, maxPage, err := extract.ParseListing(html, c.engine.lazyMaxPage)
	if err != nil {
		logger.Warnf("⚠️ Failed to parse page: %v", err)
		return
	}

	if c.state.UpdateMaxPage(maxPage, false) {
		logger.Debugf("Page count raised to %d", maxPage)
	}
	c.state.AppendItems(items...)

	logger.Debugf("Parsed %d items", len(items))

	if c.onPage != nil {
		if err := c.onPage(ctx, item, items); err != nil {
			logger.Warnf("⚠️ Page handler failed: %v", err)
		}
	}
}

// PageURL returns the listing url of the given page of a category.
func PageURL(categoryURL string, page int) string {
	u, err := url.Parse(categoryURL)
	if err != nil {
		return fmt.Sprintf("%s?page=%d", categoryURL, page)
	}

	query := u.Query()
	query.Set("page", strconv.Itoa(page))
	u.RawQuery = query.Encode()
	return u.String()
}
