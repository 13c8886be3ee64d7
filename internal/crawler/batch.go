package crawler

import (
	"context"

	log "github.com/sirupsen/logrus"

	"ozon/parser/internal/domain"
)

// PageFetcher yields one result per requested url in completion order.
type PageFetcher interface {
	Fetch(ctx context.Context, urls []string) <-chan domain.PageResult
}

type CategoryExtractor interface {
	Extract(html string) []domain.CategoryRecord
}

// ResultHandler receives the categories of one page as soon as it is parsed.
type ResultHandler func(url string, records []domain.CategoryRecord)

// BatchCrawler fetches a fixed set of category pages and extracts their categories.
type BatchCrawler struct {
	fetcher   PageFetcher
	extractor CategoryExtractor
}

func NewBatchCrawler(fetcher PageFetcher, extractor CategoryExtractor) *BatchCrawler {
	return &BatchCrawler{
		fetcher:   fetcher,
		extractor: extractor,
	}
}

// Crawl returns the categories of every url. A url that could not be fetched maps
// to an empty list.
func (c *BatchCrawler) Crawl(ctx context.Context, urls []string) domain.CategoryResults {
	results := make(domain.CategoryResults, len(urls))
	c.CrawlEach(ctx, urls, func(url string, records []domain.CategoryRecord) {
		results[url] = records
	})
	return results
}

// CrawlEach calls handle once per url, in the order pages arrive.
func (c *BatchCrawler) CrawlEach(ctx context.Context, urls []string, handle ResultHandler) {
	var failed int

	for page := range c.fetcher.Fetch(ctx, urls) {
		if !page.OK() {
			failed++
			handle(page.URL, []domain.CategoryRecord{})
			continue
		}

		records := c.extractor.Extract(page.Content)
		if records == nil {
			records = []domain.CategoryRecord{}
		}

		log.WithFields(log.Fields{
			"url":        page.URL,
			"categories": len(records),
		}).Debug("Page parsed")

		handle(page.URL, records)
	}

	log.Infof("✅ Batch crawl finished: %d pages, %d failed", len(urls), failed)
}
