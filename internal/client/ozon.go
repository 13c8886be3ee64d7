package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"ozon/parser/internal/config"
	"ozon/parser/internal/crawler"
	"ozon/parser/internal/domain"
	"ozon/parser/internal/extract"
)

var ErrNoCategories = errors.New("no categories found on catalog root")

type OzonClient interface {
	// GetCategories reads the top level catalog menu of the site root.
	GetCategories(ctx context.Context) ([]domain.CategoryRecord, error)
	// GetSubcategories crawls the given category pages. Results are keyed by
	// normalized category path; pages that failed map to an empty list.
	GetSubcategories(ctx context.Context, categoryURLs []string) (domain.CategoryResults, error)
	// GetItems crawls every listing page of one category.
	GetItems(ctx context.Context, categoryURL string, onPage crawler.PageHandler) ([]domain.ItemRecord, error)
}

type ozonClient struct {
	baseURL       *url.URL
	root          *crawler.BatchCrawler
	subcategories *crawler.BatchCrawler
	items         *crawler.PaginatedCrawlEngine
}

func NewOzonClient(site config.SiteConfig, fetcher crawler.PageFetcher, items *crawler.PaginatedCrawlEngine) (OzonClient, error) {
	baseURL, err := url.Parse(site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", site.BaseURL, err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", site.BaseURL)
	}

	return &ozonClient{
		baseURL:       baseURL,
		root:          crawler.NewBatchCrawler(fetcher, extract.NewRootExtractor()),
		subcategories: crawler.NewBatchCrawler(fetcher, extract.NewSubcategoryExtractor(site.CategoryPrefix)),
		items:         items,
	}, nil
}

func (c *ozonClient) GetCategories(ctx context.Context) ([]domain.CategoryRecord, error) {
	rootURL := c.baseURL.String()

	results := c.root.Crawl(ctx, []string{rootURL})
	categories := results[rootURL]
	if len(categories) == 0 {
		return nil, ErrNoCategories
	}

	log.Infof("📚 Found %d root categories", len(categories))
	return categories, nil
}

func (c *ozonClient) GetSubcategories(ctx context.Context, categoryURLs []string) (domain.CategoryResults, error) {
	if len(categoryURLs) == 0 {
		return domain.CategoryResults{}, nil
	}

	absolute := make([]string, 0, len(categoryURLs))
	for _, u := range categoryURLs {
		abs, err := c.Resolve(u)
		if err != nil {
			return nil, err
		}
		absolute = append(absolute, abs)
	}

	byPath := make(domain.CategoryResults, len(absolute))
	c.subcategories.CrawlEach(ctx, absolute, func(pageURL string, records []domain.CategoryRecord) {
		key := pageURL
		if parsed, err := url.Parse(pageURL); err == nil {
			key = parsed.Path
		}
		byPath[extract.NormalizeURL(key)] = records
	})

	if err := ctx.Err(); err != nil {
		return byPath, err
	}
	return byPath, nil
}

func (c *ozonClient) GetItems(ctx context.Context, categoryURL string, onPage crawler.PageHandler) ([]domain.ItemRecord, error) {
	abs, err := c.Resolve(categoryURL)
	if err != nil {
		return nil, err
	}

	items, err := c.items.Crawl(ctx, abs, onPage)
	if err != nil {
		return items, fmt.Errorf("failed to crawl items of %s: %w", categoryURL, err)
	}
	return items, nil
}

// Resolve turns a category path into an absolute url on the configured site.
func (c *ozonClient) Resolve(ref string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("invalid category url %q: %w", ref, err)
	}
	return c.baseURL.ResolveReference(parsed).String(), nil
}
