package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozon/parser/internal/config"
	"ozon/parser/internal/crawler"
	"ozon/parser/internal/domain"
	"ozon/parser/internal/fetcher"
	"ozon/parser/internal/useragent"
)

const rootPage = `<html><body><div id="state-catalogMenu-1-default-1" data-state='{"categories":[
	{"title":"Электроника","url":"/category/elektronika-15500/"},
	{"title":"Дом` + "\u00a0" + `и сад","url":"/category/dom-i-sad-14500/?from=menu"}
]}'></div></body></html>`

const electronicsPage = `<html><body><div id="state-objectLine-1-default-1" data-state='{"items":[
	{"title":"Телефоны","link":"/category/telefony-15502/"}
]}'></div></body></html>`

const listingPage = `<html><body><div class="widget-search-result-container"><div>
	<div style="grid-column-start: span 3">
		<a href="/context/detail/id/1/"><img src="1.jpg"></a>
		<a href="/context/detail/id/1/"><span>9 990 ₽</span></a>
		<a href="/context/detail/id/1/">Смартфон</a>
	</div>
</div></div><a href="/category/telefony-15502/?page=1">1</a></body></html>`

type staticRenderer struct {
	rendered []string
}

func (r *staticRenderer) Render(_ context.Context, url string) (string, error) {
	r.rendered = append(r.rendered, url)
	return listingPage, nil
}

func (r *staticRenderer) Close() error { return nil }

func newTestClient(t *testing.T, renderer *staticRenderer) (OzonClient, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "", "/":
			fmt.Fprint(w, rootPage)
		case "/category/elektronika-15500/":
			fmt.Fprint(w, electronicsPage)
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	t.Cleanup(server.Close)

	f := fetcher.New(config.FetcherConfig{
		MaxConnections:          4,
		MaxKeepaliveConnections: 2,
		Timeout:                 2 * time.Second,
	}, useragent.NewPool(nil), nil)
	t.Cleanup(func() { f.Close() })

	engine := crawler.NewPaginatedCrawlEngine(config.CrawlerConfig{
		Workers:      1,
		PollInterval: 5 * time.Millisecond,
		LazyMaxPage:  11,
	}, func() (crawler.Renderer, error) { return renderer, nil })

	c, err := NewOzonClient(config.SiteConfig{BaseURL: server.URL, CategoryPrefix: "/category"}, f, engine)
	require.NoError(t, err)
	return c, server
}

func TestOzonClient_GetCategories(t *testing.T) {
	c, _ := newTestClient(t, &staticRenderer{})

	categories, err := c.GetCategories(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.CategoryRecord{
		{Name: "Электроника", URL: "/category/elektronika-15500/"},
		{Name: "Дом и сад", URL: "/category/dom-i-sad-14500/"},
	}, categories)
}

func TestOzonClient_GetSubcategoriesKeyedByPath(t *testing.T) {
	c, server := newTestClient(t, &staticRenderer{})

	results, err := c.GetSubcategories(context.Background(), []string{
		"/category/elektronika-15500/",
		server.URL + "/category/dom-i-sad-14500?from=menu",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.CategoryResults{
		"/category/elektronika-15500/": {{Name: "Телефоны", URL: "/category/telefony-15502/"}},
		"/category/dom-i-sad-14500/":   {},
	}, results)
}

func TestOzonClient_GetItems(t *testing.T) {
	renderer := &staticRenderer{}
	c, server := newTestClient(t, renderer)

	pages := 0
	items, err := c.GetItems(context.Background(), "/category/telefony-15502/", func(_ context.Context, _ domain.WorkItem, _ []domain.ItemRecord) error {
		pages++
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.ItemRecord{
		{ExternalURL: "/context/detail/id/1/", ImageURL: "1.jpg", Name: "Смартфон", Price: 9990},
	}, items)
	assert.Equal(t, 1, pages)
	assert.Equal(t, []string{server.URL + "/category/telefony-15502/?page=1"}, renderer.rendered)
}

func TestNewOzonClient_RejectsRelativeBase(t *testing.T) {
	_, err := NewOzonClient(config.SiteConfig{BaseURL: "/relative"}, nil, nil)
	assert.Error(t, err)
}
