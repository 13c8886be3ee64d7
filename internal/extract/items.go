package extract

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"ozon/parser/internal/domain"
)

const (
	resultsContainerSelector = "div.widget-search-result-container"
	tileSelector             = "[style*='grid-column-start']"
	detailLinkSelector       = "[href*='context'], [href*='detail']"
	productLinkSelector      = "[href*='product']"

	// Gift certificates share the listing with real goods; they carry a query string.
	giftCertificateMarker = "сертификат"
)

var (
	errNoLink  = errors.New("tile has no item link")
	errNoImage = errors.New("tile has no image")
	errNoName  = errors.New("tile has no name")
	errSkipped = errors.New("gift certificate")

	pageLinkRegex = regexp.MustCompile(`/category/\S+?[?&]page=(\d+)$`)
)

// ParseItems extracts the item tiles of a rendered listing page.
// A tile that cannot be read is skipped on its own.
func ParseItems(doc *goquery.Document) []domain.ItemRecord {
	container := doc.Find(resultsContainerSelector).First()
	if container.Length() == 0 {
		return nil
	}

	tiles := container.Find(tileSelector)
	items := make([]domain.ItemRecord, 0, tiles.Length())

	tiles.Each(func(i int, tile *goquery.Selection) {
		item, err := parseTile(tile)
		if err != nil {
			log.Debugf("Skipping tile %d: %v", i, err)
			return
		}
		items = append(items, item)
	})

	return items
}

func parseTile(tile *goquery.Selection) (domain.ItemRecord, error) {
	links := tile.Find(detailLinkSelector)
	if links.Length() == 0 {
		links = tile.Find(productLinkSelector)
	}
	if links.Length() == 0 {
		return domain.ItemRecord{}, errNoLink
	}

	first := links.First()
	href, _ := first.Attr("href")
	externalURL, err := url.Parse(href)
	if err != nil {
		return domain.ItemRecord{}, fmt.Errorf("bad item link %q: %w", href, err)
	}

	imageURL, ok := first.Find("img").First().Attr("src")
	if !ok {
		return domain.ItemRecord{}, errNoImage
	}

	name := itemName(links)
	if name == "" {
		return domain.ItemRecord{}, errNoName
	}
	if externalURL.RawQuery != "" && strings.Contains(strings.ToLower(name), giftCertificateMarker) {
		return domain.ItemRecord{}, errSkipped
	}

	price, err := itemPrice(links)
	if err != nil {
		return domain.ItemRecord{}, err
	}

	return domain.ItemRecord{
		ExternalURL: externalURL.Path,
		ImageURL:    imageURL,
		Name:        name,
		Price:       price,
	}, nil
}

// itemName returns the text of the first link whose leading child is its whole text.
func itemName(links *goquery.Selection) string {
	var name string
	links.EachWithBreak(func(_ int, link *goquery.Selection) bool {
		first := link.Nodes[0].FirstChild
		if first == nil || first.Type != html.TextNode {
			return true
		}
		if text := link.Text(); first.Data == text && strings.TrimSpace(text) != "" {
			name = strings.TrimSpace(text)
			return false
		}
		return true
	})
	return name
}

// itemPrice reads the first span of the second link, or of the last one.
// A tile without a price span is priced 0.
func itemPrice(links *goquery.Selection) (int, error) {
	span := links.Eq(1).Find("span").First()
	if span.Length() == 0 {
		span = links.Last().Find("span").First()
	}
	if span.Length() == 0 {
		return 0, nil
	}
	return ParsePrice(span.Text())
}

// ParsePrice converts "12 990 ₽" style text into an integer amount.
func ParsePrice(text string) (int, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\u2009' || r == '\u00a0' || r == '\u202f' {
			return -1
		}
		return r
	}, text)
	digits = strings.TrimRightFunc(digits, func(r rune) bool { return !unicode.IsDigit(r) })

	price, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("unparsable price %q: %w", text, err)
	}
	return price, nil
}

// MaxPageNumber returns the highest page=N target among category links on the page,
// or fallback when no pagination link is present. Search and promo links are ignored.
func MaxPageNumber(doc *goquery.Document, fallback int) int {
	maxPage := 0
	doc.Find("[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		matches := pageLinkRegex.FindStringSubmatch(href)
		if len(matches) < 2 {
			return
		}
		if n, err := strconv.Atoi(matches[1]); err == nil && n > maxPage {
			maxPage = n
		}
	})

	if maxPage == 0 {
		return fallback
	}
	return maxPage
}

// ParseListing parses rendered listing html into its items and its page-count hint.
func ParseListing(rendered string, fallbackMaxPage int) ([]domain.ItemRecord, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return ParseItems(doc), MaxPageNumber(doc, fallbackMaxPage), nil
}
