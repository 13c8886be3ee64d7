package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"ozon/parser/internal/domain"
)

// Strategy turns the JSON state of one recognised container into categories.
// Malformed entries are skipped; only an undecodable payload is an error.
type Strategy interface {
	Pattern() domain.Pattern
	Extract(state []byte) ([]domain.CategoryRecord, error)
}

// CategoryExtractor tries its strategies in order; the first pattern present on the page wins.
type CategoryExtractor struct {
	strategies []Strategy
}

func NewCategoryExtractor(strategies ...Strategy) *CategoryExtractor {
	return &CategoryExtractor{strategies: strategies}
}

// NewRootExtractor reads the top level menu of the site root.
func NewRootExtractor() *CategoryExtractor {
	return NewCategoryExtractor(menuStrategy{})
}

// NewSubcategoryExtractor reads category pages, accepting only urls under categoryPrefix.
func NewSubcategoryExtractor(categoryPrefix string) *CategoryExtractor {
	return NewCategoryExtractor(
		subtreeStrategy{prefix: categoryPrefix},
		horizontalMenuStrategy{prefix: categoryPrefix},
		objectLineStrategy{},
	)
}

// Detect returns the first strategy whose container exists in doc, with the container's state.
func (e *CategoryExtractor) Detect(doc *goquery.Document) (Strategy, []byte, bool) {
	for _, strategy := range e.strategies {
		container := doc.Find(fmt.Sprintf("[id*='%s']", strategy.Pattern())).First()
		if container.Length() == 0 {
			continue
		}

		state, _ := container.Attr("data-state")
		return strategy, []byte(state), true
	}
	return nil, nil, false
}

// Extract parses a page. Pages without a known container yield no records.
func (e *CategoryExtractor) Extract(html string) []domain.CategoryRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Warnf("Failed to parse HTML: %v", err)
		return nil
	}

	strategy, state, ok := e.Detect(doc)
	if !ok {
		log.Debug("No known category pattern on page")
		return nil
	}

	records, err := strategy.Extract(state)
	if err != nil {
		log.WithField("pattern", strategy.Pattern()).Warnf("Failed to decode category state: %v", err)
		return nil
	}

	for i := range records {
		records[i].Children = FilterChildren(records[i].URL, records[i].Children)
	}

	log.Debugf("Extracted %d categories using %s pattern", len(records), strategy.Pattern().GetPatternName())
	return records
}

type menuStrategy struct{}

func (menuStrategy) Pattern() domain.Pattern { return domain.PatternCatalogMenu }

func (menuStrategy) Extract(state []byte) ([]domain.CategoryRecord, error) {
	var payload struct {
		Categories []struct {
			Title *string `json:"title"`
			URL   *string `json:"url"`
		} `json:"categories"`
	}
	if err := json.Unmarshal(state, &payload); err != nil {
		return nil, err
	}

	records := make([]domain.CategoryRecord, 0, len(payload.Categories))
	for _, category := range payload.Categories {
		if category.Title == nil || category.URL == nil {
			continue
		}
		records = append(records, domain.CategoryRecord{
			Name: cleanName(*category.Title),
			URL:  NormalizeURL(*category.URL),
		})
	}
	return records, nil
}

type subtreeNode struct {
	Info *struct {
		Name     string `json:"name"`
		URLValue string `json:"urlValue"`
	} `json:"info"`
	Categories []subtreeNode `json:"categories"`
}

type subtreeStrategy struct {
	prefix string
}

func (subtreeStrategy) Pattern() domain.Pattern { return domain.PatternSubtree }

func (s subtreeStrategy) Extract(state []byte) ([]domain.CategoryRecord, error) {
	var payload struct {
		Categories []subtreeNode `json:"categories"`
	}
	if err := json.Unmarshal(state, &payload); err != nil {
		return nil, err
	}
	if len(payload.Categories) == 0 {
		return nil, nil
	}

	top := payload.Categories[0].Categories
	records := make([]domain.CategoryRecord, 0, len(top))
	for _, node := range top {
		if node.Info == nil || node.Info.URLValue == "" {
			continue
		}

		record := domain.CategoryRecord{
			Name: capitalize(cleanName(node.Info.Name)),
			URL:  s.categoryURL(node.Info.URLValue),
		}

		// The source nests two levels only; deeper categories are ignored.
		for _, section := range node.Categories {
			if section.Info == nil || section.Info.URLValue == "" {
				continue
			}
			record.Children = append(record.Children, domain.CategoryRecord{
				Name: cleanName(section.Info.Name),
				URL:  s.categoryURL(section.Info.URLValue),
			})
		}

		records = append(records, record)
	}
	return records, nil
}

func (s subtreeStrategy) categoryURL(urlValue string) string {
	return NormalizeURL(strings.TrimRight(s.prefix, "/") + "/" + strings.Trim(urlValue, "/"))
}

type horizontalMenuStrategy struct {
	prefix string
}

func (horizontalMenuStrategy) Pattern() domain.Pattern { return domain.PatternHorizontalMenu }

func (s horizontalMenuStrategy) Extract(state []byte) ([]domain.CategoryRecord, error) {
	type entry struct {
		Title *string `json:"title"`
		URL   *string `json:"url"`
	}
	var payload struct {
		Categories []struct {
			entry
			Section []entry `json:"section"`
		} `json:"categories"`
	}
	if err := json.Unmarshal(state, &payload); err != nil {
		return nil, err
	}

	records := make([]domain.CategoryRecord, 0, len(payload.Categories))
	for _, category := range payload.Categories {
		if category.Title == nil || category.URL == nil || !s.accepts(*category.URL) {
			continue
		}

		record := domain.CategoryRecord{
			Name: capitalize(cleanName(*category.Title)),
			URL:  NormalizeURL(*category.URL),
		}

		for _, section := range category.Section {
			if section.Title == nil || section.URL == nil || !s.accepts(*section.URL) {
				continue
			}
			record.Children = append(record.Children, domain.CategoryRecord{
				Name: cleanName(*section.Title),
				URL:  NormalizeURL(strings.ReplaceAll(*section.URL, " ", "")),
			})
		}

		records = append(records, record)
	}
	return records, nil
}

func (s horizontalMenuStrategy) accepts(url string) bool {
	return strings.HasPrefix(url, s.prefix)
}

type objectLineStrategy struct{}

func (objectLineStrategy) Pattern() domain.Pattern { return domain.PatternObjectLine }

func (objectLineStrategy) Extract(state []byte) ([]domain.CategoryRecord, error) {
	var payload struct {
		Items []struct {
			Title *string `json:"title"`
			Link  *string `json:"link"`
		} `json:"items"`
	}
	if err := json.Unmarshal(state, &payload); err != nil {
		return nil, err
	}

	records := make([]domain.CategoryRecord, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.Title == nil || item.Link == nil {
			log.Debug("Skipping object line entry without title or link")
			continue
		}
		records = append(records, domain.CategoryRecord{
			Name: cleanName(*item.Title),
			URL:  NormalizeURL(*item.Link),
		})
	}
	return records, nil
}
