package crawler

import (
	"sync"

	"ozon/parser/internal/domain"
)

// CrawlState is the bookkeeping shared by the producer and consumers of one crawl.
// Each field has its own lock and no method holds more than one of them.
type CrawlState struct {
	currentMu   sync.Mutex
	currentPage int

	maxMu   sync.Mutex
	maxPage int

	itemsMu sync.Mutex
	items   []domain.ItemRecord
}

func NewCrawlState() *CrawlState {
	return &CrawlState{}
}

func (s *CrawlState) CurrentPage() int {
	s.currentMu.Lock()
	defer s.currentMu.Unlock()
	return s.currentPage
}

func (s *CrawlState) SetCurrentPage(page int) {
	s.currentMu.Lock()
	defer s.currentMu.Unlock()
	s.currentPage = page
}

func (s *CrawlState) MaxPage() int {
	s.maxMu.Lock()
	defer s.maxMu.Unlock()
	return s.maxPage
}

// UpdateMaxPage raises the known page count to page. Lower values are ignored
// unless force is set. It reports whether the value changed.
func (s *CrawlState) UpdateMaxPage(page int, force bool) bool {
	s.maxMu.Lock()
	defer s.maxMu.Unlock()

	if !force && page <= s.maxPage {
		return false
	}
	changed := s.maxPage != page
	s.maxPage = page
	return changed
}

func (s *CrawlState) AppendItems(items ...domain.ItemRecord) {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()
	s.items = append(s.items, items...)
}

// Items returns a copy of everything accumulated so far.
func (s *CrawlState) Items() []domain.ItemRecord {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()

	items := make([]domain.ItemRecord, len(s.items))
	copy(items, s.items)
	return items
}
