package crawler

import (
	"container/heap"
	"context"
	"sync"

	"ozon/parser/internal/domain"
)

type pageHeap []domain.WorkItem

func (h pageHeap) Len() int           { return len(h) }
func (h pageHeap) Less(i, j int) bool { return h[i].PageNumber < h[j].PageNumber }
func (h pageHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *pageHeap) Push(x any) {
	*h = append(*h, x.(domain.WorkItem))
}

func (h *pageHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// workQueue hands out pages lowest number first and counts items that were
// pushed but not yet acknowledged with Done.
type workQueue struct {
	mu          sync.Mutex
	items       pageHeap
	outstanding int
	drained     chan struct{}
}

func newWorkQueue() *workQueue {
	q := &workQueue{drained: make(chan struct{})}
	close(q.drained)
	return q
}

func (q *workQueue) Push(item domain.WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.outstanding == 0 {
		q.drained = make(chan struct{})
	}
	q.outstanding++
	heap.Push(&q.items, item)
}

// TryPop never blocks.
func (q *workQueue) TryPop() (domain.WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return domain.WorkItem{}, false
	}
	return heap.Pop(&q.items).(domain.WorkItem), true
}

// Done acknowledges one popped item.
func (q *workQueue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.outstanding == 0 {
		return
	}
	q.outstanding--
	if q.outstanding == 0 {
		close(q.drained)
	}
}

// Wait blocks until every pushed item has been acknowledged.
func (q *workQueue) Wait(ctx context.Context) error {
	q.mu.Lock()
	drained := q.drained
	q.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *workQueue) Outstanding() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.outstanding
}
