package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ozon/parser/internal/client"
	"ozon/parser/internal/crawler"
	"ozon/parser/internal/domain"
	"ozon/parser/internal/domain/task"
	"ozon/parser/internal/queue"
	"ozon/parser/internal/repository"
	"ozon/parser/internal/state"
)

var (
	ErrSinkUnavailable  = errors.New("requested output is not configured")
	ErrCategoriesFailed = errors.New("categories failed")
)

// Saver writes a named result set somewhere durable.
type Saver interface {
	Save(name string, v any) (string, error)
}

// Options selects where crawl results are delivered.
type Options struct {
	JSON    bool // write a timestamped JSON file
	Save    bool // persist into the database
	Publish bool // publish batches to Redis streams
	Resume  bool // skip categories an earlier run finished
	Fresh   bool // clear recorded progress before crawling
}

type Service struct {
	client       client.OzonClient
	repository   repository.CatalogRepository
	queue        queue.Queue
	stateManager state.StateManager
	saver        Saver
	groupName    string
	minIdleTime  time.Duration
}

// NewService wires the crawl client to its sinks. repository, queue and
// stateManager may be nil when the corresponding feature is not used.
func NewService(
	client client.OzonClient,
	repository repository.CatalogRepository,
	queue queue.Queue,
	stateManager state.StateManager,
	saver Saver,
	groupName string,
	minIdleTime time.Duration,
) *Service {
	return &Service{
		client:       client,
		repository:   repository,
		queue:        queue,
		stateManager: stateManager,
		saver:        saver,
		groupName:    groupName,
		minIdleTime:  minIdleTime,
	}
}

func (s *Service) checkSinks(opts Options) error {
	if opts.JSON && s.saver == nil {
		return fmt.Errorf("%w: json output", ErrSinkUnavailable)
	}
	if opts.Save && s.repository == nil {
		return fmt.Errorf("%w: database", ErrSinkUnavailable)
	}
	if opts.Publish && s.queue == nil {
		return fmt.Errorf("%w: redis streams", ErrSinkUnavailable)
	}
	return nil
}

// ParseCategories reads the root catalog menu.
func (s *Service) ParseCategories(ctx context.Context, opts Options) ([]domain.CategoryRecord, error) {
	if err := s.checkSinks(opts); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log.WithField("run_id", runID).Info("🔄 Parsing root categories")

	categories, err := s.client.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}

	err = s.deliverCategories(ctx, runID, opts, "categories", categories, map[string][]domain.CategoryRecord{"": categories})
	return categories, err
}

// ParseSubcategories crawls the given category pages, or every root category when
// urls is empty.
func (s *Service) ParseSubcategories(ctx context.Context, urls []string, opts Options) (domain.CategoryResults, error) {
	if err := s.checkSinks(opts); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := log.WithField("run_id", runID)

	if len(urls) == 0 {
		roots, err := s.client.GetCategories(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get categories: %w", err)
		}
		urls = categoryURLs(roots)
	}

	logger.Infof("🔄 Parsing subcategories of %d categories", len(urls))

	results, err := s.client.GetSubcategories(ctx, urls)
	if err != nil {
		return results, fmt.Errorf("failed to get subcategories: %w", err)
	}

	err = s.deliverCategories(ctx, runID, opts, "subcategories", results, results)
	return results, err
}

// deliverCategories sends one result set to every selected sink concurrently.
// byParent maps a parent category url to its freshly extracted children.
func (s *Service) deliverCategories(
	ctx context.Context,
	runID string,
	opts Options,
	name string,
	export any,
	byParent map[string][]domain.CategoryRecord,
) error {
	g, ctx := errgroup.WithContext(ctx)

	if opts.JSON {
		g.Go(func() error {
			_, err := s.saver.Save(name, export)
			return err
		})
	}

	if opts.Save {
		g.Go(func() error {
			total := 0
			for parentURL, records := range byParent {
				saved, err := s.repository.SaveCategories(ctx, parentURL, records)
				total += saved
				if err != nil {
					return err
				}
			}
			log.WithField("run_id", runID).Infof("✅ Saved %d categories", total)
			return nil
		})
	}

	if opts.Publish {
		g.Go(func() error {
			for parentURL, records := range byParent {
				if _, err := s.queue.AddTask(ctx, &task.CategoryBatchTask{
					Meta:       task.NewMeta(runID),
					SourceURL:  parentURL,
					Categories: records,
				}); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// ParseItems crawls the items of the given leaf categories, or of every leaf
// reachable from the root menu when urls is empty. With opts.Resume, categories
// finished by an earlier run are skipped.
func (s *Service) ParseItems(ctx context.Context, urls []string, opts Options) (map[string][]domain.ItemRecord, error) {
	if err := s.checkSinks(opts); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := log.WithField("run_id", runID)

	if len(urls) == 0 {
		leaves, err := s.discoverLeaves(ctx)
		if err != nil {
			return nil, err
		}
		urls = leaves
	}

	track := s.stateManager != nil && (opts.Resume || opts.Fresh)
	if track && opts.Fresh {
		if err := s.stateManager.ClearProgress(ctx, urls...); err != nil {
			return nil, err
		}
	}

	logger.Infof("🔄 Parsing items of %d categories", len(urls))

	results := make(map[string][]domain.ItemRecord, len(urls))
	var failed []string

	for i, categoryURL := range urls {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		categoryLogger := logger.WithFields(log.Fields{
			"category": categoryURL,
			"progress": fmt.Sprintf("%d/%d", i+1, len(urls)),
		})

		if track && opts.Resume {
			count, done, err := s.stateManager.CategoryItemCount(ctx, categoryURL)
			if err != nil {
				categoryLogger.Warnf("⚠️ Failed to read progress: %v", err)
			} else if done {
				categoryLogger.Infof("⏭️ Already crawled (%d items), skipping", count)
				continue
			}
		}

		items, err := s.client.GetItems(ctx, categoryURL, s.pagePublisher(runID, categoryURL, opts))
		if err != nil {
			categoryLogger.Errorf("❌ Failed to crawl items: %v", err)
			failed = append(failed, categoryURL)
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			continue
		}
		results[categoryURL] = items

		if opts.Save {
			if err := s.repository.SaveItems(ctx, categoryURL, items); err != nil {
				categoryLogger.Errorf("❌ Failed to save items: %v", err)
				failed = append(failed, categoryURL)
				continue
			}
		}

		if track {
			if err := s.stateManager.MarkCategoryDone(ctx, categoryURL, len(items)); err != nil {
				categoryLogger.Warnf("⚠️ Failed to record progress: %v", err)
			}
		}

		categoryLogger.Infof("✅ Collected %d items", len(items))
	}

	if opts.JSON && len(results) > 0 {
		if _, err := s.saver.Save("items", results); err != nil {
			return results, err
		}
	}

	logger.Infof("✅ Completed items of %d categories", len(results))

	if len(failed) > 0 {
		logger.Warnf("⚠️ %d categories failed: %v", len(failed), failed)
		return results, fmt.Errorf("%d of %d %w", len(failed), len(urls), ErrCategoriesFailed)
	}

	return results, nil
}

// pagePublisher returns the per-page handler that streams item batches as pages complete.
func (s *Service) pagePublisher(runID, categoryURL string, opts Options) crawler.PageHandler {
	if !opts.Publish {
		return nil
	}

	return func(ctx context.Context, page domain.WorkItem, items []domain.ItemRecord) error {
		if len(items) == 0 {
			return nil
		}
		_, err := s.queue.AddTask(ctx, &task.ItemPageTask{
			Meta:        task.NewMeta(runID),
			CategoryURL: categoryURL,
			PageNumber:  page.PageNumber,
			PageURL:     page.URL,
			Items:       items,
		})
		return err
	}
}

func (s *Service) discoverLeaves(ctx context.Context) ([]string, error) {
	roots, err := s.client.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}

	subcategories, err := s.client.GetSubcategories(ctx, categoryURLs(roots))
	if err != nil {
		return nil, fmt.Errorf("failed to get subcategories: %w", err)
	}

	seen := make(map[string]bool)
	var leaves []string
	for _, root := range roots {
		// A root without subcategories is a leaf itself.
		if len(subcategories[root.URL]) == 0 {
			if !seen[root.URL] {
				seen[root.URL] = true
				leaves = append(leaves, root.URL)
			}
			continue
		}
		for _, record := range subcategories[root.URL] {
			for _, leaf := range record.Leaves() {
				if !seen[leaf.URL] {
					seen[leaf.URL] = true
					leaves = append(leaves, leaf.URL)
				}
			}
		}
	}

	log.Infof("🌿 Discovered %d leaf categories", len(leaves))
	return leaves, nil
}

func categoryURLs(records []domain.CategoryRecord) []string {
	urls := make([]string, 0, len(records))
	for _, r := range records {
		urls = append(urls, r.URL)
	}
	return urls
}
