package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"ozon/parser/internal/domain/task"
	"ozon/parser/internal/queue"
)

const readErrorBackoff = time.Second

var ErrMalformedMessage = errors.New("malformed stream message")

// RunImporters consumes published batches and persists them until ctx ends.
func (s *Service) RunImporters(ctx context.Context, numWorkers int) error {
	if s.queue == nil || s.repository == nil {
		return fmt.Errorf("%w: importing needs redis streams and a database", ErrSinkUnavailable)
	}

	if err := s.queue.EnsureStreamsExist(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, taskType := range queue.TaskTypes {
		s.runWorkersForStream(ctx, &wg, max(numWorkers, 1), s.queue.Stream(taskType))
	}

	wg.Wait()
	return nil
}

func (s *Service) runWorkersForStream(ctx context.Context, wg *sync.WaitGroup, numWorkers int, streamName string) {
	// Auto-claimer for messages a crashed consumer left pending
	wg.Add(1)
	go func() {
		defer wg.Done()
		interval := s.minIdleTime
		if interval <= 0 {
			interval = time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.claimIdle(ctx, streamName)
			}
		}
	}()

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			consumer := fmt.Sprintf("importer-%d", workerID)
			log.Infof("🚀 Starting importer %d on %s", workerID, streamName)
			for {
				select {
				case <-ctx.Done():
					log.Infof("🛑 Importer %d on %s stopping", workerID, streamName)
					return
				default:
				}

				msg, err := s.queue.GetTask(ctx, s.groupName, consumer, streamName)
				if err != nil {
					if ctx.Err() == nil {
						log.Errorf("❌ Failed to get task from %s: %v", streamName, err)
					}
					select {
					case <-ctx.Done():
					case <-time.After(readErrorBackoff):
					}
					continue
				}

				if msg != nil {
					if err := s.processMessage(ctx, streamName, msg); err != nil {
						log.Errorf("❌ Failed to process message %s: %v", msg.ID, err)
					}
				}
			}
		}(i + 1)
	}
}

func (s *Service) claimIdle(ctx context.Context, streamName string) {
	consumer := fmt.Sprintf("autoclaimer-%d", time.Now().UnixNano())
	claimed, err := s.queue.AutoClaim(ctx, s.groupName, consumer, streamName, s.minIdleTime)
	if err != nil {
		log.Errorf("❌ Failed to auto-claim messages for %s: %v", streamName, err)
		return
	}
	if len(claimed) == 0 {
		return
	}

	log.Infof("🔄 Auto-claimed %d messages from %s", len(claimed), streamName)
	for _, msg := range claimed {
		if err := s.processMessage(ctx, streamName, &msg); err != nil {
			log.Errorf("❌ Failed to process auto-claimed message %s: %v", msg.ID, err)
		}
	}
}

// processMessage persists one batch and acknowledges it. Batches that fail to
// persist stay pending so the auto-claimer retries them; messages that cannot be
// decoded are acknowledged and dropped since a retry cannot fix them.
func (s *Service) processMessage(ctx context.Context, streamName string, msg *redis.XMessage) error {
	taskType, ok := msg.Values["task_type"].(string)
	if !ok {
		return s.discard(ctx, streamName, msg, errors.New("invalid task type"))
	}

	taskData, ok := msg.Values["task_data"].(string)
	if !ok {
		return s.discard(ctx, streamName, msg, errors.New("invalid task data"))
	}

	switch taskType {
	case "CategoryBatchTask":
		batch, err := task.UnmarshalTask[*task.CategoryBatchTask]([]byte(taskData))
		if err != nil {
			return s.discard(ctx, streamName, msg, fmt.Errorf("failed to unmarshal category batch: %w", err))
		}
		if _, err := s.repository.SaveCategories(ctx, batch.SourceURL, batch.Categories); err != nil {
			return fmt.Errorf("failed to save categories of %q: %w", batch.SourceURL, err)
		}

	case "ItemPageTask":
		page, err := task.UnmarshalTask[*task.ItemPageTask]([]byte(taskData))
		if err != nil {
			return s.discard(ctx, streamName, msg, fmt.Errorf("failed to unmarshal item page: %w", err))
		}
		if err := s.repository.SaveItems(ctx, page.CategoryURL, page.Items); err != nil {
			return fmt.Errorf("failed to save items of %s page %d: %w", page.CategoryURL, page.PageNumber, err)
		}

	default:
		return s.discard(ctx, streamName, msg, fmt.Errorf("unknown task type: %s", taskType))
	}

	if err := s.queue.AckTask(ctx, streamName, s.groupName, msg.ID); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}

	log.Debugf("Imported %s message %s", taskType, msg.ID)
	return nil
}

// discard acknowledges a message that can never be imported.
func (s *Service) discard(ctx context.Context, streamName string, msg *redis.XMessage, cause error) error {
	log.WithField("stream", streamName).Warnf("🗑️ Dropping message %s: %v", msg.ID, cause)

	if err := s.queue.AckTask(ctx, streamName, s.groupName, msg.ID); err != nil {
		return fmt.Errorf("failed to ack malformed message %s: %w", msg.ID, err)
	}
	return fmt.Errorf("%w: %v", ErrMalformedMessage, cause)
}
