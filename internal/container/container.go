package container

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"ozon/parser/internal/browser"
	"ozon/parser/internal/client"
	"ozon/parser/internal/config"
	"ozon/parser/internal/crawler"
	"ozon/parser/internal/fetcher"
	"ozon/parser/internal/proxy"
	"ozon/parser/internal/queue"
	"ozon/parser/internal/repository"
	"ozon/parser/internal/service"
	"ozon/parser/internal/state"
	"ozon/parser/internal/storage"
	"ozon/parser/internal/useragent"
)

var newFetcher = fetcher.New

// Needs lists the external services a command connects to.
type Needs struct {
	Database bool
	Redis    bool
}

// Container holds all initialized components
type Container struct {
	Config  *config.Config
	Client  client.OzonClient
	Service *service.Service

	fetcher  fetcher.Fetcher
	launcher *browser.Launcher
	db       *pgxpool.Pool
	redis    *redis.Client
}

// New creates a new container, connecting only to the services in needs.
func New(ctx context.Context, cfg *config.Config, needs Needs) (_ *Container, err error) {
	c := &Container{
		Config: cfg,
	}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	agents := useragent.NewPool(cfg.Fetcher.UserAgents)
	proxySupplier := proxy.NewSupplier(ctx, cfg.Fetcher.Proxies, cfg.Site.BaseURL)

	c.fetcher = newFetcher(cfg.Fetcher, agents, proxySupplier)
	log.WithFields(log.Fields{
		"user_agents": agents.Len(),
		"proxies":     proxySupplier.Len(),
	}).Info("🌐 Fetcher ready")

	c.launcher = browser.NewLauncher(&browser.Options{
		Headless:    cfg.Browser.Headless,
		Timeout:     cfg.Browser.Timeout,
		LoadPause:   cfg.Crawler.LoadPause,
		ScrollPause: cfg.Crawler.ScrollPause,
		Locale:      browser.DefaultOptions().Locale,
	}, agents, proxySupplier)

	engine := crawler.NewPaginatedCrawlEngine(cfg.Crawler, func() (crawler.Renderer, error) {
		b, err := c.launcher.Launch()
		if err != nil {
			return nil, err
		}
		return b, nil
	})

	ozonClient, err := client.NewOzonClient(cfg.Site, c.fetcher, engine)
	if err != nil {
		return nil, err
	}
	c.Client = ozonClient

	var repo repository.CatalogRepository
	if needs.Database {
		db, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.db = db
		log.Info("✅ Connected to database successfully")

		repo = repository.NewCatalogRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	var (
		redisQueue   queue.Queue
		stateManager state.StateManager
	)
	if needs.Redis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})

		if _, err := rdb.Ping(ctx).Result(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.redis = rdb
		log.Info("✅ Connected to Redis successfully")

		redisQueue = queue.NewRedisQueue(rdb, cfg.Redis)
		stateManager = state.NewRedisStateManager(rdb, cfg.Redis.KeyPrefix)
	}

	c.Service = service.NewService(
		ozonClient,
		repo,
		redisQueue,
		stateManager,
		storage.NewJSONSaver(cfg.Output.Dir),
		cfg.Redis.ConsumerGroup,
		cfg.Redis.MinIdleTime,
	)

	return c, nil
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	var errs []error
	if c.fetcher != nil {
		errs = append(errs, c.fetcher.Close())
	}
	if c.launcher != nil {
		errs = append(errs, c.launcher.Stop())
	}
	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}

	log.Info("Container shut down successfully")
	return errors.Join(errs...)
}
