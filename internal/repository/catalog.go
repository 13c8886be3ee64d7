package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"ozon/parser/internal/domain"
)

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type CatalogRepository interface {
	Migrate(ctx context.Context) error
	// SaveCategories upserts a category tree under parentURL ("" for the root level).
	SaveCategories(ctx context.Context, parentURL string, categories []domain.CategoryRecord) (int, error)
	// SaveItems upserts the items of a category and records their current prices.
	SaveItems(ctx context.Context, categoryURL string, items []domain.ItemRecord) error
}

type catalogRepository struct {
	db DB
}

func NewCatalogRepository(db DB) CatalogRepository {
	return &catalogRepository{
		db: db,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS categories (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	url        TEXT NOT NULL UNIQUE,
	parent_id  BIGINT REFERENCES categories (id) ON DELETE CASCADE,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS items (
	id           BIGSERIAL PRIMARY KEY,
	external_url TEXT NOT NULL UNIQUE,
	image_url    TEXT NOT NULL,
	name         TEXT NOT NULL,
	category_id  BIGINT REFERENCES categories (id) ON DELETE SET NULL
);
CREATE TABLE IF NOT EXISTS prices (
	id         BIGSERIAL PRIMARY KEY,
	item_id    BIGINT NOT NULL REFERENCES items (id) ON DELETE CASCADE,
	price      INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

func (r *catalogRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const upsertCategory = `
	INSERT INTO categories (name, url, parent_id)
	VALUES ($1, $2, (SELECT id FROM categories WHERE url = $3))
	ON CONFLICT (url)
	DO UPDATE SET name = EXCLUDED.name,
		parent_id = COALESCE(EXCLUDED.parent_id, categories.parent_id),
		updated_at = now()
	RETURNING id`

func (r *catalogRepository) SaveCategories(ctx context.Context, parentURL string, categories []domain.CategoryRecord) (int, error) {
	saved := 0
	for _, category := range categories {
		var id int64
		err := r.db.QueryRow(ctx, upsertCategory, category.Name, category.URL, parentURL).Scan(&id)
		if err != nil {
			return saved, fmt.Errorf("failed to save category %s: %w", category.URL, err)
		}
		saved++

		children, err := r.SaveCategories(ctx, category.URL, category.Children)
		saved += children
		if err != nil {
			return saved, err
		}
	}
	return saved, nil
}

const upsertItemWithPrice = `
	WITH item AS (
		INSERT INTO items (external_url, image_url, name, category_id)
		VALUES ($1, $2, $3, (SELECT id FROM categories WHERE url = $4))
		ON CONFLICT (external_url)
		DO UPDATE SET image_url = EXCLUDED.image_url,
			name = EXCLUDED.name,
			category_id = COALESCE(EXCLUDED.category_id, items.category_id)
		RETURNING id
	)
	INSERT INTO prices (item_id, price) SELECT id, $5 FROM item`

func (r *catalogRepository) SaveItems(ctx context.Context, categoryURL string, items []domain.ItemRecord) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(upsertItemWithPrice, item.ExternalURL, item.ImageURL, item.Name, categoryURL, item.Price)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for _, item := range items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save item %s: %w", item.ExternalURL, err)
		}
	}

	return results.Close()
}
