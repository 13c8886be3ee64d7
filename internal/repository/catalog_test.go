package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozon/parser/internal/domain"
)

type call struct {
	sql  string
	args []any
}

type fakeRow struct {
	id  int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.id
	return nil
}

type fakeBatchResults struct {
	failAt    int
	execs     int
	closed    bool
}

func (b *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	b.execs++
	if b.execs == b.failAt {
		return pgconn.CommandTag{}, errors.New("duplicate key")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (b *fakeBatchResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (b *fakeBatchResults) QueryRow() pgx.Row       { return fakeRow{err: errors.New("not implemented")} }
func (b *fakeBatchResults) Close() error {
	b.closed = true
	return nil
}

type fakeDB struct {
	calls   []call
	nextID  int64
	failURL string
	batch   *pgx.Batch
	results *fakeBatchResults
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.calls = append(db.calls, call{sql: sql, args: args})
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.calls = append(db.calls, call{sql: sql, args: args})
	if args[1] == db.failURL {
		return fakeRow{err: errors.New("constraint violation")}
	}
	db.nextID++
	return fakeRow{id: db.nextID}
}

func (db *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	db.batch = b
	if db.results == nil {
		db.results = &fakeBatchResults{}
	}
	return db.results
}

func TestMigrate(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewCatalogRepository(db).Migrate(context.Background()))
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "CREATE TABLE IF NOT EXISTS prices")
}

func TestSaveCategories_LinksParents(t *testing.T) {
	db := &fakeDB{}
	repo := NewCatalogRepository(db)

	tree := []domain.CategoryRecord{
		{Name: "Электроника", URL: "/category/elektronika/", Children: []domain.CategoryRecord{
			{Name: "Телефоны", URL: "/category/telefony/"},
			{Name: "Ноутбуки", URL: "/category/noutbuki/"},
		}},
		{Name: "Дом", URL: "/category/dom/"},
	}

	saved, err := repo.SaveCategories(context.Background(), "", tree)
	require.NoError(t, err)
	assert.Equal(t, 4, saved)

	parents := map[string]any{}
	for _, c := range db.calls {
		parents[c.args[1].(string)] = c.args[2]
	}
	assert.Equal(t, map[string]any{
		"/category/elektronika/": "",
		"/category/telefony/":    "/category/elektronika/",
		"/category/noutbuki/":    "/category/elektronika/",
		"/category/dom/":         "",
	}, parents)
}

func TestSaveCategories_StopsOnError(t *testing.T) {
	db := &fakeDB{failURL: "/category/telefony/"}

	saved, err := NewCatalogRepository(db).SaveCategories(context.Background(), "", []domain.CategoryRecord{
		{Name: "Электроника", URL: "/category/elektronika/", Children: []domain.CategoryRecord{
			{Name: "Телефоны", URL: "/category/telefony/"},
		}},
		{Name: "Дом", URL: "/category/dom/"},
	})

	assert.ErrorContains(t, err, "/category/telefony/")
	assert.Equal(t, 1, saved)
	assert.Len(t, db.calls, 2)
}

func TestSaveItems(t *testing.T) {
	db := &fakeDB{}
	items := []domain.ItemRecord{
		{ExternalURL: "/context/detail/id/1/", ImageURL: "1.jpg", Name: "Пушка", Price: 1990},
		{ExternalURL: "/context/detail/id/2/", ImageURL: "2.jpg", Name: "Пушка 2", Price: 2990},
	}

	require.NoError(t, NewCatalogRepository(db).SaveItems(context.Background(), "/category/x/", items))

	require.NotNil(t, db.batch)
	assert.Equal(t, 2, db.batch.Len())
	assert.Equal(t, []any{"/context/detail/id/2/", "2.jpg", "Пушка 2", "/category/x/", 2990}, db.batch.QueuedQueries[1].Arguments)
	assert.Equal(t, 2, db.results.execs)
	assert.True(t, db.results.closed)
}

func TestSaveItems_Empty(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewCatalogRepository(db).SaveItems(context.Background(), "/category/x/", nil))
	assert.Nil(t, db.batch)
}

func TestSaveItems_Failure(t *testing.T) {
	db := &fakeDB{results: &fakeBatchResults{failAt: 1}}

	err := NewCatalogRepository(db).SaveItems(context.Background(), "/category/x/", []domain.ItemRecord{
		{ExternalURL: "/context/detail/id/1/"},
		{ExternalURL: "/context/detail/id/2/"},
	})
	assert.ErrorContains(t, err, "/context/detail/id/1/")
	assert.True(t, db.results.closed)
}
