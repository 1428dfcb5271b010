package pagecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"deckharvest/pkg/sqliteutil"
)

const sqliteSchema = `
create table if not exists pages (
	key text primary key,
	url text not null,
	content blob not null,
	stored_at integer not null
);
`

// SQLiteFile is the database file name SQLiteCache uses inside a cache directory.
const SQLiteFile = "pages.db"

// SQLiteCache keeps every entry as a row of a single sqlite database.
type SQLiteCache struct {
	db *sql.DB
}

func OpenSQLiteCache(path string) (SQLiteCache, error) {
	db, err := sqliteutil.OpenAndMigrateDB(sqliteSchema, path)
	if err != nil {
		return SQLiteCache{}, err
	}
	return SQLiteCache{db: db}, nil
}

func (c SQLiteCache) Close() error {
	return c.db.Close()
}

func (c SQLiteCache) Get(ctx context.Context, url string) ([]byte, error) {
	var content []byte
	err := c.db.QueryRowContext(
		ctx,
		"select content from pages where key = ?",
		DeriveKey(url),
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cache entry: %w", err)
	}
	return content, nil
}

func (c SQLiteCache) Set(ctx context.Context, url string, content []byte) error {
	_, err := c.db.ExecContext(
		ctx,
		"insert or replace into pages (key, url, content, stored_at) values (?, ?, ?, ?)",
		DeriveKey(url), url, content, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

func (c SQLiteCache) Clear(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx, "delete from pages")
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
