// Package recordstore persists harvested presentations to a sqlite or libsql
// database.
package recordstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"deckharvest/internal/speakerdeck"
	"deckharvest/pkg/sqliteutil"
)

//go:embed schema.sql
var Schema string

type QueryKind string

const (
	QueryUser   QueryKind = "user"
	QuerySearch QueryKind = "search"
)

type Options struct {
	// local database file
	File string
	// remote libsql database, takes precedence over File
	Url       string
	AuthToken string
}

// Record is a presentation along with the listing it was found on.
type Record struct {
	Kind         QueryKind
	Query        string
	Page         int
	HarvestedAt  time.Time
	Presentation speakerdeck.Presentation
}

type Store struct {
	db *sql.DB
}

// Open opens and migrates the database described by opts.
func Open(opts Options) (Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch {
	case opts.Url != "":
		db, err = sqliteutil.OpenRemoteDB(opts.Url, opts.AuthToken)
	case opts.File != "":
		db, err = sqliteutil.OpenDB(opts.File)
	default:
		return Store{}, fmt.Errorf("record store: no database file or url")
	}
	if err != nil {
		return Store{}, err
	}

	err = sqliteutil.Migrate(db, Schema)
	if err != nil {
		db.Close()
		return Store{}, err
	}
	return Store{db: db}, nil
}

func (s Store) Close() error {
	return s.db.Close()
}

const insertRecord = `insert or replace into presentation (
    query_kind, query, hash,
    presentation_id, url, title, slide_count,
    account_url, account_name,
    page, harvested_at
) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Put stores a record, a presentation already stored for the same query is
// replaced.
func (s Store) Put(ctx context.Context, record Record) error {
	p := record.Presentation

	var accountUrl, accountName sql.NullString
	if p.Account != nil {
		accountUrl = sql.NullString{String: p.Account.Url, Valid: true}
		accountName = sql.NullString{String: p.Account.Name, Valid: true}
	}

	_, err := s.db.ExecContext(
		ctx,
		insertRecord,
		string(record.Kind),
		record.Query,
		int64(p.Hash()),
		p.Id,
		p.Url,
		p.Title,
		p.SlideCount,
		accountUrl,
		accountName,
		record.Page,
		record.HarvestedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put presentation %s: %w", p.Url, err)
	}
	return nil
}

const listRecords = `select
    presentation_id, url, title, slide_count,
    account_url, account_name,
    page, harvested_at
from presentation
where query_kind = ? and query = ?
order by harvested_at, page, rowid`

// List returns the records stored for a query in the order they were harvested.
func (s Store) List(ctx context.Context, kind QueryKind, query string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, listRecords, string(kind), query)
	if err != nil {
		return nil, fmt.Errorf("list presentations: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			p           speakerdeck.Presentation
			accountUrl  sql.NullString
			accountName sql.NullString
			page        int
			harvestedAt int64
		)
		err := rows.Scan(
			&p.Id, &p.Url, &p.Title, &p.SlideCount,
			&accountUrl, &accountName,
			&page, &harvestedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan presentation: %w", err)
		}
		if accountUrl.Valid {
			p.Account = &speakerdeck.Account{
				Url:  accountUrl.String,
				Name: accountName.String,
			}
		}
		records = append(records, Record{
			Kind:         kind,
			Query:        query,
			Page:         page,
			HarvestedAt:  time.UnixMilli(harvestedAt),
			Presentation: p,
		})
	}
	return records, rows.Err()
}

// Count is the number of presentations stored for a query.
func (s Store) Count(ctx context.Context, kind QueryKind, query string) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		"select count(*) from presentation where query_kind = ? and query = ?",
		string(kind), query,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count presentations: %w", err)
	}
	return count, nil
}
