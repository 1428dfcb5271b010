package sqliteutil

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

func wrapOpenDB(err error) error {
	return fmt.Errorf("open db: %w", err)
}

// OpenDB opens (and creates if needed) a local sqlite database, `:memory:`
// opens a private in-memory database.
func OpenDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, wrapOpenDB(err)
	}

	return db, nil
}

// RemoteDSN adds authToken to the query of dbUrl, keeping any parameters
// that are already there.
func RemoteDSN(dbUrl, authToken string) (string, error) {
	parsed, err := url.Parse(dbUrl)
	if err != nil {
		return "", fmt.Errorf("parse db url: %w", err)
	}
	if authToken == "" {
		return parsed.String(), nil
	}
	query := parsed.Query()
	query.Set("authToken", authToken)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// OpenRemoteDB opens a libsql (turso) database over the network.
func OpenRemoteDB(dbUrl, authToken string) (*sql.DB, error) {
	dsn, err := RemoteDSN(dbUrl, authToken)
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	return db, nil
}

// Migrate applies a schema made of idempotent statements (CREATE ... IF NOT EXISTS).
func Migrate(db *sql.DB, schema string) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate db: %w", err)
	}
	return nil
}

func OpenAndMigrateDB(schema, path string) (*sql.DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	err = Migrate(db, schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
