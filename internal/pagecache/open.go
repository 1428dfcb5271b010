package pagecache

import (
	"context"
	"fmt"
	"path/filepath"
)

type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendNone   Backend = "none"
)

func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case "", BackendFile:
		return BackendFile, nil
	case BackendSQLite:
		return BackendSQLite, nil
	case BackendNone:
		return BackendNone, nil
	}
	return "", fmt.Errorf("unknown cache backend %q", s)
}

// Managed is a Cache that can be emptied and must be closed.
type Managed interface {
	Cache
	Clear(ctx context.Context) (int, error)
	Close() error
}

// Open opens the cache of the given backend inside dir, an empty dir means
// DefaultDir.
func Open(backend Backend, dir string) (Managed, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	switch backend {
	case BackendFile:
		return NewFileCache(dir)
	case BackendSQLite:
		return OpenSQLiteCache(filepath.Join(dir, SQLiteFile))
	case BackendNone:
		return Disabled{}, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", backend)
}
