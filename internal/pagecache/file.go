package pagecache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileCache keeps one file per derived key inside a directory.
type FileCache struct {
	dir string
}

func NewFileCache(dir string) (FileCache, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return FileCache{}, fmt.Errorf("create cache dir: %w", err)
	}
	return FileCache{dir: dir}, nil
}

func (c FileCache) Dir() string {
	return c.dir
}

// Path is the file an entry for url is stored in.
func (c FileCache) Path(url string) string {
	return filepath.Join(c.dir, DeriveKey(url))
}

func (c FileCache) Get(_ context.Context, url string) ([]byte, error) {
	contents, err := os.ReadFile(c.Path(url))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cache entry: %w", err)
	}
	return contents, nil
}

// Set writes through a temporary file and renames it into place, concurrent
// writers of the same key race and the last rename wins.
func (c FileCache) Set(_ context.Context, url string, content []byte) error {
	key := DeriveKey(url)

	tmp, err := os.CreateTemp(c.dir, key+".*"+tmpSuffix)
	if err != nil {
		return fmt.Errorf("create cache entry: %w", err)
	}
	_, err = tmp.Write(content)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}

	err = os.Rename(tmp.Name(), filepath.Join(c.dir, key))
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

const tmpSuffix = ".tmp"

// Clear removes every cache entry in the directory along with unfinished
// writes and returns how many entries were removed.
func (c FileCache) Clear(_ context.Context) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		isEntry := strings.HasSuffix(name, keySuffix)
		// left behind by a Set that never got to rename
		isPartial := strings.HasSuffix(name, tmpSuffix)
		if entry.IsDir() || !(isEntry || isPartial) {
			continue
		}
		err := os.Remove(filepath.Join(c.dir, name))
		if err != nil {
			return removed, err
		}
		if isEntry {
			removed++
		}
	}
	return removed, nil
}

func (c FileCache) Close() error {
	return nil
}
