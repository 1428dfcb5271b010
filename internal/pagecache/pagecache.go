// Package pagecache stores raw page content keyed by the url it was fetched from.
//
// Entries never expire: once a url has been stored it is served from the cache
// on every later run. Keys are derived from the url by DeriveKey, so urls that
// only differ by punctuation share an entry.
package pagecache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

var ErrNotFound = errors.New("page not found in cache")

// Cache is a durable url -> content store.
type Cache interface {
	// Get returns ErrNotFound if the url was never stored.
	Get(ctx context.Context, url string) ([]byte, error)
	Set(ctx context.Context, url string, content []byte) error
}

const keySuffix = ".html"

// DeriveKey strips every rune that is not a letter or a digit from the url and
// appends ".html".
func DeriveKey(url string) string {
	var key strings.Builder
	for _, r := range url {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			key.WriteRune(r)
		}
	}
	key.WriteString(keySuffix)
	return key.String()
}

// DefaultDir is the process wide scratch directory used when none is configured.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "deckharvest")
}

// Disabled misses on every Get and drops every Set.
type Disabled struct{}

func (Disabled) Get(context.Context, string) ([]byte, error) {
	return nil, ErrNotFound
}

func (Disabled) Set(context.Context, string, []byte) error {
	return nil
}

func (Disabled) Clear(context.Context) (int, error) {
	return 0, nil
}

func (Disabled) Close() error {
	return nil
}
