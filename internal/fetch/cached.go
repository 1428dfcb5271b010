package fetch

import (
	"context"
	"errors"
	"fmt"

	"deckharvest/internal/components/assert"
	"deckharvest/internal/components/telemetry"
	"deckharvest/internal/pagecache"
)

const (
	report_cached_fetcher_read  = "cached-fetcher.read"
	report_cached_fetcher_write = "cached-fetcher.write"
)

// CachedFetcher serves pages from a cache and falls back to a Fetcher on a miss.
type CachedFetcher struct {
	cache   pagecache.Cache
	fetcher Fetcher
	tel     telemetry.API
}

func NewCachedFetcher(cache pagecache.Cache, fetcher Fetcher, tel telemetry.API) CachedFetcher {
	assert.NotNil(cache)
	assert.NotNil(fetcher)
	assert.NotNil(tel)

	return CachedFetcher{
		cache:   cache,
		fetcher: fetcher,
		tel:     tel,
	}
}

// Get fails only when the page is not cached and the fetch fails. Cache
// failures are reported and otherwise ignored.
func (c CachedFetcher) Get(ctx context.Context, url string) (string, error) {
	cached, err := c.cache.Get(ctx, url)
	if err == nil {
		c.tel.ReportDebug("cache hit " + url)
		return string(cached), nil
	}
	if !errors.Is(err, pagecache.ErrNotFound) {
		c.tel.ReportWarning(report_cached_fetcher_read, fmt.Errorf("read %s: %w", url, err))
	}

	c.tel.ReportDebug("cache miss " + url)
	body, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	err = c.cache.Set(ctx, url, []byte(body))
	if err != nil {
		c.tel.ReportWarning(report_cached_fetcher_write, fmt.Errorf("write %s: %w", url, err))
	}
	return body, nil
}
