package speakerdeck

import (
	"context"
	"net/url"

	"deckharvest/internal/components/assert"
	"deckharvest/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("deckharvest/speakerdeck")

// PageSource returns the raw markup of a page, fetch.CachedFetcher is the
// usual implementation.
type PageSource interface {
	Get(ctx context.Context, url string) (string, error)
}

// Crawler crawls a single listing page.
type Crawler interface {
	Crawl(ctx context.Context, page *url.URL) (PageResult, error)
}

// ListingCrawler fetches a listing page and parses it.
type ListingCrawler struct {
	source   PageSource
	resolver LinkResolver
	tel      telemetry.API
}

func NewListingCrawler(source PageSource, resolver LinkResolver, tel telemetry.API) ListingCrawler {
	assert.NotNil(source)
	assert.NotNil(tel)

	return ListingCrawler{
		source:   source,
		resolver: resolver,
		tel:      tel,
	}
}

func (c ListingCrawler) Crawl(ctx context.Context, page *url.URL) (PageResult, error) {
	ctx, span := tracer.Start(ctx, "crawler:Crawl")
	defer span.End()

	span.SetAttributes(attribute.String("url", page.String()))
	c.tel.ReportDebug("crawling " + page.String())

	markup, err := c.source.Get(ctx, page.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get page")
		return PageResult{}, err
	}

	result, err := ParsePage(markup, page, c.resolver, c.tel)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse page")
		return PageResult{}, err
	}

	span.SetAttributes(
		attribute.Int("page", result.Number),
		attribute.Int("items", len(result.Items)),
		attribute.Bool("has_next", result.Next != nil),
	)
	return result, nil
}
