// Package speakerdeck harvests presentations from the paginated listings of
// speakerdeck.com (user profiles and search results).
package speakerdeck

import (
	"fmt"
	"net/url"
	"strings"

	"deckharvest/internal/components/assert"
	"deckharvest/internal/components/telemetry"
	"deckharvest/internal/paginate"
)

const DefaultBaseUrl = "https://speakerdeck.com"

// Client is the entrypoint for harvesting listings.
type Client struct {
	BaseUrl *url.URL
	crawler Crawler
	tel     telemetry.API
}

func NewClient(baseUrl string, source PageSource, resolution LinkResolution, tel telemetry.API) (Client, error) {
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("speakerdeck", tel)

	parsed, err := url.Parse(strings.TrimSuffix(baseUrl, "/"))
	if err != nil {
		return Client{}, fmt.Errorf("parse base url: %w", err)
	}
	if !parsed.IsAbs() {
		return Client{}, fmt.Errorf("base url %q is not absolute", baseUrl)
	}

	resolver := LinkResolver{Mode: resolution, Base: parsed}
	return Client{
		BaseUrl: parsed,
		crawler: NewListingCrawler(source, resolver, tel),
		tel:     tel,
	}, nil
}

// NewClientWithCrawler is for callers that bring their own Crawler.
func NewClientWithCrawler(baseUrl *url.URL, crawler Crawler, tel telemetry.API) Client {
	assert.NotNil(baseUrl)
	assert.NotNil(crawler)
	assert.NotNil(tel)

	return Client{
		BaseUrl: baseUrl,
		crawler: crawler,
		tel:     telemetry.NewScopedAPI("speakerdeck", tel),
	}
}

// childUrl appends a single escaped path segment to base, a "/" in segment
// does not start a new one.
func childUrl(base *url.URL, segment string) *url.URL {
	child := *base
	child.RawQuery = ""
	child.Fragment = ""
	child.Path = strings.TrimSuffix(base.Path, "/") + "/" + segment
	child.RawPath = strings.TrimSuffix(base.EscapedPath(), "/") + "/" + url.PathEscape(segment)
	return &child
}

// UserUrl is the first page of the presentations of the given user.
func UserUrl(base *url.URL, username string) *url.URL {
	return childUrl(base, username)
}

// SearchUrl is the first page of the search results for the given query.
func SearchUrl(base *url.URL, query string) *url.URL {
	seed := childUrl(base, "search")
	seed.RawQuery = url.Values{"q": {query}}.Encode()
	return seed
}

// UserPresentations lists the presentations of a user. Nothing is fetched
// until the iterator is first consumed.
func (c Client) UserPresentations(username string) *paginate.Iterator[Presentation] {
	seed := UserUrl(c.BaseUrl, username)
	c.tel.ReportDebug(fmt.Sprintf("presentations of user %q from %s", username, seed))
	return paginate.New(seed, c.crawler.Crawl)
}

// SearchPresentations lists the search results for a query. Nothing is
// fetched until the iterator is first consumed.
func (c Client) SearchPresentations(query string) *paginate.Iterator[Presentation] {
	seed := SearchUrl(c.BaseUrl, query)
	c.tel.ReportDebug(fmt.Sprintf("search results for %q from %s", query, seed))
	return paginate.New(seed, c.crawler.Crawl)
}
