package speakerdeck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"deckharvest/internal/components/telemetry"
	"deckharvest/internal/fetch"
	"deckharvest/internal/pagecache"
	"deckharvest/internal/paginate"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func mustUrl(t testing.TB, raw string) *url.URL {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func readFixture(t testing.TB, name string) string {
	content, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(content)
}

// fixtureSource serves testdata files by url.
type fixtureSource struct {
	t     testing.TB
	files map[string]string
	fail  map[string]error

	mutex    sync.Mutex
	requests []string
}

func (s *fixtureSource) Get(_ context.Context, url string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.requests = append(s.requests, url)
	if err, ok := s.fail[url]; ok {
		delete(s.fail, url)
		return "", err
	}
	name, ok := s.files[url]
	if !ok {
		return "", &fetch.NetworkError{Url: url, StatusCode: http.StatusNotFound}
	}
	return readFixture(s.t, name), nil
}

var joshlong = &Account{
	Url:  "https://speakerdeck.com/joshlong",
	Name: "Josh Long",
}

var joshlongPresentations = []Presentation{
	{
		Account:    joshlong,
		Url:        "https://speakerdeck.com/joshlong/cloud-native-java",
		Id:         "a1b2c3",
		Title:      "Cloud Native Java",
		SlideCount: 42,
	},
	{
		Url:        "https://speakerdeck.com/joshlong/bootiful-microservices",
		Id:         "d4e5f6",
		Title:      "Bootiful Microservices",
		SlideCount: 17,
	},
	{
		Account:    joshlong,
		Url:        "https://speakerdeck.com/joshlong/spring-tips",
		Id:         "g7h8i9",
		Title:      "Spring Tips",
		SlideCount: 0,
	},
}

func userSource(t testing.TB) *fixtureSource {
	return &fixtureSource{t: t, files: map[string]string{
		"https://speakerdeck.com/joshlong":        "user_page1.html",
		"https://speakerdeck.com/joshlong?page=2": "user_page2.html",
	}}
}

func TestParseUserPage(t *testing.T) {
	tel := telemetry.NewTestAPI(t)
	page := mustUrl(t, "https://speakerdeck.com/joshlong")

	result, err := ParsePage(
		readFixture(t, "user_page1.html"),
		page,
		LinkResolver{Mode: LinkResolutionReference},
		tel,
	)
	require.NoError(t, err)

	diff := cmp.Diff(joshlongPresentations[:2], result.Items)
	require.Empty(t, diff)
	require.Equal(t, 1, result.Number)
	require.NotNil(t, result.Next)
	require.Equal(t, "https://speakerdeck.com/joshlong?page=2", result.Next.String())

	// the unparsable slide count and the item without a title
	warnings := tel.Reports("warning")
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		require.Equal(t, report_parse_item, w.Id)
	}
}

func TestParseLastPage(t *testing.T) {
	result, err := ParsePage(
		readFixture(t, "user_page2.html"),
		mustUrl(t, "https://speakerdeck.com/joshlong?page=2"),
		LinkResolver{Mode: LinkResolutionReference},
		telemetry.NewTestAPI(t),
	)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(joshlongPresentations[2:], result.Items))
	require.Equal(t, 2, result.Number)
	require.Nil(t, result.Next)
}

func listing(items, pagination string) string {
	return fmt.Sprintf(`<html><body>%s<div class="pagination">%s</div></body></html>`, items, pagination)
}

const oneItem = `<div class="talk public" data-id="x" data-slide-count="1">
	<div class="talk-listing-meta"><h3 class="title"><a href="/x/y">Y</a></h3></div>
</div>`

func TestParseMalformedItems(t *testing.T) {
	cases := []struct {
		name string
		item string
		ok   bool
	}{
		{
			name: "well formed",
			item: oneItem,
			ok:   true,
		},
		{
			name: "no title region",
			item: `<div class="talk public" data-id="x" data-slide-count="1"></div>`,
		},
		{
			name: "title without link",
			item: `<div class="talk public" data-id="x" data-slide-count="1">
				<div class="talk-listing-meta"><h3 class="title">Y</h3></div></div>`,
		},
		{
			name: "link without href",
			item: `<div class="talk public" data-id="x" data-slide-count="1">
				<div class="talk-listing-meta"><h3 class="title"><a>Y</a></h3></div></div>`,
		},
		{
			name: "missing slide count",
			item: `<div class="talk public" data-id="x">
				<div class="talk-listing-meta"><h3 class="title"><a href="/x/y">Y</a></h3></div></div>`,
		},
		{
			name: "negative slide count",
			item: `<div class="talk public" data-id="x" data-slide-count="-4">
				<div class="talk-listing-meta"><h3 class="title"><a href="/x/y">Y</a></h3></div></div>`,
		},
		{
			name: "unresolvable link",
			item: `<div class="talk public" data-id="x" data-slide-count="1">
				<div class="talk-listing-meta"><h3 class="title"><a href="/x/%zz">Y</a></h3></div></div>`,
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			tel := telemetry.NewTestAPI(t)
			result, err := ParsePage(
				listing(test.item+oneItem, ""),
				mustUrl(t, "https://speakerdeck.com/x"),
				LinkResolver{},
				tel,
			)
			require.NoError(t, err, "a malformed item never fails the page")

			if test.ok {
				require.Len(t, result.Items, 2)
				require.Empty(t, tel.Reports("warning"))
				return
			}
			require.Len(t, result.Items, 1)
			require.Equal(t, "https://speakerdeck.com/x/y", result.Items[0].Url)
			require.Len(t, tel.Reports("warning"), 1)
		})
	}
}

func TestParseAccount(t *testing.T) {
	cases := []struct {
		name     string
		date     string
		expected *Account
	}{
		{
			name: "no date region",
		},
		{
			name: "date region without link",
			date: `<p class="date">Jan 1, 2016</p>`,
		},
		{
			name: "date region with link",
			date: `<p class="date">Jan 1, 2016 by <a href="/someone"> Some
				One </a></p>`,
			expected: &Account{Url: "https://speakerdeck.com/someone", Name: "Some One"},
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			item := fmt.Sprintf(`<div class="talk public" data-id="x" data-slide-count="1">
				<div class="talk-listing-meta"><h3 class="title"><a href="/x/y">Y</a></h3>%s</div></div>`, test.date)
			result, err := ParsePage(
				listing(item, ""),
				mustUrl(t, "https://speakerdeck.com/x"),
				LinkResolver{},
				telemetry.NewTestAPI(t),
			)
			require.NoError(t, err)
			require.Len(t, result.Items, 1)
			require.Empty(t, cmp.Diff(test.expected, result.Items[0].Account))
		})
	}
}

func TestParsePageNumber(t *testing.T) {
	cases := []struct {
		name       string
		pagination string
		expected   int
	}{
		{name: "absent", pagination: "", expected: 0},
		{name: "blank", pagination: `<span class="page current">  </span>`, expected: 0},
		{name: "not a number", pagination: `<span class="page current">first</span>`, expected: 0},
		{name: "padded", pagination: `<span class="page current">
			7
		</span>`, expected: 7},
		{name: "other classes", pagination: `<span class="page current gap">7</span>`, expected: 0},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			result, err := ParsePage(
				listing(oneItem, test.pagination),
				mustUrl(t, "https://speakerdeck.com/x"),
				LinkResolver{},
				telemetry.NewTestAPI(t),
			)
			require.NoError(t, err)
			require.Equal(t, test.expected, result.Number)
		})
	}
}

func TestParseNextLink(t *testing.T) {
	base := mustUrl(t, "https://speakerdeck.com")
	page := mustUrl(t, "https://speakerdeck.com/joshlong?page=3")

	cases := []struct {
		name     string
		mode     LinkResolution
		next     string
		expected string
		warned   bool
	}{
		{
			name: "no link",
			mode: LinkResolutionReference,
		},
		{
			name:     "root relative",
			mode:     LinkResolutionReference,
			next:     `<a rel="next" href="/joshlong?page=4">Next</a>`,
			expected: "https://speakerdeck.com/joshlong?page=4",
		},
		{
			name:     "root relative concat",
			mode:     LinkResolutionConcat,
			next:     `<a rel="next" href="/joshlong?page=4">Next</a>`,
			expected: "https://speakerdeck.com/joshlong?page=4",
		},
		{
			name:     "query only",
			mode:     LinkResolutionReference,
			next:     `<a rel="next" href="?page=4">Next</a>`,
			expected: "https://speakerdeck.com/joshlong?page=4",
		},
		{
			name:     "query only concat",
			mode:     LinkResolutionConcat,
			next:     `<a rel="next" href="?page=4">Next</a>`,
			expected: "https://speakerdeck.com?page=4",
		},
		{
			name:     "absolute",
			mode:     LinkResolutionReference,
			next:     `<a rel="next" href="https://speakerdeck.com/joshlong?page=4">Next</a>`,
			expected: "https://speakerdeck.com/joshlong?page=4",
		},
		{
			name: "empty href",
			mode: LinkResolutionReference,
			next: `<a rel="next" href="">Next</a>`,
		},
		{
			name:   "invalid",
			mode:   LinkResolutionReference,
			next:   `<a rel="next" href="/search/%zz">Next</a>`,
			warned: true,
		},
		{
			name:   "invalid concat",
			mode:   LinkResolutionConcat,
			next:   `<a rel="next" href="/search/%zz">Next</a>`,
			warned: true,
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			tel := telemetry.NewTestAPI(t)
			result, err := ParsePage(
				listing(oneItem, test.next),
				page,
				LinkResolver{Mode: test.mode, Base: base},
				tel,
			)
			require.NoError(t, err)

			if test.expected == "" {
				require.Nil(t, result.Next)
			} else {
				require.NotNil(t, result.Next)
				require.Equal(t, test.expected, result.Next.String())
			}

			warnings := tel.Reports("warning")
			if test.warned {
				require.Len(t, warnings, 1)
				require.Equal(t, report_parse_next_link, warnings[0].Id)
			} else {
				require.Empty(t, warnings)
			}
		})
	}
}

func TestParseLinkResolution(t *testing.T) {
	cases := []struct {
		in       string
		expected LinkResolution
		err      bool
	}{
		{in: "", expected: LinkResolutionReference},
		{in: "reference", expected: LinkResolutionReference},
		{in: "concat", expected: LinkResolutionConcat},
		{in: "join", err: true},
	}
	for _, test := range cases {
		mode, err := ParseLinkResolution(test.in)
		if test.err {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, test.expected, mode)
	}
}

func TestParseError(t *testing.T) {
	cause := errors.New("unexpected eof")
	err := error(&ParseError{Url: "https://speakerdeck.com/x", Err: cause})
	require.ErrorIs(t, err, cause)
	require.Equal(t, "parse https://speakerdeck.com/x: unexpected eof", err.Error())

	var parseErr *ParseError
	require.ErrorAs(t, fmt.Errorf("crawl: %w", err), &parseErr)
}

func TestSeedUrls(t *testing.T) {
	base := mustUrl(t, "https://speakerdeck.com")

	cases := []struct {
		name     string
		seed     func() *url.URL
		expected string
	}{
		{
			name:     "user",
			seed:     func() *url.URL { return UserUrl(base, "joshlong") },
			expected: "https://speakerdeck.com/joshlong",
		},
		{
			name:     "user with space",
			seed:     func() *url.URL { return UserUrl(base, "josh long") },
			expected: "https://speakerdeck.com/josh%20long",
		},
		{
			name:     "user with slash",
			seed:     func() *url.URL { return UserUrl(base, "../admin") },
			expected: "https://speakerdeck.com/..%2Fadmin",
		},
		{
			name:     "search",
			seed:     func() *url.URL { return SearchUrl(base, "spring boot") },
			expected: "https://speakerdeck.com/search?q=spring+boot",
		},
		{
			name:     "search with reserved characters",
			seed:     func() *url.URL { return SearchUrl(base, "c++ & go?") },
			expected: "https://speakerdeck.com/search?q=c%2B%2B+%26+go%3F",
		},
		{
			name:     "base with trailing slash",
			seed:     func() *url.URL { return UserUrl(mustUrl(t, "https://speakerdeck.com/"), "joshlong") },
			expected: "https://speakerdeck.com/joshlong",
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			first := test.seed().String()
			second := test.seed().String()
			require.Equal(t, test.expected, first)
			require.Equal(t, first, second)
		})
	}
	require.Equal(t, "https://speakerdeck.com", base.String(), "seeds must not modify the base")
}

func TestPresentationEqualHash(t *testing.T) {
	p := joshlongPresentations[0]
	same := p
	same.Account = &Account{Url: joshlong.Url, Name: joshlong.Name}

	require.True(t, p.Equal(same))
	require.Equal(t, p.Hash(), same.Hash())

	changes := []func(p *Presentation){
		func(p *Presentation) { p.Account = nil },
		func(p *Presentation) { p.Account = &Account{Url: joshlong.Url, Name: "Someone"} },
		func(p *Presentation) { p.Url = "https://speakerdeck.com/joshlong/other" },
		func(p *Presentation) { p.Id = "other" },
		func(p *Presentation) { p.Title = "Other" },
		func(p *Presentation) { p.SlideCount = 43 },
	}
	for i, change := range changes {
		other := p
		change(&other)
		require.False(t, p.Equal(other), "change %d", i)
		require.False(t, other.Equal(p), "change %d", i)
		require.NotEqual(t, p.Hash(), other.Hash(), "change %d", i)
	}

	shifted := Presentation{Id: "ab", Title: "c"}
	require.NotEqual(t, shifted.Hash(), Presentation{Id: "a", Title: "bc"}.Hash())
}

func TestAccountEqualHash(t *testing.T) {
	var none *Account
	require.True(t, none.Equal(nil))
	require.False(t, none.Equal(joshlong))
	require.False(t, joshlong.Equal(nil))
	require.True(t, joshlong.Equal(&Account{Url: joshlong.Url, Name: joshlong.Name}))
	require.Equal(t, joshlong.Hash(), (&Account{Url: joshlong.Url, Name: joshlong.Name}).Hash())
	require.NotEqual(t, none.Hash(), (&Account{}).Hash())
}

func TestNewClientBaseUrl(t *testing.T) {
	tel := telemetry.NewTestAPI(t)
	source := userSource(t)

	_, err := NewClient("speakerdeck.com", source, LinkResolutionReference, tel)
	require.Error(t, err)

	client, err := NewClient("https://speakerdeck.com/", source, LinkResolutionReference, tel)
	require.NoError(t, err)
	require.Equal(t, "https://speakerdeck.com", client.BaseUrl.String())
}

func collect(t *testing.T, it *paginate.Iterator[Presentation]) []Presentation {
	var out []Presentation
	for p, err := range it.All(context.Background()) {
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func TestUserPresentations(t *testing.T) {
	for _, mode := range []LinkResolution{LinkResolutionReference, LinkResolutionConcat} {
		t.Run(string(mode), func(t *testing.T) {
			source := userSource(t)
			client, err := NewClient(DefaultBaseUrl, source, mode, telemetry.NewTestAPI(t))
			require.NoError(t, err)

			it := client.UserPresentations("joshlong")
			require.Empty(t, source.requests, "nothing is fetched before the first demand")

			got := collect(t, it)
			require.Empty(t, cmp.Diff(joshlongPresentations, got))

			_, err = it.Next(context.Background())
			require.ErrorIs(t, err, paginate.ErrExhausted)

			require.Equal(t, []string{
				"https://speakerdeck.com/joshlong",
				"https://speakerdeck.com/joshlong?page=2",
			}, source.requests)
			require.Equal(t, 2, it.Page())
			require.Equal(t, 2, it.Pages())
		})
	}
}

func TestSearchPresentations(t *testing.T) {
	source := &fixtureSource{t: t, files: map[string]string{
		"https://speakerdeck.com/search?q=spring+boot":        "search_page1.html",
		"https://speakerdeck.com/search?page=2&q=spring+boot": "search_page2.html",
		"https://speakerdeck.com/search?page=3&q=spring+boot": "search_page3.html",
	}}
	client, err := NewClient(DefaultBaseUrl, source, LinkResolutionReference, telemetry.NewTestAPI(t))
	require.NoError(t, err)

	got := collect(t, client.SearchPresentations("spring boot"))
	require.Len(t, got, 2)
	require.Equal(t, "s1", got[0].Id)
	require.Equal(t, "Star Buxman", got[0].Account.Name)
	require.Equal(t, "s2", got[1].Id)
	require.Nil(t, got[1].Account)

	// page 3 has no results, its next link is never followed
	require.Len(t, source.requests, 3)
}

func TestNetworkErrorPropagates(t *testing.T) {
	source := userSource(t)
	netErr := &fetch.NetworkError{Url: "https://speakerdeck.com/joshlong?page=2", StatusCode: http.StatusBadGateway}
	source.fail = map[string]error{"https://speakerdeck.com/joshlong?page=2": netErr}

	client, err := NewClient(DefaultBaseUrl, source, LinkResolutionReference, telemetry.NewTestAPI(t))
	require.NoError(t, err)
	it := client.UserPresentations("joshlong")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := it.Next(ctx)
		require.NoError(t, err)
	}

	_, err = it.Next(ctx)
	var got *fetch.NetworkError
	require.ErrorAs(t, err, &got)
	require.Equal(t, http.StatusBadGateway, got.StatusCode)

	p, err := it.Next(ctx)
	require.NoError(t, err)
	require.True(t, p.Equal(joshlongPresentations[2]))
}

// runs the whole stack against a local server, the second harvest is served
// from the page cache
func TestHarvestThroughCache(t *testing.T) {
	var mutex sync.Mutex
	hits := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mutex.Lock()
		hits[r.URL.RequestURI()]++
		mutex.Unlock()

		switch r.URL.RequestURI() {
		case "/joshlong":
			fmt.Fprint(w, readFixture(t, "user_page1.html"))
		case "/joshlong?page=2":
			fmt.Fprint(w, readFixture(t, "user_page2.html"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tel := telemetry.NewTestAPI(t)
	cache, err := pagecache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	source := fetch.NewCachedFetcher(cache, fetch.NewRestyFetcher(fetch.Options{}, tel), tel)

	client, err := NewClient(server.URL, source, LinkResolutionReference, tel)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got := collect(t, client.UserPresentations("joshlong"))
		require.Len(t, got, 3)
		require.Equal(t, server.URL+"/joshlong/cloud-native-java", got[0].Url)
		require.Equal(t, server.URL+"/joshlong", got[0].Account.Url)
	}

	require.Equal(t, map[string]int{"/joshlong": 1, "/joshlong?page=2": 1}, hits)
}

func TestDebugReportsNamePages(t *testing.T) {
	tel := telemetry.NewTestAPI(t)
	client, err := NewClient(DefaultBaseUrl, userSource(t), LinkResolutionReference, tel)
	require.NoError(t, err)
	collect(t, client.UserPresentations("joshlong"))

	var messages []string
	for _, r := range tel.Reports("debug") {
		require.Empty(t, r.Params, r.Id)
		messages = append(messages, r.Id)
	}
	require.Equal(t, []string{
		`speakerdeck: presentations of user "joshlong" from https://speakerdeck.com/joshlong`,
		"speakerdeck: crawling https://speakerdeck.com/joshlong",
		"speakerdeck: parsed page 1 of https://speakerdeck.com/joshlong with 2 items",
		"speakerdeck: crawling https://speakerdeck.com/joshlong?page=2",
		"speakerdeck: parsed page 2 of https://speakerdeck.com/joshlong?page=2 with 1 items",
	}, messages)
}
