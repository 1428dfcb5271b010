package speakerdeck

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"deckharvest/internal/components/telemetry"
	"deckharvest/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_parse_item      = "parse.item"
	report_parse_next_link = "parse.next-link"
)

// ParseError means the page could not be read as a document at all.
type ParseError struct {
	Url string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Url, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type LinkResolution string

const (
	// resolve the href as a uri reference against the page it was found on
	LinkResolutionReference LinkResolution = "reference"
	// prepend the site base to the href as is
	LinkResolutionConcat LinkResolution = "concat"
)

func ParseLinkResolution(s string) (LinkResolution, error) {
	switch LinkResolution(s) {
	case "", LinkResolutionReference:
		return LinkResolutionReference, nil
	case LinkResolutionConcat:
		return LinkResolutionConcat, nil
	}
	return "", fmt.Errorf("unknown link resolution %q", s)
}

// LinkResolver turns the href of a next page link into an absolute url.
type LinkResolver struct {
	Mode LinkResolution
	// only used by LinkResolutionConcat
	Base *url.URL
}

func (r LinkResolver) Resolve(page *url.URL, href string) (*url.URL, error) {
	switch r.Mode {
	case LinkResolutionConcat:
		if r.Base == nil {
			return nil, fmt.Errorf("concat link resolution without a base url")
		}
		joined := strings.TrimSuffix(r.Base.String(), "/") + href
		resolved, err := url.Parse(joined)
		if err != nil {
			return nil, err
		}
		if !resolved.IsAbs() {
			return nil, fmt.Errorf("%q is not an absolute url", joined)
		}
		return resolved, nil
	default:
		return htmlutil.ResolveHref(page, href)
	}
}

// ParsePage extracts the presentations, the current page number and the next
// page of a listing. Malformed items are skipped and reported as warnings.
func ParsePage(markup string, pageUrl *url.URL, resolver LinkResolver, tel telemetry.API) (PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return PageResult{}, &ParseError{Url: pageUrl.String(), Err: err}
	}

	result := PageResult{
		Items: []Presentation{},
	}

	doc.Find(`[class="talk public"]`).Each(func(i int, item *goquery.Selection) {
		presentation, err := parseItem(pageUrl, item)
		if err != nil {
			tel.ReportWarning(
				report_parse_item,
				fmt.Errorf("skip item %d of %s: %w", i, pageUrl, err),
			)
			return
		}
		result.Items = append(result.Items, presentation)
	})

	current := doc.Find(`[class="page current"]`)
	if current.Length() > 0 {
		text := strings.TrimSpace(current.First().Text())
		number, err := strconv.Atoi(text)
		if err != nil {
			tel.ReportDebug(fmt.Sprintf("unreadable page number %q on %s", text, pageUrl))
		} else {
			result.Number = number
		}
	}

	next := doc.Find("a[rel=next]").First()
	if href, ok := next.Attr("href"); ok && strings.TrimSpace(href) != "" {
		resolved, err := resolver.Resolve(pageUrl, strings.TrimSpace(href))
		if err != nil {
			tel.ReportWarning(
				report_parse_next_link,
				fmt.Errorf("resolve next link %q of %s: %w", href, pageUrl, err),
			)
		} else {
			result.Next = resolved
		}
	}

	tel.ReportDebug(fmt.Sprintf(
		"parsed page %d of %s with %d items",
		result.Number, pageUrl, len(result.Items),
	))
	return result, nil
}

func parseItem(pageUrl *url.URL, item *goquery.Selection) (Presentation, error) {
	link := item.Find(`[class=talk-listing-meta] h3[class=title]`).Find("a").First()
	if link.Length() == 0 {
		return Presentation{}, fmt.Errorf("no title link")
	}
	href, ok := link.Attr("href")
	if !ok {
		return Presentation{}, fmt.Errorf("title link has no href")
	}
	presentationUrl, err := htmlutil.ResolveHref(pageUrl, href)
	if err != nil {
		return Presentation{}, fmt.Errorf("resolve title link: %w", err)
	}

	slideCount, err := strconv.Atoi(strings.TrimSpace(item.AttrOr("data-slide-count", "")))
	if err != nil {
		return Presentation{}, fmt.Errorf("slide count: %w", err)
	}
	if slideCount < 0 {
		return Presentation{}, fmt.Errorf("negative slide count %d", slideCount)
	}

	return Presentation{
		Account:    parseAccount(pageUrl, item),
		Url:        presentationUrl.String(),
		Id:         item.AttrOr("data-id", ""),
		Title:      htmlutil.Text(link),
		SlideCount: slideCount,
	}, nil
}

func parseAccount(pageUrl *url.URL, item *goquery.Selection) *Account {
	anchor, ok := htmlutil.GetAnchor(pageUrl, item.Find(`[class=date]`).Find("a[href]"))
	if !ok {
		return nil
	}
	return &Account{
		Url:  anchor.Url.String(),
		Name: anchor.Name,
	}
}
