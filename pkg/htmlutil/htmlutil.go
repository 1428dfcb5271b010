package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// GetText concatenates every text node under node, in document order.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// NormalizeText drops non-printable runes, collapses whitespace runs
// into a single space and trims the result.
func NormalizeText(s string) string {
	s = removeNonPrintable(s)
	s = innerWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Text returns the normalized text of the first node in the selection.
func Text(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	return NormalizeText(GetText(sel.Nodes[0]))
}

// ResolveHref resolves href as a uri reference against base.
func ResolveHref(base *url.URL, href string) (*url.URL, error) {
	href = strings.TrimSpace(href)
	if base == nil {
		return url.Parse(href)
	}
	return base.Parse(href)
}

type Anchor struct {
	Name string
	Url  *url.URL
}

// GetAnchor reads the first `a[href]` node of the selection, ok is false
// when there is none or its href cannot be resolved.
func GetAnchor(base *url.URL, sel *goquery.Selection) (Anchor, bool) {
	link := sel.Filter("a[href]").First()
	if link.Length() == 0 {
		return Anchor{}, false
	}
	href, _ := link.Attr("href")
	resolved, err := ResolveHref(base, href)
	if err != nil {
		return Anchor{}, false
	}
	return Anchor{
		Name: Text(link),
		Url:  resolved,
	}, true
}

// GetAnchors is GetAnchor for every node in the selection, unresolvable
// links are skipped.
func GetAnchors(base *url.URL, sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	sel.Each(func(_ int, s *goquery.Selection) {
		anchor, ok := GetAnchor(base, s)
		if !ok {
			return
		}
		anchors = append(anchors, anchor)
	})
	return anchors
}
