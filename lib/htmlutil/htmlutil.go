// Package htmlutil extracts readable text and links from scraped pages.
package htmlutil

import (
	"context"
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("realitease.lib.htmlutil")

// elements whose contents are never shown as text
var hiddenElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

func writeText(n *html.Node, b *strings.Builder) {
	switch {
	case n == nil:
		return
	case n.Type == html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	case n.Type == html.ElementNode && hiddenElements[n.Data]:
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		writeText(child, b)
	}
}

// CleanText drops non-printable characters and collapses whitespace (including
// non-breaking spaces) into single spaces.
func CleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsPrint(r):
			return r
		}
		return -1
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Text is the cleaned text of every node of sel, script and style contents excluded.
func Text(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(n, &b)
	}
	return CleanText(b.String())
}

// TextWithout is Text after removing the elements matching any of the exclude
// selectors, sel itself is not modified.
func TextWithout(sel *goquery.Selection, exclude ...string) string {
	clone := sel.Clone()
	for _, e := range exclude {
		clone.Find(e).Remove()
	}
	return Text(clone)
}

type Anchor struct {
	Text string
	// Href is the href attribute as written in the page.
	Href string
	// URL is Href resolved against the base given to Anchors.
	URL *url.URL
}

// Anchors collects the anchors of sel that carry a parsable href, stopping after limit
// anchors were looked at (limit <= 0 looks at all of them).
func Anchors(ctx context.Context, sel *goquery.Selection, base *url.URL, limit int) []Anchor {
	_, span := tracer.Start(ctx, "Anchors")
	defer span.End()

	var anchors []Anchor
	sel.EachWithBreak(func(i int, a *goquery.Selection) bool {
		if limit > 0 && i >= limit {
			return false
		}
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		link, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			span.RecordError(err)
			return true
		}
		if base != nil {
			link = base.ResolveReference(link)
		}

		anchor := Anchor{Text: Text(a), Href: href, URL: link}
		anchors = append(anchors, anchor)
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("text", anchor.Text),
			attribute.String("url", link.String()),
		))
		return true
	})
	span.SetAttributes(attribute.Int("anchors", len(anchors)))
	return anchors
}

// Parse parses an HTML document from a string.
func Parse(contents string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(contents))
}
