// Package content turns a fetched policy manual page into metadata and
// ordered, citation-addressable passages.
package content

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"policy-manual-ai/internal/manual"
)

const (
	titleSelector       = "h1"
	breadcrumbSelector  = "nav.breadcrumb"
	lastUpdatedSelector = "div.last-updated"
)

var (
	volumePattern  = regexp.MustCompile(`Volume\s+(\d+)`)
	partPattern    = regexp.MustCompile(`Part\s+([A-Z])`)
	chapterPattern = regexp.MustCompile(`Chapter\s+(\d+)`)
)

// Parse parses raw page HTML into a document tree.
func Parse(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// ParseString is Parse for an in-memory page.
func ParseString(html string) (*goquery.Document, error) {
	return Parse(strings.NewReader(html))
}

// ExtractMetadata reads the title, breadcrumb identifiers and last-updated
// marker from doc. Missing elements leave the corresponding field empty.
func ExtractMetadata(doc *goquery.Document, sourceURL string) manual.DocumentMetadata {
	meta := manual.DocumentMetadata{SourceURL: sourceURL}

	if title := doc.Find(titleSelector).First(); title.Length() > 0 {
		meta.Title = normalizeText(title.Text())
	}

	if crumbs := doc.Find(breadcrumbSelector).First(); crumbs.Length() > 0 {
		text := crumbs.Text()
		meta.VolumeNumber = firstGroup(volumePattern, text)
		meta.PartLetter = firstGroup(partPattern, text)
		meta.ChapterNumber = firstGroup(chapterPattern, text)
	}

	if updated := doc.Find(lastUpdatedSelector).First(); updated.Length() > 0 {
		meta.LastUpdated = normalizeText(updated.Text())
	}

	return meta
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// normalizeText trims s and collapses internal whitespace runs to one space.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
