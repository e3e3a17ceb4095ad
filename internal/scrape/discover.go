package scrape

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const navLinkSelector = "nav.nav-sub-tree a[href]"

// Part is a part discovered on a volume page.
type Part struct {
	Volume int
	Letter string // upper case
	Title  string
	URL    string
}

// Chapter is a chapter discovered on a part page.
type Chapter struct {
	Volume int
	Part   string
	Number string
	Title  string
	URL    string
}

// PartURL returns the landing page of a part.
func PartURL(baseURL string, volume int, letter string) string {
	return fmt.Sprintf("%s/policy-manual/volume-%d-part-%s", baseURL, volume, strings.ToLower(letter))
}

// DiscoverParts lists the parts linked from a volume page's navigation tree.
func DiscoverParts(doc *goquery.Document, baseURL string, volume int) []Part {
	marker := fmt.Sprintf("/policy-manual/volume-%d-part-", volume)

	var parts []Part
	seen := make(map[string]bool)
	doc.Find(navLinkSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, marker) || strings.Contains(href, "-chapter-") {
			return
		}
		letter := strings.ToUpper(href[strings.LastIndex(href, "-part-")+len("-part-"):])
		if letter == "" || seen[letter] {
			return
		}
		seen[letter] = true
		parts = append(parts, Part{
			Volume: volume,
			Letter: letter,
			Title:  strings.TrimSpace(a.Text()),
			URL:    absoluteURL(baseURL, href),
		})
	})

	return parts
}

// DiscoverChapters lists the chapters linked from a part page's navigation tree.
func DiscoverChapters(doc *goquery.Document, baseURL string, volume int, part string) []Chapter {
	marker := fmt.Sprintf("/policy-manual/volume-%d-part-%s-chapter-", volume, strings.ToLower(part))

	var chapters []Chapter
	seen := make(map[string]bool)
	doc.Find(navLinkSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, marker) {
			return
		}
		number := href[strings.LastIndex(href, "-chapter-")+len("-chapter-"):]
		if number == "" || seen[number] {
			return
		}
		seen[number] = true
		chapters = append(chapters, Chapter{
			Volume: volume,
			Part:   part,
			Number: number,
			Title:  strings.TrimSpace(a.Text()),
			URL:    absoluteURL(baseURL, href),
		})
	})

	return chapters
}

func absoluteURL(baseURL, href string) string {
	if strings.HasPrefix(href, "/") {
		return strings.TrimSuffix(baseURL, "/") + href
	}
	return href
}
