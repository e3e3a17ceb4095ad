package rag

import (
	"bytes"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Fixed answers rendered instead of model output.
const (
	NoInformationHTML = "<h2>No Information Found</h2><p>I couldn't find relevant information to answer your question.</p>"
	ServerErrorHTML   = "<h2>Error</h2><p>Unable to generate response due to server error.</p>"
)

// DefaultCitationHost is the site policy manual citations must point at.
const DefaultCitationHost = "www.uscis.gov"

var htmlTagPattern = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(\s[^>]*)?/?>`)

// ErrorHTML renders a transport failure as an answer.
func ErrorHTML(err error) string {
	return fmt.Sprintf("<h2>Error</h2><p>%s</p>", html.EscapeString(err.Error()))
}

// FormatResult is a checked answer.
type FormatResult struct {
	HTML      string
	Citations []Citation
	// Repaired counts citation links rewritten into canonical form.
	Repaired int
	// Dropped counts links unwrapped to plain text.
	Dropped int
	// Converted is set when the answer was markdown rendered to HTML.
	Converted bool
}

// Formatter checks the model's citation links and makes sure the answer is HTML.
type Formatter struct {
	mode     CitationMode
	host     string
	markdown goldmark.Markdown
}

// NewFormatter creates a Formatter accepting citations to host.
func NewFormatter(mode CitationMode, host string) *Formatter {
	if host == "" {
		host = DefaultCitationHost
	}
	return &Formatter{
		mode: mode,
		host: host,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
	}
}

// Mode returns the citation mode links are checked against.
func (f *Formatter) Mode() CitationMode {
	return f.mode
}

// HostFromBaseURL returns the host of a source base URL, or the default
// citation host when base cannot be parsed.
func HostFromBaseURL(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Hostname() == "" {
		return DefaultCitationHost
	}
	return u.Hostname()
}

// Format validates every link in raw. Conforming citations are kept,
// repairable chapter links are rewritten and every other link is unwrapped
// to its text. Answers without HTML markup are rendered from markdown.
// When nothing had to change, raw is returned verbatim.
func (f *Formatter) Format(raw string) (FormatResult, error) {
	res := FormatResult{HTML: raw, Citations: []Citation{}}

	answer := raw
	if strings.TrimSpace(raw) != "" && !htmlTagPattern.MatchString(raw) {
		var buf bytes.Buffer
		if err := f.markdown.Convert([]byte(raw), &buf); err != nil {
			return res, fmt.Errorf("failed to render markdown answer: %w", err)
		}
		answer = buf.String()
		res.Converted = true
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(answer))
	if err != nil {
		return res, fmt.Errorf("failed to parse answer: %w", err)
	}

	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		text := strings.TrimSpace(a.Text())

		if c, err := ParseCitation(href, f.mode); err == nil && f.onSite(href) {
			c.Text = text
			res.Citations = append(res.Citations, c)
			return
		}

		if fixed, ok := RepairCitation(href, f.host, f.mode); ok {
			a.SetAttr("href", fixed)
			if c, err := ParseCitation(fixed, f.mode); err == nil {
				c.Text = text
				res.Citations = append(res.Citations, c)
			}
			res.Repaired++
			return
		}

		if a.Contents().Length() == 0 {
			a.Remove()
		} else {
			a.Contents().Unwrap()
		}
		res.Dropped++
	})

	if !res.Converted && res.Repaired == 0 && res.Dropped == 0 {
		return res, nil
	}

	body, err := doc.Find("body").Html()
	if err != nil {
		return res, fmt.Errorf("failed to render answer: %w", err)
	}
	res.HTML = strings.TrimSpace(body)
	return res, nil
}

func (f *Formatter) onSite(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return sameSite(u.Hostname(), f.host)
}
