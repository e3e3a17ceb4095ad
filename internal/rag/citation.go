package rag

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// CitationMode selects how strictly citation links are checked.
type CitationMode int

const (
	// CitationLenient enforces the path grammar and accepts any text fragment.
	CitationLenient CitationMode = iota
	// CitationStrict also rejects uppercase letters and percent-encoding anywhere in the link.
	CitationStrict
)

// ParseCitationMode maps a configuration value to a CitationMode.
func ParseCitationMode(s string) (CitationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return CitationLenient, nil
	case "strict":
		return CitationStrict, nil
	default:
		return CitationLenient, fmt.Errorf("unknown citation mode %q", s)
	}
}

func (m CitationMode) String() string {
	if m == CitationStrict {
		return "strict"
	}
	return "lenient"
}

const textFragmentPrefix = ":~:text="

var (
	// ErrInvalidCitation is returned for links that do not follow the citation grammar.
	ErrInvalidCitation = errors.New("invalid citation link")

	citationPattern  = regexp.MustCompile(`^https://([a-z0-9-]+(?:\.[a-z0-9-]+)+)/policy-manual/volume-(\d+)-part-([a-z])-chapter-(\d+)(?:#:~:text=(\S+))?$`)
	looseChapterPath = regexp.MustCompile(`^/policy-manual/volume-?(\d+)-part-?([a-z])-chapter-?(\d+)$`)
	separatorRun     = regexp.MustCompile(`[\s_-]+`)
)

// Citation is a validated link to one policy manual chapter.
type Citation struct {
	URL      string `json:"url"`
	Volume   string `json:"volume"`
	Part     string `json:"part"`
	Chapter  string `json:"chapter"`
	Fragment string `json:"fragment,omitempty"`
	Text     string `json:"text,omitempty"`
}

// ParseCitation validates href against the citation grammar:
// https://<host>/policy-manual/volume-<V>-part-<P>-chapter-<C> with an
// optional #:~:text=<fragment> suffix. The path must be lowercase, hyphen
// separated and free of percent-encoding; strict mode extends those rules
// to the whole link.
func ParseCitation(href string, mode CitationMode) (Citation, error) {
	if mode == CitationStrict {
		if strings.ContainsRune(href, '%') {
			return Citation{}, fmt.Errorf("%w: percent-encoding in %q", ErrInvalidCitation, href)
		}
		if strings.ToLower(href) != href {
			return Citation{}, fmt.Errorf("%w: uppercase letters in %q", ErrInvalidCitation, href)
		}
	}

	m := citationPattern.FindStringSubmatch(href)
	if m == nil {
		return Citation{}, fmt.Errorf("%w: %q", ErrInvalidCitation, href)
	}
	return Citation{
		URL:      href,
		Volume:   m[2],
		Part:     m[3],
		Chapter:  m[4],
		Fragment: m[5],
	}, nil
}

// ValidateCitation reports whether href follows the citation grammar.
func ValidateCitation(href string, mode CitationMode) error {
	_, err := ParseCitation(href, mode)
	return err
}

// RepairCitation rewrites a near-miss chapter link on host into canonical
// form. Percent-encoded or upper-cased paths and separators other than
// hyphens are normalized. In strict mode a fragment that cannot be kept
// verbatim is dropped. It reports false when href does not point at a
// policy manual chapter on host.
func RepairCitation(href, host string, mode CitationMode) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if !sameSite(u.Hostname(), host) {
		return "", false
	}

	path, err := url.PathUnescape(u.EscapedPath())
	if err != nil {
		return "", false
	}
	path = strings.TrimRight(strings.ToLower(path), "/")
	path = separatorRun.ReplaceAllString(path, "-")

	m := looseChapterPath.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}

	repaired := fmt.Sprintf("https://%s/policy-manual/volume-%s-part-%s-chapter-%s", strings.ToLower(host), m[1], m[2], m[3])
	if frag := u.EscapedFragment(); strings.HasPrefix(frag, textFragmentPrefix) && len(frag) > len(textFragmentPrefix) {
		candidate := repaired + "#" + frag
		if ValidateCitation(candidate, mode) == nil {
			return candidate, true
		}
	}
	return repaired, ValidateCitation(repaired, mode) == nil
}

// sameSite reports whether host names the configured site, ignoring case
// and a leading "www.".
func sameSite(host, want string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	want = strings.TrimPrefix(strings.ToLower(want), "www.")
	return host != "" && host == want
}
