package content

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"policy-manual-ai/internal/manual"
)

const (
	contentSelector = "section#book-content"
	bodySelector    = "div.field--name-body"
	blockSelector   = "h2, h3, p"

	paragraphSeparator = "\n\n"
)

// ErrNoContent is reported when a page lacks the main content container.
var ErrNoContent = errors.New("content container not found")

// Mode selects how text under second-level headings is attributed.
type Mode int

const (
	// ModeSubsections emits passages tagged with the subsection header they sat under.
	ModeSubsections Mode = iota
	// ModeFold attributes subsection text to the enclosing section only.
	ModeFold
)

// ParseMode maps a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "subsections":
		return ModeSubsections, nil
	case "fold":
		return ModeFold, nil
	default:
		return ModeSubsections, fmt.Errorf("unknown segment mode %q", s)
	}
}

func (m Mode) String() string {
	if m == ModeFold {
		return "fold"
	}
	return "subsections"
}

// Segmenter partitions a page body into ordered passages.
type Segmenter struct {
	mode Mode
}

// NewSegmenter creates a Segmenter using mode.
func NewSegmenter(mode Mode) *Segmenter {
	return &Segmenter{mode: mode}
}

// Mode returns the segmenter's mode.
func (s *Segmenter) Mode() Mode {
	return s.mode
}

type segmentState int

const (
	stateNoSection segmentState = iota
	stateInSection
	stateInSubsection
)

// segmentRun holds the state machine for one page.
type segmentRun struct {
	meta manual.DocumentMetadata
	fold bool
	run  string

	state      segmentState
	section    string
	subsection *string
	paragraphs []string
	out        []manual.Passage
}

// Segment walks the page body in document order and returns its passages.
// A page without the content container yields no passages and an error of
// kind manual.KindAbsent.
func (s *Segmenter) Segment(doc *goquery.Document, meta manual.DocumentMetadata, run string) ([]manual.Passage, error) {
	body := doc.Find(contentSelector).First().Find(bodySelector).First()
	if body.Length() == 0 {
		return nil, manual.Absent("segment "+meta.SourceURL, ErrNoContent)
	}

	r := &segmentRun{
		meta: meta,
		fold: s.mode == ModeFold,
		run:  run,
	}

	body.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		text := normalizeText(sel.Text())
		switch goquery.NodeName(sel) {
		case "h2":
			r.startSection(text)
		case "h3":
			r.startSubsection(text)
		case "p":
			if text != "" {
				r.paragraphs = append(r.paragraphs, text)
			}
		}
	})
	r.flush()

	return r.out, nil
}

func (r *segmentRun) startSection(header string) {
	r.flush()
	r.section = header
	r.subsection = nil
	if header == "" {
		r.state = stateNoSection
		return
	}
	r.state = stateInSection
}

func (r *segmentRun) startSubsection(header string) {
	if r.state == stateNoSection {
		return
	}
	r.flush()
	r.state = stateInSubsection
	if r.fold || header == "" {
		r.subsection = nil
		return
	}
	r.subsection = manual.StringPtr(header)
}

// flush emits the accumulated paragraphs as one passage when both a section
// header and body text exist, then resets the accumulator.
func (r *segmentRun) flush() {
	defer func() { r.paragraphs = nil }()
	if r.section == "" || len(r.paragraphs) == 0 {
		return
	}

	url := r.meta.SourceURL
	r.out = append(r.out, manual.Passage{
		ID:               manual.PassageID(url, r.section, r.subsection, r.run, len(r.out)),
		SourceURL:        url,
		Metadata:         r.meta,
		SectionHeader:    r.section,
		SubsectionHeader: r.subsection,
		Body:             strings.Join(r.paragraphs, paragraphSeparator),
		IngestTimestamp:  r.run,
	})
}
