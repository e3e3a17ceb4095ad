package rag

import (
	"fmt"
	"sort"
	"strings"

	"policy-manual-ai/internal/session"
)

const promptTemplate = `<s>[INST] You are an immigration expert specializing in USCIS policies and procedures. 
When answering questions:
1. Format your response in HTML
2. Use <h2> tags for main sections
3. ALWAYS use <ul> and <li> tags for lists - never use asterisks (*) or hyphens (-)
4. Use <strong> tags for important terms
5. For citations:
   - Use exact format: <a href="https://www.uscis.gov/policy-manual/volume-[X]-part-[Y]-chapter-[Z]#:~:text=%s" target="_blank">Volume [X], Part [Y], Chapter [Z]</a>
   - Example: <a href="https://www.uscis.gov/policy-manual/volume-6-part-e-chapter-8#:~:text=%s" target="_blank">Volume 6, Part E, Chapter 8</a>
   - Only include citations if they link directly to USCIS Policy Manual
   - Use lowercase letters in URLs
   - Use hyphens (-) between all parts of the URL path
   - Do not use spaces or URL encoding (%%20) in the URL path
   - When referencing specific text, %s
6. Always cite specific volumes, parts, and chapters when available
7. Use <div> tags to separate different sections
8. If information is missing or incomplete, specify which aspects are not covered
9. If multiple sources provide conflicting information, note the discrepancy
10. Do not use markdown formatting - use proper HTML tags instead

Previous conversation:
%s

Current context from USCIS Policy Manual:
%s

Question: %s [/INST]</s>`

// citationGuide is the part of the citation instructions that depends on
// how strictly links are checked.
type citationGuide struct {
	placeholder string
	example     string
	fragment    string
}

var citationGuides = map[CitationMode]citationGuide{
	CitationLenient: {
		placeholder: "[encoded_text]",
		example:     "The%20employer%20must%20demonstrate",
		fragment:    "add #:~:text=[encoded_text] to highlight that text",
	},
	// Strict links may carry neither uppercase letters nor percent-encoding,
	// so the fragment names the start and end words of the passage.
	CitationStrict: {
		placeholder: "[start],[end]",
		example:     "employer,wage",
		fragment:    "add #:~:text=[start],[end] where [start] and [end] are single lowercase words that open and close the passage, without URL encoding",
	},
}

// FilterRelevant keeps the chunks scoring above RelevanceThreshold, best first.
// Ties keep their retrieval order.
func FilterRelevant(chunks []RetrievedChunk) []RetrievedChunk {
	out := make([]RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.RelevanceScore.Float64() > RelevanceThreshold {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RelevanceScore > out[j].RelevanceScore
	})
	return out
}

// RenderContext renders chunks as "[Vol v.p.c] title\nsection: body" blocks
// separated by blank lines.
func RenderContext(chunks []RetrievedChunk) string {
	blocks := make([]string, 0, len(chunks))
	for _, c := range chunks {
		blocks = append(blocks, fmt.Sprintf("%s\n%s: %s", c.Label(), c.SectionHeader, c.Content))
	}
	return strings.Join(blocks, "\n\n")
}

// RenderHistory renders the last HistoryTurns turns as Human/Assistant pairs.
func RenderHistory(turns []session.Turn) string {
	if len(turns) > HistoryTurns {
		turns = turns[len(turns)-HistoryTurns:]
	}
	blocks := make([]string, 0, len(turns))
	for _, t := range turns {
		blocks = append(blocks, fmt.Sprintf("Human: %s\nAssistant: %s", t.Question, t.Answer))
	}
	return strings.Join(blocks, "\n\n")
}

// BuildPrompt assembles the grounded prompt for question, asking for
// citation links that pass mode. It reports false, and returns no prompt,
// when no chunk clears the relevance threshold.
func BuildPrompt(question string, chunks []RetrievedChunk, history []session.Turn, mode CitationMode) (string, bool) {
	relevant := FilterRelevant(chunks)
	if len(relevant) == 0 {
		return "", false
	}
	guide := citationGuides[mode]
	return fmt.Sprintf(promptTemplate,
		guide.placeholder, guide.example, guide.fragment,
		RenderHistory(history), RenderContext(relevant), question,
	), true
}

// ExampleCitation is the sample link the prompt shows for mode.
func ExampleCitation(mode CitationMode) string {
	return "https://www.uscis.gov/policy-manual/volume-6-part-e-chapter-8#:~:text=" + citationGuides[mode].example
}
