package rag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"policy-manual-ai/internal/keyword"
	"policy-manual-ai/internal/manual"
)

const (
	// DefaultSemanticWeight is the share of the fused score given to vector similarity.
	DefaultSemanticWeight = 0.75
	// MaxCandidates bounds the number of chunks one retrieval returns.
	MaxCandidates = 8
	// RelevanceThreshold is the fused score a chunk must exceed to ground an answer.
	RelevanceThreshold = 0.7
	// HistoryTurns is the number of recent turns folded into a prompt.
	HistoryTurns = 3
)

// Relevance signals a hybrid query can request.
const (
	SignalDistance  = "distance"
	SignalScore     = "score"
	SignalCertainty = "certainty"
)

// DefaultTextFields are the passage fields searched lexically.
var DefaultTextFields = keyword.DefaultFields

// DefaultSignals are the relevance signals requested for every candidate.
var DefaultSignals = []string{SignalDistance, SignalScore, SignalCertainty}

// Score is a relevance score. It decodes from a JSON number or from a
// string holding a number, so indexes that report scores as text compare
// the same way as those that report floats.
type Score float64

// ParseScore converts a numeric value or numeric text to a Score.
func ParseScore(v any) (Score, error) {
	switch s := v.(type) {
	case nil:
		return 0, nil
	case Score:
		return s, nil
	case float64:
		return Score(s), nil
	case float32:
		return Score(s), nil
	case int:
		return Score(s), nil
	case int64:
		return Score(s), nil
	case json.Number:
		f, err := s.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid score %q: %w", s, err)
		}
		return Score(f), nil
	case string:
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid score %q: %w", s, err)
		}
		return Score(f), nil
	default:
		return 0, fmt.Errorf("unsupported score type %T", v)
	}
}

// UnmarshalJSON accepts numbers, numeric strings and null.
func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	var v any
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		v = str
	} else {
		v = json.Number(data)
	}
	parsed, err := ParseScore(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Float64 returns the score as a float64.
func (s Score) Float64() float64 {
	return float64(s)
}

// RetrievedChunk is a stored passage returned by one retrieval, with the
// relevance signals computed for it. It only lives for one query.
type RetrievedChunk struct {
	manual.Record

	// RelevanceScore is the fused hybrid score.
	RelevanceScore Score `json:"score"`
	// Certainty is the semantic similarity mapped into [0,1].
	Certainty Score `json:"certainty"`
	// Distance is the cosine distance to the question.
	Distance Score `json:"distance"`

	SemanticScore float64 `json:"semantic_score,omitempty"`
	LexicalScore  float64 `json:"lexical_score,omitempty"`
}

// NewRetrievedChunk wraps p with zero relevance signals.
func NewRetrievedChunk(p manual.Passage) RetrievedChunk {
	return RetrievedChunk{Record: p.Record()}
}

// Label returns the "[Vol v.p.c] title" line used to introduce the chunk.
func (c RetrievedChunk) Label() string {
	return fmt.Sprintf("[Vol %s.%s.%s] %s", c.VolumeNumber, c.PartLetter, c.ChapterNumber, c.Title)
}

// HybridQuery is one combined lexical and semantic query.
type HybridQuery struct {
	QueryText      string
	TextFields     []string
	SemanticWeight float64
	Limit          int
	Signals        []string
}

// NewHybridQuery returns the query issued for a question.
func NewHybridQuery(question string) HybridQuery {
	return HybridQuery{
		QueryText:      question,
		TextFields:     DefaultTextFields,
		SemanticWeight: DefaultSemanticWeight,
		Limit:          MaxCandidates,
		Signals:        DefaultSignals,
	}
}

// wants reports whether the query requested signal.
func (q HybridQuery) wants(signal string) bool {
	if len(q.Signals) == 0 {
		return true
	}
	for _, s := range q.Signals {
		if s == signal {
			return true
		}
	}
	return false
}
