package indexer

import (
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"policy-manual-ai/internal/manual"
)

// TokensPerRune approximates token counts at 4 characters per token.
const TokensPerRune = 4.0

// ImportStats describes one run log import.
type ImportStats struct {
	RunID string `json:"run_id"`
	Path  string `json:"path"`
	// Read is the number of records decoded from the log.
	Read int `json:"read"`
	// Imported is the number of passages newly stored.
	Imported int `json:"imported"`
	// Duplicates is the number of passages that were already stored.
	Duplicates int `json:"duplicates"`
	// Skipped is the number of records rejected by validation.
	Skipped int `json:"skipped"`
	// Failed is the number of passages in batches that could not be stored.
	Failed int `json:"failed"`
	// Superseded is the number of older passages this import replaced.
	Superseded int `json:"superseded"`
	// Batches is the number of batches attempted.
	Batches int `json:"batches"`
	// Pages is the number of distinct source pages seen.
	Pages int `json:"pages"`
	// SubsectionPassages counts passages tagged with a subsection header.
	SubsectionPassages int `json:"subsection_passages"`
	// PassageTokenStats summarizes estimated token counts per passage.
	PassageTokenStats PassageTokenStats `json:"passage_token_stats"`
	Duration          time.Duration     `json:"duration"`

	tokenCounts []int
}

// PassageTokenStats contains statistics about token counts in passages.
type PassageTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

func newImportStats(runID, path string) *ImportStats {
	return &ImportStats{RunID: runID, Path: path}
}

func (s *ImportStats) observe(p manual.Passage) {
	if p.SubsectionHeader != nil {
		s.SubsectionPassages++
	}
	s.tokenCounts = append(s.tokenCounts, EstimateTokens(p.Body))
}

func (s *ImportStats) finish(d time.Duration) {
	s.Duration = d
	s.PassageTokenStats = computeTokenStats(s.tokenCounts)
}

// EstimateTokens estimates the token count of text, at least 1.
func EstimateTokens(text string) int {
	n := int(math.Round(float64(utf8.RuneCountInString(text)) / TokensPerRune))
	if n < 1 {
		return 1
	}
	return n
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) PassageTokenStats {
	if len(tokenCounts) == 0 {
		return PassageTokenStats{}
	}

	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	sum := 0
	for _, count := range tokenCounts {
		sum += count
	}
	mean := float64(sum) / float64(len(tokenCounts))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}

	return PassageTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  sorted[p95Index],
	}
}
