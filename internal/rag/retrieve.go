package rag

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/xiaot623/gogo/modelrouter/internal/domain"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"does": {}, "do": {}, "for": {}, "from": {}, "how": {}, "in": {}, "is": {}, "it": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "with": {},
}

func terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; !stop {
			out = append(out, f)
		}
	}
	return out
}

type scored struct {
	chunk domain.Chunk
	score float64
}

// Rank orders chunks by TF-IDF overlap with the query and returns the best k.
// Chunks with equal scores keep their document order.
func Rank(query string, chunks []domain.Chunk, k int) []domain.Chunk {
	if k <= 0 || len(chunks) == 0 {
		return nil
	}

	queryTerms := terms(query)
	tf := make([]map[string]int, len(chunks))
	df := make(map[string]int)
	for i, c := range chunks {
		counts := make(map[string]int)
		for _, t := range terms(c.Content) {
			counts[t]++
		}
		tf[i] = counts
		for t := range counts {
			df[t]++
		}
	}

	n := float64(len(chunks))
	ranked := make([]scored, len(chunks))
	for i, c := range chunks {
		var score float64
		for _, t := range queryTerms {
			if f := tf[i][t]; f > 0 {
				score += (1 + math.Log(float64(f))) * math.Log(1+n/float64(df[t]))
			}
		}
		ranked[i] = scored{chunk: c, score: score}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]domain.Chunk, len(ranked))
	for i, r := range ranked {
		out[i] = r.chunk
	}
	return out
}
