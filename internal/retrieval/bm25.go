package retrieval

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// BM25 parameters, standard Okapi values.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// LexicalTopK scores the chunk set against the query with Okapi BM25 and
// returns the k best chunks in descending score order. Chunks that share no
// term with the query are never returned.
func LexicalTopK(query string, chunks []Chunk, k int) []Chunk {
	if len(chunks) == 0 || k <= 0 {
		return nil
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}

	docs := make([][]string, len(chunks))
	docFreq := make(map[string]int)
	totalLen := 0
	for i, ch := range chunks {
		docs[i] = tokenize(ch.Text)
		totalLen += len(docs[i])
		seen := make(map[string]bool)
		for _, t := range docs[i] {
			if !seen[t] {
				docFreq[t] = docFreq[t] + 1
				seen[t] = true
			}
		}
	}
	avgLen := float64(totalLen) / float64(len(chunks))
	if avgLen == 0 {
		return nil
	}

	type scored struct {
		idx   int
		score float64
	}
	var ranked []scored
	n := float64(len(chunks))
	for i := range chunks {
		tf := make(map[string]int, len(docs[i]))
		for _, t := range docs[i] {
			tf[t]++
		}
		score := 0.0
		for _, q := range queryTerms {
			f := float64(tf[q])
			if f == 0 {
				continue
			}
			df := float64(docFreq[q])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := f * (bm25K1 + 1) / (f + bm25K1*(1-bm25B+bm25B*float64(len(docs[i]))/avgLen))
			score += idf * norm
		}
		if score > 0 {
			ranked = append(ranked, scored{idx: i, score: score})
		}
	}

	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]Chunk, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, chunks[r.idx])
	}
	return out
}

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
