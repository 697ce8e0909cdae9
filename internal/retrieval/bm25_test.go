package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexicalTopKRanksMatchingChunksFirst(t *testing.T) {
	chunks := []Chunk{
		{Text: "weather forecast for the weekend"},
		{Text: "hospital ICU occupancy is rising in several states"},
		{Text: "ICU beds and ICU occupancy trends in hospitals"},
	}
	top := LexicalTopK("ICU occupancy", chunks, 2)
	require.Len(t, top, 2)
	assert.Equal(t, chunks[2].Text, top[0].Text) // two query terms, twice
	assert.Equal(t, chunks[1].Text, top[1].Text)
}

func TestLexicalTopKExcludesNonMatching(t *testing.T) {
	chunks := []Chunk{
		{Text: "completely unrelated text"},
		{Text: "vaccination campaign reaches rural areas"},
	}
	top := LexicalTopK("vaccination", chunks, 3)
	require.Len(t, top, 1)
	assert.Equal(t, chunks[1].Text, top[0].Text)
}

func TestLexicalTopKEmptyInputs(t *testing.T) {
	assert.Nil(t, LexicalTopK("query", nil, 3))
	assert.Nil(t, LexicalTopK("", []Chunk{{Text: "x"}}, 3))
	assert.Nil(t, LexicalTopK("query", []Chunk{{Text: "x"}}, 0))
}

func TestTokenizeNormalizes(t *testing.T) {
	assert.Equal(t, []string{"icu", "occupancy", "2024"}, tokenize("ICU, occupancy: 2024!"))
}
