package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseUnionsBothLists(t *testing.T) {
	a := Chunk{Text: "alpha", Title: "A"}
	b := Chunk{Text: "beta", Title: "B"}
	c := Chunk{Text: "gamma", Title: "C"}

	fused := Fuse([]Chunk{a, b}, []Chunk{c})
	assert.Len(t, fused, 3)
}

func TestFuseDeduplicatesByContent(t *testing.T) {
	shared := Chunk{Text: "same content", Title: "X"}
	fused := Fuse([]Chunk{shared}, []Chunk{shared})
	require.Len(t, fused, 1)
	assert.Equal(t, "same content", fused[0].Text)
}

// The fused set must not depend on which ranked list is unioned first.
func TestFuseOrderInvariantSet(t *testing.T) {
	a := Chunk{Text: "alpha"}
	b := Chunk{Text: "beta"}
	c := Chunk{Text: "gamma"}

	left := Fuse([]Chunk{a, b}, []Chunk{b, c})
	right := Fuse([]Chunk{b, c}, []Chunk{a, b})

	asSet := func(chunks []Chunk) map[string]bool {
		m := make(map[string]bool)
		for _, ch := range chunks {
			m[ch.Text] = true
		}
		return m
	}
	assert.Equal(t, asSet(left), asSet(right))
	assert.Len(t, left, 3)
	assert.Len(t, right, 3)
}

func TestFormatBlocks(t *testing.T) {
	out := Format([]Chunk{
		{Text: "first", Title: "Title One"},
		{Text: "second", Title: "Title Two"},
	})
	assert.Contains(t, out, "Source: Title One\nContent: first")
	assert.Contains(t, out, "Source: Title Two\nContent: second")
	assert.Contains(t, out, "\n\n---\n\n")
}

func TestFormatEmpty(t *testing.T) {
	assert.Empty(t, Format(nil))
}
