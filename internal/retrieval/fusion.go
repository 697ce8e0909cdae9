package retrieval

import (
	"fmt"
	"strings"
)

// blockDelimiter separates formatted source blocks in the fused output.
const blockDelimiter = "\n\n---\n\n"

// Fuse unions the two ranked lists and deduplicates by exact chunk content.
// Presence in either ranking is sufficient for inclusion; there is no
// rank-based re-sorting, so the fused set is the same regardless of which
// list is unioned first.
func Fuse(semantic, lexical []Chunk) []Chunk {
	seen := make(map[string]bool, len(semantic)+len(lexical))
	out := make([]Chunk, 0, len(semantic)+len(lexical))
	for _, ch := range append(append([]Chunk{}, semantic...), lexical...) {
		if seen[ch.Text] {
			continue
		}
		seen[ch.Text] = true
		out = append(out, ch)
	}
	return out
}

// Format renders the fused set as source+content blocks for the model.
func Format(chunks []Chunk) string {
	blocks := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		blocks = append(blocks, fmt.Sprintf("Source: %s\nContent: %s", ch.Title, ch.Text))
	}
	return strings.Join(blocks, blockDelimiter)
}
