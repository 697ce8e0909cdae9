// Package retrieval implements the hybrid news-retrieval pipeline: documents
// are split into overlapping chunks, scored independently by a semantic
// (vector) branch and a lexical (BM25) branch, and the two top-k lists are
// fused by content-deduplicated union.
package retrieval

// Document is one raw search result. It lives only within a single
// retrieval call.
type Document struct {
	Content string
	URL     string
	Title   string
}

// Chunk is a bounded slice of a document's content, carrying the source
// metadata needed for formatting.
type Chunk struct {
	Text  string
	URL   string
	Title string
}

// Chunker splits document content into overlapping rune windows.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker builds a chunker with the given target size and overlap, in
// runes. Invalid values fall back to 800/100.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 || overlap >= size {
		overlap = 100
		if overlap >= size {
			overlap = size / 8
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split chunks every non-empty document, preserving document order. The
// overlap keeps context across chunk boundaries.
func (c *Chunker) Split(docs []Document) []Chunk {
	var chunks []Chunk
	for _, d := range docs {
		if d.Content == "" {
			continue
		}
		runes := []rune(d.Content)
		step := c.size - c.overlap
		for i := 0; i < len(runes); i += step {
			end := i + c.size
			if end > len(runes) {
				end = len(runes)
			}
			chunks = append(chunks, Chunk{
				Text:  string(runes[i:end]),
				URL:   d.URL,
				Title: d.Title,
			})
			if end == len(runes) {
				break
			}
		}
	}
	return chunks
}
