// Package retrieval is a lightweight, word-overlap document retriever. It
// stands behind the same TopK contract a vector store would: uploaded
// documents are chunked, tokenized into ident-like words, and queries are
// scored by the share of query words a chunk contains.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	chunkSize    = 1000
	chunkOverlap = 200

	// minRelevance filters chunks that share too little vocabulary with the
	// query to be useful context.
	minRelevance = 0.2

	queryCacheSize = 256
)

type chunk struct {
	source string
	text   string
	words  map[string]bool
}

// Index is safe for concurrent use. Adding a document invalidates cached
// query results.
type Index struct {
	mu     sync.RWMutex
	chunks []chunk
	cache  *lru.Cache[string, []string]
}

func NewIndex() (*Index, error) {
	cache, err := lru.New[string, []string](queryCacheSize)
	if err != nil {
		return nil, err
	}
	return &Index{cache: cache}, nil
}

// AddDocument chunks and indexes one document.
func (ix *Index) AddDocument(source, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, part := range splitChunks(text) {
		ix.chunks = append(ix.chunks, chunk{
			source: source,
			text:   part,
			words:  tokenize(part),
		})
	}
	ix.cache.Purge()
}

// Len reports the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// TopK returns the k most relevant chunks for query, best first. An empty
// index yields an empty result, never an error.
func (ix *Index) TopK(ctx context.Context, query string, k int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	key := fmt.Sprintf("%d|%s", k, strings.ToLower(strings.TrimSpace(query)))

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if hit, ok := ix.cache.Get(key); ok {
		return hit, nil
	}

	queryWords := tokenize(query)
	if len(queryWords) == 0 || len(ix.chunks) == 0 {
		return nil, nil
	}

	type scored struct {
		text  string
		score float64
	}
	var results []scored
	for _, c := range ix.chunks {
		hits := 0
		for w := range queryWords {
			if c.words[w] {
				hits++
			}
		}
		score := float64(hits) / float64(len(queryWords))
		if score >= minRelevance {
			results = append(results, scored{text: c.text, score: score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > k {
		results = results[:k]
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.text)
	}
	ix.cache.Add(key, out)
	return out, nil
}

// splitChunks cuts text into overlapping windows on rune boundaries.
func splitChunks(text string) []string {
	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}
	var out []string
	step := chunkSize - chunkOverlap
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// tokenize keeps ident-like words: a Unicode letter or '_' start continued
// by letters, digits or '_'. Numbers and symbols are delimiters.
func tokenize(text string) map[string]bool {
	words := make(map[string]bool)
	var b strings.Builder
	flush := func() {
		if b.Len() > 1 {
			words[strings.ToLower(b.String())] = true
		}
		b.Reset()
	}
	for _, r := range text {
		switch {
		case r == '_' || unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsDigit(r) && b.Len() > 0:
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return words
}
