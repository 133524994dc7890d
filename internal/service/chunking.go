package service

import (
	"iter"
	"strings"

	"github.com/cloo-solutions/ragline/internal/domain"
)

// ChunkConfig controls the word-window chunker.
type ChunkConfig struct {
	WindowSize int
	Overlap    int
}

// DefaultChunkConfig provides the default window of 800 words with 120 words of overlap.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		WindowSize: 800,
		Overlap:    120,
	}
}

func (c ChunkConfig) normalized() ChunkConfig {
	if c.WindowSize <= 0 {
		return DefaultChunkConfig()
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	return c
}

func (c ChunkConfig) stride() int {
	return max(c.WindowSize-c.Overlap, 1)
}

// Chunks yields (position, text) pairs lazily. Windows advance by
// max(WindowSize-Overlap, 1) words and stop once a window reaches the last word,
// so n words give ceil((n-w)/(w-o))+1 chunks when n > w and one chunk otherwise.
// The sequence is a pure function of its inputs and can be ranged over any
// number of times.
func Chunks(text string, cfg ChunkConfig) iter.Seq2[int, string] {
	cfg = cfg.normalized()
	return func(yield func(int, string) bool) {
		words := strings.Fields(text)
		if len(words) == 0 {
			return
		}
		pos := 0
		for start := 0; start < len(words); start += cfg.stride() {
			end := min(start+cfg.WindowSize, len(words))
			if !yield(pos, strings.Join(words[start:end], " ")) {
				return
			}
			// No trailing windows that are suffixes of this one.
			if end == len(words) {
				return
			}
			pos++
		}
	}
}

// ChunkText collects Chunks into a slice.
func ChunkText(text string, cfg ChunkConfig) []domain.TextChunk {
	var chunks []domain.TextChunk
	for pos, chunk := range Chunks(text, cfg) {
		chunks = append(chunks, domain.TextChunk{Position: pos, Text: chunk})
	}
	return chunks
}
