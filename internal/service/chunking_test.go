package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(w, " ")
}

func expectedChunks(n, w, o int) int {
	if n <= w {
		return 1
	}
	stride := w - o
	return (n-w+stride-1)/stride + 1
}

func TestChunkText_CountFormula(t *testing.T) {
	cases := []struct {
		n, w, o int
	}{
		{1, 800, 120},
		{800, 800, 120},
		{801, 800, 120},
		{2000, 800, 120},
		{10, 3, 1},
		{11, 4, 2},
		{100, 10, 0},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("n=%d w=%d o=%d", tc.n, tc.w, tc.o), func(t *testing.T) {
			chunks := ChunkText(words(tc.n), ChunkConfig{WindowSize: tc.w, Overlap: tc.o})

			require.Len(t, chunks, expectedChunks(tc.n, tc.w, tc.o))
			for i, c := range chunks {
				assert.Equal(t, i, c.Position)
				assert.LessOrEqual(t, len(strings.Fields(c.Text)), tc.w)
			}
		})
	}
}

func TestChunkText_Overlap(t *testing.T) {
	chunks := ChunkText("a b c d e f g", ChunkConfig{WindowSize: 3, Overlap: 1})

	require.Len(t, chunks, 3)
	assert.Equal(t, "a b c", chunks[0].Text)
	assert.Equal(t, "c d e", chunks[1].Text)
	assert.Equal(t, "e f g", chunks[2].Text)
}

func TestChunkText_NoTailSuffixWindows(t *testing.T) {
	// 5 words, window 4, overlap 2: the window at word 2 already ends on the
	// last word, so no further window starting at word 4 is emitted.
	chunks := ChunkText("a b c d e", ChunkConfig{WindowSize: 4, Overlap: 2})

	require.Len(t, chunks, 2)
	assert.Equal(t, "a b c d", chunks[0].Text)
	assert.Equal(t, "c d e", chunks[1].Text)
}

func TestChunkText_Empty(t *testing.T) {
	assert.Empty(t, ChunkText("", DefaultChunkConfig()))
	assert.Empty(t, ChunkText("   \n\t ", DefaultChunkConfig()))
}

func TestChunkText_OverlapNotSmallerThanWindow(t *testing.T) {
	chunks := ChunkText("a b c", ChunkConfig{WindowSize: 2, Overlap: 5})

	require.Len(t, chunks, 2)
	assert.Equal(t, "a b", chunks[0].Text)
	assert.Equal(t, "b c", chunks[1].Text)
}

func TestChunkText_InvalidWindowUsesDefaults(t *testing.T) {
	chunks := ChunkText(words(900), ChunkConfig{WindowSize: 0, Overlap: 50})

	require.Len(t, chunks, 2)
	assert.Len(t, strings.Fields(chunks[0].Text), 800)
	assert.Len(t, strings.Fields(chunks[1].Text), 220)
	assert.True(t, strings.HasPrefix(chunks[1].Text, "w680 "))
}

func TestChunks_Restartable(t *testing.T) {
	seq := Chunks(words(50), ChunkConfig{WindowSize: 10, Overlap: 3})

	var first, second []string
	for _, c := range seq {
		first = append(first, c)
	}
	for _, c := range seq {
		second = append(second, c)
	}

	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestChunks_EarlyStop(t *testing.T) {
	count := 0
	for pos := range Chunks(words(100), ChunkConfig{WindowSize: 5, Overlap: 0}) {
		if pos == 2 {
			break
		}
		count++
	}

	assert.Equal(t, 2, count)
}
