package confidence

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextPacksParagraphs(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph.\n  \nThird paragraph."

	chunks := ChunkText(text, 1000)

	assert.Equal(t, []string{"First paragraph.\n\nSecond paragraph.\n\nThird paragraph."}, chunks)
}

func TestChunkTextStartsNewChunkWhenFull(t *testing.T) {
	a := strings.Repeat("a", 60)
	b := strings.Repeat("b", 60)

	chunks := ChunkText(a+"\n\n"+b, 100)

	assert.Equal(t, []string{a, b}, chunks)
}

func TestChunkTextSplitsOversizedParagraphBySentence(t *testing.T) {
	sentence := "The venue opens its doors at eight and the band starts at nine. "
	para := strings.Repeat(sentence, 40)

	chunks := ChunkText(para, 300)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 300)
	}
	assert.Equal(t, strings.Fields(para), strings.Fields(strings.Join(chunks, " ")))
	assert.True(t, strings.HasPrefix(chunks[0], "The venue opens"))
}

func TestChunkTextSplitsRunOnSentence(t *testing.T) {
	para := strings.Repeat("word ", 500)

	chunks := ChunkText(para, 120)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 120)
	}
	assert.Equal(t, strings.Fields(para), strings.Fields(strings.Join(chunks, " ")))
}

func TestSplitWordsCutsLongWords(t *testing.T) {
	pieces := splitWords("ab "+strings.Repeat("x", 25), 10)

	assert.Equal(t, []string{"ab", "xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, pieces)
}

func TestSplitWordsKeepsRunesWhole(t *testing.T) {
	pieces := splitWords("ab "+strings.Repeat("é", 8), 5)

	assert.Equal(t, []string{"ab", "éé", "éé", "éé", "éé"}, pieces)
	for _, p := range pieces {
		assert.True(t, utf8.ValidString(p), "%q", p)
	}
}

func TestChunkTextEmpty(t *testing.T) {
	assert.Empty(t, ChunkText("  \n\n ", 100))
}
