package confidence

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// ChunkText splits text into chunks of at most maxChars bytes. Paragraphs
// are packed together while they fit; an oversized paragraph is packed by
// sentence, and a single oversized sentence is split on word boundaries.
func ChunkText(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultConfig().MaxChunkChars
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}
	add := func(piece, sep string) {
		if current.Len() > 0 && current.Len()+len(sep)+len(piece) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(piece)
	}

	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxChars {
			add(para, "\n\n")
			continue
		}

		flush()
		for _, sentence := range splitSentences(para) {
			if len(sentence) <= maxChars {
				add(sentence, " ")
				continue
			}
			flush()
			for _, piece := range splitWords(sentence, maxChars) {
				add(piece, " ")
			}
		}
		flush()
	}
	flush()

	return chunks
}

func splitSentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTokenization(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return []string{text}
	}

	var out []string
	for _, s := range doc.Sentences() {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

// splitWords cuts text on spaces into pieces of at most maxChars bytes. A
// single word longer than maxChars is cut mid-word, on a rune boundary.
func splitWords(text string, maxChars int) []string {
	var pieces []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		for len(word) > maxChars {
			if current.Len() > 0 {
				pieces = append(pieces, current.String())
				current.Reset()
			}
			cut := runeCut(word, maxChars)
			pieces = append(pieces, word[:cut])
			word = word[cut:]
		}
		if current.Len() > 0 && current.Len()+1+len(word) > maxChars {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// runeCut returns the largest rune boundary in word at or below n bytes,
// but always at least one whole rune. len(word) must exceed n.
func runeCut(word string, n int) int {
	for n > 0 && !utf8.RuneStart(word[n]) {
		n--
	}
	if n == 0 {
		_, size := utf8.DecodeRuneInString(word)
		return size
	}
	return n
}
