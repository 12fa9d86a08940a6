// Package chunker splits source documents into sentence-aligned chunks
// small enough to embed.
package chunker

import (
	"strings"
	"unicode"
)

// Defaults applied when a Chunker field is zero.
const (
	DefaultMaxTokens = 512
	DefaultOverlap   = 50
)

// Chunk is one piece of a source document.
type Chunk struct {
	Text       string
	Index      int
	TokenCount int
}

// Chunker packs whole sentences into chunks of at most MaxTokens tokens.
// Consecutive chunks repeat trailing sentences worth up to Overlap tokens.
// A sentence longer than MaxTokens is cut on token boundaries.
// Tokens are whitespace-separated words.
type Chunker struct {
	MaxTokens int
	Overlap   int // negative disables overlap
}

func (c *Chunker) limits() (maxTokens, overlap int) {
	maxTokens = c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	overlap = c.Overlap
	switch {
	case overlap == 0:
		overlap = DefaultOverlap
	case overlap < 0:
		overlap = 0
	}
	if overlap >= maxTokens {
		overlap = maxTokens - 1
	}
	return maxTokens, overlap
}

// Chunk splits text. Empty or whitespace-only text yields no chunks.
func (c *Chunker) Chunk(text string) []Chunk {
	maxTokens, overlap := c.limits()

	var pieces []string
	for _, s := range splitSentences(text) {
		pieces = append(pieces, splitLong(s, maxTokens)...)
	}

	var (
		chunks []Chunk
		window []string
		tokens int
	)
	for _, p := range pieces {
		n := countTokens(p)
		if tokens+n > maxTokens && len(window) > 0 {
			chunks = append(chunks, Chunk{Text: strings.Join(window, " "), Index: len(chunks), TokenCount: tokens})
			window = tail(window, overlap)
			tokens = countAll(window)
			for len(window) > 0 && tokens+n > maxTokens {
				tokens -= countTokens(window[0])
				window = window[1:]
			}
		}
		window = append(window, p)
		tokens += n
	}
	if len(window) > 0 {
		chunks = append(chunks, Chunk{Text: strings.Join(window, " "), Index: len(chunks), TokenCount: tokens})
	}
	return chunks
}

// splitSentences breaks text after '.', '!' or '?' followed by whitespace or end of text.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// splitLong cuts a sentence into runs of at most maxTokens words.
func splitLong(sentence string, maxTokens int) []string {
	words := strings.Fields(sentence)
	if len(words) <= maxTokens {
		return []string{strings.Join(words, " ")}
	}
	var out []string
	for start := 0; start < len(words); start += maxTokens {
		end := min(start+maxTokens, len(words))
		out = append(out, strings.Join(words[start:end], " "))
	}
	return out
}

// tail returns the longest suffix of sentences totalling at most budget tokens.
func tail(sentences []string, budget int) []string {
	total := 0
	start := len(sentences)
	for i := len(sentences) - 1; i >= 0; i-- {
		n := countTokens(sentences[i])
		if total+n > budget {
			break
		}
		total += n
		start = i
	}
	return append([]string(nil), sentences[start:]...)
}

func countTokens(text string) int {
	return len(strings.Fields(text))
}

func countAll(sentences []string) int {
	total := 0
	for _, s := range sentences {
		total += countTokens(s)
	}
	return total
}
