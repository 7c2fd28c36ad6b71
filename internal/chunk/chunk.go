// Package chunk splits normalized source text into overlapping,
// paragraph-aware chunks bounded by a target size.
//
// Paragraph-aware splitting is deliberate: naive fixed-offset slicing
// fragments sentences and degrades retrieval precision. Fixed-offset
// slicing is used only as a last resort for a single paragraph that is
// itself larger than the target size.
package chunk

import (
	"regexp"
	"strings"
)

// Default chunking parameters.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

var paragraphSep = regexp.MustCompile(`\n\s*\n`)

// Chunker splits text into chunks of at most Size characters with Overlap
// characters carried between adjacent chunks. The zero value is not usable;
// construct with New.
type Chunker struct {
	size    int
	overlap int
}

// New returns a Chunker with the given target size and overlap. Non-positive
// size falls back to DefaultSize; a negative overlap or one that is not
// smaller than the size falls back to DefaultOverlap.
func New(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return Chunker{size: size, overlap: overlap}
}

// Size returns the target chunk size.
func (c Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c Chunker) Overlap() int { return c.overlap }

// Split breaks text into an ordered sequence of chunks. Splitting the same
// text twice yields identical sequences. Empty or whitespace-only input
// yields nil.
func (c Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	var buf string

	flush := func() {
		if buf != "" {
			chunks = append(chunks, buf)
		}
	}

	for _, para := range c.paragraphs(text) {
		// A paragraph larger than the target size cannot be kept whole:
		// flush whatever accumulated, then hard-split it at fixed offsets
		// with trailing overlap.
		if len(para) > c.size {
			flush()
			buf = ""
			chunks = append(chunks, c.hardSplit(para)...)
			continue
		}

		switch {
		case buf == "":
			buf = para
		case len(buf)+2+len(para) <= c.size:
			buf += "\n\n" + para
		default:
			flush()
			// Seed the next buffer with the trailing overlap of the one
			// just flushed, unless that would push the next chunk over
			// the target size.
			seed := tail(buf, c.overlap)
			if seed != "" && len(seed)+2+len(para) <= c.size {
				buf = seed + "\n\n" + para
			} else {
				buf = para
			}
		}
	}
	flush()

	return chunks
}

// paragraphs splits on blank-line boundaries, dropping empty segments.
func (c Chunker) paragraphs(text string) []string {
	parts := paragraphSep.Split(text, -1)
	paras := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// hardSplit slices an oversize paragraph at fixed offsets, carrying the
// trailing overlap into each following slice.
func (c Chunker) hardSplit(para string) []string {
	var out []string
	for start := 0; start < len(para); {
		end := start + c.size
		if end >= len(para) {
			out = append(out, para[start:])
			break
		}
		out = append(out, para[start:end])
		start = end - c.overlap
	}
	return out
}

// tail returns the last n characters of s, or all of s when shorter.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
