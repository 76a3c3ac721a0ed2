// Package chunk splits document text into retrieval units.
//
// Two strategies are provided:
//   - Fixed-window: overlapping rune windows of a configured size. Works on
//     any text and is the fallback for unstructured content.
//   - Structure-aware: splits on Markdown headings so each chunk stays inside
//     one section, with oversized sections re-split by the fixed window.
//
// Split picks the strategy automatically based on whether the text contains
// headings.
package chunk

import (
	"strings"
)

// Chunk is one retrieval unit produced from a document.
type Chunk struct {
	// Text is the chunk content.
	Text string
	// Offset is the rune offset of the chunk start within the source text.
	Offset int
	// Section is the heading of the enclosing section, empty for
	// fixed-window chunks.
	Section string
}

// Chunker splits text according to its configuration.
type Chunker struct {
	window     int
	overlap    int
	sectionCap int
}

// New creates a Chunker. Window must be positive and overlap must be
// smaller than window; callers are expected to pass validated config.
func New(window, overlap, sectionCap int) *Chunker {
	return &Chunker{
		window:     window,
		overlap:    overlap,
		sectionCap: sectionCap,
	}
}

// Split chunks text, choosing the structure-aware strategy when the text
// contains Markdown headings and the fixed window otherwise.
// Empty or whitespace-only text yields no chunks.
func (c *Chunker) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if hasHeadings(text) {
		return c.splitStructured(text)
	}
	return c.FixedWindow(text)
}

// FixedWindow splits text into overlapping rune windows. Each window starts
// window-overlap runes after the previous one; the final window may be
// shorter. Offsets are rune offsets into the original text.
func (c *Chunker) FixedWindow(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	step := c.window - c.overlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.window
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Text:   string(runes[start:end]),
			Offset: start,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// splitStructured splits on headings, keeping each section as one chunk
// unless it exceeds the section cap, in which case the section body is
// re-split on paragraph boundaries.
func (c *Chunker) splitStructured(text string) []Chunk {
	sections := splitSections(text)

	var chunks []Chunk
	for _, s := range sections {
		if strings.TrimSpace(s.body) == "" {
			continue
		}
		if len([]rune(s.body)) <= c.sectionCap {
			chunks = append(chunks, Chunk{
				Text:    s.body,
				Offset:  s.offset,
				Section: s.heading,
			})
			continue
		}
		chunks = append(chunks, c.splitParagraphs(s)...)
	}
	return chunks
}

// splitParagraphs accumulates blank-line-delimited paragraphs, flushing
// whenever the next paragraph would push past the section cap. The cap is a
// soft target: a single paragraph larger than the cap is emitted whole
// rather than truncated.
func (c *Chunker) splitParagraphs(s section) []Chunk {
	paras := strings.Split(s.body, "\n\n")

	var chunks []Chunk
	var buf strings.Builder
	bufStart := 0 // rune offset within the section body of the buffer start
	offset := 0   // rune offset within the section body of the current paragraph

	flush := func() {
		if strings.TrimSpace(buf.String()) != "" {
			chunks = append(chunks, Chunk{
				Text:    buf.String(),
				Offset:  s.offset + bufStart,
				Section: s.heading,
			})
		}
		buf.Reset()
	}

	for _, p := range paras {
		pLen := len([]rune(p))
		if buf.Len() > 0 && len([]rune(buf.String()))+2+pLen > c.sectionCap {
			flush()
			bufStart = offset
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(p)
		offset += pLen + 2
	}
	flush()
	return chunks
}

type section struct {
	heading string
	body    string
	offset  int // rune offset of the section start
}

// splitSections cuts text at Markdown heading lines. Content before the
// first heading becomes a preamble section with an empty heading. The
// heading line itself is included in the section body so the model sees it.
func splitSections(text string) []section {
	lines := strings.Split(text, "\n")

	var sections []section
	cur := section{}
	var buf strings.Builder
	offset := 0 // rune offset of the current line

	flush := func() {
		cur.body = buf.String()
		sections = append(sections, cur)
		buf.Reset()
	}

	for i, line := range lines {
		if isHeading(line) {
			if buf.Len() > 0 {
				flush()
			}
			cur = section{
				heading: strings.TrimSpace(strings.TrimLeft(line, "# ")),
				offset:  offset,
			}
		}
		buf.WriteString(line)
		if i < len(lines)-1 {
			buf.WriteString("\n")
		}
		offset += len([]rune(line)) + 1
	}
	if buf.Len() > 0 {
		flush()
	}
	return sections
}

func isHeading(line string) bool {
	trimmed := strings.TrimLeft(line, "#")
	hashes := len(line) - len(trimmed)
	return hashes >= 1 && hashes <= 6 && strings.HasPrefix(trimmed, " ")
}

func hasHeadings(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if isHeading(line) {
			return true
		}
	}
	return false
}
