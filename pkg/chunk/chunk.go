// Package chunk splits manufacturer source text into overlapping,
// line-boundary-respecting windows keyed by their exact byte offsets in the
// original text, so a chunk's custom ID can be reconstructed deterministically
// from those offsets alone.
package chunk

import (
	"fmt"
	"strings"

	"github.com/sudokn/gptbatch/pkg/tokencount"
)

// Strategy bounds a single chunking pass: at most MaxTokens per chunk (by
// the package's token estimator), with Overlap as the fraction of the
// previous chunk's tokens carried into the next one.
type Strategy struct {
	Overlap   float64 // must be in [0, 1)
	MaxTokens int
}

// Chunk is one line-aligned window of the source text plus its exact
// [Start,End) byte offsets in that text.
type Chunk struct {
	Start int
	End   int
	Text  string
}

// Bounds renders the "start:end" key used in custom IDs.
func (c Chunk) Bounds() string {
	return fmt.Sprintf("%d:%d", c.Start, c.End)
}

type lineInfo struct {
	text   string
	tokens int
	start  int
	end    int
}

// Split breaks text into chunks per strat. Lines are never split across a
// chunk boundary: a chunk always ends at a line end, and overlap is carried
// forward in whole lines, accumulated backward from the end of the closing
// chunk until at least Overlap*currentChunkTokens tokens have been gathered.
func Split(text string, strat Strategy) []Chunk {
	lines := splitLinesKeepEnds(text)

	lineInfos := make([]lineInfo, 0, len(lines))
	offset := 0
	for _, l := range lines {
		lineInfos = append(lineInfos, lineInfo{
			text:   l,
			tokens: tokencount.Estimate(l),
			start:  offset,
			end:    offset + len(l),
		})
		offset += len(l)
	}

	var chunks []Chunk
	var current []lineInfo
	currentTokens := 0
	currentStart := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		var sb strings.Builder
		for _, li := range current {
			sb.WriteString(li.text)
		}
		lastEnd := current[len(current)-1].end
		chunks = append(chunks, Chunk{Start: currentStart, End: lastEnd, Text: sb.String()})
	}

	for _, li := range lineInfos {
		if currentTokens+li.tokens > strat.MaxTokens && len(current) > 0 {
			targetOverlap := int(float64(currentTokens) * strat.Overlap)

			var overlapLines []lineInfo
			overlapTokens := 0
			if targetOverlap > 0 {
				for i := len(current) - 1; i >= 0; i-- {
					overlapLines = append([]lineInfo{current[i]}, overlapLines...)
					overlapTokens += current[i].tokens
					if overlapTokens >= targetOverlap {
						break
					}
				}
			}

			flush()

			newStart := li.start
			if len(overlapLines) > 0 {
				newStart = overlapLines[0].start
			}

			current = append(append([]lineInfo{}, overlapLines...), li)
			currentTokens = overlapTokens + li.tokens
			currentStart = newStart
		} else {
			if len(current) == 0 {
				currentStart = li.start
			}
			current = append(current, li)
			currentTokens += li.tokens
		}
	}
	flush()

	return chunks
}

// WithBoundaries is Split rendered as a "start:end" → text map, matching the
// original chunker's output shape.
func WithBoundaries(text string, strat Strategy) map[string]string {
	out := make(map[string]string)
	for _, c := range Split(text, strat) {
		out[c.Bounds()] = c.Text
	}
	return out
}

// splitLinesKeepEnds splits text into lines that retain their trailing
// newline, mirroring Python's str.splitlines(keepends=True): the final
// fragment (which may have no trailing newline) is still included.
func splitLinesKeepEnds(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}
