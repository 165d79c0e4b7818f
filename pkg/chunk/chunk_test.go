package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_SingleChunkWhenSmall(t *testing.T) {
	text := "line one\nline two\nline three\n"
	chunks := Split(text, Strategy{Overlap: 0.25, MaxTokens: 1000})
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len(text), chunks[0].End)
}

func TestSplit_BoundariesCoverWholeText(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("a line of moderate length used to force chunk boundaries\n")
	}
	text := sb.String()

	chunks := Split(text, Strategy{Overlap: 0.25, MaxTokens: 50})
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.Equal(t, text[c.Start:c.End], c.Text)
	}
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len(text), chunks[len(chunks)-1].End)
}

func TestSplit_OverlapCarriesLinesForward(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		sb.WriteString("a line of moderate length used to force chunk boundaries\n")
	}
	text := sb.String()

	chunks := Split(text, Strategy{Overlap: 0.25, MaxTokens: 50})
	require.Greater(t, len(chunks), 1)

	// Each chunk after the first should start at or before the previous
	// chunk's end (overlap), never strictly after it.
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].Start, chunks[i-1].End)
	}
}

func TestSplit_NoOverlapNeverRepeatsLines(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("a line of moderate length used to force chunk boundaries\n")
	}
	text := sb.String()

	chunks := Split(text, Strategy{Overlap: 0, MaxTokens: 50})
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].End, chunks[i].Start)
	}
}

func TestWithBoundaries_KeysMatchChunkBounds(t *testing.T) {
	text := "line one\nline two\n"
	byBounds := WithBoundaries(text, Strategy{Overlap: 0, MaxTokens: 1000})
	require.Len(t, byBounds, 1)
	for k, v := range byBounds {
		assert.Equal(t, "0:18", k)
		assert.Equal(t, text, v)
	}
}
