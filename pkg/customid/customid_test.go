package customid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndParse_PlainField(t *testing.T) {
	id := Build("example.com", "addresses", "0:120")
	assert.Equal(t, "example.com>addresses>chunk>0:120", id)

	parsed, err := Parse(id)
	require.NoError(t, err)
	assert.Equal(t, ID{ETLD1: "example.com", Field: "addresses", Bounds: "0:120"}, parsed)
}

func TestBuildAndParse_ConceptField(t *testing.T) {
	id := BuildWithKind("example.com", "materials", KindLLMSearch, "0:500")
	assert.Equal(t, "example.com>materials>llm_search>chunk>0:500", id)

	parsed, err := Parse(id)
	require.NoError(t, err)
	assert.Equal(t, ID{ETLD1: "example.com", Field: "materials", Kind: KindLLMSearch, Bounds: "0:500"}, parsed)
}

func TestParse_RejectsUnknownKind(t *testing.T) {
	_, err := Parse("example.com>materials>bogus>chunk>0:500")
	assert.Error(t, err)
}

func TestParse_RejectsMissingChunkSegment(t *testing.T) {
	_, err := Parse("example.com>materials>0:500")
	assert.Error(t, err)
}

func TestPrefixForField(t *testing.T) {
	assert.Equal(t, "example.com>materials>", PrefixForField("example.com", "materials"))
}
