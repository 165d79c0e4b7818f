package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionBlob(content string) map[string]any {
	return map[string]any{
		"body": map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{"content": content},
				},
			},
		},
	}
}

func TestExtractCompletionText(t *testing.T) {
	text, err := extractCompletionText(completionBlob("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = extractCompletionText(nil)
	assert.Error(t, err)

	_, err = extractCompletionText(map[string]any{"error": map[string]any{"message": "boom"}})
	assert.Error(t, err)
}

func TestExtractStringList(t *testing.T) {
	list, err := extractStringList(`["a", "b"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, list)

	list, err = extractStringList("```json\n[\"a\"]\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, list)

	_, err = extractStringList("not json")
	assert.Error(t, err)
}

func TestExtractBool(t *testing.T) {
	b, err := extractBool("true")
	require.NoError(t, err)
	assert.True(t, b)

	b, err = extractBool(`"false"`)
	require.NoError(t, err)
	assert.False(t, b)

	_, err = extractBool("maybe")
	assert.Error(t, err)
}
