package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sudokn/gptbatch/pkg/models"
)

func TestPromptFor(t *testing.T) {
	p, ok := promptFor(models.KindBinaryClassification, "is_manufacturer")
	assert.True(t, ok)
	assert.NotEmpty(t, p)

	_, ok = promptFor(models.KindBinaryClassification, "no_such_field")
	assert.False(t, ok)
}

func TestSortedKeysAndToSet(t *testing.T) {
	set := toSet([]string{"b", "a", "b"})
	assert.Len(t, set, 2)
	assert.Equal(t, []string{"a", "b"}, sortedKeys(set))
}

func TestConceptStrategiesCoverAllConceptFields(t *testing.T) {
	for field := range models.ConceptFields {
		_, ok := conceptStrategies[field]
		assert.True(t, ok, "missing chunk strategy for concept field %s", field)
	}
}
