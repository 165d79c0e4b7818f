package ontology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
version: "2026-08-01"
types:
  materials:
    concepts:
      - label: Stainless Steel
        synonyms: ["SS304", "SS316"]
      - label: Aluminum
        synonyms: ["aluminium"]
`

func writeCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ontology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o600))
	return path
}

func TestLoad_ParsesVersionAndLabels(t *testing.T) {
	cat, err := Load(writeCatalog(t))
	require.NoError(t, err)

	assert.Equal(t, "2026-08-01", cat.Version())
	assert.ElementsMatch(t, []string{"Stainless Steel", "Aluminum"}, cat.Labels("materials"))
}

func TestBruteMatch_MatchesSynonymCaseInsensitively(t *testing.T) {
	cat, err := Load(writeCatalog(t))
	require.NoError(t, err)

	matched := cat.BruteMatch("materials", "This part is machined from ss304 billet.")
	assert.Equal(t, []string{"Stainless Steel"}, matched)
}

func TestBruteMatch_RequiresWholeWord(t *testing.T) {
	cat, err := Load(writeCatalog(t))
	require.NoError(t, err)

	matched := cat.BruteMatch("materials", "superaluminumalloy")
	assert.Empty(t, matched)
}
