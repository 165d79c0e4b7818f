package tokencount

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	assert.Equal(t, 0, Estimate(""))
	assert.Equal(t, 1, Estimate("abc"))
	assert.Equal(t, 1, Estimate("abcd"))
	assert.Equal(t, 2, Estimate("abcde"))
	assert.Equal(t, 250, Estimate(strings.Repeat("x", 1000)))
}

func TestEstimateBatch(t *testing.T) {
	got := EstimateBatch([]string{"abcd", "abcd", ""})
	assert.Equal(t, 2, got)
}
