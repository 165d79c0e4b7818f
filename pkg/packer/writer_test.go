package packer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudokn/gptbatch/pkg/blobstore"
	"github.com/sudokn/gptbatch/pkg/config"
	"github.com/sudokn/gptbatch/pkg/models"
)

func reqs(n int, etld1 string) []models.GPTBatchRequest {
	out := make([]models.GPTBatchRequest, n)
	for i := range out {
		out[i] = models.GPTBatchRequest{
			CustomID:    etld1,
			RequestBody: map[string]any{"i": i},
		}
	}
	return out
}

func TestWriter_CanAddRejectsGroupOverRequestCount(t *testing.T) {
	cfg := &config.PackerConfig{MaxRequestsPerFile: 2, MaxTokensPerFile: 1_000_000, MaxFileSizeBytes: 1_000_000, MaxFilesPerBatch: 10}
	store := blobstore.NewMemoryStore()
	w := NewWriter(cfg, store, "batches/1")

	group := ManufacturerRequests{ETLD1: "a.com", Requests: reqs(3, "a.com")}
	fits, err := w.CanAdd(group)
	require.NoError(t, err)
	assert.False(t, fits, "3 requests should not fit a 2-request file")
}

func TestWriter_CloseUploadsFileAndMetadata(t *testing.T) {
	cfg := config.DefaultPackerConfig()
	store := blobstore.NewMemoryStore()
	w := NewWriter(cfg, store, "batches/1")
	ctx := context.Background()

	group := ManufacturerRequests{ETLD1: "a.com", Requests: reqs(2, "a.com")}
	fits, err := w.CanAdd(group)
	require.NoError(t, err)
	require.True(t, fits)
	require.NoError(t, w.WriteManufacturerRequests(ctx, group))

	files, err := w.Close(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, 2, files[0].RequestCount)

	body, err := store.Get(ctx, files[0].Key)
	require.NoError(t, err)
	defer body.Close()

	meta, err := store.Get(ctx, "batches/1/batch_metadata.json")
	require.NoError(t, err)
	defer meta.Close()
}

func TestWriter_CloseWithNothingWrittenProducesNoFiles(t *testing.T) {
	cfg := config.DefaultPackerConfig()
	store := blobstore.NewMemoryStore()
	w := NewWriter(cfg, store, "batches/empty")

	files, err := w.Close(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}
