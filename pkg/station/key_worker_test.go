package station

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sudokn/gptbatch/pkg/config"
	"github.com/sudokn/gptbatch/pkg/models"
	"github.com/sudokn/gptbatch/pkg/provider"
)

type fakeProviderClient struct {
	retrieveResp *provider.BatchJob
	retrieveErr  error
	downloadBody string
	uploadResp   *provider.UploadedFile
	createResp   *provider.BatchJob
}

func (f *fakeProviderClient) RetrieveBatch(ctx context.Context, externalBatchID string) (*provider.BatchJob, error) {
	return f.retrieveResp, f.retrieveErr
}

func (f *fakeProviderClient) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.downloadBody)), nil
}

func (f *fakeProviderClient) UploadFile(ctx context.Context, filename string, content io.Reader) (*provider.UploadedFile, error) {
	return f.uploadResp, nil
}

func (f *fakeProviderClient) CreateBatch(ctx context.Context, inputFileID, endpoint, completionWindow string) (*provider.BatchJob, error) {
	return f.createResp, nil
}

func TestHasIncompleteBatch(t *testing.T) {
	cases := []struct {
		name     string
		statuses []models.BatchStatus
		want     bool
	}{
		{"empty", nil, false},
		{"only completed", []models.BatchStatus{models.BatchStatusCompleted}, false},
		{"in progress", []models.BatchStatus{models.BatchStatusCompleted, models.BatchStatusInProgress}, true},
		{"validating", []models.BatchStatus{models.BatchStatusValidating}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var batches []models.GPTBatch
			for _, s := range tc.statuses {
				batches = append(batches, models.GPTBatch{Status: s})
			}
			if got := hasIncompleteBatch(batches); got != tc.want {
				t.Errorf("hasIncompleteBatch() = %v, want %v", got, tc.want)
			}
		})
	}
}

type fakeOrchestrator struct {
	calls int32
	seen  sync.Map
}

func (f *fakeOrchestrator) Advance(ctx context.Context, etld1 string) error {
	atomic.AddInt32(&f.calls, 1)
	f.seen.Store(etld1, true)
	return nil
}

func TestDispatchOrchestrator_AdvancesEveryTouchedManufacturer(t *testing.T) {
	orch := &fakeOrchestrator{}
	w := &KeyWorker{cfg: &config.StationConfig{OrchestratorConcurrency: 2}, orch: orch}

	w.dispatchOrchestrator(context.Background(), []string{"a.com", "b.com", "c.com"})

	if got := atomic.LoadInt32(&orch.calls); got != 3 {
		t.Fatalf("expected 3 advance calls, got %d", got)
	}
	for _, etld1 := range []string{"a.com", "b.com", "c.com"} {
		if _, ok := orch.seen.Load(etld1); !ok {
			t.Errorf("expected advance to be called for %s", etld1)
		}
	}
}

func TestDispatchOrchestrator_NoOpOnEmpty(t *testing.T) {
	orch := &fakeOrchestrator{}
	w := &KeyWorker{cfg: &config.StationConfig{OrchestratorConcurrency: 2}, orch: orch}

	w.dispatchOrchestrator(context.Background(), nil)

	if got := atomic.LoadInt32(&orch.calls); got != 0 {
		t.Fatalf("expected no advance calls, got %d", got)
	}
}

func TestFindBundle(t *testing.T) {
	bundles := []models.APIKeyBundle{{ID: "a"}, {ID: "b"}}

	if b, ok := findBundle(bundles, "b"); !ok || b.ID != "b" {
		t.Fatalf("expected to find bundle b, got %+v ok=%v", b, ok)
	}
	if _, ok := findBundle(bundles, "missing"); ok {
		t.Fatal("expected missing bundle lookup to fail")
	}
}
