package station

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sudokn/gptbatch/pkg/apikeys"
	"github.com/sudokn/gptbatch/pkg/blobstore"
	"github.com/sudokn/gptbatch/pkg/config"
	"github.com/sudokn/gptbatch/pkg/customid"
	"github.com/sudokn/gptbatch/pkg/models"
	"github.com/sudokn/gptbatch/pkg/packer"
	"github.com/sudokn/gptbatch/pkg/provider"
	"github.com/sudokn/gptbatch/pkg/requeststore"
)

// ProviderClient is the subset of *provider.Client a key worker needs,
// narrowed to an interface so tests can substitute a fake provider without
// standing up real HTTP round-trips.
type ProviderClient interface {
	RetrieveBatch(ctx context.Context, externalBatchID string) (*provider.BatchJob, error)
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error)
	UploadFile(ctx context.Context, filename string, content io.Reader) (*provider.UploadedFile, error)
	CreateBatch(ctx context.Context, inputFileID, endpoint, completionWindow string) (*provider.BatchJob, error)
}

// Orchestrator advances one manufacturer's extraction state by one step. A
// completed batch dispatches it for every manufacturer the batch touched.
type Orchestrator interface {
	Advance(ctx context.Context, etld1 string) error
}

// KeyStats is a point-in-time snapshot of one key worker's activity,
// exposed through the operator-facing /stats endpoint.
type KeyStats struct {
	KeyID            string    `json:"key_id"`
	LastTickAt       time.Time `json:"last_tick_at"`
	InFlightBatches  int       `json:"in_flight_batches"`
	BatchesSubmitted int       `json:"batches_submitted_total"`
	BatchesFinalized int       `json:"batches_finalized_total"`
	LastError        string    `json:"last_error,omitempty"`
}

// KeyWorker owns the tick loop for a single API key: poll in-flight batches,
// reconcile finished ones, and pack+submit new work when the key has
// headroom.
type KeyWorker struct {
	keyID  string
	cfg    *config.StationConfig
	client ProviderClient

	apiKeys  *apikeys.Store
	batches  *BatchRepo
	requests *requeststore.Store
	packer   *packer.Packer
	blobs    blobstore.Store
	orch     Orchestrator

	stats KeyStats

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewKeyWorker builds a worker for one key. client must already be
// authenticated against that key's secret.
func NewKeyWorker(keyID string, cfg *config.StationConfig, client ProviderClient,
	apiKeysStore *apikeys.Store, batches *BatchRepo, requests *requeststore.Store, pk *packer.Packer,
	blobs blobstore.Store, orch Orchestrator) *KeyWorker {
	return &KeyWorker{
		keyID:    keyID,
		cfg:      cfg,
		client:   client,
		apiKeys:  apiKeysStore,
		batches:  batches,
		requests: requests,
		packer:   pk,
		blobs:    blobs,
		orch:     orch,
		stats:    KeyStats{KeyID: keyID},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the tick loop in its own goroutine until Stop is called.
func (w *KeyWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop signals the loop to exit and waits for the current tick to finish, up
// to cfg.GracefulShutdownTimeout.
func (w *KeyWorker) Stop() {
	close(w.stopCh)
	select {
	case <-w.doneCh:
	case <-time.After(w.cfg.GracefulShutdownTimeout):
		slog.Warn("key worker did not shut down within graceful timeout", "key_id", w.keyID)
	}
}

// Stats returns a copy of the worker's current stats snapshot.
func (w *KeyWorker) Stats() KeyStats {
	return w.stats
}

func (w *KeyWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	log := slog.With("key_id", w.keyID)
	log.Info("key worker started")

	ticker := time.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()

	w.tick(ctx, log)

	for {
		select {
		case <-w.stopCh:
			log.Info("key worker stopping")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx, log)
		}
	}
}

func (w *KeyWorker) tick(ctx context.Context, log *slog.Logger) {
	w.stats.LastTickAt = time.Now()

	if _, err := w.apiKeys.ResetTokensInUse(ctx, w.keyID); err != nil {
		w.recordError(log, "reset tokens in use", err)
		return
	}

	bundles, err := w.apiKeys.ListAll(ctx)
	if err != nil {
		w.recordError(log, "list api keys", err)
		return
	}
	bundle, ok := findBundle(bundles, w.keyID)
	if !ok {
		w.recordError(log, "locate key bundle", fmt.Errorf("key %s not found", w.keyID))
		return
	}

	inFlight, err := w.batches.ListInFlight(ctx, w.keyID)
	if err != nil {
		w.recordError(log, "list in-flight batches", err)
		return
	}
	w.stats.InFlightBatches = len(inFlight)

	anyFinalizedThisTick := false
	for _, b := range inFlight {
		finalized, err := w.reconcileBatch(ctx, b)
		if err != nil {
			w.recordError(log, fmt.Sprintf("reconcile batch %s", b.ID), err)
			continue
		}
		if finalized {
			anyFinalizedThisTick = true
			w.stats.BatchesFinalized++
		}
	}

	// Per the single-writer-per-key invariant, only start new work when the
	// key is out of cooldown and has no batch still validating/in-progress
	// — a short-circuit against piling up submissions faster than the
	// provider ingests them.
	if !bundle.Available(time.Now()) {
		return
	}
	if hasIncompleteBatch(inFlight) {
		return
	}

	submitted, err := w.packAndSubmit(ctx, bundle)
	if err != nil {
		w.recordError(log, "pack and submit", err)
		if err := w.apiKeys.ApplyCooldown(ctx, w.keyID, time.Now(), w.cfg.FailureCooldown); err != nil {
			log.Error("applying failure cooldown", "error", err)
		}
		return
	}
	if submitted {
		w.stats.BatchesSubmitted++
	}
	if submitted || anyFinalizedThisTick {
		if err := w.apiKeys.ApplyCooldown(ctx, w.keyID, time.Now(), w.cfg.SuccessCooldown); err != nil {
			log.Error("applying success cooldown", "error", err)
		}
	}
}

// reconcileBatch polls a single in-flight batch and, if it has reached a
// terminal state, downloads and applies its results.
func (w *KeyWorker) reconcileBatch(ctx context.Context, b models.GPTBatch) (bool, error) {
	pollCtx, cancel := context.WithTimeout(ctx, w.cfg.PollTimeout)
	defer cancel()

	job, err := w.client.RetrieveBatch(pollCtx, b.ExternalBatchID)
	if err != nil {
		return false, fmt.Errorf("retrieving batch %s: %w", b.ExternalBatchID, err)
	}

	if !job.Status.Finalized() {
		return false, nil
	}

	now := time.Now()
	switch job.Status {
	case models.BatchStatusCompleted:
		touched, err := w.applyResults(ctx, job)
		if err != nil {
			return false, fmt.Errorf("applying results for %s: %w", b.ID, err)
		}
		w.dispatchOrchestrator(ctx, touched)
	case models.BatchStatusFailed, models.BatchStatusExpired, models.BatchStatusCancelled:
		if err := w.requests.UnpairFromBatch(ctx, b.ID); err != nil {
			return false, fmt.Errorf("unpairing requests for failed batch %s: %w", b.ID, err)
		}
	}

	errMsg := ""
	if job.Errors != nil {
		errMsg = job.Errors.Message
	}
	if err := w.batches.UpdateStatus(ctx, b.ID, job.Status, job.OutputFileID, job.ErrorFileID, errMsg, &now); err != nil {
		return false, err
	}

	cooldown := w.cfg.SuccessCooldown
	if job.Status == models.BatchStatusFailed || job.Status == models.BatchStatusCancelled {
		cooldown = w.cfg.FailureCooldown
	}
	if err := w.apiKeys.ApplyCooldown(ctx, w.keyID, now, cooldown); err != nil {
		return true, err
	}
	return true, nil
}

// applyResults downloads a completed batch's output file, writes each line's
// response back onto its request row, and returns the distinct etld1s the
// batch touched.
func (w *KeyWorker) applyResults(ctx context.Context, job *provider.BatchJob) ([]string, error) {
	if job.OutputFileID == "" {
		return nil, nil
	}

	body, err := w.client.DownloadFile(ctx, job.OutputFileID)
	if err != nil {
		return nil, fmt.Errorf("downloading output file %s: %w", job.OutputFileID, err)
	}
	defer body.Close()

	var updates []requeststore.RequestUpdate
	touched := map[string]bool{}
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rl provider.ResultLine
		if err := json.Unmarshal(line, &rl); err != nil {
			return nil, fmt.Errorf("decoding result line: %w", err)
		}

		blob := map[string]any{}
		if rl.Response != nil {
			blob["status_code"] = rl.Response.StatusCode
			blob["body"] = rl.Response.Body
		}
		if rl.Error != nil {
			blob["error"] = map[string]any{"code": rl.Error.Code, "message": rl.Error.Message}
		}
		updates = append(updates, requeststore.RequestUpdate{CustomID: rl.CustomID, ResponseBlob: blob})

		if id, err := customid.Parse(rl.CustomID); err == nil {
			touched[id.ETLD1] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning output file: %w", err)
	}

	if err := w.requests.BulkUpdate(ctx, updates); err != nil {
		return nil, err
	}

	etld1s := make([]string, 0, len(touched))
	for etld1 := range touched {
		etld1s = append(etld1s, etld1)
	}
	return etld1s, nil
}

// dispatchOrchestrator advances every touched manufacturer's extraction
// state, bounded by cfg.OrchestratorConcurrency concurrent advances.
func (w *KeyWorker) dispatchOrchestrator(ctx context.Context, etld1s []string) {
	if len(etld1s) == 0 {
		return
	}

	limit := w.cfg.OrchestratorConcurrency
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for _, etld1 := range etld1s {
		wg.Add(1)
		sem <- struct{}{}
		go func(etld1 string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := w.orch.Advance(ctx, etld1); err != nil {
				slog.Error("advancing manufacturer extraction", "etld1", etld1, "error", err)
			}
		}(etld1)
	}
	wg.Wait()
}

// packAndSubmit packs pending manufacturer requests into a fresh batch input
// file, bounded by the packer's own configured limits, and submits it to the
// provider, pairing the packed requests with the resulting batch. The pack
// is not sized to the key's remaining token headroom: if the packed file's
// token estimate exceeds that headroom, nothing is submitted this tick.
func (w *KeyWorker) packAndSubmit(ctx context.Context, bundle models.APIKeyBundle) (bool, error) {
	candidates, err := w.requests.ListPendingManufacturers(ctx, 10_000)
	if err != nil {
		return false, err
	}
	if len(candidates) == 0 {
		return false, nil
	}

	keyPrefix := fmt.Sprintf("batches/%s/%s", w.keyID, uuid.NewString())
	result, err := w.packer.Pack(ctx, candidates, keyPrefix)
	if err != nil {
		return false, err
	}
	if len(result.Files) == 0 {
		return false, nil
	}

	file := result.Files[0]
	if int64(file.TokenEstimate) > bundle.RemainingTokens() {
		return false, nil
	}

	content, err := w.blobs.Get(ctx, file.Key)
	if err != nil {
		return false, fmt.Errorf("fetching packed file %s: %w", file.Key, err)
	}
	defer content.Close()

	uploaded, err := w.client.UploadFile(ctx, "batch_input.jsonl", content)
	if err != nil {
		return false, err
	}

	job, err := w.client.CreateBatch(ctx, uploaded.ID, "/v1/chat/completions", "24h")
	if err != nil {
		return false, err
	}

	batchID := uuid.New()
	if err := w.batches.Create(ctx, &models.GPTBatch{
		ID:              batchID,
		APIKeyID:        w.keyID,
		ExternalBatchID: job.ID,
		Status:          models.BatchStatusValidating,
		InputFileID:     uploaded.ID,
		TotalTokens:     int64(file.TokenEstimate),
		TotalRequests:   int64(file.RequestCount),
	}); err != nil {
		return false, err
	}

	if err := w.requests.PairWithBatch(ctx, file.CustomIDs, batchID); err != nil {
		// Pairing failures get one immediate retry (pairing is idempotent, so
		// the whole ID set is sent again); if that also fails the error
		// surfaces to the caller, who applies a failure cooldown rather than
		// retrying the whole submission.
		if retryErr := w.requests.PairWithBatch(ctx, file.CustomIDs, batchID); retryErr != nil {
			return false, fmt.Errorf("pairing failed (%v) and retry also failed: %w", err, retryErr)
		}
	}

	return true, nil
}

func (w *KeyWorker) recordError(log *slog.Logger, op string, err error) {
	w.stats.LastError = fmt.Sprintf("%s: %v", op, err)
	log.Error(op, "error", err)
}

func findBundle(bundles []models.APIKeyBundle, keyID string) (models.APIKeyBundle, bool) {
	for _, b := range bundles {
		if b.ID == keyID {
			return b, true
		}
	}
	return models.APIKeyBundle{}, false
}

func hasIncompleteBatch(batches []models.GPTBatch) bool {
	for _, b := range batches {
		if b.Status == models.BatchStatusValidating || b.Status == models.BatchStatusInProgress || b.Status == models.BatchStatusFinalizing {
			return true
		}
	}
	return false
}
