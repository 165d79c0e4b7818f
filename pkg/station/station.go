package station

import (
	"context"
	"log/slog"

	"github.com/sudokn/gptbatch/pkg/apikeys"
	"github.com/sudokn/gptbatch/pkg/blobstore"
	"github.com/sudokn/gptbatch/pkg/config"
	"github.com/sudokn/gptbatch/pkg/models"
	"github.com/sudokn/gptbatch/pkg/packer"
	"github.com/sudokn/gptbatch/pkg/requeststore"
)

// ClientFactory builds an authenticated provider client for a given API key
// bundle — callers resolve the actual secret from bundle.SecretEnv.
type ClientFactory func(bundle models.APIKeyBundle) ProviderClient

// Station runs one KeyWorker per configured API key.
type Station struct {
	cfg     *config.StationConfig
	workers []*KeyWorker
}

// New builds a Station with one worker per bundle in bundles, using
// newClient to construct each worker's provider client and pk to pack each
// worker's batch input files. orch advances a manufacturer's
// extraction state whenever one of its requests resolves in a completed
// batch.
func New(cfg *config.StationConfig, bundles []models.APIKeyBundle, newClient ClientFactory,
	apiKeysStore *apikeys.Store, batches *BatchRepo, requests *requeststore.Store,
	pk *packer.Packer, blobs blobstore.Store, orch Orchestrator) *Station {

	s := &Station{cfg: cfg}
	for _, b := range bundles {
		client := newClient(b)
		s.workers = append(s.workers, NewKeyWorker(b.ID, cfg, client, apiKeysStore, batches, requests, pk, blobs, orch))
	}
	return s
}

// Start launches every worker's tick loop. Each loop runs its first tick
// immediately rather than after TickInterval, so batches left in-flight from
// a prior process generation are picked back up at startup.
func (s *Station) Start(ctx context.Context) {
	slog.Info("starting batch station", "key_count", len(s.workers))
	for _, w := range s.workers {
		w.Start(ctx)
	}
}

// Stop gracefully stops every worker, waiting up to each one's configured
// GracefulShutdownTimeout.
func (s *Station) Stop() {
	slog.Info("stopping batch station")
	for _, w := range s.workers {
		w.Stop()
	}
}

// Stats returns a snapshot of every worker's current stats.
func (s *Station) Stats() []KeyStats {
	out := make([]KeyStats, len(s.workers))
	for i, w := range s.workers {
		out[i] = w.Stats()
	}
	return out
}
