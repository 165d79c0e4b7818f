package packer

import (
	"context"
	"fmt"

	"github.com/sudokn/gptbatch/pkg/batcherr"
	"github.com/sudokn/gptbatch/pkg/deferredstore"
	"github.com/sudokn/gptbatch/pkg/models"
	"github.com/sudokn/gptbatch/pkg/requeststore"
)

// Collector gathers the not-yet-submitted request rows for a manufacturer's
// in-flight extraction fields, the Go equivalent of
// collect_incomplete_batch_requests_for_deferred_mfg: it walks every field
// state that has been initiated but not completed, resolves the custom IDs
// it references, and fetches the corresponding request rows.
type Collector struct {
	requests *requeststore.Store
	deferred *deferredstore.Store
}

// NewCollector builds a Collector over the given stores.
func NewCollector(requests *requeststore.Store, deferred *deferredstore.Store) *Collector {
	return &Collector{requests: requests, deferred: deferred}
}

// CollectPending returns every pending (unsubmitted, unanswered) request row
// referenced by etld1's in-flight field states. A field state that
// references a custom ID with no matching request row is a data
// inconsistency and surfaces as an error wrapping batcherr.ErrRequestNotFound
// rather than being silently skipped.
func (c *Collector) CollectPending(ctx context.Context, etld1 string) (ManufacturerRequests, error) {
	deferredDoc, err := c.deferred.GetDeferred(ctx, etld1)
	if err != nil {
		return ManufacturerRequests{}, err
	}

	var wanted []string
	for field, state := range deferredDoc.Fields {
		ids, err := pendingCustomIDs(field, state)
		if err != nil {
			return ManufacturerRequests{}, err
		}
		wanted = append(wanted, ids...)
	}

	if len(wanted) == 0 {
		return ManufacturerRequests{ETLD1: etld1}, nil
	}

	found, err := c.requests.FindByCustomIDs(ctx, wanted)
	if err != nil {
		return ManufacturerRequests{}, err
	}

	foundByID := make(map[string]models.GPTBatchRequest, len(found))
	for _, r := range found {
		foundByID[r.CustomID] = r
	}
	for _, id := range wanted {
		if _, ok := foundByID[id]; !ok {
			return ManufacturerRequests{}, fmt.Errorf("%w: manufacturer %s references missing request %s",
				batcherr.ErrRequestNotFound, etld1, id)
		}
	}

	var pending []models.GPTBatchRequest
	for _, id := range wanted {
		r := foundByID[id]
		if r.Pending() {
			pending = append(pending, r)
		}
	}

	return ManufacturerRequests{ETLD1: etld1, Requests: pending}, nil
}

// pendingCustomIDs returns the custom IDs a field's in-flight state
// references, across whichever sub-document variant is populated. A field
// whose Kind is set but all sub-documents are nil (never actually initiated)
// contributes no IDs.
func pendingCustomIDs(field string, state models.FieldState) ([]string, error) {
	switch {
	case state.BinaryClassification != nil && !state.BinaryClassification.Completed:
		return []string{state.BinaryClassification.CustomID}, nil
	case state.BasicExtraction != nil && !state.BasicExtraction.Completed:
		return []string{state.BasicExtraction.CustomID}, nil
	case state.KeywordExtraction != nil && !state.KeywordExtraction.Completed:
		return append([]string(nil), state.KeywordExtraction.CustomIDs...), nil
	case state.ConceptExtraction != nil:
		ce := state.ConceptExtraction
		var ids []string
		if !ce.SearchCompleted {
			ids = append(ids, ce.SearchCustomIDs...)
		}
		if ce.SearchCompleted && !ce.MappingCompleted && ce.MappingCustomID != "" {
			ids = append(ids, ce.MappingCustomID)
		}
		return ids, nil
	default:
		return nil, nil
	}
}
