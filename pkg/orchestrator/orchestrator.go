// Package orchestrator drives each manufacturer's per-field extraction
// pipeline: binary classification and basic extraction resolve from a
// single first-chunk request, while concept fields run a two-phase
// search-then-map pipeline across every chunk of the source text.
package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/sudokn/gptbatch/pkg/batcherr"
	"github.com/sudokn/gptbatch/pkg/chunk"
	"github.com/sudokn/gptbatch/pkg/customid"
	"github.com/sudokn/gptbatch/pkg/deferredstore"
	"github.com/sudokn/gptbatch/pkg/models"
	"github.com/sudokn/gptbatch/pkg/ontology"
	"github.com/sudokn/gptbatch/pkg/requeststore"
)

// Orchestrator advances every configured field's extraction state for one
// manufacturer at a time.
type Orchestrator struct {
	requests *requeststore.Store
	deferred *deferredstore.Store
	catalog  *ontology.Catalog
}

// New builds an Orchestrator.
func New(requests *requeststore.Store, deferred *deferredstore.Store, catalog *ontology.Catalog) *Orchestrator {
	return &Orchestrator{requests: requests, deferred: deferred, catalog: catalog}
}

// Advance drives every field of etld1's extraction pipeline one step: fields
// with no state yet get their first request(s) created, fields awaiting a
// response are left alone, and fields whose response has arrived get
// materialized into the finalized manufacturer document.
func (o *Orchestrator) Advance(ctx context.Context, etld1 string) error {
	mfg, err := o.deferred.GetManufacturer(ctx, etld1)
	if err != nil {
		return err
	}
	if mfg == nil {
		return fmt.Errorf("%w: no manufacturer record for %s", batcherr.ErrValidation, etld1)
	}
	sourceText := mfg.SourceText

	deferredDoc, err := o.deferred.GetDeferred(ctx, etld1)
	if err != nil {
		return err
	}

	for field := range models.BinaryFields {
		if err := o.advanceFirstChunkField(ctx, etld1, sourceText, field, deferredDoc, models.KindBinaryClassification); err != nil {
			return fmt.Errorf("advancing binary field %s for %s: %w", field, etld1, err)
		}
	}
	for field := range models.BasicFields {
		if err := o.advanceFirstChunkField(ctx, etld1, sourceText, field, deferredDoc, models.KindBasicExtraction); err != nil {
			return fmt.Errorf("advancing basic field %s for %s: %w", field, etld1, err)
		}
	}
	for field := range models.ConceptFields {
		if err := o.advanceConceptField(ctx, etld1, sourceText, field, deferredDoc); err != nil {
			return fmt.Errorf("advancing concept field %s for %s: %w", field, etld1, err)
		}
	}
	return nil
}

// advanceFirstChunkField covers both binary-classification and
// basic-extraction fields, which share the same first-chunk-only shape and
// differ only in how their completion is parsed and in the prompt table
// they pull from.
func (o *Orchestrator) advanceFirstChunkField(ctx context.Context, etld1, sourceText, field string, deferredDoc *models.DeferredManufacturer, kind string) error {
	state, exists := deferredDoc.Fields[field]

	if !exists {
		chunks := chunk.Split(sourceText, firstChunkStrategy)
		if len(chunks) == 0 {
			return nil
		}
		first := chunks[0]
		id := customid.Build(etld1, field, first.Bounds())

		prompt, ok := promptFor(kind, field)
		if !ok {
			return fmt.Errorf("%w: no prompt registered for field %s", batcherr.ErrValidation, field)
		}

		if err := o.requests.BulkUpsertBodies(ctx, []models.GPTBatchRequest{{
			CustomID: id, MfgETLD1: etld1, Field: field,
			RequestBody: buildRequestBody(prompt, first.Text),
		}}); err != nil {
			return err
		}

		newState := models.FieldState{Kind: kind}
		switch kind {
		case models.KindBinaryClassification:
			newState.BinaryClassification = &models.BinaryClassificationState{ChunkBounds: first.Bounds(), CustomID: id}
		case models.KindBasicExtraction:
			newState.BasicExtraction = &models.BasicExtractionState{ChunkBounds: first.Bounds(), CustomID: id}
		}
		return o.deferred.SetFieldState(ctx, etld1, field, newState)
	}

	var customID string
	switch kind {
	case models.KindBinaryClassification:
		if state.BinaryClassification == nil || state.BinaryClassification.Completed {
			return nil
		}
		customID = state.BinaryClassification.CustomID
	case models.KindBasicExtraction:
		if state.BasicExtraction == nil || state.BasicExtraction.Completed {
			return nil
		}
		customID = state.BasicExtraction.CustomID
	}

	rows, err := o.requests.FindByCustomIDs(ctx, []string{customID})
	if err != nil {
		return err
	}
	if len(rows) == 0 || rows[0].ResponseBlob == nil {
		return nil // still waiting on the provider
	}

	content, err := extractCompletionText(rows[0].ResponseBlob)
	if err != nil {
		return err
	}

	switch kind {
	case models.KindBinaryClassification:
		result, err := extractBool(content)
		if err != nil {
			return err
		}
		if err := o.deferred.UpsertManufacturerField(ctx, etld1, field, result); err != nil {
			return err
		}
		state.BinaryClassification.Completed = true
		state.BinaryClassification.Result = &result
	case models.KindBasicExtraction:
		result, err := extractStringList(content)
		if err != nil {
			return err
		}
		if err := o.deferred.UpsertManufacturerField(ctx, etld1, field, result); err != nil {
			return err
		}
		state.BasicExtraction.Completed = true
		state.BasicExtraction.Result = result
	}
	return o.deferred.SetFieldState(ctx, etld1, field, state)
}

func promptFor(kind, field string) (string, bool) {
	switch kind {
	case models.KindBinaryClassification:
		p, ok := binaryPrompts[field]
		return p, ok
	case models.KindBasicExtraction:
		p, ok := basicPrompts[field]
		return p, ok
	default:
		return "", false
	}
}

// advanceConceptField drives the two-phase search-then-map pipeline:
// phase 1 runs an llm_search request per chunk and brute-matches each
// chunk's raw text against the ontology independently of the model; phase 2
// issues a single mapping request per field covering every candidate the
// model surfaced in phase 1 that brute-matching didn't already resolve.
func (o *Orchestrator) advanceConceptField(ctx context.Context, etld1, sourceText, field string, deferredDoc *models.DeferredManufacturer) error {
	state, exists := deferredDoc.Fields[field]
	strat := conceptStrategies[field]

	if !exists {
		chunks := chunk.Split(sourceText, strat)
		if len(chunks) == 0 {
			return nil
		}

		var (
			bounds     []string
			customIDs  []string
			requests   []models.GPTBatchRequest
			bruteUnion = map[string]bool{}
		)
		for _, c := range chunks {
			id := customid.BuildWithKind(etld1, field, customid.KindLLMSearch, c.Bounds())
			bounds = append(bounds, c.Bounds())
			customIDs = append(customIDs, id)
			requests = append(requests, models.GPTBatchRequest{
				CustomID: id, MfgETLD1: etld1, Field: field,
				RequestBody: buildRequestBody(searchPrompts[field], c.Text),
			})
			for _, m := range o.catalog.BruteMatch(field, c.Text) {
				bruteUnion[m] = true
			}
		}
		if err := o.requests.BulkUpsertBodies(ctx, requests); err != nil {
			return err
		}

		return o.deferred.SetFieldState(ctx, etld1, field, models.FieldState{
			Kind:            models.KindConceptExtraction,
			OntologyVersion: o.catalog.Version(),
			ConceptExtraction: &models.ConceptExtractionState{
				ChunkBounds:     bounds,
				SearchCustomIDs: customIDs,
				BruteMatched:    sortedKeys(bruteUnion),
			},
		})
	}

	ce := state.ConceptExtraction
	if ce == nil {
		return fmt.Errorf("%w: field %s has kind %s but no concept_extraction state", batcherr.ErrValidation, field, state.Kind)
	}
	if state.OntologyVersion != o.catalog.Version() {
		return fmt.Errorf("%w: ontology version changed mid-flight for %s/%s", batcherr.ErrValidation, etld1, field)
	}

	if !ce.SearchCompleted {
		return o.advanceConceptSearch(ctx, etld1, field, state, ce)
	}
	if !ce.MappingCompleted {
		return o.advanceConceptMapping(ctx, etld1, field, state, ce)
	}
	return nil
}

func (o *Orchestrator) advanceConceptSearch(ctx context.Context, etld1, field string, state models.FieldState, ce *models.ConceptExtractionState) error {
	rows, err := o.requests.FindByCustomIDs(ctx, ce.SearchCustomIDs)
	if err != nil {
		return err
	}
	byID := make(map[string]models.GPTBatchRequest, len(rows))
	for _, r := range rows {
		byID[r.CustomID] = r
	}

	candidateUnion := map[string]bool{}
	for _, id := range ce.SearchCustomIDs {
		row, ok := byID[id]
		if !ok || row.ResponseBlob == nil {
			return nil // at least one chunk still pending
		}
		content, err := extractCompletionText(row.ResponseBlob)
		if err != nil {
			return err
		}
		candidates, err := extractStringList(content)
		if err != nil {
			return err
		}
		for _, c := range candidates {
			candidateUnion[c] = true
		}
	}

	brute := toSet(ce.BruteMatched)
	var unmatched []string
	for c := range candidateUnion {
		if !brute[c] {
			unmatched = append(unmatched, c)
		}
	}
	sort.Strings(unmatched)

	ce.SearchCompleted = true
	ce.UnmatchedCandidates = unmatched
	return o.deferred.SetFieldState(ctx, etld1, field, state)
}

func (o *Orchestrator) advanceConceptMapping(ctx context.Context, etld1, field string, state models.FieldState, ce *models.ConceptExtractionState) error {
	if len(ce.UnmatchedCandidates) == 0 {
		return o.finalizeConcept(ctx, etld1, field, state, ce, nil)
	}

	if ce.MappingCustomID == "" {
		bounds := fmt.Sprintf("0:%d", len(ce.UnmatchedCandidates))
		id := customid.BuildWithKind(etld1, field, customid.KindMapping, bounds)
		prompt := buildMappingPrompt(field, o.catalog.Labels(field))

		if err := o.requests.BulkUpsertBodies(ctx, []models.GPTBatchRequest{{
			CustomID: id, MfgETLD1: etld1, Field: field,
			RequestBody: buildRequestBody(prompt, fmt.Sprintf("%v", ce.UnmatchedCandidates)),
		}}); err != nil {
			return err
		}
		ce.MappingCustomID = id
		return o.deferred.SetFieldState(ctx, etld1, field, state)
	}

	rows, err := o.requests.FindByCustomIDs(ctx, []string{ce.MappingCustomID})
	if err != nil {
		return err
	}
	if len(rows) == 0 || rows[0].ResponseBlob == nil {
		return nil
	}

	content, err := extractCompletionText(rows[0].ResponseBlob)
	if err != nil {
		return err
	}
	mapped, err := extractStringList(content)
	if err != nil {
		return err
	}
	return o.finalizeConcept(ctx, etld1, field, state, ce, mapped)
}

func (o *Orchestrator) finalizeConcept(ctx context.Context, etld1, field string, state models.FieldState, ce *models.ConceptExtractionState, mapped []string) error {
	result := toSet(ce.BruteMatched)
	for _, m := range mapped {
		result[m] = true
	}

	final := sortedKeys(result)
	if err := o.deferred.UpsertManufacturerField(ctx, etld1, field, final); err != nil {
		return err
	}

	ce.MappingCompleted = true
	ce.Result = final
	return o.deferred.SetFieldState(ctx, etld1, field, state)
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, i := range items {
		s[i] = true
	}
	return s
}

func sortedKeys(s map[string]bool) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
