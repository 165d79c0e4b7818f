// Package packer assembles pending request bodies into provider-ready JSONL
// batch input files, never splitting a single manufacturer's requests
// across two files, and bounding each file by request count, estimated
// token count and exact serialized byte size.
package packer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sudokn/gptbatch/pkg/blobstore"
	"github.com/sudokn/gptbatch/pkg/config"
	"github.com/sudokn/gptbatch/pkg/models"
	"github.com/sudokn/gptbatch/pkg/tokencount"
)

// ManufacturerRequests is one manufacturer's full set of pending request
// lines, packed atomically — either all of them land in the same file, or
// none do (triggering a new file first).
type ManufacturerRequests struct {
	ETLD1    string
	Requests []models.GPTBatchRequest
}

// PackedFile is one finished, uploaded batch input file.
type PackedFile struct {
	Key           string
	RequestCount  int
	TokenEstimate int
	SizeBytes     int64
	CustomIDs     []string
}

// Writer accumulates manufacturer request groups into size-bounded JSONL
// files, uploading each finished file to the blob store as it closes.
type Writer struct {
	cfg   *config.PackerConfig
	store blobstore.Store
	keyPrefix string

	files []PackedFile

	current        bytes.Buffer
	currentCount   int
	currentTokens  int
	currentCustomIDs []string
}

// NewWriter returns a Writer that stores finished files under keyPrefix in
// store, obeying cfg's size limits.
func NewWriter(cfg *config.PackerConfig, store blobstore.Store, keyPrefix string) *Writer {
	return &Writer{cfg: cfg, store: store, keyPrefix: keyPrefix}
}

// CanAdd reports whether group fits in the currently open file without
// exceeding any of the configured limits.
func (w *Writer) CanAdd(group ManufacturerRequests) (bool, error) {
	lines, err := serialize(group.Requests)
	if err != nil {
		return false, err
	}

	addedTokens := 0
	addedBytes := 0
	for _, l := range lines {
		addedTokens += tokencount.Estimate(l)
		addedBytes += len(l) + 1 // + newline
	}

	if w.currentCount+len(group.Requests) > w.cfg.MaxRequestsPerFile {
		return false, nil
	}
	if w.currentTokens+addedTokens > w.cfg.MaxTokensPerFile {
		return false, nil
	}
	if int64(w.current.Len()+addedBytes) > w.cfg.MaxFileSizeBytes {
		return false, nil
	}
	return true, nil
}

// WriteManufacturerRequests appends group to the currently open file. The
// caller must have already checked CanAdd and rolled to a new file if it
// returned false — WriteManufacturerRequests never splits group across
// files itself.
func (w *Writer) WriteManufacturerRequests(ctx context.Context, group ManufacturerRequests) error {
	lines, err := serialize(group.Requests)
	if err != nil {
		return err
	}

	for i, l := range lines {
		w.current.WriteString(l)
		w.current.WriteByte('\n')
		w.currentTokens += tokencount.Estimate(l)
		w.currentCustomIDs = append(w.currentCustomIDs, group.Requests[i].CustomID)
	}
	w.currentCount += len(group.Requests)

	return nil
}

// RollToNewFile closes and uploads the currently open file (if non-empty)
// and resets accumulator state so the next WriteManufacturerRequests starts
// a fresh file.
func (w *Writer) RollToNewFile(ctx context.Context) error {
	if w.currentCount == 0 {
		return nil
	}

	key := fmt.Sprintf("%s/%s.jsonl", w.keyPrefix, uuid.NewString())
	size := int64(w.current.Len())
	if err := w.store.Put(ctx, key, bytes.NewReader(w.current.Bytes()), size, "application/jsonl"); err != nil {
		return fmt.Errorf("packer: uploading %s: %w", key, err)
	}

	w.files = append(w.files, PackedFile{
		Key:           key,
		RequestCount:  w.currentCount,
		TokenEstimate: w.currentTokens,
		SizeBytes:     size,
		CustomIDs:     w.currentCustomIDs,
	})

	w.current.Reset()
	w.currentCount = 0
	w.currentTokens = 0
	w.currentCustomIDs = nil
	return nil
}

// Close rolls any open file, uploads a batch_metadata.json summary under
// keyPrefix and returns the completed file list, mirroring the source
// system's BatchFileWriter.close().
func (w *Writer) Close(ctx context.Context) ([]PackedFile, error) {
	if err := w.RollToNewFile(ctx); err != nil {
		return nil, err
	}

	metadata := map[string]any{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"files":        w.files,
	}
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("packer: marshaling metadata: %w", err)
	}
	metaKey := fmt.Sprintf("%s/batch_metadata.json", w.keyPrefix)
	if err := w.store.Put(ctx, metaKey, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return nil, fmt.Errorf("packer: uploading metadata: %w", err)
	}

	return w.files, nil
}

// serialize renders each request as a compact-JSON line, matching the
// provider's expected JSONL body shape and the exact-byte-size accounting
// this module's file-size limit is enforced against (no estimator).
func serialize(requests []models.GPTBatchRequest) ([]string, error) {
	lines := make([]string, len(requests))
	for i, r := range requests {
		line := map[string]any{
			"custom_id": r.CustomID,
			"method":    "POST",
			"url":       "/v1/chat/completions",
			"body":      r.RequestBody,
		}
		data, err := json.Marshal(line)
		if err != nil {
			return nil, fmt.Errorf("packer: serializing %s: %w", r.CustomID, err)
		}
		lines[i] = string(data)
	}
	return lines, nil
}
