package models

import (
	"time"

	"github.com/google/uuid"
)

// GPTBatchRequest is a single pending/completed request line tracked by the
// request store, addressed by its custom ID.
type GPTBatchRequest struct {
	CustomID     string          `json:"custom_id"`
	MfgETLD1     string          `json:"mfg_etld1"`
	Field        string          `json:"field"`
	RequestBody  map[string]any  `json:"request_body"`
	ResponseBlob map[string]any  `json:"response_blob,omitempty"`
	BatchID      *uuid.UUID      `json:"batch_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Pending reports whether the request has neither a response nor a batch
// pairing yet — the state collect_incomplete_batch_requests_for_deferred_mfg
// treats as "still to be packed".
func (r GPTBatchRequest) Pending() bool {
	return r.ResponseBlob == nil && r.BatchID == nil
}

// BatchStatus mirrors the OpenAI-style batch lifecycle (spec §3/§6), with
// "cancelling" added alongside "cancelled" to match the provider's actual
// status enum.
type BatchStatus string

const (
	BatchStatusValidating  BatchStatus = "validating"
	BatchStatusInProgress  BatchStatus = "in_progress"
	BatchStatusFinalizing  BatchStatus = "finalizing"
	BatchStatusCompleted   BatchStatus = "completed"
	BatchStatusExpired     BatchStatus = "expired"
	BatchStatusFailed      BatchStatus = "failed"
	BatchStatusCancelling  BatchStatus = "cancelling"
	BatchStatusCancelled   BatchStatus = "cancelled"
)

// Finalized reports whether a batch has reached a terminal state and should
// no longer count toward a key's tokens_in_use.
func (s BatchStatus) Finalized() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusExpired, BatchStatusFailed, BatchStatusCancelled:
		return true
	default:
		return false
	}
}

// GPTBatch is one submitted batch job against the provider.
type GPTBatch struct {
	ID              uuid.UUID   `json:"id"`
	APIKeyID        string      `json:"api_key_id"`
	ExternalBatchID string      `json:"external_batch_id,omitempty"`
	Status          BatchStatus `json:"status"`
	InputFileID     string      `json:"input_file_id,omitempty"`
	OutputFileID    string      `json:"output_file_id,omitempty"`
	ErrorFileID     string      `json:"error_file_id,omitempty"`
	TotalTokens     int64       `json:"total_tokens"`
	TotalRequests   int64       `json:"total_requests"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	SubmittedAt     *time.Time  `json:"submitted_at,omitempty"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
}
