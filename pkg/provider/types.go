// Package provider talks to the OpenAI-compatible batch inference API: file
// upload, batch create/retrieve, and result file download.
package provider

import "github.com/sudokn/gptbatch/pkg/models"

// BatchRequestLine is a single JSONL line in a batch input file.
type BatchRequestLine struct {
	CustomID string         `json:"custom_id"`
	Method   string         `json:"method"`
	URL      string         `json:"url"`
	Body     map[string]any `json:"body"`
}

// BatchJob mirrors the provider's batch resource returned by create/retrieve.
type BatchJob struct {
	ID              string             `json:"id"`
	Status          models.BatchStatus `json:"status"`
	InputFileID     string             `json:"input_file_id"`
	OutputFileID    string             `json:"output_file_id,omitempty"`
	ErrorFileID     string             `json:"error_file_id,omitempty"`
	CreatedAt       int64              `json:"created_at"`
	CompletedAt     int64              `json:"completed_at,omitempty"`
	RequestCounts   RequestCounts      `json:"request_counts"`
	Errors          *BatchErrors       `json:"errors,omitempty"`
}

// RequestCounts tracks how many of a batch's requests have completed,
// failed, or are still pending.
type RequestCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// BatchErrors carries the provider's top-level batch failure reason, when
// the batch itself (not an individual request) failed.
type BatchErrors struct {
	Message string `json:"message"`
}

// ResultLine is a single JSONL line in a batch output or error file.
type ResultLine struct {
	CustomID string          `json:"custom_id"`
	Response *ResultResponse `json:"response,omitempty"`
	Error    *ResultError    `json:"error,omitempty"`
}

// ResultResponse carries a successful completion's HTTP-shaped body.
type ResultResponse struct {
	StatusCode int            `json:"status_code"`
	Body       map[string]any `json:"body"`
}

// ResultError carries a per-request failure within an otherwise successful
// batch.
type ResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UploadedFile mirrors the provider's file resource returned by upload.
type UploadedFile struct {
	ID       string `json:"id"`
	Bytes    int64  `json:"bytes"`
	Filename string `json:"filename"`
	Purpose  string `json:"purpose"`
}
