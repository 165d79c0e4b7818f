// Package blobstore stores and retrieves the JSONL input/output files the
// packer writes and the batch station downloads, addressed by bucket/key.
package blobstore

import (
	"context"
	"io"
)

// Store is the blob store contract used by the packer (writes) and batch
// station (reads). Implementations must support range-free full-object GET
// and PUT; the batch provider's own file APIs handle upload/download of the
// provider-side copies, this store is for the input files the packer
// produces before upload and the output/error files the station downloads
// before reconciling.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
