package packer

import (
	"context"
	"fmt"

	"github.com/sudokn/gptbatch/pkg/config"
	"github.com/sudokn/gptbatch/pkg/blobstore"
)

// Packer collects pending requests for a set of manufacturers and packs them
// into size-bounded batch input files, manufacturer-atomic.
type Packer struct {
	cfg       *config.PackerConfig
	store     blobstore.Store
	collector *Collector
}

// New builds a Packer.
func New(cfg *config.PackerConfig, store blobstore.Store, collector *Collector) *Packer {
	return &Packer{cfg: cfg, store: store, collector: collector}
}

// Result summarizes one packing run.
type Result struct {
	Files         []PackedFile
	PackedETLD1s  []string
	SkippedETLD1s []string // manufacturers with no pending requests
}

// Pack gathers pending requests for every manufacturer in etld1s and writes
// them into at most cfg.MaxFilesPerBatch files under keyPrefix, rolling to a
// new file whenever the next manufacturer's requests would overflow the
// current one. Manufacturers are never split across files.
func (p *Packer) Pack(ctx context.Context, etld1s []string, keyPrefix string) (Result, error) {
	writer := NewWriter(p.cfg, p.store, keyPrefix)

	var result Result
	filesOpened := 1

	for _, etld1 := range etld1s {
		group, err := p.collector.CollectPending(ctx, etld1)
		if err != nil {
			return Result{}, fmt.Errorf("packer: collecting %s: %w", etld1, err)
		}
		if len(group.Requests) == 0 {
			result.SkippedETLD1s = append(result.SkippedETLD1s, etld1)
			continue
		}

		fits, err := writer.CanAdd(group)
		if err != nil {
			return Result{}, fmt.Errorf("packer: sizing %s: %w", etld1, err)
		}
		if !fits {
			if filesOpened >= p.cfg.MaxFilesPerBatch {
				break
			}
			if err := writer.RollToNewFile(ctx); err != nil {
				return Result{}, err
			}
			filesOpened++
		}

		if err := writer.WriteManufacturerRequests(ctx, group); err != nil {
			return Result{}, fmt.Errorf("packer: writing %s: %w", etld1, err)
		}
		result.PackedETLD1s = append(result.PackedETLD1s, etld1)
	}

	files, err := writer.Close(ctx)
	if err != nil {
		return Result{}, err
	}
	result.Files = files
	return result, nil
}
