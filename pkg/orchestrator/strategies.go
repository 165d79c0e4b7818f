package orchestrator

import "github.com/sudokn/gptbatch/pkg/chunk"

// conceptStrategies gives each concept field its own chunk size/overlap,
// grounded on the per-field tuning in the extraction service this module
// replaces: certificates need no overlap since certification mentions are
// rarely split across a chunk boundary, while industries/processes/materials
// use a 15% overlap to avoid losing matches that straddle one.
var conceptStrategies = map[string]chunk.Strategy{
	"certificates": {Overlap: 0.0, MaxTokens: 7500},
	"industries":   {Overlap: 0.15, MaxTokens: 5000},
	"processes":    {Overlap: 0.15, MaxTokens: 2500},
	"materials":    {Overlap: 0.15, MaxTokens: 5000},
}

// firstChunkStrategy is used for binary-classification and basic-extraction
// fields, which only ever look at the manufacturer's first chunk.
var firstChunkStrategy = chunk.Strategy{Overlap: 0, MaxTokens: 7500}
