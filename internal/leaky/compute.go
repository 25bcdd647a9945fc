package leaky

import (
	"context"
	"fmt"

	"github.com/DougOr/fiftyone-brain/internal/dataset"
	"github.com/DougOr/fiftyone-brain/internal/similarity"
	"github.com/DougOr/fiftyone-brain/internal/types"
)

// Config selects and configures a leaky-splits detection strategy.
type Config struct {
	// Method selects hash- or similarity-based detection.
	Method types.DetectionMethod `yaml:"method"`

	// Hash configures hash-based detection. Used when Method is "hash".
	Hash HashConfig `yaml:"hash,omitempty"`

	// Similarity configures similarity-based detection. Used when Method is
	// "similarity".
	Similarity SimilarityConfig `yaml:"similarity,omitempty"`
}

// DefaultConfig returns the default analysis configuration: filepath hashing.
func DefaultConfig() Config {
	return Config{
		Method:     types.DetectionHash,
		Hash:       DefaultHashConfig(),
		Similarity: DefaultSimilarityConfig(),
	}
}

// Validate checks the selected strategy's configuration.
func (c Config) Validate() error {
	if err := c.Method.Validate(); err != nil {
		return err
	}
	switch c.Method {
	case types.DetectionHash:
		return c.Hash.Validate()
	default:
		return c.Similarity.Validate()
	}
}

// ComputeLeakySplits builds a leak index over the collection using the
// configured strategy. The backend is required for similarity detection and
// ignored for hash detection.
//
// Hash detection fingerprints eagerly, so the returned index is fully built;
// similarity detection defers embedding work to the first Leaks access.
func ComputeLeakySplits(ctx context.Context, samples dataset.View, cfg Config, backend similarity.Backend) (Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Method {
	case types.DetectionHash:
		return NewHashIndex(ctx, samples, cfg.Hash)
	default:
		if backend == nil {
			return nil, fmt.Errorf("%w: similarity detection requires a backend", types.ErrConfiguration)
		}
		return NewSimilarityIndex(samples, backend, cfg.Similarity)
	}
}
