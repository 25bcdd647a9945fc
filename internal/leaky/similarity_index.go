package leaky

import (
	"context"
	"fmt"
	"log"

	"github.com/DougOr/fiftyone-brain/internal/dataset"
	"github.com/DougOr/fiftyone-brain/internal/similarity"
	"github.com/DougOr/fiftyone-brain/internal/types"
)

// SimilarityConfig configures similarity-based leak detection.
type SimilarityConfig struct {
	// Splits specifies the split partition. Exactly one specifier.
	Splits SplitSpec `yaml:"splits"`

	// Threshold is the duplicate distance threshold. The default is
	// maximally strict, grouping near-identical embeddings only.
	Threshold float64 `yaml:"threshold,omitempty"`
}

// DefaultSimilarityConfig returns the default similarity detection
// configuration.
func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{Threshold: similarity.DefaultThreshold}
}

// Validate checks the configuration.
func (c SimilarityConfig) Validate() error {
	if c.Threshold < 0 {
		return fmt.Errorf("%w: threshold cannot be negative (got %g)", types.ErrConfiguration, c.Threshold)
	}
	return nil
}

// SimilarityIndex detects near-duplicates by embedding-space distance,
// delegating embedding extraction and clustering to an external backend.
//
// The compute-index-cluster pipeline runs lazily on the first Leaks (or
// LeaksBySample) access and is cached; repeated access is idempotent and
// cheap. Backend errors propagate unmodified; there is no retry logic.
type SimilarityIndex struct {
	samples   dataset.View
	splits    []Split
	splitBy   map[string][]string
	backend   similarity.Backend
	threshold float64

	cachedLeaksView dataset.View
	cachedClusters  [][]string
}

var _ Index = (*SimilarityIndex)(nil)

// NewSimilarityIndex resolves the splits eagerly and wraps the backend. No
// embedding work happens until the first Leaks access.
func NewSimilarityIndex(samples dataset.View, backend similarity.Backend, cfg SimilarityConfig) (*SimilarityIndex, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend cannot be nil", types.ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	splits, err := cfg.Splits.Resolve(samples)
	if err != nil {
		return nil, err
	}
	return &SimilarityIndex{
		samples:   samples,
		splits:    splits,
		splitBy:   membershipByID(splits),
		backend:   backend,
		threshold: cfg.Threshold,
	}, nil
}

// SetThreshold changes the duplicate distance threshold. It affects only
// computations triggered after the cache is cleared; call Invalidate to
// force the next Leaks access to recompute.
func (idx *SimilarityIndex) SetThreshold(threshold float64) {
	idx.threshold = threshold
}

// Invalidate clears the cached leaks view and clusters. The next Leaks
// access re-runs the full compute-index-cluster pipeline.
func (idx *SimilarityIndex) Invalidate() {
	idx.cachedLeaksView = nil
	idx.cachedClusters = nil
}

// compute runs the embedding pipeline once and caches clusters and the
// cross-split-filtered leaks view.
func (idx *SimilarityIndex) compute(ctx context.Context) error {
	if idx.cachedLeaksView != nil {
		return nil
	}

	log.Printf("[LEAKY] computing embeddings for %d samples", idx.samples.Count())
	embeddings, sampleIDs, labelIDs, err := idx.backend.ComputeEmbeddings(ctx, idx.samples)
	if err != nil {
		return err
	}
	if err := idx.backend.AddToIndex(embeddings, sampleIDs, labelIDs); err != nil {
		return err
	}
	if err := idx.backend.FindDuplicates(idx.threshold); err != nil {
		return err
	}
	clusters, err := idx.backend.Clusters()
	if err != nil {
		return err
	}

	var ids []string
	for _, members := range clusters {
		if len(members) < 2 {
			continue
		}
		if !crossesSplits(members, idx.splitBy) {
			continue
		}
		ids = append(ids, members...)
	}

	idx.cachedClusters = clusters
	idx.cachedLeaksView = idx.samples.Select(ids, true)
	log.Printf("[LEAKY] similarity pass: %d duplicate clusters, %d leaked samples",
		len(clusters), len(ids))
	return nil
}

// Leaks returns every sample belonging to a cross-split duplicate cluster.
// The first access triggers the full pipeline; the result is cached until
// Invalidate.
func (idx *SimilarityIndex) Leaks(ctx context.Context) (dataset.View, error) {
	if err := idx.compute(ctx); err != nil {
		return nil, err
	}
	return idx.cachedLeaksView, nil
}

// NumLeaks returns the count of Leaks.
func (idx *SimilarityIndex) NumLeaks(ctx context.Context) (int, error) {
	view, err := idx.Leaks(ctx)
	if err != nil {
		return 0, err
	}
	return view.Count(), nil
}

// LeaksBySample returns the full duplicate cluster containing the given id,
// or an empty view. Triggers the pipeline if it has not run yet.
func (idx *SimilarityIndex) LeaksBySample(ctx context.Context, id string) (dataset.View, error) {
	if err := idx.compute(ctx); err != nil {
		return nil, err
	}
	for _, members := range idx.cachedClusters {
		if len(members) < 2 {
			continue
		}
		for _, member := range members {
			if member == id {
				return idx.samples.Select(members, true), nil
			}
		}
	}
	return idx.samples.Select(nil, true), nil
}

// DuplicatesView materializes every sample in any duplicate cluster,
// regardless of split spanning. Triggers the pipeline if needed.
func (idx *SimilarityIndex) DuplicatesView(ctx context.Context) (dataset.View, error) {
	if err := idx.compute(ctx); err != nil {
		return nil, err
	}
	return idx.backend.DuplicatesView()
}

// TagLeaks appends the tag to every leaked sample.
func (idx *SimilarityIndex) TagLeaks(ctx context.Context, tag string) error {
	view, err := idx.Leaks(ctx)
	if err != nil {
		return err
	}
	return tagView(view, tag)
}

// RemoveLeaks always returns ErrRemoveLeaksUnsupported; see Index.
func (idx *SimilarityIndex) RemoveLeaks(ctx context.Context, removeFrom dataset.View) error {
	return types.ErrRemoveLeaksUnsupported
}
