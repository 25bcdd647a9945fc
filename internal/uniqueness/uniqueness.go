// Package uniqueness scores each sample by how dissimilar it is from the
// rest of the collection. Samples are embedded into a vector space and
// scored by a weighted mean of their nearest-neighbor distances: a sample is
// unique when it sits far from everything else. Scores are max-normalized so
// datasets of different scales stay comparable.
package uniqueness

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/time/rate"

	"github.com/DougOr/fiftyone-brain/internal/dataset"
	"github.com/DougOr/fiftyone-brain/internal/similarity"
	"github.com/DougOr/fiftyone-brain/internal/types"
)

// Config configures a uniqueness computation.
type Config struct {
	// Field is the sample field that receives the score. Default:
	// "uniqueness".
	Field string `yaml:"field"`

	// ROIField optionally names a field holding a region-of-interest label
	// (Detection, Detections, Polyline, or Polylines). When set, uniqueness
	// is computed from patch embeddings averaged per sample, and the
	// embedder must support patches.
	ROIField string `yaml:"roi_field,omitempty"`

	// K is the number of nearest neighbors considered. Default: 3.
	K int `yaml:"k,omitempty"`

	// Weights weight the K neighbor distances, nearest first. Must have
	// length K. Default: [0.6, 0.3, 0.1].
	Weights []float64 `yaml:"weights,omitempty"`

	// Metric is the embedding distance function. Default: euclidean.
	Metric similarity.Metric `yaml:"metric,omitempty"`

	// BatchSize is the number of samples per embedder call. Default: 16.
	BatchSize int `yaml:"batch_size,omitempty"`

	// Workers bounds concurrent embedder calls. Default: 4. Batching exists
	// purely for throughput; result accumulation is order-preserving.
	Workers int `yaml:"workers,omitempty"`

	// Limiter, if set, throttles embedder calls.
	Limiter *rate.Limiter `yaml:"-"`
}

// DefaultConfig returns the default uniqueness configuration.
func DefaultConfig() Config {
	return Config{
		Field:     "uniqueness",
		K:         3,
		Weights:   []float64{0.6, 0.3, 0.1},
		Metric:    similarity.MetricEuclidean,
		BatchSize: 16,
		Workers:   4,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("%w: uniqueness field cannot be empty", types.ErrConfiguration)
	}
	if c.K <= 0 {
		return fmt.Errorf("%w: k must be positive (got %d)", types.ErrConfiguration, c.K)
	}
	if len(c.Weights) != c.K {
		return fmt.Errorf("%w: %d weights for k=%d neighbors", types.ErrConfiguration, len(c.Weights), c.K)
	}
	for i, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("%w: weight %d cannot be negative (got %g)", types.ErrConfiguration, i, w)
		}
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive (got %d)", types.ErrConfiguration, c.BatchSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive (got %d)", types.ErrConfiguration, c.Workers)
	}
	switch c.Metric {
	case similarity.MetricCosine, similarity.MetricEuclidean:
	default:
		return fmt.Errorf("%w: unknown metric %q", types.ErrConfiguration, string(c.Metric))
	}
	return nil
}

var imageExtensions = map[string]struct{}{
	".bmp": {}, ".gif": {}, ".jpeg": {}, ".jpg": {},
	".png": {}, ".tif": {}, ".tiff": {}, ".webp": {},
}

// Compute scores every sample in the view and writes each score into the
// configured field through the sample's save contract. Scores are returned
// in view order. The collection must contain at least K+1 samples so every
// sample has K neighbors.
func Compute(ctx context.Context, samples dataset.View, embedder similarity.Embedder, cfg Config) ([]float64, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder cannot be nil", types.ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	all := samples.Samples()
	if len(all) < cfg.K+1 {
		return nil, fmt.Errorf("%w: collection has %d samples, need at least %d for k=%d neighbors",
			types.ErrConfiguration, len(all), cfg.K+1, cfg.K)
	}
	for _, s := range all {
		if err := validateSample(s); err != nil {
			return nil, err
		}
	}

	var (
		embeddings [][]float64
		err        error
	)
	if cfg.ROIField == "" {
		embeddings, err = embedSamples(ctx, all, embedder, cfg)
	} else {
		embeddings, err = embedPatches(ctx, all, embedder, cfg)
	}
	if err != nil {
		return nil, err
	}

	scores, err := knnScores(embeddings, cfg)
	if err != nil {
		return nil, err
	}

	log.Printf("[UNIQUE] saving results for %d samples", len(all))
	for i, s := range all {
		s.SetField(cfg.Field, scores[i])
		if err := s.Save(); err != nil {
			return nil, fmt.Errorf("%w: saving uniqueness on sample %s: %v",
				types.ErrPersistence, s.ID(), err)
		}
	}
	return scores, nil
}

// validateSample checks that the sample's source media exists on disk and is
// a recognized image type.
func validateSample(s dataset.Sample) error {
	path := s.Filepath()
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: sample %s source media %q does not exist on disk",
			types.ErrValidation, s.ID(), path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := imageExtensions[ext]; !ok {
		return fmt.Errorf("%w: sample %s source media %q is not a recognized image format",
			types.ErrValidation, s.ID(), path)
	}
	return nil
}

// knnScores computes the weighted mean distance to each sample's K nearest
// neighbors and normalizes by the maximum.
func knnScores(embeddings [][]float64, cfg Config) ([]float64, error) {
	n := len(embeddings)
	scores := make([]float64, n)

	var totalWeight float64
	for _, w := range cfg.Weights {
		totalWeight += w
	}
	if totalWeight == 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", types.ErrConfiguration)
	}

	dists := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		dists = dists[:0]
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			d, err := similarity.Distance(cfg.Metric, embeddings[i], embeddings[j])
			if err != nil {
				return nil, err
			}
			dists = append(dists, d)
		}
		sort.Float64s(dists)

		var weighted float64
		for k := 0; k < cfg.K; k++ {
			weighted += dists[k] * cfg.Weights[k]
		}
		scores[i] = weighted / totalWeight
	}

	// Normalize to keep callers on common footing across datasets. A zero
	// maximum means every sample is identical; the scores stay zero rather
	// than dividing into NaN.
	var max float64
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	if max > 0 {
		for i := range scores {
			scores[i] /= max
		}
	}
	return scores, nil
}
