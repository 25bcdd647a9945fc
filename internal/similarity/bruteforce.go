package similarity

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/time/rate"

	"github.com/DougOr/fiftyone-brain/internal/dataset"
	"github.com/DougOr/fiftyone-brain/internal/types"
)

// Metric names a distance function over embedding vectors. Smaller distances
// mean more similar.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean"
)

// DefaultThreshold is the default duplicate distance threshold: maximal
// strictness, grouping near-identical embeddings only.
const DefaultThreshold = 1e-6

// BruteForceConfig configures the reference backend.
type BruteForceConfig struct {
	// Metric is the distance function. Default: cosine.
	Metric Metric

	// BatchSize is the number of paths per Embedder call. Default: 16.
	BatchSize int

	// Limiter, if set, throttles Embedder calls. Useful when the embedder
	// fronts a remote inference service.
	Limiter *rate.Limiter
}

// DefaultBruteForceConfig returns the default reference backend configuration.
func DefaultBruteForceConfig() BruteForceConfig {
	return BruteForceConfig{
		Metric:    MetricCosine,
		BatchSize: 16,
	}
}

// Validate checks the configuration.
func (c BruteForceConfig) Validate() error {
	switch c.Metric {
	case MetricCosine, MetricEuclidean:
	default:
		return fmt.Errorf("%w: unknown metric %q", types.ErrConfiguration, string(c.Metric))
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive (got %d)", types.ErrConfiguration, c.BatchSize)
	}
	return nil
}

// BruteForce is an exact nearest-neighbor backend holding all vectors in
// memory and comparing pairwise. Quadratic in collection size; intended for
// tests and modest collections.
type BruteForce struct {
	embedder Embedder
	config   BruteForceConfig

	samples   dataset.View
	vectors   [][]float64
	ids       []string
	clusters  [][]string
	clustered bool
}

var _ Backend = (*BruteForce)(nil)

// NewBruteForce creates the reference backend around an embedder.
func NewBruteForce(embedder Embedder, config BruteForceConfig) (*BruteForce, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder cannot be nil", types.ErrConfiguration)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &BruteForce{embedder: embedder, config: config}, nil
}

// ComputeEmbeddings embeds every sample in the view, batched sequentially.
// Accumulation is append-only and order-preserving.
func (b *BruteForce) ComputeEmbeddings(ctx context.Context, samples dataset.View) ([][]float64, []string, []string, error) {
	all := samples.Samples()
	paths := make([]string, len(all))
	ids := make([]string, len(all))
	for i, s := range all {
		paths[i] = s.Filepath()
		ids[i] = s.ID()
	}

	var embeddings [][]float64
	for start := 0; start < len(paths); start += b.config.BatchSize {
		end := start + b.config.BatchSize
		if end > len(paths) {
			end = len(paths)
		}
		if b.config.Limiter != nil {
			if err := b.config.Limiter.Wait(ctx); err != nil {
				return nil, nil, nil, fmt.Errorf("%w: %v", types.ErrBackend, err)
			}
		}
		vecs, err := b.embedder.EmbedBatch(ctx, paths[start:end])
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %v", types.ErrBackend, err)
		}
		if len(vecs) != end-start {
			return nil, nil, nil, fmt.Errorf("%w: embedder returned %d vectors for %d paths",
				types.ErrBackend, len(vecs), end-start)
		}
		embeddings = append(embeddings, vecs...)
	}

	// A fresh pass replaces anything a previous pass indexed; otherwise a
	// recompute would pair every vector with its own stale copy.
	b.samples = samples
	b.vectors = nil
	b.ids = nil
	b.clusters = nil
	b.clustered = false
	return embeddings, ids, nil, nil
}

// AddToIndex inserts vectors into the in-memory index.
func (b *BruteForce) AddToIndex(embeddings [][]float64, sampleIDs, labelIDs []string) error {
	if len(embeddings) != len(sampleIDs) {
		return fmt.Errorf("%w: %d embeddings for %d sample ids",
			types.ErrBackend, len(embeddings), len(sampleIDs))
	}
	for i, vec := range embeddings[1:] {
		if len(vec) != len(embeddings[0]) {
			return fmt.Errorf("%w: embedding dimension mismatch at index %d (%d vs %d)",
				types.ErrBackend, i+1, len(vec), len(embeddings[0]))
		}
	}
	b.vectors = append(b.vectors, embeddings...)
	b.ids = append(b.ids, sampleIDs...)
	return nil
}

// FindDuplicates clusters indexed vectors with single-linkage union-find:
// any pair within the threshold joins the same cluster.
func (b *BruteForce) FindDuplicates(threshold float64) error {
	if threshold < 0 {
		return fmt.Errorf("%w: threshold cannot be negative (got %g)", types.ErrConfiguration, threshold)
	}
	n := len(b.vectors)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d, err := Distance(b.config.Metric, b.vectors[i], b.vectors[j])
			if err != nil {
				return err
			}
			if d <= threshold {
				parent[find(i)] = find(j)
			}
		}
	}

	groups := make(map[int][]string)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		root := find(i)
		if _, seen := groups[root]; !seen {
			order = append(order, root)
		}
		groups[root] = append(groups[root], b.ids[i])
	}

	b.clusters = nil
	for _, root := range order {
		if members := groups[root]; len(members) > 1 {
			b.clusters = append(b.clusters, members)
		}
	}
	b.clustered = true
	return nil
}

// Clusters returns the duplicate clusters from the last FindDuplicates call.
// A pass that found no duplicates yields an empty result, not an error.
func (b *BruteForce) Clusters() ([][]string, error) {
	if !b.clustered && len(b.vectors) > 0 {
		return nil, fmt.Errorf("%w: FindDuplicates has not been called", types.ErrBackend)
	}
	return b.clusters, nil
}

// DuplicatesView materializes a view of every sample in a duplicate cluster.
func (b *BruteForce) DuplicatesView() (dataset.View, error) {
	if b.samples == nil {
		return nil, fmt.Errorf("%w: no samples have been embedded", types.ErrBackend)
	}
	clusters, err := b.Clusters()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, members := range clusters {
		ids = append(ids, members...)
	}
	return b.samples.Select(ids, true), nil
}

// Distance computes the named metric between two vectors of equal dimension.
func Distance(metric Metric, a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: dimension mismatch (%d vs %d)", types.ErrBackend, len(a), len(b))
	}
	switch metric {
	case MetricEuclidean:
		var sum float64
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return math.Sqrt(sum), nil
	case MetricCosine:
		var dot, na, nb float64
		for i := range a {
			dot += a[i] * b[i]
			na += a[i] * a[i]
			nb += b[i] * b[i]
		}
		if na == 0 || nb == 0 {
			return 0, fmt.Errorf("%w: cosine distance undefined for zero vector", types.ErrBackend)
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
	default:
		return 0, fmt.Errorf("%w: unknown metric %q", types.ErrConfiguration, string(metric))
	}
}
