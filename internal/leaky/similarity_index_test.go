package leaky

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DougOr/fiftyone-brain/internal/dataset"
	"github.com/DougOr/fiftyone-brain/internal/similarity"
	"github.com/DougOr/fiftyone-brain/internal/types"
)

// stubBackend serves canned clusters and counts pipeline invocations.
type stubBackend struct {
	clustersByPath [][]string // filepaths; resolved to ids at embed time

	samples  dataset.View
	clusters [][]string

	computeCalls int
	thresholds   []float64
	embedErr     error
}

var _ similarity.Backend = (*stubBackend)(nil)

func (b *stubBackend) ComputeEmbeddings(_ context.Context, samples dataset.View) ([][]float64, []string, []string, error) {
	b.computeCalls++
	if b.embedErr != nil {
		return nil, nil, nil, b.embedErr
	}
	b.samples = samples

	byPath := make(map[string]string)
	all := samples.Samples()
	vecs := make([][]float64, len(all))
	ids := make([]string, len(all))
	for i, s := range all {
		byPath[s.Filepath()] = s.ID()
		vecs[i] = []float64{float64(i)}
		ids[i] = s.ID()
	}

	b.clusters = nil
	for _, paths := range b.clustersByPath {
		members := make([]string, 0, len(paths))
		for _, p := range paths {
			if id, ok := byPath[p]; ok {
				members = append(members, id)
			}
		}
		b.clusters = append(b.clusters, members)
	}
	return vecs, ids, nil, nil
}

func (b *stubBackend) AddToIndex([][]float64, []string, []string) error { return nil }

func (b *stubBackend) FindDuplicates(threshold float64) error {
	b.thresholds = append(b.thresholds, threshold)
	return nil
}

func (b *stubBackend) Clusters() ([][]string, error) { return b.clusters, nil }

func (b *stubBackend) DuplicatesView() (dataset.View, error) {
	var ids []string
	for _, members := range b.clusters {
		if len(members) > 1 {
			ids = append(ids, members...)
		}
	}
	return b.samples.Select(ids, true), nil
}

// taggedCollection builds samples under train/test tags with fixed paths.
func taggedCollection(paths map[string]string) (*dataset.Collection, map[string]*dataset.MemSample) {
	coll := dataset.NewCollection()
	byPath := make(map[string]*dataset.MemSample)
	for _, p := range []string{"/d/a.jpg", "/d/b.jpg", "/d/c.jpg", "/d/e.jpg"} {
		tag, ok := paths[p]
		if !ok {
			continue
		}
		byPath[p] = coll.Add(p, []string{tag}, nil)
	}
	return coll, byPath
}

func tagSpec() SplitSpec { return SplitSpec{Tags: []string{"train", "test"}} }

func TestSimilarityIndexCrossSplitFilter(t *testing.T) {
	coll, byPath := taggedCollection(map[string]string{
		"/d/a.jpg": "train", "/d/b.jpg": "test", // cross-split pair
		"/d/c.jpg": "train", "/d/e.jpg": "train", // same-split pair
	})
	backend := &stubBackend{clustersByPath: [][]string{
		{"/d/a.jpg", "/d/b.jpg"},
		{"/d/c.jpg", "/d/e.jpg"},
	}}

	cfg := DefaultSimilarityConfig()
	cfg.Splits = tagSpec()
	idx, err := NewSimilarityIndex(coll.View(), backend, cfg)
	require.NoError(t, err)

	view, err := idx.Leaks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, view.Count())
	assert.True(t, view.Contains(byPath["/d/a.jpg"].ID()))
	assert.True(t, view.Contains(byPath["/d/b.jpg"].ID()))
	assert.False(t, view.Contains(byPath["/d/c.jpg"].ID()),
		"same-split duplicates are not leaks")
}

func TestSimilarityIndexMemoizesPipeline(t *testing.T) {
	coll, _ := taggedCollection(map[string]string{"/d/a.jpg": "train", "/d/b.jpg": "test"})
	backend := &stubBackend{clustersByPath: [][]string{{"/d/a.jpg", "/d/b.jpg"}}}

	cfg := DefaultSimilarityConfig()
	cfg.Splits = tagSpec()
	idx, err := NewSimilarityIndex(coll.View(), backend, cfg)
	require.NoError(t, err)
	assert.Zero(t, backend.computeCalls, "construction must not trigger the pipeline")

	for i := 0; i < 3; i++ {
		_, err := idx.Leaks(context.Background())
		require.NoError(t, err)
	}
	_, err = idx.NumLeaks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, backend.computeCalls, "repeated access must reuse the cache")

	idx.Invalidate()
	_, err = idx.Leaks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, backend.computeCalls, "Invalidate forces one recompute")
}

func TestSimilarityIndexSetThresholdAfterInvalidate(t *testing.T) {
	coll, _ := taggedCollection(map[string]string{"/d/a.jpg": "train", "/d/b.jpg": "test"})
	backend := &stubBackend{clustersByPath: [][]string{{"/d/a.jpg", "/d/b.jpg"}}}

	cfg := DefaultSimilarityConfig()
	cfg.Splits = tagSpec()
	idx, err := NewSimilarityIndex(coll.View(), backend, cfg)
	require.NoError(t, err)

	_, err = idx.Leaks(context.Background())
	require.NoError(t, err)

	idx.SetThreshold(0.5)
	_, err = idx.Leaks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{similarity.DefaultThreshold}, backend.thresholds,
		"threshold change alone must not recompute")

	idx.Invalidate()
	_, err = idx.Leaks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{similarity.DefaultThreshold, 0.5}, backend.thresholds)
}

func TestSimilarityIndexLeaksBySample(t *testing.T) {
	coll, byPath := taggedCollection(map[string]string{
		"/d/a.jpg": "train", "/d/b.jpg": "test",
		"/d/c.jpg": "train", "/d/e.jpg": "train",
	})
	backend := &stubBackend{clustersByPath: [][]string{
		{"/d/c.jpg", "/d/e.jpg"},
	}}

	cfg := DefaultSimilarityConfig()
	cfg.Splits = tagSpec()
	idx, err := NewSimilarityIndex(coll.View(), backend, cfg)
	require.NoError(t, err)

	// LeaksBySample reports the full cluster even when it stays inside one
	// split and is therefore absent from Leaks.
	view, err := idx.LeaksBySample(context.Background(), byPath["/d/c.jpg"].ID())
	require.NoError(t, err)
	assert.Equal(t, 2, view.Count())
	assert.True(t, view.Contains(byPath["/d/e.jpg"].ID()))

	view, err = idx.LeaksBySample(context.Background(), byPath["/d/a.jpg"].ID())
	require.NoError(t, err)
	assert.Zero(t, view.Count())
}

func TestSimilarityIndexBackendErrorPropagates(t *testing.T) {
	coll, _ := taggedCollection(map[string]string{"/d/a.jpg": "train", "/d/b.jpg": "test"})
	backend := &stubBackend{embedErr: errors.New("inference service down")}

	cfg := DefaultSimilarityConfig()
	cfg.Splits = tagSpec()
	idx, err := NewSimilarityIndex(coll.View(), backend, cfg)
	require.NoError(t, err)

	_, err = idx.Leaks(context.Background())
	assert.ErrorContains(t, err, "inference service down")

	// A failed pipeline is not cached; the next access retries.
	backend.embedErr = nil
	backend.clustersByPath = [][]string{{"/d/a.jpg", "/d/b.jpg"}}
	view, err := idx.Leaks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, view.Count())
}

func TestNewSimilarityIndexValidation(t *testing.T) {
	coll, _ := taggedCollection(map[string]string{"/d/a.jpg": "train", "/d/b.jpg": "test"})

	cfg := DefaultSimilarityConfig()
	cfg.Splits = tagSpec()
	_, err := NewSimilarityIndex(coll.View(), nil, cfg)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	cfg.Threshold = -0.1
	_, err = NewSimilarityIndex(coll.View(), &stubBackend{}, cfg)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	cfg = DefaultSimilarityConfig()
	_, err = NewSimilarityIndex(coll.View(), &stubBackend{}, cfg)
	assert.ErrorIs(t, err, types.ErrConfiguration, "missing split spec")
}

func TestSimilarityIndexRemoveLeaksUnsupported(t *testing.T) {
	coll, _ := taggedCollection(map[string]string{"/d/a.jpg": "train", "/d/b.jpg": "test"})
	cfg := DefaultSimilarityConfig()
	cfg.Splits = tagSpec()
	idx, err := NewSimilarityIndex(coll.View(), &stubBackend{}, cfg)
	require.NoError(t, err)

	err = idx.RemoveLeaks(context.Background(), coll.View())
	assert.ErrorIs(t, err, types.ErrRemoveLeaksUnsupported)
}

func TestSimilarityIndexDuplicatesView(t *testing.T) {
	coll, byPath := taggedCollection(map[string]string{
		"/d/a.jpg": "train", "/d/b.jpg": "test",
		"/d/c.jpg": "train", "/d/e.jpg": "train",
	})
	backend := &stubBackend{clustersByPath: [][]string{
		{"/d/a.jpg", "/d/b.jpg"},
		{"/d/c.jpg", "/d/e.jpg"},
	}}

	cfg := DefaultSimilarityConfig()
	cfg.Splits = tagSpec()
	idx, err := NewSimilarityIndex(coll.View(), backend, cfg)
	require.NoError(t, err)

	// DuplicatesView reports every cluster member, cross-split or not.
	view, err := idx.DuplicatesView(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, view.Count())
	assert.True(t, view.Contains(byPath["/d/c.jpg"].ID()))
}

// pathEmbedder serves fixed vectors keyed by file path, for wiring the real
// brute-force backend.
type pathEmbedder struct {
	vectors map[string][]float64
}

var _ similarity.Embedder = (*pathEmbedder)(nil)

func (e *pathEmbedder) EmbedBatch(_ context.Context, paths []string) ([][]float64, error) {
	out := make([][]float64, len(paths))
	for i, p := range paths {
		out[i] = e.vectors[p]
	}
	return out, nil
}

func newBruteForceIndex(t *testing.T, coll *dataset.Collection, vectors map[string][]float64) *SimilarityIndex {
	t.Helper()
	backend, err := similarity.NewBruteForce(&pathEmbedder{vectors: vectors},
		similarity.BruteForceConfig{Metric: similarity.MetricEuclidean, BatchSize: 16})
	require.NoError(t, err)

	cfg := DefaultSimilarityConfig()
	cfg.Splits = tagSpec()
	idx, err := NewSimilarityIndex(coll.View(), backend, cfg)
	require.NoError(t, err)
	return idx
}

func TestSimilarityIndexBruteForceEndToEnd(t *testing.T) {
	coll := dataset.NewCollection()
	a := coll.Add("/d/a.jpg", []string{"train"}, nil)
	b := coll.Add("/d/b.jpg", []string{"test"}, nil)
	c := coll.Add("/d/c.jpg", []string{"train"}, nil)
	idx := newBruteForceIndex(t, coll, map[string][]float64{
		"/d/a.jpg": {0, 0},
		"/d/b.jpg": {0, 0},
		"/d/c.jpg": {5, 5},
	})

	view, err := idx.Leaks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, view.Count())
	assert.True(t, view.Contains(a.ID()))
	assert.True(t, view.Contains(b.ID()))

	// Invalidate and recompute against the same backend: the result must be
	// identical, with no phantom clusters from re-indexed vectors.
	idx.Invalidate()
	view, err = idx.Leaks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, view.Count())

	solo, err := idx.LeaksBySample(context.Background(), c.ID())
	require.NoError(t, err)
	assert.Zero(t, solo.Count(), "a unique sample is in no cluster after recompute")
}

func TestSimilarityIndexBruteForceNoDuplicates(t *testing.T) {
	coll := dataset.NewCollection()
	coll.Add("/d/a.jpg", []string{"train"}, nil)
	b := coll.Add("/d/b.jpg", []string{"test"}, nil)
	idx := newBruteForceIndex(t, coll, map[string][]float64{
		"/d/a.jpg": {0, 0},
		"/d/b.jpg": {10, 10},
	})

	n, err := idx.NumLeaks(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "a clean collection yields an empty view, not an error")

	view, err := idx.LeaksBySample(context.Background(), b.ID())
	require.NoError(t, err)
	assert.Zero(t, view.Count())
}

func TestComputeLeakySplitsDispatch(t *testing.T) {
	dir := t.TempDir()
	coll := dataset.NewCollection()
	coll.Add(writeSampleFile(t, dir, "a.bin", []byte("x")), []string{"train"}, nil)
	coll.Add(writeSampleFile(t, dir, "b.bin", []byte("y")), []string{"test"}, nil)

	cfg := DefaultConfig()
	cfg.Hash.Splits = tagSpec()
	idx, err := ComputeLeakySplits(context.Background(), coll.View(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, (*HashIndex)(nil), idx)

	cfg = DefaultConfig()
	cfg.Method = types.DetectionSimilarity
	cfg.Similarity.Splits = tagSpec()
	idx, err = ComputeLeakySplits(context.Background(), coll.View(), cfg, &stubBackend{})
	require.NoError(t, err)
	assert.IsType(t, (*SimilarityIndex)(nil), idx)

	// Similarity without a backend is a configuration error.
	_, err = ComputeLeakySplits(context.Background(), coll.View(), cfg, nil)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	cfg.Method = "clairvoyance"
	_, err = ComputeLeakySplits(context.Background(), coll.View(), cfg, &stubBackend{})
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
