// Package similarity defines the embedding-similarity backend contract the
// leak detection consumes, plus a brute-force reference backend suitable for
// tests and small collections. Production deployments swap in a backend
// bridging to a real vector store.
package similarity

import (
	"context"

	"github.com/DougOr/fiftyone-brain/internal/dataset"
)

// Embedder computes embedding vectors for image files. Implementations own
// model loading, decoding, and inference; failures propagate unmodified.
type Embedder interface {
	// EmbedBatch returns one vector per path, in path order.
	EmbedBatch(ctx context.Context, paths []string) ([][]float64, error)
}

// PatchEmbedder is the optional capability of embedding regions of an image.
// Regions are relative bounding boxes [x, y, width, height] in [0, 1].
type PatchEmbedder interface {
	// EmbedPatches returns one vector per region, in region order.
	EmbedPatches(ctx context.Context, path string, regions [][4]float64) ([][]float64, error)
}

// Backend is the external similarity backend: vector storage plus
// threshold-based duplicate clustering.
type Backend interface {
	// ComputeEmbeddings produces one embedding (and optional sub-label id)
	// per sample in the view, in view order.
	ComputeEmbeddings(ctx context.Context, samples dataset.View) (embeddings [][]float64, sampleIDs, labelIDs []string, err error)

	// AddToIndex inserts the vectors into the backend's searchable index.
	AddToIndex(embeddings [][]float64, sampleIDs, labelIDs []string) error

	// FindDuplicates groups indexed vectors into duplicate clusters: two
	// vectors within the distance threshold of one another belong to the
	// same cluster.
	FindDuplicates(threshold float64) error

	// Clusters returns the duplicate clusters computed by the last
	// FindDuplicates call, as lists of sample ids in insertion order.
	// Singleton groups are omitted.
	Clusters() ([][]string, error)

	// DuplicatesView materializes a view over every sample belonging to a
	// duplicate cluster.
	DuplicatesView() (dataset.View, error)
}
