package uniqueness

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/DougOr/fiftyone-brain/internal/dataset"
	"github.com/DougOr/fiftyone-brain/internal/similarity"
	"github.com/DougOr/fiftyone-brain/internal/types"
)

// embedSamples embeds whole images in fixed-size batches with a bounded
// worker pool. Each batch writes into its own slice region, so accumulation
// is order-preserving without shared mutable state.
func embedSamples(ctx context.Context, all []dataset.Sample, embedder similarity.Embedder, cfg Config) ([][]float64, error) {
	paths := make([]string, len(all))
	for i, s := range all {
		paths[i] = s.Filepath()
	}

	log.Printf("[UNIQUE] generating embeddings for %d samples (batch %d, workers %d)",
		len(paths), cfg.BatchSize, cfg.Workers)

	embeddings := make([][]float64, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for start := 0; start < len(paths); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(paths) {
			end = len(paths)
		}
		start, end := start, end
		g.Go(func() error {
			if cfg.Limiter != nil {
				if err := cfg.Limiter.Wait(gctx); err != nil {
					return fmt.Errorf("%w: %v", types.ErrBackend, err)
				}
			}
			vecs, err := embedder.EmbedBatch(gctx, paths[start:end])
			if err != nil {
				return fmt.Errorf("%w: %v", types.ErrBackend, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("%w: embedder returned %d vectors for %d paths",
					types.ErrBackend, len(vecs), end-start)
			}
			copy(embeddings[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// embedPatches embeds each sample's regions of interest and averages the
// patch vectors into one embedding per sample. Samples with an empty region
// list fall back to the whole image.
func embedPatches(ctx context.Context, all []dataset.Sample, embedder similarity.Embedder, cfg Config) ([][]float64, error) {
	patcher, ok := embedder.(similarity.PatchEmbedder)
	if !ok {
		return nil, fmt.Errorf("%w: roi_field %q requires an embedder supporting patches",
			types.ErrConfiguration, cfg.ROIField)
	}

	log.Printf("[UNIQUE] generating patch embeddings for %d samples (roi field %q)",
		len(all), cfg.ROIField)

	embeddings := make([][]float64, len(all))
	for i, s := range all {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		regions, err := parseROIs(s, cfg.ROIField)
		if err != nil {
			return nil, err
		}
		if cfg.Limiter != nil {
			if err := cfg.Limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: %v", types.ErrBackend, err)
			}
		}
		vecs, err := patcher.EmbedPatches(ctx, s.Filepath(), regions)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrBackend, err)
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("%w: embedder returned no vectors for sample %s",
				types.ErrBackend, s.ID())
		}
		embeddings[i] = meanVector(vecs)
	}
	return embeddings, nil
}

// parseROIs extracts relative bounding boxes from the sample's ROI field.
// A missing field or empty detection list uses the entire image.
func parseROIs(s dataset.Sample, field string) ([][4]float64, error) {
	wholeImage := [][4]float64{{0, 0, 1, 1}}

	value, ok := s.Field(field)
	if !ok || value == nil {
		return wholeImage, nil
	}

	var dets dataset.Detections
	switch label := value.(type) {
	case dataset.Detections:
		dets = label
	case dataset.Detection:
		dets = dataset.Detections{Detections: []dataset.Detection{label}}
	case dataset.Polyline:
		dets = dataset.Detections{Detections: []dataset.Detection{label.ToDetection()}}
	case dataset.Polylines:
		dets = label.ToDetections()
	default:
		return nil, fmt.Errorf("%w: sample %s field %q (%T) is not a valid ROI field; must be a Detection, Detections, Polyline, or Polylines",
			types.ErrValidation, s.ID(), field, value)
	}

	if len(dets.Detections) == 0 {
		return wholeImage, nil
	}
	regions := make([][4]float64, len(dets.Detections))
	for i, d := range dets.Detections {
		regions[i] = d.BoundingBox
	}
	return regions, nil
}

func meanVector(vecs [][]float64) []float64 {
	mean := make([]float64, len(vecs[0]))
	for _, v := range vecs {
		for i := range mean {
			mean[i] += v[i]
		}
	}
	for i := range mean {
		mean[i] /= float64(len(vecs))
	}
	return mean
}
