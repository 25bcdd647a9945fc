// Package leaky detects leaks between dataset splits: samples whose content
// (exact or near-duplicate) appears in more than one supposedly disjoint
// split, letting a model implicitly memorize its test data.
//
// # Architecture
//
// Detection runs in one of two strategies behind a common Index contract:
//
//  1. Hash (NewHashIndex): every sample in the full collection is
//     fingerprinted, either over raw file bytes (exact duplicates) or with a
//     difference hash over decoded pixels (near-duplicates tolerant of
//     re-encoding). Samples sharing a fingerprint form a duplicate cluster.
//  2. Similarity (NewSimilarityIndex): an external similarity backend embeds
//     every sample and groups vectors within a distance threshold into
//     clusters. The compute-index-cluster pipeline runs lazily on first
//     Leaks access and is cached until Invalidate is called.
//
// Splits are resolved once at index construction from exactly one of three
// specifications: explicit views, a categorical field, or a set of tags.
// A duplicate cluster counts as a leak only when its members span at least
// two resolved splits; duplication confined to a single split is reported by
// LeaksBySample but never by Leaks.
//
// # Usage
//
//	cfg := leaky.DefaultHashConfig()
//	cfg.Splits.Tags = []string{"train", "test"}
//	index, err := leaky.ComputeLeakySplits(ctx, samples, leaky.Config{
//	    Method: types.DetectionHash,
//	    Hash:   cfg,
//	}, nil)
//	if err != nil {
//	    return err
//	}
//	n, _ := index.NumLeaks(ctx)
//	log.Printf("[LEAKY] %d leaked samples", n)
//	if err := index.TagLeaks(ctx, "leak"); err != nil {
//	    return err
//	}
//
// Indexes are built once per analysis session and never track changes to the
// underlying collection; staleness is a known, accepted limitation. Each
// index instance is intended for a single caller in a single pass and has no
// internal locking.
package leaky
