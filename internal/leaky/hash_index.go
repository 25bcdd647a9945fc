package leaky

import (
	"context"
	"fmt"
	"log"

	"github.com/DougOr/fiftyone-brain/internal/dataset"
	"github.com/DougOr/fiftyone-brain/internal/hash"
	"github.com/DougOr/fiftyone-brain/internal/types"
)

// HashConfig configures hash-based leak detection.
type HashConfig struct {
	// Splits specifies the split partition. Exactly one specifier.
	Splits SplitSpec `yaml:"splits"`

	// Method selects the fingerprint strategy. Default: filepath.
	Method types.HashMethod `yaml:"method"`

	// HashSize is the dHash grid size for the image method. Default: 24.
	HashSize int `yaml:"hash_size,omitempty"`

	// HashField, when set, receives each sample's computed fingerprint,
	// persisted through the sample's save contract.
	HashField string `yaml:"hash_field,omitempty"`

	// Fingerprinter overrides the fingerprinter built from Method/HashSize.
	// Useful for wrapping with a hashcache.Cache.
	Fingerprinter hash.Fingerprinter `yaml:"-"`
}

// DefaultHashConfig returns the default hash detection configuration.
func DefaultHashConfig() HashConfig {
	return HashConfig{
		Method:   types.HashFilepath,
		HashSize: hash.DefaultHashSize,
	}
}

// Validate checks the configuration. Split validation happens separately at
// resolution time, against the collection.
func (c HashConfig) Validate() error {
	if c.Fingerprinter != nil {
		return nil
	}
	return c.Method.Validate()
}

// HashIndex groups sample ids by fingerprint. Any bucket with more than one
// member is a duplicate cluster. The index is built eagerly over the full
// collection (not per split) and never updated afterwards.
type HashIndex struct {
	samples dataset.View
	splits  []Split
	splitBy map[string][]string

	// buckets preserves insertion order of ids within each fingerprint and
	// the order in which fingerprints first appeared.
	buckets map[string][]string
	order   []string
}

var _ Index = (*HashIndex)(nil)

// NewHashIndex resolves the splits, fingerprints every sample in the
// collection, and builds the bucket index. Fingerprint failures abort the
// build and surface to the caller; nothing is silently skipped.
func NewHashIndex(ctx context.Context, samples dataset.View, cfg HashConfig) (*HashIndex, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	splits, err := cfg.Splits.Resolve(samples)
	if err != nil {
		return nil, err
	}

	fp := cfg.Fingerprinter
	if fp == nil {
		fp, err = hash.New(cfg.Method, cfg.HashSize)
		if err != nil {
			return nil, err
		}
	}

	idx := &HashIndex{
		samples: samples,
		splits:  splits,
		splitBy: membershipByID(splits),
		buckets: make(map[string][]string),
	}

	for _, s := range samples.Samples() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fingerprint, err := fp.Fingerprint(s.Filepath())
		if err != nil {
			return nil, err
		}
		if _, seen := idx.buckets[fingerprint]; !seen {
			idx.order = append(idx.order, fingerprint)
		}
		idx.buckets[fingerprint] = append(idx.buckets[fingerprint], s.ID())

		if cfg.HashField != "" {
			s.SetField(cfg.HashField, fingerprint)
			if err := s.Save(); err != nil {
				return nil, fmt.Errorf("%w: saving fingerprint on sample %s: %v",
					types.ErrPersistence, s.ID(), err)
			}
		}
	}

	log.Printf("[LEAKY] hash index built: %d samples, %d distinct fingerprints",
		samples.Count(), len(idx.order))
	return idx, nil
}

// Leaks returns every sample belonging to a cross-split duplicate cluster,
// in bucket order.
func (idx *HashIndex) Leaks(ctx context.Context) (dataset.View, error) {
	var ids []string
	for _, fingerprint := range idx.order {
		members := idx.buckets[fingerprint]
		if len(members) < 2 {
			continue
		}
		if !crossesSplits(members, idx.splitBy) {
			continue
		}
		ids = append(ids, members...)
	}
	return idx.samples.Select(ids, true), nil
}

// NumLeaks returns the count of Leaks.
func (idx *HashIndex) NumLeaks(ctx context.Context) (int, error) {
	view, err := idx.Leaks(ctx)
	if err != nil {
		return 0, err
	}
	return view.Count(), nil
}

// LeaksBySample scans the buckets for the one containing the given id and
// returns its full membership. Singleton buckets yield an empty view.
func (idx *HashIndex) LeaksBySample(ctx context.Context, id string) (dataset.View, error) {
	for _, fingerprint := range idx.order {
		members := idx.buckets[fingerprint]
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

// TagLeaks appends the tag to every leaked sample.
func (idx *HashIndex) TagLeaks(ctx context.Context, tag string) error {
	view, err := idx.Leaks(ctx)
	if err != nil {
		return err
	}
	return tagView(view, tag)
}

// RemoveLeaks always returns ErrRemoveLeaksUnsupported; see Index.
func (idx *HashIndex) RemoveLeaks(ctx context.Context, removeFrom dataset.View) error {
	return types.ErrRemoveLeaksUnsupported
}
