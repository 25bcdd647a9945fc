package leaky

import (
	"context"
	"fmt"
	"log"

	"github.com/DougOr/fiftyone-brain/internal/dataset"
	"github.com/DougOr/fiftyone-brain/internal/types"
)

// Index is the reporting contract both detection strategies satisfy.
type Index interface {
	// Leaks returns a view over every sample implicated in a cross-split
	// duplicate cluster, in cluster order.
	Leaks(ctx context.Context) (dataset.View, error)

	// NumLeaks returns the count of Leaks.
	NumLeaks(ctx context.Context) (int, error)

	// LeaksBySample returns the full duplicate cluster containing the given
	// sample id, whether or not it crosses splits. The view is empty when
	// the sample is in no duplicate cluster.
	LeaksBySample(ctx context.Context, id string) (dataset.View, error)

	// TagLeaks appends the tag (default "leak" when empty) to every leaked
	// sample, persisting through each sample's save contract. A failed save
	// aborts the remaining samples; already-applied tags are not rolled
	// back.
	TagLeaks(ctx context.Context, tag string) error

	// RemoveLeaks is declared for the eventual removal of leaked samples
	// from a target split. Its semantics are an open product decision; it
	// currently always returns ErrRemoveLeaksUnsupported.
	RemoveLeaks(ctx context.Context, removeFrom dataset.View) error
}

// DefaultLeakTag is the tag applied by TagLeaks when none is given.
const DefaultLeakTag = "leak"

// tagView appends tag to every sample in the view. Shared by both indexes.
func tagView(view dataset.View, tag string) error {
	if tag == "" {
		tag = DefaultLeakTag
	}
	tagged := 0
	for _, s := range view.Samples() {
		s.AppendTag(tag)
		if err := s.Save(); err != nil {
			return fmt.Errorf("%w: saving sample %s after %d of %d: %v",
				types.ErrPersistence, s.ID(), tagged, view.Count(), err)
		}
		tagged++
	}
	log.Printf("[LEAKY] tagged %d samples with %q", tagged, tag)
	return nil
}
