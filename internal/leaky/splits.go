package leaky

import (
	"fmt"

	"github.com/DougOr/fiftyone-brain/internal/dataset"
	"github.com/DougOr/fiftyone-brain/internal/types"
)

// SplitSpec names the splits of a collection in exactly one of three ways:
// explicit views, a categorical field, or a set of tags. Supplying zero or
// more than one specifier is a configuration error.
//
// Split membership may overlap; the resolver does not enforce disjointness.
// Cross-split duplication is flagged downstream, not prevented here.
type SplitSpec struct {
	// Views are explicit per-split views. Passed through unvalidated.
	Views []dataset.View `yaml:"-"`

	// Field is a sample field whose distinct values partition the
	// collection, one split per value. At least two distinct values must
	// exist.
	Field string `yaml:"field,omitempty"`

	// Tags are per-split tags, one split per tag. At least two are needed.
	Tags []string `yaml:"tags,omitempty"`
}

// Split is a named, resolved partition of the collection.
type Split struct {
	Name string
	View dataset.View
}

// Resolve converts the specification into named splits over the given
// collection. Resolution happens once at index construction and is cached by
// the index; it does not re-run if the collection changes.
func (s SplitSpec) Resolve(samples dataset.View) ([]Split, error) {
	given := 0
	if len(s.Views) > 0 {
		given++
	}
	if s.Field != "" {
		given++
	}
	if len(s.Tags) > 0 {
		given++
	}
	if given == 0 {
		return nil, fmt.Errorf("%w: one of the split specifiers (views, field, tags) must be given",
			types.ErrConfiguration)
	}
	if given > 1 {
		return nil, fmt.Errorf("%w: only one of the split specifiers (views, field, tags) may be given",
			types.ErrConfiguration)
	}

	switch {
	case len(s.Views) > 0:
		splits := make([]Split, len(s.Views))
		for i, v := range s.Views {
			splits[i] = Split{Name: fmt.Sprintf("split_%d", i), View: v}
		}
		return splits, nil
	case s.Field != "":
		return fieldToSplits(samples, s.Field)
	default:
		return tagsToSplits(samples, s.Tags)
	}
}

func fieldToSplits(samples dataset.View, field string) ([]Split, error) {
	values := samples.Distinct(field)
	if len(values) < 2 {
		return nil, fmt.Errorf("%w: field %q has fewer than 2 distinct values, can't be used to create splits",
			types.ErrConfiguration, field)
	}

	splits := make([]Split, 0, len(values))
	for _, val := range values {
		val := val
		view := samples.Match(func(s dataset.Sample) bool {
			v, ok := s.Field(field)
			return ok && fmt.Sprint(v) == val
		})
		splits = append(splits, Split{Name: val, View: view})
	}
	return splits, nil
}

func tagsToSplits(samples dataset.View, tags []string) ([]Split, error) {
	if len(tags) < 2 {
		return nil, fmt.Errorf("%w: must provide at least two tags", types.ErrConfiguration)
	}

	splits := make([]Split, 0, len(tags))
	for _, tag := range tags {
		splits = append(splits, Split{Name: tag, View: samples.MatchTags([]string{tag})})
	}
	return splits, nil
}

// membershipByID maps each sample id to the names of the splits containing
// it. Samples outside every split are absent from the map.
func membershipByID(splits []Split) map[string][]string {
	byID := make(map[string][]string)
	for _, split := range splits {
		for _, s := range split.View.Samples() {
			byID[s.ID()] = append(byID[s.ID()], split.Name)
		}
	}
	return byID
}

// crossesSplits reports whether the cluster's members span at least two
// distinct splits.
func crossesSplits(members []string, byID map[string][]string) bool {
	seen := make(map[string]struct{})
	for _, id := range members {
		for _, name := range byID[id] {
			seen[name] = struct{}{}
			if len(seen) > 1 {
				return true
			}
		}
	}
	return false
}
